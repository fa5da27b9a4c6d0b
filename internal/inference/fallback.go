package inference

import (
	"context"
	"log/slog"
)

// fallbackDamping reduces confidence on answers that did not come from the
// primary model.
const fallbackDamping = 0.9

// FallbackChain tries a primary model, then an ordered list of alternates,
// stopping at the first success.
type FallbackChain struct {
	router *Router
	order  []string
}

// NewFallbackChain creates a chain over the router with the given ordered
// fallback list.
func NewFallbackChain(router *Router, order []string) *FallbackChain {
	return &FallbackChain{router: router, order: order}
}

// Infer tries the primary model first, then walks the fallback list in
// order, skipping the primary and any id in knownFailed. Each model is
// called at most once. A non-primary success is marked WasFallback with
// damped confidence.
func (c *FallbackChain) Infer(ctx context.Context, req *Request, primaryModelID string, knownFailed []string) (*Response, error) {
	skip := make(map[string]bool, len(knownFailed)+1)
	for _, id := range knownFailed {
		skip[id] = true
	}

	candidates := make([]string, 0, len(c.order)+1)
	if !skip[primaryModelID] {
		candidates = append(candidates, primaryModelID)
	}
	skip[primaryModelID] = true
	for _, id := range c.order {
		if skip[id] {
			continue
		}
		skip[id] = true
		candidates = append(candidates, id)
	}

	var lastErr error
	for _, modelID := range candidates {
		attempt := *req
		attempt.ModelID = modelID

		resp, err := c.router.Infer(ctx, &attempt)
		if err != nil {
			// Registry misses and completion failures both advance the chain.
			slog.Warn("fallback candidate failed", "model", modelID, "error", err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if modelID != primaryModelID {
			resp.WasFallback = true
			resp.Confidence *= fallbackDamping
		}
		return resp, nil
	}

	return nil, newError(ErrorAllModelsFailed, "primary and all fallbacks failed", lastErr)
}
