// Package telegram bridges Telegram chats to the diagnostic session engine.
// Each chat maps to at most one active session; text and voice notes both
// become turns.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/curax/triage/internal/engine"
	"github.com/curax/triage/internal/gateway"
	"github.com/curax/triage/internal/report"
	"github.com/curax/triage/internal/types"
)

const maxTelegramMessage = 4096

// Adapter bridges Telegram to the gateway.
type Adapter struct {
	bot     *tgbotapi.BotAPI
	gateway *gateway.Gateway
	engine  *engine.Engine
	reports *report.Generator
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[int64]types.SessionID
}

// New creates a Telegram adapter. The report generator is optional.
func New(token string, gw *gateway.Gateway, eng *engine.Engine, reports *report.Generator, logger *slog.Logger) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		bot:      bot,
		gateway:  gw,
		engine:   eng,
		reports:  reports,
		logger:   logger,
		sessions: make(map[int64]types.SessionID),
	}, nil
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		a.handleCommand(ctx, msg)
		return
	}

	chatID := msg.Chat.ID
	input, err := a.turnInput(msg)
	if err != nil {
		a.logger.Error("failed to read message input", "chat_id", chatID, "error", err)
		a.sendResponse(chatID, "Sorry, I couldn't read that message. Please try again.")
		return
	}
	if input.Text == "" && len(input.Audio) == 0 {
		a.sendResponse(chatID, "Please send a text message or a voice note describing your symptoms.")
		return
	}

	sessionID, err := a.sessionFor(ctx, chatID)
	if err != nil {
		a.logger.Error("failed to start session", "chat_id", chatID, "error", err)
		a.sendResponse(chatID, "Sorry, I couldn't start a session. Please try again.")
		return
	}

	err = a.gateway.Submit(sessionID, input,
		gateway.WithOnComplete(func(res *engine.TurnResult) {
			a.sendResponse(chatID, res.AssistantMessage.Content)
			if res.ActionRequired == engine.ActionComplete || res.ActionRequired == engine.ActionEmergency {
				a.clearSession(chatID)
			}
		}),
		gateway.WithOnError(func(err error) {
			a.logger.Error("turn failed", "chat_id", chatID, "error", err)
			a.sendResponse(chatID, "Sorry, something went wrong processing your message.")
		}))
	if err != nil {
		a.logger.Error("enqueue turn failed", "chat_id", chatID, "error", err)
		a.sendResponse(chatID, "I'm handling a lot of messages right now. Please try again in a moment.")
	}
}

// turnInput converts a Telegram message into engine input, downloading the
// voice note when present.
func (a *Adapter) turnInput(msg *tgbotapi.Message) (engine.TurnInput, error) {
	if msg.Voice != nil {
		url, err := a.bot.GetFileDirectURL(msg.Voice.FileID)
		if err != nil {
			return engine.TurnInput{}, fmt.Errorf("resolve voice file: %w", err)
		}
		resp, err := http.Get(url)
		if err != nil {
			return engine.TurnInput{}, fmt.Errorf("download voice file: %w", err)
		}
		defer resp.Body.Close()
		audio, err := io.ReadAll(resp.Body)
		if err != nil {
			return engine.TurnInput{}, fmt.Errorf("read voice file: %w", err)
		}
		return engine.TurnInput{Audio: audio}, nil
	}
	return engine.TurnInput{Text: msg.Text}, nil
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start", "new":
		a.clearSession(chatID)
		sessionID, err := a.sessionFor(ctx, chatID)
		if err != nil {
			a.sendResponse(chatID, "Sorry, I couldn't start a session. Please try again.")
			return
		}
		sess, err := a.engine.GetSession(ctx, sessionID)
		if err != nil || len(sess.Transcript) == 0 {
			a.sendResponse(chatID, "Hello! Describe your symptoms and I'll ask follow-up questions.")
			return
		}
		a.sendResponse(chatID, sess.Transcript[0].Content)

	case "status":
		sessionID, ok := a.currentSession(chatID)
		if !ok {
			a.sendResponse(chatID, "No active session. Send /start to begin.")
			return
		}
		sess, err := a.engine.GetSession(ctx, sessionID)
		if err != nil {
			a.sendResponse(chatID, "Error fetching status.")
			return
		}
		a.sendResponse(chatID, fmt.Sprintf("Session: %s\nStatus: %s\nTurns: %d\nUrgency: %s",
			sess.ID, sess.Status, sess.TurnCount, sess.Context.Assessment.Urgency))

	case "end":
		sessionID, ok := a.currentSession(chatID)
		if !ok {
			a.sendResponse(chatID, "No active session to end.")
			return
		}
		if _, err := a.engine.EndSession(ctx, sessionID); err != nil {
			a.sendResponse(chatID, "Error ending session.")
			return
		}
		a.clearSession(chatID)
		a.sendResponse(chatID, "Session ended. Send /start to begin a new one.")

	case "report":
		a.sendReport(ctx, chatID)

	default:
		a.sendResponse(chatID, "Unknown command. Available: /start, /new, /status, /end, /report")
	}
}

func (a *Adapter) sendReport(ctx context.Context, chatID int64) {
	if a.reports == nil {
		a.sendResponse(chatID, "Reports are not enabled.")
		return
	}
	sessionID, ok := a.currentSession(chatID)
	if !ok {
		a.sendResponse(chatID, "No session to report on. Send /start to begin.")
		return
	}
	sess, err := a.engine.GetSession(ctx, sessionID)
	if err != nil {
		a.sendResponse(chatID, "Error fetching session.")
		return
	}
	pdf, err := a.reports.Generate(sess)
	if err != nil {
		a.logger.Error("report generation failed", "session_id", sessionID, "error", err)
		a.sendResponse(chatID, "Error generating report.")
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("session-%s.pdf", sessionID),
		Bytes: pdf,
	})
	if _, err := a.bot.Send(doc); err != nil {
		a.logger.Error("send report failed", "chat_id", chatID, "error", err)
		a.sendResponse(chatID, "Error sending report.")
	}
}

// sessionFor returns the chat's session, starting one on first contact.
func (a *Adapter) sessionFor(ctx context.Context, chatID int64) (types.SessionID, error) {
	a.mu.Lock()
	if id, ok := a.sessions[chatID]; ok {
		a.mu.Unlock()
		return id, nil
	}
	a.mu.Unlock()

	sess, err := a.engine.StartSession(ctx, types.PatientRef(fmt.Sprintf("telegram:%d", chatID)))
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	a.sessions[chatID] = sess.ID
	a.mu.Unlock()
	return sess.ID, nil
}

func (a *Adapter) currentSession(chatID int64) (types.SessionID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.sessions[chatID]
	return id, ok
}

func (a *Adapter) clearSession(chatID int64) {
	a.mu.Lock()
	delete(a.sessions, chatID)
	a.mu.Unlock()
}

func (a *Adapter) sendResponse(chatID int64, text string) {
	for _, part := range splitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		if _, err := a.bot.Send(msg); err != nil {
			a.logger.Error("send message failed", "chat_id", chatID, "error", err)
		}
	}
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}
