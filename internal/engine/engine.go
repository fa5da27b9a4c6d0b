// Package engine drives diagnostic interviews: it owns the per-session turn
// loop, wires together transcription, emergency detection, entity
// extraction, and the assistant reply decision, and produces the final
// assessment when the interview is done.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/curax/triage/internal/analysis"
	"github.com/curax/triage/internal/session"
	"github.com/curax/triage/internal/speech"
	"github.com/curax/triage/internal/types"
	"github.com/curax/triage/prompts"
)

// Action tells the caller what the interview needs next.
type Action string

const (
	ActionEmergency Action = "emergency"
	ActionFollowUp  Action = "follow_up"
	ActionContinue  Action = "continue"
	ActionComplete  Action = "complete"
)

// TurnInput is one user contribution: raw audio, text, or both. Audio, when
// present, is transcribed and its text used in place of any typed text.
type TurnInput struct {
	Audio        []byte
	Text         string
	LanguageCode string
}

// TurnResult is the outcome of one processed turn.
type TurnResult struct {
	Session          *session.Session
	AssistantMessage session.Message
	ActionRequired   Action
}

// Options configures optional engine collaborators.
type Options struct {
	Transcriber speech.Transcriber
	Synthesizer speech.Synthesizer
	Voice       speech.VoiceParams
	// Audio, when set, persists incoming user audio under the session so
	// the transcript's audioRef can be served back.
	Audio    *speech.AudioStore
	Assessor Assessor
	Logger   *slog.Logger
}

// Engine orchestrates diagnostic sessions. Callers must serialize turns per
// session id; the gateway's per-session lanes provide that ordering.
type Engine struct {
	store       session.Store
	cfg         *prompts.FlowConfig
	detector    *analysis.EmergencyDetector
	transcriber speech.Transcriber
	synthesizer speech.Synthesizer
	voice       speech.VoiceParams
	audio       *speech.AudioStore
	assessor    Assessor
	logger      *slog.Logger
}

func New(store session.Store, cfg *prompts.FlowConfig, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	assessor := opts.Assessor
	if assessor == nil {
		assessor = RuleAssessor{}
	}
	return &Engine{
		store:       store,
		cfg:         cfg,
		detector:    analysis.NewEmergencyDetector(cfg.EmergencyKeywords),
		transcriber: opts.Transcriber,
		synthesizer: opts.Synthesizer,
		voice:       opts.Voice,
		audio:       opts.Audio,
		assessor:    assessor,
		logger:      logger,
	}
}

// StartSession creates an active session with the greeting already in the
// transcript. The greeting consumes no turn.
func (e *Engine) StartSession(ctx context.Context, patientRef types.PatientRef) (*session.Session, error) {
	s := session.New(patientRef)

	greeting := session.Message{
		ID:        types.NewMessageID(),
		Speaker:   session.SpeakerAssistant,
		Content:   e.cfg.Flow.Greeting,
		Timestamp: time.Now(),
	}
	greeting.AudioRef = e.synthesize(ctx, greeting.Content)
	s.Append(greeting)

	if err := e.store.Put(ctx, s); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	e.logger.Info("session started", "session_id", s.ID, "patient_ref", patientRef)
	return s, nil
}

// ProcessTurn runs one user exchange through the turn pipeline. The
// emergency scan runs before any other analysis and cannot be reordered.
func (e *Engine) ProcessTurn(ctx context.Context, id types.SessionID, input TurnInput) (*TurnResult, error) {
	s, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.Active() {
		return nil, fmt.Errorf("process turn %s: %w", id, session.ErrNotActive)
	}

	text := input.Text
	var transcription *speech.Transcription
	if len(input.Audio) > 0 {
		if e.transcriber == nil {
			return nil, fmt.Errorf("process turn %s: audio given but no transcriber configured: %w", id, speech.ErrTranscription)
		}
		transcription, err = e.transcriber.Transcribe(ctx, input.Audio, input.LanguageCode)
		if err != nil {
			// The session stays active and unmodified; the caller may retry.
			return nil, fmt.Errorf("process turn %s: %w", id, err)
		}
		text = transcription.Text
	}
	if text == "" {
		return nil, fmt.Errorf("process turn %s: %w", id, session.ErrInvalidInput)
	}

	if match := e.detector.Detect(text); match.IsEmergency {
		return e.completeEmergency(ctx, s, match)
	}

	result, err := e.processAnalyzedTurn(ctx, s, text, transcription, input.Audio)
	if err != nil {
		s.Status = session.StatusError
		if putErr := e.store.Put(ctx, s); putErr != nil {
			e.logger.Error("failed to persist error status", "session_id", s.ID, "error", putErr)
		}
		return nil, fmt.Errorf("process turn %s: %w", id, err)
	}
	return result, nil
}

func (e *Engine) completeEmergency(ctx context.Context, s *session.Session, match analysis.EmergencyMatch) (*TurnResult, error) {
	s.MarkEmergency()

	msg := session.Message{
		ID:        types.NewMessageID(),
		Speaker:   session.SpeakerAssistant,
		Content:   e.cfg.Flow.EmergencyMessage,
		Timestamp: time.Now(),
	}
	msg.AudioRef = e.synthesize(ctx, msg.Content)
	s.Append(msg)

	if err := e.store.Put(ctx, s); err != nil {
		return nil, fmt.Errorf("persist emergency for %s: %w", s.ID, err)
	}
	e.logger.Warn("emergency detected", "session_id", s.ID, "keyword", match.MatchedKeyword)
	return &TurnResult{Session: s, AssistantMessage: msg, ActionRequired: ActionEmergency}, nil
}

func (e *Engine) processAnalyzedTurn(ctx context.Context, s *session.Session, text string, transcription *speech.Transcription, audio []byte) (*TurnResult, error) {
	res := analysis.Extract(text)
	followUps := e.followUpQuestions(&res, &s.Context)

	s.Context.Merge(&res)
	if res.Confidence > s.Confidence {
		s.Confidence = res.Confidence
	}

	reply := e.assistantReply(&res, followUps)

	userMsg := session.Message{
		ID:            types.NewMessageID(),
		Speaker:       session.SpeakerUser,
		Content:       text,
		Timestamp:     time.Now(),
		Transcription: transcription,
		Analysis:      &res,
	}
	userMsg.AudioRef = e.storeUserAudio(s.ID, userMsg.ID, audio, transcription)
	assistantMsg := session.Message{
		ID:        types.NewMessageID(),
		Speaker:   session.SpeakerAssistant,
		Content:   reply,
		Timestamp: time.Now(),
	}
	assistantMsg.AudioRef = e.synthesize(ctx, assistantMsg.Content)

	s.Append(userMsg)
	s.Append(assistantMsg)
	s.TurnCount++

	action := e.nextAction(s, &res, followUps)
	if action == ActionComplete {
		if err := e.finalAssessment(ctx, s); err != nil {
			return nil, err
		}
		s.Status = session.StatusCompleted
	}

	if err := e.store.Put(ctx, s); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	e.logger.Info("turn processed",
		"session_id", s.ID,
		"turn", s.TurnCount,
		"urgency", res.Urgency,
		"action", action)
	return &TurnResult{Session: s, AssistantMessage: assistantMsg, ActionRequired: action}, nil
}

// followUpQuestions builds the pending question list for this turn: up to
// two template questions per extracted entity type, then questions for
// context fields still missing, capped at three.
func (e *Engine) followUpQuestions(res *analysis.Result, sctx *session.Context) []string {
	var questions []string
	seenTypes := map[analysis.EntityType]bool{}
	for _, entity := range res.Entities {
		if seenTypes[entity.Type] {
			continue
		}
		seenTypes[entity.Type] = true
		templates := e.cfg.FollowUpQuestions[string(entity.Type)]
		if len(templates) > 2 {
			templates = templates[:2]
		}
		questions = append(questions, templates...)
	}

	hasSymptoms := len(sctx.Symptoms) > 0 || seenTypes[analysis.EntitySymptom]
	if hasSymptoms && sctx.Duration == "" && !seenTypes[analysis.EntityDuration] {
		questions = append(questions, "How long have you been experiencing these symptoms?")
	}
	if hasSymptoms && len(sctx.Location) == 0 && !seenTypes[analysis.EntityLocation] {
		questions = append(questions, "Where exactly are you experiencing these symptoms?")
	}

	if len(questions) > 3 {
		questions = questions[:3]
	}
	return questions
}

func (e *Engine) assistantReply(res *analysis.Result, followUps []string) string {
	switch {
	case res.Urgency == analysis.UrgencyCritical:
		return e.cfg.Flow.CriticalMessage
	case len(followUps) > 0:
		return "Thank you for that information. To better understand your situation, " + followUps[0]
	default:
		return e.cfg.Flow.ContinuationQuestion
	}
}

// nextAction is the turn-outcome decision table, evaluated in order.
func (e *Engine) nextAction(s *session.Session, res *analysis.Result, followUps []string) Action {
	switch {
	case res.Urgency == analysis.UrgencyCritical:
		return ActionEmergency
	case s.TurnCount >= e.cfg.Flow.MaxTurns:
		return ActionComplete
	case res.Confidence < e.cfg.Flow.ConfidenceThreshold:
		return ActionFollowUp
	case len(followUps) == 0:
		return ActionComplete
	default:
		return ActionContinue
	}
}

func (e *Engine) finalAssessment(ctx context.Context, s *session.Session) error {
	assessment, err := e.assessor.Assess(ctx, s)
	if err != nil {
		return fmt.Errorf("final assessment: %w", err)
	}
	s.Context.Assessment = assessment

	closing := session.Message{
		ID:        types.NewMessageID(),
		Speaker:   session.SpeakerAssistant,
		Content:   e.closingMessage(assessment),
		Timestamp: time.Now(),
	}
	closing.AudioRef = e.synthesize(ctx, closing.Content)
	s.Append(closing)
	return nil
}

func (e *Engine) closingMessage(a session.Assessment) string {
	var b strings.Builder
	b.WriteString("Based on our conversation, here's my assessment of your situation. ")
	for _, rec := range a.Recommendations {
		b.WriteString(rec)
		b.WriteString(" ")
	}
	b.WriteString(e.cfg.Disclaimer)
	return b.String()
}

// storeUserAudio persists an incoming voice clip under its session once the
// message id is known. Failure means no audio ref, never a failed turn.
func (e *Engine) storeUserAudio(sessionID types.SessionID, messageID types.MessageID, audio []byte, transcription *speech.Transcription) string {
	if e.audio == nil || len(audio) == 0 {
		return ""
	}
	var duration float64
	if transcription != nil {
		duration = transcription.DurationSeconds
	}
	ref, err := e.audio.Put(sessionID, messageID, "application/octet-stream", audio, duration)
	if err != nil {
		e.logger.Warn("failed to store user audio", "session_id", sessionID, "error", err)
		return ""
	}
	return ref
}

// synthesize voices a reply if a synthesizer is configured. Failure means
// no audio, never a failed turn.
func (e *Engine) synthesize(ctx context.Context, text string) string {
	if e.synthesizer == nil {
		return ""
	}
	syn, err := e.synthesizer.Synthesize(ctx, text, e.voice)
	if err != nil {
		e.logger.Warn("speech synthesis failed", "error", err)
		return ""
	}
	return syn.AudioRef
}

// GetSession returns the stored session for id.
func (e *Engine) GetSession(ctx context.Context, id types.SessionID) (*session.Session, error) {
	return e.store.Get(ctx, id)
}

// ListSessions returns all stored sessions ordered by start time.
func (e *Engine) ListSessions(ctx context.Context) ([]*session.Session, error) {
	return e.store.List(ctx)
}

// EndSession completes a session. Ending an already-terminal session is a
// no-op returning the stored session.
func (e *Engine) EndSession(ctx context.Context, id types.SessionID) (*session.Session, error) {
	s, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.Active() && s.Status != session.StatusPaused {
		return s, nil
	}
	s.Status = session.StatusCompleted
	if err := e.store.Put(ctx, s); err != nil {
		return nil, fmt.Errorf("end session %s: %w", id, err)
	}
	e.logger.Info("session ended", "session_id", id)
	return s, nil
}
