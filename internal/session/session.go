// Package session defines the diagnostic interview aggregate: the session,
// its append-only transcript, and the clinical context accumulated turn by
// turn. Mutation happens only inside the engine; stores persist snapshots.
package session

import (
	"time"

	"github.com/curax/triage/internal/analysis"
	"github.com/curax/triage/internal/speech"
	"github.com/curax/triage/internal/types"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Speaker identifies who produced a message.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Message is one utterance in the transcript. Immutable once appended.
type Message struct {
	ID            types.MessageID       `json:"id"`
	Speaker       Speaker               `json:"speaker"`
	Content       string                `json:"content"`
	Timestamp     time.Time             `json:"timestamp"`
	AudioRef      string                `json:"audio_ref,omitempty"`
	Transcription *speech.Transcription `json:"transcription,omitempty"`
	Analysis      *analysis.Result      `json:"analysis,omitempty"`
}

// Session is one diagnostic interview.
type Session struct {
	ID            types.SessionID  `json:"id"`
	PatientRef    types.PatientRef `json:"patient_ref,omitempty"`
	StartedAt     time.Time        `json:"started_at"`
	Status        Status           `json:"status"`
	TurnCount     int              `json:"turn_count"`
	Transcript    []Message        `json:"transcript"`
	Context       Context          `json:"context"`
	EmergencyFlag bool             `json:"emergency_flag"`
	Confidence    float64          `json:"confidence"`
}

// New creates an active session with an empty context.
func New(patientRef types.PatientRef) *Session {
	return &Session{
		ID:         types.NewSessionID(),
		PatientRef: patientRef,
		StartedAt:  time.Now(),
		Status:     StatusActive,
		Context:    NewContext(),
	}
}

// Append adds a message to the transcript. The transcript is append-only;
// nothing ever removes or reorders entries.
func (s *Session) Append(msg Message) {
	s.Transcript = append(s.Transcript, msg)
}

// Active reports whether the session accepts further turns.
func (s *Session) Active() bool {
	return s.Status == StatusActive
}

// MarkEmergency sets the sticky emergency flag and completes the session.
// The flag is never reset within a session's life.
func (s *Session) MarkEmergency() {
	s.EmergencyFlag = true
	s.Status = StatusCompleted
}
