// Package speech defines the opaque transcription and synthesis
// collaborators the session engine depends on, plus a file-backed store for
// synthesized audio clips. The engine never inspects audio bytes itself.
package speech

import (
	"context"
	"errors"
)

// ErrTranscription wraps failures from the transcription service.
var ErrTranscription = errors.New("transcription service error")

// ErrSynthesis wraps failures from the synthesis service. Callers must
// treat it as "no audio produced", never as fatal to a turn.
var ErrSynthesis = errors.New("synthesis service error")

// Word is one recognized word with timing.
type Word struct {
	Word       string  `json:"word"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Confidence float64 `json:"confidence"`
}

// Transcription is the result of converting audio to text.
type Transcription struct {
	Text            string  `json:"text"`
	Confidence      float64 `json:"confidence"`
	Language        string  `json:"language"`
	DurationSeconds float64 `json:"duration_seconds"`
	Words           []Word  `json:"words,omitempty"`
}

// Synthesis is the result of converting text to audio.
type Synthesis struct {
	AudioRef                string  `json:"audio_ref"`
	DurationEstimateSeconds float64 `json:"duration_estimate_seconds"`
}

// VoiceParams selects the synthesis voice.
type VoiceParams struct {
	LanguageCode string `json:"language_code"`
	Voice        string `json:"voice"`
	Gender       string `json:"gender,omitempty"`
}

// Transcriber converts raw audio (or an audio reference) to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, languageCode string) (*Transcription, error)
}

// Synthesizer converts text to an audio clip and returns a reference to it.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice VoiceParams) (*Synthesis, error)
}
