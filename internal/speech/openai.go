package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Client implements Transcriber and Synthesizer against OpenAI-compatible
// audio APIs. Synthesized clips are written to the store and referenced by
// the returned AudioRef.
type Client struct {
	baseURL         string
	apiKey          string
	transcribeModel string
	speechModel     string
	store           *AudioStore
	httpClient      *http.Client
}

// NewClient creates a speech client. Models default to whisper-1 and tts-1.
func NewClient(baseURL, apiKey string, store *AudioStore) *Client {
	return &Client{
		baseURL:         baseURL,
		apiKey:          apiKey,
		transcribeModel: "whisper-1",
		speechModel:     "tts-1",
		store:           store,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// Transcribe sends the audio to the transcription endpoint.
func (c *Client) Transcribe(ctx context.Context, audio []byte, languageCode string) (*Transcription, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", "audio.ogg")
	if err != nil {
		return nil, fmt.Errorf("%w: build form: %v", ErrTranscription, err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("%w: build form: %v", ErrTranscription, err)
	}
	w.WriteField("model", c.transcribeModel)
	w.WriteField("response_format", "verbose_json")
	if languageCode != "" {
		w.WriteField("language", languageCode)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: build form: %v", ErrTranscription, err)
	}

	url := c.baseURL + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrTranscription, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrTranscription, resp.StatusCode, string(respBody))
	}

	var tr transcriptionResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", ErrTranscription, err)
	}

	// The endpoint reports no per-utterance confidence; treat a successful
	// transcription as high confidence.
	return &Transcription{
		Text:            tr.Text,
		Confidence:      0.9,
		Language:        tr.Language,
		DurationSeconds: tr.Duration,
	}, nil
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize voices the text, stores the clip, and returns its reference.
func (c *Client) Synthesize(ctx context.Context, text string, voice VoiceParams) (*Synthesis, error) {
	v := voice.Voice
	if v == "" {
		v = "alloy"
	}
	body, err := json.Marshal(speechRequest{
		Model:          c.speechModel,
		Input:          text,
		Voice:          v,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrSynthesis, err)
	}

	url := c.baseURL + "/audio/speech"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrSynthesis, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrSynthesis, resp.StatusCode, string(audio))
	}

	duration := estimateSpeechSeconds(text)
	ref, err := c.store.PutClip("audio/mpeg", audio, duration)
	if err != nil {
		return nil, fmt.Errorf("%w: store clip: %v", ErrSynthesis, err)
	}
	return &Synthesis{
		AudioRef:                ref,
		DurationEstimateSeconds: duration,
	}, nil
}

// estimateSpeechSeconds assumes roughly 2.5 spoken words per second.
func estimateSpeechSeconds(text string) float64 {
	words := len(strings.Fields(text))
	return float64(words) / 2.5
}
