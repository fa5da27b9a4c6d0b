package speech

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("expected model whisper-1, got %s", got)
		}
		if got := r.FormValue("language"); got != "en" {
			t.Errorf("expected language en, got %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"I have a headache","language":"en","duration":2.4}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key", nil)
	tr, err := c.Transcribe(context.Background(), []byte("fake-ogg"), "en")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if tr.Text != "I have a headache" {
		t.Errorf("expected transcribed text, got %q", tr.Text)
	}
	if tr.DurationSeconds != 2.4 {
		t.Errorf("expected duration 2.4, got %v", tr.DurationSeconds)
	}
}

func TestClientTranscribeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key", nil)
	_, err := c.Transcribe(context.Background(), []byte("fake-ogg"), "")
	if !errors.Is(err, ErrTranscription) {
		t.Errorf("expected ErrTranscription, got %v", err)
	}
}

func TestClientSynthesizeStoresClip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte("fake-mp3-bytes"))
	}))
	defer server.Close()

	store := NewAudioStore(t.TempDir())
	c := NewClient(server.URL, "test-key", store)
	syn, err := c.Synthesize(context.Background(), "Hello! How can I help?", VoiceParams{})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if syn.AudioRef == "" {
		t.Fatal("expected audio ref")
	}

	data, meta, err := store.Get(syn.AudioRef)
	if err != nil {
		t.Fatalf("get clip: %v", err)
	}
	if string(data) != "fake-mp3-bytes" {
		t.Errorf("unexpected clip bytes %q", data)
	}
	if meta.MimeType != "audio/mpeg" {
		t.Errorf("expected audio/mpeg, got %s", meta.MimeType)
	}
}

func TestClientSynthesizeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key", NewAudioStore(t.TempDir()))
	_, err := c.Synthesize(context.Background(), "hi", VoiceParams{})
	if !errors.Is(err, ErrSynthesis) {
		t.Errorf("expected ErrSynthesis, got %v", err)
	}
}
