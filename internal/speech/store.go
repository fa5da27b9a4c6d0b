package speech

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/curax/triage/internal/types"
)

// ClipMeta describes one stored audio clip.
type ClipMeta struct {
	Ref             string          `json:"ref"`
	SessionID       types.SessionID `json:"session_id"`
	MessageID       types.MessageID `json:"message_id"`
	MimeType        string          `json:"mime_type"`
	DurationSeconds float64         `json:"duration_seconds"`
	CreatedAt       time.Time       `json:"created_at"`
}

// AudioStore keeps synthesized clips on disk, one file per clip plus a
// sidecar meta file, under sessions/<sessionID>/audio/.
type AudioStore struct {
	root string
	mu   sync.Mutex
}

// NewAudioStore creates a file-backed AudioStore rooted at the given directory.
func NewAudioStore(root string) *AudioStore {
	return &AudioStore{root: root}
}

func (s *AudioStore) audioDir(sessionID types.SessionID) string {
	return filepath.Join(s.root, "sessions", string(sessionID), "audio")
}

// Put stores a clip and returns its reference.
func (s *AudioStore) Put(sessionID types.SessionID, messageID types.MessageID, mimeType string, data []byte, duration float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := uuid.New().String()
	dir := s.audioDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}

	meta := ClipMeta{
		Ref:             ref,
		SessionID:       sessionID,
		MessageID:       messageID,
		MimeType:        mimeType,
		DurationSeconds: duration,
		CreatedAt:       time.Now(),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal clip meta: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ref+".bin"), data, 0o644); err != nil {
		return "", fmt.Errorf("write clip: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ref+".json"), metaJSON, 0o644); err != nil {
		return "", fmt.Errorf("write clip meta: %w", err)
	}
	return ref, nil
}

// PutClip stores a clip not yet tied to a session, under clips/. Synthesis
// runs before the assistant message is persisted, so the session key is not
// known at write time.
func (s *AudioStore) PutClip(mimeType string, data []byte, duration float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := uuid.New().String()
	dir := filepath.Join(s.root, "clips")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create clips dir: %w", err)
	}

	meta := ClipMeta{
		Ref:             ref,
		MimeType:        mimeType,
		DurationSeconds: duration,
		CreatedAt:       time.Now(),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal clip meta: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ref+".bin"), data, 0o644); err != nil {
		return "", fmt.Errorf("write clip: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ref+".json"), metaJSON, 0o644); err != nil {
		return "", fmt.Errorf("write clip meta: %w", err)
	}
	return ref, nil
}

// Get returns the clip bytes and metadata for a reference. The ref is
// located by glob across sessions, mirroring how rarely clips are read back.
func (s *AudioStore) Get(ref string) ([]byte, *ClipMeta, error) {
	patterns := []string{
		filepath.Join(s.root, "clips", ref+".json"),
		filepath.Join(s.root, "sessions", "*", "audio", ref+".json"),
	}
	var matches []string
	for _, pattern := range patterns {
		found, err := filepath.Glob(pattern)
		if err != nil {
			return nil, nil, fmt.Errorf("glob clip: %w", err)
		}
		matches = append(matches, found...)
	}
	if len(matches) == 0 {
		return nil, nil, fmt.Errorf("audio clip not found: %s", ref)
	}

	metaJSON, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read clip meta: %w", err)
	}
	var meta ClipMeta
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, nil, fmt.Errorf("unmarshal clip meta: %w", err)
	}

	data, err := os.ReadFile(matches[0][:len(matches[0])-len(".json")] + ".bin")
	if err != nil {
		return nil, nil, fmt.Errorf("read clip: %w", err)
	}
	return data, &meta, nil
}
