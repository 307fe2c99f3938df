package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/quillsh/quill/internal/types"
)

// savedMemoryCap bounds how many messages a session leaves on disk.
const savedMemoryCap = 40

// memoryFile is the on-disk shape of a persisted session.
type memoryFile struct {
	Preferences map[string]string `json:"preferences"`
	Facts       map[string]string `json:"facts"`
	Messages    []types.Message   `json:"messages"`
}

// Load reads persisted state from path. A missing file is not an error;
// the store simply starts empty. The system prompt is never restored
// from disk, it is rebuilt for every session.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read memory file: %w", err)
	}

	var f memoryFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse memory file %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range f.Preferences {
		s.preferences[k] = v
	}
	for k, v := range f.Facts {
		s.facts[k] = v
	}
	for _, msg := range f.Messages {
		if msg.Role == types.RoleSystem {
			continue
		}
		s.messages = append(s.messages, msg)
	}
	return nil
}

// Save writes preferences, facts, and the trailing messages to path,
// creating parent directories as needed.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	f := memoryFile{
		Preferences: copyMap(s.preferences),
		Facts:       copyMap(s.facts),
		Messages:    s.recentLocked(savedMemoryCap),
	}
	s.mu.RUnlock()

	if f.Messages == nil {
		f.Messages = []types.Message{}
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode memory: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write memory file: %w", err)
	}
	return nil
}
