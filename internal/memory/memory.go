// Package memory holds the conversation history for one agent session:
// an ordered message log with a system-retaining cap, plus the user
// preferences and facts carried across sessions.
package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/quillsh/quill/internal/types"
)

// recentContextMessages is how many trailing messages Context renders.
const recentContextMessages = 10

// Store owns the message sequence for a single session. One writer is
// assumed; the lock keeps reads consistent while the UI renders.
type Store struct {
	mu           sync.RWMutex
	messages     []types.Message
	preferences  map[string]string
	facts        map[string]string
	limit        int
	totalAdded   int
	totalEvicted int
}

// NewStore creates an empty store. limit caps the number of non-system
// messages retained by Trim; zero or negative means unbounded.
func NewStore(limit int) *Store {
	return &Store{
		messages:    make([]types.Message, 0),
		preferences: make(map[string]string),
		facts:       make(map[string]string),
		limit:       limit,
	}
}

// SetSystem installs or replaces the system prompt at the head of the
// sequence.
func (s *Store) SetSystem(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.messages) > 0 && s.messages[0].Role == types.RoleSystem {
		s.messages[0].Content = content
		return
	}
	s.messages = append([]types.Message{{Role: types.RoleSystem, Content: content}}, s.messages...)
}

// Append adds a message to the end of the sequence. Appending never
// evicts; eviction happens when a turn commits or Trim is called.
func (s *Store) Append(msg types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, msg)
	s.totalAdded++
}

// Trim evicts the oldest non-system messages until at most k remain.
// The system message, when present, is always retained, so the resulting
// length is at most k+1.
func (s *Store) Trim(k int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trimLocked(k)
}

func (s *Store) trimLocked(k int) {
	if k < 0 {
		return
	}

	head := 0
	if len(s.messages) > 0 && s.messages[0].Role == types.RoleSystem {
		head = 1
	}

	tail := len(s.messages) - head
	if tail <= k {
		return
	}

	dropped := tail - k
	s.totalEvicted += dropped
	s.messages = append(s.messages[:head], s.messages[head+dropped:]...)
}

// Snapshot returns a copy of the ordered message sequence.
func (s *Store) Snapshot() []types.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the current sequence length, system message included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Limit returns the configured non-system message cap.
func (s *Store) Limit() int {
	return s.limit
}

// Clear drops the conversation but keeps the system prompt and the
// accumulated preferences and facts.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.messages) > 0 && s.messages[0].Role == types.RoleSystem {
		s.messages = s.messages[:1]
		return
	}
	s.messages = s.messages[:0]
}

// Stats reports lifetime append and eviction counts.
func (s *Store) Stats() (added, evicted int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalAdded, s.totalEvicted
}

// SetPreference records a user preference carried across sessions.
func (s *Store) SetPreference(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences[key] = value
}

// Preferences returns a copy of the stored preferences.
func (s *Store) Preferences() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMap(s.preferences)
}

// AddFact records a remembered fact carried across sessions.
func (s *Store) AddFact(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facts[key] = value
}

// Facts returns a copy of the stored facts.
func (s *Store) Facts() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMap(s.facts)
}

// Context renders preferences, facts, and the recent conversation as a
// text block for the system prompt. Empty when there is nothing to say.
func (s *Store) Context() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b strings.Builder

	if len(s.preferences) > 0 {
		b.WriteString("User preferences:\n")
		for _, k := range sortedKeys(s.preferences) {
			fmt.Fprintf(&b, "- %s: %s\n", k, s.preferences[k])
		}
	}

	if len(s.facts) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Known facts:\n")
		for _, k := range sortedKeys(s.facts) {
			fmt.Fprintf(&b, "- %s: %s\n", k, s.facts[k])
		}
	}

	recent := s.recentLocked(recentContextMessages)
	if len(recent) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Recent conversation:\n")
		for _, msg := range recent {
			fmt.Fprintf(&b, "- %s: %s\n", msg.Role, firstLine(msg.Content))
		}
	}

	return b.String()
}

// recentLocked returns up to n trailing non-system messages.
func (s *Store) recentLocked(n int) []types.Message {
	var out []types.Message
	for _, msg := range s.messages {
		if msg.Role == types.RoleSystem {
			continue
		}
		out = append(out, msg)
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const max = 120
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
