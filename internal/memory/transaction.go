package memory

// Turn marks a point in the message sequence so a failed turn can discard
// everything it appended. The agent begins a Turn before appending the
// user message and commits once the final answer lands; a persistent LLM
// failure rolls back instead, leaving no dangling half-turn in context.
type Turn struct {
	store *Store
	mark  int
	done  bool
}

// Begin starts a turn at the current sequence length.
func (s *Store) Begin() *Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Turn{store: s, mark: len(s.messages)}
}

// Commit finalizes the turn and applies the history cap.
func (t *Turn) Commit() {
	if t.done {
		return
	}
	t.done = true

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.store.limit > 0 {
		t.store.trimLocked(t.store.limit)
	}
}

// Rollback discards every message appended since Begin. Safe to call
// after Commit; it then does nothing.
func (t *Turn) Rollback() {
	if t.done {
		return
	}
	t.done = true

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.mark <= len(t.store.messages) {
		t.store.messages = t.store.messages[:t.mark]
	}
}
