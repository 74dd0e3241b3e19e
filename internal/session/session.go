// ABOUTME: Per-chat collecting-session state for audio additions
// ABOUTME: Tracks which playlist a chat is currently feeding uploads into

package session

import "sync"

// Store keeps the per-chat collecting sessions. A chat has at most one
// target playlist at a time; state lives in process memory only.
type Store struct {
	mu         sync.RWMutex
	collecting map[int64]string // chatID -> playlist ID
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{collecting: make(map[int64]string)}
}

// StartCollecting routes the chat's future uploads into the given playlist,
// replacing any previous target.
func (s *Store) StartCollecting(chatID int64, listID string) {
	s.mu.Lock()
	s.collecting[chatID] = listID
	s.mu.Unlock()
}

// Collecting returns the chat's target playlist, if one is set.
func (s *Store) Collecting(chatID int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	listID, ok := s.collecting[chatID]
	return listID, ok
}

// StopCollecting clears the chat's collecting session.
func (s *Store) StopCollecting(chatID int64) {
	s.mu.Lock()
	delete(s.collecting, chatID)
	s.mu.Unlock()
}
