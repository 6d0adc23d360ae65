package service

import (
	"errors"
	"sync"

	"filelinker/internal/model"
)

var (
	ErrSessionOpen = errors.New("batch session already open")
	ErrNoSession   = errors.New("no batch session open")
	ErrEmptyBatch  = errors.New("no files in batch")
)

// SessionStore holds one in-memory batch session per admin.
// Sessions are lost on restart.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64][]model.Upload
}

// NewSessionStore returns an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[int64][]model.Upload)}
}

// Begin opens a session for adminID. An already open session is left intact and ErrSessionOpen is returned.
func (s *SessionStore) Begin(adminID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[adminID]; ok {
		return ErrSessionOpen
	}
	s.sessions[adminID] = []model.Upload{}
	return nil
}

// Discard drops the open session and returns how many files it held.
func (s *SessionStore) Discard(adminID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	files, ok := s.sessions[adminID]
	if !ok {
		return 0, ErrNoSession
	}
	delete(s.sessions, adminID)
	return len(files), nil
}

// Active reports whether adminID is collecting.
func (s *SessionStore) Active(adminID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[adminID]
	return ok
}

// Add appends up to the open session and returns the new size.
func (s *SessionStore) Add(adminID int64, up model.Upload) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	files, ok := s.sessions[adminID]
	if !ok {
		return 0, ErrNoSession
	}
	files = append(files, up)
	s.sessions[adminID] = files
	return len(files), nil
}

// Len returns the number of files collected so far.
func (s *SessionStore) Len(adminID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	files, ok := s.sessions[adminID]
	if !ok {
		return 0, ErrNoSession
	}
	return len(files), nil
}

// Commit passes the collected uploads to commit and closes the session only when commit succeeds.
// An empty session stays open and ErrEmptyBatch is returned without calling commit.
func (s *SessionStore) Commit(adminID int64, commit func(files []model.Upload) error) error {
	files, err := s.take(adminID)
	if err != nil {
		return err
	}
	if err := commit(files); err != nil {
		s.restore(adminID, files)
		return err
	}
	return nil
}

// take closes the session for the duration of a commit.
func (s *SessionStore) take(adminID int64) ([]model.Upload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	files, ok := s.sessions[adminID]
	if !ok {
		return nil, ErrNoSession
	}
	if len(files) == 0 {
		return nil, ErrEmptyBatch
	}
	delete(s.sessions, adminID)
	return files, nil
}

// restore puts files back ahead of anything collected since take.
func (s *SessionStore) restore(adminID int64, files []model.Upload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[adminID] = append(files, s.sessions[adminID]...)
}
