// Package session manages conversation sessions and their bounded history.
package session

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/TobiSchelling/MindCare/internal/database"
)

const (
	// DefaultHistoryTurns is how many recent turns feed the prompt.
	DefaultHistoryTurns = 5
	// DefaultHistoryMaxChars bounds the rendered history text.
	DefaultHistoryMaxChars = 2048

	titleMaxRunes = 50
)

// Store manages sessions for owners on top of the durable store.
type Store struct {
	db    *database.DB
	newID func() string
}

// NewStore creates a session store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db, newID: uuid.NewString}
}

// Resolve returns sessionID unchanged if it names a session owned by ownerID.
// Otherwise a new session is created and its id returned.
func (s *Store) Resolve(ownerID, sessionID string) (string, error) {
	if sessionID != "" {
		existing, err := s.db.GetSession(ownerID, sessionID)
		if err != nil {
			return "", fmt.Errorf("looking up session: %w", err)
		}
		if existing != nil {
			return sessionID, nil
		}
	}

	created, err := s.Create(ownerID)
	if err != nil {
		return "", err
	}
	return created.SessionID, nil
}

// Create starts a new empty session for ownerID.
func (s *Store) Create(ownerID string) (*database.Session, error) {
	id := s.newID()
	if err := s.db.InsertSession(id, ownerID); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	created, err := s.db.GetSession(ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("reading new session: %w", err)
	}
	return created, nil
}

// RecentHistory returns the newest limit turns, oldest first. A non-positive
// limit uses DefaultHistoryTurns.
func (s *Store) RecentHistory(ownerID, sessionID string, limit int) ([]database.Turn, error) {
	if limit <= 0 {
		limit = DefaultHistoryTurns
	}
	return s.db.GetRecentTurns(ownerID, sessionID, limit)
}

// RecordTurn appends t to its session. The session's counters and timestamp
// are updated in the same transaction; its title is set from the query only
// for the first turn.
func (s *Store) RecordTurn(t database.Turn) error {
	if _, err := s.db.InsertTurn(t, Title(t.UserQuery)); err != nil {
		return fmt.Errorf("recording turn: %w", err)
	}
	return nil
}

// ListSessions returns the owner's sessions, most recently updated first.
func (s *Store) ListSessions(ownerID string) ([]database.Session, error) {
	return s.db.GetSessionsForOwner(ownerID)
}

// Get returns the owner's session or nil.
func (s *Store) Get(ownerID, sessionID string) (*database.Session, error) {
	return s.db.GetSession(ownerID, sessionID)
}

// Messages returns every turn of the session, oldest first. Foreign or
// missing sessions yield an empty slice.
func (s *Store) Messages(ownerID, sessionID string) ([]database.Turn, error) {
	return s.db.GetSessionTurns(ownerID, sessionID)
}

// Delete removes the session and its turns. Deleting a missing or foreign
// session succeeds.
func (s *Store) Delete(ownerID, sessionID string) error {
	return s.db.DeleteSession(ownerID, sessionID)
}

// ClearHistory removes all of the owner's sessions and turns.
func (s *Store) ClearHistory(ownerID string) (int64, error) {
	return s.db.DeleteSessionsForOwner(ownerID)
}

// Title derives a session title from the first user query.
func Title(query string) string {
	query = strings.TrimSpace(query)
	runes := []rune(query)
	if len(runes) <= titleMaxRunes {
		return query
	}
	return string(runes[:titleMaxRunes]) + "..."
}

// HistoryText renders turns as alternating user/counselor lines and keeps
// only the trailing maxChars characters.
func HistoryText(turns []database.Turn, maxChars int) string {
	if len(turns) == 0 {
		return ""
	}
	if maxChars <= 0 {
		maxChars = DefaultHistoryMaxChars
	}

	lines := make([]string, 0, len(turns)*2)
	for _, t := range turns {
		lines = append(lines, "用户："+t.UserQuery, "咨询师："+t.SystemReply)
	}
	text := []rune(strings.Join(lines, "\n"))
	if len(text) > maxChars {
		text = text[len(text)-maxChars:]
	}
	return string(text)
}
