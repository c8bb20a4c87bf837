package session

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TobiSchelling/MindCare/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestResolveCreatesNewSession(t *testing.T) {
	s := NewStore(openTestDB(t))

	a, err := s.Resolve("alice", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := s.Resolve("alice", "")
	if a == "" || a == b {
		t.Errorf("expected two distinct ids, got %q and %q", a, b)
	}

	sess, _ := s.Get("alice", a)
	if sess == nil {
		t.Fatal("expected session to exist")
	}
	if sess.Title != database.DefaultSessionTitle || sess.MessageCount != 0 {
		t.Errorf("unexpected new session: %+v", sess)
	}
}

func TestResolveKeepsOwnedSession(t *testing.T) {
	s := NewStore(openTestDB(t))
	id, _ := s.Resolve("alice", "")

	got, err := s.Resolve("alice", id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != id {
		t.Errorf("expected %q unchanged, got %q", id, got)
	}
}

func TestResolveForeignOrUnknownSession(t *testing.T) {
	s := NewStore(openTestDB(t))
	aliceSession, _ := s.Resolve("alice", "")

	got, _ := s.Resolve("bob", aliceSession)
	if got == aliceSession {
		t.Error("bob must not be handed alice's session")
	}

	got, _ = s.Resolve("bob", "does-not-exist")
	if got == "does-not-exist" {
		t.Error("unknown ids must not be adopted")
	}
}

func TestRecordTurnTitleAndCount(t *testing.T) {
	s := NewStore(openTestDB(t))
	id, _ := s.Resolve("alice", "")

	long := strings.Repeat("睡", 60)
	if err := s.RecordTurn(database.Turn{OwnerID: "alice", SessionID: id, UserQuery: long, SystemReply: "r"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.RecordTurn(database.Turn{OwnerID: "alice", SessionID: id, UserQuery: "第二个问题", SystemReply: "r"})

	sess, _ := s.Get("alice", id)
	if sess.MessageCount != 2 {
		t.Errorf("expected 2 messages, got %d", sess.MessageCount)
	}
	want := strings.Repeat("睡", 50) + "..."
	if sess.Title != want {
		t.Errorf("expected truncated first query as title, got %q", sess.Title)
	}
}

func TestRecentHistory(t *testing.T) {
	s := NewStore(openTestDB(t))
	id, _ := s.Resolve("alice", "")
	for i := 1; i <= 7; i++ {
		s.RecordTurn(database.Turn{OwnerID: "alice", SessionID: id, UserQuery: fmt.Sprintf("q%d", i), SystemReply: "r"})
	}

	turns, err := s.RecentHistory("alice", id, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != DefaultHistoryTurns {
		t.Fatalf("expected %d turns, got %d", DefaultHistoryTurns, len(turns))
	}
	if turns[0].UserQuery != "q3" || turns[4].UserQuery != "q7" {
		t.Errorf("expected q3..q7 oldest first, got %s..%s", turns[0].UserQuery, turns[4].UserQuery)
	}
}

func TestDeleteRemovesMessages(t *testing.T) {
	s := NewStore(openTestDB(t))
	id, _ := s.Resolve("alice", "")
	s.RecordTurn(database.Turn{OwnerID: "alice", SessionID: id, UserQuery: "q", SystemReply: "r"})

	if err := s.Delete("alice", id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msgs, err := s.Messages("alice", id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected no messages after delete, got %d", len(msgs))
	}
	if err := s.Delete("alice", id); err != nil {
		t.Errorf("second delete should succeed, got %v", err)
	}
}

func TestClearHistory(t *testing.T) {
	s := NewStore(openTestDB(t))
	s.Resolve("alice", "")
	s.Resolve("alice", "")
	s.Resolve("bob", "")

	n, err := s.ClearHistory("alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 sessions cleared, got %d", n)
	}
	list, _ := s.ListSessions("bob")
	if len(list) != 1 {
		t.Errorf("expected bob's session to survive, got %d", len(list))
	}
}

func TestTitle(t *testing.T) {
	if got := Title("  短问题  "); got != "短问题" {
		t.Errorf("expected trimmed query, got %q", got)
	}
	exact := strings.Repeat("a", 50)
	if got := Title(exact); got != exact {
		t.Errorf("expected 50-char query unchanged, got %q", got)
	}
}

func TestHistoryText(t *testing.T) {
	turns := []database.Turn{
		{UserQuery: "我睡不着", SystemReply: "试试放松训练"},
		{UserQuery: "还是不行", SystemReply: "可以找咨询中心"},
	}
	got := HistoryText(turns, 0)
	want := "用户：我睡不着\n咨询师：试试放松训练\n用户：还是不行\n咨询师：可以找咨询中心"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	tail := HistoryText(turns, 7)
	if tail != "可以找咨询中心" {
		t.Errorf("expected trailing characters, got %q", tail)
	}

	if HistoryText(nil, 10) != "" {
		t.Error("expected empty text for no turns")
	}
}
