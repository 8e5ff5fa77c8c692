package chat

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", "#", "_").Replace(t.Name())
	db, err := gorm.Open(gormsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Session{}, &Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestCreateSession_Defaults(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)))

	s, err := svc.CreateSession(context.Background(), 1)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(s.ID) != 16 {
		t.Fatalf("expected 16-char id, got %q", s.ID)
	}
	if s.Title != "New Chat" {
		t.Fatalf("expected placeholder title, got %q", s.Title)
	}
}

func TestAddMessage_AutoTitleFromFirstPrompt(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)))

	cases := []struct {
		prompt string
		title  string
	}{
		{"Give me a summary of this paper", "AI Summary"},
		{"What role should I play?", "Role Discussion"},
		{"Hello there", "Hello there"},
		{strings.Repeat("x", 60), strings.Repeat("x", 47) + "..."},
	}

	for _, tc := range cases {
		s, err := svc.CreateSession(context.Background(), 1)
		if err != nil {
			t.Fatalf("create session: %v", err)
		}
		if _, err := svc.AddMessage(context.Background(), 1, s.ID, SenderUser, tc.prompt, nil); err != nil {
			t.Fatalf("add message: %v", err)
		}
		got, err := svc.repo.GetSession(context.Background(), s.ID)
		if err != nil {
			t.Fatalf("get session: %v", err)
		}
		if got.Title != tc.title {
			t.Fatalf("prompt %q: expected title %q, got %q", tc.prompt, tc.title, got.Title)
		}
	}
}

func TestAddMessage_SecondPromptKeepsTitle(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)))

	s, _ := svc.CreateSession(context.Background(), 1)
	if _, err := svc.AddMessage(context.Background(), 1, s.ID, SenderUser, "First", nil); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := svc.AddMessage(context.Background(), 1, s.ID, SenderUser, "Second entirely different", nil); err != nil {
		t.Fatalf("second: %v", err)
	}
	got, _ := svc.repo.GetSession(context.Background(), s.ID)
	if got.Title != "First" {
		t.Fatalf("title changed after first prompt: %q", got.Title)
	}
}

func TestAddMessage_RoleIDOnlyForAI(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)))

	s, _ := svc.CreateSession(context.Background(), 1)
	rid := uint64(7)
	if _, err := svc.AddMessage(context.Background(), 1, s.ID, SenderUser, "hi", &rid); err != nil {
		t.Fatalf("user msg: %v", err)
	}
	if _, err := svc.AddMessage(context.Background(), 1, s.ID, SenderAI, "hello", &rid); err != nil {
		t.Fatalf("ai msg: %v", err)
	}

	msgs, err := svc.GetMessages(context.Background(), 1, s.ID)
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].RoleID != nil {
		t.Fatalf("user message must not carry a role id")
	}
	if msgs[1].RoleID == nil || *msgs[1].RoleID != 7 {
		t.Fatalf("ai message should carry role id 7, got %v", msgs[1].RoleID)
	}
}

func TestGetMessages_OwnershipHidden(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)))

	s, _ := svc.CreateSession(context.Background(), 1)
	if _, err := svc.GetMessages(context.Background(), 2, s.ID); err != gorm.ErrRecordNotFound {
		t.Fatalf("expected record-not-found for foreign user, got %v", err)
	}
}

func TestListSessions_MostRecentlyUpdatedFirst(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	svc := NewService(repo)

	older, _ := svc.CreateSession(context.Background(), 1)
	newer, _ := svc.CreateSession(context.Background(), 1)

	// backdate both, then touch the older one via a message append
	past := time.Now().Add(-time.Hour)
	for _, id := range []string{older.ID, newer.ID} {
		if err := db.Model(&Session{}).Where("id = ?", id).Update("updated_at", past).Error; err != nil {
			t.Fatalf("backdate: %v", err)
		}
	}
	if _, err := svc.AddMessage(context.Background(), 1, older.ID, SenderUser, "bump", nil); err != nil {
		t.Fatalf("add message: %v", err)
	}

	list, err := svc.ListSessions(context.Background(), 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != older.ID {
		t.Fatalf("expected bumped session first, got %+v", list)
	}
}

func TestDeleteSession_CascadesMessages(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(NewRepo(db))

	s, _ := svc.CreateSession(context.Background(), 1)
	if _, err := svc.AddMessage(context.Background(), 1, s.ID, SenderUser, "hi", nil); err != nil {
		t.Fatalf("add message: %v", err)
	}
	if err := svc.DeleteSession(context.Background(), 1, s.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var n int64
	if err := db.Model(&Message{}).Where("session_id = ?", s.ID).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected cascaded message delete, %d left", n)
	}
	if err := svc.DeleteSession(context.Background(), 1, s.ID); err != gorm.ErrRecordNotFound {
		t.Fatalf("expected record-not-found after delete, got %v", err)
	}
}
