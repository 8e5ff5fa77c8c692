package chat

import (
	"context"
	"strings"

	"gorm.io/gorm"
)

const defaultTitle = "New Chat"

type Service struct {
	repo *Repo
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateSession(ctx context.Context, userID uint64) (*Session, error) {
	id, err := NewSessionID()
	if err != nil {
		return nil, err
	}
	session := &Session{
		ID:     id,
		UserID: userID,
		Title:  defaultTitle,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) ListSessions(ctx context.Context, userID uint64) ([]Session, error) {
	return s.repo.ListSessions(ctx, userID)
}

func (s *Service) GetMessages(ctx context.Context, userID uint64, sessionID string) ([]Message, error) {
	if _, err := s.ensureOwned(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, sessionID)
}

// AddMessage appends to the transcript. A user message that is the first in
// the session replaces the placeholder title; every append bumps updated_at.
func (s *Service) AddMessage(ctx context.Context, userID uint64, sessionID, sender, content string, roleID *uint64) (*Message, error) {
	session, err := s.ensureOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	m := &Message{
		SessionID: sessionID,
		UserID:    userID,
		Sender:    sender,
		Content:   content,
	}
	if sender == SenderAI {
		m.RoleID = roleID
	}
	if err := s.repo.InsertMessage(ctx, m); err != nil {
		return nil, err
	}

	if strings.EqualFold(sender, SenderUser) {
		if n, err := s.repo.CountUserMessages(ctx, sessionID); err == nil && n == 1 {
			s.autoTitleIfNeeded(ctx, session, content)
		}
	}
	if err := s.repo.TouchSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) DeleteSession(ctx context.Context, userID uint64, sessionID string) error {
	if _, err := s.ensureOwned(ctx, userID, sessionID); err != nil {
		return err
	}
	return s.repo.DeleteSession(ctx, sessionID)
}

func (s *Service) ValidateSessionOwner(ctx context.Context, userID uint64, sessionID string) error {
	_, err := s.ensureOwned(ctx, userID, sessionID)
	return err
}

func (s *Service) ensureOwned(ctx context.Context, userID uint64, sessionID string) (*Session, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		// hide existence
		return nil, gorm.ErrRecordNotFound
	}
	return session, nil
}

func (s *Service) autoTitleIfNeeded(ctx context.Context, session *Session, firstPrompt string) {
	if session.Title != "" && session.Title != defaultTitle {
		return
	}
	trimmed := strings.TrimSpace(firstPrompt)
	if trimmed == "" {
		return
	}

	var title string
	lower := strings.ToLower(trimmed)
	switch {
	case strings.Contains(lower, "summary"):
		title = "AI Summary"
	case strings.Contains(lower, "role"):
		title = "Role Discussion"
	case len([]rune(trimmed)) > 50:
		title = string([]rune(trimmed)[:47]) + "..."
	default:
		title = trimmed
	}

	session.Title = title
	// best-effort: the message append already succeeded
	_ = s.repo.SaveSession(ctx, session)
}
