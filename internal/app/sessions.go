package app

import (
	"context"
	"fmt"
	"strings"

	"learnai/internal/util"
	"learnai/pkg/domain"
	"learnai/pkg/psychology"
)

// CreateSession opens an empty tutoring session on topic for an existing user.
func (a *App) CreateSession(userID, topic string) (domain.Session, error) {
	userID = strings.TrimSpace(userID)
	topic = strings.TrimSpace(topic)
	if userID == "" || topic == "" {
		return domain.Session{}, ErrMissingSessionFields
	}
	if _, err := a.GetUser(userID); err != nil {
		return domain.Session{}, err
	}
	session := domain.Session{
		ID:        util.NewID(),
		UserID:    userID,
		Topic:     topic,
		Messages:  []domain.Message{},
		StartedAt: a.now().UTC(),
	}
	if err := a.store.CreateSession(session); err != nil {
		return domain.Session{}, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

// GetSession returns a session with its full transcript.
func (a *App) GetSession(id string) (domain.Session, error) {
	session, ok, err := a.store.GetSession(strings.TrimSpace(id))
	if err != nil {
		return domain.Session{}, fmt.Errorf("fetch session: %w", err)
	}
	if !ok {
		return domain.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// ListUserSessions returns the user's sessions, newest first.
func (a *App) ListUserSessions(userID string) ([]domain.Session, error) {
	sessions, err := a.store.ListSessionsByUser(strings.TrimSpace(userID))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Chat runs one tutoring turn. Turns on the same session are serialized.
// The user message is persisted before the model is called, so on
// ErrUpstream it stays in the transcript without a reply.
func (a *App) Chat(ctx context.Context, sessionID, message, fileContent string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrMissingMessage
	}
	sessionID = strings.TrimSpace(sessionID)
	unlock, err := a.locks.Lock(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("wait for session: %w", err)
	}
	defer unlock()

	session, err := a.GetSession(sessionID)
	if err != nil {
		return "", err
	}
	profile, err := a.GetProfile(session.UserID)
	if err != nil {
		return "", err
	}
	tier := domain.MembershipFree
	if user, ok, err := a.store.GetUserByID(session.UserID); err != nil {
		return "", fmt.Errorf("fetch user: %w", err)
	} else if ok {
		tier = user.Membership.Normalize()
	}

	turn := domain.Message{Role: domain.RoleUser, Content: userTurnText(message, fileContent)}
	if err := a.store.AppendSessionMessages(session.ID, turn); err != nil {
		return "", fmt.Errorf("append user message: %w", err)
	}
	history := append(session.Messages, turn)

	systemPrompt := psychology.RenderSystemPrompt(profile, session.Topic, tier)
	reply, err := a.generator.Chat(ctx, systemPrompt, history)
	if err != nil {
		util.LoggerFromContext(ctx).Error("tutor call failed", "session_id", session.ID, "err", err)
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	if err := a.store.AppendSessionMessages(session.ID, domain.Message{Role: domain.RoleAssistant, Content: reply}); err != nil {
		return "", fmt.Errorf("append assistant message: %w", err)
	}
	return reply, nil
}

func userTurnText(message, fileContent string) string {
	if fileContent == "" {
		return message
	}
	return "[User uploaded a file with the following content:]\n\n" + fileContent + "\n\n[User's message:] " + message
}
