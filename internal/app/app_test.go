package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"learnai/pkg/domain"
	"learnai/pkg/psychology"
	"learnai/pkg/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeGenerator struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	history [][]domain.Message
	reply   func(history []domain.Message) (string, error)
}

func (g *fakeGenerator) Chat(_ context.Context, systemPrompt string, history []domain.Message) (string, error) {
	g.mu.Lock()
	g.calls++
	g.prompts = append(g.prompts, systemPrompt)
	g.history = append(g.history, append([]domain.Message(nil), history...))
	reply := g.reply
	g.mu.Unlock()
	if reply == nil {
		return "tutor reply", nil
	}
	return reply(history)
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func (f *fakeObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[key] = data
	return nil
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

type testEnv struct {
	app   *App
	store *store.MemoryStore
	gen   *fakeGenerator
}

func newTestApp(t *testing.T, objects *fakeObjects) testEnv {
	t.Helper()
	tokens, err := store.NewJWTTokenStore(testSecret, time.Hour, store.NewMemoryTokenRevoker(), store.JWTOptions{})
	if err != nil {
		t.Fatalf("token store: %v", err)
	}
	mem := store.NewMemoryStore()
	gen := &fakeGenerator{}
	cfg := Config{Store: mem, Tokens: tokens, Generator: gen}
	if objects != nil {
		cfg.Objects = objects
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return testEnv{app: a, store: mem, gen: gen}
}

func (e testEnv) signUp(t *testing.T, email string) domain.User {
	t.Helper()
	user, _, err := e.app.SignUp(email, "secret1", "Learner")
	if err != nil {
		t.Fatalf("signup %s: %v", email, err)
	}
	return user
}

func (e testEnv) onboard(t *testing.T, userID string) {
	t.Helper()
	answers := psychology.Answers{
		psychology.QuestionLearningConditions: {"adhd"},
		psychology.QuestionLearningMethod:     {"visual"},
		psychology.QuestionPersonality:        {"direct"},
	}
	if _, err := e.app.CompleteOnboarding(userID, answers); err != nil {
		t.Fatalf("onboarding: %v", err)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error without store")
	}
	if _, err := New(Config{Store: store.NewMemoryStore()}); err == nil {
		t.Fatal("expected error without token store")
	}
}

func TestSignUpAndLogin(t *testing.T) {
	env := newTestApp(t, nil)

	user, token, err := env.app.SignUp("  Ada@Example.COM ", "secret1", " Ada ")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.Email != "ada@example.com" || user.Name != "Ada" || user.Membership != domain.MembershipFree {
		t.Fatalf("unexpected user: %+v", user)
	}
	if token == "" {
		t.Fatal("expected token")
	}
	if got, ok := env.app.UserFromToken(token); !ok || got.ID != user.ID {
		t.Fatalf("token resolves to %+v, %v", got, ok)
	}

	if _, _, err := env.app.SignUp("ADA@example.com", "another1", ""); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("duplicate signup err = %v", err)
	}

	_, _, wrongPass := env.app.Login("ada@example.com", "nope-nope")
	_, _, unknown := env.app.Login("ghost@example.com", "secret1")
	if !errors.Is(wrongPass, ErrInvalidCredentials) || !errors.Is(unknown, ErrInvalidCredentials) {
		t.Fatalf("login failures = %v / %v", wrongPass, unknown)
	}
	if wrongPass.Error() != unknown.Error() {
		t.Fatalf("login failures must be indistinguishable: %q vs %q", wrongPass, unknown)
	}

	logged, loginToken, err := env.app.Login("ADA@EXAMPLE.COM", "secret1")
	if err != nil || logged.ID != user.ID {
		t.Fatalf("login = %+v, %v", logged, err)
	}
	if err := env.app.Logout(loginToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := env.app.UserFromToken(loginToken); ok {
		t.Fatal("revoked token still resolves")
	}
	if _, ok := env.app.UserFromToken(token); !ok {
		t.Fatal("logout must only revoke the presented token")
	}
}

func TestSignUpValidation(t *testing.T) {
	env := newTestApp(t, nil)
	tests := []struct {
		email, password string
		want            error
	}{
		{"", "secret1", ErrEmailAndPasswordRequired},
		{"a@b.c", "", ErrEmailAndPasswordRequired},
		{"a@b.c", "12345", ErrPasswordTooShort},
	}
	for _, tc := range tests {
		if _, _, err := env.app.SignUp(tc.email, tc.password, ""); !errors.Is(err, tc.want) {
			t.Fatalf("SignUp(%q, %q) err = %v, want %v", tc.email, tc.password, err, tc.want)
		}
	}
}

func TestGetUser(t *testing.T) {
	env := newTestApp(t, nil)
	user := env.signUp(t, "a@example.com")
	got, err := env.app.GetUser(user.ID)
	if err != nil || got.Email != "a@example.com" {
		t.Fatalf("get user = %+v, %v", got, err)
	}
	if _, err := env.app.GetUser("missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("missing user err = %v", err)
	}
}

func TestUpdateMembership(t *testing.T) {
	env := newTestApp(t, nil)
	user := env.signUp(t, "a@example.com")

	for _, tier := range []string{"platinum", " pro ", "PRO", ""} {
		if _, err := env.app.UpdateMembership(user.ID, tier); !errors.Is(err, ErrInvalidMembership) {
			t.Fatalf("UpdateMembership(%q) err = %v", tier, err)
		}
	}
	if _, err := env.app.UpdateMembership("missing", "pro"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user err = %v", err)
	}
	tier, err := env.app.UpdateMembership(user.ID, "pro")
	if err != nil || tier != domain.MembershipPro {
		t.Fatalf("update = %q, %v", tier, err)
	}
	if got, _ := env.app.GetUser(user.ID); got.Membership != domain.MembershipPro {
		t.Fatalf("membership not persisted: %q", got.Membership)
	}
}

func TestMembershipTiersReturnsCopy(t *testing.T) {
	env := newTestApp(t, nil)
	tiers := env.app.MembershipTiers()
	if len(tiers) != 3 || tiers[0].ID != domain.MembershipFree || tiers[2].Price != 29.99 {
		t.Fatalf("unexpected tiers: %+v", tiers)
	}
	tiers[0].Features[0] = "mutated"
	if env.app.MembershipTiers()[0].Features[0] == "mutated" {
		t.Fatal("tier catalog must not be shared")
	}
}

func TestCompleteOnboardingSupersedesProfile(t *testing.T) {
	env := newTestApp(t, nil)
	user := env.signUp(t, "a@example.com")

	if _, err := env.app.GetProfile(user.ID); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("profile before onboarding err = %v", err)
	}
	first, err := env.app.CompleteOnboarding(user.ID, psychology.Answers{psychology.QuestionSessionLength: {"short"}})
	if err != nil {
		t.Fatalf("first onboarding: %v", err)
	}
	second, err := env.app.CompleteOnboarding(user.ID, psychology.Answers{psychology.QuestionGoal: {"pass my exam"}})
	if err != nil {
		t.Fatalf("second onboarding: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("expected distinct profile ids")
	}

	current, err := env.app.GetProfile(user.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if current.ID != second.ID || current.SessionLength != "medium" {
		t.Fatalf("current profile = %+v, want second with defaults", current)
	}
	if len(current.Goals) != 1 || current.Goals[0] != "pass my exam" {
		t.Fatalf("goals = %v", current.Goals)
	}
}

func TestCompleteOnboardingValidation(t *testing.T) {
	env := newTestApp(t, nil)
	if _, err := env.app.CompleteOnboarding("", psychology.Answers{}); !errors.Is(err, ErrMissingOnboardingFields) {
		t.Fatalf("missing user err = %v", err)
	}
	if _, err := env.app.CompleteOnboarding("u1", nil); !errors.Is(err, ErrMissingOnboardingFields) {
		t.Fatalf("missing answers err = %v", err)
	}
	if _, err := env.app.CompleteOnboarding("ghost", psychology.Answers{}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user err = %v", err)
	}
}

func TestCreateAndListSessions(t *testing.T) {
	env := newTestApp(t, nil)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	env.app.now = func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
	user := env.signUp(t, "a@example.com")

	if _, err := env.app.CreateSession(user.ID, " "); !errors.Is(err, ErrMissingSessionFields) {
		t.Fatalf("blank topic err = %v", err)
	}
	if _, err := env.app.CreateSession("ghost", "math"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user err = %v", err)
	}
	older, err := env.app.CreateSession(user.ID, "fractions")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	newer, err := env.app.CreateSession(user.ID, "decimals")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	sessions, err := env.app.ListUserSessions(user.ID)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != newer.ID || sessions[1].ID != older.ID {
		t.Fatalf("sessions not newest first: %+v", sessions)
	}
	if _, err := env.app.GetSession("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("missing session err = %v", err)
	}
}

func TestChatPersistsBothTurns(t *testing.T) {
	env := newTestApp(t, nil)
	user := env.signUp(t, "a@example.com")
	env.onboard(t, user.ID)
	session, err := env.app.CreateSession(user.ID, "photosynthesis")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	reply, err := env.app.Chat(context.Background(), session.ID, "explain it", "chlorophyll notes")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "tutor reply" {
		t.Fatalf("reply = %q", reply)
	}

	wantUser := "[User uploaded a file with the following content:]\n\nchlorophyll notes\n\n[User's message:] explain it"
	sent := env.gen.history[0]
	if len(sent) != 1 || sent[0].Role != domain.RoleUser || sent[0].Content != wantUser {
		t.Fatalf("history sent to model = %+v", sent)
	}
	if !strings.Contains(env.gen.prompts[0], "photosynthesis") {
		t.Fatal("system prompt should mention the session topic")
	}

	stored, _ := env.app.GetSession(session.ID)
	if len(stored.Messages) != 2 || stored.Messages[1].Role != domain.RoleAssistant || stored.Messages[1].Content != "tutor reply" {
		t.Fatalf("stored transcript = %+v", stored.Messages)
	}
}

func TestChatRequiresProfile(t *testing.T) {
	env := newTestApp(t, nil)
	user := env.signUp(t, "a@example.com")
	session, _ := env.app.CreateSession(user.ID, "math")

	if _, err := env.app.Chat(context.Background(), session.ID, "hi", ""); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("chat without profile err = %v", err)
	}
	if env.gen.calls != 0 {
		t.Fatal("model must not be called without a profile")
	}
	stored, _ := env.app.GetSession(session.ID)
	if len(stored.Messages) != 0 {
		t.Fatalf("transcript should be untouched: %+v", stored.Messages)
	}
}

func TestChatValidation(t *testing.T) {
	env := newTestApp(t, nil)
	if _, err := env.app.Chat(context.Background(), "any", "  ", ""); !errors.Is(err, ErrMissingMessage) {
		t.Fatalf("blank message err = %v", err)
	}
	if _, err := env.app.Chat(context.Background(), "missing", "hi", ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("missing session err = %v", err)
	}
}

func TestChatUpstreamFailureKeepsUserTurn(t *testing.T) {
	env := newTestApp(t, nil)
	user := env.signUp(t, "a@example.com")
	env.onboard(t, user.ID)
	session, _ := env.app.CreateSession(user.ID, "math")

	env.gen.reply = func([]domain.Message) (string, error) { return "", errors.New("overloaded") }
	if _, err := env.app.Chat(context.Background(), session.ID, "first", ""); !errors.Is(err, ErrUpstream) {
		t.Fatalf("upstream failure err = %v", err)
	}
	stored, _ := env.app.GetSession(session.ID)
	if len(stored.Messages) != 1 || stored.Messages[0].Content != "first" {
		t.Fatalf("user turn should be durable: %+v", stored.Messages)
	}

	env.gen.reply = nil
	if _, err := env.app.Chat(context.Background(), session.ID, "second", ""); err != nil {
		t.Fatalf("retry chat: %v", err)
	}
	if sent := env.gen.history[1]; len(sent) != 2 || sent[0].Content != "first" || sent[1].Content != "second" {
		t.Fatalf("history after failure = %+v", sent)
	}
	stored, _ = env.app.GetSession(session.ID)
	if len(stored.Messages) != 3 {
		t.Fatalf("transcript = %+v", stored.Messages)
	}
}

func TestChatUsesMembershipTier(t *testing.T) {
	env := newTestApp(t, nil)
	user := env.signUp(t, "a@example.com")
	env.onboard(t, user.ID)
	session, _ := env.app.CreateSession(user.ID, "math")

	if _, err := env.app.Chat(context.Background(), session.ID, "hi", ""); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if _, err := env.app.UpdateMembership(user.ID, "pro"); err != nil {
		t.Fatalf("update membership: %v", err)
	}
	if _, err := env.app.Chat(context.Background(), session.ID, "again", ""); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if env.gen.prompts[0] == env.gen.prompts[1] {
		t.Fatal("system prompt should change with the membership tier")
	}
}

func TestConcurrentChatTurnsAreSerialized(t *testing.T) {
	env := newTestApp(t, nil)
	user := env.signUp(t, "a@example.com")
	env.onboard(t, user.ID)
	session, _ := env.app.CreateSession(user.ID, "math")

	env.gen.reply = func(history []domain.Message) (string, error) {
		for i, m := range history {
			want := domain.RoleUser
			if i%2 == 1 {
				want = domain.RoleAssistant
			}
			if m.Role != want {
				return "", errors.New("interleaved turns")
			}
		}
		time.Sleep(time.Millisecond)
		return "ok", nil
	}

	const turns = 10
	var wg sync.WaitGroup
	errs := make(chan error, turns)
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.app.Chat(context.Background(), session.ID, "question", "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent chat: %v", err)
		}
	}
	stored, _ := env.app.GetSession(session.ID)
	if len(stored.Messages) != 2*turns {
		t.Fatalf("transcript length = %d, want %d", len(stored.Messages), 2*turns)
	}
}

func TestChatHonorsContextWhileWaiting(t *testing.T) {
	env := newTestApp(t, nil)
	user := env.signUp(t, "a@example.com")
	env.onboard(t, user.ID)
	session, _ := env.app.CreateSession(user.ID, "math")

	unlock, err := env.app.locks.Lock(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := env.app.Chat(ctx, session.ID, "hi", ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("chat while locked err = %v", err)
	}
}

func TestSaveUploadedFile(t *testing.T) {
	objects := &fakeObjects{}
	env := newTestApp(t, objects)
	user := env.signUp(t, "a@example.com")
	other := env.signUp(t, "b@example.com")
	session, _ := env.app.CreateSession(user.ID, "biology")

	plain, err := env.app.SaveUploadedFile(context.Background(), UploadInput{
		UserID: user.ID, SessionID: session.ID, Filename: "notes.txt", Content: "cells divide",
	})
	if err != nil {
		t.Fatalf("plain upload: %v", err)
	}
	if plain.Content != "cells divide" || plain.StorageKey == "" {
		t.Fatalf("plain upload = %+v", plain)
	}

	page := "<html><head><title>x</title></head><body><p>Mitosis</p><script>bad()</script></body></html>"
	encoded, err := env.app.SaveUploadedFile(context.Background(), UploadInput{
		UserID:    user.ID,
		SessionID: session.ID,
		Filename:  "page.html",
		Content:   base64.StdEncoding.EncodeToString([]byte(page)),
		Encoding:  "base64",
	})
	if err != nil {
		t.Fatalf("base64 upload: %v", err)
	}
	if encoded.Content != "Mitosis" {
		t.Fatalf("extracted text = %q", encoded.Content)
	}
	if !bytes.Equal(objects.objects[encoded.StorageKey], []byte(page)) {
		t.Fatal("raw body should be archived")
	}

	files, err := env.app.ListSessionFiles(session.ID)
	if err != nil {
		t.Fatalf("list files: %v", err)
	}
	if len(files) != 2 || files[0].ID != plain.ID || files[1].ID != encoded.ID {
		t.Fatalf("session files = %+v", files)
	}

	bad := []struct {
		name string
		in   UploadInput
		want error
	}{
		{"missing content", UploadInput{UserID: user.ID, Filename: "a.txt"}, ErrMissingUploadFields},
		{"bad base64", UploadInput{UserID: user.ID, Filename: "a.txt", Content: "%%%", Encoding: "base64"}, ErrInvalidUpload},
		{"unknown encoding", UploadInput{UserID: user.ID, Filename: "a.txt", Content: "x", Encoding: "rot13"}, ErrInvalidUpload},
		{"foreign session", UploadInput{UserID: other.ID, SessionID: session.ID, Filename: "a.txt", Content: "x"}, ErrSessionNotFound},
		{"missing session", UploadInput{UserID: user.ID, SessionID: "nope", Filename: "a.txt", Content: "x"}, ErrSessionNotFound},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.app.SaveUploadedFile(context.Background(), tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestSaveUploadedFileArchiveFailure(t *testing.T) {
	env := newTestApp(t, &fakeObjects{putErr: errors.New("bucket gone")})
	user := env.signUp(t, "a@example.com")
	if _, err := env.app.SaveUploadedFile(context.Background(), UploadInput{
		UserID: user.ID, Filename: "a.txt", Content: "x",
	}); err == nil {
		t.Fatal("expected archive failure to surface")
	}
}
