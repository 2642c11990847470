package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"learnai/internal/apidoc"
	"learnai/internal/app"
	"learnai/internal/ratelimit"
	"learnai/internal/util"
	"learnai/pkg/domain"
	"learnai/pkg/psychology"
)

const defaultMaxBodyBytes = 10 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App

	// Redis backs the rate limiters. When nil, limits are kept per process.
	Redis                    *redis.Client
	TrustedProxies           *util.TrustedProxies
	AllowedOrigins           []string
	MaxBodyBytes             int64
	SignupRateLimitPerMinute int
	LoginRateLimitPerMinute  int
	ChatRateLimitPerMinute   int
}

// Server exposes the tutoring API over HTTP.
type Server struct {
	app            *app.App
	router         *mux.Router
	trusted        *util.TrustedProxies
	allowedOrigins []string
	maxBodyBytes   int64
	signupLimiter  *ratelimit.FixedWindowLimiter
	loginLimiter   *ratelimit.FixedWindowLimiter
	chatLimiter    *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	newLimiter := func(name string, limit, fallback int) (*ratelimit.FixedWindowLimiter, error) {
		if limit <= 0 {
			limit = fallback
		}
		limiter, err := ratelimit.NewFixedWindowLimiter(cfg.Redis, "learnai:ratelimit:"+name, limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	signupLimiter, err := newLimiter("signup", cfg.SignupRateLimitPerMinute, 5)
	if err != nil {
		return nil, err
	}
	loginLimiter, err := newLimiter("login", cfg.LoginRateLimitPerMinute, 10)
	if err != nil {
		return nil, err
	}
	chatLimiter, err := newLimiter("chat", cfg.ChatRateLimitPerMinute, 30)
	if err != nil {
		return nil, err
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	s := &Server{
		app:            cfg.App,
		router:         mux.NewRouter(),
		trusted:        cfg.TrustedProxies,
		allowedOrigins: cfg.AllowedOrigins,
		maxBodyBytes:   maxBody,
		signupLimiter:  signupLimiter,
		loginLimiter:   loginLimiter,
		chatLimiter:    chatLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.allowedOrigins, s.router))))
}

// Routes lists every method and path template served by the router.
func (s *Server) Routes() ([]apidoc.Route, error) {
	var out []apidoc.Route
	err := s.router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			return err
		}
		methods, err := route.GetMethods()
		if err != nil {
			return err
		}
		for _, m := range methods {
			out = append(out, apidoc.Route{Method: m, Path: path})
		}
		return nil
	})
	return out, err
}

func (s *Server) routes() {
	r := s.router
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	// auth
	r.HandleFunc("/api/auth/signup", s.handleSignup).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", s.handleLogout).Methods(http.MethodPost)
	r.Handle("/api/auth/me", s.authenticated(s.handleMe)).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/user/{userId}", s.handleGetUser).Methods(http.MethodGet)

	// membership
	r.HandleFunc("/api/membership/update", s.handleUpdateMembership).Methods(http.MethodPost)
	r.HandleFunc("/api/membership/tiers", s.handleTiers).Methods(http.MethodGet)

	// onboarding
	r.HandleFunc("/api/onboarding/questions", s.handleQuestions).Methods(http.MethodGet)
	r.HandleFunc("/api/onboarding/complete", s.handleCompleteOnboarding).Methods(http.MethodPost)
	r.HandleFunc("/api/users/{userId}/profile", s.handleGetProfile).Methods(http.MethodGet)

	// sessions
	r.HandleFunc("/api/sessions", s.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{sessionId}", s.handleGetSession).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{sessionId}/chat", s.handleChat).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{sessionId}/files", s.handleSessionFiles).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{userId}/sessions", s.handleUserSessions).Methods(http.MethodGet)

	// files
	r.HandleFunc("/api/files/upload", s.handleUpload).Methods(http.MethodPost)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "auth.token.verify", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, ok := s.app.UserFromToken(token)
		if !ok {
			s.audit(r, "auth.token.verify", "fail", "reason", "invalid_or_revoked")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

// auth handlers
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.signupLimiter, "", "too many signup attempts") {
		s.audit(r, "auth.signup", "rate_limited")
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	user, token, err := s.app.SignUp(req.Email, req.Password, req.Name)
	if err != nil {
		s.audit(r, "auth.signup", "fail", "reason", err.Error())
		writeAppError(w, r, err, "Failed to create account")
		return
	}
	s.audit(r, "auth.signup", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "token": token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.loginLimiter, "", "too many login attempts") {
		s.audit(r, "auth.login", "rate_limited")
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	user, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		s.audit(r, "auth.login", "fail", "reason", err.Error())
		writeAppError(w, r, err, "Failed to login")
		return
	}
	s.audit(r, "auth.login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.app.Logout(token); err != nil {
		s.audit(r, "auth.logout", "fail")
		writeAppError(w, r, err, "Failed to logout")
		return
	}
	s.audit(r, "auth.logout", "success")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, user domain.User) {
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.app.GetUser(mux.Vars(r)["userId"])
	if err != nil {
		writeAppError(w, r, err, "Failed to get user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// membership handlers
func (s *Server) handleUpdateMembership(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     string `json:"userId"`
		Membership string `json:"membership"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	tier, err := s.app.UpdateMembership(req.UserID, req.Membership)
	if err != nil {
		writeAppError(w, r, err, "Failed to update membership")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "membership": tier})
}

func (s *Server) handleTiers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tiers": s.app.MembershipTiers()})
}

// onboarding handlers
func (s *Server) handleQuestions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.OnboardingQuestions())
}

func (s *Server) handleCompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID  string             `json:"userId"`
		Answers psychology.Answers `json:"answers"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	profile, err := s.app.CompleteOnboarding(req.UserID, req.Answers)
	if err != nil {
		writeAppError(w, r, err, "Failed to save profile")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profileId": profile.ID, "profile": profile})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.app.GetProfile(mux.Vars(r)["userId"])
	if err != nil {
		writeAppError(w, r, err, "Failed to get profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// session handlers
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
		Topic  string `json:"topic"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	session, err := s.app.CreateSession(req.UserID, req.Topic)
	if err != nil {
		writeAppError(w, r, err, "Failed to create session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sessionId": session.ID})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.app.GetSession(mux.Vars(r)["sessionId"])
	if err != nil {
		writeAppError(w, r, err, "Failed to get session")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]
	if !s.allowRate(w, r, s.chatLimiter, sessionID, "too many messages, slow down") {
		return
	}
	var req struct {
		Message     string `json:"message"`
		FileContent string `json:"fileContent"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	reply, err := s.app.Chat(r.Context(), sessionID, req.Message, req.FileContent)
	if err != nil {
		if errors.Is(err, app.ErrProfileNotFound) {
			writeError(w, http.StatusBadRequest, "User profile not found. Complete onboarding first.")
			return
		}
		writeAppError(w, r, err, "Failed to get response from tutor")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": reply, "sessionId": sessionID})
}

func (s *Server) handleSessionFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.app.ListSessionFiles(mux.Vars(r)["sessionId"])
	if err != nil {
		writeAppError(w, r, err, "Failed to get files")
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleUserSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.app.ListUserSessions(mux.Vars(r)["userId"])
	if err != nil {
		writeAppError(w, r, err, "Failed to get sessions")
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// file handlers
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string `json:"userId"`
		SessionID string `json:"sessionId"`
		Filename  string `json:"filename"`
		Content   string `json:"content"`
		Encoding  string `json:"encoding"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	file, err := s.app.SaveUploadedFile(r.Context(), app.UploadInput{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Filename:  req.Filename,
		Content:   req.Content,
		Encoding:  req.Encoding,
	})
	if err != nil {
		writeAppError(w, r, err, "Failed to upload file")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"fileId": file.ID, "filename": file.Filename})
}

// helpers
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var appErrorResponses = []struct {
	err    error
	status int
	msg    string
}{
	{app.ErrEmailAndPasswordRequired, http.StatusBadRequest, "Email and password required"},
	{app.ErrPasswordTooShort, http.StatusBadRequest, "Password must be at least 6 characters"},
	{app.ErrEmailAlreadyExists, http.StatusBadRequest, "Email already exists"},
	{app.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	{app.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{app.ErrInvalidMembership, http.StatusBadRequest, "Invalid membership tier"},
	{app.ErrMissingOnboardingFields, http.StatusBadRequest, "Missing userId or answers"},
	{app.ErrProfileNotFound, http.StatusNotFound, "Profile not found"},
	{app.ErrMissingSessionFields, http.StatusBadRequest, "Missing userId or topic"},
	{app.ErrSessionNotFound, http.StatusNotFound, "Session not found"},
	{app.ErrMissingMessage, http.StatusBadRequest, "Missing message"},
	{app.ErrMissingUploadFields, http.StatusBadRequest, "Missing required fields"},
}

// writeAppError maps app sentinels to their HTTP answer. Anything else is
// logged and answered with fallback.
func writeAppError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	for _, e := range appErrorResponses {
		if errors.Is(err, e.err) {
			writeError(w, e.status, e.msg)
			return
		}
	}
	switch {
	case errors.Is(err, app.ErrInvalidUpload):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", s.clientIP(r),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

// allowRate enforces limiter on the caller address, optionally narrowed by
// scope. It writes the 429 answer itself.
func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, scope, msg string) bool {
	key := s.clientIP(r)
	if scope != "" {
		key = scope + "|" + key
	}
	ok, retryAfter := limiter.Allow(r.Context(), key)
	if ok {
		return true
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func (s *Server) clientIP(r *http.Request) string {
	return util.ClientIP(r, s.trusted)
}
