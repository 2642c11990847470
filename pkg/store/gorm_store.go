package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"learnai/pkg/domain"
)

const migrateLockID int64 = 51740213

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &ProfileModel{}, &SessionModel{}, &UploadedFileModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(`
			CREATE UNIQUE INDEX IF NOT EXISTS profiles_current_per_user
			ON profiles (user_id) WHERE superseded_at IS NULL
		`).Error; err != nil {
			return fmt.Errorf("ensure current profile index: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateUser inserts a new user; the unique email index reports duplicates.
func (s *GormStore) CreateUser(u domain.User) error {
	model := userToModel(u)
	if err := s.db.Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// GetUserByEmail looks up a user by email, case-insensitively.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", normalizeEmail(email)).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// UpdateMembership sets the tier and reports whether the user exists.
func (s *GormStore) UpdateMembership(userID string, tier domain.Membership) (bool, error) {
	res := s.db.Model(&UserModel{}).Where("id = ?", userID).Update("membership", string(tier))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SaveProfile supersedes the user's current profile and inserts the new one
// in a single transaction. The owning user row is locked so concurrent
// onboardings for the same user run one after the other.
func (s *GormStore) SaveProfile(p domain.Profile) error {
	model, err := profileToModel(p)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		var owner UserModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&owner, "id = ?", p.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Model(&ProfileModel{}).
			Where("user_id = ? AND superseded_at IS NULL", p.UserID).
			Update("superseded_at", model.CompletedAt).Error; err != nil {
			return err
		}
		return tx.Create(&model).Error
	})
}

// GetProfile returns the user's current profile.
func (s *GormStore) GetProfile(userID string) (domain.Profile, bool, error) {
	var model ProfileModel
	if err := s.db.Where("user_id = ? AND superseded_at IS NULL", userID).
		Order("completed_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Profile{}, false, nil
		}
		return domain.Profile{}, false, err
	}
	profile, err := profileFromModel(model)
	if err != nil {
		return domain.Profile{}, false, err
	}
	return profile, true, nil
}

// CreateSession inserts a new tutoring session.
func (s *GormStore) CreateSession(session domain.Session) error {
	model, err := sessionToModel(session)
	if err != nil {
		return err
	}
	return s.db.Create(&model).Error
}

// GetSession returns one session by ID.
func (s *GormStore) GetSession(id string) (domain.Session, bool, error) {
	var model SessionModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Session{}, false, nil
		}
		return domain.Session{}, false, err
	}
	session, err := sessionFromModel(model)
	if err != nil {
		return domain.Session{}, false, err
	}
	return session, true, nil
}

// ListSessionsByUser returns a user's sessions, newest first.
func (s *GormStore) ListSessionsByUser(userID string) ([]domain.Session, error) {
	var models []SessionModel
	if err := s.db.Where("user_id = ?", userID).Order("started_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.Session, 0, len(models))
	for _, model := range models {
		session, err := sessionFromModel(model)
		if err != nil {
			return nil, err
		}
		items = append(items, session)
	}
	return items, nil
}

// AppendSessionMessages appends to the stored transcript under a row lock,
// so concurrent appends to one session never drop messages.
func (s *GormStore) AppendSessionMessages(sessionID string, msgs ...domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		var model SessionModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		var history []domain.Message
		if err := decodeJSON(model.Messages, &history); err != nil {
			return fmt.Errorf("decode session messages: %w", err)
		}
		raw, err := json.Marshal(append(history, msgs...))
		if err != nil {
			return err
		}
		return tx.Model(&SessionModel{}).Where("id = ?", sessionID).Update("messages", datatypes.JSON(raw)).Error
	})
}

// SaveUploadedFile records an uploaded file.
func (s *GormStore) SaveUploadedFile(f domain.UploadedFile) error {
	model := uploadedFileToModel(f)
	return s.db.Create(&model).Error
}

// ListFilesBySession returns files attached to a session in upload order.
func (s *GormStore) ListFilesBySession(sessionID string) ([]domain.UploadedFile, error) {
	var models []UploadedFileModel
	if err := s.db.Where("session_id = ?", sessionID).Order("uploaded_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	files := make([]domain.UploadedFile, 0, len(models))
	for _, model := range models {
		files = append(files, uploadedFileFromModel(model))
	}
	return files, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        normalizeEmail(u.Email),
		PasswordHash: u.PasswordHash,
		Name:         u.Name,
		Membership:   string(u.Membership.Normalize()),
		CreatedAt:    u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Name:         m.Name,
		Membership:   domain.Membership(m.Membership).Normalize(),
		CreatedAt:    m.CreatedAt,
	}
}

func profileToModel(p domain.Profile) (ProfileModel, error) {
	model := ProfileModel{
		ID:                p.ID,
		UserID:            p.UserID,
		ADHD:              p.ADHD,
		Dyslexia:          p.Dyslexia,
		ReadingDifficulty: p.ReadingDifficulty,
		VisualLearner:     p.VisualLearner,
		AudioLearner:      p.AudioLearner,
		HandsOnLearner:    p.HandsOnLearner,
		KeywordLearner:    p.KeywordLearner,
		DiscussionLearner: p.DiscussionLearner,
		SessionLength:     p.SessionLength,
		ExperienceLevel:   p.ExperienceLevel,
		StuckBehavior:     p.StuckBehavior,
		CompletedAt:       p.CompletedAt,
	}
	blobs := []struct {
		dst *datatypes.JSON
		src any
	}{
		{&model.LearningStyle, p.LearningStyle},
		{&model.CognitiveProfile, p.CognitiveProfile},
		{&model.PersonalityPreferences, p.PersonalityPreferences},
		{&model.Motivation, nonNil(p.Motivation)},
		{&model.Challenges, nonNil(p.Challenges)},
		{&model.Goals, nonNil(p.Goals)},
	}
	for _, blob := range blobs {
		raw, err := json.Marshal(blob.src)
		if err != nil {
			return ProfileModel{}, fmt.Errorf("encode profile: %w", err)
		}
		*blob.dst = raw
	}
	return model, nil
}

func profileFromModel(m ProfileModel) (domain.Profile, error) {
	p := domain.Profile{
		ID:                m.ID,
		UserID:            m.UserID,
		ADHD:              m.ADHD,
		Dyslexia:          m.Dyslexia,
		ReadingDifficulty: m.ReadingDifficulty,
		VisualLearner:     m.VisualLearner,
		AudioLearner:      m.AudioLearner,
		HandsOnLearner:    m.HandsOnLearner,
		KeywordLearner:    m.KeywordLearner,
		DiscussionLearner: m.DiscussionLearner,
		SessionLength:     m.SessionLength,
		ExperienceLevel:   m.ExperienceLevel,
		StuckBehavior:     m.StuckBehavior,
		CompletedAt:       m.CompletedAt,
	}
	blobs := []struct {
		src datatypes.JSON
		dst any
	}{
		{m.LearningStyle, &p.LearningStyle},
		{m.CognitiveProfile, &p.CognitiveProfile},
		{m.PersonalityPreferences, &p.PersonalityPreferences},
		{m.Motivation, &p.Motivation},
		{m.Challenges, &p.Challenges},
		{m.Goals, &p.Goals},
	}
	for _, blob := range blobs {
		if err := decodeJSON(blob.src, blob.dst); err != nil {
			return domain.Profile{}, fmt.Errorf("decode profile %s: %w", m.ID, err)
		}
	}
	p.Motivation = nonNil(p.Motivation)
	p.Challenges = nonNil(p.Challenges)
	p.Goals = nonNil(p.Goals)
	return p, nil
}

func sessionToModel(s domain.Session) (SessionModel, error) {
	raw, err := json.Marshal(nonNil(s.Messages))
	if err != nil {
		return SessionModel{}, fmt.Errorf("encode session messages: %w", err)
	}
	return SessionModel{
		ID:        s.ID,
		UserID:    s.UserID,
		Topic:     s.Topic,
		Messages:  raw,
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
	}, nil
}

func sessionFromModel(m SessionModel) (domain.Session, error) {
	var msgs []domain.Message
	if err := decodeJSON(m.Messages, &msgs); err != nil {
		return domain.Session{}, fmt.Errorf("decode session %s: %w", m.ID, err)
	}
	return domain.Session{
		ID:        m.ID,
		UserID:    m.UserID,
		Topic:     m.Topic,
		Messages:  nonNil(msgs),
		StartedAt: m.StartedAt,
		EndedAt:   m.EndedAt,
	}, nil
}

func uploadedFileToModel(f domain.UploadedFile) UploadedFileModel {
	var sessionID *string
	if strings.TrimSpace(f.SessionID) != "" {
		value := strings.TrimSpace(f.SessionID)
		sessionID = &value
	}
	return UploadedFileModel{
		ID:         f.ID,
		UserID:     f.UserID,
		SessionID:  sessionID,
		Filename:   f.Filename,
		Content:    f.Content,
		StorageKey: f.StorageKey,
		UploadedAt: f.UploadedAt,
	}
}

func uploadedFileFromModel(m UploadedFileModel) domain.UploadedFile {
	sessionID := ""
	if m.SessionID != nil {
		sessionID = *m.SessionID
	}
	return domain.UploadedFile{
		ID:         m.ID,
		UserID:     m.UserID,
		SessionID:  sessionID,
		Filename:   m.Filename,
		Content:    m.Content,
		StorageKey: m.StorageKey,
		UploadedAt: m.UploadedAt,
	}
}

func decodeJSON(raw datatypes.JSON, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
