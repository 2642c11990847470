package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Name         string
	Membership   string    `gorm:"not null;default:free"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

// ProfileModel keeps nested structures and lists as jsonb. Rows are never
// updated except to mark them superseded by a newer onboarding.
type ProfileModel struct {
	ID                     string         `gorm:"primaryKey"`
	UserID                 string         `gorm:"not null;index"`
	LearningStyle          datatypes.JSON `gorm:"type:jsonb"`
	CognitiveProfile       datatypes.JSON `gorm:"type:jsonb"`
	PersonalityPreferences datatypes.JSON `gorm:"type:jsonb"`
	ADHD                   bool           `gorm:"column:adhd;not null"`
	Dyslexia               bool           `gorm:"not null"`
	ReadingDifficulty      bool           `gorm:"not null"`
	VisualLearner          bool           `gorm:"not null"`
	AudioLearner           bool           `gorm:"not null"`
	HandsOnLearner         bool           `gorm:"not null"`
	KeywordLearner         bool           `gorm:"not null"`
	DiscussionLearner      bool           `gorm:"not null"`
	SessionLength          string         `gorm:"not null"`
	ExperienceLevel        string         `gorm:"not null"`
	StuckBehavior          string         `gorm:"not null"`
	Motivation             datatypes.JSON `gorm:"type:jsonb"`
	Challenges             datatypes.JSON `gorm:"type:jsonb"`
	Goals                  datatypes.JSON `gorm:"type:jsonb"`
	CompletedAt            time.Time      `gorm:"not null"`
	SupersededAt           *time.Time
}

func (ProfileModel) TableName() string { return "profiles" }

type SessionModel struct {
	ID        string         `gorm:"primaryKey"`
	UserID    string         `gorm:"not null;index"`
	Topic     string         `gorm:"not null"`
	Messages  datatypes.JSON `gorm:"type:jsonb;not null"`
	StartedAt time.Time      `gorm:"not null;index"`
	EndedAt   *time.Time
}

func (SessionModel) TableName() string { return "sessions" }

type UploadedFileModel struct {
	ID         string  `gorm:"primaryKey"`
	UserID     string  `gorm:"not null;index"`
	SessionID  *string `gorm:"index"`
	Filename   string  `gorm:"not null"`
	Content    string  `gorm:"type:text;not null"`
	StorageKey string
	UploadedAt time.Time `gorm:"not null"`
}

func (UploadedFileModel) TableName() string { return "uploaded_files" }
