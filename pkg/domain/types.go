package domain

import "time"

type Membership string

const (
	MembershipFree  Membership = "free"
	MembershipBasic Membership = "basic"
	MembershipPro   Membership = "pro"
)

// ParseMembership reports whether raw names a known tier exactly.
func ParseMembership(raw string) (Membership, bool) {
	switch Membership(raw) {
	case MembershipFree:
		return MembershipFree, true
	case MembershipBasic:
		return MembershipBasic, true
	case MembershipPro:
		return MembershipPro, true
	default:
		return "", false
	}
}

// Normalize returns the tier itself, or free for anything unrecognized.
func (m Membership) Normalize() Membership {
	if tier, ok := ParseMembership(string(m)); ok {
		return tier
	}
	return MembershipFree
}

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Name         string     `json:"name"`
	Membership   Membership `json:"membership"`
	CreatedAt    time.Time  `json:"created_at"`
}

type LearningStyle struct {
	Primary string `json:"primary,omitempty"`
}

type CognitiveProfile struct {
	Primary string   `json:"primary,omitempty"`
	All     []string `json:"all,omitempty"`
}

type PersonalityPreferences struct {
	Style string `json:"style,omitempty"`
}

// Profile is the learner profile produced once by onboarding.
type Profile struct {
	ID                     string                 `json:"id,omitempty"`
	UserID                 string                 `json:"userId,omitempty"`
	LearningStyle          LearningStyle          `json:"learningStyle"`
	CognitiveProfile       CognitiveProfile       `json:"cognitiveProfile"`
	PersonalityPreferences PersonalityPreferences `json:"personalityPreferences"`
	ADHD                   bool                   `json:"adhd"`
	Dyslexia               bool                   `json:"dyslexia"`
	ReadingDifficulty      bool                   `json:"readingDifficulty"`
	VisualLearner          bool                   `json:"visualLearner"`
	AudioLearner           bool                   `json:"audioLearner"`
	HandsOnLearner         bool                   `json:"handsOnLearner"`
	KeywordLearner         bool                   `json:"keywordLearner"`
	DiscussionLearner      bool                   `json:"discussionLearner"`
	SessionLength          string                 `json:"sessionLength"`
	ExperienceLevel        string                 `json:"experienceLevel"`
	StuckBehavior          string                 `json:"stuckBehavior"`
	Motivation             []string               `json:"motivation"`
	Challenges             []string               `json:"challenges"`
	Goals                  []string               `json:"goals"`
	CompletedAt            time.Time              `json:"completedAt,omitzero"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is one tutoring conversation thread.
type Session struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Topic     string     `json:"topic"`
	Messages  []Message  `json:"messages"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
}

type UploadedFile struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	SessionID  string    `json:"session_id,omitempty"`
	Filename   string    `json:"filename"`
	Content    string    `json:"content"`
	StorageKey string    `json:"-"`
	UploadedAt time.Time `json:"uploaded_at"`
}
