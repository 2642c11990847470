package psychology

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"learnai/pkg/domain"
)

type QuestionType string

const (
	QuestionSingle   QuestionType = "single"
	QuestionMultiple QuestionType = "multiple"
	QuestionText     QuestionType = "text"
)

type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Emoji string `json:"emoji"`
}

// Question describes one onboarding step.
type Question struct {
	ID          string       `json:"id"`
	Question    string       `json:"question"`
	Type        QuestionType `json:"type"`
	Options     []Option     `json:"options,omitempty"`
	Placeholder string       `json:"placeholder,omitempty"`
}

// Answer codes shared by the question set and ProfileFromAnswers.
const (
	QuestionLearningConditions = "learning_conditions"
	QuestionLearningMethod     = "learning_method"
	QuestionSessionLength      = "session_length"
	QuestionStuckBehavior      = "stuck_behavior"
	QuestionPersonality        = "personality"
	QuestionMotivation         = "motivation"
	QuestionGoal               = "goal"

	answerLearningStyle    = "learning_style"
	answerCognitiveProfile = "cognitive_profile"
	answerChallenges       = "challenges"
	answerExperienceLevel  = "experience_level"
)

// OnboardingQuestions returns the fixed onboarding sequence.
func OnboardingQuestions() []Question {
	return []Question{
		{
			ID:       QuestionLearningConditions,
			Question: "Do any of these describe you? (Select all that apply)",
			Type:     QuestionMultiple,
			Options: []Option{
				{Value: "adhd", Label: "I have ADHD or struggle with focus", Emoji: "⚡"},
				{Value: "dyslexia", Label: "I have dyslexia", Emoji: "📖"},
				{Value: "reading", Label: "I have difficulty reading long text", Emoji: "👀"},
				{Value: "none", Label: "None of these apply to me", Emoji: "✓"},
			},
		},
		{
			ID:       QuestionLearningMethod,
			Question: "How do you learn best? (Select all that apply)",
			Type:     QuestionMultiple,
			Options: []Option{
				{Value: "visual", Label: "Pictures, diagrams, videos - I need to SEE it", Emoji: "🖼️"},
				{Value: "audio", Label: "Talking through it, explanations - I need to HEAR it", Emoji: "🎧"},
				{Value: "hands_on", Label: "Doing it myself, practice - I need to DO it", Emoji: "🛠️"},
				{Value: "keyword", Label: "Key terms, compressed info - I need it SUMMARIZED", Emoji: "📝"},
				{Value: "discussion", Label: "Discussing with others - I need to TALK about it", Emoji: "💬"},
			},
		},
		{
			ID:       QuestionSessionLength,
			Question: "How long can you focus in one sitting?",
			Type:     QuestionSingle,
			Options: []Option{
				{Value: "micro", Label: "5-10 minutes max", Emoji: "⏱️"},
				{Value: "short", Label: "15-20 minutes", Emoji: "🕐"},
				{Value: "medium", Label: "30-45 minutes", Emoji: "🕑"},
				{Value: "long", Label: "1+ hours, I can deep dive", Emoji: "🕒"},
			},
		},
		{
			ID:       QuestionStuckBehavior,
			Question: "When you get stuck learning something, what do you do?",
			Type:     QuestionSingle,
			Options: []Option{
				{Value: "quit", Label: "Usually give up and try something else", Emoji: "🚪"},
				{Value: "frustrated", Label: "Get frustrated but push through", Emoji: "😤"},
				{Value: "research", Label: "Research until I figure it out", Emoji: "🔍"},
				{Value: "ask", Label: "Ask someone for help", Emoji: "🙋"},
				{Value: "break", Label: "Take a break and come back", Emoji: "☕"},
			},
		},
		{
			ID:       QuestionPersonality,
			Question: "How should I teach you?",
			Type:     QuestionSingle,
			Options: []Option{
				{Value: "challenger", Label: "Push me hard, challenge me, be direct", Emoji: "💪"},
				{Value: "supportive", Label: "Be patient, encouraging, celebrate wins", Emoji: "🤗"},
				{Value: "efficient", Label: "No fluff, just teach me fast", Emoji: "⚡"},
				{Value: "curious", Label: "Explore with me, make it interesting", Emoji: "🔎"},
			},
		},
		{
			ID:       QuestionMotivation,
			Question: "What motivates you to learn? (Select all that apply)",
			Type:     QuestionMultiple,
			Options: []Option{
				{Value: "career", Label: "Career / making money", Emoji: "💼"},
				{Value: "curiosity", Label: "Pure curiosity", Emoji: "🧠"},
				{Value: "problem", Label: "Solving a specific problem", Emoji: "🔧"},
				{Value: "creativity", Label: "Building or creating something", Emoji: "🎨"},
				{Value: "competition", Label: "Being better than others", Emoji: "🏆"},
			},
		},
		{
			ID:          QuestionGoal,
			Question:    "What do you want to learn?",
			Type:        QuestionText,
			Placeholder: "e.g., How to trade stocks, Learn Spanish, Master Python...",
		},
	}
}

// AnswerValue holds one onboarding answer. Clients send either a single
// string or a list of strings; both decode to a list.
type AnswerValue []string

func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*v = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var items []any
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := scalarString(item); ok {
				out = append(out, s)
			}
		}
		*v = out
		return nil
	}
	var item any
	if err := json.Unmarshal(data, &item); err != nil {
		return err
	}
	s, ok := scalarString(item)
	if !ok {
		return fmt.Errorf("unsupported answer value: %s", trimmed)
	}
	*v = AnswerValue{s}
	return nil
}

func scalarString(item any) (string, bool) {
	switch value := item.(type) {
	case string:
		return value, true
	case float64, bool:
		return fmt.Sprint(value), true
	default:
		return "", false
	}
}

// Answers maps question ids to raw answer codes.
type Answers map[string]AnswerValue

func (a Answers) first(id string) string {
	values := a[id]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func (a Answers) list(id string) []string {
	return lo.Filter([]string(a[id]), func(v string, _ int) bool {
		return strings.TrimSpace(v) != ""
	})
}

func (a Answers) includes(id, code string) bool {
	return lo.Contains([]string(a[id]), code)
}

// ProfileFromAnswers maps raw onboarding answers into a learner profile.
// Categorical fields left empty receive the stored defaults.
func ProfileFromAnswers(answers Answers) domain.Profile {
	goals := []string{}
	if goal := answers.first(QuestionGoal); goal != "" {
		goals = append(goals, goal)
	}
	cognitive := answers.list(answerCognitiveProfile)
	profile := domain.Profile{
		LearningStyle: domain.LearningStyle{Primary: answers.first(answerLearningStyle)},
		CognitiveProfile: domain.CognitiveProfile{
			Primary: answers.first(answerCognitiveProfile),
			All:     cognitive,
		},
		PersonalityPreferences: domain.PersonalityPreferences{Style: answers.first(QuestionPersonality)},
		SessionLength:          answers.first(QuestionSessionLength),
		ExperienceLevel:        answers.first(answerExperienceLevel),
		StuckBehavior:          answers.first(QuestionStuckBehavior),
		Motivation:             answers.list(QuestionMotivation),
		Challenges:             answers.list(answerChallenges),
		Goals:                  goals,

		ADHD:              answers.includes(QuestionLearningConditions, "adhd"),
		Dyslexia:          answers.includes(QuestionLearningConditions, "dyslexia"),
		ReadingDifficulty: answers.includes(QuestionLearningConditions, "reading"),

		VisualLearner:     answers.includes(QuestionLearningMethod, "visual"),
		AudioLearner:      answers.includes(QuestionLearningMethod, "audio"),
		HandsOnLearner:    answers.includes(QuestionLearningMethod, "hands_on"),
		KeywordLearner:    answers.includes(QuestionLearningMethod, "keyword"),
		DiscussionLearner: answers.includes(QuestionLearningMethod, "discussion"),
	}
	return WithDefaults(profile)
}

// WithDefaults fills empty categorical fields and nil lists.
func WithDefaults(profile domain.Profile) domain.Profile {
	if strings.TrimSpace(profile.SessionLength) == "" {
		profile.SessionLength = "medium"
	}
	if strings.TrimSpace(profile.ExperienceLevel) == "" {
		profile.ExperienceLevel = "intermediate"
	}
	if strings.TrimSpace(profile.StuckBehavior) == "" {
		profile.StuckBehavior = "research"
	}
	if profile.Motivation == nil {
		profile.Motivation = []string{}
	}
	if profile.Challenges == nil {
		profile.Challenges = []string{}
	}
	if profile.Goals == nil {
		profile.Goals = []string{}
	}
	return profile
}
