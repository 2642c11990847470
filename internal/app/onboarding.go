package app

import (
	"errors"
	"fmt"
	"strings"

	"learnai/internal/util"
	"learnai/pkg/domain"
	"learnai/pkg/psychology"
	"learnai/pkg/store"
)

// OnboardingQuestions returns the static onboarding questionnaire.
func (a *App) OnboardingQuestions() []psychology.Question {
	return psychology.OnboardingQuestions()
}

// CompleteOnboarding maps raw answers to a profile and stores it as the
// user's current profile, superseding any earlier one.
func (a *App) CompleteOnboarding(userID string, answers psychology.Answers) (domain.Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || answers == nil {
		return domain.Profile{}, ErrMissingOnboardingFields
	}
	profile := psychology.ProfileFromAnswers(answers)
	profile.ID = util.NewID()
	profile.UserID = userID
	profile.CompletedAt = a.now().UTC()
	if err := a.store.SaveProfile(profile); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Profile{}, ErrUserNotFound
		}
		return domain.Profile{}, fmt.Errorf("save profile: %w", err)
	}
	return profile, nil
}

// GetProfile returns the user's current profile.
func (a *App) GetProfile(userID string) (domain.Profile, error) {
	profile, ok, err := a.store.GetProfile(strings.TrimSpace(userID))
	if err != nil {
		return domain.Profile{}, fmt.Errorf("fetch profile: %w", err)
	}
	if !ok {
		return domain.Profile{}, ErrProfileNotFound
	}
	return profile, nil
}
