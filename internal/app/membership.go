package app

import (
	"fmt"

	"learnai/pkg/domain"
)

// Tier describes one membership plan for the pricing page.
type Tier struct {
	ID       domain.Membership `json:"id"`
	Name     string            `json:"name"`
	Price    float64           `json:"price"`
	Features []string          `json:"features"`
}

var membershipTiers = []Tier{
	{
		ID:    domain.MembershipFree,
		Name:  "Free",
		Price: 0,
		Features: []string{
			"Basic AI tutoring",
			"Text-based learning",
			"Learning style assessment",
			"5 sessions per day",
		},
	},
	{
		ID:    domain.MembershipBasic,
		Name:  "Basic",
		Price: 9.99,
		Features: []string{
			"Everything in Free",
			"Unlimited sessions",
			"File uploads (PDFs, docs)",
			"Session history",
			"Priority responses",
		},
	},
	{
		ID:    domain.MembershipPro,
		Name:  "Pro",
		Price: 29.99,
		Features: []string{
			"Everything in Basic",
			"Video explanations",
			"Image generation",
			"API access",
			"Trend search",
			"Advanced learning analytics",
			"Multi-AI integration",
		},
	},
}

// MembershipTiers returns a copy of the static tier catalog.
func (a *App) MembershipTiers() []Tier {
	out := make([]Tier, len(membershipTiers))
	for i, t := range membershipTiers {
		t.Features = append([]string(nil), t.Features...)
		out[i] = t
	}
	return out
}

// UpdateMembership sets the tier of an existing user.
func (a *App) UpdateMembership(userID, tier string) (domain.Membership, error) {
	membership, ok := domain.ParseMembership(tier)
	if !ok {
		return "", ErrInvalidMembership
	}
	found, err := a.store.UpdateMembership(userID, membership)
	if err != nil {
		return "", fmt.Errorf("update membership: %w", err)
	}
	if !found {
		return "", ErrUserNotFound
	}
	return membership, nil
}
