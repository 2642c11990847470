package psychology

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"learnai/pkg/domain"
)

const sectionSeparator = "\n\n"

// renderInput is the resolved view of a profile that section builders read.
type renderInput struct {
	topic         string
	tier          domain.Membership
	modalities    []string
	adaptations   []string
	tones         []string
	personality   Personality
	sessionLength SessionLength
	experience    ExperienceLevel
	stuck         StuckBehavior
	motivation    []string
	goals         []string
	challenges    []string
}

// section renders one block of the system prompt; ok=false omits it.
type section func(in renderInput) (text string, ok bool)

var promptSections = []section{
	identitySection,
	profileHeaderSection,
	modalitySection,
	adaptationSection,
	toneSection,
	sessionLengthSection,
	experienceSection,
	teachingStyleSection,
	stuckSection,
	formatSection,
	teachingRulesSection,
	firstMessageSection,
	pastSessionsSection,
	motivationSection,
	goalsSection,
	challengesSection,
	membershipSection,
}

// RenderSystemPrompt builds the tutor instruction document for a learner.
// It never fails: unknown or missing profile values fall back to defaults.
func RenderSystemPrompt(profile domain.Profile, topic string, tier domain.Membership) string {
	in := resolve(profile, topic, tier)
	parts := make([]string, 0, len(promptSections))
	for _, build := range promptSections {
		if text, ok := build(in); ok {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, sectionSeparator)
}

func resolve(profile domain.Profile, topic string, tier domain.Membership) renderInput {
	adaptations, tones := cognitiveAdaptations(profile)
	personality, _ := ParsePersonality(profile.PersonalityPreferences.Style)
	sessionLength, _ := ParseSessionLength(profile.SessionLength)
	experience, _ := ParseExperienceLevel(profile.ExperienceLevel)
	stuck, _ := ParseStuckBehavior(profile.StuckBehavior)
	return renderInput{
		topic:         strings.TrimSpace(topic),
		tier:          tier.Normalize(),
		modalities:    learningModalities(profile),
		adaptations:   adaptations,
		tones:         tones,
		personality:   personality,
		sessionLength: sessionLength,
		experience:    experience,
		stuck:         stuck,
		motivation:    nonBlank(profile.Motivation),
		goals:         nonBlank(profile.Goals),
		challenges:    nonBlank(profile.Challenges),
	}
}

// learningModalities lists approach fragments in fixed flag order, then the
// primary style, falling back to reading/writing when nothing is selected.
func learningModalities(profile domain.Profile) []string {
	flags := []struct {
		set      bool
		modality Modality
	}{
		{profile.VisualLearner, ModalityVisual},
		{profile.AudioLearner, ModalityAuditory},
		{profile.HandsOnLearner, ModalityKinesthetic},
		{profile.KeywordLearner, ModalityKeyword},
		{profile.DiscussionLearner, ModalityDiscussion},
	}
	var out []string
	for _, flag := range flags {
		if flag.set {
			out = append(out, flag.modality.Approach())
		}
	}
	if primary, ok := ParseModality(profile.LearningStyle.Primary); ok {
		out = append(out, primary.Approach())
	}
	if len(out) == 0 {
		out = append(out, ModalityReading.Approach())
	}
	return lo.Uniq(out)
}

func cognitiveAdaptations(profile domain.Profile) ([]string, []string) {
	var conditions []Condition
	if profile.ADHD {
		conditions = append(conditions, ConditionADHD)
	}
	if profile.Dyslexia {
		conditions = append(conditions, ConditionDyslexia)
	}
	if profile.ReadingDifficulty {
		conditions = append(conditions, ConditionReadingDifficulty)
	}
	tags := append(append([]string{}, profile.CognitiveProfile.All...), profile.CognitiveProfile.Primary)
	for _, tag := range tags {
		if condition, ok := ParseCondition(tag); ok {
			conditions = append(conditions, condition)
		}
	}
	if len(conditions) == 0 {
		conditions = []Condition{ConditionBalanced}
	}
	var adaptations, tones []string
	for _, condition := range conditions {
		adaptations = append(adaptations, condition.Adaptations()...)
		tones = append(tones, condition.Tone())
	}
	return lo.Uniq(adaptations), lo.Uniq(tones)
}

func nonBlank(values []string) []string {
	return lo.Filter(values, func(v string, _ int) bool {
		return strings.TrimSpace(v) != ""
	})
}

func bulletList(items []string) string {
	return strings.Join(lo.Map(items, func(item string, _ int) string {
		return "- " + item
	}), "\n")
}

func identitySection(renderInput) (string, bool) {
	return `You are Learn AI - a TEACHING-FOCUSED AI tutor. Your ONLY purpose is to teach. You cannot be derailed.

## CORE IDENTITY

You are a personalized AI tutor that adapts to how THIS specific person's brain works. You don't just deliver content - you CREATE the optimal learning experience for THIS learner based on their psychology profile.

You are trained on human psychology and learning science. You understand that everyone learns differently.`, true
}

func profileHeaderSection(in renderInput) (string, bool) {
	return "## THIS LEARNER'S COMPLETE PROFILE\n\n**Topic:** " + in.topic, true
}

func modalitySection(in renderInput) (string, bool) {
	return "**How They Learn Best:**\n" + bulletList(in.modalities), true
}

func adaptationSection(in renderInput) (string, bool) {
	return "**Cognitive Adaptations:**\n" + bulletList(in.adaptations), true
}

func toneSection(in renderInput) (string, bool) {
	return "**Tone:** " + strings.Join(in.tones, ", "), true
}

func sessionLengthSection(in renderInput) (string, bool) {
	return fmt.Sprintf("**Session Length:** %s\n%s", in.sessionLength.Name(), in.sessionLength.Instruction()), true
}

func experienceSection(in renderInput) (string, bool) {
	return fmt.Sprintf("**Experience Level:** %s\n%s", in.experience.Name(), in.experience.Instruction()), true
}

func teachingStyleSection(in renderInput) (string, bool) {
	return fmt.Sprintf("**Teaching Style:** %s\n%s", in.personality.Name(), in.personality.Approach()), true
}

func stuckSection(in renderInput) (string, bool) {
	return fmt.Sprintf("**When Stuck:** %s\n%s", in.stuck.Name(), in.stuck.Instruction()), true
}

func formatSection(renderInput) (string, bool) {
	return `## RESPONSE FORMAT - CRITICAL

Your responses MUST be:

1. **SHORT** - 2-4 sentences max per chunk. Then pause.
2. **Scannable** - Bullet points, not paragraphs
3. **Bolded key terms** - First time introducing concepts
4. **One idea per message** - Don't overwhelm
5. **White space** - Line breaks between ideas
6. **End with ONE question** - Or micro-challenge

**GOOD example:**
"**Variables** are like labeled boxes.

Think of it like:
- Label = variable name
- Inside = value

What would you name a variable for someone's age?"

**BAD example:**
"Variables are containers that store data. They have names and values. The name references it and the value is stored inside..."

NEVER write walls of text. ALWAYS break it up.`, true
}

func teachingRulesSection(renderInput) (string, bool) {
	return `## TEACHING RULES

1. **You ONLY teach** - Cannot be derailed to other topics
2. **Stay on track** - Gently redirect off-topic questions
3. **Gauge skill first** - ALWAYS ask skill level before teaching
4. **Active recall** - Ask questions, don't just explain
5. **Never say "wrong"** - Say "not quite" or "let's try another way"`, true
}

func firstMessageSection(in renderInput) (string, bool) {
	return fmt.Sprintf(`## FIRST MESSAGE PROTOCOL

When user says they want to learn %[1]s, FIRST ask:

"Before we dive in, where are you at with %[1]s?
- Complete beginner (never touched it)
- Know basics, want to go deeper
- Intermediate, leveling up
- Advanced, mastering specifics"

ONLY after they answer, begin teaching at their level.`, in.topic), true
}

func pastSessionsSection(renderInput) (string, bool) {
	return "## PAST SESSIONS\n\nDo NOT reference past sessions unless user explicitly asks to connect them.", true
}

func motivationSection(in renderInput) (string, bool) {
	if len(in.motivation) == 0 {
		return "", false
	}
	motives := lo.Map(in.motivation, func(code string, _ int) string { return MotivationLabel(code) })
	return fmt.Sprintf("## What Motivates Them\nDriven by: %s. Connect lessons to these.", strings.Join(motives, ", ")), true
}

func goalsSection(in renderInput) (string, bool) {
	if len(in.goals) == 0 {
		return "", false
	}
	return "## Their Goals\n" + bulletList(in.goals), true
}

func challengesSection(in renderInput) (string, bool) {
	if len(in.challenges) == 0 {
		return "", false
	}
	labels := lo.Map(in.challenges, func(code string, _ int) string { return ChallengeLabel(code) })
	return fmt.Sprintf("## Challenges\nThey struggle with: %s. Proactively address these.", strings.Join(labels, ", ")), true
}

func membershipSection(in renderInput) (string, bool) {
	switch in.tier {
	case domain.MembershipPro:
		return "## Pro Features Available\nYou can offer: video explanations, image generation, advanced analytics.", true
	case domain.MembershipBasic:
		return "## Basic Features Available\nYou can reference uploaded files if provided.", true
	default:
		return "", false
	}
}
