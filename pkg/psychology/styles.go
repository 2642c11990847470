package psychology

import "strings"

// Modality is a preferred sensory or format channel for instruction.
type Modality int

const (
	ModalityVisual Modality = iota
	ModalityAuditory
	ModalityReading
	ModalityKinesthetic
	ModalityKeyword
	ModalityDiscussion
)

// ParseModality resolves a learning-style code such as "visual" or "kinesthetic".
func ParseModality(code string) (Modality, bool) {
	switch normalizeCode(code) {
	case "visual":
		return ModalityVisual, true
	case "auditory":
		return ModalityAuditory, true
	case "reading":
		return ModalityReading, true
	case "kinesthetic":
		return ModalityKinesthetic, true
	case "keyword":
		return ModalityKeyword, true
	case "discussion":
		return ModalityDiscussion, true
	default:
		return ModalityReading, false
	}
}

func (m Modality) Name() string {
	switch m {
	case ModalityVisual:
		return "Visual"
	case ModalityAuditory:
		return "Auditory"
	case ModalityKinesthetic:
		return "Kinesthetic/Hands-On"
	case ModalityKeyword:
		return "Keyword/Compressed"
	case ModalityDiscussion:
		return "Discussion-Based"
	default:
		return "Reading/Writing"
	}
}

// Approach is the instruction fragment injected into the system prompt.
func (m Modality) Approach() string {
	switch m {
	case ModalityVisual:
		return "Use diagrams, mental images, ASCII art, flowcharts. Describe things visually. Create picture-based explanations."
	case ModalityAuditory:
		return "Explain conversationally like you're talking to them. Use rhythm, patterns, mnemonics. Encourage them to explain back."
	case ModalityKinesthetic:
		return "Give exercises IMMEDIATELY. Learn by doing. Real-world examples. Practice over theory."
	case ModalityKeyword:
		return "Compress information into KEY TERMS. Bold important words. Use headers. Maximum density, minimum fluff."
	case ModalityDiscussion:
		return "Make it conversational. Ask questions. Have them explain concepts. Socratic method."
	default:
		return "Provide clear written explanations. Use bullet points, numbered lists. Encourage note-taking."
	}
}

// Condition is a cognitive profile that changes how content is paced and phrased.
type Condition int

const (
	ConditionBalanced Condition = iota
	ConditionADHD
	ConditionDyslexia
	ConditionAnxiety
	ConditionPerfectionist
	ConditionReadingDifficulty
)

// ParseCondition resolves a cognitive-profile tag. "reading" is accepted as
// the onboarding code for reading difficulty.
func ParseCondition(code string) (Condition, bool) {
	switch normalizeCode(code) {
	case "adhd":
		return ConditionADHD, true
	case "dyslexia":
		return ConditionDyslexia, true
	case "anxiety":
		return ConditionAnxiety, true
	case "perfectionist":
		return ConditionPerfectionist, true
	case "reading_difficulty", "reading":
		return ConditionReadingDifficulty, true
	default:
		return ConditionBalanced, false
	}
}

func (c Condition) Name() string {
	switch c {
	case ConditionADHD:
		return "ADHD-Optimized"
	case ConditionDyslexia:
		return "Dyslexia-Friendly"
	case ConditionAnxiety:
		return "Anxiety-Aware"
	case ConditionPerfectionist:
		return "Perfectionist-Aware"
	case ConditionReadingDifficulty:
		return "Reading Support"
	default:
		return "Balanced"
	}
}

func (c Condition) Adaptations() []string {
	switch c {
	case ConditionADHD:
		return []string{
			"Keep explanations VERY SHORT (2-3 sentences max)",
			"Use novelty and surprise to maintain engagement",
			"Provide dopamine hits through quick wins every 1-2 minutes",
			"Allow topic jumping - curiosity is a feature",
			`Use timers: "Quick 2-minute challenge:"`,
			"Break EVERYTHING into micro-tasks",
			"Use emojis and visual breaks",
			"Change format frequently (bullet, paragraph, question)",
		}
	case ConditionDyslexia:
		return []string{
			"Use simple, short sentences",
			"Avoid walls of text",
			"Use bullet points extensively",
			"Bold key terms",
			"Use extra line spacing",
			"Provide audio-style explanations (conversational)",
			"Repeat key concepts in different ways",
		}
	case ConditionAnxiety:
		return []string{
			"Create psychological safety - no judgment",
			`Use "not yet" instead of "wrong"`,
			`Normalize confusion: "This trips up most people"`,
			`Offer escape hatches: "Want to try differently?"`,
			"Celebrate effort over outcomes",
			"Gentle pacing with check-ins",
			"Never make them feel stupid",
		}
	case ConditionPerfectionist:
		return []string{
			"Emphasize iteration over perfection",
			"Show experts make mistakes",
			"Focus on progress, not mastery",
			`Normalize "good enough"`,
			"Discourage over-researching",
		}
	case ConditionReadingDifficulty:
		return []string{
			"Use very short sentences",
			"One idea per line",
			"Lots of white space",
			"Bullet points over paragraphs",
			"Simple vocabulary",
			"Repeat key points multiple ways",
		}
	default:
		return []string{
			"Clear structure with flexibility",
			"Mix of explanation and practice",
			"Regular comprehension checks",
		}
	}
}

func (c Condition) Tone() string {
	switch c {
	case ConditionADHD:
		return "energetic, varied, punchy, lots of interaction"
	case ConditionDyslexia:
		return "clear, simple, patient, repetitive in good way"
	case ConditionAnxiety:
		return "warm, patient, encouraging, safe"
	case ConditionPerfectionist:
		return "grounded, practical, permission-giving"
	case ConditionReadingDifficulty:
		return "simple, clear, accessible"
	default:
		return "friendly, clear, supportive"
	}
}

// Personality is the teaching style the learner asked for.
type Personality int

const (
	PersonalitySupportive Personality = iota
	PersonalityChallenger
	PersonalityEfficient
	PersonalityCurious
)

// ParsePersonality falls back to supportive for unknown codes.
func ParsePersonality(code string) (Personality, bool) {
	switch normalizeCode(code) {
	case "challenger":
		return PersonalityChallenger, true
	case "supportive":
		return PersonalitySupportive, true
	case "efficient":
		return PersonalityEfficient, true
	case "curious":
		return PersonalityCurious, true
	default:
		return PersonalitySupportive, false
	}
}

func (p Personality) Name() string {
	switch p {
	case PersonalityChallenger:
		return "Challenge me"
	case PersonalityEfficient:
		return "Be efficient"
	case PersonalityCurious:
		return "Explore with me"
	default:
		return "Be supportive"
	}
}

func (p Personality) Approach() string {
	switch p {
	case PersonalityChallenger:
		return "Push limits, give hard problems, be direct, don't coddle."
	case PersonalityEfficient:
		return "No fluff, get to the point, just teach what's needed."
	case PersonalityCurious:
		return "Go on tangents, explore related concepts, make it interesting."
	default:
		return "Encourage, celebrate small wins, be patient, guide gently."
	}
}

// SessionLength is how long the learner can focus in one sitting.
type SessionLength int

const (
	SessionMedium SessionLength = iota
	SessionMicro
	SessionShort
	SessionLong
)

// ParseSessionLength falls back to medium for unknown codes.
func ParseSessionLength(code string) (SessionLength, bool) {
	switch normalizeCode(code) {
	case "micro":
		return SessionMicro, true
	case "short":
		return SessionShort, true
	case "medium":
		return SessionMedium, true
	case "long":
		return SessionLong, true
	default:
		return SessionMedium, false
	}
}

func (s SessionLength) Name() string {
	switch s {
	case SessionMicro:
		return "5-10 minutes"
	case SessionShort:
		return "15-20 minutes"
	case SessionLong:
		return "1+ hours"
	default:
		return "30-45 minutes"
	}
}

func (s SessionLength) Instruction() string {
	switch s {
	case SessionMicro:
		return "VERY short lessons. Quick wins every 2 min. Tiny chunks."
	case SessionShort:
		return "Concise lessons. Break every 5 min."
	case SessionLong:
		return "Extended deep dives. Stamina for complexity."
	default:
		return "Deeper topics. Check in every 10-15 min."
	}
}

type ExperienceLevel int

const (
	ExperienceIntermediate ExperienceLevel = iota
	ExperienceBeginner
	ExperienceAdvanced
	ExperienceExpert
)

// ParseExperienceLevel falls back to intermediate for unknown codes.
func ParseExperienceLevel(code string) (ExperienceLevel, bool) {
	switch normalizeCode(code) {
	case "beginner":
		return ExperienceBeginner, true
	case "intermediate":
		return ExperienceIntermediate, true
	case "advanced":
		return ExperienceAdvanced, true
	case "expert":
		return ExperienceExpert, true
	default:
		return ExperienceIntermediate, false
	}
}

func (e ExperienceLevel) Name() string {
	switch e {
	case ExperienceBeginner:
		return "Beginner"
	case ExperienceAdvanced:
		return "Advanced"
	case ExperienceExpert:
		return "Expert"
	default:
		return "Intermediate"
	}
}

func (e ExperienceLevel) Instruction() string {
	switch e {
	case ExperienceBeginner:
		return "Assume no prior knowledge. Define terms. Simple analogies. Go slow."
	case ExperienceAdvanced:
		return "Learn fast. Skip basics. Challenge appropriately."
	case ExperienceExpert:
		return "Treat as peer. High level engagement."
	default:
		return "Can handle complexity. Build on existing knowledge."
	}
}

// StuckBehavior is what the learner tends to do when stuck.
type StuckBehavior int

const (
	StuckResearch StuckBehavior = iota
	StuckQuit
	StuckFrustrated
	StuckAsk
	StuckBreak
)

// ParseStuckBehavior falls back to self-research for unknown codes.
func ParseStuckBehavior(code string) (StuckBehavior, bool) {
	switch normalizeCode(code) {
	case "quit":
		return StuckQuit, true
	case "frustrated":
		return StuckFrustrated, true
	case "research":
		return StuckResearch, true
	case "ask":
		return StuckAsk, true
	case "break":
		return StuckBreak, true
	default:
		return StuckResearch, false
	}
}

func (s StuckBehavior) Name() string {
	switch s {
	case StuckQuit:
		return "Tends to quit"
	case StuckFrustrated:
		return "Pushes through"
	case StuckAsk:
		return "Asks for help"
	case StuckBreak:
		return "Takes breaks"
	default:
		return "Self-researches"
	}
}

func (s StuckBehavior) Instruction() string {
	switch s {
	case StuckQuit:
		return "CRITICAL: Prevent quitting. Keep wins frequent. Pivot fast if stuck."
	case StuckFrustrated:
		return "Acknowledge frustration. Offer breaks. Normalize struggle."
	case StuckAsk:
		return "Be ready with clear explanations."
	case StuckBreak:
		return "Support breaks. Offer stopping points."
	default:
		return "Guide to resources. Leading questions over answers."
	}
}

// MotivationLabel maps a motivation code to prompt wording; unknown codes pass through.
func MotivationLabel(code string) string {
	switch normalizeCode(code) {
	case "career":
		return "career/money"
	case "curiosity":
		return "curiosity"
	case "problem":
		return "solving a problem"
	case "competition":
		return "competition"
	case "creativity":
		return "creating something"
	case "social":
		return "social connection"
	default:
		return code
	}
}

// ChallengeLabel maps a challenge code to prompt wording; unknown codes pass through.
func ChallengeLabel(code string) string {
	switch normalizeCode(code) {
	case "focus":
		return "staying focused"
	case "motivation":
		return "staying motivated"
	case "overwhelm":
		return "getting overwhelmed"
	case "retention":
		return "remembering things"
	case "application":
		return "applying knowledge"
	case "time":
		return "lack of time"
	case "confidence":
		return "self-doubt"
	default:
		return code
	}
}

func normalizeCode(code string) string {
	return strings.TrimSpace(code)
}
