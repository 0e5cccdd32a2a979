// Package lessons provides lesson-plan lookup by skill level. Plan
// content lives behind the Provider interface; the bundled static
// provider is the only implementation for now.
package lessons

import "sort"

// Skill level bounds accepted by the API.
const (
	MinSkillLevel = 1
	MaxSkillLevel = 10
)

// Phrase is a practice phrase with its English rendering.
type Phrase struct {
	Text        string `json:"text"`
	Translation string `json:"translation"`
}

// Plan is a lesson plan for one skill level.
type Plan struct {
	SkillLevel  int      `json:"skill_level"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Objectives  []string `json:"objectives"`
	Phrases     []Phrase `json:"phrases"`
}

// Provider serves lesson plans.
type Provider interface {
	// Get returns the plan for a skill level. Levels above the highest
	// seeded plan fall back to the highest; a true miss returns false.
	Get(skillLevel int) (*Plan, bool)

	// Levels returns the seeded skill levels in ascending order.
	Levels() []int
}

// StaticProvider serves plans from an in-memory dictionary keyed by
// skill level.
type StaticProvider struct {
	plans map[int]*Plan
}

// NewStaticProvider creates a provider over the given plans.
func NewStaticProvider(plans map[int]*Plan) *StaticProvider {
	return &StaticProvider{plans: plans}
}

// NewDefaultProvider creates a provider seeded with the built-in plans.
func NewDefaultProvider() *StaticProvider {
	return NewStaticProvider(defaultPlans)
}

var _ Provider = (*StaticProvider)(nil)

// Get returns the plan for a skill level, falling back to the highest
// seeded level for learners beyond it.
func (p *StaticProvider) Get(skillLevel int) (*Plan, bool) {
	if plan, ok := p.plans[skillLevel]; ok {
		return plan, true
	}
	levels := p.Levels()
	if len(levels) == 0 {
		return nil, false
	}
	highest := levels[len(levels)-1]
	if skillLevel > highest {
		return p.plans[highest], true
	}
	return nil, false
}

// Levels returns the seeded skill levels in ascending order.
func (p *StaticProvider) Levels() []int {
	levels := make([]int, 0, len(p.plans))
	for level := range p.plans {
		levels = append(levels, level)
	}
	sort.Ints(levels)
	return levels
}

var defaultPlans = map[int]*Plan{
	1: {
		SkillLevel:  1,
		Title:       "Greetings and Introductions",
		Description: "First words: greeting someone, introducing yourself and saying goodbye.",
		Objectives:  []string{"Greet a stranger", "State your name", "Say goodbye politely"},
		Phrases: []Phrase{
			{Text: "Hola, ¿cómo estás?", Translation: "Hello, how are you?"},
			{Text: "Me llamo Ana.", Translation: "My name is Ana."},
			{Text: "Hasta luego.", Translation: "See you later."},
		},
	},
	2: {
		SkillLevel:  2,
		Title:       "Everyday Essentials",
		Description: "Numbers, days of the week and ordering food and drink.",
		Objectives:  []string{"Count to one hundred", "Name the days of the week", "Order in a cafe"},
		Phrases: []Phrase{
			{Text: "Quisiera un café, por favor.", Translation: "I would like a coffee, please."},
			{Text: "¿Cuánto cuesta?", Translation: "How much does it cost?"},
		},
	},
	3: {
		SkillLevel:  3,
		Title:       "Getting Around",
		Description: "Asking for directions, transport and telling the time.",
		Objectives:  []string{"Ask for directions", "Buy a ticket", "Tell the time"},
		Phrases: []Phrase{
			{Text: "¿Dónde está la estación?", Translation: "Where is the station?"},
			{Text: "El tren sale a las nueve.", Translation: "The train leaves at nine."},
		},
	},
	4: {
		SkillLevel:  4,
		Title:       "Talking About Yourself",
		Description: "Past tense basics: your day, your work and your plans.",
		Objectives:  []string{"Describe your day in the past tense", "Talk about your job", "Make plans"},
		Phrases: []Phrase{
			{Text: "Ayer trabajé hasta tarde.", Translation: "Yesterday I worked late."},
			{Text: "El fin de semana voy a viajar.", Translation: "This weekend I am going to travel."},
		},
	},
	5: {
		SkillLevel:  5,
		Title:       "Opinions and Conversation",
		Description: "Expressing opinions, agreeing, disagreeing and keeping a conversation going.",
		Objectives:  []string{"Give an opinion", "Agree and disagree politely", "Ask follow-up questions"},
		Phrases: []Phrase{
			{Text: "En mi opinión, tienes razón.", Translation: "In my opinion, you are right."},
			{Text: "No estoy de acuerdo.", Translation: "I do not agree."},
		},
	},
}
