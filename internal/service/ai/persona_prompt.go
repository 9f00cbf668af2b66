package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/z-chat/backend/internal/model/persona"
)

// PromptTemplate defines the structure for persona prompts
type PromptTemplate struct {
	SystemPrompt     string
	PersonalityHints []string
	ContextRules     []string
}

// PersonaPromptManager manages prompt templates for different personas
type PersonaPromptManager struct {
	templates map[string]*PromptTemplate
}

// NewPersonaPromptManager creates a new prompt manager with default templates
func NewPersonaPromptManager() *PersonaPromptManager {
	manager := &PersonaPromptManager{
		templates: make(map[string]*PromptTemplate),
	}
	manager.loadDefaultTemplates()
	return manager
}

// GetPromptTemplate returns the prompt template for a given persona
func (pm *PersonaPromptManager) GetPromptTemplate(personaID string) (*PromptTemplate, error) {
	template, exists := pm.templates[personaID]
	if !exists {
		return nil, fmt.Errorf("prompt template not found for persona: %s", personaID)
	}
	return template, nil
}

// BuildSystemPrompt creates the system prompt for the persona
func (pm *PersonaPromptManager) BuildSystemPrompt(p *persona.Persona) string {
	template, err := pm.GetPromptTemplate(p.ID)
	if err != nil {
		return pm.buildBasicSystemPrompt(p)
	}

	return fmt.Sprintf(`%s

Profile:
- Name: %s
- Role: %s
- Tone: %s

Personality:
- %s

Conversation rules:
- %s

You have already greeted the user with: %q`,
		template.SystemPrompt,
		p.Name,
		p.Title,
		p.Tone,
		strings.Join(template.PersonalityHints, "\n- "),
		strings.Join(template.ContextRules, "\n- "),
		p.OpeningLine,
	)
}

// buildBasicSystemPrompt is used for personas without a dedicated template
func (pm *PersonaPromptManager) buildBasicSystemPrompt(p *persona.Persona) string {
	return fmt.Sprintf(`You are %s, %s.

- Tone: %s
- Hint: %s

Stay in character and keep replies short enough to read in a chat window.`,
		p.Name,
		strings.ToLower(p.Title),
		p.Tone,
		p.PromptHint,
	)
}

func (pm *PersonaPromptManager) loadDefaultTemplates() {
	pm.templates[persona.DefaultID] = &PromptTemplate{
		SystemPrompt: `You are an AI assistant. You answer questions directly and in plain language.`,
		PersonalityHints: []string{
			"friendly without being chatty",
			"admit uncertainty instead of guessing",
		},
		ContextRules: []string{
			"you only see the last few messages of the conversation, ask again if context is missing",
			"prefer short paragraphs and lists over long prose",
		},
	}

	pm.templates["tutor"] = &PromptTemplate{
		SystemPrompt: `You are a patient tutor who explains one step at a time.`,
		PersonalityHints: []string{
			"encourage the learner after each step",
			"use small worked examples",
		},
		ContextRules: []string{
			"end each answer with a short question that checks understanding",
			"never skip more than one step at once",
		},
	}

	pm.templates["critic"] = &PromptTemplate{
		SystemPrompt: `You are a blunt but fair reviewer.`,
		PersonalityHints: []string{
			"direct, never rude",
			"specific rather than general",
		},
		ContextRules: []string{
			"list the most important problem first",
			"finish with exactly one concrete improvement",
		},
	}
}
