package services

import (
	"strings"
)

// Task types selecting the optimization template. Unknown types fall
// back to general.
const (
	TaskTypeGeneral    = "general"
	TaskTypeCreative   = "creative"
	TaskTypeTechnical  = "technical"
	TaskTypeAnalytical = "analytical"
)

const generalTemplate = `You are an expert prompt optimizer. Analyze this prompt and response:

ORIGINAL PROMPT: {original_prompt}
MODEL RESPONSE: {model_response}
TASK TYPE: {task_type}

Create an improved version of the original prompt that will:
1. Be more specific and clear
2. Include relevant context
3. Better guide the model's response
4. Maintain the original intent

Provide ONLY the optimized prompt with no additional explanation.`

const creativeTemplate = `You are an expert prompt optimizer. Analyze this prompt and response:

ORIGINAL PROMPT: {original_prompt}
MODEL RESPONSE: {model_response}
TASK TYPE: {task_type}

Create an improved version of the original prompt that will:
1. Be more specific and clear
2. Encourage vivid, imaginative detail
3. Set tone, style and length expectations
4. Maintain the original intent

Provide ONLY the optimized prompt with no additional explanation.`

const technicalTemplate = `You are an expert prompt optimizer. Analyze this prompt and response:

ORIGINAL PROMPT: {original_prompt}
MODEL RESPONSE: {model_response}
TASK TYPE: {task_type}

Create an improved version of the original prompt that will:
1. Be more specific and clear
2. Ask for concrete examples and terminology
3. Request step-by-step structure where helpful
4. Maintain the original intent

Provide ONLY the optimized prompt with no additional explanation.`

const analyticalTemplate = `You are an expert prompt optimizer. Analyze this prompt and response:

ORIGINAL PROMPT: {original_prompt}
MODEL RESPONSE: {model_response}
TASK TYPE: {task_type}

Create an improved version of the original prompt that will:
1. Be more specific and clear
2. Ask for criteria, trade-offs and evidence
3. Request a balanced comparison of viewpoints
4. Maintain the original intent

Provide ONLY the optimized prompt with no additional explanation.`

// taskPatterns maps task types to prompt substrings, checked in order.
// Order matters: the first matching type wins.
var taskPatterns = []struct {
	taskType string
	patterns []string
}{
	{TaskTypeGeneral, []string{"what is", "tell me about", "explain"}},
	{TaskTypeTechnical, []string{"how does", "implement", "architecture"}},
	{TaskTypeCreative, []string{"write", "create", "design", "story"}},
	{TaskTypeAnalytical, []string{"compare", "analyze", "evaluate"}},
}

// DetectTaskType infers the task type from prompt wording, defaulting
// to general when nothing matches.
func DetectTaskType(prompt string) string {
	lower := strings.ToLower(prompt)
	for _, tp := range taskPatterns {
		for _, pattern := range tp.patterns {
			if strings.Contains(lower, pattern) {
				return tp.taskType
			}
		}
	}
	return TaskTypeGeneral
}

// PromptTemplates renders the optimizer meta-prompt for a task type.
// Templates use {original_prompt}, {model_response} and {task_type}
// placeholders so they stay overridable from configuration.
type PromptTemplates struct {
	templates map[string]string
}

// DefaultTemplates returns the built-in templates for all task types.
func DefaultTemplates() *PromptTemplates {
	return &PromptTemplates{
		templates: map[string]string{
			TaskTypeGeneral:    generalTemplate,
			TaskTypeCreative:   creativeTemplate,
			TaskTypeTechnical:  technicalTemplate,
			TaskTypeAnalytical: analyticalTemplate,
		},
	}
}

// WithOverrides replaces templates for the given task types. Entries with
// empty values are ignored.
func (t *PromptTemplates) WithOverrides(overrides map[string]string) *PromptTemplates {
	for taskType, template := range overrides {
		if template == "" {
			continue
		}
		t.templates[taskType] = template
	}
	return t
}

// Render produces the optimizer prompt for one round. Unknown task types
// render with the general template.
func (t *PromptTemplates) Render(taskType, originalPrompt, modelResponse string) string {
	template, ok := t.templates[taskType]
	if !ok {
		taskType = TaskTypeGeneral
		template = t.templates[TaskTypeGeneral]
	}

	return strings.NewReplacer(
		"{original_prompt}", originalPrompt,
		"{model_response}", modelResponse,
		"{task_type}", taskType,
	).Replace(template)
}
