// Package task holds the one-shot prompts that run outside the chat loop.
package task

import (
	"fmt"
	"strings"

	"github.com/kitbuilder587/support-assistant/internal/domain"
)

// Task - системный промпт и оформление пользовательского ввода для разового вызова.
type Task struct {
	Mode         domain.Mode
	SystemPrompt string
	template     string // %s заменяется на ввод
}

var (
	Summarize = Task{
		Mode:         domain.ModeSummarize,
		SystemPrompt: "You are a helpful assistant that creates concise, accurate summaries of text. Focus on the main points and key information.",
		template:     "Please summarize the following text:\n\n%s",
	}

	Codegen = Task{
		Mode:         domain.ModeCodegen,
		SystemPrompt: "You are a helpful coding assistant. Generate clean, well-commented code based on user requests. Include explanations when helpful.",
		template:     "%s",
	}
)

func ByMode(mode domain.Mode) (Task, bool) {
	switch mode {
	case domain.ModeSummarize:
		return Summarize, true
	case domain.ModeCodegen:
		return Codegen, true
	}
	return Task{}, false
}

// Message собирает текст пользовательского сообщения. Пустой ввод - ErrEmptyInput.
func (t Task) Message(input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", fmt.Errorf("%s: %w", t.Mode, domain.ErrEmptyInput)
	}
	return fmt.Sprintf(t.template, input), nil
}
