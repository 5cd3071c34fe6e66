package domain

import "fmt"

// Transcript - упорядоченная история сообщений одной сессии.
// Значение неизменяемое: Append возвращает новый транскрипт, исходный не трогается.
type Transcript struct {
	messages []Message
}

// NewTranscript создает транскрипт с системным сообщением.
// Пустой systemPrompt дает пустой транскрипт без system-записи.
func NewTranscript(systemPrompt string) Transcript {
	if systemPrompt == "" {
		return Transcript{}
	}
	return Transcript{messages: []Message{SystemMessage(systemPrompt)}}
}

func (t Transcript) Append(msgs ...Message) Transcript {
	next := make([]Message, 0, len(t.messages)+len(msgs))
	next = append(next, t.messages...)
	next = append(next, msgs...)
	return Transcript{messages: next}
}

func (t Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t Transcript) Len() int {
	return len(t.messages)
}

func (t Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

func (t Transcript) HasSystemPrompt() bool {
	return len(t.messages) > 0 && t.messages[0].Role == RoleSystem
}

// Validate проверяет инварианты: system только первым, без двух user подряд.
// Транскрипт-кандидат с висящим user-сообщением в конце валиден.
func (t Transcript) Validate() error {
	for i, m := range t.messages {
		if !m.Role.IsValid() {
			return fmt.Errorf("%w: message %d has role %q", ErrInvalidTranscript, i, m.Role)
		}
		if m.Role == RoleSystem && i != 0 {
			return fmt.Errorf("%w: system message at position %d", ErrInvalidTranscript, i)
		}
		if i > 0 && m.Role == RoleUser && t.messages[i-1].Role == RoleUser {
			return fmt.Errorf("%w: consecutive user messages at position %d", ErrInvalidTranscript, i)
		}
	}
	return nil
}

func (t Transcript) Equal(other Transcript) bool {
	if len(t.messages) != len(other.messages) {
		return false
	}
	for i := range t.messages {
		if t.messages[i] != other.messages[i] {
			return false
		}
	}
	return true
}
