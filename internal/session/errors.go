package session

import (
	"errors"
	"fmt"

	"github.com/kitbuilder587/support-assistant/internal/llm"
)

type ErrorKind int

const (
	// KindServiceCall - сбой вызова сервиса: сеть, битый ответ, квота, таймаут.
	// Сессия жива, ход откатан.
	KindServiceCall ErrorKind = iota + 1
	// KindCredential - ключ не задан или отвергнут сервисом.
	KindCredential
	// KindClientInit - клиента собрать не удалось, сессия не стартует.
	KindClientInit
)

func (k ErrorKind) String() string {
	switch k {
	case KindServiceCall:
		return "service call failed"
	case KindCredential:
		return "credential error"
	case KindClientInit:
		return "client initialization failed"
	default:
		return "unknown error"
	}
}

type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf возвращает вид ошибки сессии или 0, если err не *Error.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

// ClientInitError классифицирует ошибку сборки клиента: отсутствующий ключ -
// это KindCredential, все остальное - KindClientInit.
func ClientInitError(err error) error {
	if err == nil {
		return nil
	}
	if llm.IsCredentialError(err) {
		return &Error{Kind: KindCredential, Err: err}
	}
	return &Error{Kind: KindClientInit, Err: err}
}

func classify(err error) ErrorKind {
	if llm.IsCredentialError(err) {
		return KindCredential
	}
	return KindServiceCall
}
