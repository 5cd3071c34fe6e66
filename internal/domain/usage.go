package domain

import "time"

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

type CallStatus string

const (
	CallSuccess CallStatus = "success"
	CallFailed  CallStatus = "failed"
)

// Mode - для чего сделан вызов: диалог или разовая задача.
type Mode string

const (
	ModeChat      Mode = "chat"
	ModeSummarize Mode = "summarize"
	ModeCodegen   Mode = "codegen"
)

func (m Mode) IsValid() bool {
	switch m {
	case ModeChat, ModeSummarize, ModeCodegen:
		return true
	}
	return false
}

// UsageRecord - метаданные одного вызова LLM. Текст сообщений не хранится.
type UsageRecord struct {
	ID        string
	SessionID string
	Provider  string
	Model     string
	Mode      Mode
	Status    CallStatus
	Usage     Usage
	Cost      float64 // оценка в USD, см. EstimateCost
	Latency   time.Duration
	ErrorText string
	CreatedAt time.Time
}

type UsageSummary struct {
	SessionID  string
	Calls      int
	Failed     int
	Usage      Usage
	Cost       float64
	AvgLatency time.Duration // по успешным вызовам
	FirstCall  time.Time
	LastCall   time.Time
}

// SessionStats - счетчики живой сессии, печатаются при выходе.
type SessionStats struct {
	Requests   int
	Failed     int
	Usage      Usage
	Cost       float64
	AvgLatency time.Duration
}
