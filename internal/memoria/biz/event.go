package biz

import (
	"fmt"

	"github.com/kart-io/memoria/pkg/utils/json"
)

// EventType 事件类型标签。
type EventType string

const (
	EventStart        EventType = "start"
	EventProgress     EventType = "progress"
	EventRediagnosing EventType = "rediagnosing"
	EventComplete     EventType = "complete"
	EventError        EventType = "error"
)

// Terminal 判断事件是否终止流。
func (t EventType) Terminal() bool {
	return t == EventComplete || t == EventError
}

// SectionStatus 章节在一次运行中的状态。
type SectionStatus string

const (
	StatusAnalyzing SectionStatus = "analyzing"
	StatusImproving SectionStatus = "improving"
	StatusDone      SectionStatus = "done"
	StatusError     SectionStatus = "error"
)

// SectionPlan 是 start 事件中的单个章节计划。
type SectionPlan struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Score    int      `json:"score"`
	Feedback string   `json:"feedback"`
	Problems []string `json:"problems"`
}

// StartData start 事件内容。
type StartData struct {
	Total    int           `json:"total"`
	Sections []SectionPlan `json:"sections"`
}

// ProgressData progress 事件内容。
type ProgressData struct {
	SectionID  string        `json:"sectionId"`
	Title      string        `json:"title"`
	Status     SectionStatus `json:"status"`
	NewContent string        `json:"newContent,omitempty"`
	OldScore   *int          `json:"oldScore,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// CompleteData complete 事件内容，NewScore 为 nil 表示未能重新评分。
type CompleteData struct {
	Improved int    `json:"improved"`
	Errors   int    `json:"errors"`
	OldScore int    `json:"oldScore"`
	NewScore *int   `json:"newScore"`
	Summary  string `json:"summary"`
}

// ErrorData error 事件内容。
type ErrorData struct {
	Message string `json:"message"`
}

// Event 是修复运行发出的带标签事件，只有与 Type 对应的字段非空。
type Event struct {
	Type     EventType
	Start    *StartData
	Progress *ProgressData
	Complete *CompleteData
	Error    *ErrorData
}

type typeTag struct {
	Type EventType `json:"type"`
}

// MarshalJSON 输出 {"type": ..., <payload fields>}。
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventStart:
		return json.Marshal(struct {
			typeTag
			*StartData
		}{typeTag{e.Type}, e.Start})
	case EventProgress:
		return json.Marshal(struct {
			typeTag
			*ProgressData
		}{typeTag{e.Type}, e.Progress})
	case EventComplete:
		return json.Marshal(struct {
			typeTag
			*CompleteData
		}{typeTag{e.Type}, e.Complete})
	case EventError:
		return json.Marshal(struct {
			typeTag
			*ErrorData
		}{typeTag{e.Type}, e.Error})
	case EventRediagnosing:
		return json.Marshal(typeTag{e.Type})
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
}

// UnmarshalJSON 按 type 字段解码对应内容。
func (e *Event) UnmarshalJSON(data []byte) error {
	var tag typeTag
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	*e = Event{Type: tag.Type}
	switch tag.Type {
	case EventStart:
		e.Start = &StartData{}
		return json.Unmarshal(data, e.Start)
	case EventProgress:
		e.Progress = &ProgressData{}
		return json.Unmarshal(data, e.Progress)
	case EventComplete:
		e.Complete = &CompleteData{}
		return json.Unmarshal(data, e.Complete)
	case EventError:
		e.Error = &ErrorData{}
		return json.Unmarshal(data, e.Error)
	case EventRediagnosing:
		return nil
	default:
		return fmt.Errorf("unknown event type %q", tag.Type)
	}
}
