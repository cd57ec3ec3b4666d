package models

// Event types
const (
	EventLog        = "log"
	EventTokenUsage = "token_usage"
	EventOutput     = "output"
	EventError      = "error"
)

// Event is one unit of the progress/result stream sent to the caller.
// Content is a string for log/output/error, Usage for token_usage and
// SearchLog for search progress.
type Event struct {
	Type    string      `json:"type"`
	Content interface{} `json:"content"`
	Err     error       `json:"-"` // cause of an error event, for errors.Is on the consumer side
}

// SearchLog is the log payload emitted when the agent issues a search
type SearchLog struct {
	Explanation string `json:"explanation"`
	Query       string `json:"query"`
}

func LogEvent(msg string) Event {
	return Event{Type: EventLog, Content: msg}
}

func SearchLogEvent(explanation, query string) Event {
	return Event{Type: EventLog, Content: SearchLog{Explanation: explanation, Query: query}}
}

func UsageEvent(u Usage) Event {
	return Event{Type: EventTokenUsage, Content: u}
}

func OutputEvent(html string) Event {
	return Event{Type: EventOutput, Content: html}
}

func ErrorEvent(err error) Event {
	return Event{Type: EventError, Content: err.Error(), Err: err}
}
