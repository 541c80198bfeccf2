package executor

import "encoding/json"

// rawLine is the superset of fields the agent CLI emits per output line.
type rawLine struct {
	Type       string                 `json:"type"`
	Text       string                 `json:"text"`
	Tool       string                 `json:"tool"`
	Parameters map[string]interface{} `json:"parameters"`
	Message    string                 `json:"message"`
	Percent    *int                   `json:"percent"`
	Code       string                 `json:"code"`
}

// parseLine converts one line of CLI output into an event. Lines that are
// not JSON, or JSON of an unrecognized type, are passed through verbatim as
// content so nothing the CLI says is silently dropped. A "complete" line is
// deliberately in the fallback set: terminal completion is derived from the
// subprocess exit status, so a CLI-claimed completion rides through as
// content instead of ending the stream.
func parseLine(line string) Event {
	var raw rawLine
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Event{Type: EventContent, Text: line}
	}

	switch EventType(raw.Type) {
	case EventContent:
		return Event{Type: EventContent, Text: raw.Text}
	case EventToolUse:
		return Event{Type: EventToolUse, Tool: raw.Tool, Parameters: raw.Parameters}
	case EventProgress:
		return Event{Type: EventProgress, Message: raw.Message, Percent: raw.Percent}
	case EventError:
		return Event{Type: EventError, Code: raw.Code, Message: raw.Message}
	default:
		return Event{Type: EventContent, Text: line}
	}
}
