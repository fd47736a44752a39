package parsers

import (
	"encoding/json"
	"strings"
)

type EventKind int

const (
	// EventMessage is a plain-text progress line.
	EventMessage EventKind = iota
	// EventProgress is a {"status":"progress"} JSON line.
	EventProgress
	// EventError is a {"status":"error"} JSON line. The script prints these
	// for some failures while still exiting 0.
	EventError
	// EventResult is the final analysis document.
	EventResult
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventError:
		return "error"
	case EventResult:
		return "result"
	default:
		return "message"
	}
}

// Event is one classified line of report script output.
type Event struct {
	Kind      EventKind
	Line      string
	Message   string
	Processed int
	Total     int
	Result    *AnalysisResult
}

// Percent is the rounded completion percentage of a progress event.
func (e Event) Percent() int {
	if e.Total <= 0 {
		return 0
	}
	return int((float64(e.Processed)/float64(e.Total))*100 + 0.5)
}

type statusLine struct {
	Status    *string `json:"status"`
	Message   string  `json:"message"`
	Processed *int    `json:"processed"`
	Total     *int    `json:"total"`
}

// ParseLine classifies one line of output. Lines that are not JSON objects
// are plain messages.
func ParseLine(line string) Event {
	trimmed := strings.TrimSpace(line)
	ev := Event{Kind: EventMessage, Line: line, Message: trimmed}

	if !strings.HasPrefix(trimmed, "{") {
		return ev
	}

	var status statusLine
	if err := json.Unmarshal([]byte(trimmed), &status); err != nil {
		return ev
	}

	if status.Status == nil {
		var result AnalysisResult
		if err := json.Unmarshal([]byte(trimmed), &result); err != nil {
			return ev
		}
		ev.Kind = EventResult
		ev.Result = &result
		ev.Message = ""
		return ev
	}

	switch *status.Status {
	case "error":
		ev.Kind = EventError
		ev.Message = status.Message
	case "progress":
		ev.Kind = EventProgress
		ev.Message = status.Message
		if status.Processed != nil {
			ev.Processed = *status.Processed
		}
		if status.Total != nil {
			ev.Total = *status.Total
		}
	default:
		ev.Message = status.Message
	}

	return ev
}

// Summary is what a whole run's output amounts to.
type Summary struct {
	Result       *AnalysisResult
	ErrorMessage string
	LastProgress *Event
	Messages     int
}

// Add folds one event into the summary.
func (s *Summary) Add(ev Event) {
	switch ev.Kind {
	case EventResult:
		s.Result = ev.Result
	case EventError:
		s.ErrorMessage = ev.Message
	case EventProgress:
		p := ev
		s.LastProgress = &p
	default:
		s.Messages++
	}
}

// Collect parses the full output of a blocking run.
func Collect(output string) Summary {
	var s Summary
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		s.Add(ParseLine(line))
	}
	return s
}
