package runner

import (
	"fmt"
	"runtime"
)

// ScriptName is the report script the runner launches by default.
const ScriptName = "brutalist_report.py"

// Params are the caller-supplied inputs for one report run. A nil Topic
// means no topic was given; an empty non-nil Topic is still passed through.
type Params struct {
	Topic    *string
	LastWeek bool
}

// Topic returns a pointer to v for use in Params.
func Topic(v string) *string {
	return &v
}

// HasTopic reports whether a topic was supplied.
func (p Params) HasTopic() bool {
	return p.Topic != nil
}

// TopicValue returns the topic or "" when absent.
func (p Params) TopicValue() string {
	if p.Topic == nil {
		return ""
	}
	return *p.Topic
}

func (p Params) String() string {
	if p.Topic == nil {
		return fmt.Sprintf("topic=<none> last_week=%t", p.LastWeek)
	}
	return fmt.Sprintf("topic=%q last_week=%t", *p.Topic, p.LastWeek)
}

// BuildArgs returns the interpreter arguments for a run: the script first,
// then "--topic <value>" when a topic is present, then "--last-week".
func BuildArgs(script string, p Params) []string {
	args := make([]string, 0, 4)
	args = append(args, script)

	if p.Topic != nil {
		args = append(args, "--topic", *p.Topic)
	}

	if p.LastWeek {
		args = append(args, "--last-week")
	}

	return args
}

// InterpreterFor returns the python executable name used on goos.
func InterpreterFor(goos string) string {
	if goos == "windows" {
		return "python"
	}
	return "python3"
}

// DefaultInterpreter is InterpreterFor the running platform.
func DefaultInterpreter() string {
	return InterpreterFor(runtime.GOOS)
}
