package logging

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Diagnostics receives render warnings and errors. Implementations are
// caller-owned and outlive a single render.
type Diagnostics interface {
	Error(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Log(msg string, fields ...interface{})
}

// Console writes diagnostics through a structured Logger.
type Console struct {
	logger Logger
}

// NewConsole adapts a Logger into a Diagnostics sink. A nil logger writes
// text records to stderr.
func NewConsole(logger Logger) *Console {
	if logger == nil {
		logger = NewLogger(DefaultConfig())
	}

	return &Console{logger: logger.WithComponent("render")}
}

// Error logs a fatal-to-subtree diagnostic.
func (c *Console) Error(msg string, fields ...interface{}) {
	c.logger.Error(context.Background(), nil, msg, fields...)
}

// Warn logs a recoverable diagnostic.
func (c *Console) Warn(msg string, fields ...interface{}) {
	c.logger.Warn(context.Background(), nil, msg, fields...)
}

// Log logs an informational diagnostic.
func (c *Console) Log(msg string, fields ...interface{}) {
	c.logger.Info(context.Background(), msg, fields...)
}

// Entry is one recorded diagnostic.
type Entry struct {
	Level   LogLevel               `json:"-" yaml:"-"`
	Message string                 `json:"message" yaml:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// LevelName is the lower-case level used in reports.
func (e Entry) LevelName() string {
	return strings.ToLower(e.Level.String())
}

// String renders the entry as "LEVEL message".
func (e Entry) String() string {
	return fmt.Sprintf("%s %s", e.Level, e.Message)
}

// Recorder collects diagnostics in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Error records an error entry.
func (r *Recorder) Error(msg string, fields ...interface{}) {
	r.add(LevelError, msg, fields)
}

// Warn records a warning entry.
func (r *Recorder) Warn(msg string, fields ...interface{}) {
	r.add(LevelWarn, msg, fields)
}

// Log records an info entry.
func (r *Recorder) Log(msg string, fields ...interface{}) {
	r.add(LevelInfo, msg, fields)
}

func (r *Recorder) add(level LogLevel, msg string, fields []interface{}) {
	entry := Entry{Level: level, Message: msg}
	if len(fields) > 1 {
		entry.Fields = make(map[string]interface{}, len(fields)/2)
		for i := 0; i+1 < len(fields); i += 2 {
			if key, ok := fields[i].(string); ok {
				entry.Fields[key] = fields[i+1]
			}
		}
	}

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)

	return out
}

// Errors returns the messages recorded at error level.
func (r *Recorder) Errors() []string {
	return r.messages(LevelError)
}

// Warnings returns the messages recorded at warn level.
func (r *Recorder) Warnings() []string {
	return r.messages(LevelWarn)
}

func (r *Recorder) messages(level LogLevel) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, e := range r.entries {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}

	return out
}

// Reset drops all recorded entries.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.entries = nil
	r.mu.Unlock()
}

// Discard drops every diagnostic.
var Discard Diagnostics = discard{}

type discard struct{}

func (discard) Error(string, ...interface{}) {}
func (discard) Warn(string, ...interface{})  {}
func (discard) Log(string, ...interface{})   {}

// severityError is satisfied by structured render errors.
type severityError interface {
	error
	Fatal() bool
	Fields() []interface{}
}

// Report routes err to d: fatal render errors go to Error, everything else
// carrying a severity goes to Warn, and plain errors are treated as fatal.
func Report(d Diagnostics, err error) {
	if d == nil || err == nil {
		return
	}
	se, ok := err.(severityError)
	if !ok {
		d.Error(err.Error())
		return
	}
	if se.Fatal() {
		d.Error(se.Error(), se.Fields()...)
		return
	}
	d.Warn(se.Error(), se.Fields()...)
}
