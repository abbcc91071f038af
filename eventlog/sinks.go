package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// fileSink is the shared append-only file machinery behind the text, JSONL
// and reasoning sinks. The file (and its directory) is created lazily on
// the first write, so an unused sink never touches the filesystem.
type fileSink struct {
	path string

	mu sync.Mutex
	f  *os.File
}

func (s *fileSink) file() (*os.File, error) {
	if s.f != nil {
		return s.f, nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return nil, fmt.Errorf("eventlog: create log directory: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", s.path, err)
	}
	s.f = f
	return f, nil
}

func (s *fileSink) write(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.file()
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		return fmt.Errorf("eventlog: write %s: %w", s.path, err)
	}
	return nil
}

func (s *fileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// TextSink writes one human-readable line per event:
// "timestamp - agent_id - LEVEL - message".
type TextSink struct {
	fileSink
}

// NewTextSink creates a plain-text sink writing to path.
func NewTextSink(path string) *TextSink {
	return &TextSink{fileSink{path: path}}
}

func (s *TextSink) Write(e Event) error {
	line := fmt.Sprintf("%s - %s - %s - %s\n",
		e.Timestamp.Format(time.RFC3339), e.AgentID, e.Level, e.Message)
	return s.write([]byte(line))
}

// JSONLSink writes one JSON object per event per line, enum fields as
// their string values.
type JSONLSink struct {
	fileSink
}

// NewJSONLSink creates a JSON-lines sink writing to path.
func NewJSONLSink(path string) *JSONLSink {
	return &JSONLSink{fileSink{path: path}}
}

func (s *JSONLSink) Write(e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("eventlog: marshal event: %w", err)
	}
	return s.write(append(b, '\n'))
}

// reasoningRecord is the wire shape of one reasoning sink entry.
type reasoningRecord struct {
	Timestamp     time.Time      `json:"timestamp"`
	AgentID       string         `json:"agent_id"`
	EventType     EventType      `json:"event_type"`
	ReasoningStep *int           `json:"reasoning_step,omitempty"`
	ParentEventID *string        `json:"parent_event_id,omitempty"`
	ThinkingChain []string       `json:"thinking_chain,omitempty"`
	Message       string         `json:"message"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// ReasoningSink persists only the four reasoning event kinds, as
// pretty-printed JSON blocks (not strict one-per-line).
type ReasoningSink struct {
	fileSink
}

// NewReasoningSink creates a reasoning sink writing to path, conventionally
// inside a reasoning/ subdirectory of the log dir.
func NewReasoningSink(path string) *ReasoningSink {
	return &ReasoningSink{fileSink{path: path}}
}

func (s *ReasoningSink) Write(e Event) error {
	if !e.Type.Reasoning() {
		return nil
	}
	rec := reasoningRecord{
		Timestamp:     e.Timestamp,
		AgentID:       e.AgentID,
		EventType:     e.Type,
		ReasoningStep: e.ReasoningStep,
		ThinkingChain: e.ThinkingChain,
		Message:       e.Message,
		Metadata:      e.Metadata,
	}
	if e.ParentEventID != nil {
		id := e.ParentEventID.String()
		rec.ParentEventID = &id
	}
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("eventlog: marshal reasoning record: %w", err)
	}
	return s.write(append(b, '\n'))
}
