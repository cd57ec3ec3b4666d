package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"

	"go.uber.org/zap"

	"github.com/parth0cb/agentic-internet-researcher/internal/models"
)

// ContentType of an event stream response
const ContentType = "application/x-ndjson"

// NDJSONWriter writes one JSON-encoded event per line and flushes after each
type NDJSONWriter struct {
	w       io.Writer
	enc     *json.Encoder
	flusher http.Flusher
	logger  *zap.Logger
}

// NewNDJSONWriter creates a writer. Flushing happens when w is an http.Flusher.
func NewNDJSONWriter(w io.Writer, logger *zap.Logger) *NDJSONWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	s := &NDJSONWriter{w: w, enc: enc, logger: logger}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
	}
	return s
}

// SetHeaders prepares an HTTP response for streaming
func SetHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
}

// WriteEvent writes a single event line
func (s *NDJSONWriter) WriteEvent(ev models.Event) error {
	if err := s.enc.Encode(ev); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	s.logger.Debug("event sent", zap.String("type", ev.Type))
	return nil
}

// Copy drains events into the writer. It stops at the first write error,
// which also stops the producer.
func (s *NDJSONWriter) Copy(events iter.Seq[models.Event]) error {
	for ev := range events {
		if err := s.WriteEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads an NDJSON event stream and calls fn for each event.
// Blank lines are skipped.
func Decode(r io.Reader, fn func(models.Event) error) error {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for large answers
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var ev models.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return fmt.Errorf("failed to decode event: %w", err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}

	return scanner.Err()
}
