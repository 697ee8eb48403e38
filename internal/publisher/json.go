package publisher

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jgoulah/vandebron/pkg/models"
)

// JSONSink serializes the accumulated usage records as indented JSON,
// untransformed.
type JSONSink struct {
	w io.Writer
}

// NewJSONSink creates a sink writing to w (normally os.Stdout).
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{w: w}
}

// Publish writes the full record sequence as one indented JSON document.
func (s *JSONSink) Publish(records []models.UsageRecord) error {
	enc := json.NewEncoder(s.w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encoding usage records: %w", err)
	}
	return nil
}
