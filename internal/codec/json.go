package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"clinigraph/internal/domain"
)

// JSONCodec handles JSON import/export
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse imports a session snapshot from JSON. Missing node groups load as
// empty groups.
func (c *JSONCodec) Parse(r io.Reader) (*domain.SessionAnalysis, error) {
	var session domain.SessionAnalysis
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	session.EnsureGroups()
	return &session, nil
}

// Export exports a session snapshot to JSON
func (c *JSONCodec) Export(session *domain.SessionAnalysis, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(session); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
