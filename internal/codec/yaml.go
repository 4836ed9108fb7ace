package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"clinigraph/internal/domain"
)

// YAMLCodec handles YAML import/export. Field names are the same as in
// the JSON document.
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Parse imports a session snapshot from YAML
func (c *YAMLCodec) Parse(r io.Reader) (*domain.SessionAnalysis, error) {
	var doc any
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert YAML: %w", err)
	}

	return NewJSONCodec().Parse(bytes.NewReader(data))
}

// Export exports a session snapshot to YAML
func (c *YAMLCodec) Export(session *domain.SessionAnalysis, w io.Writer) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return encoder.Close()
}
