// Package codec converts session snapshots to and from their document
// formats.
package codec

import (
	"fmt"
	"io"
	"strings"

	"clinigraph/internal/domain"
)

// Importer interface for importing session snapshots from various formats
type Importer interface {
	Parse(r io.Reader) (*domain.SessionAnalysis, error)
	Format() string
}

// Exporter interface for exporting session snapshots to various formats
type Exporter interface {
	Export(session *domain.SessionAnalysis, w io.Writer) error
	Format() string
}

// Codec both imports and exports one format
type Codec interface {
	Importer
	Exporter
}

// ForFormat returns the codec registered for a format name or file extension
func ForFormat(format string) (Codec, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "json", "":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
