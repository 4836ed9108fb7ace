// Package loader reads recorded execution event streams and session
// snapshots from files.
//
// Event files are newline-delimited JSON (.ndjson, .jsonl), a JSON array
// (.json) or a YAML sequence (.yaml, .yml). Every entry has the same shape
// as an event on the wire: a "type" tag plus the event fields.
package loader

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"clinigraph/internal/codec"
	"clinigraph/internal/domain"
	"clinigraph/internal/execution"
)

// Event file formats
const (
	FormatNDJSON = "ndjson"
	FormatJSON   = "json"
	FormatYAML   = "yaml"
)

// maxLine bounds a single NDJSON line; QOM payloads can be large
const maxLine = 4 * 1024 * 1024

// FormatForPath picks the event file format from the file extension
func FormatForPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ndjson", ".jsonl":
		return FormatNDJSON, nil
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported event file: %s", path)
	}
}

// LoadEvents reads an event file
func LoadEvents(path string) ([]execution.Event, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open events: %w", err)
	}
	defer f.Close()

	return ReadEvents(f, format)
}

// ReadEvents decodes events in the given format
func ReadEvents(r io.Reader, format string) ([]execution.Event, error) {
	switch format {
	case FormatNDJSON:
		return readNDJSON(r)
	case FormatJSON:
		return readJSONArray(r)
	case FormatYAML:
		return readYAML(r)
	default:
		return nil, fmt.Errorf("unsupported event format: %s", format)
	}
}

func readNDJSON(r io.Reader) ([]execution.Event, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	events := make([]execution.Event, 0)
	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		ev, err := execution.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, ev)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, nil
}

func readJSONArray(r io.Reader) ([]execution.Event, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON events: %w", err)
	}
	return decodeAll(raw)
}

func readYAML(r io.Reader) ([]execution.Event, error) {
	var docs []any
	if err := yaml.NewDecoder(r).Decode(&docs); err != nil {
		if err == io.EOF {
			return []execution.Event{}, nil
		}
		return nil, fmt.Errorf("failed to parse YAML events: %w", err)
	}

	raw := make([]json.RawMessage, len(docs))
	for i, doc := range docs {
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		raw[i] = data
	}
	return decodeAll(raw)
}

func decodeAll(raw []json.RawMessage) ([]execution.Event, error) {
	events := make([]execution.Event, 0, len(raw))
	for i, data := range raw {
		ev, err := execution.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// LoadSnapshot reads a session snapshot, choosing the codec from the
// file extension
func LoadSnapshot(path string) (*domain.SessionAnalysis, error) {
	c, err := codec.ForFormat(filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	return c.Parse(f)
}
