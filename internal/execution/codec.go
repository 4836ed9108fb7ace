package execution

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownEventType is returned by Decode for an unrecognized type tag
var ErrUnknownEventType = errors.New("unknown event type")

// Decode parses one JSON event using its "type" tag
func Decode(data []byte) (Event, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to parse event: %w", err)
	}

	var (
		ev  Event
		err error
	)
	switch head.Type {
	case TypeQOMInitialized:
		ev, err = decodeAs[QOMInitialized](data)
	case TypeNodeStarted:
		ev, err = decodeAs[NodeStarted](data)
	case TypeNodeCompleted:
		ev, err = decodeAs[NodeCompleted](data)
	case TypeNodeFailed:
		ev, err = decodeAs[NodeFailed](data)
	case TypeExpertTriggered:
		ev, err = decodeAs[ExpertTriggered](data)
	case TypeRelationshipAdded:
		ev, err = decodeAs[RelationshipAdded](data)
	case TypeQOMCompleted:
		ev, err = decodeAs[QOMCompleted](data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, head.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s event: %w", head.Type, err)
	}
	return ev, nil
}

func decodeAs[T Event](data []byte) (Event, error) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Encode writes an event as a JSON object with its "type" tag first
func Encode(ev Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", ev.EventType(), err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"type":%q`, ev.EventType())
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
