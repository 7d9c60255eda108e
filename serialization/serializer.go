package serialization

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Serializer converts application payloads to and from wire bytes. The core
// treats the format as opaque; implementations must round-trip any value they
// accept.
type Serializer interface {
	// Serialize encodes a value into wire bytes
	Serialize(value interface{}) ([]byte, error)

	// Deserialize decodes wire bytes into a value
	Deserialize(data []byte) (interface{}, error)

	// ContentType returns the MIME type written on published messages
	ContentType() string
}

// JSONSerializer is the default Serializer. Numbers are decoded with
// json.Number so integer payloads survive the round trip undistorted.
type JSONSerializer struct{}

// NewJSONSerializer creates a JSON serializer
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

// Serialize encodes a value as JSON
func (s *JSONSerializer) Serialize(value interface{}) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("serialize payload: %w", err)
	}
	return data, nil
}

// Deserialize decodes JSON bytes into a generic value
func (s *JSONSerializer) Deserialize(data []byte) (interface{}, error) {
	if len(data) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("deserialize payload: %w", err)
	}
	return value, nil
}

// ContentType returns the JSON MIME type
func (s *JSONSerializer) ContentType() string {
	return "application/json"
}
