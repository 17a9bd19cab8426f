package persistence

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
)

func init() {
	// Values decoded from JSON triggers and step outputs are usually built
	// from these two; gob needs them registered to travel inside interfaces.
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(map[string]string{})
	gob.Register(map[string]int{})
	gob.Register(map[string]float64{})
	gob.Register([]string{})
	gob.Register([]int{})
	gob.Register([]map[string]any{})
}

// Encoder is implemented by stores that serialize thread values. The memory
// save step leaves out values that Encodable rejects instead of failing the
// whole save.
type Encoder interface {
	Encodable(v any) error
}

// Encodable reports whether v can travel inside the values EncodeValues
// writes.
func Encodable(v any) error {
	if err := gob.NewEncoder(io.Discard).Encode(map[string]any{"v": v}); err != nil {
		return fmt.Errorf("encode thread value: %w", err)
	}
	return nil
}

// EncodeValues serializes thread values using encoding/gob.
// Concrete types stored inside the map must be gob-registered by the caller.
func EncodeValues(values map[string]any) ([]byte, error) {
	if len(values) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(values); err != nil {
		return nil, fmt.Errorf("encode thread values: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeValues is the inverse of EncodeValues. Empty data decodes to an
// empty, non-nil map.
func DecodeValues(data []byte) (map[string]any, error) {
	values := map[string]any{}
	if len(data) == 0 {
		return values, nil
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&values); err != nil {
		return nil, fmt.Errorf("decode thread values: %w", err)
	}
	return values, nil
}
