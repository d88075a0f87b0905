package commsutil

import (
	"encoding/json"
	"fmt"
)

// EncodePayload serializes a value to JSON bytes.
func EncodePayload(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// DecodePayload deserializes JSON bytes into the given target.
func DecodePayload(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// Decode deserializes JSON bytes into a new T.
func Decode[T any](data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("commsutil:codec - failed to decode %T: %w", v, err)
	}
	return &v, nil
}
