// Package json materializes expanded argument documents into typed structs.
//
// Property binding is case-insensitive, unknown properties are ignored and
// missing ones keep their zero value. Vault fields are always strings, so
// the Int and Bool types here also accept their quoted forms.
package json

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Decode parses data into a new T.
func Decode[T any](data []byte) (T, error) {
	var result T
	if err := DecodeInto(data, &result); err != nil {
		return result, err
	}
	return result, nil
}

// DecodeInto parses data into the value pointed to by target.
func DecodeInto(data []byte, target interface{}) error {
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal arguments: %w", err)
	}
	return nil
}

// Encode marshals arguments for transport to a helper process.
func Encode(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal arguments: %w", err)
	}
	return data, nil
}

// Int is an integer that also unmarshals from a quoted number.
// An empty string leaves it at zero.
type Int int

// UnmarshalJSON implements json.Unmarshaler.
func (i *Int) UnmarshalJSON(data []byte) error {
	text, err := unquote(data)
	if err != nil {
		return err
	}
	if text == "" || text == "null" {
		*i = 0
		return nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return fmt.Errorf("invalid integer %q", text)
	}
	*i = Int(n)
	return nil
}

// Bool is a boolean that also unmarshals from "true"/"false"/"yes"/"no"/"1"/"0".
type Bool bool

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bool) UnmarshalJSON(data []byte) error {
	text, err := unquote(data)
	if err != nil {
		return err
	}
	switch strings.ToLower(text) {
	case "true", "yes", "1", "on":
		*b = true
	case "false", "no", "0", "off", "", "null":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %q", text)
	}
	return nil
}

func unquote(data []byte) (string, error) {
	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	return text, nil
}
