package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// StringList is an ordered list of short tokens (facilities, rules).
// It always marshals as a JSON array, never null.
type StringList []string

func (l StringList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

// UnmarshalJSON accepts an array of strings, null, or a string. A string that
// looks like a JSON array is decoded as one, which is how browsers submitting
// FormData usually send lists.
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseStringList(s)
		if err != nil {
			return err
		}
		*l = parsed
		return nil
	}

	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedList, err)
	}
	*l = arr
	return nil
}

// ParseStringList turns a single textual value into a list: "" and "null"
// give an empty list, "[...]" is decoded as JSON, anything else is one token.
func ParseStringList(raw string) (StringList, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "" || raw == "null" || raw == "undefined":
		return StringList{}, nil
	case strings.HasPrefix(raw, "["):
		var arr []string
		if err := json.Unmarshal([]byte(raw), &arr); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedList, err)
		}
		return arr, nil
	default:
		return StringList{raw}, nil
	}
}

// Text is free-form or numeric text. JSON numbers are kept verbatim.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", data)
		}
		*t = Text(n.String())
	}
	return nil
}
