// Package jsonx provides tolerant JSON decoding for model-generated text.
// Language models are instructed to emit a single raw JSON object, but in
// practice the object may be surrounded by stray prose, contain trailing
// commas, or embed literal newlines. Salvage locates the outermost {...}
// span and repairs those defects before decoding.
package jsonx

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoObject is returned when the input contains no JSON object at all.
var ErrNoObject = errors.New("jsonx: text does not contain a JSON object")

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// Salvage extracts the first JSON object from text and returns it as raw
// JSON. It strips trailing commas and flattens embedded newlines. If a
// streaming decode from the first '{' fails, it retries once with the span
// ending at the last '}'.
func Salvage(text string) (json.RawMessage, error) {
	start := strings.Index(text, "{")
	if start == -1 {
		return nil, ErrNoObject
	}

	candidate := clean(text[start:])
	dec := json.NewDecoder(strings.NewReader(candidate))
	var first json.RawMessage
	if err := dec.Decode(&first); err == nil && isObject(first) {
		return first, nil
	}

	end := strings.LastIndex(text, "}")
	if end == -1 || end < start {
		return nil, ErrNoObject
	}
	candidate = clean(text[start : end+1])
	var second json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &second); err != nil {
		return nil, err
	}
	return second, nil
}

// SalvageInto salvages a JSON object from text and unmarshals it into v.
func SalvageInto(text string, v interface{}) error {
	raw, err := Salvage(text)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func clean(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return trailingComma.ReplaceAllString(s, "$1")
}

func isObject(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return strings.HasPrefix(trimmed, "{")
}
