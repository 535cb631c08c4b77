package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// decodeJSON decodes data into out after rewriting snake_case object keys
// to camelCase, so "user_id" and "userId" land on the same field.
// The payload must be exactly one non-null JSON value.
func decodeJSON(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		return errNullPayload
	}
	if err := dec.Decode(new(json.RawMessage)); !errors.Is(err, io.EOF) {
		return errTrailingData
	}

	normalized, err := json.Marshal(camelizeKeys(raw))
	if err != nil {
		return err
	}
	return json.Unmarshal(normalized, out)
}

var (
	errNullPayload  = errors.New("payload is null")
	errTrailingData = errors.New("unexpected data after JSON value")
)

func camelizeKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[snakeToCamel(k)] = camelizeKeys(val)
		}
		return out
	case []any:
		for i := range t {
			t[i] = camelizeKeys(t[i])
		}
		return t
	default:
		return v
	}
}

// snakeToCamel converts "owner_id" to "ownerId". Leading and trailing
// underscores are kept, so "_page" stays "_page".
func snakeToCamel(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}

	core := strings.Trim(s, "_")
	if core == "" {
		return s
	}
	lead := s[:strings.Index(s, core)]
	trail := s[len(lead)+len(core):]

	parts := strings.Split(core, "_")
	var b strings.Builder
	b.WriteString(lead)
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(p)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(p[size:])
	}
	b.WriteString(trail)
	return b.String()
}
