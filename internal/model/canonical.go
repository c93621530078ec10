package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalJSON produces canonical JSON for report data: keys in byte order,
// no HTML escaping, values as plain JSON numbers with no exponent.
// The output is stable, so stored payloads can be compared byte for byte.
func (d RawReportData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := marshalCanonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		buf.WriteString(d[k].String())
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes report data, keeping numeric members only.
func (d *RawReportData) UnmarshalJSON(data []byte) error {
	parsed, _, err := ParseRawReportData(data)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// marshalCanonicalString encodes a string with HTML escaping disabled.
func marshalCanonicalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	// Encoder adds a trailing newline
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
