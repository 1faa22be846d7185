package soap

import (
	"bytes"
	"encoding/xml"
)

// escape entity-encodes text for inclusion in hand-built XML fragments,
// delegating to the stdlib codec rather than hand-rolling one (the
// tokenizer/entity codec is an out-of-scope external collaborator;
// encoding/xml is the concrete stdlib tool the teacher's own
// cwmpResponse.go already reaches for).
func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// Unescape entity-decodes a parameter value read off the wire. Values
// arriving through xml.Unmarshal are already decoded by the stdlib
// decoder; this helper exists for the rarer case of decoding a
// standalone fragment (e.g. in tests exercising the round-trip
// property in spec.md §8).
func Unescape(s string) (string, error) {
	var out struct {
		Value string `xml:",chardata"`
	}
	if err := xml.Unmarshal([]byte("<x>"+s+"</x>"), &out); err != nil {
		return "", err
	}
	return out.Value, nil
}

// Escape is the exported form of escape, used by handlers that build
// parameter value XML directly.
func Escape(s string) string {
	return escape(s)
}
