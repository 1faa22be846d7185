// Package soap builds and parses the SOAP/CWMP envelopes exchanged
// with the ACS. It keeps the teacher's reliance on encoding/xml for the
// codec (component A is an external collaborator; encoding/xml is the
// stdlib tool the teacher itself already reaches for in cwmpResponse.go)
// and adds the envelope/fault wrapping the spec requires.
package soap

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

const (
	nsSoapEnc = "http://schemas.xmlsoap.org/soap/encoding/"
	nsSoapEnv = "http://schemas.xmlsoap.org/soap/envelope/"
	nsXSD     = "http://www.w3.org/2001/XMLSchema"
	nsXSI     = "http://www.w3.org/2001/XMLSchema-instance"
	nsCwmp    = "urn:dslforum-org:cwmp-1-0"
)

// Envelope is the outer SOAP structure. Body is kept as raw XML so that
// the dispatch layer (internal/rpc) can decide, by local name, which
// concrete request/response type to unmarshal it into.
type Envelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Header  *Header  `xml:"Header"`
	Body    Body     `xml:"Body"`
}

// Header carries the cwmp:ID echoed across a session's exchanges.
type Header struct {
	ID HeaderID `xml:"ID"`
}

// HeaderID is the cwmp:ID element, which always sets mustUnderstand.
type HeaderID struct {
	MustUnderstand string `xml:"mustUnderstand,attr"`
	Value          string `xml:",chardata"`
}

// Body wraps either a single RPC payload (Raw) or a Fault. Exactly one
// of the two is meaningful on any given envelope.
type Body struct {
	Fault *Fault `xml:"Fault"`
	Raw   []byte `xml:",innerxml"`
}

// NewEnvelope wraps payload (already-marshalled RPC XML, e.g. a
// <cwmp:Inform>...</cwmp:Inform> fragment) in a full SOAP envelope
// carrying requestID in its header.
func NewEnvelope(requestID string, payload []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(`<soap-env:Envelope`)
	buf.WriteString(` xmlns:soap-enc="` + nsSoapEnc + `"`)
	buf.WriteString(` xmlns:soap-env="` + nsSoapEnv + `"`)
	buf.WriteString(` xmlns:xsd="` + nsXSD + `"`)
	buf.WriteString(` xmlns:xsi="` + nsXSI + `"`)
	buf.WriteString(` xmlns:cwmp="` + nsCwmp + `">`)
	buf.WriteString(`<soap-env:Header><cwmp:ID soap-env:mustUnderstand="1">`)
	xml.EscapeText(&buf, []byte(requestID))
	buf.WriteString(`</cwmp:ID></soap-env:Header>`)
	buf.WriteString(`<soap-env:Body>`)
	buf.Write(payload)
	buf.WriteString(`</soap-env:Body></soap-env:Envelope>`)
	return buf.Bytes()
}

// Parsed is the result of decoding an inbound envelope enough to route
// it: the request id from the header and the raw body bytes for the
// dispatch layer to inspect further.
type Parsed struct {
	RequestID string
	BodyXML   []byte
	IsFault   bool
}

// Parse decodes a raw envelope. An empty payload is a valid "close the
// session" signal and returns a zero Parsed with no error.
func Parse(payload []byte) (Parsed, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return Parsed{}, nil
	}

	var env Envelope
	if err := xml.Unmarshal(payload, &env); err != nil {
		return Parsed{}, fmt.Errorf("soap: parse envelope: %w", err)
	}

	var reqID string
	if env.Header != nil {
		reqID = env.Header.ID.Value
	}

	return Parsed{
		RequestID: reqID,
		BodyXML:   env.Body.Raw,
		IsFault:   env.Body.Fault != nil,
	}, nil
}

// FirstElementName returns the local XML name of the first child
// element of body, used by the dispatch layer to pick a handler.
func FirstElementName(body []byte) (string, error) {
	name, _, err := FirstElement(body)
	return name, err
}

// FirstElement returns the local name and the full raw bytes (start
// tag through matching end tag) of the first child element of body.
// The dispatch layer uses the name to pick a handler and passes the
// raw bytes straight to cwmpmsg.Unmarshal.
func FirstElement(body []byte) (string, []byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		start := dec.InputOffset()
		tok, err := dec.Token()
		if err != nil {
			return "", nil, fmt.Errorf("soap: no element found in body: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		depth := 1
		for depth > 0 {
			tok, err := dec.Token()
			if err != nil {
				return "", nil, fmt.Errorf("soap: unterminated element %s: %w", se.Name.Local, err)
			}
			switch tok.(type) {
			case xml.StartElement:
				depth++
			case xml.EndElement:
				depth--
			}
		}
		end := dec.InputOffset()
		return se.Name.Local, body[start:end], nil
	}
}
