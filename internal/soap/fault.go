package soap

import "fmt"

// Fault mirrors the inbound soap-env:Fault shape, in case an ACS ever
// sends one back to the CPE (the spec's transport layer treats that as
// a fatal session error rather than something to parse further, but we
// still need a shape to detect it in Body.Fault).
type Fault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

// CWMPFault is a protocol-level fault the CPE emits to the ACS, e.g.
// 9000 "Method not supported". It is not a Go error: it's a value the
// session engine wraps in a SOAP fault envelope and sends as the
// response body.
type CWMPFault struct {
	Code    string
	Message string
}

func (f CWMPFault) Error() string {
	return fmt.Sprintf("cwmp fault %s: %s", f.Code, f.Message)
}

// Well-known CWMP fault codes used by this simulator (spec.md §6.4).
const (
	FaultMethodNotSupported = "9000"
	FaultNotReady           = "9002"
	FaultInvalidArguments   = "9003"
	FaultTransferFailure    = "9010"
	FaultInvalidURLScheme   = "9016"
)

// NewFault builds the Client-side CWMP fault payload.
func NewFault(code, message string) CWMPFault {
	return CWMPFault{Code: code, Message: message}
}

// FaultEnvelope wraps a CWMPFault in the full soap-env:Fault structure
// the spec requires: faultcode=Client, faultstring="CWMP fault", with
// detail/cwmp:Fault carrying the real code and message.
func FaultEnvelope(requestID string, f CWMPFault) []byte {
	payload := fmt.Sprintf(
		`<soap-env:Fault><faultcode>Client</faultcode><faultstring>CWMP fault</faultstring>`+
			`<detail><cwmp:Fault><FaultCode>%s</FaultCode><FaultString>%s</FaultString></cwmp:Fault></detail>`+
			`</soap-env:Fault>`,
		escape(f.Code), escape(f.Message))
	return NewEnvelope(requestID, []byte(payload))
}
