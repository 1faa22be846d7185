// Package cwmpmsg holds the wire-level shapes exchanged with the ACS:
// event codes, RPC method names, and the Go structs the rpc and
// session packages marshal into/out of SOAP body fragments.
package cwmpmsg

import "strings"

// Well-known TR-069 event codes (spec.md Glossary).
const (
	EventBoot              = "1 BOOT"
	EventPeriodic          = "2 PERIODIC"
	EventConnectionRequest = "6 CONNECTION REQUEST"
	EventTransferComplete  = "7 TRANSFER COMPLETE"
	EventMReboot           = "M Reboot"
	EventMDownload         = "M Download"
	EventValueChange       = "4 VALUE CHANGE"
)

// EventStruct is one entry of Inform's Event array.
type EventStruct struct {
	EventCode  string
	CommandKey string
}

// SplitEvents splits a caller-supplied comma-separated event string
// into EventStructs, defaulting to a bare periodic inform when raw is
// empty.
func SplitEvents(raw string) []EventStruct {
	if raw == "" {
		return []EventStruct{{EventCode: EventPeriodic}}
	}
	parts := strings.Split(raw, ",")
	out := make([]EventStruct, 0, len(parts))
	for _, p := range parts {
		out = append(out, EventStruct{EventCode: strings.TrimSpace(p)})
	}
	return out
}
