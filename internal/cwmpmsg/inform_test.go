package cwmpmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitEvents_EmptyDefaultsToPeriodic(t *testing.T) {
	events := SplitEvents("")
	assert.Equal(t, []EventStruct{{EventCode: EventPeriodic}}, events)
}

func TestSplitEvents_SplitsAndTrimsCommaList(t *testing.T) {
	events := SplitEvents("1 BOOT, M Reboot,4 VALUE CHANGE")
	assert.Equal(t, []EventStruct{
		{EventCode: EventBoot},
		{EventCode: EventMReboot},
		{EventCode: EventValueChange},
	}, events)
}

func TestBuildInform_EmbedsTransferCompleteWhenPending(t *testing.T) {
	pending := &TransferRecord{CommandKey: "dl-1", StartTime: "2026-08-03T00:00:00Z", FaultCode: "0"}
	body := BuildInform(InformData{
		Manufacturer:    "cwmpcpe",
		SerialNumber:    "CWMPCPE0000001",
		Events:          SplitEvents(EventBoot),
		TransferPending: pending,
	})

	got := string(body)
	assert.Contains(t, got, "<cwmp:Inform>")
	assert.Contains(t, got, "<cwmp:TransferComplete>")
	assert.Contains(t, got, "dl-1")
	assert.NotContains(t, got, "<FaultStruct>")
}

func TestBuildInform_NoTransferCompleteWithoutPending(t *testing.T) {
	body := BuildInform(InformData{Events: SplitEvents(EventPeriodic)})
	assert.NotContains(t, string(body), "<cwmp:TransferComplete>")
}

func TestWriteTransferComplete_IncludesFaultStructOnNonZeroFault(t *testing.T) {
	body := BuildTransferComplete(TransferRecord{
		CommandKey:  "dl-2",
		FaultCode:   "9010",
		FaultString: "Transfer failure",
	})

	got := string(body)
	assert.Contains(t, got, "<FaultStruct>")
	assert.Contains(t, got, "Transfer failure")
}
