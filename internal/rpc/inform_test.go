package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cwmpcpe/internal/cwmpmsg"
	"cwmpcpe/internal/datamodel"
)

func TestBuildInform_WithoutPendingTransferIsNotATransferCompleteSession(t *testing.T) {
	store := datamodel.New(datamodel.Identity{SerialNumber: "CWMPCPE0000001"})
	store.Seed(datamodel.DefaultSeed(store.Identity(), "http://10.0.0.5:7548/connectionRequest"))

	body, transferCompleteSession := BuildInform(store, cwmpmsg.EventBoot, nil)
	assert.False(t, transferCompleteSession)
	assert.Contains(t, string(body), "CWMPCPE0000001")
	assert.Contains(t, string(body), cwmpmsg.EventBoot)
}

func TestBuildInform_WithPendingTransferMarksTheSession(t *testing.T) {
	store := datamodel.New(datamodel.Identity{SerialNumber: "CWMPCPE0000001"})
	store.Seed(datamodel.DefaultSeed(store.Identity(), "http://10.0.0.5:7548/connectionRequest"))

	pending := &cwmpmsg.TransferRecord{CommandKey: "dl-1", FaultCode: "0"}
	body, transferCompleteSession := BuildInform(store, cwmpmsg.EventTransferComplete, pending)
	assert.True(t, transferCompleteSession)
	assert.Contains(t, string(body), "dl-1")
}
