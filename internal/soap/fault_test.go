package soap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFaultEnvelope_CarriesCodeAndMessage(t *testing.T) {
	envelope := FaultEnvelope("req1", NewFault(FaultInvalidArguments, "bad input"))

	parsed, err := Parse(envelope)
	require.NoError(t, err)
	assert.True(t, parsed.IsFault)
	assert.Contains(t, string(envelope), FaultInvalidArguments)
	assert.Contains(t, string(envelope), "bad input")
}

func TestCWMPFault_ErrorString(t *testing.T) {
	f := NewFault(FaultNotReady, "Device not ready to accept requests")
	assert.Contains(t, f.Error(), FaultNotReady)
	assert.Contains(t, f.Error(), "Device not ready to accept requests")
}
