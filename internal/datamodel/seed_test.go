package datamodel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverride_ParsesYAMLIntoParameterMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "override.yaml")
	yaml := `
parameters:
  InternetGatewayDevice.DeviceInfo.ProvisioningCode:
    writable: true
    value: "custom-code"
    xsdType: xsd:string
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	params, err := LoadOverride(path)
	require.NoError(t, err)

	p, ok := params["InternetGatewayDevice.DeviceInfo.ProvisioningCode"]
	require.True(t, ok)
	assert.True(t, p.Writable)
	assert.Equal(t, "custom-code", p.Value)
	assert.Equal(t, "xsd:string", p.XSDType)
}

func TestLoadOverride_ErrorsOnMissingFile(t *testing.T) {
	_, err := LoadOverride("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestDefaultSeed_CoversEveryInformParameterPath(t *testing.T) {
	identity := Identity{Manufacturer: "cwmpcpe", SerialNumber: "CWMPCPE0000001"}
	seed := DefaultSeed(identity, "http://10.0.0.5:7548/connectionRequest")

	for _, path := range InformParamPaths {
		if path == "InternetGatewayDevice.ManagementServer.ConnectionRequestURL" ||
			path == "Device.ManagementServer.ConnectionRequestURL" {
			continue
		}
		_, ok := seed[path]
		assert.True(t, ok, "expected seed to declare %s", path)
	}
	assert.Equal(t, "http://10.0.0.5:7548/connectionRequest", seed["InternetGatewayDevice.ManagementServer.ConnectionRequestURL"].Value)
}
