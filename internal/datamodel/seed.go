package datamodel

import (
	"os"

	"gopkg.in/yaml.v3"
)

// InformParamPaths lists the Inform parameters from the Glossary,
// present on both data-model roots.
var InformParamPaths = func() []string {
	var out []string
	for _, root := range []string{"InternetGatewayDevice.", "Device."} {
		out = append(out,
			root+"DeviceInfo.SpecVersion",
			root+"DeviceInfo.HardwareVersion",
			root+"DeviceInfo.SoftwareVersion",
			root+"DeviceInfo.ProvisioningCode",
			root+"ManagementServer.ParameterKey",
			root+"ManagementServer.ConnectionRequestURL",
			root+"WANDevice.1.WANConnectionDevice.1.WANPPPConnection.1.ExternalIPAddress",
			root+"WANDevice.1.WANConnectionDevice.1.WANIPConnection.1.ExternalIPAddress",
		)
	}
	return out
}()

// DefaultSeed builds the built-in default parameter dictionary used
// when no external data-model override file is supplied. It covers the
// Inform parameters plus two small object tables (WANPPPConnection and
// WANIPConnection) whose instance 1 leaves are populated. Only the table
// nodes are declared as object keys: there is no "<table>1." key and no
// template leaf directly under a table node, so AddObject on a table
// creates just the new instance's object node.
func DefaultSeed(identity Identity, connReqURL string) map[string]Parameter {
	params := make(map[string]Parameter)

	for _, root := range []string{"InternetGatewayDevice.", "Device."} {
		params[root+"DeviceInfo.Manufacturer"] = Parameter{Value: identity.Manufacturer, XSDType: TypeString}
		params[root+"DeviceInfo.ManufacturerOUI"] = Parameter{Value: identity.OUI, XSDType: TypeString}
		params[root+"DeviceInfo.ProductClass"] = Parameter{Value: identity.ProductClass, XSDType: TypeString}
		params[root+"DeviceInfo.SerialNumber"] = Parameter{Value: identity.SerialNumber, XSDType: TypeString}
		params[root+"DeviceInfo.SpecVersion"] = Parameter{Value: "1.0", XSDType: TypeString}
		params[root+"DeviceInfo.HardwareVersion"] = Parameter{Value: "1.0", XSDType: TypeString}
		params[root+"DeviceInfo.SoftwareVersion"] = Parameter{Writable: false, Value: "1.0.0", XSDType: TypeString}
		params[root+"DeviceInfo.ProvisioningCode"] = Parameter{Writable: true, Value: "", XSDType: TypeString}

		params[root+"ManagementServer.URL"] = Parameter{Writable: true, XSDType: TypeString}
		params[root+"ManagementServer.Username"] = Parameter{Writable: true, Value: identity.Username, XSDType: TypeString}
		params[root+"ManagementServer.Password"] = Parameter{Writable: true, Value: identity.Password, XSDType: TypeString}
		params[root+"ManagementServer.PeriodicInformEnable"] = Parameter{Writable: true, Value: "true", XSDType: TypeBoolean}
		params[root+"ManagementServer.PeriodicInformInterval"] = Parameter{Writable: true, Value: "10", XSDType: TypeUnsignedInt}
		params[root+"ManagementServer.ParameterKey"] = Parameter{Writable: false, Value: "", XSDType: TypeString}
		params[root+"ManagementServer.ConnectionRequestURL"] = Parameter{Writable: false, Value: connReqURL, XSDType: TypeString}
		params[root+"ManagementServer.ConnectionRequestUsername"] = Parameter{Writable: true, Value: identity.Username, XSDType: TypeString}
		params[root+"ManagementServer.ConnectionRequestPassword"] = Parameter{Writable: true, Value: identity.Password, XSDType: TypeString}

		params[root+"LANDevice."] = Parameter{Writable: false}

		wanTemplate := root + "WANDevice.2.WANConnectionDevice.1.WANPPPConnection."
		params[root+"WANDevice.1.WANConnectionDevice.1.WANPPPConnection."] = Parameter{Writable: true}
		params[root+"WANDevice.1.WANConnectionDevice.1.WANPPPConnection.1.ExternalIPAddress"] = Parameter{Writable: false, Value: "0.0.0.0", XSDType: TypeString}
		params[root+"WANDevice.1.WANConnectionDevice.1.WANPPPConnection.1.MACAddress"] = Parameter{Writable: false, Value: identity.MACAddress, XSDType: TypeString}
		params[root+"WANDevice.1.WANConnectionDevice.1.WANPPPConnection.1.Username"] = Parameter{Writable: true, Value: "", XSDType: TypeString}
		params[root+"WANDevice.1.WANConnectionDevice.1.WANPPPConnection.1.Password"] = Parameter{Writable: true, Value: "", XSDType: TypeString}

		params[root+"WANDevice.1.WANConnectionDevice.1.WANIPConnection."] = Parameter{Writable: true}
		params[root+"WANDevice.1.WANConnectionDevice.1.WANIPConnection.1.ExternalIPAddress"] = Parameter{Writable: false, Value: "0.0.0.0", XSDType: TypeString}

		_ = wanTemplate // template root kept for documentation of AddObject's target
	}

	return params
}

// OverrideFile is the YAML shape accepted for the external data-model
// override, the stand-in for the out-of-scope data-model loader
// collaborator. Loaded the way abhiramjalumuri's yaml_loader.go loads
// its agent config: read whole file, unmarshal into a plain struct.
type OverrideFile struct {
	Parameters map[string]OverrideParameter `yaml:"parameters"`
}

// OverrideParameter is one entry of an OverrideFile.
type OverrideParameter struct {
	Writable bool   `yaml:"writable"`
	Value    string `yaml:"value"`
	XSDType  string `yaml:"xsdType"`
}

// LoadOverride reads a YAML data-model override file and returns the
// parameters it declares, ready to be merged over the default seed via
// Store.Seed.
func LoadOverride(path string) (map[string]Parameter, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file OverrideFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, err
	}

	out := make(map[string]Parameter, len(file.Parameters))
	for path, p := range file.Parameters {
		out[path] = Parameter{Writable: p.Writable, Value: p.Value, XSDType: p.XSDType}
	}
	return out, nil
}
