package cwmpmsg

// Local names of the methods the simulator speaks (spec.md §4.2) and
// the ones it can receive as a server-initiated RPC.
const (
	MethodInform                = "Inform"
	MethodGetParameterNames     = "GetParameterNames"
	MethodGetParameterValues    = "GetParameterValues"
	MethodSetParameterValues    = "SetParameterValues"
	MethodAddObject             = "AddObject"
	MethodDeleteObject          = "DeleteObject"
	MethodDownload              = "Download"
	MethodReboot                = "Reboot"
	MethodFactoryReset          = "FactoryReset"
	MethodTransferComplete      = "TransferComplete"
)

// DownloadFileTypes enumerates the recognized Download FileType values
// (spec.md §4.3).
var DownloadFileTypes = map[string]bool{
	"1 Firmware Upgrade Image":       true,
	"2 Web Content":                  true,
	"3 Vendor Configuration File":    true,
	"4 Tone File":                    true,
	"5 Ringer File":                  true,
}

// FirmwareFileType is the one FileType that gates on downloadInProgress
// and triggers the post-TransferComplete reboot continuation.
const FirmwareFileType = "1 Firmware Upgrade Image"

// DownloadRequest is the parsed body of an inbound cwmp:Download RPC.
type DownloadRequest struct {
	CommandKey string
	FileType   string
	URL        string
	Username   string
	Password   string
}

// TransferRecord is one entry of the pending-transfers FIFO (spec.md
// §3, "Pending transfers queue").
type TransferRecord struct {
	CommandKey  string
	StartTime   string
	FaultCode   string
	FaultString string
}

// SetParameterValue is one (name, value, type) triple from an inbound
// SetParameterValues RPC.
type SetParameterValue struct {
	Name    string
	Value   string
	XSDType string
}
