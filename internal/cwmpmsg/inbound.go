package cwmpmsg

import "encoding/xml"

// The following types unmarshal the body fragment of a server-initiated
// RPC. They carry only the fields the matching handler needs; encoding/xml
// ignores everything else (namespace prefixes are matched by local name
// only, same approach as the teacher's cwmpResponse.go).

// GetParameterNamesRequest is the body of cwmp:GetParameterNames.
type GetParameterNamesRequest struct {
	ParameterPath string `xml:"ParameterPath"`
	NextLevel     bool   `xml:"NextLevel"`
}

// GetParameterValuesRequest is the body of cwmp:GetParameterValues.
type GetParameterValuesRequest struct {
	ParameterNames struct {
		Name []string `xml:"string"`
	} `xml:"ParameterNames"`
}

// SetParameterValuesRequest is the body of cwmp:SetParameterValues.
type SetParameterValuesRequest struct {
	ParameterList struct {
		Parameters []struct {
			Name  string `xml:"Name"`
			Value struct {
				Type string `xml:"type,attr"`
				Text string `xml:",chardata"`
			} `xml:"Value"`
		} `xml:"ParameterValueStruct"`
	} `xml:"ParameterList"`
	ParameterKey string `xml:"ParameterKey"`
}

// AddObjectRequest is the body of cwmp:AddObject.
type AddObjectRequest struct {
	ObjectName   string `xml:"ObjectName"`
	ParameterKey string `xml:"ParameterKey"`
}

// DeleteObjectRequest is the body of cwmp:DeleteObject.
type DeleteObjectRequest struct {
	ObjectName   string `xml:"ObjectName"`
	ParameterKey string `xml:"ParameterKey"`
}

// DownloadRequestXML is the body of cwmp:Download.
type DownloadRequestXML struct {
	CommandKey string `xml:"CommandKey"`
	FileType   string `xml:"FileType"`
	URL        string `xml:"URL"`
	Username   string `xml:"Username"`
	Password   string `xml:"Password"`
}

// ToDownloadRequest converts the wire shape into the internal one.
func (d DownloadRequestXML) ToDownloadRequest() DownloadRequest {
	return DownloadRequest{
		CommandKey: d.CommandKey,
		FileType:   d.FileType,
		URL:        d.URL,
		Username:   d.Username,
		Password:   d.Password,
	}
}

// Unmarshal decodes a single well-formed element — the
// cwmp:<MethodName> element lifted out of the SOAP body by the
// dispatch layer — into v, matching v's struct fields against that
// element's children by local name.
func Unmarshal(element []byte, v interface{}) error {
	return xml.Unmarshal(element, v)
}
