package rpc

import (
	"cwmpcpe/internal/cwmpmsg"
	"cwmpcpe/internal/soap"
)

func handleGetParameterNames(element []byte, deps Deps) ([]byte, *soap.CWMPFault, ActionKind) {
	var req cwmpmsg.GetParameterNamesRequest
	if err := cwmpmsg.Unmarshal(element, &req); err != nil {
		f := soap.NewFault(soap.FaultInvalidArguments, "malformed GetParameterNames request")
		return nil, &f, ActionNone
	}

	infos := deps.Store.Names(req.ParameterPath, req.NextLevel)
	out := make([]cwmpmsg.ParameterInfo, 0, len(infos))
	for _, i := range infos {
		out = append(out, cwmpmsg.ParameterInfo{Name: i.Name, Writable: i.Writable})
	}
	return cwmpmsg.BuildGetParameterNamesResponse(out), nil, ActionNone
}

func handleGetParameterValues(element []byte, deps Deps) ([]byte, *soap.CWMPFault, ActionKind) {
	var req cwmpmsg.GetParameterValuesRequest
	if err := cwmpmsg.Unmarshal(element, &req); err != nil {
		f := soap.NewFault(soap.FaultInvalidArguments, "malformed GetParameterValues request")
		return nil, &f, ActionNone
	}

	out := make([]cwmpmsg.InformParams, 0, len(req.ParameterNames.Name))
	for _, name := range req.ParameterNames.Name {
		p, ok := deps.Store.Get(name)
		if !ok {
			continue
		}
		out = append(out, cwmpmsg.InformParams{Name: name, Value: p.Value, XSDType: p.XSDType})
	}
	return cwmpmsg.BuildGetParameterValuesResponse(out), nil, ActionNone
}

func handleSetParameterValues(element []byte, deps Deps) ([]byte, *soap.CWMPFault, ActionKind) {
	var req cwmpmsg.SetParameterValuesRequest
	if err := cwmpmsg.Unmarshal(element, &req); err != nil {
		f := soap.NewFault(soap.FaultInvalidArguments, "malformed SetParameterValues request")
		return nil, &f, ActionNone
	}

	for _, p := range req.ParameterList.Parameters {
		deps.Store.Set(p.Name, p.Value.Text, p.Value.Type)
	}
	return cwmpmsg.BuildSetParameterValuesResponse(0), nil, ActionNone
}

func handleAddObject(element []byte, deps Deps) ([]byte, *soap.CWMPFault, ActionKind) {
	var req cwmpmsg.AddObjectRequest
	if err := cwmpmsg.Unmarshal(element, &req); err != nil {
		f := soap.NewFault(soap.FaultInvalidArguments, "malformed AddObject request")
		return nil, &f, ActionNone
	}

	instance, err := deps.Store.AddObject(req.ObjectName)
	if err != nil {
		f := soap.NewFault(soap.FaultInvalidArguments, err.Error())
		return nil, &f, ActionNone
	}
	return cwmpmsg.BuildAddObjectResponse(instance, 0), nil, ActionNone
}

func handleDeleteObject(element []byte, deps Deps) ([]byte, *soap.CWMPFault, ActionKind) {
	var req cwmpmsg.DeleteObjectRequest
	if err := cwmpmsg.Unmarshal(element, &req); err != nil {
		f := soap.NewFault(soap.FaultInvalidArguments, "malformed DeleteObject request")
		return nil, &f, ActionNone
	}

	deps.Store.DeleteObject(req.ObjectName)
	return cwmpmsg.BuildDeleteObjectResponse(0), nil, ActionNone
}

func handleDownload(element []byte, deps Deps) ([]byte, *soap.CWMPFault, ActionKind) {
	var req cwmpmsg.DownloadRequestXML
	if err := cwmpmsg.Unmarshal(element, &req); err != nil {
		f := soap.NewFault(soap.FaultInvalidArguments, "malformed Download request")
		return nil, &f, ActionNone
	}

	if fault := deps.Downloader.Download(req.ToDownloadRequest()); fault != nil {
		return nil, fault, ActionNone
	}
	return cwmpmsg.BuildDownloadResponse(), nil, ActionNone
}

func handleReboot(_ []byte, _ Deps) ([]byte, *soap.CWMPFault, ActionKind) {
	return cwmpmsg.BuildRebootResponse(), nil, ActionReboot
}

func handleFactoryReset(_ []byte, _ Deps) ([]byte, *soap.CWMPFault, ActionKind) {
	return cwmpmsg.BuildFactoryResetResponse(), nil, ActionFactoryReset
}
