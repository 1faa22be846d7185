// Package rpc implements the SOAP/CWMP RPC dispatch layer (component
// E) and the method handlers (component F): it identifies the CWMP
// method in an inbound envelope, invokes its handler against the
// device parameter model, and produces a SOAP response or CWMP fault.
package rpc

import (
	"cwmpcpe/internal/cwmpmsg"
	"cwmpcpe/internal/datamodel"
	"cwmpcpe/internal/soap"
)

// ActionKind is a side effect the session engine must carry out after
// sending a handler's response — Reboot and FactoryReset change the
// session/process lifecycle in ways that live outside the RPC dispatch
// layer itself (spec.md §4.1, §4.2).
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionReboot
	ActionFactoryReset
)

// DownloadHost is the narrow interface the Download handler needs into
// the download worker (component G). Implemented by *download.Worker;
// kept as an interface here so this package never imports download and
// its tests can substitute a fake downloader.
type DownloadHost interface {
	Download(req cwmpmsg.DownloadRequest) *soap.CWMPFault
}

// Deps bundles what a single Dispatch call needs.
type Deps struct {
	Store      *datamodel.Store
	Downloader DownloadHost
}

// Result is what Dispatch hands back to the session engine: a
// complete, envelope-wrapped response (success or fault) plus any
// lifecycle action the session engine must perform once that response
// has been sent.
type Result struct {
	ResponseEnvelope []byte
	Action           ActionKind
}

// Dispatch finds the handler for methodName and invokes it against
// element (the full <cwmp:MethodName>...</cwmp:MethodName> bytes),
// wrapping the result in a SOAP envelope carrying requestID. An
// unrecognized method produces CWMP fault 9000.
func Dispatch(requestID, methodName string, element []byte, deps Deps) Result {
	handler, ok := handlers[methodName]
	if !ok {
		return Result{ResponseEnvelope: soap.FaultEnvelope(requestID, soap.NewFault(
			soap.FaultMethodNotSupported, "Method not supported"))}
	}

	body, fault, action := handler(element, deps)
	if fault != nil {
		return Result{ResponseEnvelope: soap.FaultEnvelope(requestID, *fault)}
	}
	return Result{
		ResponseEnvelope: soap.NewEnvelope(requestID, body),
		Action:           action,
	}
}

// NotReadyFault builds the 9002 fault the session engine sends directly
// (bypassing Dispatch) whenever acceptConnections is false (spec.md §4.1
// step 3).
func NotReadyFault(requestID string) []byte {
	return soap.FaultEnvelope(requestID, soap.NewFault(soap.FaultNotReady, "Device not ready to accept requests"))
}

type handlerFunc func(element []byte, deps Deps) (body []byte, fault *soap.CWMPFault, action ActionKind)

var handlers = map[string]handlerFunc{
	cwmpmsg.MethodGetParameterNames:  handleGetParameterNames,
	cwmpmsg.MethodGetParameterValues: handleGetParameterValues,
	cwmpmsg.MethodSetParameterValues: handleSetParameterValues,
	cwmpmsg.MethodAddObject:          handleAddObject,
	cwmpmsg.MethodDeleteObject:       handleDeleteObject,
	cwmpmsg.MethodDownload:           handleDownload,
	cwmpmsg.MethodReboot:             handleReboot,
	cwmpmsg.MethodFactoryReset:       handleFactoryReset,
}
