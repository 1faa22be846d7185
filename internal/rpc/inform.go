package rpc

import (
	"time"

	"cwmpcpe/internal/cwmpmsg"
	"cwmpcpe/internal/datamodel"
)

// BuildInform renders the body of the opening RPC of a session
// (spec.md §4.2, Inform row). eventsRaw is the caller-supplied,
// comma-separated event string (split per spec.md §4.2; an empty
// string degrades to "2 PERIODIC"). When pending is non-nil, its
// TransferComplete is appended inside the Inform and the returned bool
// is true, signalling the session engine to mark
// transferCompleteSession.
func BuildInform(store *datamodel.Store, eventsRaw string, pending *cwmpmsg.TransferRecord) ([]byte, bool) {
	identity := store.Identity()
	present := store.InformParameters(datamodel.InformParamPaths)

	params := make([]cwmpmsg.InformParams, 0, len(present))
	for _, path := range datamodel.InformParamPaths {
		p, ok := present[path]
		if !ok {
			continue
		}
		params = append(params, cwmpmsg.InformParams{Name: path, Value: p.Value, XSDType: p.XSDType})
	}

	data := cwmpmsg.InformData{
		Manufacturer: identity.Manufacturer,
		OUI:          identity.OUI,
		ProductClass: identity.ProductClass,
		SerialNumber: identity.SerialNumber,
		Events:       cwmpmsg.SplitEvents(eventsRaw),
		CurrentTime:  cwmpmsg.ISOTime(time.Now()),
		Parameters:   params,
	}

	transferCompleteSession := false
	if pending != nil {
		data.TransferPending = pending
		transferCompleteSession = true
	}

	return cwmpmsg.BuildInform(data), transferCompleteSession
}
