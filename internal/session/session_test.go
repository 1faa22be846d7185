package session

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cwmpcpe/internal/cwmpmsg"
	"cwmpcpe/internal/datamodel"
	"cwmpcpe/internal/download"
	"cwmpcpe/internal/soap"
	"cwmpcpe/internal/transport"
)

func newTestEngine(t *testing.T, acsURL string) *Engine {
	t.Helper()
	store := datamodel.New(datamodel.Identity{SerialNumber: "CWMPCPE0000001"})
	store.Seed(datamodel.DefaultSeed(store.Identity(), "http://10.0.0.5:7548/connectionRequest"))

	client := transport.New(acsURL, time.Second)
	authState := &transport.AuthState{}
	worker := download.New(nil, time.Second)

	engine := New(store, client, worker, authState)
	worker.SetSink(engine)
	return engine
}

func TestAcceptingConnections_DefaultsTrue(t *testing.T) {
	engine := newTestEngine(t, "http://example.invalid")
	assert.True(t, engine.AcceptingConnections())
}

func TestRequestConnection_PushesATriggerWhenIdleAndAccepting(t *testing.T) {
	engine := newTestEngine(t, "http://example.invalid")
	engine.RequestConnection()

	select {
	case trig := <-engine.triggers:
		assert.Equal(t, cwmpmsg.EventConnectionRequest, trig.event)
	case <-time.After(time.Second):
		t.Fatal("expected a trigger to be pushed")
	}
}

func TestRequestConnection_DoesNothingWhenNotAccepting(t *testing.T) {
	engine := newTestEngine(t, "http://example.invalid")
	engine.mu.Lock()
	engine.acceptConnections = false
	engine.mu.Unlock()

	engine.RequestConnection()

	select {
	case <-engine.triggers:
		t.Fatal("expected no trigger while not accepting connections")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRequestConnection_CollapsesIntoPendingInformWhileSessionActive(t *testing.T) {
	engine := newTestEngine(t, "http://example.invalid")
	engine.mu.Lock()
	engine.sessionActive = true
	engine.mu.Unlock()

	engine.RequestConnection()

	engine.mu.Lock()
	pending := engine.pendingInform
	event := engine.pendingInformEvent
	engine.mu.Unlock()

	assert.True(t, pending)
	assert.Equal(t, cwmpmsg.EventConnectionRequest, event)

	select {
	case <-engine.triggers:
		t.Fatal("collapsing into pendingInform should not also push a trigger")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTransferSettled_EventuallyTriggersTransferComplete(t *testing.T) {
	engine := newTestEngine(t, "http://example.invalid")
	engine.TransferSettled(download.Outcome{Record: cwmpmsg.TransferRecord{CommandKey: "dl-1", FaultCode: "0"}})

	select {
	case trig := <-engine.triggers:
		assert.Equal(t, cwmpmsg.EventTransferComplete, trig.event)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a TransferComplete trigger after the settlement delay")
	}
}

func TestTransferSettled_ArmsPendingRebootOnFirmwareUpgrade(t *testing.T) {
	engine := newTestEngine(t, "http://example.invalid")
	engine.TransferSettled(download.Outcome{
		Record:           cwmpmsg.TransferRecord{CommandKey: "dl-1", FaultCode: "0"},
		FirmwareUpgraded: true,
	})

	engine.mu.Lock()
	pendingReboot := engine.pendingReboot
	firmwareUpgrade := engine.firmwareUpgrade
	engine.mu.Unlock()

	assert.True(t, pendingReboot)
	assert.True(t, firmwareUpgrade)

	<-engine.triggers
}

// fakeACS is a tiny scripted HTTP server: each call to enqueue queues a
// body for the next request that has none yet; once the queue is empty
// every request receives an empty body.
type fakeACS struct {
	mu       sync.Mutex
	requests [][]byte
	queue    [][]byte
	server   *httptest.Server
}

func newFakeACS() *fakeACS {
	f := &fakeACS{}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *fakeACS) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, body)
	var next []byte
	if len(f.queue) > 0 {
		next = f.queue[0]
		f.queue = f.queue[1:]
	}
	f.mu.Unlock()

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(next)
}

func (f *fakeACS) enqueue(body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, body)
}

func (f *fakeACS) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func TestRunSession_SendsInformAndClosesOnEmptyResponse(t *testing.T) {
	acs := newFakeACS()
	defer acs.server.Close()

	engine := newTestEngine(t, acs.server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	engine.runSession(ctx, cwmpmsg.EventBoot)

	require.Equal(t, 1, acs.requestCount())

	parsed, err := soap.Parse(acs.requests[0])
	require.NoError(t, err)
	assert.Contains(t, string(parsed.BodyXML), "<cwmp:Inform>")
	assert.Contains(t, string(parsed.BodyXML), cwmpmsg.EventBoot)

	assert.Equal(t, StateIdle, engine.machine.Current())
}

func TestRunSession_DispatchesAnACSInitiatedRPCBeforeClosing(t *testing.T) {
	acs := newFakeACS()
	defer acs.server.Close()

	engine := newTestEngine(t, acs.server.URL)

	getParamNames := soap.NewEnvelope("req2", []byte(
		`<cwmp:GetParameterNames><ParameterPath>InternetGatewayDevice.DeviceInfo.</ParameterPath><NextLevel>true</NextLevel></cwmp:GetParameterNames>`))
	acs.enqueue(getParamNames)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	engine.runSession(ctx, cwmpmsg.EventBoot)

	require.Equal(t, 2, acs.requestCount())
	second := acs.requests[1]
	assert.Contains(t, string(second), "GetParameterNamesResponse")
}
