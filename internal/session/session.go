// Package session implements the protocol state machine (component H):
// session entry, the per-RPC request/response loop, and the
// reboot/firmware-upgrade/periodic-inform continuations that decide
// when the next session starts (spec.md §4.1).
package session

import (
	"bytes"
	"context"
	"crypto/rand"
	"math/big"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"github.com/pkg/errors"
	"k8s.io/klog"

	"cwmpcpe/internal/cwmpmsg"
	"cwmpcpe/internal/datamodel"
	"cwmpcpe/internal/download"
	"cwmpcpe/internal/rpc"
	"cwmpcpe/internal/soap"
	"cwmpcpe/internal/transport"
)

// FSM states (spec.md §4.1).
const (
	StateIdle         = "idle"
	StateInforming    = "informing"
	StateServing      = "serving"
	StateClosing      = "closing"
	StateRebootWindow = "reboot_window"
)

const (
	evBegin        = "begin"
	evServe        = "serve"
	evClose        = "close"
	evIdle         = "idle"
	evRebootWindow = "reboot_window"
)

const (
	defaultPeriodicInterval = 10 * time.Second
	stopWindow              = 2 * time.Second
	rebootDelay             = 10 * time.Second
	transferCompleteDelay   = 500 * time.Millisecond
	factoryResetDelay       = 500 * time.Millisecond
	pendingInformDelay      = 1 * time.Second
)

const base36Chars = "0123456789abcdefghijklmnopqrstuvwxyz"

// trigger is a reason to open a new session — the only thing any
// goroutine other than Run ever hands to the engine directly.
type trigger struct {
	event string
}

// Engine drives the Idle/Informing/Serving/Closing/RebootWindow state
// machine. Exactly one goroutine (Run) ever executes a session; the
// periodic timer, the connection-request listener and the download
// worker only send on triggers or touch the mutex-guarded fields below,
// never session internals directly (spec.md §5).
type Engine struct {
	store      *datamodel.Store
	client     *transport.Client
	downloader *download.Worker
	authState  *transport.AuthState
	queue      *transferQueue
	machine    *fsm.FSM

	triggers chan trigger

	mu                 sync.Mutex
	acceptConnections  bool
	sessionActive      bool
	pendingInform      bool
	pendingInformEvent string
	pendingReboot      bool
	firmwareUpgrade    bool
	periodicTimer      *time.Timer

	// outbound and transferCompleteSession are handed from the
	// enter_informing callback to enter_serving and on to closeSession.
	// Only the session goroutine ever touches them — the same goroutine
	// that runs every FSM callback below, one at a time.
	outbound                []byte
	transferCompleteSession bool
}

// New builds an Engine ready to Run. downloader must report settled
// transfers back to this Engine (TransferSettled implements
// download.Sink) — wiring that up is the caller's job.
func New(store *datamodel.Store, client *transport.Client, downloader *download.Worker, authState *transport.AuthState) *Engine {
	e := &Engine{
		store:             store,
		client:            client,
		downloader:        downloader,
		authState:         authState,
		queue:             newTransferQueue(),
		triggers:          make(chan trigger, 8),
		acceptConnections: true,
	}

	e.machine = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: evBegin, Src: []string{StateIdle, StateRebootWindow}, Dst: StateInforming},
			{Name: evServe, Src: []string{StateInforming}, Dst: StateServing},
			{Name: evClose, Src: []string{StateServing, StateInforming}, Dst: StateClosing},
			{Name: evIdle, Src: []string{StateClosing}, Dst: StateIdle},
			{Name: evRebootWindow, Src: []string{StateClosing}, Dst: StateRebootWindow},
		},
		fsm.Callbacks{
			"enter_state": func(ev *fsm.Event) {
				klog.V(2).Infof("session FSM: %s -> %s (%s)", ev.Src, ev.Dst, ev.Event)
			},
			"enter_" + StateInforming:    func(ev *fsm.Event) { e.enterInforming(ev) },
			"enter_" + StateServing:      func(ev *fsm.Event) { e.enterServing(ev) },
			"enter_" + StateClosing:      func(ev *fsm.Event) { e.enterClosing(ev) },
			"enter_" + StateIdle:         func(ev *fsm.Event) { e.enterIdle(ev) },
			"enter_" + StateRebootWindow: func(ev *fsm.Event) { e.enterRebootWindow(ev) },
		},
	)

	return e
}

// Run drives the engine until ctx is cancelled. It fires an initial
// "1 BOOT" session immediately, then serializes every subsequent
// session triggered by the periodic timer, a connection request, or a
// settled download.
func (e *Engine) Run(ctx context.Context) {
	e.sendTrigger(cwmpmsg.EventBoot)

	for {
		select {
		case <-ctx.Done():
			e.stopPeriodicTimer()
			return
		case t := <-e.triggers:
			e.runSession(ctx, t.event)
		}
	}
}

// AcceptingConnections reports whether the device currently accepts
// inbound RPCs and connection requests.
func (e *Engine) AcceptingConnections() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acceptConnections
}

// RequestConnection is called by the connection-request listener on
// every accepted HTTP request (spec.md §4.6). A session already in
// progress collapses this into pendingInform; otherwise it starts one
// immediately.
func (e *Engine) RequestConnection() {
	e.mu.Lock()
	if !e.acceptConnections {
		e.mu.Unlock()
		return
	}
	if e.sessionActive {
		if !e.pendingInform {
			e.pendingInform = true
			e.pendingInformEvent = cwmpmsg.EventConnectionRequest
		}
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	e.stopPeriodicTimer()
	e.sendTrigger(cwmpmsg.EventConnectionRequest)
}

// TransferSettled implements download.Sink: it enqueues the record and
// schedules a TransferComplete session 500ms later, arming the
// pendingReboot/firmwareUpgrade flags first when the transfer was a
// successful firmware download (spec.md §4.3).
func (e *Engine) TransferSettled(o download.Outcome) {
	e.queue.enqueue(o.Record)

	if o.FirmwareUpgraded {
		e.mu.Lock()
		e.pendingReboot = true
		e.firmwareUpgrade = true
		e.mu.Unlock()
	}

	klog.Infof("session: transfer %q settled (fault=%q), scheduling TransferComplete session",
		o.Record.CommandKey, o.Record.FaultCode)

	time.AfterFunc(transferCompleteDelay, func() {
		e.mu.Lock()
		active := e.sessionActive
		e.mu.Unlock()

		if active {
			e.mu.Lock()
			if !e.pendingInform {
				e.pendingInform = true
				e.pendingInformEvent = cwmpmsg.EventTransferComplete
			}
			e.mu.Unlock()
			return
		}

		e.stopPeriodicTimer()
		e.sendTrigger(cwmpmsg.EventTransferComplete)
	})
}

func (e *Engine) sendTrigger(event string) {
	select {
	case e.triggers <- trigger{event: event}:
	default:
		klog.Warningf("session: trigger channel full, dropping event %q", event)
	}
}

// runSession is the only place a session actually executes: firing
// evBegin and evServe hands the opening-Inform build and the RPC
// exchange loop to the matching enter_* callbacks below; closeSession
// then decides, from what those callbacks observed, what happens next.
func (e *Engine) runSession(ctx context.Context, event string) {
	_ = e.machine.Event(evBegin, event)
	_ = e.machine.Event(evServe, ctx)

	e.closeSession(e.transferCompleteSession)
}

// enterInforming builds and stashes the opening Inform envelope for the
// session that is now starting.
func (e *Engine) enterInforming(ev *fsm.Event) {
	e.mu.Lock()
	e.sessionActive = true
	e.mu.Unlock()

	event, _ := ev.Args[0].(string)
	klog.Infof("session: entering %s, event=%q", e.machine.Current(), event)

	requestID := randomRequestID()

	pendingRecord, hasPending := e.queue.dequeueOne()
	var pendingPtr *cwmpmsg.TransferRecord
	if hasPending {
		pendingPtr = &pendingRecord
	}

	body, transferCompleteSession := rpc.BuildInform(e.store, event, pendingPtr)
	e.outbound = soap.NewEnvelope(requestID, body)
	e.transferCompleteSession = transferCompleteSession
}

// enterServing runs the request/response loop against the envelope
// enterInforming stashed.
func (e *Engine) enterServing(ev *fsm.Event) {
	ctx, _ := ev.Args[0].(context.Context)
	klog.Infof("session: entering %s", e.machine.Current())
	e.cpeRequest(ctx, e.outbound)
}

// enterClosing tears down the transport side of the session that just
// finished; closeSession picks the next state once this returns.
func (e *Engine) enterClosing(ev *fsm.Event) {
	e.client.Close()
	klog.Infof("session: entering %s", e.machine.Current())

	e.mu.Lock()
	e.sessionActive = false
	e.mu.Unlock()
}

// enterIdle runs the periodic/pendingInform reschedule spec.md §4.1
// describes for the common case: no reboot, no firmware upgrade.
func (e *Engine) enterIdle(ev *fsm.Event) {
	klog.Infof("session: entering %s", e.machine.Current())

	e.mu.Lock()
	pendingInform := e.pendingInform
	pendingEvent := e.pendingInformEvent
	e.pendingInform = false
	e.pendingInformEvent = ""
	e.mu.Unlock()

	if pendingInform {
		time.AfterFunc(pendingInformDelay, func() {
			e.sendTrigger(pendingEvent)
		})
		return
	}

	e.armPeriodic(e.periodicInterval(), cwmpmsg.EventPeriodic)
}

// enterRebootWindow stops accepting connections for the window
// closeSession computed, then fires the event that ends it.
func (e *Engine) enterRebootWindow(ev *fsm.Event) {
	event, _ := ev.Args[0].(string)
	delay, _ := ev.Args[1].(time.Duration)
	klog.Infof("session: entering %s, will send %q after %s", e.machine.Current(), event, delay)

	e.stopSession()
	time.AfterFunc(delay, func() {
		e.restoreAccept()
		e.sendTrigger(event)
	})
}

// cpeRequest implements spec.md §4.1's request/response loop: post,
// inspect the response, dispatch any RPC it carries, and keep going
// until the ACS sends an empty body or a fatal transport/parse error
// occurs.
func (e *Engine) cpeRequest(ctx context.Context, outbound []byte) {
	next := outbound

	for {
		resp, err := e.client.Post(ctx, e.authState, next)
		if err != nil {
			klog.Errorf("session: %v", errors.Wrap(err, "cpeRequest: fatal transport error"))
			return
		}

		if len(bytes.TrimSpace(resp.Body)) == 0 {
			return
		}

		parsed, err := soap.Parse(resp.Body)
		if err != nil {
			klog.Errorf("session: parser failure, aborting session: %v", err)
			return
		}
		if parsed.IsFault {
			klog.Warningf("session: ACS returned a soap-env:Fault, aborting session")
			return
		}

		if !e.AcceptingConnections() {
			if _, postErr := e.client.Post(ctx, e.authState, rpc.NotReadyFault(parsed.RequestID)); postErr != nil {
				klog.Errorf("session: failed sending not-ready fault: %v", postErr)
			}
			e.client.Close()
			return
		}

		methodName, element, err := soap.FirstElement(parsed.BodyXML)
		if err != nil {
			// No dispatchable RPC in this response: drain one pending
			// transfer if there is one, otherwise invite the next RPC
			// with an empty POST.
			if record, ok := e.queue.dequeueOne(); ok {
				next = soap.NewEnvelope(parsed.RequestID, cwmpmsg.BuildTransferComplete(record))
				continue
			}
			next = nil
			continue
		}

		result := rpc.Dispatch(parsed.RequestID, methodName, element, rpc.Deps{
			Store:      e.store,
			Downloader: e.downloader,
		})

		switch result.Action {
		case rpc.ActionReboot:
			klog.Infof("session: Reboot RPC received, cancelling any active download")
			e.downloader.CancelActive()
			e.mu.Lock()
			e.pendingReboot = true
			e.mu.Unlock()
		case rpc.ActionFactoryReset:
			klog.Infof("session: FactoryReset RPC received, process will exit shortly")
			scheduleFactoryReset()
		}

		next = result.ResponseEnvelope
	}
}

// closeSession implements spec.md §4.1's handleMethod(nil) branch:
// firmware-upgrade reboot continuation, plain reboot continuation, or
// the periodic/pendingInform reschedule (run from enter_idle once
// evIdle fires below). transferCompleteSession is only true for the
// session that actually embedded the dequeued TransferComplete record
// — the firmware-upgrade branch below is gated on it so that a
// firmware reboot can only ever be armed by that dedicated session,
// never raced by whatever session happened to be closing when
// TransferSettled flipped pendingReboot/firmwareUpgrade.
func (e *Engine) closeSession(transferCompleteSession bool) {
	_ = e.machine.Event(evClose)

	e.mu.Lock()
	pendingReboot := e.pendingReboot
	firmwareUpgrade := e.firmwareUpgrade
	e.mu.Unlock()

	if pendingReboot && firmwareUpgrade {
		if !transferCompleteSession {
			// The firmware download settled, but this isn't the
			// TransferComplete session carrying it yet — leave the
			// flags armed and fall through to an ordinary idle close;
			// the dedicated session will consume them once it runs.
			_ = e.machine.Event(evIdle)
			return
		}

		e.mu.Lock()
		e.pendingReboot = false
		e.firmwareUpgrade = false
		e.pendingInform = false
		e.pendingInformEvent = ""
		e.mu.Unlock()

		e.store.Set("InternetGatewayDevice.DeviceInfo.SoftwareVersion", "2.0.0-upgraded", datamodel.TypeString)
		e.store.Set("Device.DeviceInfo.SoftwareVersion", "2.0.0-upgraded", datamodel.TypeString)

		event := strings.Join([]string{cwmpmsg.EventBoot, cwmpmsg.EventMDownload, cwmpmsg.EventValueChange}, ",")
		_ = e.machine.Event(evRebootWindow, event, stopWindow)
		return
	}

	if pendingReboot {
		e.mu.Lock()
		e.pendingReboot = false
		e.pendingInform = false
		e.pendingInformEvent = ""
		e.mu.Unlock()

		event := strings.Join([]string{cwmpmsg.EventBoot, cwmpmsg.EventMReboot, cwmpmsg.EventValueChange}, ",")
		_ = e.machine.Event(evRebootWindow, event, stopWindow+rebootDelay)
		return
	}

	_ = e.machine.Event(evIdle)
}

func (e *Engine) stopSession() {
	e.mu.Lock()
	e.acceptConnections = false
	e.mu.Unlock()
}

func (e *Engine) restoreAccept() {
	e.mu.Lock()
	e.acceptConnections = true
	e.mu.Unlock()
}

func (e *Engine) stopPeriodicTimer() {
	e.mu.Lock()
	if e.periodicTimer != nil {
		e.periodicTimer.Stop()
		e.periodicTimer = nil
	}
	e.mu.Unlock()
}

func (e *Engine) armPeriodic(d time.Duration, event string) {
	e.stopPeriodicTimer()
	e.mu.Lock()
	e.periodicTimer = time.AfterFunc(d, func() { e.periodicFired(event) })
	e.mu.Unlock()
}

func (e *Engine) periodicFired(event string) {
	e.mu.Lock()
	active := e.sessionActive
	e.mu.Unlock()

	if active {
		e.mu.Lock()
		if !e.pendingInform {
			e.pendingInform = true
			e.pendingInformEvent = event
		}
		e.mu.Unlock()
		return
	}

	e.sendTrigger(event)
}

// periodicInterval reads ManagementServer.PeriodicInformInterval
// (seconds) from either data-model root, falling back to the spec
// default of 10s.
func (e *Engine) periodicInterval() time.Duration {
	raw := e.store.GetValue("InternetGatewayDevice.ManagementServer.PeriodicInformInterval")
	if raw == "" {
		raw = e.store.GetValue("Device.ManagementServer.PeriodicInformInterval")
	}
	if raw == "" {
		return defaultPeriodicInterval
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return defaultPeriodicInterval
	}
	return time.Duration(secs) * time.Second
}

func scheduleFactoryReset() {
	time.AfterFunc(factoryResetDelay, func() {
		klog.Infof("session: FactoryReset delay elapsed, exiting process")
		os.Exit(0)
	})
}

// randomRequestID generates the 8-character base-36 cwmp:ID spec.md
// §6.1 requires.
func randomRequestID() string {
	b := make([]byte, 8)
	max := big.NewInt(int64(len(base36Chars)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			b[i] = base36Chars[0]
			continue
		}
		b[i] = base36Chars[n.Int64()]
	}
	return string(b)
}
