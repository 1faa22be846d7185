// Package download implements the asynchronous download subsystem
// (component G): a detached HTTP GET with its own auth/retry, a
// single-firmware-download mutex, cancellation on reboot, and deferred
// TransferComplete delivery via a new session (spec.md §4.3).
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/publicsuffix"
	"k8s.io/klog"

	"cwmpcpe/internal/auth"
	"cwmpcpe/internal/cwmpmsg"
	"cwmpcpe/internal/soap"
)

const maxAuthRetries = 5

// defaultTimeout is the per-attempt wall clock budget (spec.md §4.3),
// overridable by the DOWNLOAD_TIMEOUT environment variable in
// milliseconds.
const defaultTimeout = 30 * time.Second

// Outcome is what a finished download hands the session engine: a
// transfer record to enqueue, and whether this was a successful
// firmware download (which additionally arms the reboot continuation).
type Outcome struct {
	Record           cwmpmsg.TransferRecord
	FirmwareUpgraded bool
}

// Sink is how the worker reports a settled transfer back to the
// simulator. The session package implements this by enqueuing the
// record and scheduling a TransferComplete session after 500ms,
// exactly as spec.md §4.3 describes.
type Sink interface {
	TransferSettled(Outcome)
}

// Worker runs at most one firmware download at a time; non-firmware
// downloads (web content, config, tone/ringer files) are not
// serialized against each other by the spec, only firmware is.
type Worker struct {
	sink    Sink
	timeout time.Duration

	mu                 sync.Mutex
	downloadInProgress bool
	activeCancel       context.CancelFunc
}

// New builds a Worker reporting settled transfers to sink. sink may be
// nil at construction and supplied later via SetSink — useful when the
// sink (the session engine) and the worker are constructed with a
// dependency on each other. timeout is the per-attempt GET budget;
// pass 0 to use the spec default (30s).
func New(sink Sink, timeout time.Duration) *Worker {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Worker{sink: sink, timeout: timeout}
}

// SetSink binds (or rebinds) the settled-transfer callback.
func (w *Worker) SetSink(sink Sink) {
	w.mu.Lock()
	w.sink = sink
	w.mu.Unlock()
}

// Download validates req synchronously (spec.md §4.3's "before
// responding" checks) and, if accepted, starts the GET in a detached
// goroutine. A non-nil return is the immediate CWMP fault the Download
// RPC handler should send instead of DownloadResponse.
func (w *Worker) Download(req cwmpmsg.DownloadRequest) *soap.CWMPFault {
	if req.FileType == "" {
		f := soap.NewFault(soap.FaultInvalidArguments, "Invalid arguments - FileType is required")
		return &f
	}
	if !cwmpmsg.DownloadFileTypes[req.FileType] {
		f := soap.NewFault(soap.FaultInvalidArguments, "Invalid arguments - FileType is required")
		return &f
	}

	isFirmware := req.FileType == cwmpmsg.FirmwareFileType
	if isFirmware {
		w.mu.Lock()
		if w.downloadInProgress {
			w.mu.Unlock()
			f := soap.NewFault(soap.FaultTransferFailure, "File transfer already in progress")
			return &f
		}
		w.downloadInProgress = true
		w.mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	if isFirmware {
		w.mu.Lock()
		w.activeCancel = cancel
		w.mu.Unlock()
	}

	scheme := schemeOf(req.URL)
	if scheme != "http" && scheme != "https" {
		go func() {
			defer cancel()
			w.finish(isFirmware, cwmpmsg.TransferRecord{
				CommandKey:  req.CommandKey,
				StartTime:   cwmpmsg.ISOTime(time.Now()),
				FaultCode:   soap.FaultInvalidURLScheme,
				FaultString: "Invalid URL scheme",
			}, false)
		}()
		return nil
	}

	go w.run(ctx, cancel, req, isFirmware)
	return nil
}

// CancelActive aborts the in-flight firmware download, if any, and
// returns true if one was actually cancelled. Called by the Reboot
// handler's continuation (spec.md §4.2, Reboot row).
func (w *Worker) CancelActive() bool {
	w.mu.Lock()
	cancel := w.activeCancel
	inProgress := w.downloadInProgress
	w.mu.Unlock()

	if !inProgress || cancel == nil {
		return false
	}
	cancel()
	return true
}

func schemeOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

func (w *Worker) run(ctx context.Context, cancel context.CancelFunc, req cwmpmsg.DownloadRequest, isFirmware bool) {
	defer cancel()
	startTime := cwmpmsg.ISOTime(time.Now())

	record, success := w.attemptLoop(ctx, req, startTime)
	w.finish(isFirmware, record, success)
}

func (w *Worker) attemptLoop(ctx context.Context, req cwmpmsg.DownloadRequest, startTime string) (cwmpmsg.TransferRecord, bool) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return failRecord(req, startTime, soap.FaultTransferFailure, err.Error()), false
	}

	client := &http.Client{
		Jar:     jar,
		Timeout: w.timeout,
	}

	state := &auth.Credentials{Username: req.Username, Password: req.Password}
	var challenge *auth.Challenge
	nonceCount := 0
	targetURL := req.URL

	for attempt := 0; attempt <= maxAuthRetries+1; attempt++ {
		if attempt > maxAuthRetries {
			return failRecord(req, startTime, soap.FaultTransferFailure, "Too many attempts"), false
		}

		select {
		case <-ctx.Done():
			return failRecord(req, startTime, soap.FaultTransferFailure, "Download failure"), false
		default:
		}

		useNonceCount := 0
		if challenge != nil {
			nonceCount++
			useNonceCount = nonceCount
		}

		resp, err := w.attempt(ctx, client, *state, challenge, useNonceCount, targetURL)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return failRecord(req, startTime, soap.FaultTransferFailure, "Download failure"), false
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return failRecord(req, startTime, soap.FaultTransferFailure, "Download timeout"), false
			}
			return failRecord(req, startTime, soap.FaultTransferFailure, err.Error()), false
		}

		if resp.StatusCode == http.StatusUnauthorized {
			c, ok := auth.ParseChallenge(resp.Header.Get("WWW-Authenticate"))
			if ok {
				challenge = &c
				nonceCount = 0
			} else if auth.IsBasicChallenge(resp.Header.Get("WWW-Authenticate")) {
				challenge = nil
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return failRecord(req, startTime, soap.FaultTransferFailure,
				fmt.Sprintf("Server returned code %d", resp.StatusCode)), false
		}

		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		return cwmpmsg.TransferRecord{CommandKey: req.CommandKey, StartTime: startTime, FaultCode: "0"}, true
	}

	return failRecord(req, startTime, soap.FaultTransferFailure, "Too many attempts"), false
}

func failRecord(req cwmpmsg.DownloadRequest, startTime, code, msg string) cwmpmsg.TransferRecord {
	return cwmpmsg.TransferRecord{CommandKey: req.CommandKey, StartTime: startTime, FaultCode: code, FaultString: msg}
}

func (w *Worker) attempt(ctx context.Context, client *http.Client, creds auth.Credentials, challenge *auth.Challenge, nonceCount int, targetURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "download: build request")
	}

	u, _ := url.Parse(targetURL)
	path := "/"
	if u != nil {
		path = u.Path
		if u.RawQuery != "" {
			path += "?" + u.RawQuery
		}
	}

	header, err := auth.BuildHeader(creds, challenge, nonceCount, http.MethodGet, path)
	if err != nil {
		return nil, errors.Wrap(err, "download: build auth header")
	}
	if header != "" {
		req.Header.Set("Authorization", header)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (w *Worker) finish(isFirmware bool, record cwmpmsg.TransferRecord, success bool) {
	if isFirmware {
		w.mu.Lock()
		w.downloadInProgress = false
		w.activeCancel = nil
		w.mu.Unlock()
	}

	klog.Infof("download: transfer %q settled, fault=%q", record.CommandKey, record.FaultCode)

	w.mu.Lock()
	sink := w.sink
	w.mu.Unlock()

	if sink == nil {
		klog.Warningf("download: no sink bound, dropping settled transfer %q", record.CommandKey)
		return
	}
	sink.TransferSettled(Outcome{
		Record:           record,
		FirmwareUpgraded: isFirmware && success,
	})
}
