package download

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cwmpcpe/internal/cwmpmsg"
)

type collectingSink struct {
	mu  sync.Mutex
	got []Outcome
}

func (s *collectingSink) TransferSettled(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, o)
}

func (s *collectingSink) wait(t *testing.T) Outcome {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		if len(s.got) > 0 {
			out := s.got[0]
			s.mu.Unlock()
			return out
		}
		s.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for a settled transfer")
	return Outcome{}
}

func TestDownload_RejectsUnrecognizedFileType(t *testing.T) {
	sink := &collectingSink{}
	w := New(sink, time.Second)

	fault := w.Download(cwmpmsg.DownloadRequest{CommandKey: "dl-1", FileType: "not a real type", URL: "http://x"})
	require.NotNil(t, fault)
}

func TestDownload_SucceedsAgainstA200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("firmware bytes"))
	}))
	defer server.Close()

	sink := &collectingSink{}
	worker := New(sink, time.Second)

	fault := worker.Download(cwmpmsg.DownloadRequest{
		CommandKey: "dl-1",
		FileType:   cwmpmsg.FirmwareFileType,
		URL:        server.URL,
	})
	require.Nil(t, fault)

	outcome := sink.wait(t)
	assert.Equal(t, "0", outcome.Record.FaultCode)
	assert.True(t, outcome.FirmwareUpgraded)
}

func TestDownload_RejectsSecondFirmwareDownloadWhileOneInProgress(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	sink := &collectingSink{}
	worker := New(sink, 5*time.Second)

	fault := worker.Download(cwmpmsg.DownloadRequest{CommandKey: "dl-1", FileType: cwmpmsg.FirmwareFileType, URL: server.URL})
	require.Nil(t, fault)

	second := worker.Download(cwmpmsg.DownloadRequest{CommandKey: "dl-2", FileType: cwmpmsg.FirmwareFileType, URL: server.URL})
	require.NotNil(t, second)
	assert.Contains(t, second.Message, "already in progress")
}

func TestDownload_NonFirmwareDownloadsAreNotSerialized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := &collectingSink{}
	worker := New(sink, time.Second)

	first := worker.Download(cwmpmsg.DownloadRequest{CommandKey: "dl-1", FileType: "2 Web Content", URL: server.URL})
	second := worker.Download(cwmpmsg.DownloadRequest{CommandKey: "dl-2", FileType: "2 Web Content", URL: server.URL})
	assert.Nil(t, first)
	assert.Nil(t, second)
}

func TestDownload_RejectsNonHTTPScheme(t *testing.T) {
	sink := &collectingSink{}
	worker := New(sink, time.Second)

	fault := worker.Download(cwmpmsg.DownloadRequest{CommandKey: "dl-1", FileType: "2 Web Content", URL: "ftp://example.com/file"})
	require.Nil(t, fault)

	outcome := sink.wait(t)
	assert.Equal(t, "9016", outcome.Record.FaultCode)
}

func TestWorker_FinishWithoutSinkDoesNotPanic(t *testing.T) {
	worker := New(nil, time.Second)
	assert.NotPanics(t, func() {
		worker.finish(false, cwmpmsg.TransferRecord{CommandKey: "dl-1", FaultCode: "0"}, true)
	})
}

func TestCancelActive_ReturnsFalseWhenNothingIsInFlight(t *testing.T) {
	worker := New(&collectingSink{}, time.Second)
	assert.False(t, worker.CancelActive())
}
