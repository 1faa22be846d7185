// Package connreq implements the connection-request listener
// (component I): a tiny digest-guarded HTTP server the ACS pokes to
// trigger an out-of-cycle session (spec.md §4.6).
package connreq

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	auth "github.com/abbot/go-http-auth"
	"github.com/pkg/errors"
	"k8s.io/klog"

	"cwmpcpe/internal/datamodel"
)

// SessionRequester is the narrow session-engine surface this listener
// needs: whether the device currently accepts requests, and how to
// hand off an accepted one (spec.md §4.6). Implemented by
// *session.Engine; kept as an interface so this package never imports
// session.
type SessionRequester interface {
	AcceptingConnections() bool
	RequestConnection()
}

// Server is the listener the teacher's conReqServer.go wraps with
// go-http-auth; here it is bound to a dynamically discovered local
// address instead of a fixed port, and it hands requests off to the
// session engine instead of a channel read by a hand-rolled main loop.
type Server struct {
	engine SessionRequester
	server *http.Server
	url    string
}

// DiscoverLocalAddress opens a throwaway TCP connection to acsURL's
// host:port to learn the outbound local IP (spec.md §4.6) — the same
// dial-out trick Openusp's getDeviceIPAddress uses against a well-known
// address, aimed here at the ACS since that's the address this process
// actually needs to be routable to.
func DiscoverLocalAddress(acsURL string) (string, error) {
	u, err := url.Parse(acsURL)
	if err != nil {
		return "", errors.Wrap(err, "connreq: parse ACS URL")
	}

	host := u.Host
	if u.Port() == "" {
		port := "80"
		if u.Scheme == "https" {
			port = "443"
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}

	conn, err := net.DialTimeout("tcp", host, 5*time.Second)
	if err != nil {
		return "", errors.Wrap(err, "connreq: discover local address")
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.TCPAddr)
	if !ok {
		return "", fmt.Errorf("connreq: unexpected local address type %T", conn.LocalAddr())
	}
	return addr.IP.String(), nil
}

// New builds a Server bound to localIP at acsPort+1, guarded by Digest
// auth against identity's Username/Password.
func New(engine SessionRequester, identity datamodel.Identity, localIP string, acsPort int) *Server {
	addr := net.JoinHostPort(localIP, strconv.Itoa(acsPort+1))

	s := &Server{
		engine: engine,
		url:    fmt.Sprintf("http://%s/connectionRequest", addr),
	}

	secret := func(user, realm string) string {
		if user != identity.Username {
			return ""
		}
		return identity.Password
	}

	authenticator := auth.NewDigestAuthenticator("cwmpcpe", secret)
	authenticator.PlainTextSecrets = true

	mux := http.NewServeMux()
	mux.HandleFunc("/connectionRequest", authenticator.Wrap(s.handle))

	s.server = &http.Server{Addr: addr, Handler: mux}
	return s
}

// URL is the value published into ManagementServer.ConnectionRequestURL.
func (s *Server) URL() string {
	return s.url
}

// ListenAndServe blocks serving the connection-request listener until
// Close is called.
func (s *Server) ListenAndServe() error {
	klog.Infof("connreq: listening at %s", s.url)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "connreq: listen")
	}
	return nil
}

// Close shuts the listener down.
func (s *Server) Close() error {
	return s.server.Close()
}

func (s *Server) handle(w http.ResponseWriter, r *auth.AuthenticatedRequest) {
	if !s.engine.AcceptingConnections() {
		klog.V(2).Infof("connreq: device not accepting connections, dropping socket")
		dropConnection(w)
		return
	}

	klog.Infof("connreq: connection request received from %s", r.RemoteAddr)
	w.WriteHeader(http.StatusOK)
	s.engine.RequestConnection()
}

// dropConnection hijacks the underlying TCP connection and closes it
// without writing a response, matching spec.md §4.6's "drop the socket
// immediately" when acceptConnections is false.
func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	conn.Close()
}
