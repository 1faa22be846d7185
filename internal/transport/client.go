// Package transport implements the authenticated, keep-alive-bound
// HTTP POST loop the session engine uses to talk to the ACS (spec.md
// §4.4): one request in flight per session, transparent digest retry,
// wholesale cookie replacement, and a single socket timeout budget.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog"

	"cwmpcpe/internal/auth"
)

// AuthState is the subset of session state (spec.md §3) the transport
// needs to attach/maintain authentication and cookie headers across
// requests. The session engine owns the struct; the transport mutates
// it in place as responses come back.
type AuthState struct {
	Credentials auth.Credentials
	Cookie      string
	Challenge   *auth.Challenge
	NonceCount  int
}

// Client POSTs SOAP envelopes to a single ACS endpoint, with at most
// one request outstanding at a time — the Go analogue of the Node
// http.Agent({maxSockets: 1}) the source relies on.
type Client struct {
	httpClient *http.Client
	url        string
}

// New builds a Client bound to url with the given session timeout
// budget. Per spec.md §4.4, the socket timeout is sessionTimeout + 30s.
func New(url string, sessionTimeout time.Duration) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: sessionTimeout + 30*time.Second,
			Transport: &http.Transport{
				MaxConnsPerHost:     1,
				MaxIdleConnsPerHost: 1,
			},
		},
	}
}

// Close destroys the keep-alive agent, matching the spec's
// destroy-on-every-close rule (spec.md §4.1).
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// Response is the decoded result of a successful POST: status code and
// raw body (an empty body means an empty response, which the session
// engine treats as "close the session").
type Response struct {
	StatusCode int
	Body       []byte
}

// Post sends body to the ACS, transparently handling one digest
// challenge retry. A non-2xx status after auth resolution, or any
// transport-level error, is returned as a wrapped error — the spec
// treats both as a fatal session error (spec.md §7).
func (c *Client) Post(ctx context.Context, state *AuthState, body []byte) (Response, error) {
	resp, err := c.doOnce(ctx, state, body)
	if err != nil {
		return Response{}, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		challenge, wwwAuth, err := c.handle401(resp)
		if err != nil {
			return Response{}, err
		}
		if challenge == nil {
			return Response{}, fmt.Errorf("transport: 401 with unsupported challenge %q", wwwAuth)
		}
		state.Challenge = challenge
		state.NonceCount = 0

		resp, err = c.doOnce(ctx, state, body)
		if err != nil {
			return Response{}, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return Response{}, fmt.Errorf("transport: second consecutive 401, giving up")
		}
	}

	if resp.StatusCode/100 != 2 {
		return Response{}, fmt.Errorf("transport: ACS returned status %d", resp.StatusCode)
	}

	return Response{StatusCode: resp.StatusCode, Body: resp.bodyBytes}, nil
}

type rawResponse struct {
	StatusCode int
	Header     http.Header
	bodyBytes  []byte
}

// doOnce performs exactly one HTTP round trip, attaching auth headers
// from state and persisting any Set-Cookie into state.Cookie (wholesale
// replace, per spec.md §9's open question about cookie accumulation —
// the session transport replaces, the downloader in internal/download
// accumulates).
func (c *Client) doOnce(ctx context.Context, state *AuthState, body []byte) (rawResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return rawResponse{}, errors.Wrap(err, "transport: build request")
	}

	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("Content-Length", fmt.Sprintf("%d", len(body)))
	if state.Cookie != "" {
		req.Header.Set("Cookie", state.Cookie)
	}

	path := req.URL.Path
	if req.URL.RawQuery != "" {
		path += "?" + req.URL.RawQuery
	}
	header, err := auth.BuildHeader(state.Credentials, state.Challenge, state.NonceCount+1, http.MethodPost, path)
	if err != nil {
		return rawResponse{}, errors.Wrap(err, "transport: build auth header")
	}
	if header != "" {
		req.Header.Set("Authorization", header)
		if state.Challenge != nil {
			state.NonceCount++
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return rawResponse{}, errors.Wrap(err, "transport: POST failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return rawResponse{}, errors.Wrap(err, "transport: read response body")
	}

	if cookie := resp.Header.Get("Set-Cookie"); cookie != "" {
		state.Cookie = cookie
	}

	klog.V(4).Infof("transport: POST %s -> %d (%d bytes)", c.url, resp.StatusCode, len(raw))

	return rawResponse{StatusCode: resp.StatusCode, Header: resp.Header, bodyBytes: raw}, nil
}

func (c *Client) handle401(resp rawResponse) (*auth.Challenge, string, error) {
	wwwAuth := resp.Header.Get("WWW-Authenticate")
	if challenge, ok := auth.ParseChallenge(wwwAuth); ok {
		return &challenge, wwwAuth, nil
	}
	return nil, wwwAuth, nil
}
