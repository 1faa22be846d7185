// Package auth builds the Basic/Digest Authorization headers the
// session transport and download worker attach to outbound requests,
// and parses the WWW-Authenticate challenges the ACS returns (spec.md
// §4.5). The math mirrors RFC 2617; the shape of the header this
// package emits mirrors what github.com/abbot/go-http-auth verifies on
// the *server* side of the connection-request listener (internal/connreq) —
// we write the client half ourselves since go-http-auth only ships a
// verifier, not a header builder.
package auth

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// Challenge is a parsed WWW-Authenticate: Digest header.
type Challenge struct {
	Realm     string
	Nonce     string
	Opaque    string
	QOP       string
	Algorithm string
}

// ParseChallenge parses a WWW-Authenticate header value. It returns ok
// = false if the header does not carry a Digest challenge (e.g. Basic,
// or empty).
func ParseChallenge(header string) (Challenge, bool) {
	if !strings.HasPrefix(strings.ToLower(header), "digest ") {
		return Challenge{}, false
	}
	fields := splitChallengeFields(header[len("Digest "):])

	c := Challenge{
		Realm:     fields["realm"],
		Nonce:     fields["nonce"],
		Opaque:    fields["opaque"],
		QOP:       fields["qop"],
		Algorithm: fields["algorithm"],
	}
	return c, true
}

// IsBasicChallenge reports whether header is a WWW-Authenticate: Basic
// challenge.
func IsBasicChallenge(header string) bool {
	return strings.HasPrefix(strings.ToLower(header), "basic")
}

// splitChallengeFields parses comma-separated key=value or key="value"
// pairs from a challenge/credentials header tail.
func splitChallengeFields(s string) map[string]string {
	out := make(map[string]string)
	for _, part := range splitTopLevelCommas(s) {
		part = strings.TrimSpace(part)
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(part[:eq])
		val := strings.TrimSpace(part[eq+1:])
		val = strings.Trim(val, `"`)
		out[key] = val
	}
	return out
}

// splitTopLevelCommas splits on commas that aren't inside a quoted
// string (qop can legally be a quoted comma-separated list, though
// this simulator always receives a single token).
func splitTopLevelCommas(s string) []string {
	var out []string
	inQuotes := false
	start := 0
	for i, r := range s {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

// Credentials identifies the device to the ACS for both Basic and
// Digest.
type Credentials struct {
	Username string
	Password string
}

// BasicHeader builds a Basic Authorization header value.
func BasicHeader(creds Credentials) string {
	raw := creds.Username + ":" + creds.Password
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

// DigestHeader builds a Digest Authorization header value for method
// and uri, against challenge, using nonceCount as this request's
// sequence number within the challenge's lifetime. It generates a fresh
// random cnonce for every call and returns only the header value.
func DigestHeader(creds Credentials, challenge Challenge, method, uri string, nonceCount int) (string, error) {
	if challenge.Nonce == "" {
		return "", fmt.Errorf("auth: digest challenge has no nonce")
	}

	cnonce, err := randomHex(16)
	if err != nil {
		return "", err
	}

	algo := strings.ToUpper(challenge.Algorithm)
	if algo == "" {
		algo = "MD5"
	}

	ha1 := md5Hex(creds.Username + ":" + challenge.Realm + ":" + creds.Password)
	if algo == "MD5-SESS" {
		ha1 = md5Hex(ha1 + ":" + challenge.Nonce + ":" + cnonce)
	}

	ha2 := md5Hex(method + ":" + uri)

	nc := fmt.Sprintf("%08x", nonceCount)

	var response string
	if challenge.QOP != "" {
		response = md5Hex(strings.Join([]string{ha1, challenge.Nonce, nc, cnonce, challenge.QOP, ha2}, ":"))
	} else {
		response = md5Hex(strings.Join([]string{ha1, challenge.Nonce, ha2}, ":"))
	}

	var b strings.Builder
	fmt.Fprintf(&b, `Digest username="%s", realm="%s", nonce="%s", uri="%s", response="%s"`,
		creds.Username, challenge.Realm, challenge.Nonce, uri, response)
	if challenge.Algorithm != "" {
		fmt.Fprintf(&b, `, algorithm=%s`, challenge.Algorithm)
	}
	if challenge.Opaque != "" {
		fmt.Fprintf(&b, `, opaque="%s"`, challenge.Opaque)
	}
	if challenge.QOP != "" {
		fmt.Fprintf(&b, `, qop=%s, nc=%s, cnonce="%s"`, challenge.QOP, nc, cnonce)
	}

	return b.String(), nil
}

// BuildHeader is the entry point spec.md §4.5 describes: no username
// means no header at all; a known digest challenge means a Digest
// header built with nonceCount as given (incrementing it per request is
// the caller's job); otherwise Basic.
func BuildHeader(creds Credentials, challenge *Challenge, nonceCount int, method, uri string) (string, error) {
	if creds.Username == "" {
		return "", nil
	}
	if challenge != nil {
		return DigestHeader(creds, *challenge, method, uri, nonceCount)
	}
	return BasicHeader(creds), nil
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
