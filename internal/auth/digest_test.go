package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChallenge(t *testing.T) {
	tests := []struct {
		desc   string
		header string
		wantOK bool
		want   Challenge
	}{
		{
			desc:   "well-formed digest challenge",
			header: `Digest realm="cwmpcpe", nonce="abc123", qop="auth", algorithm=MD5`,
			wantOK: true,
			want:   Challenge{Realm: "cwmpcpe", Nonce: "abc123", QOP: "auth", Algorithm: "MD5"},
		},
		{
			desc:   "basic challenge is not a digest one",
			header: `Basic realm="cwmpcpe"`,
			wantOK: false,
		},
		{
			desc:   "empty header",
			header: "",
			wantOK: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			got, ok := ParseChallenge(tc.header)
			require.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestIsBasicChallenge(t *testing.T) {
	assert.True(t, IsBasicChallenge("Basic realm=\"x\""))
	assert.False(t, IsBasicChallenge("Digest realm=\"x\""))
}

func TestBuildHeader_NoCredentialsYieldsNoHeader(t *testing.T) {
	header, err := BuildHeader(Credentials{}, nil, 0, "GET", "/")
	require.NoError(t, err)
	assert.Empty(t, header)
}

func TestBuildHeader_FallsBackToBasicWithoutChallenge(t *testing.T) {
	header, err := BuildHeader(Credentials{Username: "usertest", Password: "passtest"}, nil, 0, "GET", "/")
	require.NoError(t, err)
	assert.Equal(t, BasicHeader(Credentials{Username: "usertest", Password: "passtest"}), header)
}

func TestDigestHeader_CarriesEveryFieldWhenQOPIsSet(t *testing.T) {
	// DigestHeader generates its own cnonce, so we can't predict the
	// response hash exactly, but we can assert the header carries every
	// field RFC 2617 requires when qop is set.
	creds := Credentials{Username: "usertest", Password: "passtest"}
	challenge := Challenge{Realm: "cwmpcpe", Nonce: "n1", QOP: "auth"}

	header, err := DigestHeader(creds, challenge, "POST", "/acs", 1)
	require.NoError(t, err)

	for _, field := range []string{`username="usertest"`, `realm="cwmpcpe"`, `nonce="n1"`, `uri="/acs"`, `qop=auth`, `nc=00000001`} {
		assert.Contains(t, header, field)
	}
}

func TestDigestHeader_RequiresNonce(t *testing.T) {
	_, err := DigestHeader(Credentials{Username: "u"}, Challenge{}, "GET", "/", 1)
	assert.Error(t, err)
}
