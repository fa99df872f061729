package session

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenDecoder_Decode(t *testing.T) {
	d := NewTokenDecoder()

	t.Run("reads sub role and exp", func(t *testing.T) {
		exp := testNow.Add(time.Hour)
		claims, err := d.Decode(mintToken(t, " bob ", "ROLE_USER", exp))
		require.NoError(t, err)
		assert.Equal(t, " bob ", claims.Subject)
		assert.Equal(t, "ROLE_USER", claims.Role)
		got, ok := claims.ExpiresAtUnix()
		assert.True(t, ok)
		assert.Equal(t, exp.Unix(), got)
	})

	t.Run("ignores header and signature", func(t *testing.T) {
		token := "not-base64!." + base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"alice","exp":1700003600}`)) + ".###"
		claims, err := d.Decode(token)
		require.NoError(t, err)
		assert.Equal(t, "alice", claims.Subject)
	})

	t.Run("accepts padded payload", func(t *testing.T) {
		token := "h." + base64.URLEncoding.EncodeToString([]byte(`{"sub":"al"}`)) + ".s"
		claims, err := d.Decode(token)
		require.NoError(t, err)
		assert.Equal(t, "al", claims.Subject)
	})

	t.Run("url safe alphabet", func(t *testing.T) {
		// encodes as eyJzdWIiOiI_Pz4-In0
		payload := `{"sub":"??>>"}`
		token := "h." + base64.RawURLEncoding.EncodeToString([]byte(payload)) + ".s"
		claims, err := d.Decode(token)
		require.NoError(t, err)
		assert.Equal(t, "??>>", claims.Subject)
	})

	t.Run("utf8 subject", func(t *testing.T) {
		claims, err := d.Decode(rawPayloadToken(`{"sub":"josé"}`))
		require.NoError(t, err)
		assert.Equal(t, "josé", claims.Subject)
	})

	malformed := map[string]string{
		"two segments":     "header.payload",
		"four segments":    "a.b.c.d",
		"empty":            "",
		"bad base64":       "h.%%%.s",
		"payload not json": "h." + base64.RawURLEncoding.EncodeToString([]byte("not json")) + ".s",
		"payload array":    "h." + base64.RawURLEncoding.EncodeToString([]byte("[1,2]")) + ".s",
	}
	for name, token := range malformed {
		t.Run(name, func(t *testing.T) {
			claims, err := d.Decode(token)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, ErrMalformedToken)
		})
	}
}

func TestClaims_ExpiredAt(t *testing.T) {
	d := NewTokenDecoder()

	tests := []struct {
		name    string
		exp     time.Time
		expired bool
	}{
		{"one second left", testNow.Add(time.Second), false},
		{"expires exactly now", testNow, true},
		{"expired an hour ago", testNow.Add(-time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := d.Decode(mintToken(t, "u", "ROLE_USER", tt.exp))
			require.NoError(t, err)
			assert.Equal(t, tt.expired, claims.ExpiredAt(testNow))
		})
	}

	t.Run("missing exp is expired", func(t *testing.T) {
		claims, err := d.Decode(rawPayloadToken(`{"sub":"u"}`))
		require.NoError(t, err)
		assert.True(t, claims.ExpiredAt(testNow))
	})
}
