package auth

import (
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssue(t *testing.T) {
	a, err := Issue()
	require.NoError(t, err)
	b, err := Issue()
	require.NoError(t, err)

	assert.Len(t, a.Value(), 2*tokenBytes)
	assert.NotEqual(t, a.Value(), b.Value())
}

func TestVerify(t *testing.T) {
	tok := New("secret")

	assert.True(t, tok.Verify("secret"))
	assert.False(t, tok.Verify("Secret"))
	assert.False(t, tok.Verify("secret "))
	assert.False(t, tok.Verify(""))
	assert.False(t, New("").Verify(""))
}

func TestStringRedacts(t *testing.T) {
	tok := New("secret")
	assert.NotContains(t, fmt.Sprintf("%v %s", tok, tok), "secret")
}

func TestVerifyRequest(t *testing.T) {
	tok := New("secret")

	tests := []struct {
		name       string
		target     string
		header     string
		allowQuery bool
		wantErr    bool
	}{
		{"bearer header", "/config", "Bearer secret", false, false},
		{"wrong bearer", "/config", "Bearer nope", false, true},
		{"missing scheme", "/config", "secret", false, true},
		{"no credential", "/config", "", false, true},
		{"query allowed", "/events?token=secret", "", true, false},
		{"query not allowed", "/config?token=secret", "", false, true},
		{"wrong query", "/events?token=nope", "", true, true},
		{"bad header falls back to query", "/events?token=secret", "Bearer nope", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.target, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			err := tok.VerifyRequest(r, tt.allowQuery)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnauthorized)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
