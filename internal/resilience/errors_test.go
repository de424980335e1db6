package resilience

import (
	"fmt"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "wrapped transient", err: NewTransientError(eris.New("503"), 503), expected: true},
		{
			name:     "transient in chain",
			err:      fmt.Errorf("fetch page: %w", NewTransientError(eris.New("429"), 429)),
			expected: true,
		},
		{name: "connection refused", err: syscall.ECONNREFUSED, expected: true},
		{name: "connection reset", err: syscall.ECONNRESET, expected: true},
		{name: "io timeout string", err: eris.New("read tcp: i/o timeout"), expected: true},
		{name: "no such host", err: eris.New("dial: no such host"), expected: true},
		{name: "plain error", err: eris.New("no usable name in block"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "code %d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404} {
		assert.False(t, IsTransientHTTPStatus(code), "code %d", code)
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := eris.New("boom")
	te := NewTransientError(inner, 500)
	assert.Equal(t, "boom", te.Error())
	assert.Equal(t, inner, te.Unwrap())
}
