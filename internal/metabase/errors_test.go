package metabase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTimeoutError struct{}

func (fakeTimeoutError) Error() string   { return "i/o timeout" }
func (fakeTimeoutError) Timeout() bool   { return true }
func (fakeTimeoutError) Temporary() bool { return true }

func testClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(Config{
		BaseURL:        "http://bi.example.com",
		APIKey:         "mb_test_key",
		ConnectTimeout: 2 * time.Second,
		ReadTimeout:    5 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return client
}

func TestClassifyTransportError(t *testing.T) {
	client := testClient(t)

	tests := []struct {
		name     string
		err      error
		wantKind ErrorKind
		wantMsg  string
	}{
		{
			name:     "timeout during dial",
			err:      &url.Error{Op: "Get", URL: "http://bi.example.com/api/card", Err: &dialError{err: fakeTimeoutError{}}},
			wantKind: ErrKindConnectTimeout,
			wantMsg:  "connection timeout (2s) when connecting to",
		},
		{
			name:     "refused during dial",
			err:      &url.Error{Op: "Get", URL: "http://bi.example.com/api/card", Err: &dialError{err: errors.New("connection refused")}},
			wantKind: ErrKindConnectError,
			wantMsg:  "connection error when connecting to",
		},
		{
			name:     "deadline after connect",
			err:      &url.Error{Op: "Get", URL: "http://bi.example.com/api/card", Err: context.DeadlineExceeded},
			wantKind: ErrKindReadTimeout,
			wantMsg:  "read timeout (5s) when reading response from",
		},
		{
			name:     "net timeout after connect",
			err:      fakeTimeoutError{},
			wantKind: ErrKindReadTimeout,
			wantMsg:  "read timeout",
		},
		{
			name:     "other transport failure",
			err:      errors.New("tls: bad certificate"),
			wantKind: ErrKindConnectError,
			wantMsg:  "connection error when connecting to",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gwErr := client.classifyTransportError(tt.err, "http://bi.example.com/api/card")
			assert.Equal(t, tt.wantKind, gwErr.Kind)
			assert.Contains(t, gwErr.Message, tt.wantMsg)
			assert.Contains(t, gwErr.Message, "http://bi.example.com/api/card")
		})
	}
}

func TestIsKind(t *testing.T) {
	apiErr := newAPIError(404, []byte(`{"message":"not found"}`))

	assert.True(t, IsKind(apiErr, ErrKindAPIError))
	assert.False(t, IsKind(apiErr, ErrKindConnectError))
	assert.False(t, IsKind(errors.New("plain"), ErrKindAPIError))
	assert.False(t, IsKind(nil, ErrKindAPIError))
}

func TestAPIErrorMessage(t *testing.T) {
	apiErr := newAPIError(500, []byte("internal server error"))

	assert.Equal(t, "API request failed with status 500: internal server error", apiErr.Error())
	assert.Equal(t, 500, apiErr.StatusCode)
	assert.Equal(t, "internal server error", apiErr.Body)
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "connect_timeout", ErrKindConnectTimeout.String())
	assert.Equal(t, "read_timeout", ErrKindReadTimeout.String())
	assert.Equal(t, "connect_error", ErrKindConnectError.String())
	assert.Equal(t, "api_error", ErrKindAPIError.String())
	assert.Equal(t, "malformed_shape", ErrKindMalformedShape.String())
	assert.Equal(t, "auth_error", ErrKindAuth.String())
}
