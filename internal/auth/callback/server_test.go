package callback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(0, "/google/callback")
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func TestServerDeliversRedirectQuery(t *testing.T) {
	s := startServer(t)
	assert.NotZero(t, s.Port())
	assert.Equal(t, fmt.Sprintf("http://localhost:%d/google/callback", s.Port()), s.RedirectURL())

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/google/callback?code=abc&state=xyz", s.Port()))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	query, err := s.WaitForCallback(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "abc", query.Get("code"))
	assert.Equal(t, "xyz", query.Get("state"))
}

func TestServerRejectsOtherPathsAndMethods(t *testing.T) {
	s := startServer(t)
	base := fmt.Sprintf("http://127.0.0.1:%d", s.Port())

	resp, err := http.Get(base + "/elsewhere?code=abc&state=xyz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(base+"/google/callback", "text/plain", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	_, err = s.WaitForCallback(context.Background(), 50*time.Millisecond)
	assert.True(t, IsAuthenticationError(err))
	authErr, ok := errors.AsType[*AuthenticationError](err)
	require.True(t, ok)
	assert.Equal(t, ErrCallbackTimeout.Type, authErr.Type)
}

func TestServerPortInUse(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = listener.Close() }()

	s := NewServer(listener.Addr().(*net.TCPAddr).Port, "/google/callback")
	err = s.Start()
	require.Error(t, err)
	authErr, ok := errors.AsType[*AuthenticationError](err)
	require.True(t, ok)
	assert.Equal(t, ErrPortInUse.Type, authErr.Type)
	assert.Equal(t, 13, authErr.Code)
	assert.False(t, s.IsRunning())
}

func TestServerStartTwiceAndStop(t *testing.T) {
	s := startServer(t)
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start())

	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.IsRunning())
	assert.NoError(t, s.Stop(context.Background()))
}

func TestWaitForCallbackHonoursContext(t *testing.T) {
	s := NewServer(0, "/cb")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.WaitForCallback(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetUserFriendlyMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{NewAuthenticationError(ErrPortInUse, nil), "The callback port is already in use. Stop the web host or pass -oauth-callback-port and try again."},
		{fmt.Errorf("wrapped: %w", NewAuthenticationError(ErrCallbackTimeout, nil)), "Authentication timed out. Please try again."},
		{NewAuthenticationError(ErrServerStartFailed, errors.New("boom")), "Could not start the local callback server. Please try again."},
		{errors.New("other"), "An unexpected error occurred. Please try again."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GetUserFriendlyMessage(tt.err))
	}
}
