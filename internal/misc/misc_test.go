package misc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/googler-dev/googler-web/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOAuthCallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    *OAuthCallback
		wantErr bool
	}{
		{"empty", "   ", nil, false},
		{"full url", "http://localhost:3000/google/callback?code=abc&state=xyz", &OAuthCallback{Code: "abc", State: "xyz"}, false},
		{"scheme-less", "localhost:3000/google/callback?code=abc&state=xyz", &OAuthCallback{Code: "abc", State: "xyz"}, false},
		{"bare query", "?code=abc&state=xyz", &OAuthCallback{Code: "abc", State: "xyz"}, false},
		{"key value pairs", "code=abc&state=xyz", &OAuthCallback{Code: "abc", State: "xyz"}, false},
		{"fragment", "http://localhost/cb#code=abc&state=xyz", &OAuthCallback{Code: "abc", State: "xyz"}, false},
		{"code with hash state", "http://localhost/cb?code=abc%23xyz", &OAuthCallback{Code: "abc", State: "xyz"}, false},
		{"provider error", "http://localhost/cb?error=access_denied&error_description=denied", &OAuthCallback{Error: "access_denied", ErrorDescription: "denied"}, false},
		{"description only", "http://localhost/cb?error_description=denied", &OAuthCallback{Error: "denied"}, false},
		{"no code", "http://localhost/cb?state=xyz", nil, true},
		{"garbage", "hello", nil, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseOAuthCallback(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOAuthCallbackValues(t *testing.T) {
	t.Parallel()

	values := (&OAuthCallback{Code: "abc", State: "xyz"}).Values()
	assert.Equal(t, "abc", values.Get("code"))
	assert.Equal(t, "xyz", values.Get("state"))
	assert.False(t, values.Has("error"))

	var nilCallback *OAuthCallback
	assert.Empty(t, nilCallback.Values())
}

func TestCopyConfigTemplateFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	dst := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, CopyConfigTemplate(filepath.Join(t.TempDir(), "missing.yaml"), dst))

	cfg, err := config.LoadConfig(dst)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPort, cfg.Port)
	assert.Equal(t, config.DefaultCallbackRoute, cfg.Routes.Callback)
	assert.NoError(t, cfg.Validate())
}

func TestCopyConfigTemplateCopiesSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "example.yaml")
	require.NoError(t, os.WriteFile(src, []byte("port: 4000\n"), 0o644))
	dst := filepath.Join(dir, "config.yaml")

	require.NoError(t, CopyConfigTemplate(src, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "port: 4000\n", string(data))
	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
