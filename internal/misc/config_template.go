package misc

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// DefaultConfigTemplate is written when no config.example.yaml is shipped next to the binary.
const DefaultConfigTemplate = `# googler-web configuration
host: ""
port: 3000
debug: false
logging-to-file: false
logs-max-total-size-mb: 0
auth-dir: "~/.googler"
proxy-url: ""

exchange:
  endpoint: "http://localhost:8000/api/google/callback"
  timeout-seconds: 15
  max-body-bytes: 1048576

routes:
  callback: "/google/callback"
  landing: "/"
  login: "/login"

login:
  authorize-url: "http://localhost:8000/api/google/login"

session:
  backend: "memory"
  cookie-name: "googler_session"
  ttl-minutes: 1440
  secure-cookie: false
`

// CopyConfigTemplate copies src to dst with owner-only permissions. When src does not exist
// the built-in DefaultConfigTemplate is written instead.
func CopyConfigTemplate(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		log.Debugf("config template %s not found; writing built-in defaults", src)
		return os.WriteFile(dst, []byte(DefaultConfigTemplate), 0o600)
	}
	defer func() {
		if errClose := in.Close(); errClose != nil {
			log.WithError(errClose).Warn("failed to close source config file")
		}
	}()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		if errClose := out.Close(); errClose != nil {
			log.WithError(errClose).Warn("failed to close destination config file")
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
