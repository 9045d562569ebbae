// Package session persists the identity established by a successful callback handshake.
// Records are keyed by an opaque ID that hosts carry in a cookie or a local credential file.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/googler-dev/googler-web/internal/handshake"
)

// ErrNotFound is returned by Load when a record does not exist or has expired.
var ErrNotFound = errors.New("session: record not found")

// Record is one authenticated session.
type Record struct {
	ID            string    `json:"id"`
	Username      string    `json:"username,omitempty"`
	Authenticated bool      `json:"authenticated"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Store is implemented by every session backend.
type Store interface {
	Save(ctx context.Context, record *Record) error
	Load(ctx context.Context, id string) (*Record, error)
}

// NewRecord creates an authenticated record for identity that lives for ttl.
func NewRecord(identity handshake.Identity, ttl time.Duration) *Record {
	now := time.Now().UTC()
	record := &Record{
		ID:            uuid.NewString(),
		Authenticated: true,
		CreatedAt:     now,
	}
	if identity.Present {
		record.Username = identity.Username
	}
	if ttl > 0 {
		record.ExpiresAt = now.Add(ttl)
	}
	return record
}

// Identity returns the handshake identity stored in the record.
func (r *Record) Identity() handshake.Identity {
	if r == nil || r.Username == "" {
		return handshake.Identity{}
	}
	return handshake.NewIdentity(r.Username)
}

// Expired reports whether the record is past its expiry at now. A zero expiry never expires.
func (r *Record) Expired(now time.Time) bool {
	if r == nil {
		return true
	}
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// TTL returns the remaining lifetime at now, or zero for records without expiry.
func (r *Record) TTL(now time.Time) time.Duration {
	if r == nil || r.ExpiresAt.IsZero() {
		return 0
	}
	return r.ExpiresAt.Sub(now)
}

func validateRecord(prefix string, record *Record) error {
	if record == nil {
		return errors.New(prefix + ": record is nil")
	}
	if strings.TrimSpace(record.ID) == "" {
		return errors.New(prefix + ": record id is required")
	}
	return nil
}

// validID accepts the IDs produced by NewRecord and rejects anything that could escape a
// key namespace or a directory.
func validID(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
