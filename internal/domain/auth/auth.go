// Package auth issues passkey sessions for the dashboard API.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/schoolboard/internal/domain/cache"
	"github.com/okian/schoolboard/pkg/logger"
	"github.com/okian/schoolboard/pkg/metrics"
)

// Sentinel errors.
var (
	ErrInvalidPassKey = errors.New("invalid passkey")
	ErrDisabled       = errors.New("passkey authentication is disabled")
)

// DefaultSessionTTL is how long a session stays valid.
const DefaultSessionTTL = 24 * time.Hour

const keyPrefix = "session:"

// Session is an issued session.
type Session struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Sessions verifies passkeys and tracks issued sessions.
type Sessions struct {
	passKey string
	store   *cache.Cache
	ttl     time.Duration
	now     func() time.Time
	log     logger.Logger
}

// Option configures Sessions.
type Option func(*Sessions)

// WithTTL sets the session lifetime.
func WithTTL(d time.Duration) Option {
	return func(s *Sessions) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Sessions) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Sessions) {
		if l != nil {
			s.log = l
		}
	}
}

// NewSessions creates a session store. An empty passKey disables
// authentication.
func NewSessions(passKey string, opts ...Option) *Sessions {
	s := &Sessions{
		passKey: strings.TrimSpace(passKey),
		ttl:     DefaultSessionTTL,
		now:     time.Now,
		log:     logger.Get(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("auth")
	s.store = cache.New(cache.WithTTL(s.ttl), cache.WithClock(s.now))
	return s
}

// Enabled reports whether a passkey is configured.
func (s *Sessions) Enabled() bool { return s.passKey != "" }

// Login checks the passkey and issues a session.
func (s *Sessions) Login(ctx context.Context, passKey string) (Session, error) {
	if !s.Enabled() {
		return Session{}, ErrDisabled
	}
	if !VerifyPassKey(s.passKey, passKey) {
		metrics.RecordAuthFailure()
		s.log.Warn(ctx, "passkey rejected")
		return Session{}, ErrInvalidPassKey
	}
	sess := Session{ID: uuid.NewString(), ExpiresAt: s.now().Add(s.ttl)}
	s.store.Set(keyPrefix+sess.ID, sess)
	metrics.UpdateSessionsActive(s.Active())
	s.log.Info(ctx, "session issued", logger.Any("expiresAt", sess.ExpiresAt))
	return sess, nil
}

// Valid reports whether id names a live session. Everything is valid when
// authentication is disabled.
func (s *Sessions) Valid(id string) bool {
	if !s.Enabled() {
		return true
	}
	if id == "" {
		return false
	}
	_, ok := cache.Load[Session](s.store, keyPrefix+id)
	return ok
}

// Logout ends a session.
func (s *Sessions) Logout(id string) {
	s.store.Invalidate(keyPrefix + id)
	metrics.UpdateSessionsActive(s.Active())
}

// Active counts sessions that have not expired.
func (s *Sessions) Active() int {
	n := 0
	for _, e := range s.store.Entries() {
		if e.Valid {
			n++
		}
	}
	return n
}

// TTL returns the session lifetime.
func (s *Sessions) TTL() time.Duration { return s.ttl }

// VerifyPassKey compares a given passkey with the configured one. A
// configured value that looks like a bcrypt hash is checked as a hash.
func VerifyPassKey(configured, given string) bool {
	configured = strings.TrimSpace(configured)
	given = strings.TrimSpace(given)
	if configured == "" || given == "" {
		return false
	}
	if isBcrypt(configured) {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(given)) == 1
}

func isBcrypt(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}
