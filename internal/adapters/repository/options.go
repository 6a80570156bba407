package repository

import (
	"time"

	"github.com/okian/schoolboard/pkg/logger"
)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithTimeout bounds every single read.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}
