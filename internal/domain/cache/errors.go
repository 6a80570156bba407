package cache

import "errors"

// ErrTypeMismatch reports a cached value of an unexpected type.
var ErrTypeMismatch = errors.New("cache: value has unexpected type")
