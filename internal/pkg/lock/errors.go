package lock

import "errors"

// ErrLockTimeout is returned when a user's lock is still held after the wait.
var ErrLockTimeout = errors.New("user is busy with another request")
