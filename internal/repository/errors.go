package repository

import "errors"

// ErrNotFound indicates an entity was not located or belongs to another owner.
var ErrNotFound = errors.New("repository: not found")

// ErrInvalidArgument indicates the store rejected a malformed value.
var ErrInvalidArgument = errors.New("repository: invalid argument")

// ErrTerminalState indicates an update targeted a record already in a
// terminal status.
var ErrTerminalState = errors.New("repository: deployment already terminal")

// ErrNotPending indicates a claim targeted a record another worker already
// picked up or finished.
var ErrNotPending = errors.New("repository: deployment not pending")
