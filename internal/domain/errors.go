// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the entity is in a state that forbids the requested change.
var ErrConflict = errors.New("conflict")

// ErrValidation indicates a missing or malformed required field.
var ErrValidation = errors.New("validation")

// ErrProtocol indicates a request body that could not be parsed.
var ErrProtocol = errors.New("protocol")

// ErrUpstream indicates a failed call to the store, queue or cache.
var ErrUpstream = errors.New("upstream")
