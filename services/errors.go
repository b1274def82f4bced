// Package services holds the application logic between the HTTP controllers
// and the database. Every method returns plain data plus an error that wraps
// one of the sentinel errors below, so controllers can map outcomes onto
// HTTP statuses with errors.Is and nothing else.
package services

import "errors"

var (
	// ErrNotFound means a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a uniqueness invariant would be violated.
	ErrConflict = errors.New("conflict")
	// ErrForbidden means the actor is not the owner of the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrBadRequest means the input is structurally valid but semantically
	// rejected, e.g. following yourself.
	ErrBadRequest = errors.New("bad request")
)
