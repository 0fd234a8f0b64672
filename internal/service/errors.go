package service

import "errors"

// Error kinds raised by the service layer. Handlers map these onto HTTP
// status codes with errors.Is; everything else is treated as an internal
// failure.
var (
	// ErrValidation marks malformed input rejected before any write
	// (self-payment, non-positive amount, missing fields).
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks operations addressing a record that does not
	// exist. Deliberately distinct from benign no-ops such as
	// unblocking an absent edge.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied marks an actor lacking the role permission or
	// ownership an operation requires.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrPrecondition marks state-machine misuse: transitioning a
	// settled payment, paying across a block, duplicate role names,
	// deleting a role still in use.
	ErrPrecondition = errors.New("precondition failed")
)
