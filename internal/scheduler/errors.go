package scheduler

import (
	"errors"
	"fmt"

	"github.com/san-kum/cyclectl/internal/command"
)

var (
	// ErrResourceConflict indicates a resource is held by a non-interruptible command.
	ErrResourceConflict = errors.New("scheduler: resource held by non-interruptible command")

	// ErrNilCommand indicates a nil command was passed.
	ErrNilCommand = errors.New("scheduler: nil command")

	// ErrDefaultCommand indicates an attempt to schedule a registered default command.
	ErrDefaultCommand = errors.New("scheduler: default commands cannot be scheduled explicitly")

	// ErrInvalidDefault indicates a default command that does not require exactly its resource.
	ErrInvalidDefault = errors.New("scheduler: invalid default command")
)

// ConflictError describes a rejected schedule request.
type ConflictError struct {
	Resource command.Resource
	Holder   string
	Command  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("scheduler: %s rejected: %s held by non-interruptible %s", e.Command, e.Resource, e.Holder)
}

func (e *ConflictError) Unwrap() error {
	return ErrResourceConflict
}
