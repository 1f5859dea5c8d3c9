package errors

import (
	"errors"
	"fmt"
)

// ResourceNotFoundError is returned when a requested resource does not exist.
type ResourceNotFoundError struct {
	resource string
	id       string
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.resource, e.id)
}

func NewTaskNotFoundError(key string) error {
	return &ResourceNotFoundError{resource: "task", id: key}
}

func IsResourceNotFoundError(err error) bool {
	var e *ResourceNotFoundError
	return errors.As(err, &e)
}

// UnauthorizedError is returned when a request carries no valid credentials.
type UnauthorizedError struct {
	reason string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized: %s", e.reason)
}

func NewUnauthorizedError(reason string) error {
	return &UnauthorizedError{reason: reason}
}

func IsUnauthorizedError(err error) bool {
	var e *UnauthorizedError
	return errors.As(err, &e)
}

// InvalidTaskError is returned when a submitted task fails validation.
type InvalidTaskError struct {
	reason string
}

func (e *InvalidTaskError) Error() string {
	return fmt.Sprintf("invalid task: %s", e.reason)
}

func NewInvalidTaskError(reason string) error {
	return &InvalidTaskError{reason: reason}
}

func IsInvalidTaskError(err error) bool {
	var e *InvalidTaskError
	return errors.As(err, &e)
}
