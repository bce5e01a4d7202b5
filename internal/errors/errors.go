package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	goerrors "github.com/go-errors/errors"
)

type ErrorType string

const (
	ErrTypeNotFound     ErrorType = "NOT_FOUND"
	ErrTypeDuplicateKey ErrorType = "DUPLICATE_KEY"
	ErrTypeMissingField ErrorType = "MISSING_REQUIRED_FIELD"
	ErrTypeInvalidInput ErrorType = "INVALID_INPUT"
	ErrTypeInternal     ErrorType = "INTERNAL"
	ErrTypeUnavailable  ErrorType = "UNAVAILABLE"
)

type DomainError struct {
	Type    ErrorType
	Message string
	Fields  []string
	Err     error
	Stack   []byte
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func (e *DomainError) StackTrace() []byte {
	return e.Stack
}

func New(errType ErrorType, message string, err error) *DomainError {
	var stack []byte
	if err != nil {
		if stackErr, ok := err.(*goerrors.Error); ok {
			stack = stackErr.Stack()
		} else {
			stack = goerrors.Wrap(err, 2).Stack()
		}
	} else {
		stack = goerrors.New(message).Stack()
	}

	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Stack:   stack,
	}
}

func NotFound(message string, err error) *DomainError {
	return New(ErrTypeNotFound, message, err)
}

func DuplicateKey(message string, err error) *DomainError {
	return New(ErrTypeDuplicateKey, message, err)
}

// MissingField reports required fields absent from a write
func MissingField(fields ...string) *DomainError {
	e := New(ErrTypeMissingField, "missing required field(s): "+strings.Join(fields, ", "), nil)
	e.Fields = fields
	return e
}

func InvalidInput(message string, err error) *DomainError {
	return New(ErrTypeInvalidInput, message, err)
}

func Internal(message string, err error) *DomainError {
	return New(ErrTypeInternal, message, err)
}

func Unavailable(message string, err error) *DomainError {
	return New(ErrTypeUnavailable, message, err)
}

// TypeOf returns the type of the first DomainError in the chain, or "".
func TypeOf(err error) ErrorType {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de.Type
	}
	return ""
}

func IsNotFound(err error) bool {
	return TypeOf(err) == ErrTypeNotFound
}

func IsDuplicateKey(err error) bool {
	return TypeOf(err) == ErrTypeDuplicateKey
}

func IsMissingField(err error) bool {
	return TypeOf(err) == ErrTypeMissingField
}

func IsInvalidInput(err error) bool {
	return TypeOf(err) == ErrTypeInvalidInput
}
