package engine

import (
	"fmt"

	"github.com/FairForge/metaapi/internal/acl"
	"github.com/FairForge/metaapi/internal/codec"
	"github.com/FairForge/metaapi/internal/fieldfilter"
	"github.com/FairForge/metaapi/internal/patch"
	"github.com/FairForge/metaapi/internal/query"
	"github.com/FairForge/metaapi/internal/schema"
	"github.com/FairForge/metaapi/internal/store"
)

// Errors raised by the collaborating packages, under the names the HTTP
// layer maps to statuses.
type (
	QueryParseError           = query.ParseError
	FieldParseError           = fieldfilter.FieldParseError
	UnknownTypeError          = schema.UnknownTypeError
	InvalidValueError         = schema.InvalidValueError
	NotFoundError             = store.NotFoundError
	AccessDeniedError         = acl.AccessDeniedError
	ReadOnlyPropertyError     = patch.ReadOnlyPropertyError
	PropertyNotFoundError     = patch.PropertyNotFoundError
	UnsupportedMediaTypeError = codec.UnsupportedMediaTypeError
)

// ConflictError rejects an operation the type does not support, such as
// favoriting a type without favorites.
type ConflictError struct {
	Message string
}

func (e ConflictError) Error() string {
	return e.Message
}

func ErrConflict(format string, args ...any) error {
	return ConflictError{Message: fmt.Sprintf(format, args...)}
}

// BadRequestError rejects a malformed request.
type BadRequestError struct {
	Message string
	Err     error
}

func (e BadRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e BadRequestError) Unwrap() error {
	return e.Err
}

func ErrBadRequest(err error, format string, args ...any) error {
	return BadRequestError{Message: fmt.Sprintf(format, args...), Err: err}
}

func WrapError(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}
