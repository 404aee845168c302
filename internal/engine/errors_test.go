package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/FairForge/metaapi/internal/store"
)

func TestErrors_Types(t *testing.T) {
	err := ErrConflict("Objects of type %s cannot be set as favorite", "dataElement")

	var conflict ConflictError
	assert.True(t, errors.As(err, &conflict))
	assert.Equal(t, "Objects of type dataElement cannot be set as favorite", err.Error())

	err = ErrBadRequest(errors.New("unexpected EOF"), "Could not parse payload")
	assert.Equal(t, "Could not parse payload: unexpected EOF", err.Error())
	assert.Equal(t, "Page size must be positive", ErrBadRequest(nil, "Page size must be positive").Error())
}

func TestErrors_Wrapping(t *testing.T) {
	original := errors.New("disk full")
	wrapped := WrapError(original, "failed to write object")
	assert.ErrorIs(t, wrapped, original)

	var nf NotFoundError
	typed := store.NotFoundError{Type: "dataElement", UID: "fbfJHSPpUQD"}
	assert.True(t, errors.As(WrapError(typed, "operation failed"), &nf))
	assert.Equal(t, "dataElement with ID fbfJHSPpUQD could not be found.", nf.Error())

	bad := ErrBadRequest(original, "import failed")
	assert.ErrorIs(t, bad, original)
}
