package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorStringWithoutCause(t *testing.T) {
	err := New(ErrLogical, "no latest marker found")
	assert.Equal(t, "logical: no latest marker found", err.Error())
}

func TestErrorStringWithCause(t *testing.T) {
	cause := errors.New("bucket missing")
	err := Wrap(ErrObjectStore, "put failed", cause)
	assert.Equal(t, "object_store: put failed: bucket missing", err.Error())
}

func TestErrorUnwrapReturnsCause(t *testing.T) {
	cause := errors.New("gone")
	err := Wrap(ErrLocalIO, "read failed", cause)
	assert.ErrorIs(t, err, cause)
}

func TestErrorUnwrapNilWhenNoCause(t *testing.T) {
	err := New(ErrCodec, "bad magic")
	assert.Nil(t, err.Unwrap())
}

func TestErrorCodeStrings(t *testing.T) {
	cases := map[ErrorCode]string{
		ErrDatabase:    "database",
		ErrLocalIO:     "local_io",
		ErrObjectStore: "object_store",
		ErrCodec:       "codec",
		ErrLogical:     "logical",
		ErrorCode(99):  "unknown",
	}
	for code, want := range cases {
		assert.Equal(t, want, code.String())
	}
}

func TestIsMatchesCode(t *testing.T) {
	err := New(ErrDatabase, "busy")
	assert.True(t, Is(err, ErrDatabase))
	assert.False(t, Is(err, ErrCodec))
}

func TestIsFalseForForeignError(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), ErrLogical))
}
