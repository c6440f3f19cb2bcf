package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	err := Errorf(ErrCodeTypeMismatch, "expected %s", "int")
	assert.Equal(t, "TYPE_MISMATCH: expected int", err.Error())

	err.Realm = "r-1"
	assert.Equal(t, "TYPE_MISMATCH: expected int (realm=r-1)", err.Error())
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("wrap: %w", Errorf(ErrCodeBusy, "busy"))

	assert.Equal(t, ErrCodeBusy, CodeOf(wrapped))
	assert.True(t, IsCode(wrapped, ErrCodeBusy))
	assert.False(t, IsCode(wrapped, ErrCodeClosed))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
	assert.False(t, IsCode(nil, ""))
}
