package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMultiError(t *testing.T) {
	sentinel := errors.New("handshake refused")

	var m MultiError
	assert.True(t, m.IsEmpty())

	m.Add(nil)
	m.Add(sentinel)
	m.Add(errors.New("bad url"))

	assert.False(t, m.IsEmpty())
	assert.Equal(t, "handshake refused; bad url", m.Error())
	assert.ErrorIs(t, &m, sentinel)
}
