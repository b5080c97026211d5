package aitemplate_test

import (
	"errors"
	"testing"

	// Packages
	aitemplate "github.com/mutablelogic/go-aitemplate"
	assert "github.com/stretchr/testify/assert"
)

func Test_error_001(t *testing.T) {
	assert := assert.New(t)
	err := aitemplate.ErrBadParameter.With("conversationId")
	assert.True(errors.Is(err, aitemplate.ErrBadParameter))
	assert.False(errors.Is(err, aitemplate.ErrTransport))
	assert.Equal("bad parameter: conversationId", err.Error())
}

func Test_error_002(t *testing.T) {
	assert := assert.New(t)
	err := aitemplate.ErrTransport.Withf("HTTP %d", 502)
	assert.True(errors.Is(err, aitemplate.ErrTransport))
	assert.Equal("stream transport failure: HTTP 502", err.Error())
}

func Test_error_003(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("error code 99", aitemplate.Err(99).Error())
	assert.Equal("stream idle timeout", aitemplate.ErrTimeout.Error())
}
