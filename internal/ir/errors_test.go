package ir

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsKind_Wrapped(t *testing.T) {
	base := ConfigurationError("coldstart for temperature did not infer anything", nil)
	wrapped := fmt.Errorf("window 1: %w", base)

	assert.True(t, IsKind(wrapped, KindConfiguration))
	assert.False(t, IsKind(wrapped, KindInternal))
	assert.False(t, IsKind(errors.New("plain"), KindConfiguration))
	assert.False(t, IsKind(nil, KindConfiguration))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindQuery, KindOf(fmt.Errorf("x: %w", QueryError("bad rule", nil))))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestError_MessageAndUnwrap(t *testing.T) {
	cause := errors.New("no such file")
	err := FileIOError("read /data/probe.csv", cause)

	assert.Equal(t, "FILE_IO: read /data/probe.csv: no such file", err.Error())
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, "RESPONSE: put object (status 403)", ResponseError(403, "put object").Error())
}
