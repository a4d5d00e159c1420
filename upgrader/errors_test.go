package upgrader

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "a-b-c", Format("{}-{}-{}", "a", "b", "c"))
	assert.Equal(t, "x {}", Format("{} {}", "x"))
	assert.Equal(t, "only", Format("only", 1, 2))
	assert.Equal(t, "v 3", Format("v {}", 3))
}

func TestError_Messages(t *testing.T) {
	e := NotImplementedError("lib", "unversioned-sink", "sink1")
	assert.Equal(t, "Upgrader not implemented for stage 'lib:unversioned-sink' instance 'sink1'", e.Message())
	assert.Equal(t, "UPGRADER_00 - Upgrader not implemented for stage 'lib:unversioned-sink' instance 'sink1'", e.Error())

	c := CannotUpgradeError("lib", "jdbc-source", "source1", 1, 4, nil)
	assert.Equal(t, "Cannot upgrade stage 'lib:jdbc-source' instance 'source1' from version '1' to version '4'", c.Message())
	assert.Equal(t, "UPGRADER_01", c.Code.Code())
}

func TestError_CauseIsWrapped(t *testing.T) {
	cause := errors.New("boom")
	e := CannotUpgradeError("lib", "s", "i", 1, 2, cause)
	assert.ErrorIs(t, e, cause)
	assert.Contains(t, e.Error(), ": boom")
}

func TestError_IsMatchesCode(t *testing.T) {
	wrapped := fmt.Errorf("load pipeline: %w", NotImplementedError("lib", "s", "i"))

	assert.True(t, IsNotImplemented(wrapped))
	assert.False(t, IsCannotUpgrade(wrapped))
	assert.ErrorIs(t, wrapped, CodeNotImplemented)
	assert.ErrorIs(t, wrapped, &Error{Code: CodeNotImplemented})

	e, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, []any{"lib", "s", "i"}, e.Params)

	_, ok = AsError(errors.New("plain"))
	assert.False(t, ok)
	assert.False(t, IsNotImplemented(nil))
}

func TestErrorCode_Message(t *testing.T) {
	assert.Equal(t, "Cannot upgrade stage '{}:{}' instance '{}' from version '{}' to version '{}'", CodeCannotUpgrade.Message())
	assert.Equal(t, "", ErrorCode("UNKNOWN").Message())
}
