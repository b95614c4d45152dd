package errors

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

const errSample = Error("sample failure")

func TestValidationMark(t *testing.T) {
	err := Validationf("field %s is too long", "name")
	require.True(t, IsValidation(err))
	require.True(t, IsValidation(Wrap(err, "insert")))

	require.False(t, IsValidation(Wrap(io.ErrUnexpectedEOF, "read block")))
	require.False(t, IsValidation(nil))

	marked := Validation(errSample)
	require.True(t, Is(marked, errSample))
	require.True(t, IsValidation(marked))
	require.Equal(t, "sample failure", errSample.Error())
}
