package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_HasCode(t *testing.T) {
	t.Run("direct error carries its code", func(t *testing.T) {
		err := New(CodeNotFound, "agreement not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("wrapped chain is walked", func(t *testing.T) {
		inner := New(CodeUnauthorized, "bad credentials")
		outer := Wrap(inner, CodeCancelled, "login aborted")
		assert.True(t, HasCode(outer, CodeCancelled))
		assert.True(t, HasCode(outer, CodeUnauthorized))
		assert.False(t, HasCode(outer, CodeNotFound))
	})

	t.Run("foreign errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("plain"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
	})

	t.Run("fmt wrapping preserves the code", func(t *testing.T) {
		err := fmt.Errorf("handler: %w", New(CodeValidation, "bad input"))
		assert.True(t, HasCode(err, CodeValidation))
	})
}

func Test_ErrorIs(t *testing.T) {
	err := New(CodeUnauthorized, "invalid token")
	require.ErrorIs(t, err, New(CodeUnauthorized, "invalid token"))
	require.NotErrorIs(t, err, New(CodeUnauthorized, "token has expired"))
}

func Test_FieldErrors(t *testing.T) {
	t.Run("empty accumulator yields nil", func(t *testing.T) {
		var fields FieldErrors
		assert.True(t, fields.Empty())
		assert.NoError(t, fields.Err())
	})

	t.Run("collects one message per field", func(t *testing.T) {
		var fields FieldErrors
		fields.Add("title", "title is required")
		fields.Add("purposes", "at least one purpose is required")

		err := fields.Err()
		require.Error(t, err)

		var de *Error
		require.ErrorAs(t, err, &de)
		assert.Equal(t, CodeValidation, de.Code)
		assert.Len(t, de.Fields, 2)
		assert.Equal(t, "title is required", de.Fields["title"])
	})

	t.Run("first message per field wins", func(t *testing.T) {
		var fields FieldErrors
		fields.Add("name", "name is required")
		fields.Add("name", "name must be a slug")

		var de *Error
		require.ErrorAs(t, fields.Err(), &de)
		assert.Equal(t, "name is required", de.Fields["name"])
	})

	t.Run("message lists fields deterministically", func(t *testing.T) {
		var fields FieldErrors
		fields.Add("b", "second")
		fields.Add("a", "first")
		assert.Equal(t, "validation: validation failed (a: first; b: second)", fields.Err().Error())
	})
}

func Test_ToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:        http.StatusBadRequest,
		CodeBadRequest:        http.StatusBadRequest,
		CodeInvalidInput:      http.StatusBadRequest,
		CodeCancelled:         http.StatusBadRequest,
		CodeUnauthorized:      http.StatusUnauthorized,
		CodeNotFound:          http.StatusNotFound,
		CodeConflict:          http.StatusConflict,
		CodeInvalidTransition: http.StatusConflict,
		CodeUnknownPurpose:    http.StatusUnprocessableEntity,
		CodeTimeout:           http.StatusGatewayTimeout,
		CodeInternal:          http.StatusInternalServerError,
		Code("mystery"):       http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), "code %q", code)
	}
}
