package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "consentdesk/pkg/domain-errors"
)

func Test_ParseUserID(t *testing.T) {
	t.Run("valid uuid parses", func(t *testing.T) {
		raw := uuid.NewString()
		id, err := ParseUserID(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, id.String())
		assert.False(t, id.IsZero())
	})

	t.Run("empty string is rejected", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("malformed uuid is rejected", func(t *testing.T) {
		_, err := ParseUserID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("nil uuid is rejected", func(t *testing.T) {
		_, err := ParseUserID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func Test_ParseAgreementID(t *testing.T) {
	t.Run("valid uuid parses", func(t *testing.T) {
		raw := uuid.NewString()
		id, err := ParseAgreementID(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, id.String())
	})

	t.Run("nil uuid is rejected", func(t *testing.T) {
		_, err := ParseAgreementID(uuid.Nil.String())
		require.Error(t, err)
	})
}

func Test_IDJSONRoundTrip(t *testing.T) {
	id := NewAgreementID()

	encoded, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"`+id.String()+`"`, string(encoded))

	var decoded AgreementID
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, id, decoded)

	var rejected UserID
	require.Error(t, json.Unmarshal([]byte(`"not-a-uuid"`), &rejected))
}

func Test_NewIDs_AreDistinctTypes(t *testing.T) {
	// Compile-time guarantee exercised once: fresh ids are non-zero and
	// unique.
	a, b := NewAgreementID(), NewAgreementID()
	assert.NotEqual(t, a, b)
	assert.False(t, NewUserID().IsZero())
}
