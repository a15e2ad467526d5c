package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	require.True(t, m.Enabled())

	signed, err := m.Issue("b2f7c9d0-1234-4abc-9def-000000000001")
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	id, err := m.Verify(signed)
	require.NoError(t, err)
	require.Equal(t, "b2f7c9d0-1234-4abc-9def-000000000001", id)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signed, err := NewManager("secret-a", time.Hour).Issue("session-id")
	require.NoError(t, err)

	_, err = NewManager("secret-b", time.Hour).Verify(signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	signed, err := NewManager("secret", -time.Hour).Issue("session-id")
	require.NoError(t, err)

	_, err = NewManager("secret", -time.Hour).Verify(signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	m := NewManager("secret", time.Hour)
	_, err := m.Verify("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestDisabledManager(t *testing.T) {
	m := NewManager("", time.Hour)
	require.False(t, m.Enabled())

	signed, err := m.Issue("session-id")
	require.NoError(t, err)
	require.Empty(t, signed)

	_, err = m.Verify("anything")
	require.ErrorIs(t, err, ErrInvalidToken)
}
