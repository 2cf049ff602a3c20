package coordauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RejectsUnauthorizedSession(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Issue("intruder", "set_mode", "facility-1")
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestRegistry_IssueAndAck(t *testing.T) {
	r := NewRegistry([]string{"coord-1"})
	cmd, err := r.Issue("coord-1", "set_mode", "facility-1")
	require.NoError(t, err)
	assert.Equal(t, 1, r.PendingCount())

	assert.True(t, r.Ack(cmd.ID))
	assert.Equal(t, 0, r.PendingCount())
	assert.False(t, r.Ack(cmd.ID), "double-ack should fail")
}

func TestRegistry_RevokeStopsFutureIssues(t *testing.T) {
	r := NewRegistry([]string{"coord-1"})
	r.Revoke("coord-1")
	_, err := r.Issue("coord-1", "set_mode", "facility-1")
	assert.ErrorIs(t, err, ErrNotAuthorized)
}
