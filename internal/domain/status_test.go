package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition_Table(t *testing.T) {
	allowed := map[[2]OrderStatus]bool{
		{StatusPending, StatusAccepted}:                true,
		{StatusPending, StatusCancelled}:               true,
		{StatusAccepted, StatusPrepared}:               true,
		{StatusAccepted, StatusCancelled}:              true,
		{StatusPrepared, StatusHandedToDelivery}:       true,
		{StatusHandedToDelivery, StatusOutForDelivery}: true,
		{StatusOutForDelivery, StatusDelivered}:        true,
	}
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			want := allowed[[2]OrderStatus{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCanTransition_TerminalAndUnknown(t *testing.T) {
	for _, to := range AllStatuses {
		assert.False(t, CanTransition(StatusDelivered, to))
		assert.False(t, CanTransition(StatusCancelled, to))
	}
	assert.False(t, CanTransition("bogus", StatusAccepted))
	assert.False(t, CanTransition(StatusPending, "bogus"))
	assert.True(t, StatusDelivered.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusOutForDelivery.IsTerminal())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("handed_to_delivery")
	require.NoError(t, err)
	assert.Equal(t, StatusHandedToDelivery, s)

	_, err = ParseStatus("cooking")
	assert.Error(t, err)
}

func TestAllowedNext_ReturnsCopy(t *testing.T) {
	next := AllowedNext(StatusPending)
	require.Len(t, next, 2)
	next[0] = StatusDelivered
	assert.True(t, CanTransition(StatusPending, StatusAccepted))
}

func TestInvalidTransitionMessage(t *testing.T) {
	err := InvalidTransition(StatusPending, StatusDelivered)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "allowed: [accepted cancelled]")

	err = InvalidTransition(StatusDelivered, StatusCancelled)
	assert.Equal(t, "invalid transition: order is already delivered", err.Error())
}
