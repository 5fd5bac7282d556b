package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageStatusCanTransitionTo(t *testing.T) {
	testCases := []struct {
		from    MessageStatus
		to      MessageStatus
		allowed bool
	}{
		{MessageStatusQueued, MessageStatusSent, true},
		{MessageStatusQueued, MessageStatusDelivered, true},
		{MessageStatusQueued, MessageStatusFailed, true},
		{MessageStatusSent, MessageStatusDelivered, true},
		{MessageStatusSent, MessageStatusFailed, true},
		{MessageStatusSent, MessageStatusSent, false},
		{MessageStatusDelivered, MessageStatusSent, false},
		{MessageStatusDelivered, MessageStatusFailed, false},
		{MessageStatusFailed, MessageStatusSent, false},
		{MessageStatusReceived, MessageStatusDelivered, false},
		{MessageStatusReceived, MessageStatusSent, false},
	}

	for _, tc := range testCases {
		assert.Equalf(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestMessageStatusScan(t *testing.T) {
	var ms MessageStatus
	assert.NoError(t, ms.Scan("delivered"))
	assert.Equal(t, MessageStatusDelivered, ms)

	assert.NoError(t, ms.Scan([]byte("received")))
	assert.Equal(t, MessageStatusReceived, ms)

	assert.Error(t, ms.Scan("bogus"))
	assert.Error(t, ms.Scan(42))
}
