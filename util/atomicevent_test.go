package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAtomicEvent_LatestWins(t *testing.T) {
	ae := NewAtomicEvent[int]()

	ae.Send(1)
	ae.Send(2)
	ae.Send(3)

	// Only one notification is pending no matter how many sends happened.
	assert.True(t, ae.HasPending())
	<-ae.Channel()
	assert.False(t, ae.HasPending())

	assert.Equal(t, 3, ae.Value())
}

func TestAtomicEvent_SendNeverBlocks(t *testing.T) {
	ae := NewAtomicEvent[string]()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			ae.Send("x")
		}
		close(done)
	}()

	<-done
	assert.Equal(t, "x", ae.Value())
}

func TestAtomicEvent_ZeroValueBeforeSend(t *testing.T) {
	ae := NewAtomicEvent[int]()
	assert.Equal(t, 0, ae.Value())
	assert.False(t, ae.HasPending())
}
