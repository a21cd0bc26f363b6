package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerLifecycle(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var changes []string
	cb := NewCircuitBreaker("m", 2, 10*time.Second).WithClock(func() time.Time { return now })
	cb.SetStateChangeHandler(func(name string, from, to State) {
		changes = append(changes, from.String()+">"+to.String())
	})

	assert.True(t, cb.Allow())
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())

	now = now.Add(11 * time.Second)
	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(11 * time.Second)
	assert.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{"CLOSED>OPEN", "OPEN>HALF-OPEN", "HALF-OPEN>OPEN", "OPEN>HALF-OPEN", "HALF-OPEN>CLOSED"}, changes)
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("m", 2, time.Second)
	cb.SetStateChangeHandler(func(string, State, State) {})
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
}
