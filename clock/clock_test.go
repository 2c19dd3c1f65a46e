package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

func TestFake_AdvanceFiresInOrder(t *testing.T) {
	c := NewFake(epoch)

	var fired []string
	c.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	c.AfterFunc(time.Second, func() { fired = append(fired, "a") })
	c.AfterFunc(2*time.Second, func() { fired = append(fired, "c") })

	c.Advance(1500 * time.Millisecond)
	assert.Equal(t, []string{"a"}, fired)

	c.Advance(500 * time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, epoch.Add(2*time.Second), c.Now())
	assert.Zero(t, c.Pending())
}

func TestFake_ChainedCallbacks(t *testing.T) {
	c := NewFake(epoch)

	var at []time.Duration
	c.AfterFunc(time.Second, func() {
		at = append(at, c.Now().Sub(epoch))
		c.AfterFunc(time.Second, func() {
			at = append(at, c.Now().Sub(epoch))
		})
	})

	c.Advance(5 * time.Second)
	require.Len(t, at, 2)
	assert.Equal(t, time.Second, at[0])
	assert.Equal(t, 2*time.Second, at[1])
	assert.Equal(t, epoch.Add(5*time.Second), c.Now())
}

func TestFake_Stop(t *testing.T) {
	c := NewFake(epoch)

	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	c.Advance(time.Minute)
	assert.False(t, fired)
}

func TestReal_AfterFunc(t *testing.T) {
	done := make(chan struct{})
	Real{}.AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("real timer did not fire")
	}
}
