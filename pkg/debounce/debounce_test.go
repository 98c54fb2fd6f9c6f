package debounce

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []time.Time
}

func (r *recorder) record() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, time.Now())
}

func (r *recorder) snapshot() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Time(nil), r.calls...)
}

func TestDebouncer_CoalescesBurst(t *testing.T) {
	const cooldown = 50 * time.Millisecond
	rec := &recorder{}
	d := New(cooldown, false, rec.record)

	var last time.Time
	for range 5 {
		last = time.Now()
		d.Call()
		time.Sleep(10 * time.Millisecond)
	}
	assert.True(t, d.Pending())

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(2 * cooldown)

	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.GreaterOrEqual(t, calls[0].Sub(last), cooldown)
	assert.False(t, d.Pending())
}

func TestDebouncer_NotImmediate(t *testing.T) {
	rec := &recorder{}
	d := New(50*time.Millisecond, false, rec.record)

	d.Call()
	assert.Empty(t, rec.snapshot())

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestDebouncer_SeparateBursts(t *testing.T) {
	const cooldown = 30 * time.Millisecond
	rec := &recorder{}
	d := New(cooldown, false, rec.record)

	d.Call()
	d.Call()
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	d.Call()
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestDebouncer_Immediate(t *testing.T) {
	const cooldown = 50 * time.Millisecond
	rec := &recorder{}
	d := New(cooldown, true, rec.record)

	d.Call()
	assert.Len(t, rec.snapshot(), 1, "leading call runs at once")
	assert.False(t, d.Pending())

	d.Call()
	d.Call()
	assert.True(t, d.Pending())

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(2 * cooldown)
	assert.Len(t, rec.snapshot(), 2)
}

func TestDebouncer_ImmediateSingleCall(t *testing.T) {
	const cooldown = 30 * time.Millisecond
	rec := &recorder{}
	d := New(cooldown, true, rec.record)

	d.Call()
	time.Sleep(3 * cooldown)
	assert.Len(t, rec.snapshot(), 1, "no trailing run without further calls")
}

func TestDebouncer_Cancel(t *testing.T) {
	const cooldown = 30 * time.Millisecond
	rec := &recorder{}
	d := New(cooldown, false, rec.record)

	d.Call()
	d.Cancel()
	assert.False(t, d.Pending())

	time.Sleep(3 * cooldown)
	assert.Empty(t, rec.snapshot())
	assert.Equal(t, cooldown, d.Cooldown())
}
