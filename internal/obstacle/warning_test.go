package obstacle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWarningState_CapsRepeats(t *testing.T) {
	var w WarningState
	start := time.Unix(1000, 0)
	interval := time.Second

	warned := 0
	for i := 0; i < 10; i++ {
		before := w.RepeatCount
		if w.Step(true, start.Add(time.Duration(i)*interval), 2, interval) {
			warned++
		}
		assert.GreaterOrEqual(t, w.RepeatCount, before)
		assert.LessOrEqual(t, w.RepeatCount, 2)
	}
	assert.Equal(t, 2, warned)
}

func TestWarningState_SpacesRepeats(t *testing.T) {
	var w WarningState
	now := time.Unix(1000, 0)

	assert.True(t, w.Step(true, now, 2, 4*time.Second))
	assert.False(t, w.Step(true, now.Add(time.Second), 2, 4*time.Second))
	assert.True(t, w.Step(true, now.Add(4*time.Second), 2, 4*time.Second))
}

func TestWarningState_ResetsOnNewActivation(t *testing.T) {
	var w WarningState
	now := time.Unix(1000, 0)

	assert.True(t, w.Step(true, now, 1, 0))
	assert.False(t, w.Step(true, now, 1, 0))

	assert.False(t, w.Step(false, now, 1, 0))
	assert.False(t, w.Active)
	assert.Equal(t, 1, w.RepeatCount)

	assert.True(t, w.Step(true, now, 1, 0))
	assert.Equal(t, 1, w.RepeatCount)
}

func TestWarningState_ZeroCapNeverWarns(t *testing.T) {
	var w WarningState
	assert.False(t, w.Step(true, time.Now(), 0, 0))
	assert.True(t, w.Active)
}
