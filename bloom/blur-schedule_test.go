package bloom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlurSchedule(t *testing.T) {
	tests := []struct {
		passes int
		final  Source
	}{
		{0, SourceBrightPass},
		{1, SourcePingPong1},
		{2, SourcePingPong0},
		{3, SourcePingPong1},
		{10, SourcePingPong0},
		{11, SourcePingPong1},
	}
	for _, tt := range tests {
		steps, final := blurSchedule(tt.passes)
		assert.Equal(t, tt.final, final, "passes=%d", tt.passes)
		require.Len(t, steps, tt.passes)
		if tt.passes == 0 {
			continue
		}

		assert.Equal(t, BlurStep{Read: SourceBrightPass, Write: 1, Horizontal: true}, steps[0])
		for i := 1; i < len(steps); i++ {
			prev, cur := steps[i-1], steps[i]
			assert.Equal(t, pingPong(prev.Write), cur.Read, "passes=%d step=%d", tt.passes, i)
			assert.NotEqual(t, prev.Write, cur.Write, "passes=%d step=%d", tt.passes, i)
			assert.Equal(t, !prev.Horizontal, cur.Horizontal, "passes=%d step=%d", tt.passes, i)
		}
		for i, s := range steps {
			assert.NotEqual(t, pingPong(s.Write), s.Read, "step %d reads its own target", i)
		}
	}
}

func TestBlurScheduleNegativePasses(t *testing.T) {
	steps, final := blurSchedule(-3)
	assert.Empty(t, steps)
	assert.Equal(t, SourceBrightPass, final)
}

func TestSourceString(t *testing.T) {
	assert.Equal(t, "bright-pass", SourceBrightPass.String())
	assert.Equal(t, "ping-pong 1", pingPong(1).String())
	assert.Equal(t, "Source(7)", Source(7).String())
}
