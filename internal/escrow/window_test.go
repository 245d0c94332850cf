package escrow

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseWindow_Boundaries(t *testing.T) {
	const alarm, deadline = 1000, 2000
	tests := []struct {
		now  int64
		want Window
	}{
		{math.MinInt64, WindowRefund},
		{alarm - 1, WindowRefund},
		{alarm, WindowActive},
		{deadline - 1, WindowActive},
		{deadline, WindowSlash},
		{math.MaxInt64, WindowSlash},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BaseWindow(tt.now, alarm, deadline), "now=%d", tt.now)
	}
}

func TestBaseWindow_PartitionSweep(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10_000; i++ {
		alarm := rng.Int63n(1 << 40)
		deadline := alarm + 1 + rng.Int63n(1<<20)
		now := alarm - (1 << 20) + rng.Int63n(1<<22)

		refund := now < alarm
		active := alarm <= now && now < deadline
		slash := now >= deadline
		n := 0
		for _, b := range []bool{refund, active, slash} {
			if b {
				n++
			}
		}
		require.Equal(t, 1, n, "alarm=%d deadline=%d now=%d", alarm, deadline, now)

		w := BaseWindow(now, alarm, deadline)
		switch {
		case refund:
			require.Equal(t, WindowRefund, w)
		case active:
			require.Equal(t, WindowActive, w)
		default:
			require.Equal(t, WindowSlash, w)
		}
	}
}

func TestWindowsAt_Refinements(t *testing.T) {
	p := DefaultParams()
	buddy := Address{9}
	a := &Alarm{AlarmTime: 1000, Deadline: 2000, Status: StatusAcknowledged, PenaltyRoute: RouteBuddy, PenaltyDestination: &buddy}

	tests := []struct {
		name  string
		now   int64
		grace bool
		buddy bool
	}{
		{"active has no refinements", 1999, false, false},
		{"deadline opens both", 2000, true, true},
		{"grace end is inclusive, buddy end is not", 2000 + p.ClaimGrace, true, false},
		{"after grace", 2001 + p.ClaimGrace, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := WindowsAt(p, a, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.grace, w.ClaimGrace)
			assert.Equal(t, tt.buddy, w.BuddyOnlySlash)
			if tt.grace || tt.buddy {
				assert.Equal(t, WindowSlash, w.Base)
			}
		})
	}
}

func TestWindowsAt_GraceOnlyWhenAcknowledged(t *testing.T) {
	a := &Alarm{AlarmTime: 1, Deadline: 2, Status: StatusCreated, PenaltyRoute: RouteBurn}
	w, err := WindowsAt(DefaultParams(), a, 2)
	require.NoError(t, err)
	assert.False(t, w.ClaimGrace)
	assert.False(t, w.BuddyOnlySlash)
}

func TestWindowsAt_Overflow(t *testing.T) {
	a := &Alarm{AlarmTime: 1, Deadline: math.MaxInt64, Status: StatusAcknowledged}
	_, err := WindowsAt(DefaultParams(), a, math.MaxInt64)
	require.ErrorIs(t, err, ErrOverflow)
}
