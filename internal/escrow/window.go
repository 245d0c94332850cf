package escrow

// Window is one of the three base windows partitioning the time axis of an
// alarm.
type Window uint8

const (
	WindowRefund Window = iota
	WindowActive
	WindowSlash
)

func (w Window) String() string {
	switch w {
	case WindowRefund:
		return "refund"
	case WindowActive:
		return "active"
	case WindowSlash:
		return "slash"
	}
	return "unknown"
}

// BaseWindow returns the window containing now. Boundaries are closed-open:
// now == alarmTime is Active, now == deadline is Slash.
func BaseWindow(now, alarmTime, deadline int64) Window {
	switch {
	case now < alarmTime:
		return WindowRefund
	case now < deadline:
		return WindowActive
	default:
		return WindowSlash
	}
}

// Windows is the full window view of an alarm at one instant.
type Windows struct {
	Base Window
	// ClaimGrace is set for an acknowledged alarm in
	// [deadline, deadline+ClaimGrace].
	ClaimGrace bool
	// BuddyOnlySlash is set for a Buddy route alarm in
	// [deadline, deadline+BuddyOnly).
	BuddyOnlySlash bool
}

// WindowsAt evaluates every window of a at now.
func WindowsAt(p Params, a *Alarm, now int64) (Windows, error) {
	w := Windows{Base: BaseWindow(now, a.AlarmTime, a.Deadline)}
	if w.Base != WindowSlash {
		return w, nil
	}

	if a.Status == StatusAcknowledged {
		end, err := ClaimGraceEnd(p, a.Deadline)
		if err != nil {
			return w, err
		}
		w.ClaimGrace = now <= end
	}
	if a.PenaltyRoute == RouteBuddy {
		end, err := BuddyOnlyEnd(p, a.Deadline)
		if err != nil {
			return w, err
		}
		w.BuddyOnlySlash = now < end
	}
	return w, nil
}

// ClaimGraceEnd is the last instant an acknowledged alarm may still be claimed.
func ClaimGraceEnd(p Params, deadline int64) (int64, error) {
	return addInt64(deadline, p.ClaimGrace)
}

// BuddyOnlyEnd is the first instant anyone may slash a Buddy route alarm.
func BuddyOnlyEnd(p Params, deadline int64) (int64, error) {
	return addInt64(deadline, p.BuddyOnly)
}

func addInt64(a, b int64) (int64, error) {
	s := a + b
	if (b > 0 && s < a) || (b < 0 && s > a) {
		return 0, ErrOverflow
	}
	return s, nil
}
