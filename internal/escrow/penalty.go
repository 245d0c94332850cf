package escrow

import "math/bits"

// percentOf returns floor(v*pct/100) without intermediate overflow.
func percentOf(v, pct uint64) (uint64, error) {
	hi, lo := bits.Mul64(v, pct)
	if hi >= 100 {
		return 0, ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, 100)
	return q, nil
}

// SnoozeCost is the price of the next snooze:
// min(remaining, floor(remaining*SnoozePercent/100) * 2^count).
func SnoozeCost(p Params, remaining uint64, count uint8) (uint64, error) {
	base, err := percentOf(remaining, p.SnoozePercent)
	if err != nil {
		return 0, err
	}
	if count >= 64 {
		return 0, ErrOverflow
	}
	hi, cost := bits.Mul64(base, uint64(1)<<count)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return min(cost, remaining), nil
}

// EmergencyPenalty is floor(remaining*EmergencyPenaltyPercent/100).
func EmergencyPenalty(p Params, remaining uint64) (uint64, error) {
	return percentOf(remaining, p.EmergencyPenaltyPercent)
}

// CapAtFloor limits desired to what can leave a vault holding lamports
// without dropping it below floor.
func CapAtFloor(desired, lamports, floor uint64) uint64 {
	var available uint64
	if lamports > floor {
		available = lamports - floor
	}
	return min(desired, available)
}

// SnoozeExtend moves both bounds of the alarm window by ext seconds.
func SnoozeExtend(alarmTime, deadline, ext int64) (int64, int64, error) {
	a, err := addInt64(alarmTime, ext)
	if err != nil {
		return 0, 0, err
	}
	d, err := addInt64(deadline, ext)
	if err != nil {
		return 0, 0, err
	}
	return a, d, nil
}

// IsMaxSnooze reports whether count has reached the snooze limit.
func IsMaxSnooze(p Params, count uint8) bool {
	return count >= p.MaxSnoozeCount
}
