package escrow

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of an Alarm.
type Status uint8

const (
	StatusCreated Status = iota
	StatusAcknowledged
	StatusClaimed
	StatusSlashed
)

var statusNames = [...]string{"created", "acknowledged", "claimed", "slashed"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Terminal reports whether no further operation may mutate the alarm.
func (s Status) Terminal() bool {
	return s == StatusClaimed || s == StatusSlashed
}

// Open reports whether the alarm still holds a vault.
func (s Status) Open() bool {
	return s == StatusCreated || s == StatusAcknowledged
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for i, n := range statusNames {
		if strings.EqualFold(n, string(text)) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown alarm status %q", text)
}

// Route is where a failed alarm's deposit goes.
type Route uint8

const (
	RouteBurn Route = iota
	RouteDonate
	RouteBuddy
)

var routeNames = [...]string{"burn", "donate", "buddy"}

// ParseRoute validates a raw route byte.
func ParseRoute(v uint8) (Route, error) {
	if int(v) >= len(routeNames) {
		return 0, ErrInvalidPenaltyRoute
	}
	return Route(v), nil
}

func (r Route) String() string {
	if int(r) < len(routeNames) {
		return routeNames[r]
	}
	return fmt.Sprintf("route(%d)", uint8(r))
}

// RequiresDestination reports whether the route pays a configured address.
func (r Route) RequiresDestination() bool {
	return r == RouteDonate || r == RouteBuddy
}

func (r Route) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Route) UnmarshalText(text []byte) error {
	for i, n := range routeNames {
		if strings.EqualFold(n, string(text)) {
			*r = Route(i)
			return nil
		}
	}
	return fmt.Errorf("unknown penalty route %q", text)
}

// UserProfile is the per-owner aggregate created by Initialize.
type UserProfile struct {
	Address   Address   `json:"address"`
	Owner     Address   `json:"owner"`
	TagHash   *[32]byte `json:"tag_hash,omitempty"`
	CreatedAt int64     `json:"created_at"`
}

// Alarm is the escrow record of one commitment.
type Alarm struct {
	Address            Address  `json:"address"`
	Owner              Address  `json:"owner"`
	AlarmID            uint64   `json:"alarm_id"`
	AlarmTime          int64    `json:"alarm_time"`
	Deadline           int64    `json:"deadline"`
	InitialAmount      uint64   `json:"initial_amount"`
	RemainingAmount    uint64   `json:"remaining_amount"`
	PenaltyRoute       Route    `json:"penalty_route"`
	PenaltyDestination *Address `json:"penalty_destination,omitempty"`
	SnoozeCount        uint8    `json:"snooze_count"`
	Status             Status   `json:"status"`
}

// Clone returns a deep copy of a.
func (a *Alarm) Clone() *Alarm {
	c := *a
	if a.PenaltyDestination != nil {
		d := *a.PenaltyDestination
		c.PenaltyDestination = &d
	}
	return &c
}

// Vault holds the lamports backing one Alarm: the remaining deposit plus the
// minimum floor.
type Vault struct {
	Address  Address `json:"address"`
	Alarm    Address `json:"alarm"`
	Owner    Address `json:"owner"`
	Lamports uint64  `json:"lamports"`
}

// PermitNonce records that an attestation nonce was consumed for an alarm.
type PermitNonce struct {
	Address   Address `json:"address"`
	Alarm     Address `json:"alarm"`
	Nonce     uint64  `json:"nonce"`
	Owner     Address `json:"owner"`
	ExpiresAt int64   `json:"expires_at"`
}
