package escrow

// Params are the protocol constants. They are fixed for the life of a
// deployment; changing them against existing alarms changes their windows.
type Params struct {
	MinDeposit              uint64 `json:"min_deposit" yaml:"min_deposit"`
	VaultFloor              uint64 `json:"vault_floor" yaml:"vault_floor"`
	SnoozePercent           uint64 `json:"snooze_percent" yaml:"snooze_percent"`
	MaxSnoozeCount          uint8  `json:"max_snooze_count" yaml:"max_snooze_count"`
	SnoozeExtension         int64  `json:"snooze_extension" yaml:"snooze_extension"`
	EmergencyPenaltyPercent uint64 `json:"emergency_penalty_percent" yaml:"emergency_penalty_percent"`
	ClaimGrace              int64  `json:"claim_grace" yaml:"claim_grace"`
	BuddyOnly               int64  `json:"buddy_only" yaml:"buddy_only"`
}

// DefaultParams returns the deployed program's constants.
func DefaultParams() Params {
	return Params{
		MinDeposit:              1_000_000,
		VaultFloor:              890_880,
		SnoozePercent:           10,
		MaxSnoozeCount:          10,
		SnoozeExtension:         300,
		EmergencyPenaltyPercent: 5,
		ClaimGrace:              120,
		BuddyOnly:               120,
	}
}

// Deployment identifies one running instance of the program. Attestations
// bind to it so a permit for one deployment is useless on another.
type Deployment struct {
	Cluster           string
	ProgramID         Address
	AttestationDomain string
	AttestationKey    Address
}

const (
	DefaultCluster           = "devnet"
	DefaultAttestationDomain = "wakevault"
)
