package round

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PrizeMode mirrors the contract's mode enum.
type PrizeMode uint8

const (
	ModeStandard PrizeMode = 0
	ModeJackpot  PrizeMode = 1
)

func (m PrizeMode) String() string {
	switch m {
	case ModeStandard:
		return "Standard"
	case ModeJackpot:
		return "Jackpot"
	default:
		return "Unknown"
	}
}

// Snapshot is a point-in-time read of the round state. It is never cached
// across coordinator invocations: the contract may mutate between any two
// reads, so every decision starts from a fresh fetch.
type Snapshot struct {
	Active       bool             `json:"roundActive"`
	CurrentRound uint64           `json:"currentRound"`
	RoundStart   uint64           `json:"roundStart"`
	Duration     uint64           `json:"duration"`
	EntryAmount  *big.Int         `json:"entryAmount"`
	Mode         PrizeMode        `json:"roundMode"`
	MaxPlayers   uint64           `json:"maxPlayers"`
	Participants []common.Address `json:"participants"`
}

// End returns the unix second at which the round expires.
func (s *Snapshot) End() uint64 {
	return s.RoundStart + s.Duration
}

// Remaining returns seconds until expiry at the given instant; negative once
// the round has expired.
func (s *Snapshot) Remaining(now time.Time) int64 {
	return int64(s.End()) - now.Unix()
}

// Action tells the caller what the coordinator actually did.
type Action string

const (
	ActionNone         Action = "none"
	ActionClosed       Action = "closed"
	ActionModeChanged  Action = "mode_changed"
	ActionEntryRelayed Action = "entry_relayed"
	ActionRefunded     Action = "refunded"
	ActionRejected     Action = "rejected"
)

// Decision reasons surfaced in results.
const (
	ReasonInactive    = "inactive"
	ReasonNotExpired  = "not-expired"
	ReasonRoundActive = "round-active"
	ReasonAlreadySet  = "already-set"
	ReasonInFlight    = "in-flight"
	ReasonReadFailed  = "read-failed"
	ReasonRefundFail  = "refund-failed"
)

// Result is the structured outcome of a single coordinator operation. It is
// returned, logged and serialized; never persisted.
type Result struct {
	Action       Action `json:"action"`
	Reason       string `json:"reason,omitempty"`
	Round        uint64 `json:"round,omitempty"`
	RemainingSec int64  `json:"remaining_sec,omitempty"`
	Participants int    `json:"participants,omitempty"`
	FromMode     string `json:"from_mode,omitempty"`
	ToMode       string `json:"to_mode,omitempty"`
	User         string `json:"user,omitempty"`
	TxHash       string `json:"tx_hash,omitempty"`
	RefundTxHash string `json:"refund_tx_hash,omitempty"`
	ErrorMsg     string `json:"error,omitempty"`

	Err error `json:"-"`
}

func (r *Result) fail(err error) *Result {
	r.Err = err
	if err != nil {
		r.ErrorMsg = err.Error()
	}
	return r
}

// DebugState is the per-user diagnostic view served by /debug-state: the raw
// entry-candidate numbers plus human-readable amounts.
type DebugState struct {
	Token          string `json:"token"`
	Decimals       uint8  `json:"decimals"`
	EntryRaw       string `json:"entryRaw"`
	EntryHuman     string `json:"entryHuman"`
	BalanceRaw     string `json:"balanceRaw"`
	BalanceHuman   string `json:"balanceHuman"`
	AllowanceRaw   string `json:"allowanceRaw"`
	AllowanceHuman string `json:"allowanceHuman"`
}

// Health is the cheap liveness probe: can we reach the chain and read one flag.
type Health struct {
	OK          bool   `json:"ok"`
	Contract    string `json:"contract"`
	ChainID     string `json:"chainId"`
	RoundActive bool   `json:"isRoundActive"`
	Error       string `json:"error,omitempty"`
}
