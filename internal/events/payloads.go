package events

// Event types, published under the "round" subject prefix.
const (
	TypeRoundClosed  = "closed"
	TypeModeChanged  = "mode_changed"
	TypeEntryRelayed = "entry_relayed"
	TypeRefunds      = "refunds"
	TypeStatus       = "status"
)

// RoundClosedPayload is emitted after a close transaction confirms.
type RoundClosedPayload struct {
	Round        uint64 `json:"round"`
	Participants int    `json:"participants"`
	TxHash       string `json:"txHash"`
}

// ModeChangedPayload is emitted after a prize mode flip confirms.
type ModeChangedPayload struct {
	From   string `json:"from"`
	To     string `json:"to"`
	TxHash string `json:"txHash"`
}

// EntryRelayedPayload is emitted after a relayed entry confirms. RefundTxHash
// is empty when refund-after-relay is disabled or the refund failed.
type EntryRelayedPayload struct {
	User         string `json:"user"`
	Round        uint64 `json:"round"`
	TxHash       string `json:"txHash"`
	RefundTxHash string `json:"refundTxHash,omitempty"`
}

// RefundsPayload is emitted after a batch refund confirms.
type RefundsPayload struct {
	Round  uint64 `json:"round"`
	Count  int    `json:"count"`
	TxHash string `json:"txHash"`
}

// StatusPayload is the periodic status frame pushed to live consumers.
type StatusPayload struct {
	RoundActive  bool   `json:"roundActive"`
	CurrentRound uint64 `json:"currentRound"`
	RoundStart   uint64 `json:"roundStart"`
	Duration     uint64 `json:"duration"`
	EntryAmount  string `json:"entryAmount"`
	RoundMode    string `json:"roundMode"`
	Participants int    `json:"participantCount"`
	RemainingSec int64  `json:"remainingSec"`
}
