package round

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/freakyfriday/relayer/internal/events"
)

// StateReader defines what the coordinator needs for round reads.
type StateReader interface {
	FetchSnapshot(ctx context.Context) (*Snapshot, error)
}

// Submitter defines the mutating contract calls. Each call blocks until the
// transaction is confirmed or fails; the returned string is the tx hash.
type Submitter interface {
	CloseExpiredRound(ctx context.Context) (string, error)
	SetRoundMode(ctx context.Context, mode PrizeMode) (string, error)
	RelayEnter(ctx context.Context, user common.Address) (string, error)
	RefundEntry(ctx context.Context, user common.Address, amount *big.Int) (string, error)
	BatchClaimRefunds(ctx context.Context, round uint64, users []common.Address, maxCount uint64) (string, error)
}

// Preflighter defines what the coordinator needs from the entry preflight.
type Preflighter interface {
	Evaluate(ctx context.Context, user common.Address, snap *Snapshot) (*PreflightResult, error)
}

// Policy decides the desired prize mode for an instant.
type Policy interface {
	DesiredMode(t time.Time) PrizeMode
}

// In-flight guard keys for the singleton operations. Relay entries are keyed
// per user on top of these.
const (
	opClose  = "close"
	opMode   = "mode"
	opRefund = "refund"
)

// Coordinator is the decision core. Every operation is read-decide-act
// against a freshly fetched snapshot, a safe no-op when conditions are not
// met, and guarded so the same logical operation is never submitted twice
// concurrently from this process.
type Coordinator struct {
	state     StateReader
	txs       Submitter
	preflight Preflighter
	policy    Policy
	pub       events.Publisher
	clock     clockwork.Clock

	relayer          common.Address
	refundAfterRelay bool

	inFlight   map[string]bool
	inFlightMu sync.Mutex
}

func NewCoordinator(state StateReader, txs Submitter, preflight Preflighter, policy Policy, pub events.Publisher, relayer common.Address, refundAfterRelay bool) *Coordinator {
	return &Coordinator{
		state:            state,
		txs:              txs,
		preflight:        preflight,
		policy:           policy,
		pub:              pub,
		clock:            clockwork.NewRealClock(),
		relayer:          relayer,
		refundAfterRelay: refundAfterRelay,
		inFlight:         make(map[string]bool),
	}
}

// begin claims the in-flight slot for op. A false return means another
// invocation of the same operation is still pending; the caller must not
// submit, because its decision would be based on state the pending
// transaction is about to change.
func (c *Coordinator) begin(op string) bool {
	c.inFlightMu.Lock()
	defer c.inFlightMu.Unlock()
	if c.inFlight[op] {
		return false
	}
	c.inFlight[op] = true
	return true
}

func (c *Coordinator) end(op string) {
	c.inFlightMu.Lock()
	defer c.inFlightMu.Unlock()
	delete(c.inFlight, op)
}

// MaybeCloseRound closes the current round if it is active and past its
// deadline. A failed fetch is a no-op: never guess from unknown state.
func (c *Coordinator) MaybeCloseRound(ctx context.Context) *Result {
	if !c.begin(opClose) {
		log.Debug().Msg("close already in flight; skipping")
		return &Result{Action: ActionNone, Reason: ReasonInFlight}
	}
	defer c.end(opClose)

	snap, err := c.state.FetchSnapshot(ctx)
	if err != nil {
		log.Error().Err(err).Msg("close: snapshot fetch failed")
		return (&Result{Action: ActionNone, Reason: ReasonReadFailed}).fail(fmt.Errorf("%w: %w", ErrRemoteRead, err))
	}

	if !snap.Active {
		return &Result{Action: ActionNone, Reason: ReasonInactive}
	}

	if left := snap.Remaining(c.clock.Now()); left > 0 {
		log.Debug().Uint64("round", snap.CurrentRound).Int64("remaining_sec", left).Msg("round not expired yet")
		return &Result{Action: ActionNone, Reason: ReasonNotExpired, Round: snap.CurrentRound, RemainingSec: left}
	}

	log.Info().
		Uint64("round", snap.CurrentRound).
		Int("participants", len(snap.Participants)).
		Msg("closing expired round")

	txHash, err := c.txs.CloseExpiredRound(ctx)
	if err != nil {
		log.Error().Err(err).Uint64("round", snap.CurrentRound).Msg("close submission failed")
		return (&Result{Action: ActionRejected, Round: snap.CurrentRound}).fail(fmt.Errorf("%w: %w", ErrSubmission, err))
	}

	c.publish(ctx, events.TypeRoundClosed, events.RoundClosedPayload{
		Round:        snap.CurrentRound,
		Participants: len(snap.Participants),
		TxHash:       txHash,
	})

	return &Result{
		Action:       ActionClosed,
		Round:        snap.CurrentRound,
		Participants: len(snap.Participants),
		TxHash:       txHash,
	}
}

// MaybeSyncMode flips the prize mode to match the calendar policy. Mode
// changes mid-round are forbidden, so an active round is always a no-op.
func (c *Coordinator) MaybeSyncMode(ctx context.Context) *Result {
	if !c.begin(opMode) {
		log.Debug().Msg("mode sync already in flight; skipping")
		return &Result{Action: ActionNone, Reason: ReasonInFlight}
	}
	defer c.end(opMode)

	snap, err := c.state.FetchSnapshot(ctx)
	if err != nil {
		log.Error().Err(err).Msg("mode: snapshot fetch failed")
		return (&Result{Action: ActionNone, Reason: ReasonReadFailed}).fail(fmt.Errorf("%w: %w", ErrRemoteRead, err))
	}

	if snap.Active {
		return &Result{Action: ActionNone, Reason: ReasonRoundActive}
	}

	desired := c.policy.DesiredMode(c.clock.Now())
	if snap.Mode == desired {
		return &Result{Action: ActionNone, Reason: ReasonAlreadySet, ToMode: desired.String()}
	}

	log.Info().
		Str("from", snap.Mode.String()).
		Str("to", desired.String()).
		Msg("switching prize mode")

	txHash, err := c.txs.SetRoundMode(ctx, desired)
	if err != nil {
		log.Error().Err(err).Msg("mode submission failed")
		return (&Result{Action: ActionRejected, FromMode: snap.Mode.String(), ToMode: desired.String()}).fail(fmt.Errorf("%w: %w", ErrSubmission, err))
	}

	c.publish(ctx, events.TypeModeChanged, events.ModeChangedPayload{
		From:   snap.Mode.String(),
		To:     desired.String(),
		TxHash: txHash,
	})

	return &Result{
		Action:   ActionModeChanged,
		FromMode: snap.Mode.String(),
		ToMode:   desired.String(),
		TxHash:   txHash,
	}
}

// RelayEntry registers user in the current round on their behalf, relayer
// paying gas. The preflight runs before any submission; a non-OK verdict is
// returned to the caller with zero gas spent.
func (c *Coordinator) RelayEntry(ctx context.Context, user string) *Result {
	if !common.IsHexAddress(user) {
		return (&Result{Action: ActionRejected, User: user}).fail(fmt.Errorf("%w: malformed address %q", ErrValidation, user))
	}
	addr := common.HexToAddress(user)

	key := "relay:" + strings.ToLower(addr.Hex())
	if !c.begin(key) {
		log.Debug().Str("user", addr.Hex()).Msg("relay already in flight for user; rejecting")
		return (&Result{Action: ActionRejected, Reason: ReasonInFlight, User: addr.Hex()}).fail(fmt.Errorf("%w: relay already in flight for %s", ErrValidation, addr.Hex()))
	}
	defer c.end(key)

	snap, err := c.state.FetchSnapshot(ctx)
	if err != nil {
		log.Error().Err(err).Str("user", addr.Hex()).Msg("relay: snapshot fetch failed")
		return (&Result{Action: ActionRejected, Reason: ReasonReadFailed, User: addr.Hex()}).fail(fmt.Errorf("%w: %w", ErrRemoteRead, err))
	}

	verdict, err := c.preflight.Evaluate(ctx, addr, snap)
	if err != nil {
		log.Error().Err(err).Str("user", addr.Hex()).Msg("relay: preflight read failed")
		return (&Result{Action: ActionRejected, Reason: ReasonReadFailed, User: addr.Hex()}).fail(err)
	}
	if !verdict.OK() {
		log.Info().
			Str("user", addr.Hex()).
			Str("reason", string(verdict.Reason)).
			Str("detail", verdict.Detail).
			Msg("relay rejected by preflight")
		return (&Result{Action: ActionRejected, Reason: string(verdict.Reason), User: addr.Hex()}).fail(fmt.Errorf("%w: %s: %s", ErrPreflight, verdict.Reason, verdict.Detail))
	}

	log.Info().Str("user", addr.Hex()).Uint64("round", snap.CurrentRound).Msg("relaying entry")

	txHash, err := c.txs.RelayEnter(ctx, addr)
	if err != nil {
		log.Error().Err(err).Str("user", addr.Hex()).Msg("relay submission failed")
		return (&Result{Action: ActionRejected, User: addr.Hex()}).fail(fmt.Errorf("%w: %w", ErrSubmission, err))
	}

	result := &Result{
		Action: ActionEntryRelayed,
		Round:  snap.CurrentRound,
		User:   addr.Hex(),
		TxHash: txHash,
	}

	if c.refundAfterRelay {
		refundTx, rerr := c.txs.RefundEntry(ctx, addr, snap.EntryAmount)
		if rerr != nil {
			// The entry itself confirmed; report the refund failure as
			// partial success, never as total failure.
			log.Error().Err(rerr).Str("user", addr.Hex()).Str("entry_tx", txHash).Msg("refund after relay failed")
			result.Reason = ReasonRefundFail
			result.fail(fmt.Errorf("%w: refund after relay: %w", ErrSubmission, rerr))
		} else {
			result.RefundTxHash = refundTx
		}
	}

	c.publish(ctx, events.TypeEntryRelayed, events.EntryRelayedPayload{
		User:         addr.Hex(),
		Round:        snap.CurrentRound,
		TxHash:       txHash,
		RefundTxHash: result.RefundTxHash,
	})

	return result
}

// Arm enters the relayer itself into the next round, seeding it so the
// contract has a live round to run. Only meaningful while no round is active.
func (c *Coordinator) Arm(ctx context.Context) *Result {
	snap, err := c.state.FetchSnapshot(ctx)
	if err != nil {
		log.Error().Err(err).Msg("arm: snapshot fetch failed")
		return (&Result{Action: ActionNone, Reason: ReasonReadFailed}).fail(fmt.Errorf("%w: %w", ErrRemoteRead, err))
	}
	if snap.Active {
		return &Result{Action: ActionNone, Reason: ReasonRoundActive}
	}
	return c.RelayEntry(ctx, c.relayer.Hex())
}

// BatchRefund refunds users for a closed Standard round in one transaction.
// Invalid addresses are dropped rather than failing the whole batch.
func (c *Coordinator) BatchRefund(ctx context.Context, roundNo uint64, users []string, maxCount uint64) *Result {
	if len(users) == 0 {
		return (&Result{Action: ActionRejected, Round: roundNo}).fail(fmt.Errorf("%w: users array is required", ErrValidation))
	}

	addrs := make([]common.Address, 0, len(users))
	for _, u := range users {
		if common.IsHexAddress(u) {
			addrs = append(addrs, common.HexToAddress(u))
		}
	}
	if len(addrs) == 0 {
		return (&Result{Action: ActionRejected, Round: roundNo}).fail(fmt.Errorf("%w: no valid addresses in users array", ErrValidation))
	}
	if maxCount == 0 {
		maxCount = uint64(len(addrs))
	}

	if !c.begin(opRefund) {
		log.Debug().Uint64("round", roundNo).Msg("batch refund already in flight; rejecting")
		return (&Result{Action: ActionRejected, Reason: ReasonInFlight, Round: roundNo}).fail(fmt.Errorf("%w: batch refund already in flight", ErrValidation))
	}
	defer c.end(opRefund)

	log.Info().Uint64("round", roundNo).Int("users", len(addrs)).Uint64("max_count", maxCount).Msg("submitting batch refund")

	txHash, err := c.txs.BatchClaimRefunds(ctx, roundNo, addrs, maxCount)
	if err != nil {
		log.Error().Err(err).Uint64("round", roundNo).Msg("batch refund submission failed")
		return (&Result{Action: ActionRejected, Round: roundNo}).fail(fmt.Errorf("%w: %w", ErrSubmission, err))
	}

	c.publish(ctx, events.TypeRefunds, events.RefundsPayload{
		Round:  roundNo,
		Count:  len(addrs),
		TxHash: txHash,
	})

	return &Result{
		Action:       ActionRefunded,
		Round:        roundNo,
		Participants: len(addrs),
		TxHash:       txHash,
	}
}

// publish is best effort: a dropped event never fails the operation.
func (c *Coordinator) publish(ctx context.Context, eventType string, payload any) {
	if c.pub == nil {
		return
	}
	if err := c.pub.Publish(ctx, eventType, payload); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}
