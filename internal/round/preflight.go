package round

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PreflightReason codes are returned verbatim to the caller so the front-end
// can show an actionable message instead of an opaque revert.
type PreflightReason string

const (
	PreflightOK                    PreflightReason = "OK"
	PreflightInsufficientBalance   PreflightReason = "INSUFFICIENT_BALANCE"
	PreflightInsufficientAllowance PreflightReason = "INSUFFICIENT_ALLOWANCE"
	PreflightRelayerUnderfunded    PreflightReason = "RELAYER_UNDERFUNDED"
	PreflightWouldRevert           PreflightReason = "WOULD_REVERT"
)

// PreflightResult carries the verdict plus the numbers it was derived from.
type PreflightResult struct {
	Reason PreflightReason
	Detail string

	Balance   *big.Int
	Allowance *big.Int
}

func (r *PreflightResult) OK() bool {
	return r.Reason == PreflightOK
}

// TokenReader defines what the preflight needs from the entry token.
type TokenReader interface {
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, owner common.Address) (*big.Int, error)
}

// Simulator defines the dry-run of the relay call. A nil error means the
// call would currently succeed.
type Simulator interface {
	SimulateRelayEnter(ctx context.Context, user common.Address) error
}

// Preflight validates an entry candidate before any gas is spent. Checks run
// cheapest first: balance, then allowance, then (when the relayer refunds
// from its own balance) relayer funds, then a simulated execution to catch
// any remaining contract-level guard such as a full or duplicate entry.
type Preflight struct {
	tokens  TokenReader
	sim     Simulator
	relayer common.Address

	// requireRelayerFunds is set when refund-after-relay is enabled, since
	// the relayer then needs entryAmount of its own tokens per entry.
	requireRelayerFunds bool
}

func NewPreflight(tokens TokenReader, sim Simulator, relayer common.Address, requireRelayerFunds bool) *Preflight {
	return &Preflight{
		tokens:              tokens,
		sim:                 sim,
		relayer:             relayer,
		requireRelayerFunds: requireRelayerFunds,
	}
}

// Evaluate checks user against the entry amount from the given snapshot.
// A non-nil error means a read failed and no verdict could be reached.
func (p *Preflight) Evaluate(ctx context.Context, user common.Address, snap *Snapshot) (*PreflightResult, error) {
	balance, err := p.tokens.BalanceOf(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%w: balanceOf(%s): %w", ErrRemoteRead, user.Hex(), err)
	}
	if balance.Cmp(snap.EntryAmount) < 0 {
		return &PreflightResult{
			Reason:  PreflightInsufficientBalance,
			Detail:  fmt.Sprintf("balance %s below entry amount %s", balance, snap.EntryAmount),
			Balance: balance,
		}, nil
	}

	allowance, err := p.tokens.Allowance(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%w: allowance(%s): %w", ErrRemoteRead, user.Hex(), err)
	}
	if allowance.Cmp(snap.EntryAmount) < 0 {
		return &PreflightResult{
			Reason:    PreflightInsufficientAllowance,
			Detail:    fmt.Sprintf("allowance %s below entry amount %s", allowance, snap.EntryAmount),
			Balance:   balance,
			Allowance: allowance,
		}, nil
	}

	if p.requireRelayerFunds {
		relayerBalance, err := p.tokens.BalanceOf(ctx, p.relayer)
		if err != nil {
			return nil, fmt.Errorf("%w: balanceOf(relayer): %w", ErrRemoteRead, err)
		}
		if relayerBalance.Cmp(snap.EntryAmount) < 0 {
			return &PreflightResult{
				Reason:    PreflightRelayerUnderfunded,
				Detail:    fmt.Sprintf("relayer balance %s below entry amount %s", relayerBalance, snap.EntryAmount),
				Balance:   balance,
				Allowance: allowance,
			}, nil
		}
	}

	if err := p.sim.SimulateRelayEnter(ctx, user); err != nil {
		return &PreflightResult{
			Reason:    PreflightWouldRevert,
			Detail:    err.Error(),
			Balance:   balance,
			Allowance: allowance,
		}, nil
	}

	return &PreflightResult{
		Reason:    PreflightOK,
		Balance:   balance,
		Allowance: allowance,
	}, nil
}
