package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/freakyfriday/relayer/internal/round"
)

// BalanceOf reads owner's entry token balance.
func (c *Client) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	var out []interface{}
	if err := c.token.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", owner); err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf: unexpected return type %T", out[0])
	}
	return v, nil
}

// Allowance reads what owner has approved the game contract to spend.
func (c *Client) Allowance(ctx context.Context, owner common.Address) (*big.Int, error) {
	var out []interface{}
	if err := c.token.Call(&bind.CallOpts{Context: ctx}, &out, "allowance", owner, c.gameAddr); err != nil {
		return nil, fmt.Errorf("allowance: %w", err)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("allowance: unexpected return type %T", out[0])
	}
	return v, nil
}

// Decimals reads the token's display decimals.
func (c *Client) Decimals(ctx context.Context) (uint8, error) {
	var out []interface{}
	if err := c.token.Call(&bind.CallOpts{Context: ctx}, &out, "decimals"); err != nil {
		return 0, fmt.Errorf("decimals: %w", err)
	}
	v, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals: unexpected return type %T", out[0])
	}
	return v, nil
}

// DebugState gathers the per-user entry diagnostics served by /debug-state.
func (c *Client) DebugState(ctx context.Context, user common.Address) (*round.DebugState, error) {
	var (
		decimals  uint8
		entry     *big.Int
		balance   *big.Int
		allowance *big.Int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := c.Decimals(ctx)
		if err != nil {
			return err
		}
		decimals = v
		return nil
	})
	g.Go(func() error {
		v, err := c.callBig(ctx, "entryAmount")
		if err != nil {
			return err
		}
		entry = v
		return nil
	})
	g.Go(func() error {
		v, err := c.BalanceOf(ctx, user)
		if err != nil {
			return err
		}
		balance = v
		return nil
	})
	g.Go(func() error {
		v, err := c.Allowance(ctx, user)
		if err != nil {
			return err
		}
		allowance = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &round.DebugState{
		Token:          c.tokenAddr.Hex(),
		Decimals:       decimals,
		EntryRaw:       entry.String(),
		EntryHuman:     formatUnits(entry, decimals),
		BalanceRaw:     balance.String(),
		BalanceHuman:   formatUnits(balance, decimals),
		AllowanceRaw:   allowance.String(),
		AllowanceHuman: formatUnits(allowance, decimals),
	}, nil
}

// formatUnits renders a smallest-unit amount with a decimal point, trailing
// zeros trimmed.
func formatUnits(x *big.Int, decimals uint8) string {
	if x == nil {
		return "0"
	}
	if decimals == 0 {
		return x.String()
	}
	div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	q, r := new(big.Int).QuoRem(x, div, new(big.Int))
	if r.Sign() == 0 {
		return q.String()
	}
	frac := r.String()
	if pad := int(decimals) - len(frac); pad > 0 {
		frac = strings.Repeat("0", pad) + frac
	}
	frac = strings.TrimRight(frac, "0")
	return q.String() + "." + frac
}
