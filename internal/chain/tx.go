package chain

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"

	"github.com/freakyfriday/relayer/internal/round"
)

// transact submits one mutating call and blocks until it is mined. The mutex
// serializes every submission from the single relayer identity; concurrent
// transactions from one account would race on nonces.
func (c *Client) transact(ctx context.Context, contract *bind.BoundContract, method string, args ...interface{}) (string, error) {
	c.txMu.Lock()
	defer c.txMu.Unlock()

	opts := *c.opts
	opts.Context = ctx

	tx, err := contract.Transact(&opts, method, args...)
	if err != nil {
		return "", fmt.Errorf("%s: %w", method, err)
	}
	log.Info().Str("method", method).Str("tx", tx.Hash().Hex()).Msg("transaction sent")

	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return "", fmt.Errorf("%s: waiting for %s: %w", method, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", fmt.Errorf("%s: transaction %s reverted", method, tx.Hash().Hex())
	}

	log.Info().
		Str("method", method).
		Str("tx", tx.Hash().Hex()).
		Uint64("block", receipt.BlockNumber.Uint64()).
		Msg("transaction confirmed")

	return tx.Hash().Hex(), nil
}

// CloseExpiredRound submits checkTimeExpired.
func (c *Client) CloseExpiredRound(ctx context.Context) (string, error) {
	return c.transact(ctx, c.game, "checkTimeExpired")
}

// SetRoundMode submits setRoundMode with the given mode.
func (c *Client) SetRoundMode(ctx context.Context, mode round.PrizeMode) (string, error) {
	return c.transact(ctx, c.game, "setRoundMode", uint8(mode))
}

// RelayEnter submits relayedEnter for user, relayer paying gas.
func (c *Client) RelayEnter(ctx context.Context, user common.Address) (string, error) {
	return c.transact(ctx, c.game, "relayedEnter", user)
}

// RefundEntry transfers amount of the entry token from the relayer's own
// balance back to user. Only used when refund-after-relay is enabled.
func (c *Client) RefundEntry(ctx context.Context, user common.Address, amount *big.Int) (string, error) {
	return c.transact(ctx, c.token, "transfer", user, amount)
}

// BatchClaimRefunds submits batchClaimRefunds for a closed round.
func (c *Client) BatchClaimRefunds(ctx context.Context, roundNo uint64, users []common.Address, maxCount uint64) (string, error) {
	return c.transact(ctx, c.game, "batchClaimRefunds",
		new(big.Int).SetUint64(roundNo), users, new(big.Int).SetUint64(maxCount))
}

// SimulateRelayEnter dry-runs relayedEnter(user) without submitting. A nil
// error means the call would currently succeed; otherwise the node's revert
// reason comes back in the error.
func (c *Client) SimulateRelayEnter(ctx context.Context, user common.Address) error {
	data, err := c.gameABI.Pack("relayedEnter", user)
	if err != nil {
		return fmt.Errorf("pack relayedEnter: %w", err)
	}
	msg := ethereum.CallMsg{
		From: c.relayer,
		To:   &c.gameAddr,
		Data: data,
	}
	if _, err := c.eth.CallContract(ctx, msg, nil); err != nil {
		return err
	}
	return nil
}
