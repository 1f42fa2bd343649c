// Package chain binds the relayer to the game contract and its entry token.
// It owns the single signing identity: all mutating calls go through one
// serialized submission path so concurrent operations never race on nonces.
package chain

import (
	"context"
	_ "embed"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"

	"github.com/freakyfriday/relayer/internal/config"
	"github.com/freakyfriday/relayer/internal/round"
)

//go:embed abi/freaky_game.json
var gameABIJSON string

//go:embed abi/erc20.json
var erc20ABIJSON string

// Client talks to the game contract and the entry token over a single RPC
// connection with a single signer.
type Client struct {
	eth     *ethclient.Client
	game    *bind.BoundContract
	token   *bind.BoundContract
	gameABI abi.ABI

	gameAddr  common.Address
	tokenAddr common.Address
	relayer   common.Address

	opts    *bind.TransactOpts
	chainID *big.Int

	// modeMethod is resolved once at construction: the preferred
	// getRoundMode getter when the deployed contract has it, otherwise the
	// roundMode public variable. The deployed ABI cannot change without a
	// redeploy, so this is never re-probed.
	modeMethod string

	txMu sync.Mutex
}

// NewClient dials the RPC endpoint, sets up the signer and bound contracts,
// resolves the mode accessor, and optionally cross-checks the configured
// token address against the contract's own.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	if !common.IsHexAddress(cfg.GameAddress) {
		return nil, fmt.Errorf("invalid game contract address %q", cfg.GameAddress)
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC endpoint: %w", err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}

	priv, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid relayer private key: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(priv, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to build transactor: %w", err)
	}

	gameABI, err := abi.JSON(strings.NewReader(gameABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse game ABI: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 ABI: %w", err)
	}

	c := &Client{
		eth:      eth,
		gameABI:  gameABI,
		gameAddr: common.HexToAddress(cfg.GameAddress),
		relayer:  crypto.PubkeyToAddress(priv.PublicKey),
		opts:     opts,
		chainID:  chainID,
	}
	c.game = bind.NewBoundContract(c.gameAddr, gameABI, eth, eth, eth)

	if err := c.resolveToken(ctx, cfg); err != nil {
		return nil, err
	}
	c.token = bind.NewBoundContract(c.tokenAddr, erc20ABI, eth, eth, eth)

	if err := c.resolveModeMethod(ctx); err != nil {
		return nil, err
	}

	log.Info().
		Str("chain_id", chainID.String()).
		Str("game", c.gameAddr.Hex()).
		Str("token", c.tokenAddr.Hex()).
		Str("relayer", c.relayer.Hex()).
		Str("mode_method", c.modeMethod).
		Msg("chain client ready")

	return c, nil
}

// resolveToken picks the entry token address: the configured one, or the
// contract's own when none is configured. With validation enabled a
// mismatch between the two refuses startup, since it would only surface
// later as confusing preflight verdicts.
func (c *Client) resolveToken(ctx context.Context, cfg *config.Config) error {
	onChain, err := c.callAddress(ctx, "gcc")

	if cfg.TokenAddress == "" {
		if err != nil {
			return fmt.Errorf("no token address configured and gcc() read failed: %w", err)
		}
		c.tokenAddr = onChain
		return nil
	}

	if !common.IsHexAddress(cfg.TokenAddress) {
		return fmt.Errorf("invalid token address %q", cfg.TokenAddress)
	}
	c.tokenAddr = common.HexToAddress(cfg.TokenAddress)

	if cfg.ValidateToken && err == nil && c.tokenAddr != onChain {
		return fmt.Errorf("configured token %s does not match contract token %s", c.tokenAddr.Hex(), onChain.Hex())
	}
	return nil
}

// resolveModeMethod probes the preferred getter once, falling back to the
// public variable accessor.
func (c *Client) resolveModeMethod(ctx context.Context) error {
	if _, err := c.callUint8(ctx, "getRoundMode"); err == nil {
		c.modeMethod = "getRoundMode"
		return nil
	}
	if _, err := c.callUint8(ctx, "roundMode"); err == nil {
		c.modeMethod = "roundMode"
		return nil
	}
	return fmt.Errorf("contract %s exposes neither getRoundMode nor roundMode", c.gameAddr.Hex())
}

// RelayerAddress is the signing identity's address.
func (c *Client) RelayerAddress() common.Address {
	return c.relayer
}

// GameAddress is the bound game contract address.
func (c *Client) GameAddress() common.Address {
	return c.gameAddr
}

// TokenAddress is the resolved entry token address.
func (c *Client) TokenAddress() common.Address {
	return c.tokenAddr
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// Health performs the cheap liveness probe: one flag read on top of the
// cached chain id.
func (c *Client) Health(ctx context.Context) *round.Health {
	h := &round.Health{
		Contract: c.gameAddr.Hex(),
		ChainID:  c.chainID.String(),
	}
	active, err := c.callBool(ctx, "isRoundActive")
	if err != nil {
		h.Error = err.Error()
		return h
	}
	h.OK = true
	h.RoundActive = active
	return h
}

func (c *Client) callBool(ctx context.Context, method string) (bool, error) {
	var out []interface{}
	if err := c.game.Call(&bind.CallOpts{Context: ctx}, &out, method); err != nil {
		return false, fmt.Errorf("%s: %w", method, err)
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("%s: unexpected return type %T", method, out[0])
	}
	return v, nil
}

func (c *Client) callBig(ctx context.Context, method string) (*big.Int, error) {
	var out []interface{}
	if err := c.game.Call(&bind.CallOpts{Context: ctx}, &out, method); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected return type %T", method, out[0])
	}
	return v, nil
}

func (c *Client) callUint8(ctx context.Context, method string) (uint8, error) {
	var out []interface{}
	if err := c.game.Call(&bind.CallOpts{Context: ctx}, &out, method); err != nil {
		return 0, fmt.Errorf("%s: %w", method, err)
	}
	v, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("%s: unexpected return type %T", method, out[0])
	}
	return v, nil
}

func (c *Client) callAddress(ctx context.Context, method string) (common.Address, error) {
	var out []interface{}
	if err := c.game.Call(&bind.CallOpts{Context: ctx}, &out, method); err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", method, err)
	}
	v, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s: unexpected return type %T", method, out[0])
	}
	return v, nil
}

func (c *Client) callAddresses(ctx context.Context, method string) ([]common.Address, error) {
	var out []interface{}
	if err := c.game.Call(&bind.CallOpts{Context: ctx}, &out, method); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	v, ok := out[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected return type %T", method, out[0])
	}
	return v, nil
}
