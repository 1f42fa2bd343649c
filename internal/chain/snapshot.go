package chain

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/freakyfriday/relayer/internal/round"
)

// FetchSnapshot reads the full round state in one concurrent batch. All
// fields or nothing: any failed read fails the whole fetch, so callers never
// see a partially populated snapshot.
func (c *Client) FetchSnapshot(ctx context.Context) (*round.Snapshot, error) {
	snap := &round.Snapshot{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		active, err := c.callBool(ctx, "isRoundActive")
		if err != nil {
			return err
		}
		snap.Active = active
		return nil
	})
	g.Go(func() error {
		v, err := c.callBig(ctx, "currentRound")
		if err != nil {
			return err
		}
		snap.CurrentRound = v.Uint64()
		return nil
	})
	g.Go(func() error {
		v, err := c.callBig(ctx, "roundStart")
		if err != nil {
			return err
		}
		snap.RoundStart = v.Uint64()
		return nil
	})
	g.Go(func() error {
		v, err := c.callBig(ctx, "duration")
		if err != nil {
			return err
		}
		snap.Duration = v.Uint64()
		return nil
	})
	g.Go(func() error {
		v, err := c.callBig(ctx, "entryAmount")
		if err != nil {
			return err
		}
		snap.EntryAmount = v
		return nil
	})
	g.Go(func() error {
		v, err := c.callBig(ctx, "maxPlayers")
		if err != nil {
			return err
		}
		snap.MaxPlayers = v.Uint64()
		return nil
	})
	g.Go(func() error {
		v, err := c.callUint8(ctx, c.modeMethod)
		if err != nil {
			return err
		}
		snap.Mode = round.PrizeMode(v)
		return nil
	})
	g.Go(func() error {
		v, err := c.callAddresses(ctx, "getParticipants")
		if err != nil {
			return err
		}
		snap.Participants = v
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}
