// Package poller is the periodic trigger. It owns all looping and sleeping;
// the coordinator stays a pure request/response unit. A failed tick is simply
// retried on the next interval.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/freakyfriday/relayer/internal/events"
	"github.com/freakyfriday/relayer/internal/round"
)

// Coordinator defines what the poller needs from the round coordinator.
type Coordinator interface {
	MaybeCloseRound(ctx context.Context) *round.Result
	MaybeSyncMode(ctx context.Context) *round.Result
	Arm(ctx context.Context) *round.Result
}

type Config struct {
	CloseInterval    time.Duration
	ModeSyncInterval time.Duration
	ArmAfterClose    bool
}

// Poller drives close checks and mode syncs on their own cadences and pushes
// a status frame to live consumers after each close tick.
type Poller struct {
	coord Coordinator
	state round.StateReader
	pub   events.Publisher
	clock clockwork.Clock
	cfg   Config

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func New(coord Coordinator, state round.StateReader, pub events.Publisher, cfg Config) *Poller {
	return &Poller{
		coord:    coord,
		state:    state,
		pub:      pub,
		clock:    clockwork.NewRealClock(),
		cfg:      cfg,
		stopChan: make(chan struct{}),
	}
}

func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("poller already running")
	}
	p.running = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(ctx)

	log.Info().
		Dur("close_interval", p.cfg.CloseInterval).
		Dur("mode_sync_interval", p.cfg.ModeSyncInterval).
		Bool("arm_after_close", p.cfg.ArmAfterClose).
		Msg("poller started")

	return nil
}

func (p *Poller) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return fmt.Errorf("poller not running")
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopChan)
	p.wg.Wait()

	log.Info().Msg("poller stopped")
	return nil
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	closeTicker := p.clock.NewTicker(p.cfg.CloseInterval)
	defer closeTicker.Stop()
	modeTicker := p.clock.NewTicker(p.cfg.ModeSyncInterval)
	defer modeTicker.Stop()

	// Check once on start, like the cron scripts did.
	p.closeTick(ctx)
	p.modeTick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case <-closeTicker.Chan():
			p.closeTick(ctx)
		case <-modeTicker.Chan():
			p.modeTick(ctx)
		}
	}
}

func (p *Poller) closeTick(ctx context.Context) {
	res := p.coord.MaybeCloseRound(ctx)
	logResult("close", res)

	// Seed the next round with the relayer's own entry once nothing is
	// running, when configured to.
	if p.cfg.ArmAfterClose && (res.Action == round.ActionClosed || res.Reason == round.ReasonInactive) {
		logResult("arm", p.coord.Arm(ctx))
	}

	p.publishStatus(ctx)
}

func (p *Poller) modeTick(ctx context.Context) {
	logResult("mode", p.coord.MaybeSyncMode(ctx))
}

func (p *Poller) publishStatus(ctx context.Context) {
	if p.pub == nil || p.state == nil {
		return
	}
	snap, err := p.state.FetchSnapshot(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("status frame skipped; snapshot fetch failed")
		return
	}
	payload := events.StatusPayload{
		RoundActive:  snap.Active,
		CurrentRound: snap.CurrentRound,
		RoundStart:   snap.RoundStart,
		Duration:     snap.Duration,
		EntryAmount:  snap.EntryAmount.String(),
		RoundMode:    snap.Mode.String(),
		Participants: len(snap.Participants),
		RemainingSec: snap.Remaining(p.clock.Now()),
	}
	if err := p.pub.Publish(ctx, events.TypeStatus, payload); err != nil {
		log.Error().Err(err).Msg("failed to publish status frame")
	}
}

func logResult(op string, res *round.Result) {
	ev := log.Info()
	if res.Err != nil {
		ev = log.Error().Err(res.Err)
	}
	ev.Str("op", op).
		Str("action", string(res.Action)).
		Str("reason", res.Reason).
		Str("tx", res.TxHash).
		Msg("poller tick")
}
