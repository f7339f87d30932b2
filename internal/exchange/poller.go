package exchange

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"binance-trading-bot/internal/position"
)

// DefaultPollInterval is the period between snapshot fetches.
const DefaultPollInterval = 2 * time.Second

// snapshotSource is the subset of Client the poller needs; narrowed for
// testability.
type snapshotSource interface {
	PositionSnapshot(ctx context.Context, symbol string) (position.RestSnapshot, error)
	Balance(ctx context.Context) (float64, error)
}

// PositionUpdate is one position-snapshot event.
type PositionUpdate struct {
	Snapshot position.RestSnapshot
	At       time.Time
}

// BalanceUpdate is one balance-snapshot event.
type BalanceUpdate struct {
	USDT float64
	At   time.Time
}

// Poller periodically fetches position and balance snapshots over REST,
// standing in for a push-based account stream.
type Poller struct {
	log      zerolog.Logger
	source   snapshotSource
	symbol   string
	interval time.Duration

	positions chan PositionUpdate
	balances  chan BalanceUpdate
}

// NewPoller constructs a poller for symbol against source, firing every
// interval (DefaultPollInterval if interval <= 0).
func NewPoller(source snapshotSource, symbol string, interval time.Duration, logger zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		log:       logger.With().Str("component", "exchange-poller").Logger(),
		source:    source,
		symbol:    symbol,
		interval:  interval,
		positions: make(chan PositionUpdate, 8),
		balances:  make(chan BalanceUpdate, 8),
	}
}

// Positions returns the channel of position snapshots.
func (p *Poller) Positions() <-chan PositionUpdate { return p.positions }

// Balances returns the channel of balance snapshots.
func (p *Poller) Balances() <-chan BalanceUpdate { return p.balances }

// Run blocks, polling on a fixed interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	now := time.Now()

	snap, err := p.source.PositionSnapshot(ctx, p.symbol)
	if err != nil {
		p.log.Warn().Err(err).Msg("poller: position snapshot failed")
	} else {
		select {
		case p.positions <- PositionUpdate{Snapshot: snap, At: now}:
		default:
			p.log.Warn().Msg("poller: position channel full, dropping snapshot")
		}
	}

	bal, err := p.source.Balance(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("poller: balance snapshot failed")
		return
	}
	select {
	case p.balances <- BalanceUpdate{USDT: bal, At: now}:
	default:
		p.log.Warn().Msg("poller: balance channel full, dropping snapshot")
	}
}
