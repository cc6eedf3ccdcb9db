package fetch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultPollInterval matches the status refresh period of the viewer.
const DefaultPollInterval = 3 * time.Second

// Poller watches a simulation until its status becomes terminal.
type Poller struct {
	client   *Client
	interval time.Duration
}

// NewPoller returns a poller; a non-positive interval uses DefaultPollInterval.
func NewPoller(client *Client, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{client: client, interval: interval}
}

// Run polls immediately and then every interval, passing each status to fn.
// Failed polls are logged and retried on the next tick. Run returns the
// terminal status, or ctx.Err() once the owning view goes away.
func (p *Poller) Run(ctx context.Context, simulationID string, fn func(*Simulation)) (*Simulation, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		sim, err := p.client.Simulation(ctx, simulationID)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			log.Warn().Err(err).Str("simulation", simulationID).Msg("fetch: status poll failed")
		default:
			if fn != nil {
				fn(sim)
			}
			if sim.Terminal() {
				return sim, nil
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
