package station

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Pinger probes backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Drainer is triggered when connectivity returns.
type Drainer interface {
	Drain(ctx context.Context) (int, error)
}

// ConnectivityWatcher probes the backend and fires a drain on every
// offline-to-online transition. The periodic drain timer lives in the
// drainer itself; this watcher only reacts to reconnects so queued records
// sync promptly instead of waiting out the interval.
type ConnectivityWatcher struct {
	pinger   Pinger
	drainer  Drainer
	interval time.Duration

	online bool
}

// NewConnectivityWatcher creates a watcher probing every interval.
func NewConnectivityWatcher(p Pinger, d Drainer, interval time.Duration) *ConnectivityWatcher {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &ConnectivityWatcher{pinger: p, drainer: d, interval: interval, online: true}
}

// Run probes until the context is canceled.
func (w *ConnectivityWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.probe(ctx)
		}
	}
}

func (w *ConnectivityWatcher) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	err := w.pinger.Ping(probeCtx)
	wasOnline := w.online
	w.online = err == nil

	switch {
	case err != nil && wasOnline:
		log.Warn().Err(err).Msg("Backend unreachable, submissions will queue offline")
	case err == nil && !wasOnline:
		log.Info().Msg("Backend reachable again, draining offline queue")
		if n, err := w.drainer.Drain(ctx); err != nil {
			log.Warn().Err(err).Int("drained", n).Msg("Drain after reconnect stopped")
		} else if n > 0 {
			log.Info().Int("drained", n).Msg("Offline queue drained after reconnect")
		}
	}
}
