package station

import (
	"bytes"
	"context"
	"testing"
	"time"

	"attendance.tracker/internal/core/model"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

type fakePinger struct {
	err error
}

func (p *fakePinger) Ping(ctx context.Context) error { return p.err }

type countingDrainer struct {
	drains int
}

func (d *countingDrainer) Drain(ctx context.Context) (int, error) {
	d.drains++
	return 0, nil
}

func TestWatcherDrainsOnReconnectOnly(t *testing.T) {
	pinger := &fakePinger{}
	drainer := &countingDrainer{}
	w := NewConnectivityWatcher(pinger, drainer, time.Second)
	ctx := context.Background()

	// Healthy probes while already online never trigger a drain.
	w.probe(ctx)
	w.probe(ctx)
	assert.Zero(t, drainer.drains)

	// Going offline does not drain either.
	pinger.err = model.ErrConnectivity
	w.probe(ctx)
	w.probe(ctx)
	assert.Zero(t, drainer.drains)

	// The offline-to-online transition drains exactly once.
	pinger.err = nil
	w.probe(ctx)
	assert.Equal(t, 1, drainer.drains)

	// Staying online stays quiet.
	w.probe(ctx)
	assert.Equal(t, 1, drainer.drains)
}

func TestWatcherLogsReconnectFromBareContext(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	pinger := &fakePinger{err: model.ErrConnectivity}
	w := NewConnectivityWatcher(pinger, &countingDrainer{}, time.Second)
	ctx := context.Background()

	w.probe(ctx)
	pinger.err = nil
	w.probe(ctx)

	assert.Contains(t, buf.String(), "Backend unreachable")
	assert.Contains(t, buf.String(), "reachable again")
}
