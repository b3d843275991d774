/**
 * Capture Supervisor.
 *
 * Owns the daemon's run-to-completion loop: opens the configured
 * interface, runs one Pipeline over it until it exits, and either returns
 * (clean shutdown, persistence-fatal error) or reopens the interface with
 * exponential backoff when the pipeline reports the capture handle was
 * lost. Interface-reopen exhaustion and persistence failure map to
 * distinct error kinds so main can choose the right exit code.
 */

package supervisor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/netscope-observatory/netscope-observatory/internal/capture"
	"github.com/netscope-observatory/netscope-observatory/internal/config"
	"github.com/netscope-observatory/netscope-observatory/internal/enrich"
	"github.com/netscope-observatory/netscope-observatory/internal/model"
	"github.com/netscope-observatory/netscope-observatory/internal/notify"
	"github.com/netscope-observatory/netscope-observatory/internal/pipeline"
	"github.com/netscope-observatory/netscope-observatory/internal/query"
	"github.com/netscope-observatory/netscope-observatory/internal/storage"
	"github.com/netscope-observatory/netscope-observatory/internal/threat"
)

// reopenBackoff is the interface-reopen delay schedule: 1s,2s,4s,8s then
// capped at 30s, for up to maxReopenAttempts tries.
var reopenBackoff = []time.Duration{
	1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
	30 * time.Second, 30 * time.Second, 30 * time.Second, 30 * time.Second, 30 * time.Second,
}

const maxReopenAttempts = 10

// Supervisor drives the open/run/reopen lifecycle for one configured
// interface.
type Supervisor struct {
	cfg   *config.Config
	store storage.Storage
	hub   *notify.Hub
	geo   enrich.GeoResolver

	// lastPipeline is exposed so main can wire the HTTP/metrics query
	// surface to the currently-running pipeline's live health.
	lastPipeline *pipeline.Pipeline
}

// New builds a Supervisor. geo may be nil to disable geo enrichment.
func New(cfg *config.Config, store storage.Storage, hub *notify.Hub, geo enrich.GeoResolver) *Supervisor {
	return &Supervisor{cfg: cfg, store: store, hub: hub, geo: geo}
}

// CurrentHealth satisfies query.HealthSource by forwarding to whichever
// pipeline is currently running, or a zero-value Health before the first
// one starts.
func (s *Supervisor) CurrentHealth() query.Health {
	if s.lastPipeline == nil {
		return query.Health{}
	}
	return s.lastPipeline.Health()
}

// Run opens the interface and runs a Pipeline over it until ctx is
// canceled. A pipeline exit caused by a lost capture handle triggers a
// reopen with backoff; exhausting maxReopenAttempts, or any other error,
// is returned to the caller. Returns nil on a clean, context-driven
// shutdown.
func (s *Supervisor) Run(ctx context.Context) error {
	attempt := 0

	for {
		reader, err := s.open()
		if err != nil {
			attempt++
			if attempt >= maxReopenAttempts {
				return model.NewError(model.ErrInterfaceUnavailable,
					"exhausted interface reopen attempts", err)
			}
			if !s.sleepBackoff(ctx, attempt) {
				return nil
			}
			continue
		}
		attempt = 0

		engine := threat.NewEngine(s.cfg.RuleThresholds, s.cfg.HighRiskCountries, s.cfg.LocalSubnets, uuid.NewString)
		p := pipeline.New(s.cfg, reader, s.store, s.geo, engine, s.hub)
		s.lastPipeline = p

		runErr := p.Run(ctx)
		reader.Close()

		if ctx.Err() != nil {
			return nil
		}
		if runErr == nil {
			continue // interface healthy, pipeline returned for another reason; keep serving
		}

		var kerr *model.KindError
		if errors.As(runErr, &kerr) && kerr.Kind == model.ErrInterfaceUnavailable {
			attempt++
			if attempt >= maxReopenAttempts {
				return runErr
			}
			if !s.sleepBackoff(ctx, attempt) {
				return nil
			}
			continue
		}

		return runErr // PersistenceFatal or anything else: bubble to main for exit 4
	}
}

func (s *Supervisor) open() (*capture.Reader, error) {
	cfg := capture.DefaultConfig(s.cfg.Interface)
	if s.cfg.BPFFilter != "" {
		cfg.BPFFilter = s.cfg.BPFFilter
	}
	return capture.Open(cfg)
}

// sleepBackoff waits out attempt's backoff delay, returning false if ctx
// is canceled first.
func (s *Supervisor) sleepBackoff(ctx context.Context, attempt int) bool {
	idx := attempt - 1
	if idx >= len(reopenBackoff) {
		idx = len(reopenBackoff) - 1
	}
	select {
	case <-time.After(reopenBackoff[idx]):
		return true
	case <-ctx.Done():
		return false
	}
}
