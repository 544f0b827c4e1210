package db

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/willibrandon/dbprobe/internal/config"
	"github.com/willibrandon/dbprobe/internal/logger"
)

// Result describes one probe.
type Result struct {
	ID        uuid.UUID
	Driver    string
	Target    string // redacted
	Query     string
	Value     any
	Latency   time.Duration
	StartedAt time.Time
	// Err is a *ProbeError when the probe failed.
	Err error
}

// OK reports whether the probe succeeded.
func (r *Result) OK() bool {
	return r.Err == nil
}

// ValueString renders the scalar for display. Raw bytes from text-protocol
// drivers are shown as text and a missing row as NULL.
func (r *Result) ValueString() string {
	switch v := r.Value.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Kind returns the failure kind, or 0 when the probe succeeded.
func (r *Result) Kind() ErrorKind {
	if pe := Classify(StageQuery, r.Err); pe != nil {
		return pe.Kind
	}
	return 0
}

// Prober runs connectivity probes against one target.
type Prober struct {
	target Target
	query  string
	driver Driver

	open atomic.Int64
}

// Option configures a Prober.
type Option func(*Prober)

// WithQuery replaces the validation query.
func WithQuery(query string) Option {
	return func(p *Prober) {
		p.query = query
	}
}

// WithDriver forces a driver instead of looking one up from the target.
func WithDriver(d Driver) Option {
	return func(p *Prober) {
		p.driver = d
	}
}

// NewProber creates a Prober for target.
func NewProber(target Target, opts ...Option) *Prober {
	if driver, ok := config.NormalizeDriver(target.Driver); ok {
		target.Driver = driver
	}
	p := &Prober{
		target: target,
		query:  config.DefaultQuery,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Target returns the target being probed.
func (p *Prober) Target() Target {
	return p.target
}

// OpenSessions returns the number of sessions currently held open. It is
// zero whenever Probe is not running.
func (p *Prober) OpenSessions() int {
	return int(p.open.Load())
}

// Probe opens one connection, runs the validation query and closes the
// connection again. The returned Result is never nil.
//
// Operational failures (unreachable server, rejected credentials, missing
// database) are recorded in Result.Err and a nil error is returned, so the
// caller reports them and carries on. Any other failure is recorded and also
// returned.
func (p *Prober) Probe(ctx context.Context) (*Result, error) {
	res := &Result{
		ID:        uuid.New(),
		Driver:    p.target.Driver,
		Target:    p.target.Redacted(),
		Query:     p.query,
		StartedAt: time.Now(),
	}
	log := logger.With("probe_id", res.ID.String(), "driver", res.Driver, "target", res.Target)
	log.Debug("Starting probe", "query", p.query)

	start := time.Now()
	value, err := p.run(ctx)
	res.Latency = time.Since(start)

	if err != nil {
		res.Err = err
		if err.Operational() {
			log.Warn("Probe failed",
				"kind", err.Kind.String(),
				"stage", string(err.Stage),
				"latency", res.Latency,
				"error", err.Err,
			)
			return res, nil
		}
		log.Error("Probe aborted",
			"kind", err.Kind.String(),
			"stage", string(err.Stage),
			"error", err.Err,
		)
		return res, err
	}

	res.Value = value
	log.Info("Probe succeeded", "value", res.ValueString(), "latency", res.Latency)
	return res, nil
}

func (p *Prober) run(ctx context.Context) (any, *ProbeError) {
	if err := p.target.Validate(); err != nil {
		return nil, &ProbeError{Kind: KindConfig, Stage: StageConfig, Err: err}
	}

	drv := p.driver
	if drv == nil {
		var err error
		drv, err = LookupDriver(p.target.Driver)
		if err != nil {
			return nil, &ProbeError{Kind: KindConfig, Stage: StageConfig, Err: err}
		}
	}

	sess, err := drv.Open(ctx, p.target)
	if err != nil {
		return nil, Classify(StageConnect, err)
	}
	p.open.Add(1)
	defer func() {
		// Close even when ctx was cancelled mid-query
		if cerr := sess.Close(context.WithoutCancel(ctx)); cerr != nil {
			logger.Debug("Failed to close session", "driver", drv.Name(), "error", cerr)
		}
		p.open.Add(-1)
	}()

	value, err := sess.QueryScalar(ctx, p.query)
	if err != nil {
		return nil, Classify(StageQuery, err)
	}
	return value, nil
}
