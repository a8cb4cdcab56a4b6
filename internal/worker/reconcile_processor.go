// Package worker runs background reconciliation of locally cached
// transactions against the remote gateway.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"ledger/internal/log"
	"ledger/internal/repository"
)

// OwnerLister reports the users that have locally cached records.
type OwnerLister interface {
	Owners() []string
}

// ReconcileFunc reconciles one user's cached records.
type ReconcileFunc func(ctx context.Context, userID string) (repository.ReconcileResult, error)

// RegistryReconciler reconciles through the registry, so the worker and
// request handlers share a single pass per user. Background passes do not
// keep an idle session alive.
func RegistryReconciler(reg *repository.Registry) ReconcileFunc {
	return reg.Reconcile
}

// Config holds configuration for the reconcile processor.
type Config struct {
	// Interval between passes (default: 30s)
	Interval time.Duration
	// PassTimeout bounds a single pass (default: Interval)
	PassTimeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{Interval: 30 * time.Second}
}

// PassResult sums one pass over every owner.
type PassResult struct {
	Users  int
	Synced int
	Failed int
}

// ReconcileProcessor periodically replays cached records for every user
// found in the local store.
type ReconcileProcessor struct {
	owners    OwnerLister
	reconcile ReconcileFunc
	config    Config
	logger    *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewReconcileProcessor(owners OwnerLister, reconcile ReconcileFunc, config Config, logger *log.Logger) *ReconcileProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.PassTimeout <= 0 {
		config.PassTimeout = config.Interval
	}
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	return &ReconcileProcessor{
		owners:    owners,
		reconcile: reconcile,
		config:    config,
		logger:    logger,
	}
}

// Start runs a pass immediately and then one per interval. Returns an error
// if already running.
func (p *ReconcileProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("reconcile processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Reconcile processor started", "interval", p.config.Interval)
	return nil
}

// Stop signals the loop and waits for the current pass to finish or ctx to
// expire.
func (p *ReconcileProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Reconcile processor stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Reconcile processor stop timed out")
		return ctx.Err()
	}
}

func (p *ReconcileProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ReconcileProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.runPass(ctx)
	for {
		select {
		case <-ticker.C:
			p.runPass(ctx)
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (p *ReconcileProcessor) runPass(ctx context.Context) {
	passCtx, cancel := context.WithTimeout(ctx, p.config.PassTimeout)
	defer cancel()
	p.RunOnce(passCtx)
}

// RunOnce reconciles every owner once. A failing user does not stop the
// pass.
func (p *ReconcileProcessor) RunOnce(ctx context.Context) PassResult {
	var res PassResult
	for _, userID := range p.owners.Owners() {
		if ctx.Err() != nil {
			break
		}
		r, err := p.reconcile(ctx, userID)
		res.Users++
		res.Synced += r.Synced
		res.Failed += r.Failed
		if err != nil {
			p.logger.Failure(ctx, "Reconcile pass for user failed", log.OpReconcile, err, log.FieldUserID, userID)
		}
	}

	if res.Synced > 0 || res.Failed > 0 {
		p.logger.InfoContext(ctx, "Reconcile pass completed",
			"users", res.Users, "synced", res.Synced, "failed", res.Failed)
	}
	return res
}
