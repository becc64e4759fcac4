package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Start runs the async loop when enabled and blocks until ctx is cancelled
func (p *Processor) Start(ctx context.Context) error {
	if p.opts.AsyncEnabled {
		p.asyncMu.Lock()
		p.asyncBase = ctx
		p.asyncMu.Unlock()

		if err := p.StartAsync(); err != nil {
			return err
		}
	} else {
		slog.Info("processor: async processing disabled, running in on-demand mode")
	}

	<-ctx.Done()
	p.StopAsync()
	return nil
}

// StartAsync starts or restarts the periodic loop
func (p *Processor) StartAsync() error {
	p.asyncMu.Lock()
	defer p.asyncMu.Unlock()

	if !p.opts.AsyncEnabled {
		return fmt.Errorf("async processing is not enabled in config")
	}
	if p.opts.Interval <= 0 {
		return fmt.Errorf("processor interval must be positive")
	}

	// If already running, don't restart
	if p.asyncTicker != nil && !p.asyncStopped {
		slog.Info("processor: async processing is already running")
		return nil
	}

	// Cancel old context if exists
	if p.asyncCancel != nil {
		p.asyncCancel()
	}
	parent := p.asyncBase
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	p.asyncCancel = cancel

	p.asyncStopped = false
	if p.asyncTicker != nil {
		p.asyncTicker.Stop()
	}
	p.asyncTicker = time.NewTicker(p.opts.Interval)

	slog.Info("processor: starting async processing", "interval", p.opts.Interval)
	go p.runAsync(ctx, p.asyncTicker)
	return nil
}

func (p *Processor) runAsync(ctx context.Context, ticker *time.Ticker) {
	// Run immediately on start
	p.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("processor: stopping async processing")
			return
		case <-ticker.C:
			if !p.IsAsyncRunning() {
				return
			}
			p.runOnce(ctx)
		}
	}
}

func (p *Processor) runOnce(ctx context.Context) {
	if _, err := p.ProcessAll(ctx); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			slog.Info("processor: async: previous run still in progress, skipping")
			return
		}
		if ctx.Err() == nil {
			slog.Error("processor: async: run failed", "error", err)
		}
	}
}

// StopAsync stops the periodic loop; a run in flight is cancelled
func (p *Processor) StopAsync() {
	p.asyncMu.Lock()
	defer p.asyncMu.Unlock()

	if !p.asyncStopped && p.asyncTicker != nil {
		p.asyncStopped = true
		p.asyncTicker.Stop()
		if p.asyncCancel != nil {
			p.asyncCancel()
		}
		slog.Info("processor: async processing stopped")
	}
}

// IsAsyncRunning returns true if async processing is currently running
func (p *Processor) IsAsyncRunning() bool {
	p.asyncMu.RLock()
	defer p.asyncMu.RUnlock()
	return p.asyncTicker != nil && !p.asyncStopped
}
