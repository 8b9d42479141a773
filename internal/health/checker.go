// Package health audits the integrity of the live ledger on a schedule and
// publishes the result to metrics and the gRPC health service.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/jmerrifield20/starregistry/internal/chain"
	"go.uber.org/zap"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported by the auditor.
const ServiceName = "starregistry.Ledger"

// Config holds audit configuration.
type Config struct {
	AuditInterval time.Duration
	SyncTimeout   time.Duration
}

// Ledger is the part of the chain the auditor inspects.
// *chain.Blockchain satisfies this interface.
type Ledger interface {
	Blocks() []*chain.Block
}

// MetricsRecordFunc is an optional callback for recording audit results.
type MetricsRecordFunc func(height int, valid bool)

// ArchiveSyncFunc is an optional callback that copies the ledger into the archive.
type ArchiveSyncFunc func(ctx context.Context) error

// Report is the outcome of one audit.
type Report struct {
	Height    int       `json:"height"`
	Valid     bool      `json:"valid"`
	Errors    []string  `json:"errors,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Auditor runs periodic ledger integrity checks.
type Auditor struct {
	ledger     Ledger
	cfg        Config
	grpcHealth *grpchealth.Server
	onMetrics  MetricsRecordFunc
	onSync     ArchiveSyncFunc
	mu         sync.RWMutex
	last       Report
	logger     *zap.Logger
}

// New creates a new Auditor.
func New(ledger Ledger, cfg Config, logger *zap.Logger) *Auditor {
	if cfg.AuditInterval == 0 {
		cfg.AuditInterval = time.Minute
	}
	if cfg.SyncTimeout == 0 {
		cfg.SyncTimeout = 10 * time.Second
	}

	return &Auditor{
		ledger: ledger,
		cfg:    cfg,
		logger: logger,
	}
}

// SetHealthServer configures the gRPC health server whose ServiceName status
// follows the audit result.
func (a *Auditor) SetHealthServer(srv *grpchealth.Server) {
	a.grpcHealth = srv
}

// SetMetricsRecord configures the metrics recording callback.
func (a *Auditor) SetMetricsRecord(fn MetricsRecordFunc) {
	a.onMetrics = fn
}

// SetArchiveSync configures the archive sync callback run after each audit.
func (a *Auditor) SetArchiveSync(fn ArchiveSyncFunc) {
	a.onSync = fn
}

// Run audits immediately and then on every tick until ctx is cancelled. It
// returns only after the audit in progress, including its archive sync, has
// finished.
func (a *Auditor) Run(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.AuditInterval)
	defer ticker.Stop()

	a.AuditOnce(ctx)
	for {
		select {
		case <-ticker.C:
			a.AuditOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// AuditOnce validates one snapshot of the ledger, publishes the result and
// returns it. The archive sync is skipped once ctx is done.
func (a *Auditor) AuditOnce(ctx context.Context) Report {
	blocks := a.ledger.Blocks()
	errs := chain.Validate(blocks)
	report := Report{
		Height:    len(blocks) - 1,
		Valid:     len(errs) == 0,
		Errors:    errs,
		CheckedAt: time.Now().UTC(),
	}

	a.mu.Lock()
	prev := a.last
	a.last = report
	a.mu.Unlock()

	if a.onMetrics != nil {
		a.onMetrics(report.Height, report.Valid)
	}

	if a.grpcHealth != nil {
		status := healthpb.HealthCheckResponse_SERVING
		if !report.Valid {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		a.grpcHealth.SetServingStatus(ServiceName, status)
	}

	switch {
	case !report.Valid:
		a.logger.Error("ledger integrity check failed",
			zap.Int("height", report.Height),
			zap.Strings("errors", report.Errors),
		)
	case !prev.CheckedAt.IsZero() && !prev.Valid:
		a.logger.Info("ledger integrity restored", zap.Int("height", report.Height))
	default:
		a.logger.Debug("ledger verified", zap.Int("height", report.Height))
	}

	if a.onSync != nil && ctx.Err() == nil {
		syncCtx, cancel := context.WithTimeout(ctx, a.cfg.SyncTimeout)
		if err := a.onSync(syncCtx); err != nil {
			a.logger.Warn("archive sync failed", zap.Error(err))
		}
		cancel()
	}

	return report
}

// Last returns the most recent report. Its CheckedAt is zero before the
// first audit.
func (a *Auditor) Last() Report {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last
}
