package admission

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"attendly/pkg/logger"

	"github.com/google/uuid"
)

// JobProcessor runs background waitlist audits. Audits only report; repair
// stays an explicit operator action.
type JobProcessor struct {
	service Service
	config  *JobConfig
	log     *logger.Logger
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	started atomic.Bool

	// lastAudited is the highest event id audited by the previous tick.
	// Each tick continues after it, so every event gets its turn when
	// more than BatchSize events have waitlists.
	mu          sync.Mutex
	lastAudited uuid.UUID
}

// JobConfig contains configuration for background jobs
type JobConfig struct {
	AuditInterval time.Duration
	BatchSize     int
}

// DefaultJobConfig returns default job configuration
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		AuditInterval: 5 * time.Minute,
		BatchSize:     100, // events audited per tick
	}
}

func NewJobProcessor(service Service, config *JobConfig, log *logger.Logger) *JobProcessor {
	defaults := DefaultJobConfig()
	if config == nil {
		config = defaults
	}
	if log == nil {
		log = logger.GetDefault()
	}

	cfg := *config
	if cfg.AuditInterval <= 0 {
		log.Warn("Invalid audit interval, using default",
			"audit_interval", cfg.AuditInterval.String(),
			"default", defaults.AuditInterval.String())
		cfg.AuditInterval = defaults.AuditInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}

	return &JobProcessor{
		service: service,
		config:  &cfg,
		log:     log,
		done:    make(chan struct{}),
	}
}

// Start starts all background jobs
func (jp *JobProcessor) Start(ctx context.Context) {
	jp.log.Info("Starting admission background jobs", "audit_interval", jp.config.AuditInterval.String())

	jp.started.Store(true)
	jp.wg.Add(1)
	go jp.startAuditor(ctx)
}

// Stop stops all background jobs and waits for the running audit to finish
func (jp *JobProcessor) Stop() {
	jp.once.Do(func() {
		jp.log.Info("Stopping admission background jobs")
		close(jp.done)
	})
	jp.wg.Wait()
}

func (jp *JobProcessor) startAuditor(ctx context.Context) {
	defer jp.wg.Done()

	ticker := time.NewTicker(jp.config.AuditInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			jp.AuditWaitlists(ctx)
		case <-jp.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// AuditWaitlists verifies up to BatchSize events that have someone waiting
// and returns the reports of the inconsistent ones. Successive calls walk the
// events in id order, wrapping around at the end.
func (jp *JobProcessor) AuditWaitlists(ctx context.Context) []VerifyReport {
	eventIDs, err := jp.service.EventsWithWaitlist(ctx)
	if err != nil {
		jp.log.ErrorWithContext(ctx, "Failed to list events with waitlists", err, nil)
		return nil
	}
	eventIDs = jp.nextBatch(eventIDs)

	var broken []VerifyReport
	for _, eventID := range eventIDs {
		report, err := jp.service.VerifyWaitlist(ctx, eventID)
		if err != nil {
			jp.log.ErrorWithContext(ctx, "Waitlist audit failed", err, map[string]interface{}{
				"event_id": eventID.String(),
			})
			continue
		}
		if !report.Consistent {
			jp.log.WithFields(map[string]interface{}{
				"event_id": eventID.String(),
				"size":     report.Size,
				"problem":  report.Problem,
			}).Warn("Waitlist positions are inconsistent")
			broken = append(broken, *report)
		}
	}

	jp.log.DebugWithContext(ctx, "Waitlist audit finished", map[string]interface{}{
		"audited":      len(eventIDs),
		"inconsistent": len(broken),
	})
	return broken
}

// nextBatch picks the events after the last audited id.
func (jp *JobProcessor) nextBatch(eventIDs []uuid.UUID) []uuid.UUID {
	if len(eventIDs) == 0 {
		return nil
	}
	sorted := append([]uuid.UUID(nil), eventIDs...)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	jp.mu.Lock()
	defer jp.mu.Unlock()

	start := sort.Search(len(sorted), func(i int) bool {
		return bytes.Compare(sorted[i][:], jp.lastAudited[:]) > 0
	})
	n := min(jp.config.BatchSize, len(sorted))
	batch := make([]uuid.UUID, 0, n)
	for i := range n {
		batch = append(batch, sorted[(start+i)%len(sorted)])
	}
	jp.lastAudited = batch[len(batch)-1]
	return batch
}

// GetJobStatus returns the status of background jobs
func (jp *JobProcessor) GetJobStatus() map[string]interface{} {
	status := "idle"
	if jp.started.Load() {
		status = "running"
	}
	select {
	case <-jp.done:
		status = "stopped"
	default:
	}
	return map[string]interface{}{
		"audit_interval": jp.config.AuditInterval.String(),
		"batch_size":     jp.config.BatchSize,
		"status":         status,
	}
}
