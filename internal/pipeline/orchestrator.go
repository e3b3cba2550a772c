package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dgallion1/qcsr/internal/config"
	"github.com/dgallion1/qcsr/internal/extract"
	"github.com/dgallion1/qcsr/internal/resultstore"
)

// ErrQueueFull is returned by Submit when no queue slot is free.
type ErrQueueFull struct {
	Size int
}

func (e *ErrQueueFull) Error() string {
	return fmt.Sprintf("job queue is full (%d)", e.Size)
}

// Orchestrator manages the report extraction pipeline.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	store   resultstore.Store
	metrics *Metrics
	stats   *DurationStats
	log     zerolog.Logger
	cfg     *config.Config
	x       *extract.Extractor

	cleanupEvery time.Duration

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg *config.Config, store resultstore.Store, m *Metrics, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:         NewJobStore(cfg.JobTTL),
		queue:        make(chan *Job, cfg.MaxQueueSize),
		store:        store,
		metrics:      m,
		stats:        NewDurationStats(time.Hour),
		log:          log,
		cfg:          cfg,
		x:            extract.New(cfg.Titles()...),
		cleanupEvery: 5 * time.Minute,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	workers := max(o.cfg.WorkerCount, 1)
	for i := 0; i < workers; i++ {
		i := i // per-iteration copy (Go 1.22 loop semantics)
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.x, o.store, o.metrics, o.stats, o.log.With().Int("worker", i).Logger())
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.observeQueue()
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(o.cleanupEvery)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				if n := o.jobs.Cleanup(); n > 0 {
					o.log.Debug().Int("removed", n).Msg("expired jobs removed")
				}
			}
		}
	}()
	o.log.Info().Int("workers", workers).Int("queue_size", cap(o.queue)).Msg("pipeline started")
}

// Stop shuts down the pipeline. Jobs still waiting in the queue are failed
// with phase "shutdown".
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()

	drained := 0
	for job := range o.queue {
		job.AddError("shutdown: pipeline stopped before the job ran")
		job.SetStatus(StatusFailed, "shutdown")
		if o.metrics != nil {
			o.metrics.JobsTotal.WithLabelValues(string(StatusFailed)).Inc()
		}
		drained++
	}
	o.observeQueue()
	if drained > 0 {
		o.log.Warn().Int("jobs", drained).Msg("queued jobs failed at shutdown")
	}
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		job.SetStatus(StatusFailed, "shutdown")
		return fmt.Errorf("pipeline is stopped")
	}
	select {
	case o.queue <- job:
		o.observeQueue()
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return &ErrQueueFull{Size: cap(o.queue)}
	}
}

func (o *Orchestrator) observeQueue() {
	if o.metrics != nil {
		o.metrics.QueueDepth.Set(float64(len(o.queue)))
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Store returns the result store for direct use by API handlers.
func (o *Orchestrator) Store() resultstore.Store {
	return o.store
}

// Extractor returns the extractor configured with the service's root titles.
func (o *Orchestrator) Extractor() *extract.Extractor {
	return o.x
}

// Stats returns the extraction latency window shared by all workers.
func (o *Orchestrator) Stats() *DurationStats {
	return o.stats
}
