package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dgallion1/qcsr/internal/decoder"
	"github.com/dgallion1/qcsr/internal/extract"
	"github.com/dgallion1/qcsr/internal/results"
	"github.com/dgallion1/qcsr/internal/resultstore"
	"github.com/dgallion1/qcsr/internal/srtree"
)

// Worker processes a single report job.
type Worker struct {
	extractor *extract.Extractor
	store     resultstore.Store
	metrics   *Metrics
	stats     *DurationStats
	log       zerolog.Logger
	tracer    trace.Tracer

	backoff func(attempt int) time.Duration
}

func NewWorker(x *extract.Extractor, store resultstore.Store, m *Metrics, stats *DurationStats, log zerolog.Logger) *Worker {
	if x == nil {
		x = extract.New()
	}
	if store == nil {
		store = resultstore.Nop{}
	}
	return &Worker{
		extractor: x,
		store:     store,
		metrics:   m,
		stats:     stats,
		log:       log,
		tracer:    otel.Tracer(tracerName),
		backoff:   Backoff,
	}
}

// Process runs decode, dedup, extract, publish and store for a job. The
// outcome is recorded on the job; Process never returns an error.
func (w *Worker) Process(ctx context.Context, job *Job) {
	ctx, span := w.tracer.Start(ctx, "report.process", trace.WithAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.filename", job.Filename),
	))
	defer span.End()

	log := w.log.With().Str("job_id", job.ID).Str("filename", job.Filename).Logger()

	fail := func(phase string, err error) {
		log.Error().Err(err).Str("phase", phase).Msg("job failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, phase)
		job.AddError(fmt.Sprintf("%s: %s", phase, err))
		w.finish(job, StatusFailed, phase)
	}

	// Phase 1: Decode
	job.SetStatus(StatusDecoding, "decoding")
	data := job.FileData()
	hash := resultstore.ContentHash(data)
	doc, err := w.decode(ctx, data, job.Filename)
	if err != nil {
		fail("decoding", err)
		return
	}
	rep := resultstore.NewReport(doc, hash, job.Filename)
	rep.Sections = results.SectionKey(results.Sections(job.Params))
	job.setDocID(rep.DocID, hash)
	span.SetAttributes(attribute.String("report.doc_id", rep.DocID))
	log = log.With().Str("doc_id", rep.DocID).Logger()

	// Phase 1.5: Dedup check
	existing, err := w.store.FindByHash(ctx, hash)
	if err != nil {
		log.Warn().Err(err).Msg("dedup check failed, proceeding")
	} else if existing != nil && existing.Sections == rep.Sections {
		log.Info().Str("existing_doc_id", existing.DocID).Msg("duplicate report, skipping")
		job.setDocID(existing.DocID, hash)
		w.finish(job, StatusDupSkipped, "dedup")
		return
	} else if existing != nil {
		log.Info().Str("stored_sections", existing.Sections).Str("sections", rep.Sections).
			Msg("report stored with other sections, re-extracting")
	}

	// Phase 2: Extract
	job.SetStatus(StatusExtracting, "extracting")
	res, err := w.extract(ctx, doc)
	if err != nil {
		fail("extracting", err)
		return
	}
	job.setExtracted(srtree.CountLeaves(doc.Root), res)
	log.Info().Int("records", res.Len()).Int("dropped_leaves", res.DroppedLeaves).Msg("extraction complete")

	// Phase 3: Publish
	job.SetStatus(StatusPublishing, "publishing")
	published, err := PublishReport(doc, res, job.Params)
	if err != nil {
		fail("publishing", err)
		return
	}
	job.setPublished(published)

	// Phase 4: Store
	job.SetStatus(StatusStoring, "storing")
	if err := w.save(ctx, rep, published, log); err != nil {
		fail("storing", err)
		return
	}
	job.markStored()
	log.Info().Int("results", len(published)).Msg("report stored")

	w.finish(job, StatusCompleted, "done")
}

func (w *Worker) decode(ctx context.Context, data []byte, filename string) (*srtree.Document, error) {
	_, span := w.tracer.Start(ctx, "report.decode")
	defer span.End()
	span.SetAttributes(attribute.Int("report.bytes", len(data)))
	return decoder.ReadBytes(data, filename)
}

func (w *Worker) extract(ctx context.Context, doc *srtree.Document) (*extract.Results, error) {
	_, span := w.tracer.Start(ctx, "report.extract")
	defer span.End()

	start := time.Now()
	res, err := w.extractor.Extract(doc)
	elapsed := time.Since(start)
	if w.stats != nil {
		w.stats.Record(elapsed)
	}
	if err != nil {
		return nil, err
	}
	if w.metrics != nil {
		w.metrics.ExtractDuration.Observe(elapsed.Seconds())
		for _, b := range extract.Buckets {
			w.metrics.RecordsTotal.WithLabelValues(string(b)).Add(float64(len(res.Bucket(b))))
		}
		w.metrics.DroppedLeaves.Add(float64(res.DroppedLeaves))
	}
	span.SetAttributes(attribute.Int("report.records", res.Len()))
	return res, nil
}

func (w *Worker) save(ctx context.Context, rep resultstore.Report, published []results.Result, log zerolog.Logger) error {
	ctx, span := w.tracer.Start(ctx, "report.store")
	defer span.End()
	return retry(ctx, w.backoff, func(attempt int, err error) {
		log.Warn().Err(err).Int("attempt", attempt).Msg("retryable store error")
		if w.metrics != nil {
			w.metrics.StoreRetries.Inc()
		}
	}, func() error {
		return w.store.Save(ctx, rep, published)
	})
}

func (w *Worker) finish(job *Job, status JobStatus, phase string) {
	job.SetStatus(status, phase)
	if w.metrics != nil {
		w.metrics.JobsTotal.WithLabelValues(string(status)).Inc()
	}
}

// PublishReport emits the acquisition time, when the header has one,
// followed by the sections params select.
func PublishReport(doc *srtree.Document, res *extract.Results, params map[string]any) ([]results.Result, error) {
	c := results.NewCollector()
	if at, err := doc.AcquisitionTime(); err == nil {
		c.AddDateTime(results.AcquisitionDateTimeName, at)
	}
	if err := results.Publish(res, c, results.Sections(params)); err != nil {
		return nil, err
	}
	return c.Results(), nil
}
