package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"escrowtrace/internal/analyzer"
	inputredis "escrowtrace/internal/input/redis"
	"escrowtrace/internal/logger"
	"escrowtrace/internal/metrics"
	"escrowtrace/internal/reportstore"
	"escrowtrace/internal/rules"
	"escrowtrace/internal/transform/escrowlog"
	"escrowtrace/pkg/models"
)

// SessionPipeline consumes completed session logs from Redis, analyzes
// each one, and writes the resulting reports in batches.
type SessionPipeline struct {
	consumer      *inputredis.Consumer
	engine        rules.Engine
	writer        ReportWriter
	store         *reportstore.RedisStore
	workers       int
	batchSize     int
	flushInterval time.Duration
	skipMalformed bool
}

// NewSessionPipeline creates a pipeline. The store is optional; a nil
// store disables the report index.
func NewSessionPipeline(consumer *inputredis.Consumer, engine rules.Engine, writer ReportWriter, store *reportstore.RedisStore, workers, batchSize int, flushInterval time.Duration, skipMalformed bool) *SessionPipeline {
	return &SessionPipeline{
		consumer:      consumer,
		engine:        engine,
		writer:        writer,
		store:         store,
		workers:       workers,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		skipMalformed: skipMalformed,
	}
}

// Run starts the pipeline loop and blocks until ctx is canceled.
func (p *SessionPipeline) Run(ctx context.Context) error {
	logger.Infof("Session pipeline started")

	if p.workers <= 0 {
		p.workers = 4
	}
	if p.batchSize <= 0 {
		p.batchSize = 50
	}
	if p.flushInterval <= 0 {
		p.flushInterval = 2 * time.Second
	}

	keyCh := make(chan string, p.workers*4)
	reportCh := make(chan *models.SessionReport, p.workers*4)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.readLoop(ctx, keyCh)
		close(keyCh)
	}()

	var workerWg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			p.workerLoop(ctx, keyCh, reportCh)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		workerWg.Wait()
		close(reportCh)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.writeLoop(ctx, reportCh)
	}()

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// Close releases pipeline resources.
func (p *SessionPipeline) Close() error {
	if p.writer != nil {
		if err := p.writer.Close(); err != nil {
			logger.Errorf("Failed to close report writer: %v", err)
		}
	}
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			logger.Errorf("Failed to close report store: %v", err)
		}
	}
	if p.consumer != nil {
		return p.consumer.Close()
	}
	return nil
}

func (p *SessionPipeline) readLoop(ctx context.Context, out chan<- string) {
	for {
		key, err := p.consumer.PopSessionKey(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, inputredis.ErrNoSession) {
				continue
			}
			logger.Errorf("Failed to pop session key: %v", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}
		select {
		case out <- key:
		case <-ctx.Done():
			return
		}
	}
}

func (p *SessionPipeline) workerLoop(ctx context.Context, in <-chan string, out chan<- *models.SessionReport) {
	for key := range in {
		report, err := p.analyzeKey(ctx, key)
		if err != nil {
			logger.Warnf("Failed to analyze session %s: %v", key, err)
			continue
		}
		select {
		case out <- report:
		case <-ctx.Done():
			return
		}
	}
}

func (p *SessionPipeline) analyzeKey(ctx context.Context, key string) (*models.SessionReport, error) {
	start := time.Now()

	data, err := p.consumer.FetchSession(ctx, key)
	if err != nil {
		return nil, err
	}

	var session *models.Session
	var skipped []int
	if p.skipMalformed {
		session, skipped, err = escrowlog.ParseSessionSkip(data)
	} else {
		session, err = escrowlog.ParseSession(data)
	}
	if err != nil {
		return nil, err
	}
	metrics.MalformedEvents.Add(float64(len(skipped)))
	for _, e := range session.Events {
		metrics.EventsParsed.WithLabelValues(e.Type).Inc()
	}

	report := analyzer.BuildReport(session, analyzer.ReportOptions{})
	report.MalformedEvents = skipped
	report.GeneratedAt = time.Now().UTC()
	if p.engine != nil {
		report.RuleMatches = rules.EvaluateSession(session, p.engine)
	}

	for _, rec := range report.Anomalies {
		metrics.AnomaliesFound.WithLabelValues(rec.EventType).Inc()
	}
	metrics.SessionsAnalyzed.WithLabelValues(report.Severity).Inc()
	metrics.ObserveAnalysis(start)

	return report, nil
}

func (p *SessionPipeline) writeLoop(ctx context.Context, in <-chan *models.SessionReport) {
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	var batch []*models.SessionReport

	flush := func() {
		if len(batch) == 0 {
			return
		}
		for {
			if err := p.writer.WriteBatch(batch); err != nil {
				metrics.WriteFailures.Inc()
				logger.Errorf("Failed to write report batch: %v", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(1 * time.Second):
				}
				continue
			}
			break
		}
		if p.store != nil {
			if err := p.store.SaveBatch(ctx, batch); err != nil {
				logger.Errorf("Failed to index report batch: %v", err)
			}
		}
		batch = nil
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-ticker.C:
			flush()
		case report, ok := <-in:
			if !ok {
				flush()
				return
			}
			batch = append(batch, report)
			if len(batch) >= p.batchSize {
				flush()
			}
		}
	}
}
