package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/aimonitoring/alert-engine/pkg/models"
	"github.com/aimonitoring/alert-engine/pkg/store"
)

// Thresholds for the fast critical scan. An anomaly must clear both to
// qualify.
const (
	criticalMinConfidence = 0.8
	criticalMinScore      = 0.8
)

// MonitorConfig holds the anomaly monitoring schedule settings
type MonitorConfig struct {
	Enabled   bool
	Interval  time.Duration
	Lookback  time.Duration
	BatchSize int
	Workers   int

	// CriticalInterval is the cadence of the fast scan for
	// high-confidence anomalies
	CriticalInterval time.Duration
}

// MonitorStatus summarizes the monitor's state
type MonitorStatus struct {
	Enabled       bool      `json:"enabled"`
	LastCheckTime time.Time `json:"lastCheckTime"`
	Lookback      string    `json:"lookback"`
	BatchSize     int       `json:"batchSize"`
}

// AnomalyMonitor periodically polls the anomaly feed for unprocessed
// records and runs each through rule evaluation and dispatch. The
// watermark is persisted through the store so restarts and multiple
// instances do not reprocess the feed; alert creation is idempotent per
// anomaly, so at-least-once delivery is safe.
type AnomalyMonitor struct {
	st         store.Store
	engine     *RuleEngine
	dispatcher *Dispatcher
	cfg        MonitorConfig

	cron *cron.Cron

	mu        sync.Mutex
	lastCheck time.Time
}

// NewAnomalyMonitor creates the monitor
func NewAnomalyMonitor(st store.Store, engine *RuleEngine, dispatcher *Dispatcher, cfg MonitorConfig) *AnomalyMonitor {
	if cfg.Interval == 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.Lookback == 0 {
		cfg.Lookback = 5 * time.Minute
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	if cfg.CriticalInterval == 0 {
		cfg.CriticalInterval = 30 * time.Second
	}
	return &AnomalyMonitor{
		st:         st,
		engine:     engine,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

// Start schedules the periodic tick. The initial watermark is loaded
// from the store so a restart resumes where the previous instance
// stopped.
func (m *AnomalyMonitor) Start(ctx context.Context) error {
	if !m.cfg.Enabled {
		logrus.Info("Anomaly monitoring is disabled")
		return nil
	}

	watermark, err := m.st.LoadWatermark(ctx)
	if err != nil {
		return fmt.Errorf("load watermark: %w", err)
	}
	m.mu.Lock()
	if watermark.IsZero() {
		watermark = time.Now().Add(-m.cfg.Lookback)
	}
	m.lastCheck = watermark
	m.mu.Unlock()

	m.cron = cron.New()
	spec := fmt.Sprintf("@every %s", m.cfg.Interval)
	if _, err := m.cron.AddFunc(spec, func() {
		if err := m.RunOnce(context.Background()); err != nil {
			logrus.Errorf("Anomaly monitoring tick failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule monitor tick: %w", err)
	}
	criticalSpec := fmt.Sprintf("@every %s", m.cfg.CriticalInterval)
	if _, err := m.cron.AddFunc(criticalSpec, func() {
		if err := m.RunCriticalScan(context.Background()); err != nil {
			logrus.Errorf("Critical anomaly scan failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule critical scan: %w", err)
	}
	m.cron.Start()
	logrus.Infof("Anomaly monitor started: interval=%s critical=%s lookback=%s batch=%d",
		m.cfg.Interval, m.cfg.CriticalInterval, m.cfg.Lookback, m.cfg.BatchSize)
	return nil
}

// Stop cancels the schedule and waits for any running tick to finish
func (m *AnomalyMonitor) Stop() {
	if m.cron == nil {
		return
	}
	ctx := m.cron.Stop()
	<-ctx.Done()
	logrus.Info("Anomaly monitor stopped")
}

// RunOnce performs a single monitoring tick. On feed failure the tick
// aborts without advancing the watermark, so the next tick retries the
// same window; reprocessing is preferred over data loss.
func (m *AnomalyMonitor) RunOnce(ctx context.Context) error {
	m.mu.Lock()
	since := m.lastCheck.Add(-m.cfg.Lookback)
	m.mu.Unlock()

	tickStart := time.Now()
	logrus.Debugf("Anomaly monitoring check from %s", since.Format(time.RFC3339))

	anomalies, err := m.st.FetchUnprocessedAnomalies(ctx, since, m.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("fetch anomalies: %w", err)
	}
	if len(anomalies) == 0 {
		logrus.Debug("No new anomalies found")
	} else {
		logrus.Infof("Found %d unprocessed anomalies", len(anomalies))
		m.processBatch(ctx, anomalies)
	}

	m.mu.Lock()
	m.lastCheck = tickStart
	m.mu.Unlock()
	if err := m.st.SaveWatermark(ctx, tickStart); err != nil {
		logrus.Errorf("Failed to save watermark: %v", err)
	}
	return nil
}

// RunCriticalScan checks the recent feed for high-confidence anomalies
// on a faster cadence than the main tick, so severe incidents are not
// stuck behind the regular interval. The scan never touches the
// watermark; alert creation is idempotent per anomaly, so overlapping
// the main tick is harmless.
func (m *AnomalyMonitor) RunCriticalScan(ctx context.Context) error {
	since := time.Now().Add(-m.cfg.Lookback)
	anomalies, err := m.st.FetchCriticalAnomalies(ctx, since, criticalMinConfidence, criticalMinScore, m.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("fetch critical anomalies: %w", err)
	}
	if len(anomalies) == 0 {
		return nil
	}
	logrus.Warnf("Found %d critical anomalies requiring immediate attention", len(anomalies))
	m.processBatch(ctx, anomalies)
	return nil
}

// processBatch evaluates and dispatches anomalies through a bounded
// worker pool. Anomalies are independent; per-rule serialization is the
// dispatcher's concern.
func (m *AnomalyMonitor) processBatch(ctx context.Context, anomalies []*models.AnomalyDetection) {
	sem := make(chan struct{}, m.cfg.Workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	processed, triggered := 0, 0

	for _, anomaly := range anomalies {
		if ctx.Err() != nil {
			logrus.Warn("Anomaly batch cancelled")
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(anomaly *models.AnomalyDetection) {
			defer wg.Done()
			defer func() { <-sem }()
			n, err := m.processOne(ctx, anomaly)
			if err != nil {
				logrus.Errorf("Error processing anomaly %s: %v", anomaly.LogID, err)
				return
			}
			mu.Lock()
			processed++
			triggered += n
			mu.Unlock()
		}(anomaly)
	}
	wg.Wait()

	logrus.Infof("Anomaly monitoring complete. Processed: %d, Alerts triggered: %d", processed, triggered)
}

// processOne evaluates rules for a single anomaly and dispatches every
// match. Returns the number of triggered rules.
func (m *AnomalyMonitor) processOne(ctx context.Context, anomaly *models.AnomalyDetection) (int, error) {
	rules, err := m.engine.MatchingRules(ctx, anomaly)
	if err != nil {
		return 0, err
	}

	triggered := 0
	for _, rule := range rules {
		logrus.Infof("Rule %s triggered for anomaly %s", rule.Name, anomaly.LogID)
		result, err := m.dispatcher.HandleTrigger(ctx, rule, anomaly)
		if err != nil {
			logrus.Errorf("Dispatch failed for rule %s anomaly %s: %v", rule.ID, anomaly.LogID, err)
			continue
		}
		if !result.Suppressed {
			triggered++
		}
	}
	return triggered, nil
}

// AnomalyStatistics summarizes the feed over the lookback window:
// total anomalous records, how many fall inside the unprocessed fetch,
// and how many clear the critical thresholds.
func (m *AnomalyMonitor) AnomalyStatistics(ctx context.Context) (*models.AnomalyStatistics, error) {
	since := time.Now().Add(-m.cfg.Lookback)

	total, err := m.st.CountAnomaliesSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("count anomalies: %w", err)
	}
	unprocessed, err := m.st.FetchUnprocessedAnomalies(ctx, since, m.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("fetch anomalies: %w", err)
	}
	critical, err := m.st.FetchCriticalAnomalies(ctx, since, criticalMinConfidence, criticalMinScore, m.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("fetch critical anomalies: %w", err)
	}

	m.mu.Lock()
	lastCheck := m.lastCheck
	m.mu.Unlock()

	return &models.AnomalyStatistics{
		Total:         total,
		Unprocessed:   int64(len(unprocessed)),
		Critical:      int64(len(critical)),
		TimeWindow:    m.cfg.Lookback.String(),
		LastCheckTime: lastCheck,
	}, nil
}

// Status returns the monitor's current state
func (m *AnomalyMonitor) Status() MonitorStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MonitorStatus{
		Enabled:       m.cfg.Enabled,
		LastCheckTime: m.lastCheck,
		Lookback:      m.cfg.Lookback.String(),
		BatchSize:     m.cfg.BatchSize,
	}
}
