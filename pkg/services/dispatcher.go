package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/aimonitoring/alert-engine/pkg/models"
	"github.com/aimonitoring/alert-engine/pkg/notification"
	"github.com/aimonitoring/alert-engine/pkg/store"
)

// DispatcherConfig holds dispatcher tunables
type DispatcherConfig struct {
	// SendTimeout bounds channel connection tests. Delivery attempts
	// are bounded per attempt inside each driver so retries are never
	// starved by an earlier timed-out attempt.
	SendTimeout time.Duration
}

// Dispatcher orchestrates alert creation and notification fan-out for
// triggered rules. Alert creation is the commit point: once persisted,
// the alert exists regardless of notification outcomes.
type Dispatcher struct {
	st        store.Store
	limiter   *RateLimiter
	notifiers notification.Registry
	cfg       DispatcherConfig

	// Per-rule locks serialize triggers for the same rule with respect
	// to rate limiter state.
	mu        sync.Mutex
	ruleLocks map[string]*sync.Mutex
}

// NewDispatcher creates a dispatcher
func NewDispatcher(st store.Store, limiter *RateLimiter, notifiers notification.Registry, cfg DispatcherConfig) *Dispatcher {
	if cfg.SendTimeout == 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &Dispatcher{
		st:        st,
		limiter:   limiter,
		notifiers: notifiers,
		cfg:       cfg,
		ruleLocks: make(map[string]*sync.Mutex),
	}
}

func (d *Dispatcher) ruleLock(ruleID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l := d.ruleLocks[ruleID]
	if l == nil {
		l = &sync.Mutex{}
		d.ruleLocks[ruleID] = l
	}
	return l
}

// HandleTrigger creates an alert for a triggered rule and fans it out
// to the rule's enabled channels. Suppression by rate limit is a normal
// outcome, not an error.
func (d *Dispatcher) HandleTrigger(ctx context.Context, rule *models.AlertRule, anomaly *models.AnomalyDetection) (*models.DispatchResult, error) {
	lock := d.ruleLock(rule.ID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()
	cooldown := time.Duration(rule.CooldownMinutes) * time.Minute

	// The feed is at-least-once: a redelivered anomaly must not consume
	// a rate limit slot, the window counts created alerts.
	if anomaly.LogID != "" {
		existing, err := d.st.FindAlertByRuleAndAnomaly(ctx, rule.ID, anomaly.LogID)
		if err == nil {
			logrus.Infof("Alert for rule %s anomaly %s already exists (%s), skipping", rule.ID, anomaly.LogID, existing.ID)
			return &models.DispatchResult{
				Status:  models.DispatchStatusCreated,
				AlertID: existing.ID,
				RuleID:  rule.ID,
				Reason:  "duplicate anomaly",
			}, nil
		}
		if !errors.Is(err, store.ErrAlertNotFound) {
			return nil, fmt.Errorf("find existing alert: %w", err)
		}
	}

	decision := d.limiter.TryAcquire(rule.ID, rule.Severity, cooldown, now)
	if decision == Suppressed {
		// Audit event: suppressions are logged, never silent.
		logrus.Warnf("Alert suppressed by rate limit: rule=%s anomaly=%s", rule.Name, anomaly.LogID)
		return &models.DispatchResult{
			Status:     models.DispatchStatusSuppressed,
			RuleID:     rule.ID,
			Suppressed: true,
			Reason:     "rate limit exceeded",
		}, nil
	}
	if decision == OverrideBypass {
		logrus.Warnf("CRITICAL alert bypassing rate limit: rule=%s anomaly=%s", rule.Name, anomaly.LogID)
	}

	alert := d.buildAlert(rule, anomaly, now)
	created, err := d.st.CreateAlert(ctx, alert)
	if err != nil {
		d.limiter.Release(rule.ID, now)
		return nil, fmt.Errorf("create alert: %w", err)
	}
	if !created {
		// Another instance created the alert between the dedupe check
		// and the insert; give the slot back and do not notify again.
		d.limiter.Release(rule.ID, now)
		existing, err := d.st.FindAlertByRuleAndAnomaly(ctx, rule.ID, anomaly.LogID)
		if err != nil {
			return nil, fmt.Errorf("find existing alert: %w", err)
		}
		logrus.Infof("Alert for rule %s anomaly %s already exists (%s), skipping", rule.ID, anomaly.LogID, existing.ID)
		return &models.DispatchResult{
			Status:  models.DispatchStatusCreated,
			AlertID: existing.ID,
			RuleID:  rule.ID,
			Reason:  "duplicate anomaly",
		}, nil
	}
	logrus.Infof("Alert created: id=%s rule=%s severity=%s", alert.ID, rule.Name, alert.Severity)

	if err := d.st.RecordRuleTriggered(ctx, rule.ID, now); err != nil {
		logrus.Errorf("Failed to record trigger for rule %s: %v", rule.ID, err)
	}

	outcomes, notifyErr := d.notify(ctx, alert)

	result := &models.DispatchResult{
		Status:   models.DispatchStatusCreated,
		AlertID:  alert.ID,
		RuleID:   rule.ID,
		Outcomes: outcomes,
	}
	if notifyErr != nil {
		// The alert exists but nothing was sent; that is not the same
		// as a dashboard-only rule with no channels.
		result.Status = models.DispatchStatusCreatedWithFailures
		result.Reason = notifyErr.Error()
	} else if result.FailureCount() > 0 {
		result.Status = models.DispatchStatusCreatedWithFailures
	}
	return result, nil
}

// Notify fans an existing alert out to its rule's enabled channels,
// used for manual notification retries.
func (d *Dispatcher) Notify(ctx context.Context, alert *models.Alert) ([]models.ChannelOutcome, error) {
	return d.notify(ctx, alert)
}

// notify sends the alert through every enabled channel bound to its
// rule. Sends run concurrently; one channel's failure never blocks or
// fails the others. A non-nil error means the channels could not be
// loaded and no sends were attempted.
func (d *Dispatcher) notify(ctx context.Context, alert *models.Alert) ([]models.ChannelOutcome, error) {
	channels, err := d.st.FindEnabledChannelsByRule(ctx, alert.RuleID)
	if err != nil {
		logrus.Errorf("Failed to load channels for rule %s: %v", alert.RuleID, err)
		return nil, fmt.Errorf("load notification channels: %w", err)
	}
	if len(channels) == 0 {
		// Rules without channels are dashboard-only, not an error.
		logrus.Debugf("No enabled notification channels for rule %s", alert.RuleID)
		return nil, nil
	}

	outcomes := make([]models.ChannelOutcome, len(channels))
	var wg sync.WaitGroup
	for i, channel := range channels {
		wg.Add(1)
		go func(i int, channel *models.NotificationChannel) {
			defer wg.Done()
			outcomes[i] = d.sendOne(ctx, alert, channel)
		}(i, channel)
	}
	wg.Wait()

	d.recordOutcomes(ctx, alert, outcomes)
	return outcomes, nil
}

func (d *Dispatcher) sendOne(ctx context.Context, alert *models.Alert, channel *models.NotificationChannel) models.ChannelOutcome {
	outcome := models.ChannelOutcome{
		ChannelID:   channel.ID,
		ChannelType: channel.Type,
	}

	driver, ok := d.notifiers.For(channel.Type)
	if !ok {
		outcome.Error = fmt.Sprintf("no driver for channel type %s", channel.Type)
		logrus.Errorf("No notification driver for channel %s type %s", channel.ID, channel.Type)
		return outcome
	}
	if !driver.Enabled() {
		outcome.Error = fmt.Sprintf("%s notifications are disabled", channel.Type)
		logrus.Debugf("Notification driver %s is disabled", channel.Type)
		return outcome
	}

	// Drivers bound each delivery attempt themselves, so a retrying
	// driver keeps its full per-attempt budget on every try. The
	// context only carries caller cancellation here.
	start := time.Now()
	err := driver.Send(ctx, alert, channel)
	outcome.Duration = time.Since(start)
	if err != nil {
		outcome.Error = err.Error()
		logrus.Errorf("Notification via channel %s failed for alert %s: %v", channel.ID, alert.ID, err)
	} else {
		outcome.Success = true
	}
	return outcome
}

func (d *Dispatcher) recordOutcomes(ctx context.Context, alert *models.Alert, outcomes []models.ChannelOutcome) {
	now := time.Now()
	failures := 0
	successes := 0
	var lastError string
	for _, o := range outcomes {
		if o.Success {
			successes++
			if err := d.st.RecordChannelSuccess(ctx, o.ChannelID, now); err != nil {
				logrus.Errorf("Failed to record success for channel %s: %v", o.ChannelID, err)
			}
		} else {
			failures++
			lastError = o.Error
			if err := d.st.RecordChannelFailure(ctx, o.ChannelID, now); err != nil {
				logrus.Errorf("Failed to record failure for channel %s: %v", o.ChannelID, err)
			}
		}
	}

	if err := d.st.MarkNotificationResult(ctx, alert.ID, successes > 0, failures, lastError); err != nil {
		logrus.Errorf("Failed to mark notification result for alert %s: %v", alert.ID, err)
	}
	logrus.Infof("Notification dispatch complete for alert %s: success=%d failures=%d", alert.ID, successes, failures)
}

// TestChannel sends a synthetic payload through a channel's driver.
// Independent of the dispatch path; never mutates health counters.
func (d *Dispatcher) TestChannel(ctx context.Context, channelID string) (bool, error) {
	channel, err := d.st.FindChannel(ctx, channelID)
	if err != nil {
		return false, err
	}
	driver, ok := d.notifiers.For(channel.Type)
	if !ok {
		return false, fmt.Errorf("no driver for channel type %s", channel.Type)
	}
	if !driver.Enabled() {
		logrus.Warnf("Notification driver %s is disabled", channel.Type)
		return false, nil
	}

	testCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()
	return driver.TestConnection(testCtx, channel), nil
}

func (d *Dispatcher) buildAlert(rule *models.AlertRule, anomaly *models.AnomalyDetection, now time.Time) *models.Alert {
	service := anomaly.Service
	if service == "" {
		service = "unknown"
	}

	var desc strings.Builder
	desc.WriteString("An anomaly was detected by the ML service.\n\n")
	desc.WriteString(fmt.Sprintf("Confidence: %.2f%%\n", anomaly.Confidence*100))
	desc.WriteString(fmt.Sprintf("Anomaly Score: %.2f\n", anomaly.Score))
	if anomaly.Message != "" {
		desc.WriteString(fmt.Sprintf("\nLog Message: %s\n", anomaly.Message))
	}
	if anomaly.Level != "" {
		desc.WriteString(fmt.Sprintf("Log Level: %s\n", anomaly.Level))
	}
	desc.WriteString(fmt.Sprintf("\nDetected At: %s", anomaly.DetectedAt.Format(time.RFC3339)))

	return &models.Alert{
		ID:          uuid.New().String(),
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		RuleType:    rule.Type,
		Status:      models.AlertStatusOpen,
		Severity:    rule.Severity,
		Title:       fmt.Sprintf("Anomaly Detected: %s - %s", rule.Name, service),
		Description: desc.String(),
		Service:     anomaly.Service,
		AnomalyID:   anomaly.LogID,
		LogID:       anomaly.LogID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
