package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/aimonitoring/alert-engine/pkg/models"
)

// Postgres implements Store on top of a relational database using the
// lib/pq driver. The anomaly_detections table is written by the ML
// pipeline; everything else is owned by the alert service schema.
type Postgres struct {
	db *sql.DB
}

// PostgresConfig holds the database connection settings
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// NewPostgres opens a connection pool and ensures the alert service
// tables exist.
func NewPostgres(cfg PostgresConfig) (*Postgres, error) {
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &Postgres{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Ping verifies database connectivity
func (s *Postgres) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool
func (s *Postgres) Close() error {
	return s.db.Close()
}

func (s *Postgres) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alert_rules (
			id                text PRIMARY KEY,
			name              text NOT NULL UNIQUE,
			description       text NOT NULL DEFAULT '',
			type              text NOT NULL,
			severity          text NOT NULL,
			enabled           boolean NOT NULL DEFAULT true,
			anomaly_threshold double precision,
			services          text[],
			log_levels        text[],
			cooldown_minutes  integer NOT NULL DEFAULT 15,
			notify_on_recovery boolean NOT NULL DEFAULT false,
			created_at        timestamptz NOT NULL DEFAULT now(),
			updated_at        timestamptz NOT NULL DEFAULT now(),
			last_triggered_at timestamptz,
			trigger_count     bigint NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id              text PRIMARY KEY,
			rule_id         text NOT NULL REFERENCES alert_rules(id),
			status          text NOT NULL,
			severity        text NOT NULL,
			title           text NOT NULL,
			description     text NOT NULL DEFAULT '',
			service         text NOT NULL DEFAULT '',
			anomaly_id      text NOT NULL DEFAULT '',
			log_id          text NOT NULL DEFAULT '',
			context         text NOT NULL DEFAULT '',
			created_at      timestamptz NOT NULL DEFAULT now(),
			updated_at      timestamptz NOT NULL DEFAULT now(),
			acknowledged_at timestamptz,
			acknowledged_by text NOT NULL DEFAULT '',
			resolved_at     timestamptz,
			resolved_by     text NOT NULL DEFAULT '',
			resolution_notes text NOT NULL DEFAULT '',
			notification_sent boolean NOT NULL DEFAULT false,
			notification_sent_at timestamptz,
			notification_failures integer NOT NULL DEFAULT 0,
			last_notification_error text NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_rule_id ON alerts (rule_id)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts (status)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts (created_at)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_rule_anomaly
			ON alerts (rule_id, anomaly_id) WHERE anomaly_id <> ''`,
		`CREATE TABLE IF NOT EXISTS notification_channels (
			id              text PRIMARY KEY,
			rule_id         text NOT NULL REFERENCES alert_rules(id),
			type            text NOT NULL,
			name            text NOT NULL,
			enabled         boolean NOT NULL DEFAULT true,
			recipients      text NOT NULL DEFAULT '',
			slack_webhook_url text NOT NULL DEFAULT '',
			webhook_url     text NOT NULL DEFAULT '',
			webhook_method  text NOT NULL DEFAULT '',
			webhook_headers text NOT NULL DEFAULT '',
			created_at      timestamptz NOT NULL DEFAULT now(),
			updated_at      timestamptz NOT NULL DEFAULT now(),
			success_count   bigint NOT NULL DEFAULT 0,
			failure_count   bigint NOT NULL DEFAULT 0,
			last_success_at timestamptz,
			last_failure_at timestamptz
		)`,
		`CREATE INDEX IF NOT EXISTS idx_channels_rule_id ON notification_channels (rule_id)`,
		`CREATE TABLE IF NOT EXISTS monitor_watermark (
			id          integer PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			processed_to timestamptz NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}
	logrus.Debug("alert service schema verified")
	return nil
}

const ruleColumns = `id, name, description, type, severity, enabled, anomaly_threshold,
	services, log_levels, cooldown_minutes, notify_on_recovery,
	created_at, updated_at, last_triggered_at, trigger_count`

func scanRule(row interface{ Scan(...interface{}) error }) (*models.AlertRule, error) {
	var r models.AlertRule
	var threshold sql.NullFloat64
	var lastTriggered sql.NullTime
	var services, levels pq.StringArray
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.Type, &r.Severity, &r.Enabled,
		&threshold, &services, &levels, &r.CooldownMinutes, &r.NotifyOnRecovery,
		&r.CreatedAt, &r.UpdatedAt, &lastTriggered, &r.TriggerCount)
	if err != nil {
		return nil, err
	}
	if threshold.Valid {
		r.AnomalyThreshold = &threshold.Float64
	}
	if lastTriggered.Valid {
		t := lastTriggered.Time
		r.LastTriggeredAt = &t
	}
	r.Services = []string(services)
	r.LogLevels = []string(levels)
	return &r, nil
}

// FindEnabledRulesByType returns all enabled rules of the given type
func (s *Postgres) FindEnabledRulesByType(ctx context.Context, ruleType models.RuleType) ([]*models.AlertRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM alert_rules WHERE type = $1 AND enabled = true ORDER BY name`, ruleColumns)
	rows, err := s.db.QueryContext(ctx, query, string(ruleType))
	if err != nil {
		return nil, fmt.Errorf("query enabled rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.AlertRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return rules, nil
}

// FindRule returns a rule by ID
func (s *Postgres) FindRule(ctx context.Context, id string) (*models.AlertRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM alert_rules WHERE id = $1`, ruleColumns)
	r, err := scanRule(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query rule %s: %w", id, err)
	}
	return r, nil
}

// RecordRuleTriggered bumps the rule's trigger bookkeeping
func (s *Postgres) RecordRuleTriggered(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE alert_rules SET trigger_count = trigger_count + 1, last_triggered_at = $2, updated_at = now() WHERE id = $1`,
		id, at)
	if err != nil {
		return fmt.Errorf("record rule trigger %s: %w", id, err)
	}
	return nil
}

const channelColumns = `id, rule_id, type, name, enabled, recipients, slack_webhook_url,
	webhook_url, webhook_method, webhook_headers, created_at, updated_at,
	success_count, failure_count, last_success_at, last_failure_at`

func scanChannel(row interface{ Scan(...interface{}) error }) (*models.NotificationChannel, error) {
	var c models.NotificationChannel
	var lastSuccess, lastFailure sql.NullTime
	err := row.Scan(&c.ID, &c.RuleID, &c.Type, &c.Name, &c.Enabled, &c.Recipients,
		&c.SlackWebhookURL, &c.WebhookURL, &c.WebhookMethod, &c.WebhookHeaders,
		&c.CreatedAt, &c.UpdatedAt, &c.SuccessCount, &c.FailureCount, &lastSuccess, &lastFailure)
	if err != nil {
		return nil, err
	}
	if lastSuccess.Valid {
		t := lastSuccess.Time
		c.LastSuccessAt = &t
	}
	if lastFailure.Valid {
		t := lastFailure.Time
		c.LastFailureAt = &t
	}
	return &c, nil
}

// FindEnabledChannelsByRule returns the enabled channels bound to a rule
func (s *Postgres) FindEnabledChannelsByRule(ctx context.Context, ruleID string) ([]*models.NotificationChannel, error) {
	query := fmt.Sprintf(`SELECT %s FROM notification_channels WHERE rule_id = $1 AND enabled = true ORDER BY name`, channelColumns)
	rows, err := s.db.QueryContext(ctx, query, ruleID)
	if err != nil {
		return nil, fmt.Errorf("query channels for rule %s: %w", ruleID, err)
	}
	defer rows.Close()

	var channels []*models.NotificationChannel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return channels, nil
}

// FindChannel returns a channel by ID
func (s *Postgres) FindChannel(ctx context.Context, id string) (*models.NotificationChannel, error) {
	query := fmt.Sprintf(`SELECT %s FROM notification_channels WHERE id = $1`, channelColumns)
	c, err := scanChannel(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrChannelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query channel %s: %w", id, err)
	}
	return c, nil
}

// RecordChannelSuccess increments the channel's success counter
func (s *Postgres) RecordChannelSuccess(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notification_channels SET success_count = success_count + 1, last_success_at = $2, updated_at = now() WHERE id = $1`,
		id, at)
	if err != nil {
		return fmt.Errorf("record channel success %s: %w", id, err)
	}
	return nil
}

// RecordChannelFailure increments the channel's failure counter
func (s *Postgres) RecordChannelFailure(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notification_channels SET failure_count = failure_count + 1, last_failure_at = $2, updated_at = now() WHERE id = $1`,
		id, at)
	if err != nil {
		return fmt.Errorf("record channel failure %s: %w", id, err)
	}
	return nil
}

// ChannelStatistics returns delivery counters for a channel
func (s *Postgres) ChannelStatistics(ctx context.Context, id string) (*models.ChannelStatistics, error) {
	var stats models.ChannelStatistics
	stats.ChannelID = id
	err := s.db.QueryRowContext(ctx,
		`SELECT success_count, failure_count FROM notification_channels WHERE id = $1`, id).
		Scan(&stats.SuccessCount, &stats.FailureCount)
	if err == sql.ErrNoRows {
		return nil, ErrChannelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query channel statistics %s: %w", id, err)
	}
	stats.TotalCount = stats.SuccessCount + stats.FailureCount
	return &stats, nil
}

// Alert reads join the owning rule so responses carry the rule's name
// and type without a second query.
const alertColumns = `a.id, a.rule_id, r.name, r.type, a.status, a.severity, a.title, a.description, a.service,
	a.anomaly_id, a.log_id, a.context, a.created_at, a.updated_at,
	a.acknowledged_at, a.acknowledged_by, a.resolved_at, a.resolved_by, a.resolution_notes,
	a.notification_sent, a.notification_sent_at, a.notification_failures, a.last_notification_error`

const alertFrom = `FROM alerts a JOIN alert_rules r ON r.id = a.rule_id`

func scanAlert(row interface{ Scan(...interface{}) error }) (*models.Alert, error) {
	var a models.Alert
	var acknowledgedAt, resolvedAt, notificationSentAt sql.NullTime
	err := row.Scan(&a.ID, &a.RuleID, &a.RuleName, &a.RuleType, &a.Status, &a.Severity, &a.Title, &a.Description,
		&a.Service, &a.AnomalyID, &a.LogID, &a.Context, &a.CreatedAt, &a.UpdatedAt,
		&acknowledgedAt, &a.AcknowledgedBy, &resolvedAt, &a.ResolvedBy, &a.ResolutionNotes,
		&a.NotificationSent, &notificationSentAt, &a.NotificationFailures, &a.LastNotificationError)
	if err != nil {
		return nil, err
	}
	if acknowledgedAt.Valid {
		t := acknowledgedAt.Time
		a.AcknowledgedAt = &t
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}
	if notificationSentAt.Valid {
		t := notificationSentAt.Time
		a.NotificationSentAt = &t
	}
	return &a, nil
}

// CreateAlert persists a new alert. The partial unique index on
// (rule_id, anomaly_id) makes creation idempotent per anomaly: a
// conflicting insert is a no-op and the caller gets created=false.
func (s *Postgres) CreateAlert(ctx context.Context, alert *models.Alert) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, rule_id, status, severity, title, description, service, anomaly_id, log_id, context, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		 ON CONFLICT (rule_id, anomaly_id) WHERE anomaly_id <> '' DO NOTHING`,
		alert.ID, alert.RuleID, string(alert.Status), string(alert.Severity),
		alert.Title, alert.Description, alert.Service, alert.AnomalyID, alert.LogID,
		alert.Context, alert.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert alert: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert alert rows affected: %w", err)
	}
	return affected == 1, nil
}

// FindAlert returns an alert by ID
func (s *Postgres) FindAlert(ctx context.Context, id string) (*models.Alert, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE a.id = $1`, alertColumns, alertFrom)
	a, err := scanAlert(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query alert %s: %w", id, err)
	}
	return a, nil
}

// FindAlertByRuleAndAnomaly returns the alert created for a rule+anomaly pair
func (s *Postgres) FindAlertByRuleAndAnomaly(ctx context.Context, ruleID, anomalyID string) (*models.Alert, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE a.rule_id = $1 AND a.anomaly_id = $2`, alertColumns, alertFrom)
	a, err := scanAlert(s.db.QueryRowContext(ctx, query, ruleID, anomalyID))
	if err == sql.ErrNoRows {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query alert for rule %s anomaly %s: %w", ruleID, anomalyID, err)
	}
	return a, nil
}

// TransitionAlertStatus applies a lifecycle transition with check-and-set
// semantics: the UPDATE only matches when the alert is still in the from
// state, so concurrent operator actions cannot produce lost updates.
func (s *Postgres) TransitionAlertStatus(ctx context.Context, id string, from, to models.AlertStatus, actor, notes string) (*models.Alert, error) {
	if !TransitionAllowed(from, to) {
		return nil, &InvalidTransitionError{AlertID: id, From: from, To: to}
	}

	var set string
	switch to {
	case models.AlertStatusAcknowledged:
		set = `acknowledged_at = now(), acknowledged_by = $4`
	case models.AlertStatusResolved, models.AlertStatusFalsePositive:
		set = `resolved_at = now(), resolved_by = $4, resolution_notes = $5`
	default:
		return nil, &InvalidTransitionError{AlertID: id, From: from, To: to}
	}

	query := fmt.Sprintf(
		`UPDATE alerts SET status = $3, updated_at = now(), %s WHERE id = $1 AND status = $2`, set)
	args := []interface{}{id, string(from), string(to), actor}
	if to != models.AlertStatusAcknowledged {
		args = append(args, notes)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("transition alert %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("transition alert rows affected: %w", err)
	}
	if affected == 0 {
		// Lost the check-and-set race or the caller's view was stale.
		current, findErr := s.FindAlert(ctx, id)
		if findErr != nil {
			return nil, findErr
		}
		return nil, &InvalidTransitionError{AlertID: id, From: current.Status, To: to}
	}
	return s.FindAlert(ctx, id)
}

// CountAlertsByRuleSince counts alerts created for a rule since a time
func (s *Postgres) CountAlertsByRuleSince(ctx context.Context, ruleID string, since time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM alerts WHERE rule_id = $1 AND created_at >= $2`, ruleID, since).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count alerts for rule %s: %w", ruleID, err)
	}
	return count, nil
}

// ListAlertsByStatus returns alerts in a given status, newest first
func (s *Postgres) ListAlertsByStatus(ctx context.Context, status models.AlertStatus, limit int) ([]*models.Alert, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE a.status = $1 ORDER BY a.created_at DESC LIMIT $2`, alertColumns, alertFrom)
	return s.listAlerts(ctx, query, string(status), limit)
}

// ListRecentAlerts returns alerts created since a time, newest first
func (s *Postgres) ListRecentAlerts(ctx context.Context, since time.Time, limit int) ([]*models.Alert, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE a.created_at >= $1 ORDER BY a.created_at DESC LIMIT $2`, alertColumns, alertFrom)
	return s.listAlerts(ctx, query, since, limit)
}

func (s *Postgres) listAlerts(ctx context.Context, query string, args ...interface{}) ([]*models.Alert, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return alerts, nil
}

// AlertStatistics returns alert counts grouped by status
func (s *Postgres) AlertStatistics(ctx context.Context) (*models.AlertStatistics, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, count(*) FROM alerts GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("query alert statistics: %w", err)
	}
	defer rows.Close()

	var stats models.AlertStatistics
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan alert statistics: %w", err)
		}
		switch models.AlertStatus(status) {
		case models.AlertStatusOpen:
			stats.Open = count
		case models.AlertStatusAcknowledged:
			stats.Acknowledged = count
		case models.AlertStatusResolved:
			stats.Resolved = count
		case models.AlertStatusFalsePositive:
			stats.FalsePositive = count
		}
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert statistics: %w", err)
	}
	return &stats, nil
}

// MarkNotificationResult records the outcome of the notification fan-out
// on the alert row.
func (s *Postgres) MarkNotificationResult(ctx context.Context, alertID string, sent bool, failures int, lastError string) error {
	var sentAt interface{}
	if sent {
		sentAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET notification_sent = $2, notification_sent_at = COALESCE($3, notification_sent_at),
		 notification_failures = notification_failures + $4, last_notification_error = $5, updated_at = now()
		 WHERE id = $1`,
		alertID, sent, sentAt, failures, lastError)
	if err != nil {
		return fmt.Errorf("mark notification result %s: %w", alertID, err)
	}
	return nil
}

const anomalyColumns = `log_id, is_anomaly, confidence, anomaly_score,
	COALESCE(service, ''), COALESCE(level, ''), COALESCE(message, ''), detected_at`

func (s *Postgres) queryAnomalies(ctx context.Context, query string, args ...interface{}) ([]*models.AnomalyDetection, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query anomalies: %w", err)
	}
	defer rows.Close()

	var anomalies []*models.AnomalyDetection
	for rows.Next() {
		var a models.AnomalyDetection
		if err := rows.Scan(&a.LogID, &a.IsAnomaly, &a.Confidence, &a.Score,
			&a.Service, &a.Level, &a.Message, &a.DetectedAt); err != nil {
			return nil, fmt.Errorf("scan anomaly: %w", err)
		}
		anomalies = append(anomalies, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate anomalies: %w", err)
	}
	return anomalies, nil
}

// FetchUnprocessedAnomalies reads anomaly records from the ML pipeline's
// table, detection time ascending. Only records flagged as anomalous are
// of interest downstream but the filter stays in the rule engine.
func (s *Postgres) FetchUnprocessedAnomalies(ctx context.Context, since time.Time, limit int) ([]*models.AnomalyDetection, error) {
	query := fmt.Sprintf(`SELECT %s FROM anomaly_detections
		 WHERE detected_at >= $1 ORDER BY detected_at ASC LIMIT $2`, anomalyColumns)
	return s.queryAnomalies(ctx, query, since, limit)
}

// FetchCriticalAnomalies returns high-confidence, high-score anomalous
// records for the fast scan path.
func (s *Postgres) FetchCriticalAnomalies(ctx context.Context, since time.Time, minConfidence, minScore float64, limit int) ([]*models.AnomalyDetection, error) {
	query := fmt.Sprintf(`SELECT %s FROM anomaly_detections
		 WHERE detected_at >= $1 AND is_anomaly = true
		   AND confidence >= $2 AND anomaly_score >= $3
		 ORDER BY detected_at ASC LIMIT $4`, anomalyColumns)
	return s.queryAnomalies(ctx, query, since, minConfidence, minScore, limit)
}

// CountAnomaliesSince counts anomalous records detected at or after since
func (s *Postgres) CountAnomaliesSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM anomaly_detections WHERE detected_at >= $1 AND is_anomaly = true`,
		since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count anomalies: %w", err)
	}
	return count, nil
}

// LoadWatermark returns the last processed detection time. Zero time
// when no watermark has been saved yet.
func (s *Postgres) LoadWatermark(ctx context.Context) (time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx, `SELECT processed_to FROM monitor_watermark WHERE id = 1`).Scan(&t)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("load watermark: %w", err)
	}
	return t, nil
}

// SaveWatermark advances the processed-to watermark
func (s *Postgres) SaveWatermark(ctx context.Context, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO monitor_watermark (id, processed_to) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET processed_to = EXCLUDED.processed_to`, at)
	if err != nil {
		return fmt.Errorf("save watermark: %w", err)
	}
	return nil
}

var _ Store = (*Postgres)(nil)
