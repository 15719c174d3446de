package services

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aimonitoring/alert-engine/pkg/models"
)

// Decision is the outcome of a rate limit check
type Decision string

const (
	// Allowed means the trigger may create an alert
	Allowed Decision = "allowed"
	// Suppressed means the rule hit its rate limit or is in cooldown
	Suppressed Decision = "suppressed"
	// OverrideBypass means the rule is suppressed but the trigger is
	// CRITICAL and passes anyway
	OverrideBypass Decision = "override-bypass"
)

// RateLimitConfig holds the global rate limit policy
type RateLimitConfig struct {
	Enabled          bool
	MaxAlertsPerRule int
	TimeWindow       time.Duration
	DefaultCooldown  time.Duration
}

// CooldownStatus describes a rule's cooldown state
type CooldownStatus struct {
	InCooldown    bool       `json:"inCooldown"`
	CooldownUntil *time.Time `json:"cooldownUntil,omitempty"`
	WindowCount   int        `json:"windowCount"`
}

type ruleWindow struct {
	timestamps    []time.Time
	cooldownUntil time.Time
}

// RateLimiter bounds alert creation per rule within a rolling time
// window and enforces cooldowns once the limit is hit. State is
// process-local; running multiple instances requires externalizing it.
type RateLimiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	windows map[string]*ruleWindow
}

// NewRateLimiter creates a rate limiter with the given policy
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.MaxAlertsPerRule == 0 {
		cfg.MaxAlertsPerRule = 10
	}
	if cfg.TimeWindow == 0 {
		cfg.TimeWindow = time.Hour
	}
	if cfg.DefaultCooldown == 0 {
		cfg.DefaultCooldown = 15 * time.Minute
	}
	return &RateLimiter{
		cfg:     cfg,
		windows: make(map[string]*ruleWindow),
	}
}

// TryAcquire checks whether an alert may be created for the rule at
// now. The per-rule cooldown overrides the global default when set.
// CRITICAL severity bypasses suppression; bypass events still count
// toward the window for future decisions. On Allowed or OverrideBypass
// the timestamp is recorded before returning.
func (r *RateLimiter) TryAcquire(ruleID string, severity models.Severity, cooldown time.Duration, now time.Time) Decision {
	if !r.cfg.Enabled {
		return Allowed
	}
	if cooldown <= 0 {
		cooldown = r.cfg.DefaultCooldown
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	w := r.windows[ruleID]
	if w == nil {
		w = &ruleWindow{}
		r.windows[ruleID] = w
	}
	r.prune(w, now)

	suppressed := false
	if now.Before(w.cooldownUntil) {
		suppressed = true
	} else if len(w.timestamps) >= r.cfg.MaxAlertsPerRule {
		w.cooldownUntil = now.Add(cooldown)
		logrus.Infof("Rate limit exceeded for rule %s (count %d, limit %d), cooldown until %s",
			ruleID, len(w.timestamps), r.cfg.MaxAlertsPerRule, w.cooldownUntil.Format(time.RFC3339))
		suppressed = true
	}

	if suppressed {
		if severity != models.SeverityCritical {
			return Suppressed
		}
		w.timestamps = append(w.timestamps, now)
		logrus.Warnf("CRITICAL trigger bypasses rate limit for rule %s", ruleID)
		return OverrideBypass
	}

	w.timestamps = append(w.timestamps, now)
	return Allowed
}

// prune drops timestamps outside the rolling window. Called with the
// lock held; eviction is lazy, there is no background sweep.
func (r *RateLimiter) prune(w *ruleWindow, now time.Time) {
	cutoff := now.Add(-r.cfg.TimeWindow)
	kept := w.timestamps[:0]
	for _, t := range w.timestamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.timestamps = kept
}

// Release removes the slot recorded at now for the rule. Used when a
// trigger acquired a slot but no alert ended up being created, so the
// window keeps counting created alerts rather than dispatch attempts.
func (r *RateLimiter) Release(ruleID string, now time.Time) {
	if !r.cfg.Enabled {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.windows[ruleID]
	if w == nil {
		return
	}
	for i := len(w.timestamps) - 1; i >= 0; i-- {
		if w.timestamps[i].Equal(now) {
			w.timestamps = append(w.timestamps[:i], w.timestamps[i+1:]...)
			return
		}
	}
}

// ClearCooldown removes a rule's cooldown (admin override)
func (r *RateLimiter) ClearCooldown(ruleID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w := r.windows[ruleID]; w != nil {
		w.cooldownUntil = time.Time{}
	}
	logrus.Infof("Cooldown cleared for rule %s", ruleID)
}

// Status returns the cooldown state and current window count for a rule
func (r *RateLimiter) Status(ruleID string, now time.Time) CooldownStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := r.windows[ruleID]
	if w == nil {
		return CooldownStatus{}
	}
	r.prune(w, now)

	status := CooldownStatus{WindowCount: len(w.timestamps)}
	if now.Before(w.cooldownUntil) {
		until := w.cooldownUntil
		status.InCooldown = true
		status.CooldownUntil = &until
	}
	return status
}

// Config returns the active rate limit policy
func (r *RateLimiter) Config() RateLimitConfig {
	return r.cfg
}
