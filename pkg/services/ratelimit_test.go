package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimonitoring/alert-engine/pkg/models"
)

func newTestLimiter() *RateLimiter {
	return NewRateLimiter(RateLimitConfig{
		Enabled:          true,
		MaxAlertsPerRule: 10,
		TimeWindow:       time.Hour,
		DefaultCooldown:  15 * time.Minute,
	})
}

func TestTryAcquireAllowsUpToLimit(t *testing.T) {
	limiter := newTestLimiter()
	now := time.Now()

	for i := 0; i < 10; i++ {
		decision := limiter.TryAcquire("rule-1", models.SeverityHigh, 0, now.Add(time.Duration(i)*time.Minute))
		require.Equal(t, Allowed, decision, "trigger %d should be allowed", i+1)
	}

	// The 11th trigger inside the window is suppressed
	decision := limiter.TryAcquire("rule-1", models.SeverityHigh, 0, now.Add(10*time.Minute))
	assert.Equal(t, Suppressed, decision)
}

func TestReleaseReturnsSlot(t *testing.T) {
	limiter := newTestLimiter()
	now := time.Now()

	for i := 0; i < 9; i++ {
		limiter.TryAcquire("rule-1", models.SeverityHigh, 0, now)
	}
	require.Equal(t, Allowed, limiter.TryAcquire("rule-1", models.SeverityHigh, 0, now))
	require.Equal(t, 10, limiter.Status("rule-1", now).WindowCount)

	// Giving the last slot back leaves room for the next trigger
	limiter.Release("rule-1", now)
	assert.Equal(t, 9, limiter.Status("rule-1", now).WindowCount)
	assert.Equal(t, Allowed, limiter.TryAcquire("rule-1", models.SeverityHigh, 0, now))
}

func TestReleaseUnknownRuleIsNoOp(t *testing.T) {
	limiter := newTestLimiter()
	limiter.Release("rule-x", time.Now())
	assert.Zero(t, limiter.Status("rule-x", time.Now()).WindowCount)
}

func TestTryAcquireWindowExpiry(t *testing.T) {
	limiter := newTestLimiter()
	now := time.Now()

	for i := 0; i < 10; i++ {
		limiter.TryAcquire("rule-1", models.SeverityHigh, 0, now)
	}

	// Past the rolling window and the cooldown the rule is fresh again
	later := now.Add(time.Hour + 16*time.Minute)
	assert.Equal(t, Allowed, limiter.TryAcquire("rule-1", models.SeverityHigh, 0, later))
}

func TestTryAcquireCooldownAfterExhaustion(t *testing.T) {
	limiter := newTestLimiter()
	now := time.Now()

	for i := 0; i < 10; i++ {
		limiter.TryAcquire("rule-1", models.SeverityHigh, 0, now)
	}
	// Exhaustion starts the default 15 minute cooldown
	assert.Equal(t, Suppressed, limiter.TryAcquire("rule-1", models.SeverityHigh, 0, now))

	// Still in cooldown even though nothing else changed
	assert.Equal(t, Suppressed, limiter.TryAcquire("rule-1", models.SeverityHigh, 0, now.Add(10*time.Minute)))

	status := limiter.Status("rule-1", now.Add(10*time.Minute))
	assert.True(t, status.InCooldown)
	require.NotNil(t, status.CooldownUntil)
}

func TestTryAcquirePerRuleCooldownOverride(t *testing.T) {
	limiter := newTestLimiter()
	now := time.Now()

	for i := 0; i < 10; i++ {
		limiter.TryAcquire("rule-1", models.SeverityHigh, 5*time.Minute, now)
	}
	assert.Equal(t, Suppressed, limiter.TryAcquire("rule-1", models.SeverityHigh, 5*time.Minute, now))

	status := limiter.Status("rule-1", now)
	require.NotNil(t, status.CooldownUntil)
	assert.Equal(t, now.Add(5*time.Minute), *status.CooldownUntil)
}

func TestTryAcquireCriticalBypass(t *testing.T) {
	limiter := newTestLimiter()
	now := time.Now()

	for i := 0; i < 10; i++ {
		limiter.TryAcquire("rule-1", models.SeverityHigh, 0, now)
	}

	decision := limiter.TryAcquire("rule-1", models.SeverityCritical, 0, now)
	assert.Equal(t, OverrideBypass, decision)

	// Bypassed triggers still count toward the window
	status := limiter.Status("rule-1", now)
	assert.Equal(t, 11, status.WindowCount)
}

func TestTryAcquireRulesAreIndependent(t *testing.T) {
	limiter := newTestLimiter()
	now := time.Now()

	for i := 0; i < 10; i++ {
		limiter.TryAcquire("rule-1", models.SeverityHigh, 0, now)
	}
	assert.Equal(t, Suppressed, limiter.TryAcquire("rule-1", models.SeverityHigh, 0, now))
	assert.Equal(t, Allowed, limiter.TryAcquire("rule-2", models.SeverityHigh, 0, now))
}

func TestClearCooldown(t *testing.T) {
	limiter := newTestLimiter()
	now := time.Now()

	for i := 0; i < 10; i++ {
		limiter.TryAcquire("rule-1", models.SeverityHigh, 0, now)
	}
	require.Equal(t, Suppressed, limiter.TryAcquire("rule-1", models.SeverityHigh, 0, now))

	limiter.ClearCooldown("rule-1")

	// Cooldown cleared, but the window itself is still full until the
	// timestamps age out
	later := now.Add(time.Hour + time.Second)
	assert.Equal(t, Allowed, limiter.TryAcquire("rule-1", models.SeverityHigh, 0, later))
}

func TestDisabledLimiterAlwaysAllows(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{Enabled: false})
	now := time.Now()

	for i := 0; i < 100; i++ {
		assert.Equal(t, Allowed, limiter.TryAcquire("rule-1", models.SeverityLow, 0, now))
	}
}

func TestStatusUnknownRule(t *testing.T) {
	limiter := newTestLimiter()
	status := limiter.Status("never-seen", time.Now())
	assert.False(t, status.InCooldown)
	assert.Zero(t, status.WindowCount)
}
