package security

import (
	"log/slog"
	"sync"
	"time"
)

// TrackerConfig controls strike accumulation and temporary blocking.
type TrackerConfig struct {
	// StrikeThreshold is the risk score at which a message earns a strike.
	StrikeThreshold int
	// MaxStrikes is the number of strikes before a temporary block.
	MaxStrikes int
	// BlockDuration is how long a temporary block lasts.
	BlockDuration time.Duration
	// StrikeWindow is how long strikes accumulate before resetting.
	StrikeWindow time.Duration
}

// DefaultTrackerConfig returns the standard tracker configuration.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		StrikeThreshold: 30,
		MaxStrikes:      3,
		BlockDuration:   5 * time.Minute,
		StrikeWindow:    time.Hour,
	}
}

// RateLimitReason explains why a sender was rate limited.
type RateLimitReason string

const (
	// ReasonTooManyMessages means the sender exceeded the per-minute cap.
	ReasonTooManyMessages RateLimitReason = "too_many_messages"
	// ReasonSuspiciousHistory means the sender has prior violations.
	ReasonSuspiciousHistory RateLimitReason = "suspicious_history"
)

// CheckVerdict categorizes the outcome of a security check.
type CheckVerdict string

const (
	VerdictAllowed     CheckVerdict = "allowed"
	VerdictWarning     CheckVerdict = "warning"
	VerdictBlocked     CheckVerdict = "blocked"
	VerdictJustBlocked CheckVerdict = "just_blocked"
	VerdictRateLimited CheckVerdict = "rate_limited"
)

// CheckResult is the outcome of CheckAndUpdate for one message.
type CheckResult struct {
	Verdict    CheckVerdict
	Strikes    int
	MaxStrikes int
	Remaining  time.Duration
	Reason     RateLimitReason
}

type senderRecord struct {
	strikes          int
	lastStrike       time.Time
	blockedUntil     time.Time
	totalViolations  int64
	lastMessage      time.Time
	messagesInWindow int
	rateLimitUntil   time.Time
}

// Tracker tracks per-sender violations and applies temporary blocks and
// adaptive rate limits. Safe for concurrent use.
type Tracker struct {
	config TrackerConfig
	logger *slog.Logger

	mu      sync.Mutex
	records map[int64]*senderRecord
	now     func() time.Time
}

// NewTracker creates a security tracker.
func NewTracker(config TrackerConfig, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		config:  config,
		logger:  logger,
		records: make(map[int64]*senderRecord),
		now:     time.Now,
	}
}

// IsBlocked returns the remaining block duration for a sender, or zero
// if they are not blocked.
func (t *Tracker) IsBlocked(senderID int64) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.records[senderID]
	if !ok {
		return 0
	}
	if remaining := record.blockedUntil.Sub(t.now()); remaining > 0 {
		return remaining
	}
	return 0
}

// CheckAndUpdate processes one message's sanitization result and
// advances the sender's security state.
func (t *Tracker) CheckAndUpdate(senderID int64, result SanitizationResult) CheckResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.records[senderID]
	if !ok {
		record = &senderRecord{}
		t.records[senderID] = record
	}
	now := t.now()

	// Hard block in effect?
	if record.blockedUntil.After(now) {
		return CheckResult{Verdict: VerdictBlocked, Remaining: record.blockedUntil.Sub(now)}
	}
	if !record.blockedUntil.IsZero() {
		record.blockedUntil = time.Time{}
		record.strikes = 0
	}

	// Rate limit in effect?
	if record.rateLimitUntil.After(now) {
		return CheckResult{
			Verdict:   VerdictRateLimited,
			Remaining: record.rateLimitUntil.Sub(now),
			Reason:    ReasonSuspiciousHistory,
		}
	}
	record.rateLimitUntil = time.Time{}

	if res, limited := t.checkMessageRate(record, now); limited {
		return res
	}

	record.messagesInWindow++
	record.lastMessage = now

	if !record.lastStrike.IsZero() && now.Sub(record.lastStrike) > t.config.StrikeWindow {
		record.strikes = 0
	}

	if result.RiskScore >= t.config.StrikeThreshold {
		record.strikes++
		record.lastStrike = now
		record.totalViolations++

		t.logger.Warn("security strike",
			slog.Int64("sender_id", senderID),
			slog.Int("strikes", record.strikes),
			slog.Int("max_strikes", t.config.MaxStrikes),
			slog.Int("risk_score", result.RiskScore),
			slog.Any("patterns", result.DetectedPatterns))

		// Suspicious senders get an immediate rate limit on top of the strike.
		if d := rateLimitDuration(record.totalViolations); d > 0 {
			record.rateLimitUntil = now.Add(d)
		}

		if record.strikes >= t.config.MaxStrikes {
			record.blockedUntil = now.Add(t.config.BlockDuration)
			record.strikes = 0

			t.logger.Warn("sender temporarily blocked",
				slog.Int64("sender_id", senderID),
				slog.Duration("duration", t.config.BlockDuration),
				slog.Int64("total_violations", record.totalViolations))

			return CheckResult{Verdict: VerdictJustBlocked, Remaining: t.config.BlockDuration}
		}

		return CheckResult{
			Verdict:    VerdictWarning,
			Strikes:    record.strikes,
			MaxStrikes: t.config.MaxStrikes,
		}
	}

	return CheckResult{Verdict: VerdictAllowed}
}

// checkMessageRate enforces a per-minute message cap that tightens with
// the sender's violation history.
func (t *Tracker) checkMessageRate(record *senderRecord, now time.Time) (CheckResult, bool) {
	const rateWindow = time.Minute

	if !record.lastMessage.IsZero() && now.Sub(record.lastMessage) > rateWindow {
		record.messagesInWindow = 0
	}

	var maxMessages int
	switch v := record.totalViolations; {
	case v == 0:
		maxMessages = 20
	case v <= 2:
		maxMessages = 15
	case v <= 5:
		maxMessages = 10
	case v <= 10:
		maxMessages = 5
	default:
		maxMessages = 3
	}

	if record.messagesInWindow >= maxMessages {
		d := rateLimitDuration(record.totalViolations)
		record.rateLimitUntil = now.Add(d)
		record.messagesInWindow = 0

		reason := ReasonTooManyMessages
		if record.totalViolations > 0 {
			reason = ReasonSuspiciousHistory
		}
		return CheckResult{Verdict: VerdictRateLimited, Remaining: d, Reason: reason}, true
	}

	return CheckResult{}, false
}

// rateLimitDuration escalates with the sender's violation count.
func rateLimitDuration(totalViolations int64) time.Duration {
	switch {
	case totalViolations == 0:
		return 30 * time.Second
	case totalViolations == 1:
		return time.Minute
	case totalViolations == 2:
		return 2 * time.Minute
	case totalViolations <= 5:
		return 5 * time.Minute
	default:
		return 10 * time.Minute
	}
}

// Block manually blocks a sender for the given duration.
func (t *Tracker) Block(senderID int64, duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.records[senderID]
	if !ok {
		record = &senderRecord{}
		t.records[senderID] = record
	}
	record.blockedUntil = t.now().Add(duration)
}

// Unblock manually lifts a sender's block and clears their strikes.
func (t *Tracker) Unblock(senderID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if record, ok := t.records[senderID]; ok {
		record.blockedUntil = time.Time{}
		record.strikes = 0
	}
}

// SenderStats is a snapshot of one sender's security state.
type SenderStats struct {
	Strikes         int   `json:"strikes"`
	TotalViolations int64 `json:"total_violations"`
	Blocked         bool  `json:"blocked"`
}

// Stats returns a sender's current state, or nil if they have no record.
func (t *Tracker) Stats(senderID int64) *SenderStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.records[senderID]
	if !ok {
		return nil
	}
	return &SenderStats{
		Strikes:         record.strikes,
		TotalViolations: record.totalViolations,
		Blocked:         record.blockedUntil.After(t.now()),
	}
}

// Cleanup drops stale records. Call periodically from a background worker.
// Returns the number of records removed.
func (t *Tracker) Cleanup() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	window := 2 * t.config.StrikeWindow
	removed := 0

	for id, record := range t.records {
		if record.blockedUntil.After(now) {
			continue
		}
		if !record.lastStrike.IsZero() && now.Sub(record.lastStrike) < window {
			continue
		}
		if !record.lastMessage.IsZero() && now.Sub(record.lastMessage) < window {
			continue
		}
		delete(t.records, id)
		removed++
	}
	return removed
}
