package recognition

import "github.com/zhouzirui/hotel-checkin/backend/internal/model/face"

// Config tunes how many batches confirm a subject and how tolerant the
// streak is to transient detection misses.
type Config struct {
	ConfirmStreak  int // consecutive qualifying batches required to confirm
	DecayTolerance int // consecutive misses before a partial streak resets
}

// DefaultConfig returns the thresholds used when nothing is configured.
func DefaultConfig() Config {
	return Config{ConfirmStreak: 3, DecayTolerance: 2}
}

func (c Config) normalized() Config {
	if c.ConfirmStreak < 1 {
		c.ConfirmStreak = DefaultConfig().ConfirmStreak
	}
	if c.DecayTolerance < 1 {
		c.DecayTolerance = DefaultConfig().DecayTolerance
	}
	return c
}

// Aggregator turns noisy per-frame detections into a stable confirmation
// decision. Only the currently leading identity is tracked: a different
// qualifying identity takes over the streak, unknown or non-live faces never
// count, and empty batches only clear the streak after DecayTolerance misses
// in a row. After confirming, the aggregator freezes until Reset so a
// confirmed subject cannot be replaced mid-workflow.
//
// Not safe for concurrent use; each session owns exactly one instance and
// drives it from its worker loop.
type Aggregator struct {
	cfg    Config
	leader face.Detection
	streak int
	misses int
	frozen bool
}

// NewAggregator builds an aggregator with the supplied thresholds.
func NewAggregator(cfg Config) *Aggregator {
	return &Aggregator{cfg: cfg.normalized()}
}

// Observe consumes one detection batch. It returns the confirmed subject and
// true exactly once, on the batch that completes the streak.
func (a *Aggregator) Observe(batch []face.Detection) (face.Detection, bool) {
	if a.frozen {
		return face.Detection{}, false
	}

	candidate, ok := firstQualifying(batch)
	if !ok {
		a.misses++
		if a.misses >= a.cfg.DecayTolerance {
			a.leader = face.Detection{}
			a.streak = 0
			a.misses = 0
		}
		return face.Detection{}, false
	}

	a.misses = 0
	if a.streak > 0 && candidate.Name == a.leader.Name {
		a.streak++
	} else {
		a.streak = 1
	}
	a.leader = candidate

	if a.streak >= a.cfg.ConfirmStreak {
		a.frozen = true
		return a.leader, true
	}
	return face.Detection{}, false
}

// Frozen reports whether a confirmed subject is awaiting clearance.
func (a *Aggregator) Frozen() bool {
	return a.frozen
}

// Streak returns the current streak length for the leading identity.
func (a *Aggregator) Streak() int {
	return a.streak
}

// Reset re-arms the aggregator after an orchestration has been cleared.
func (a *Aggregator) Reset() {
	a.leader = face.Detection{}
	a.streak = 0
	a.misses = 0
	a.frozen = false
}

// firstQualifying picks the first live, known face in detection order.
// Later qualifying faces in the same batch are ignored for confirmation;
// they are still delivered to the client for display.
func firstQualifying(batch []face.Detection) (face.Detection, bool) {
	for _, d := range batch {
		if d.Qualifies() {
			return d, true
		}
	}
	return face.Detection{}, false
}
