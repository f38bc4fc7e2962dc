package recognition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/hotel-checkin/backend/internal/model/face"
)

func live(name string) face.Detection {
	return face.Detection{Name: name, Email: name + "@example.com", Status: face.Live}
}

func notLive(name string) face.Detection {
	return face.Detection{Name: name, Status: face.NotLive}
}

func TestConfirmAfterStreak(t *testing.T) {
	agg := NewAggregator(Config{ConfirmStreak: 3, DecayTolerance: 2})

	_, ok := agg.Observe([]face.Detection{live("Alice")})
	assert.False(t, ok)
	_, ok = agg.Observe([]face.Detection{live("Alice")})
	assert.False(t, ok)

	confirmed, ok := agg.Observe([]face.Detection{live("Alice")})
	require.True(t, ok, "third qualifying batch should confirm")
	assert.Equal(t, "Alice", confirmed.Name)
	assert.True(t, agg.Frozen())
}

func TestFewerBatchesNeverConfirm(t *testing.T) {
	agg := NewAggregator(Config{ConfirmStreak: 5, DecayTolerance: 2})
	for i := 0; i < 4; i++ {
		_, ok := agg.Observe([]face.Detection{live("Alice")})
		assert.False(t, ok, "batch %d must not confirm", i+1)
	}
	assert.Equal(t, 4, agg.Streak())
}

func TestCompetingIdentityResetsStreak(t *testing.T) {
	agg := NewAggregator(Config{ConfirmStreak: 3, DecayTolerance: 2})

	agg.Observe([]face.Detection{live("Alice")})
	agg.Observe([]face.Detection{live("Alice")})

	// Bob 出现后接管，计数从 1 重新开始
	_, ok := agg.Observe([]face.Detection{live("Bob")})
	require.False(t, ok)
	assert.Equal(t, 1, agg.Streak())

	_, ok = agg.Observe([]face.Detection{live("Bob")})
	assert.False(t, ok)
	confirmed, ok := agg.Observe([]face.Detection{live("Bob")})
	require.True(t, ok)
	assert.Equal(t, "Bob", confirmed.Name)
}

func TestUnknownAndNotLiveNeverCount(t *testing.T) {
	agg := NewAggregator(Config{ConfirmStreak: 1, DecayTolerance: 10})

	_, ok := agg.Observe([]face.Detection{{Name: face.UnknownName, Status: face.Live}})
	assert.False(t, ok)
	_, ok = agg.Observe([]face.Detection{notLive("Alice")})
	assert.False(t, ok)
	assert.Equal(t, 0, agg.Streak())
}

func TestFirstQualifyingFaceWins(t *testing.T) {
	agg := NewAggregator(Config{ConfirmStreak: 1, DecayTolerance: 2})

	confirmed, ok := agg.Observe([]face.Detection{
		{Name: face.UnknownName, Status: face.Live},
		notLive("Bob"),
		live("Alice"),
		live("Carol"),
	})
	require.True(t, ok)
	assert.Equal(t, "Alice", confirmed.Name)
}

func TestStreakDecay(t *testing.T) {
	agg := NewAggregator(Config{ConfirmStreak: 3, DecayTolerance: 2})

	agg.Observe([]face.Detection{live("Alice")})
	agg.Observe([]face.Detection{live("Alice")})

	// 一次空批次尚在容忍范围内，连击保留
	agg.Observe(nil)
	assert.Equal(t, 2, agg.Streak())

	confirmed, ok := agg.Observe([]face.Detection{live("Alice")})
	require.True(t, ok)
	assert.Equal(t, "Alice", confirmed.Name)
}

func TestStreakDecayResetsAfterTolerance(t *testing.T) {
	agg := NewAggregator(Config{ConfirmStreak: 3, DecayTolerance: 2})

	agg.Observe([]face.Detection{live("Alice")})
	agg.Observe([]face.Detection{live("Alice")})

	agg.Observe(nil)
	agg.Observe([]face.Detection{notLive("Alice")})
	assert.Equal(t, 0, agg.Streak(), "streak should reset after two misses")

	// 之后需要完整的连击才能确认
	agg.Observe([]face.Detection{live("Alice")})
	agg.Observe([]face.Detection{live("Alice")})
	_, ok := agg.Observe([]face.Detection{live("Alice")})
	assert.True(t, ok)
}

func TestFrozenIgnoresBatchesUntilReset(t *testing.T) {
	agg := NewAggregator(Config{ConfirmStreak: 1, DecayTolerance: 2})

	_, ok := agg.Observe([]face.Detection{live("Alice")})
	require.True(t, ok)

	// 冻结期间任何批次都不更新状态
	_, ok = agg.Observe([]face.Detection{live("Bob")})
	assert.False(t, ok)
	assert.True(t, agg.Frozen())

	agg.Reset()
	assert.False(t, agg.Frozen())
	confirmed, ok := agg.Observe([]face.Detection{live("Bob")})
	require.True(t, ok)
	assert.Equal(t, "Bob", confirmed.Name)
}

func TestDefaultsApplied(t *testing.T) {
	agg := NewAggregator(Config{})
	assert.Equal(t, DefaultConfig(), agg.cfg)
}
