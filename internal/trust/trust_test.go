package trust

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

var now = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func rated(value, daysAgo int, verified bool) Rating {
	return Rating{Value: value, CreatedAt: now.AddDate(0, 0, -daysAgo), Verified: verified}
}

func repeat(r Rating, n int) []Rating {
	out := make([]Rating, n)
	for i := range out {
		out[i] = r
	}
	return out
}

func TestScore(t *testing.T) {
	tests := []struct {
		name    string
		ratings []Rating
		want    float64
	}{
		{"no ratings", nil, 5.0},
		{"single excellent", []Rating{rated(5, 0, true)}, 5.0},
		{"single average", []Rating{rated(3, 0, true)}, 3.5},
		{"polarised", []Rating{rated(5, 0, true), rated(1, 0, true)}, 2.5},
		{"steady good", repeat(rated(4, 0, true), 6), 4.2},
		{"steady good with longevity", repeat(rated(4, 100, true), 6), 4.3},
		{"unverified", []Rating{rated(4, 0, false)}, 4.1},
		{"verified", []Rating{rated(4, 0, true)}, 4.2},
		{"all low", repeat(rated(1, 0, true), 3), 1.2},
		{"mostly excellent", []Rating{rated(5, 0, true), rated(5, 0, true), rated(4, 0, true)}, 4.7},
		{"old praise, recent complaint", []Rating{rated(5, 60, true), rated(1, 0, true)}, 2.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Score(tt.ratings, now), 1e-9)
		})
	}
}

func TestCalculateBreakdown(t *testing.T) {
	b := Calculate([]Rating{rated(5, 0, true), rated(1, 0, true)}, now)
	assert.Equal(t, 3.0, b.Base)
	assert.Equal(t, 4.5, b.Volume)
	assert.Equal(t, 3.0, b.Recency)
	assert.Equal(t, 0.0, b.Consistency)
	assert.Equal(t, 3.0, b.Verification)
	assert.Equal(t, 2.5, b.Score)
}

func TestCategory(t *testing.T) {
	assert.Equal(t, "Excellent", Category(4.5))
	assert.Equal(t, "High", Category(4.4))
	assert.Equal(t, "High", Category(3.5))
	assert.Equal(t, "Medium", Category(2.5))
	assert.Equal(t, "Low", Category(2.4))
	assert.Equal(t, "Low", Category(0))
}

func TestScoreBoundedProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 40).Draw(t, "n")
		ratings := make([]Rating, n)
		for i := range ratings {
			ratings[i] = rated(
				rapid.IntRange(1, 5).Draw(t, "value"),
				rapid.IntRange(0, 720).Draw(t, "daysAgo"),
				rapid.Bool().Draw(t, "verified"),
			)
		}

		s := Score(ratings, now)
		if s < 0 || s > 5 {
			t.Fatalf("score %v out of range", s)
		}
		if math.Abs(s*10-math.Round(s*10)) > 1e-9 {
			t.Fatalf("score %v not rounded to one decimal", s)
		}
	})
}

func TestUniformRatingsNeverBeatBetterUniformRatings(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(t, "n")
		lo := rapid.IntRange(1, 4).Draw(t, "lo")
		hi := rapid.IntRange(lo+1, 5).Draw(t, "hi")

		low := Score(repeat(rated(lo, 0, true), n), now)
		high := Score(repeat(rated(hi, 0, true), n), now)
		if low > high {
			t.Fatalf("%d x %d scored %v above %d x %d at %v", n, lo, low, n, hi, high)
		}
	})
}
