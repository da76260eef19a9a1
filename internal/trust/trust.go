// Package trust computes a user's trust score from the ratings they received.
package trust

import (
	"math"
	"time"
)

// Component weights. They sum to 1.
const (
	baseWeight         = 0.4
	volumeWeight       = 0.2
	recencyWeight      = 0.2
	consistencyWeight  = 0.1
	verificationWeight = 0.1
)

const (
	// Number of ratings at which the volume component saturates.
	fullTrustRatings = 10
	// Time constant of the recency decay, in days.
	recencyDays = 30
	// Ratings at or above this count as excellent.
	excellentThreshold = 4.5
	// Ratings at or below this count as low.
	lowThreshold = 2
	// Minimum age in days of the oldest rating for the longevity bonus.
	longevityDays = 90
)

// Neutral is the score of a user without ratings.
const Neutral = 5.0

// Rating is the part of a received rating that affects trust.
type Rating struct {
	Value     int
	CreatedAt time.Time
	// Verified ratings are tied to a completed booking.
	Verified bool
}

// Breakdown is a trust score with its unweighted components.
type Breakdown struct {
	Score        float64 `json:"score"`
	Base         float64 `json:"base"`
	Volume       float64 `json:"volume"`
	Recency      float64 `json:"recency"`
	Consistency  float64 `json:"consistency"`
	Verification float64 `json:"verification"`
}

// Score returns the trust score in [0, 5], rounded to one decimal.
func Score(ratings []Rating, now time.Time) float64 {
	return Calculate(ratings, now).Score
}

// Calculate returns the trust score and its components, each rounded to one decimal.
func Calculate(ratings []Rating, now time.Time) Breakdown {
	if len(ratings) == 0 {
		return Breakdown{Neutral, Neutral, Neutral, Neutral, Neutral, Neutral}
	}

	base := average(ratings)
	volume := volumeScore(len(ratings))
	recency := recencyScore(ratings, now)
	consistency := consistencyScore(ratings, base)
	verification := verificationScore(ratings)

	score := base*baseWeight +
		volume*volumeWeight +
		recency*recencyWeight +
		consistency*consistencyWeight +
		verification*verificationWeight
	score = clamp(score + adjustments(ratings, now))

	return Breakdown{
		Score:        round1(score),
		Base:         round1(base),
		Volume:       round1(volume),
		Recency:      round1(recency),
		Consistency:  round1(consistency),
		Verification: round1(verification),
	}
}

// Category names the band a score falls in.
func Category(score float64) string {
	switch {
	case score >= 4.5:
		return "Excellent"
	case score >= 3.5:
		return "High"
	case score >= 2.5:
		return "Medium"
	default:
		return "Low"
	}
}

func average(ratings []Rating) float64 {
	sum := 0.0
	for _, r := range ratings {
		sum += float64(r.Value)
	}
	return sum / float64(len(ratings))
}

// volumeScore grows logarithmically from 4 towards 5.
func volumeScore(n int) float64 {
	v := math.Log(float64(n+1)) / math.Log(fullTrustRatings+1)
	return 4.0 + math.Min(1.0, v)
}

func recencyScore(ratings []Rating, now time.Time) float64 {
	var weighted, total float64
	for _, r := range ratings {
		w := math.Exp(-float64(daysBetween(r.CreatedAt, now)) / recencyDays)
		weighted += float64(r.Value) * w
		total += w
	}
	if total == 0 {
		return Neutral
	}
	return weighted / total
}

// consistencyScore scales the average down by the spread of ratings.
// The largest possible standard deviation on a 1-5 scale is 2.
func consistencyScore(ratings []Rating, avg float64) float64 {
	if len(ratings) < 2 {
		return Neutral
	}
	variance := 0.0
	for _, r := range ratings {
		d := float64(r.Value) - avg
		variance += d * d
	}
	variance /= float64(len(ratings))
	return math.Max(0, avg*(1-math.Sqrt(variance)/2))
}

func verificationScore(ratings []Rating) float64 {
	var sum float64
	var verified int
	for _, r := range ratings {
		if r.Verified {
			sum += float64(r.Value)
			verified++
		}
	}
	verifiedAvg := Neutral
	if verified > 0 {
		verifiedAvg = sum / float64(verified)
	}
	ratio := float64(verified) / float64(len(ratings))
	return verifiedAvg * (0.7 + 0.3*ratio)
}

// adjustments returns the bonuses and penalties for the rating mix.
func adjustments(ratings []Rating, now time.Time) float64 {
	n := float64(len(ratings))
	var excellent, low int
	oldest := now
	for _, r := range ratings {
		if float64(r.Value) >= excellentThreshold {
			excellent++
		}
		if r.Value <= lowThreshold {
			low++
		}
		if r.CreatedAt.Before(oldest) {
			oldest = r.CreatedAt
		}
	}

	adj := 0.0
	switch ratio := float64(excellent) / n; {
	case ratio >= 0.8:
		adj += 0.3
	case ratio >= 0.6:
		adj += 0.2
	}
	switch ratio := float64(low) / n; {
	case ratio >= 0.3:
		adj -= 0.5
	case ratio >= 0.15:
		adj -= 0.3
	}
	if len(ratings) >= 5 && daysBetween(oldest, now) >= longevityDays {
		adj += 0.1
	}
	return adj
}

// daysBetween counts whole days from a to b.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(5, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
