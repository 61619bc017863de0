package gesture

import (
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

// Cadence returns the pause after the character at index i of text.
type Cadence func(i int, text []rune) time.Duration

// Fixed is a constant cadence.
func Fixed(d time.Duration) Cadence {
	return func(int, []rune) time.Duration { return d }
}

const punctuation = ",.!?;:"

// HumanCadence imitates a person typing: 90-150ms per key, 30% slower over
// the first 15% of the text and 25% slower over the last 15%, +40ms on
// spaces, +200-350ms on punctuation, and a 3% chance of a 300-800ms
// distraction. Never below 40ms. A nil rng uses the global source.
func HumanCadence(rng *rand.Rand) Cadence {
	float := rand.Float64
	if rng != nil {
		float = rng.Float64
	}
	return func(i int, text []rune) time.Duration {
		if len(text) == 0 || i < 0 || i >= len(text) {
			return 40 * time.Millisecond
		}
		ch := text[i]

		delay := 90 + float()*60

		progress := float64(i) / float64(len(text))
		switch {
		case progress < 0.15:
			delay *= 1.3
		case progress > 0.85:
			delay *= 1.25
		}

		if ch == ' ' {
			delay += 40
		}
		if strings.ContainsRune(punctuation, ch) {
			delay += 200 + float()*150
		}
		if float() < 0.03 {
			delay += 300 + float()*500
		}

		ms := math.Max(40, math.Round(delay))
		return time.Duration(ms) * time.Millisecond
	}
}
