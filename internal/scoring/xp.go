/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package scoring

import (
	"fmt"
	"math"
	"strings"
)

// Level is a CEFR proficiency level. Question banks are organised by level
// and XP scales with it.
type Level string

const (
	A1 Level = "A1"
	A2 Level = "A2"
	B1 Level = "B1"
	B2 Level = "B2"
	C1 Level = "C1"
	C2 Level = "C2"
)

// Levels lists every level from easiest to hardest.
var Levels = []Level{A1, A2, B1, B2, C1, C2}

// ParseLevel accepts "a1", " B2 " and so on. An empty string is A1.
func ParseLevel(s string) (Level, error) {
	v := Level(strings.ToUpper(strings.TrimSpace(s)))
	if v == "" {
		return A1, nil
	}

	for _, l := range Levels {
		if l == v {
			return l, nil
		}
	}

	return "", fmt.Errorf("unknown level %q", s)
}

// Rank orders levels; unknown levels rank below A1.
func (l Level) Rank() int {
	for i, v := range Levels {
		if v == l {
			return i
		}
	}

	return -1
}

// Lower returns the easier of two levels.
func Lower(a, b Level) Level {
	if b.Rank() < a.Rank() {
		return b
	}

	return a
}

// baseXP is the XP for a plain, untimed, fully correct run at each level.
var baseXP = map[Level]int{
	A1: 20,
	A2: 25,
	B1: 30,
	B2: 40,
	C1: 50,
	C2: 60,
}

// BaseXPForLevel returns the base XP of a level; unknown levels get A1's.
func BaseXPForLevel(level Level) int {
	if xp, ok := baseXP[level]; ok {
		return xp
	}

	return baseXP[A1]
}

// Multiplier is the XP curve. A perfect run finished inside the allotted
// time scores between 1.0 and 1.5 depending on the time left; anything else
// scores accuracy * (0.5..0.75). A perfect in-time run therefore always
// beats a partial or timed-out one.
func Multiplier(correct, total int, secondsUsed, secondsAllotted float64) float64 {
	if total <= 0 || secondsAllotted <= 0 {
		return 0
	}

	correct = min(max(correct, 0), total)
	accuracy := float64(correct) / float64(total)

	remaining := 1 - secondsUsed/secondsAllotted
	remaining = math.Min(math.Max(remaining, 0), 1)

	if correct == total && secondsUsed < secondsAllotted {
		return 1 + 0.5*remaining
	}

	return accuracy * (0.5 + 0.25*remaining)
}

// XP is baseXPForLevel(level) scaled by Multiplier, rounded to the nearest
// whole point.
func XP(level Level, correct, total int, secondsUsed, secondsAllotted float64) int {
	m := Multiplier(correct, total, secondsUsed, secondsAllotted)

	return int(math.Round(float64(BaseXPForLevel(level)) * m))
}

// FullCompletionXP is the XP of an instant, perfect run. It is what a player
// receives when the opponent departs mid-game.
func FullCompletionXP(level Level) int {
	return XP(level, 1, 1, 0, 1)
}
