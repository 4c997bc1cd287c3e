/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package scoring

const (
	// PassThreshold is the minimum quiz score that earns partial credit.
	PassThreshold = 70
	// FullCreditThreshold is the minimum quiz score judged fully correct.
	FullCreditThreshold = 90
	// MaxScore is the score of an exact answer.
	MaxScore = 100
)

// Evaluation is the outcome of judging a single answer.
type Evaluation struct {
	Correct bool
	Passed  bool
	Score   int
}

// EvaluateWord judges a word race entry. Only an exact match after
// normalization against one of the accepted spellings counts.
func EvaluateWord(accepted []string, submitted string) Evaluation {
	got := Normalize(submitted)
	if got == "" {
		return Evaluation{}
	}

	for _, want := range accepted {
		if Normalize(want) == got {
			return Evaluation{Correct: true, Passed: true, Score: MaxScore}
		}
	}

	return Evaluation{}
}

// EvaluateQuiz judges a quiz answer with partial credit. The score is the
// best similarity against any accepted spelling, in [0,100].
func EvaluateQuiz(accepted []string, submitted string) Evaluation {
	got := []rune(Normalize(submitted))
	if len(got) == 0 {
		return Evaluation{}
	}

	best := 0
	for _, want := range accepted {
		if s := similarity([]rune(Normalize(want)), got); s > best {
			best = s
		}
	}

	return Evaluation{
		Correct: best >= FullCreditThreshold,
		Passed:  best >= PassThreshold,
		Score:   best,
	}
}

func similarity(a, b []rune) int {
	longest := max(len(a), len(b))
	if longest == 0 {
		return 0
	}

	d := levenshtein(a, b)

	return (longest - d) * MaxScore / longest
}

// levenshtein is the rune-level edit distance between a and b.
func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}

	return prev[len(b)]
}
