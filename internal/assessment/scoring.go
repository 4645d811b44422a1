package assessment

import "math"

// QuestionCorrect is all-or-nothing: every answer's given flag must equal
// its correct flag. Selecting a wrong option or missing a right one fails
// the whole question; there is no partial credit.
func QuestionCorrect(q ResultQuestion) bool {
	for _, a := range q.Answers {
		if a.Given != a.Correct {
			return false
		}
	}
	return true
}

// Score computes the attempt percentage from snapshot rows, rounded to one
// decimal. A test with zero questions scores 0, never a division error.
func Score(qs []ResultQuestion) float64 {
	if len(qs) == 0 {
		return 0
	}
	correct := 0
	for _, q := range qs {
		if QuestionCorrect(q) {
			correct++
		}
	}
	return round1(100 * float64(correct) / float64(len(qs)))
}

// Passed is strict: hitting the threshold exactly is a fail.
func Passed(percent float64, passPercent int) bool {
	return percent > float64(passPercent)
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
