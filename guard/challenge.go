package guard

import (
	"fmt"
	"math/rand/v2"
)

// Challenge is a two-operand arithmetic problem.
type Challenge struct {
	Question string
	Answer   int
}

const maxOperand = 12

// NewChallenge draws a problem from r. Subtraction never goes negative.
func NewChallenge(r *rand.Rand) Challenge {
	a := r.IntN(maxOperand) + 1
	b := r.IntN(maxOperand) + 1
	switch r.IntN(3) {
	case 0:
		return Challenge{Question: fmt.Sprintf("What is %d + %d?", a, b), Answer: a + b}
	case 1:
		if b > a {
			a, b = b, a
		}
		return Challenge{Question: fmt.Sprintf("What is %d - %d?", a, b), Answer: a - b}
	default:
		return Challenge{Question: fmt.Sprintf("What is %d × %d?", a, b), Answer: a * b}
	}
}
