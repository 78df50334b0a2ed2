package stage

import (
	"fmt"
	"math"
)

// StepsPerInch is the controller scale: 1550 steps per 0.1 inch.
const StepsPerInch = 15500

// Steps converts a linear distance in inches to the nearest whole step count.
func Steps(inches float64) int {
	if math.IsNaN(inches) {
		return 0
	}
	return int(math.Round(inches * StepsPerInch))
}

// Command formats the indexed move for the given distance. Backward moves
// negate the step count.
func Command(inches float64, forward bool) string {
	steps := Steps(inches)
	if !forward {
		steps = -steps
	}
	return FormatMove(steps)
}

// FormatMove renders a signed step count as a controller program:
// clear, index motor 1 by steps, run.
func FormatMove(steps int) string {
	return fmt.Sprintf("F,C,I1M%d,L1;", steps)
}
