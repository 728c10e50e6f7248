package textproc

import (
	"fmt"
	"math"
	"math/rand/v2"
	"regexp"
	"strconv"
)

// MaxDice bounds the number of dice in a single roll
const MaxDice = 1000

// MaxSides keeps the sum of MaxDice rolls within an int
const MaxSides = math.MaxInt / MaxDice

var dicePattern = regexp.MustCompile(`^(\d+)d(\d+)$`)

type diceRoll struct {
	count int
	sides int
}

// parseDice matches only when the whole text is "<count>d<sides>".
func parseDice(text string) (diceRoll, bool) {
	m := dicePattern.FindStringSubmatch(text)
	if m == nil {
		return diceRoll{}, false
	}

	count, err := strconv.Atoi(m[1])
	if err != nil || count > MaxDice {
		return diceRoll{}, false
	}
	sides, err := strconv.Atoi(m[2])
	if err != nil || sides < 1 || sides > MaxSides {
		return diceRoll{}, false
	}
	return diceRoll{count: count, sides: sides}, true
}

func (d diceRoll) report(rng *rand.Rand) string {
	sum := 0
	for i := 0; i < d.count; i++ {
		sum += 1 + rng.IntN(d.sides)
	}
	return fmt.Sprintf("%dd%d : %d", d.count, d.sides, sum)
}
