package question

import (
	"fmt"
	"math/rand"
	"time"

	"math-rush-service/internal/domain"
)

// Generator produces arithmetic problems whose answer is always derivable
// from the displayed text. Generation never fails; a bad rule is a
// programming error, not a runtime condition.
type Generator struct {
	rnd *rand.Rand
}

func NewGenerator() *Generator {
	return NewGeneratorWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewGeneratorWithSource allows deterministic sequences in tests.
func NewGeneratorWithSource(src rand.Source) *Generator {
	return &Generator{rnd: rand.New(src)}
}

// Next returns a new problem picked uniformly from the supported rules.
func (g *Generator) Next() domain.Problem {
	rules := []func() domain.Problem{
		g.addition,
		g.subtraction,
		g.multiplication,
		g.division,
		g.square,
		g.cube,
	}
	return rules[g.rnd.Intn(len(rules))]()
}

func (g *Generator) addition() domain.Problem {
	a := g.rnd.Intn(100) + 1
	b := g.rnd.Intn(100) + 1
	return domain.Problem{Text: fmt.Sprintf("%d + %d", a, b), Answer: float64(a + b)}
}

// subtraction is normalized so the result is never negative.
func (g *Generator) subtraction() domain.Problem {
	a := g.rnd.Intn(100) + 1
	b := g.rnd.Intn(100) + 1
	if b > a {
		a, b = b, a
	}
	return domain.Problem{Text: fmt.Sprintf("%d - %d", a, b), Answer: float64(a - b)}
}

func (g *Generator) multiplication() domain.Problem {
	a := g.rnd.Intn(20) + 1
	b := g.rnd.Intn(20) + 1
	return domain.Problem{Text: fmt.Sprintf("%d × %d", a, b), Answer: float64(a * b)}
}

// division is constructed backwards from the answer so it always divides
// exactly.
func (g *Generator) division() domain.Problem {
	b := g.rnd.Intn(12) + 1
	answer := g.rnd.Intn(20) + 1
	a := b * answer
	return domain.Problem{Text: fmt.Sprintf("%d ÷ %d", a, b), Answer: float64(answer)}
}

func (g *Generator) square() domain.Problem {
	a := g.rnd.Intn(15) + 1
	return domain.Problem{Text: fmt.Sprintf("%d²", a), Answer: float64(a * a)}
}

func (g *Generator) cube() domain.Problem {
	a := g.rnd.Intn(10) + 1
	return domain.Problem{Text: fmt.Sprintf("%d³", a), Answer: float64(a * a * a)}
}
