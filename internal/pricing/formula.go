package pricing

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// The formula action accepts a small arithmetic language instead of the
// general expression evaluation the admin UI used to feed into eval():
// numbers, the variables basePrice and occupancyPercent, the operators
// + - * /, and parentheses. No identifiers beyond the two variables, no
// function calls. A formula that fails to parse or evaluate makes the
// rule not apply; it never fails the quote.

const maxFormulaLength = 256

// FormulaVars are the only values a formula may reference.
type FormulaVars struct {
	BasePrice        float64
	OccupancyPercent float64
}

// EvalFormula parses and evaluates a pricing formula against vars.
func EvalFormula(formula string, vars FormulaVars) (float64, error) {
	if len(formula) > maxFormulaLength {
		return 0, fmt.Errorf("formula exceeds %d characters", maxFormulaLength)
	}
	p := &formulaParser{input: formula, vars: vars}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected character %q at position %d", p.input[p.pos], p.pos)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("formula result is not finite")
	}
	return v, nil
}

type formulaParser struct {
	input string
	pos   int
	vars  FormulaVars
}

func (p *formulaParser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *formulaParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

// parseExpr handles + and -.
func (p *formulaParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

// parseTerm handles * and /.
func (p *formulaParser) parseTerm() (float64, error) {
	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			left *= right
		} else {
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		}
	}
}

// parseFactor handles numbers, variables, parentheses and unary minus.
func (p *formulaParser) parseFactor() (float64, error) {
	p.skipSpace()
	switch {
	case p.peek() == '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing closing parenthesis at position %d", p.pos)
		}
		p.pos++
		return v, nil
	case p.peek() == '-':
		p.pos++
		v, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		return -v, nil
	case p.peek() >= '0' && p.peek() <= '9' || p.peek() == '.':
		return p.parseNumber()
	case isIdentStart(p.peek()):
		return p.parseVariable()
	default:
		return 0, fmt.Errorf("unexpected character %q at position %d", p.peek(), p.pos)
	}
}

func (p *formulaParser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && (p.input[p.pos] >= '0' && p.input[p.pos] <= '9' || p.input[p.pos] == '.') {
		p.pos++
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return v, nil
}

func (p *formulaParser) parseVariable() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && isIdentPart(p.input[p.pos]) {
		p.pos++
	}
	name := p.input[start:p.pos]
	switch strings.ToLower(name) {
	case "baseprice":
		return p.vars.BasePrice, nil
	case "occupancypercent", "occupancy":
		return p.vars.OccupancyPercent, nil
	default:
		return 0, fmt.Errorf("unknown variable %q", name)
	}
}

func isIdentStart(c byte) bool {
	return unicode.IsLetter(rune(c))
}

func isIdentPart(c byte) bool {
	return unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c))
}
