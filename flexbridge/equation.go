// Package flexbridge maps mesh shapekey animation onto GMod flex
// controller tracks and back.
//
// Source flex controllers are driven by arbitrary equations in the
// modeling toolchain; only the single-variable linear subset
//
//	flex = shapekey
//	flex = 0.5 * shapekey
//	flex = shapekey * 0.5 + 0.1
//
// is expressible both ways without loss, so that is the whole grammar.
// Anything else is rejected outright rather than approximated.
package flexbridge

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"
)

var ErrFlexEquationUnsupported = errors.New("unsupported flex equation")

// Equation is one linear flex binding: flex = Scale*shapekey + Offset.
type Equation struct {
	Flex     string
	ShapeKey string
	Scale    float64
	Offset   float64
}

// Identity binds a flex controller 1:1 to the shapekey of the same name,
// the default when no equation file is supplied.
func Identity(flex string) Equation {
	return Equation{Flex: flex, ShapeKey: flex, Scale: 1}
}

const (
	tokenName = iota
	tokenNumber
	tokenEquals
	tokenStar
	tokenPlus
	tokenMinus
	tokenNewline
	tokenComment
)

var lexer *lexmachine.Lexer

func init() {
	lexer = lexmachine.NewLexer()
	lexer.Add([]byte(`[a-zA-Z_][a-zA-Z0-9_\.]*`), getToken(tokenName))
	lexer.Add([]byte(`[0-9]*\.?[0-9]+`), getToken(tokenNumber))
	lexer.Add([]byte(`=`), getToken(tokenEquals))
	lexer.Add([]byte(`\*`), getToken(tokenStar))
	lexer.Add([]byte(`\+`), getToken(tokenPlus))
	lexer.Add([]byte(`-`), getToken(tokenMinus))
	lexer.Add([]byte(`(\n|\r|\n\r)+`), getToken(tokenNewline))
	lexer.Add([]byte(`//[^\n]*`), getToken(tokenComment))
	lexer.Add([]byte(`[ \t]+`), skip)
	if err := lexer.Compile(); err != nil {
		panic(err)
	}
}

func getToken(tokenType int) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(tokenType, string(m.Bytes), m), nil
	}
}

func skip(scan *lexmachine.Scanner, match *machines.Match) (interface{}, error) {
	return nil, nil
}

// ParseEquations reads a flex equation file, one binding per line. The path
// parameter is used only for error context.
func ParseEquations(text []byte, path string) (map[string]Equation, error) {
	scanner, err := lexer.Scanner(text)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: failed to create scanner", path)
	}

	equations := make(map[string]Equation)
	var line []*lexmachine.Token
	flush := func() error {
		if len(line) == 0 {
			return nil
		}
		eq, err := parseLine(line)
		if err != nil {
			return errors.Wrapf(err, "%s: line %d", path, line[0].StartLine)
		}
		if _, ok := equations[eq.Flex]; ok {
			return errors.Wrapf(ErrFlexEquationUnsupported,
				"%s: line %d: flex %q bound twice", path, line[0].StartLine, eq.Flex)
		}
		equations[eq.Flex] = eq
		line = line[:0]
		return nil
	}

	for itok, err, eos := scanner.Next(); !eos; itok, err, eos = scanner.Next() {
		if err != nil {
			return nil, errors.Wrapf(ErrFlexEquationUnsupported, "%s: %v", path, err)
		}
		tok := itok.(*lexmachine.Token)
		switch tok.Type {
		case tokenComment:
		case tokenNewline:
			if err := flush(); err != nil {
				return nil, err
			}
		default:
			line = append(line, tok)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return equations, nil
}

// parseLine reduces NAME = [NUMBER *] NAME [* NUMBER] [(+|-) NUMBER] to an
// Equation. Any second name, missing variable or zero scale falls outside
// the invertible linear subset.
func parseLine(toks []*lexmachine.Token) (Equation, error) {
	eq := Equation{Scale: 1}
	if len(toks) < 3 || toks[0].Type != tokenName || toks[1].Type != tokenEquals {
		return eq, errors.Wrapf(ErrFlexEquationUnsupported, "expected `flex = ...`")
	}
	eq.Flex = string(toks[0].Lexeme)

	rhs := toks[2:]
	i := 0

	// optional leading coefficient
	if rhs[i].Type == tokenNumber {
		if len(rhs) < i+3 || rhs[i+1].Type != tokenStar {
			return eq, errors.Wrapf(ErrFlexEquationUnsupported, "flex %q: constant equation has no shapekey", eq.Flex)
		}
		eq.Scale = mustFloat(rhs[i])
		i += 2
	}

	if i >= len(rhs) || rhs[i].Type != tokenName {
		return eq, errors.Wrapf(ErrFlexEquationUnsupported, "flex %q: expected shapekey name", eq.Flex)
	}
	eq.ShapeKey = string(rhs[i].Lexeme)
	i++

	// optional trailing coefficient
	if i+1 < len(rhs) && rhs[i].Type == tokenStar {
		if rhs[i+1].Type != tokenNumber {
			return eq, errors.Wrapf(ErrFlexEquationUnsupported, "flex %q: nonlinear term", eq.Flex)
		}
		eq.Scale *= mustFloat(rhs[i+1])
		i += 2
	}

	// optional offset
	if i < len(rhs) {
		if i+1 >= len(rhs) || rhs[i+1].Type != tokenNumber {
			return eq, errors.Wrapf(ErrFlexEquationUnsupported, "flex %q: trailing %q", eq.Flex, rhs[i].Lexeme)
		}
		switch rhs[i].Type {
		case tokenPlus:
			eq.Offset = mustFloat(rhs[i+1])
		case tokenMinus:
			eq.Offset = -mustFloat(rhs[i+1])
		default:
			return eq, errors.Wrapf(ErrFlexEquationUnsupported, "flex %q: unexpected %q", eq.Flex, rhs[i].Lexeme)
		}
		i += 2
	}

	if i != len(rhs) {
		return eq, errors.Wrapf(ErrFlexEquationUnsupported, "flex %q: trailing tokens", eq.Flex)
	}
	if eq.Scale == 0 {
		return eq, errors.Wrapf(ErrFlexEquationUnsupported, "flex %q: zero scale is not invertible", eq.Flex)
	}
	return eq, nil
}

func mustFloat(tok *lexmachine.Token) float64 {
	f, err := strconv.ParseFloat(string(tok.Lexeme), 64)
	if err != nil {
		// the lexer only matches well-formed numbers
		panic(err)
	}
	return f
}
