// Package condition реализует изолированный вычислитель условий выбора.
//
// Грамматика фиксированная и песочная: литералы (числа, строки в одинарных
// или двойных кавычках, true, false, null), имена переменных, сравнения
// (== != < <= > >=), булевы связки (&& || !) и скобки. Никакого доступа к
// функциям хоста нет — обращение к переменной является просто чтением из
// переданной карты.
//
//	gold >= 100 && (class == 'mage' || hasKey)
//
// Любая ошибка разбора или вычисления (неизвестная переменная, несовпадение
// типов, кривой синтаксис) трактуется как false: невычислимое условие
// никогда не открывает выбор.
package condition

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Evaluate вычисляет условие над снимком переменных.
// Никогда не паникует и не мутирует vars; при любой ошибке возвращает false.
func Evaluate(expr string, vars map[string]any) bool {
	ok, err := EvaluateErr(expr, vars)
	if err != nil {
		return false
	}
	return ok
}

// EvaluateErr — как Evaluate, но с ошибкой для диагностики в логах хоста.
func EvaluateErr(expr string, vars map[string]any) (result bool, err error) {
	// Страховка от паники: контракт — никогда не бросать.
	defer func() {
		if r := recover(); r != nil {
			result = false
			err = fmt.Errorf("condition panic: %v", r)
		}
	}()

	toks, err := tokenize(expr)
	if err != nil {
		return false, err
	}
	p := &parser{toks: toks, vars: vars}
	v, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if !p.eof() {
		return false, fmt.Errorf("unexpected token %q", p.peek().text)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("condition result is %T, want bool", v)
	}
	return b, nil
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokOp     // == != < <= > >= && || !
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(expr string) ([]token, error) {
	var toks []token
	runes := []rune(expr)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case r == '\'' || r == '"':
			quote := r
			j := i + 1
			var sb strings.Builder
			for j < len(runes) && runes[j] != quote {
				if runes[j] == '\\' && j+1 < len(runes) {
					j++
				}
				sb.WriteRune(runes[j])
				j++
			}
			if j >= len(runes) {
				return nil, errors.New("unterminated string literal")
			}
			toks = append(toks, token{tokString, sb.String()})
			i = j + 1
		case r == '&' || r == '|':
			if i+1 >= len(runes) || runes[i+1] != r {
				return nil, fmt.Errorf("unexpected character %q", r)
			}
			toks = append(toks, token{tokOp, string([]rune{r, r})})
			i += 2
		case r == '=':
			if i+1 >= len(runes) || runes[i+1] != '=' {
				return nil, errors.New("assignment is not allowed, use ==")
			}
			toks = append(toks, token{tokOp, "=="})
			i += 2
		case r == '!':
			if i+1 < len(runes) && runes[i+1] == '=' {
				toks = append(toks, token{tokOp, "!="})
				i += 2
			} else {
				toks = append(toks, token{tokOp, "!"})
				i++
			}
		case r == '<' || r == '>':
			op := string(r)
			if i+1 < len(runes) && runes[i+1] == '=' {
				op += "="
				i++
			}
			toks = append(toks, token{tokOp, op})
			i++
		case unicode.IsDigit(r) || (r == '-' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			j := i + 1
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, string(runes[i:j])})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i + 1
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			toks = append(toks, token{tokIdent, string(runes[i:j])})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q", r)
		}
	}
	if len(toks) == 0 {
		return nil, errors.New("empty condition")
	}
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
	vars map[string]any
}

func (p *parser) eof() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) acceptOp(ops ...string) (string, bool) {
	if p.eof() || p.toks[p.pos].kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if p.toks[p.pos].text == op {
			p.pos++
			return op, true
		}
	}
	return "", false
}

func (p *parser) parseOr() (any, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.acceptOp("||"); !ok {
			return left, nil
		}
		lb, ok := left.(bool)
		if !ok {
			return nil, fmt.Errorf("operand of || is %T, want bool", left)
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		rb, ok := right.(bool)
		if !ok {
			return nil, fmt.Errorf("operand of || is %T, want bool", right)
		}
		left = lb || rb
	}
}

func (p *parser) parseAnd() (any, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.acceptOp("&&"); !ok {
			return left, nil
		}
		lb, ok := left.(bool)
		if !ok {
			return nil, fmt.Errorf("operand of && is %T, want bool", left)
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		rb, ok := right.(bool)
		if !ok {
			return nil, fmt.Errorf("operand of && is %T, want bool", right)
		}
		left = lb && rb
	}
}

func (p *parser) parseUnary() (any, error) {
	if _, ok := p.acceptOp("!"); ok {
		v, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("operand of ! is %T, want bool", v)
		}
		return !b, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (any, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	op, ok := p.acceptOp("==", "!=", "<", "<=", ">", ">=")
	if !ok {
		return left, nil
	}
	right, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return compare(op, left, right)
}

func (p *parser) parsePrimary() (any, error) {
	if p.eof() {
		return nil, errors.New("unexpected end of condition")
	}
	tok := p.toks[p.pos]
	switch tok.kind {
	case tokNumber:
		p.pos++
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", tok.text)
		}
		return f, nil
	case tokString:
		p.pos++
		return tok.text, nil
	case tokIdent:
		p.pos++
		switch tok.text {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null":
			return nil, nil
		}
		v, ok := p.vars[tok.text]
		if !ok {
			return nil, fmt.Errorf("unknown variable %q", tok.text)
		}
		return normalize(v), nil
	case tokLParen:
		p.pos++
		v, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.eof() || p.toks[p.pos].kind != tokRParen {
			return nil, errors.New("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	default:
		return nil, fmt.Errorf("unexpected token %q", tok.text)
	}
}

// normalize приводит числовые значения из снимка переменных к float64,
// чтобы int из кода хоста и число из JSON сравнивались одинаково.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

func compare(op string, left, right any) (bool, error) {
	switch op {
	case "==", "!=":
		eq, err := equals(left, right)
		if err != nil {
			return false, err
		}
		if op == "!=" {
			return !eq, nil
		}
		return eq, nil
	}

	// Порядковые сравнения определены для чисел и строк.
	lf, lok := left.(float64)
	rf, rok := right.(float64)
	if lok && rok {
		switch op {
		case "<":
			return lf < rf, nil
		case "<=":
			return lf <= rf, nil
		case ">":
			return lf > rf, nil
		case ">=":
			return lf >= rf, nil
		}
	}
	ls, lok2 := left.(string)
	rs, rok2 := right.(string)
	if lok2 && rok2 {
		switch op {
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		case ">":
			return ls > rs, nil
		case ">=":
			return ls >= rs, nil
		}
	}
	return false, fmt.Errorf("cannot order %T and %T", left, right)
}

func equals(left, right any) (bool, error) {
	if left == nil || right == nil {
		return left == nil && right == nil, nil
	}
	switch l := left.(type) {
	case float64:
		r, ok := right.(float64)
		if !ok {
			return false, fmt.Errorf("cannot compare number with %T", right)
		}
		return l == r, nil
	case string:
		r, ok := right.(string)
		if !ok {
			return false, fmt.Errorf("cannot compare string with %T", right)
		}
		return l == r, nil
	case bool:
		r, ok := right.(bool)
		if !ok {
			return false, fmt.Errorf("cannot compare bool with %T", right)
		}
		return l == r, nil
	default:
		return false, fmt.Errorf("unsupported comparison type %T", left)
	}
}
