// internal/rules/expression.go
package rules

import (
	"fmt"
	"strconv"
	"strings"

	"eligibility-engine/internal/models"
)

// Expr is a parsed boolean rule expression. Expressions are parsed once per
// rule version and evaluated against many candidates; evaluation walks a
// typed AST and never executes code, so arbitrary rule text stays auditable
// and sandboxed.
//
// Grammar (word and symbol forms are interchangeable):
//
//	expr       := orExpr
//	orExpr     := andExpr (("||" | "or") andExpr)*
//	andExpr    := notExpr (("&&" | "and") notExpr)*
//	notExpr    := ("!" | "not") notExpr | comparison
//	comparison := operand (compOp operand | ("in" | "not" "in") list)?
//	operand    := number | string | "true" | "false" | identifier | "(" expr ")"
//	list       := "[" operand ("," operand)* "]"
//
// Identifiers resolve to candidate attributes. A missing attribute is an
// UnknownAttributeError, which the evaluator maps to a failed rule with a
// data-not-available reason.
type Expr struct {
	root exprNode
	src  string
}

// ParseExpression parses src into a reusable expression.
func ParseExpression(src string) (*Expr, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, fmt.Errorf("lex %q: %w", src, err)
	}
	p := &parser{tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	if !p.eof() {
		return nil, fmt.Errorf("parse %q: unexpected token %q", src, p.peek().text)
	}
	return &Expr{root: root, src: src}, nil
}

// Eval evaluates the expression against the candidate's attribute bag.
func (e *Expr) Eval(c *models.Candidate) (bool, error) {
	v, err := e.root.eval(c)
	if err != nil {
		return false, err
	}
	if v.kind != kindBool {
		return false, fmt.Errorf("expression %q is not boolean", e.src)
	}
	return v.boolVal, nil
}

func (e *Expr) String() string { return e.src }

// UnknownAttributeError marks an identifier with no matching candidate
// attribute. Absence is never a pass.
type UnknownAttributeError struct {
	Name string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("unknown attribute %q", e.Name)
}

// ==========================
// Values
// ==========================

type valueKind int

const (
	kindNum valueKind = iota
	kindStr
	kindBool
)

type exprValue struct {
	kind    valueKind
	numVal  float64
	strVal  string
	boolVal bool
}

func numValue(f float64) exprValue { return exprValue{kind: kindNum, numVal: f} }
func strValue(s string) exprValue  { return exprValue{kind: kindStr, strVal: s} }
func boolValue(b bool) exprValue   { return exprValue{kind: kindBool, boolVal: b} }

func (v exprValue) equals(o exprValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case kindNum:
		return v.numVal == o.numVal
	case kindStr:
		return v.strVal == o.strVal
	default:
		return v.boolVal == o.boolVal
	}
}

// ==========================
// AST
// ==========================

type exprNode interface {
	eval(c *models.Candidate) (exprValue, error)
}

type literalNode struct {
	val exprValue
}

func (n *literalNode) eval(*models.Candidate) (exprValue, error) {
	return n.val, nil
}

type identNode struct {
	name string
}

func (n *identNode) eval(c *models.Candidate) (exprValue, error) {
	if !c.Has(n.name) {
		return exprValue{}, &UnknownAttributeError{Name: n.name}
	}
	// Inspect the raw value so string attributes stay strings even when the
	// text happens to parse as a number.
	switch raw := c.Attributes[n.name].(type) {
	case bool:
		return boolValue(raw), nil
	case string:
		return strValue(raw), nil
	}
	if f, ok := c.Float(n.name); ok {
		return numValue(f), nil
	}
	return exprValue{}, fmt.Errorf("attribute %q has unsupported type", n.name)
}

type notNode struct {
	inner exprNode
}

func (n *notNode) eval(c *models.Candidate) (exprValue, error) {
	v, err := n.inner.eval(c)
	if err != nil {
		return exprValue{}, err
	}
	if v.kind != kindBool {
		return exprValue{}, fmt.Errorf("operand of 'not' is not boolean")
	}
	return boolValue(!v.boolVal), nil
}

type logicalNode struct {
	op          string // "&&" or "||"
	left, right exprNode
}

func (n *logicalNode) eval(c *models.Candidate) (exprValue, error) {
	l, err := n.left.eval(c)
	if err != nil {
		return exprValue{}, err
	}
	if l.kind != kindBool {
		return exprValue{}, fmt.Errorf("left operand of %q is not boolean", n.op)
	}
	// No short-circuit on attribute errors: both sides must be evaluable so
	// that verdicts stay deterministic regardless of operand order.
	r, err := n.right.eval(c)
	if err != nil {
		return exprValue{}, err
	}
	if r.kind != kindBool {
		return exprValue{}, fmt.Errorf("right operand of %q is not boolean", n.op)
	}
	if n.op == "&&" {
		return boolValue(l.boolVal && r.boolVal), nil
	}
	return boolValue(l.boolVal || r.boolVal), nil
}

type comparisonNode struct {
	op          string // == != < <= > >=
	left, right exprNode
}

func (n *comparisonNode) eval(c *models.Candidate) (exprValue, error) {
	l, err := n.left.eval(c)
	if err != nil {
		return exprValue{}, err
	}
	r, err := n.right.eval(c)
	if err != nil {
		return exprValue{}, err
	}

	switch n.op {
	case "==":
		return boolValue(l.equals(r)), nil
	case "!=":
		return boolValue(!l.equals(r)), nil
	}

	if l.kind != kindNum || r.kind != kindNum {
		return exprValue{}, fmt.Errorf("operator %q requires numeric operands", n.op)
	}
	switch n.op {
	case "<":
		return boolValue(l.numVal < r.numVal), nil
	case "<=":
		return boolValue(l.numVal <= r.numVal), nil
	case ">":
		return boolValue(l.numVal > r.numVal), nil
	case ">=":
		return boolValue(l.numVal >= r.numVal), nil
	}
	return exprValue{}, fmt.Errorf("unsupported operator %q", n.op)
}

type membershipNode struct {
	left   exprNode
	list   []exprNode
	negate bool
}

func (n *membershipNode) eval(c *models.Candidate) (exprValue, error) {
	l, err := n.left.eval(c)
	if err != nil {
		return exprValue{}, err
	}
	found := false
	for _, item := range n.list {
		v, err := item.eval(c)
		if err != nil {
			return exprValue{}, err
		}
		if l.equals(v) {
			found = true
			break
		}
	}
	if n.negate {
		found = !found
	}
	return boolValue(found), nil
}

// ==========================
// Lexer
// ==========================

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokOp
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
)

type token struct {
	kind tokenKind
	text string
}

func lex(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		ch := src[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '(':
			tokens = append(tokens, token{tokLParen, "("})
			i++
		case ch == ')':
			tokens = append(tokens, token{tokRParen, ")"})
			i++
		case ch == '[':
			tokens = append(tokens, token{tokLBracket, "["})
			i++
		case ch == ']':
			tokens = append(tokens, token{tokRBracket, "]"})
			i++
		case ch == ',':
			tokens = append(tokens, token{tokComma, ","})
			i++
		case ch == '\'' || ch == '"':
			quote := ch
			j := i + 1
			for j < len(src) && src[j] != quote {
				j++
			}
			if j >= len(src) {
				return nil, fmt.Errorf("unterminated string at offset %d", i)
			}
			tokens = append(tokens, token{tokString, src[i+1 : j]})
			i = j + 1
		case strings.ContainsRune("&|=!<>", rune(ch)):
			j := i + 1
			for j < len(src) && strings.ContainsRune("&|=!<>", rune(src[j])) {
				j++
			}
			op := src[i:j]
			switch op {
			case "&&", "||", "==", "!=", "<", "<=", ">", ">=", "!":
				tokens = append(tokens, token{tokOp, op})
			default:
				return nil, fmt.Errorf("unknown operator %q at offset %d", op, i)
			}
			i = j
		case ch >= '0' && ch <= '9' || ch == '-' || ch == '.':
			j := i
			if src[j] == '-' {
				j++
			}
			for j < len(src) && (src[j] >= '0' && src[j] <= '9' || src[j] == '.') {
				j++
			}
			text := src[i:j]
			if _, err := strconv.ParseFloat(text, 64); err != nil {
				return nil, fmt.Errorf("invalid number %q at offset %d", text, i)
			}
			tokens = append(tokens, token{tokNumber, text})
			i = j
		case isIdentStart(ch):
			j := i
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			tokens = append(tokens, token{tokIdent, src[i:j]})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", ch, i)
		}
	}
	return tokens, nil
}

func isIdentStart(ch byte) bool {
	return ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || ch >= '0' && ch <= '9'
}

// ==========================
// Parser
// ==========================

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) eof() bool   { return p.pos >= len(p.tokens) }
func (p *parser) peek() token { return p.tokens[p.pos] }
func (p *parser) next() token { t := p.tokens[p.pos]; p.pos++; return t }

func (p *parser) matchOp(op string) bool {
	if p.eof() || p.tokens[p.pos].kind != tokOp || p.tokens[p.pos].text != op {
		return false
	}
	p.pos++
	return true
}

func (p *parser) matchKeyword(kw string) bool {
	if p.eof() || p.tokens[p.pos].kind != tokIdent || p.tokens[p.pos].text != kw {
		return false
	}
	p.pos++
	return true
}

func (p *parser) parseOr() (exprNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.matchOp("||") || p.matchKeyword("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &logicalNode{op: "||", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (exprNode, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.matchOp("&&") || p.matchKeyword("and") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &logicalNode{op: "&&", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (exprNode, error) {
	if p.matchOp("!") {
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notNode{inner: inner}, nil
	}
	// "not in" is handled by parseComparison; only treat "not" as negation
	// when it does not belong to a membership test.
	if !p.eof() && p.peek().kind == tokIdent && p.peek().text == "not" {
		if p.pos+1 < len(p.tokens) && p.tokens[p.pos+1].kind == tokIdent && p.tokens[p.pos+1].text == "in" {
			return p.parseComparison()
		}
		p.pos++
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notNode{inner: inner}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (exprNode, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	if p.eof() {
		return left, nil
	}

	if p.peek().kind == tokOp {
		op := p.peek().text
		switch op {
		case "==", "!=", "<", "<=", ">", ">=":
			p.next()
			right, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			return &comparisonNode{op: op, left: left, right: right}, nil
		}
		return left, nil
	}

	negate := false
	if p.peek().kind == tokIdent && p.peek().text == "not" {
		if p.pos+1 < len(p.tokens) && p.tokens[p.pos+1].kind == tokIdent && p.tokens[p.pos+1].text == "in" {
			p.pos += 2
			negate = true
		} else {
			return left, nil
		}
	} else if p.matchKeyword("in") {
		// fallthrough to list parse
	} else {
		return left, nil
	}

	list, err := p.parseList()
	if err != nil {
		return nil, err
	}
	return &membershipNode{left: left, list: list, negate: negate}, nil
}

func (p *parser) parseList() ([]exprNode, error) {
	if p.eof() || p.peek().kind != tokLBracket {
		return nil, fmt.Errorf("expected '[' after 'in'")
	}
	p.next()

	var items []exprNode
	for {
		if p.eof() {
			return nil, fmt.Errorf("unterminated list")
		}
		if p.peek().kind == tokRBracket {
			p.next()
			return items, nil
		}
		item, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if !p.eof() && p.peek().kind == tokComma {
			p.next()
		}
	}
}

func (p *parser) parseOperand() (exprNode, error) {
	if p.eof() {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	t := p.next()
	switch t.kind {
	case tokNumber:
		f, _ := strconv.ParseFloat(t.text, 64)
		return &literalNode{val: numValue(f)}, nil
	case tokString:
		return &literalNode{val: strValue(t.text)}, nil
	case tokIdent:
		switch t.text {
		case "true":
			return &literalNode{val: boolValue(true)}, nil
		case "false":
			return &literalNode{val: boolValue(false)}, nil
		default:
			return &identNode{name: t.text}, nil
		}
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.eof() || p.peek().kind != tokRParen {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.next()
		return inner, nil
	default:
		return nil, fmt.Errorf("unexpected token %q", t.text)
	}
}
