package sandbox

import "fmt"

// unsupported maps keywords that start constructs outside the accepted
// subset to the name reported to the caller.
var unsupported = map[string]string{
	"while":    "while loops",
	"lambda":   "lambda expressions",
	"class":    "class definitions",
	"with":     "with statements",
	"try":      "try statements",
	"except":   "try statements",
	"finally":  "try statements",
	"raise":    "raise statements",
	"global":   "global statements",
	"nonlocal": "nonlocal statements",
	"yield":    "generators",
	"async":    "async functions",
	"await":    "async functions",
	"del":      "del statements",
	"assert":   "assert statements",
}

var keywords = map[string]bool{
	"and": true, "or": true, "not": true, "in": true, "is": true, "if": true, "elif": true,
	"else": true, "for": true, "def": true, "return": true, "pass": true, "break": true,
	"continue": true, "import": true, "from": true, "as": true, "True": true, "False": true, "None": true,
}

// maxNesting bounds expression and block depth.
const maxNesting = 100

type parser struct {
	toks  []token
	pos   int
	depth int
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxNesting {
		return p.errorf(p.peek(), "nesting too deep")
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

// Parse builds a syntax tree for src.
func Parse(src string) (*Module, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	var body []Stmt
	for !p.at(tokEOF) {
		if p.at(tokNewline) {
			p.next()
			continue
		}
		stmts, err := p.statement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmts...)
	}
	return &Module{Body: body}, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) at(kind tokenKind) bool { return p.peek().kind == kind }

func (p *parser) atOp(op string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == op
}

func (p *parser) atKeyword(kw string) bool {
	t := p.peek()
	return t.kind == tokName && t.text == kw
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &SyntaxError{Line: t.line, Col: t.col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expectOp(op string) (token, error) {
	if !p.atOp(op) {
		return token{}, p.errorf(p.peek(), "expected %q, found %s", op, p.peek().describe())
	}
	return p.next(), nil
}

func (p *parser) expectKeyword(kw string) error {
	if !p.atKeyword(kw) {
		return p.errorf(p.peek(), "expected %q, found %s", kw, p.peek().describe())
	}
	p.next()
	return nil
}

func (p *parser) ident() (token, error) {
	t := p.peek()
	if t.kind != tokName || keywords[t.text] {
		return token{}, p.errorf(t, "expected a name, found %s", t.describe())
	}
	if what, ok := unsupported[t.text]; ok {
		return token{}, p.errorf(t, "%s are not supported", what)
	}
	return p.next(), nil
}

func (p *parser) statement() ([]Stmt, error) {
	t := p.peek()
	if t.kind == tokIndent {
		return nil, p.errorf(t, "unexpected indent")
	}
	if t.kind == tokOp && t.text == "@" {
		return nil, p.errorf(t, "decorators are not supported")
	}
	if t.kind == tokName {
		if what, ok := unsupported[t.text]; ok {
			return nil, p.errorf(t, "%s are not supported", what)
		}
		if t.text == "match" && p.matchStatement() {
			return nil, p.errorf(t, "match statements are not supported")
		}
		switch t.text {
		case "def":
			s, err := p.funcDef()
			return []Stmt{s}, err
		case "if":
			s, err := p.ifStmt()
			return []Stmt{s}, err
		case "for":
			s, err := p.forStmt()
			return []Stmt{s}, err
		}
	}
	return p.simpleStatements()
}

// matchStatement reports whether a leading "match" name starts a match
// statement rather than being used as an identifier.
func (p *parser) matchStatement() bool {
	if p.pos+1 >= len(p.toks) {
		return false
	}
	n := p.toks[p.pos+1]
	return n.kind == tokName || n.kind == tokString
}

func (p *parser) simpleStatements() ([]Stmt, error) {
	var out []Stmt
	for {
		s, err := p.smallStatement()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
		if !p.atOp(";") {
			break
		}
		p.next()
		if p.at(tokNewline) || p.at(tokEOF) {
			break
		}
	}
	if p.at(tokEOF) {
		return out, nil
	}
	if !p.at(tokNewline) {
		return nil, p.errorf(p.peek(), "unexpected %s", p.peek().describe())
	}
	p.next()
	return out, nil
}

func (p *parser) smallStatement() (Stmt, error) {
	t := p.peek()
	ps := pos{t.line}
	if t.kind == tokName {
		switch t.text {
		case "pass":
			p.next()
			return &Pass{ps}, nil
		case "break":
			p.next()
			return &Break{ps}, nil
		case "continue":
			p.next()
			return &Continue{ps}, nil
		case "return":
			p.next()
			if p.at(tokNewline) || p.at(tokEOF) || p.atOp(";") {
				return &Return{pos: ps}, nil
			}
			v, err := p.exprList()
			if err != nil {
				return nil, err
			}
			return &Return{pos: ps, Value: v}, nil
		case "import":
			return p.importStmt()
		case "from":
			return p.fromStmt()
		}
	}

	first, err := p.exprList()
	if err != nil {
		return nil, err
	}
	if op := p.peek(); op.kind == tokOp {
		switch op.text {
		case "+=", "-=", "*=", "/=", "//=", "%=", "**=":
			p.next()
			if err := checkTarget(p, first, t); err != nil {
				return nil, err
			}
			v, err := p.expr()
			if err != nil {
				return nil, err
			}
			return &AugAssign{pos: ps, Target: first, Op: op.text[:len(op.text)-1], Value: v}, nil
		case "=":
			targets := []Expr{first}
			var value Expr
			for p.atOp("=") {
				p.next()
				v, err := p.exprList()
				if err != nil {
					return nil, err
				}
				targets = append(targets, v)
			}
			value, targets = targets[len(targets)-1], targets[:len(targets)-1]
			for _, tg := range targets {
				if err := checkTarget(p, tg, t); err != nil {
					return nil, err
				}
			}
			return &Assign{pos: ps, Targets: targets, Value: value}, nil
		case ":=":
			return nil, p.errorf(op, "assignment expressions are not supported")
		case ":":
			return nil, p.errorf(op, "annotations are not supported")
		}
	}
	return &ExprStmt{pos: ps, X: first}, nil
}

func checkTarget(p *parser, e Expr, at token) error {
	switch n := e.(type) {
	case *Name, *Attribute, *Subscript:
		return nil
	case *TupleExpr:
		for _, x := range n.Elts {
			if err := checkTarget(p, x, at); err != nil {
				return err
			}
		}
		return nil
	case *ListExpr:
		for _, x := range n.Elts {
			if err := checkTarget(p, x, at); err != nil {
				return err
			}
		}
		return nil
	}
	return p.errorf(at, "cannot assign to expression")
}

func (p *parser) dottedName() (string, error) {
	t, err := p.ident()
	if err != nil {
		return "", err
	}
	name := t.text
	for p.atOp(".") {
		p.next()
		t, err := p.ident()
		if err != nil {
			return "", err
		}
		name += "." + t.text
	}
	return name, nil
}

func (p *parser) importStmt() (Stmt, error) {
	t := p.next()
	s := &Import{pos: pos{t.line}}
	for {
		name, err := p.dottedName()
		if err != nil {
			return nil, err
		}
		a := Alias{Name: name}
		if p.atKeyword("as") {
			p.next()
			as, err := p.ident()
			if err != nil {
				return nil, err
			}
			a.AsName = as.text
		}
		s.Names = append(s.Names, a)
		if !p.atOp(",") {
			return s, nil
		}
		p.next()
	}
}

func (p *parser) fromStmt() (Stmt, error) {
	t := p.next()
	if p.atOp(".") || p.atOp("...") {
		return nil, p.errorf(p.peek(), "relative imports are not supported")
	}
	module, err := p.dottedName()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("import"); err != nil {
		return nil, err
	}
	s := &ImportFrom{pos: pos{t.line}, Module: module}
	if p.atOp("*") {
		p.next()
		s.Names = []Alias{{Name: "*"}}
		return s, nil
	}
	paren := p.atOp("(")
	if paren {
		p.next()
	}
	for {
		n, err := p.ident()
		if err != nil {
			return nil, err
		}
		a := Alias{Name: n.text}
		if p.atKeyword("as") {
			p.next()
			as, err := p.ident()
			if err != nil {
				return nil, err
			}
			a.AsName = as.text
		}
		s.Names = append(s.Names, a)
		if !p.atOp(",") {
			break
		}
		p.next()
		if paren && p.atOp(")") {
			break
		}
	}
	if paren {
		if _, err := p.expectOp(")"); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (p *parser) block() ([]Stmt, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	if _, err := p.expectOp(":"); err != nil {
		return nil, err
	}
	if !p.at(tokNewline) {
		return p.simpleStatements()
	}
	p.next()
	if !p.at(tokIndent) {
		return nil, p.errorf(p.peek(), "expected an indented block")
	}
	p.next()
	var body []Stmt
	for !p.at(tokDedent) && !p.at(tokEOF) {
		if p.at(tokNewline) {
			p.next()
			continue
		}
		stmts, err := p.statement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmts...)
	}
	if p.at(tokDedent) {
		p.next()
	}
	return body, nil
}

func (p *parser) funcDef() (Stmt, error) {
	t := p.next()
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp("("); err != nil {
		return nil, err
	}
	fd := &FuncDef{pos: pos{t.line}, Name: name.text}
	for !p.atOp(")") {
		if p.atOp("*") || p.atOp("**") {
			return nil, p.errorf(p.peek(), "star arguments are not supported")
		}
		pn, err := p.ident()
		if err != nil {
			return nil, err
		}
		if p.atOp(":") {
			return nil, p.errorf(p.peek(), "annotations are not supported")
		}
		prm := Param{Name: pn.text}
		if p.atOp("=") {
			p.next()
			d, err := p.expr()
			if err != nil {
				return nil, err
			}
			prm.Default = d
		} else if len(fd.Params) > 0 && fd.Params[len(fd.Params)-1].Default != nil {
			return nil, p.errorf(pn, "non-default parameter follows default parameter")
		}
		fd.Params = append(fd.Params, prm)
		if !p.atOp(",") {
			break
		}
		p.next()
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	if p.atOp("->") {
		return nil, p.errorf(p.peek(), "annotations are not supported")
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	fd.Body = body
	return fd, nil
}

func (p *parser) ifStmt() (Stmt, error) {
	t := p.next()
	cond, err := p.expr()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	s := &If{pos: pos{t.line}, Cond: cond, Body: body}
	switch {
	case p.atKeyword("elif"):
		elif, err := p.ifStmt()
		if err != nil {
			return nil, err
		}
		s.Else = []Stmt{elif}
	case p.atKeyword("else"):
		p.next()
		els, err := p.block()
		if err != nil {
			return nil, err
		}
		s.Else = els
	}
	return s, nil
}

func (p *parser) forStmt() (Stmt, error) {
	t := p.next()
	target, err := p.targetList()
	if err != nil {
		return nil, err
	}
	if err := checkTarget(p, target, t); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("in"); err != nil {
		return nil, err
	}
	iter, err := p.exprList()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if p.atKeyword("else") {
		return nil, p.errorf(p.peek(), "for-else is not supported")
	}
	return &For{pos: pos{t.line}, Target: target, Iter: iter, Body: body}, nil
}

// targetList parses loop targets, which stop before "in".
func (p *parser) targetList() (Expr, error) {
	t := p.peek()
	var elts []Expr
	for {
		e, err := p.arith()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
		if !p.atOp(",") {
			break
		}
		p.next()
		if p.atKeyword("in") {
			break
		}
	}
	if len(elts) == 1 {
		return elts[0], nil
	}
	return &TupleExpr{pos: pos{t.line}, Elts: elts}, nil
}

// exprList parses "a, b, c" into a tuple, or a single expression.
func (p *parser) exprList() (Expr, error) {
	t := p.peek()
	first, err := p.expr()
	if err != nil {
		return nil, err
	}
	if !p.atOp(",") {
		return first, nil
	}
	elts := []Expr{first}
	for p.atOp(",") {
		p.next()
		if p.endOfList() {
			break
		}
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	return &TupleExpr{pos: pos{t.line}, Elts: elts}, nil
}

func (p *parser) endOfList() bool {
	t := p.peek()
	if t.kind == tokNewline || t.kind == tokEOF {
		return true
	}
	return t.kind == tokOp && (t.text == "=" || t.text == ")" || t.text == "]" || t.text == "}" || t.text == ";" || t.text == ":")
}

func (p *parser) expr() (Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	if p.atKeyword("lambda") {
		return nil, p.errorf(p.peek(), "lambda expressions are not supported")
	}
	if p.atKeyword("yield") || p.atKeyword("await") {
		return nil, p.errorf(p.peek(), "%s are not supported", unsupported[p.peek().text])
	}
	t := p.peek()
	x, err := p.orTest()
	if err != nil {
		return nil, err
	}
	if !p.atKeyword("if") {
		return x, nil
	}
	p.next()
	cond, err := p.orTest()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("else"); err != nil {
		return nil, err
	}
	els, err := p.expr()
	if err != nil {
		return nil, err
	}
	return &IfExpr{pos: pos{t.line}, Cond: cond, Then: x, Else: els}, nil
}

func (p *parser) orTest() (Expr, error) {
	return p.boolOp("or", p.andTest)
}

func (p *parser) andTest() (Expr, error) {
	return p.boolOp("and", p.notTest)
}

func (p *parser) boolOp(op string, operand func() (Expr, error)) (Expr, error) {
	t := p.peek()
	x, err := operand()
	if err != nil {
		return nil, err
	}
	if !p.atKeyword(op) {
		return x, nil
	}
	b := &BoolOp{pos: pos{t.line}, Op: op, Values: []Expr{x}}
	for p.atKeyword(op) {
		p.next()
		y, err := operand()
		if err != nil {
			return nil, err
		}
		b.Values = append(b.Values, y)
	}
	return b, nil
}

func (p *parser) notTest() (Expr, error) {
	if p.atKeyword("not") {
		t := p.next()
		x, err := p.notTest()
		if err != nil {
			return nil, err
		}
		return &Unary{pos: pos{t.line}, Op: "not", X: x}, nil
	}
	return p.comparison()
}

func (p *parser) compOp() (string, bool) {
	t := p.peek()
	if t.kind == tokOp {
		switch t.text {
		case "<", ">", "==", ">=", "<=", "!=":
			p.next()
			return t.text, true
		}
		return "", false
	}
	if t.kind != tokName {
		return "", false
	}
	switch t.text {
	case "in":
		p.next()
		return "in", true
	case "not":
		if n := p.toks[p.pos+1]; n.kind == tokName && n.text == "in" {
			p.next()
			p.next()
			return "not in", true
		}
	case "is":
		p.next()
		if p.atKeyword("not") {
			p.next()
			return "is not", true
		}
		return "is", true
	}
	return "", false
}

func (p *parser) comparison() (Expr, error) {
	t := p.peek()
	x, err := p.bitOr()
	if err != nil {
		return nil, err
	}
	op, ok := p.compOp()
	if !ok {
		return x, nil
	}
	c := &Compare{pos: pos{t.line}, Operands: []Expr{x}}
	for ok {
		y, err := p.bitOr()
		if err != nil {
			return nil, err
		}
		c.Ops = append(c.Ops, op)
		c.Operands = append(c.Operands, y)
		op, ok = p.compOp()
	}
	return c, nil
}

// bitOr rejects bitwise operators, which the builder never needs.
func (p *parser) bitOr() (Expr, error) {
	x, err := p.arith()
	if err != nil {
		return nil, err
	}
	for _, op := range []string{"|", "&", "^", "<<", ">>", "~"} {
		if p.atOp(op) {
			return nil, p.errorf(p.peek(), "bitwise operator %q is not supported", op)
		}
	}
	return x, nil
}

func (p *parser) arith() (Expr, error) {
	t := p.peek()
	x, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.atOp("+") || p.atOp("-") {
		op := p.next().text
		y, err := p.term()
		if err != nil {
			return nil, err
		}
		x = &Binary{pos: pos{t.line}, Op: op, X: x, Y: y}
	}
	return x, nil
}

func (p *parser) term() (Expr, error) {
	t := p.peek()
	x, err := p.factor()
	if err != nil {
		return nil, err
	}
	for p.atOp("*") || p.atOp("/") || p.atOp("//") || p.atOp("%") || p.atOp("@") {
		if p.atOp("@") {
			return nil, p.errorf(p.peek(), "matrix multiplication is not supported")
		}
		op := p.next().text
		y, err := p.factor()
		if err != nil {
			return nil, err
		}
		x = &Binary{pos: pos{t.line}, Op: op, X: x, Y: y}
	}
	return x, nil
}

func (p *parser) factor() (Expr, error) {
	if p.atOp("-") || p.atOp("+") {
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		t := p.next()
		x, err := p.factor()
		if err != nil {
			return nil, err
		}
		return &Unary{pos: pos{t.line}, Op: t.text, X: x}, nil
	}
	if p.atOp("~") {
		return nil, p.errorf(p.peek(), "bitwise operator \"~\" is not supported")
	}
	return p.power()
}

func (p *parser) power() (Expr, error) {
	t := p.peek()
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	if p.atOp("**") {
		p.next()
		y, err := p.factor()
		if err != nil {
			return nil, err
		}
		return &Binary{pos: pos{t.line}, Op: "**", X: x, Y: y}, nil
	}
	return x, nil
}

func (p *parser) primary() (Expr, error) {
	x, err := p.atom()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		switch {
		case p.atOp("."):
			p.next()
			name := p.peek()
			if name.kind != tokName {
				return nil, p.errorf(name, "expected attribute name, found %s", name.describe())
			}
			p.next()
			x = &Attribute{pos: pos{t.line}, X: x, Attr: name.text}
		case p.atOp("("):
			p.next()
			c, err := p.callArgs(x, t)
			if err != nil {
				return nil, err
			}
			x = c
		case p.atOp("["):
			p.next()
			idx, err := p.subscript()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectOp("]"); err != nil {
				return nil, err
			}
			x = &Subscript{pos: pos{t.line}, X: x, Index: idx}
		default:
			return x, nil
		}
	}
}

func (p *parser) callArgs(fn Expr, open token) (Expr, error) {
	c := &Call{pos: pos{open.line}, Func: fn}
	for !p.atOp(")") {
		if p.atOp("*") || p.atOp("**") {
			return nil, p.errorf(p.peek(), "star arguments are not supported")
		}
		if t := p.peek(); t.kind == tokName && p.toks[p.pos+1].kind == tokOp && p.toks[p.pos+1].text == "=" {
			p.next()
			p.next()
			v, err := p.expr()
			if err != nil {
				return nil, err
			}
			c.Kwargs = append(c.Kwargs, Keyword{Name: t.text, Value: v})
		} else {
			if len(c.Kwargs) > 0 {
				return nil, p.errorf(t, "positional argument follows keyword argument")
			}
			v, err := p.expr()
			if err != nil {
				return nil, err
			}
			if p.atKeyword("for") {
				return nil, p.errorf(p.peek(), "comprehensions are not supported")
			}
			c.Args = append(c.Args, v)
		}
		if !p.atOp(",") {
			break
		}
		p.next()
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return c, nil
}

func (p *parser) subscript() (Expr, error) {
	t := p.peek()
	var lo, hi Expr
	var err error
	if !p.atOp(":") {
		lo, err = p.expr()
		if err != nil {
			return nil, err
		}
		if !p.atOp(":") {
			if p.atOp(",") {
				return nil, p.errorf(p.peek(), "multi-dimensional subscripts are not supported")
			}
			return lo, nil
		}
	}
	p.next()
	if !p.atOp("]") {
		if p.atOp(":") {
			return nil, p.errorf(p.peek(), "slice steps are not supported")
		}
		hi, err = p.expr()
		if err != nil {
			return nil, err
		}
	}
	if p.atOp(":") {
		return nil, p.errorf(p.peek(), "slice steps are not supported")
	}
	return &SliceExpr{pos: pos{t.line}, Lo: lo, Hi: hi}, nil
}

func (p *parser) atom() (Expr, error) {
	t := p.peek()
	ps := pos{t.line}
	switch t.kind {
	case tokInt:
		p.next()
		return &IntLit{pos: ps, Value: t.i}, nil
	case tokFloat:
		p.next()
		return &FloatLit{pos: ps, Value: t.f}, nil
	case tokString:
		p.next()
		s := t.text
		for p.at(tokString) {
			s += p.next().text
		}
		return &StrLit{pos: ps, Value: s}, nil
	case tokName:
		switch t.text {
		case "True", "False":
			p.next()
			return &BoolLit{pos: ps, Value: t.text == "True"}, nil
		case "None":
			p.next()
			return &NoneLit{ps}, nil
		}
		id, err := p.ident()
		if err != nil {
			return nil, err
		}
		return &Name{pos: ps, ID: id.text}, nil
	case tokOp:
		switch t.text {
		case "(":
			p.next()
			return p.parenthesized(t)
		case "[":
			p.next()
			elts, err := p.sequence("]")
			if err != nil {
				return nil, err
			}
			return &ListExpr{pos: ps, Elts: elts}, nil
		case "{":
			p.next()
			return p.dict(t)
		}
	}
	return nil, p.errorf(t, "unexpected %s", t.describe())
}

func (p *parser) parenthesized(open token) (Expr, error) {
	if p.atOp(")") {
		p.next()
		return &TupleExpr{pos: pos{open.line}}, nil
	}
	first, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.atKeyword("for") {
		return nil, p.errorf(p.peek(), "generator expressions are not supported")
	}
	if p.atOp(")") {
		p.next()
		return first, nil
	}
	if !p.atOp(",") {
		return nil, p.errorf(p.peek(), "expected \")\", found %s", p.peek().describe())
	}
	p.next()
	rest, err := p.sequence(")")
	if err != nil {
		return nil, err
	}
	return &TupleExpr{pos: pos{open.line}, Elts: append([]Expr{first}, rest...)}, nil
}

// sequence parses comma-separated expressions up to and including close.
func (p *parser) sequence(close string) ([]Expr, error) {
	var elts []Expr
	for !p.atOp(close) {
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		if p.atKeyword("for") {
			return nil, p.errorf(p.peek(), "comprehensions are not supported")
		}
		elts = append(elts, e)
		if !p.atOp(",") {
			break
		}
		p.next()
	}
	if _, err := p.expectOp(close); err != nil {
		return nil, err
	}
	return elts, nil
}

func (p *parser) dict(open token) (Expr, error) {
	d := &DictExpr{pos: pos{open.line}}
	for !p.atOp("}") {
		k, err := p.expr()
		if err != nil {
			return nil, err
		}
		if !p.atOp(":") {
			return nil, p.errorf(p.peek(), "set literals are not supported")
		}
		p.next()
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		if p.atKeyword("for") {
			return nil, p.errorf(p.peek(), "comprehensions are not supported")
		}
		d.Keys = append(d.Keys, k)
		d.Values = append(d.Values, v)
		if !p.atOp(",") {
			break
		}
		p.next()
	}
	if _, err := p.expectOp("}"); err != nil {
		return nil, err
	}
	return d, nil
}
