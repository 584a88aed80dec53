package sandbox

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	maxCallDepth = 64
	maxSequence  = 1 << 20
	maxString    = 1 << 20
	maxOutput    = 200
	maxPrecision = 100
	// maxAlloc caps the bytes a run may allocate for strings and sequences
	// in total. Sequence elements count as 16 bytes.
	maxAlloc     = 1 << 27
)

// Interp evaluates a parsed module. An Interp serves exactly one run.
type Interp struct {
	ctx      context.Context
	globals  map[string]Value
	maxSteps int
	steps    int
	alloc    int64
	depth    int
	output   []string
}

type frame struct {
	locals map[string]Value // nil at module level
}

type ctrl int

const (
	ctrlNone ctrl = iota
	ctrlReturn
	ctrlBreak
	ctrlContinue
)

func newInterp(ctx context.Context, globals map[string]Value, maxSteps int) *Interp {
	return &Interp{ctx: ctx, globals: globals, maxSteps: maxSteps}
}

// charge counts the storage behind a freshly built value against the run's
// allocation budget.
func (in *Interp) charge(v Value) (Value, error) {
	var n int64
	switch x := v.(type) {
	case string:
		n = int64(len(x))
	case *List:
		n = int64(len(x.Elems)) * 16
	case Tuple:
		n = int64(len(x)) * 16
	default:
		return v, nil
	}
	in.alloc += n
	if in.alloc > maxAlloc {
		return nil, rtErr("MemoryError", "allocation budget exceeded")
	}
	return v, nil
}

// Steps reports how many steps the run consumed.
func (in *Interp) Steps() int { return in.steps }

// Output returns lines written by print.
func (in *Interp) Output() []string { return in.output }

func (in *Interp) step() error {
	in.steps++
	if in.maxSteps > 0 && in.steps > in.maxSteps {
		return rtErr("StepLimitError", "step budget of %d exceeded", in.maxSteps)
	}
	if in.steps&127 == 0 {
		if err := in.ctx.Err(); err != nil {
			return rtErr("TimeoutError", "execution time limit exceeded")
		}
	}
	return nil
}

func (in *Interp) execModule(m *Module) error {
	_, _, err := in.execBlock(&frame{}, m.Body)
	return err
}

func (in *Interp) execBlock(fr *frame, body []Stmt) (ctrl, Value, error) {
	for _, st := range body {
		if err := in.step(); err != nil {
			return ctrlNone, nil, withLine(err, st.Line())
		}
		c, v, err := in.exec(fr, st)
		if err != nil {
			return ctrlNone, nil, withLine(err, st.Line())
		}
		if c != ctrlNone {
			return c, v, nil
		}
	}
	return ctrlNone, nil, nil
}

func withLine(err error, line int) error {
	re, ok := err.(*RuntimeError)
	if !ok {
		return &RuntimeError{Type: "Error", Msg: err.Error(), Line: line}
	}
	if re.Line == 0 {
		re.Line = line
	}
	return re
}

func (in *Interp) exec(fr *frame, st Stmt) (ctrl, Value, error) {
	switch s := st.(type) {
	case *Import:
		for _, a := range s.Names {
			if a.AsName != "" {
				in.store(fr, a.AsName, &ModuleRef{Path: a.Name})
				continue
			}
			top, _, _ := strings.Cut(a.Name, ".")
			in.store(fr, top, &ModuleRef{Path: top})
		}
	case *ImportFrom:
		for _, a := range s.Names {
			if a.Name == "*" {
				for _, name := range moduleExports(s.Module) {
					v, _ := lookupExport(s.Module, name)
					in.store(fr, name, v)
				}
				continue
			}
			v, ok := lookupExport(s.Module, a.Name)
			if !ok {
				return ctrlNone, nil, rtErr("ImportError", "cannot import name '%s' from '%s'", a.Name, s.Module)
			}
			in.store(fr, a.Bound(), v)
		}
	case *FuncDef:
		fn := &Function{Def: s}
		for _, p := range s.Params {
			if p.Default == nil {
				fn.Defaults = append(fn.Defaults, nil)
				continue
			}
			v, err := in.eval(fr, p.Default)
			if err != nil {
				return ctrlNone, nil, err
			}
			fn.Defaults = append(fn.Defaults, v)
		}
		in.store(fr, s.Name, fn)
	case *Assign:
		v, err := in.eval(fr, s.Value)
		if err != nil {
			return ctrlNone, nil, err
		}
		for _, t := range s.Targets {
			if err := in.assign(fr, t, v); err != nil {
				return ctrlNone, nil, err
			}
		}
	case *AugAssign:
		return ctrlNone, nil, in.augAssign(fr, s)
	case *ExprStmt:
		_, err := in.eval(fr, s.X)
		return ctrlNone, nil, err
	case *Return:
		if s.Value == nil {
			return ctrlReturn, None, nil
		}
		v, err := in.eval(fr, s.Value)
		if err != nil {
			return ctrlNone, nil, err
		}
		return ctrlReturn, v, nil
	case *For:
		return in.execFor(fr, s)
	case *If:
		cond, err := in.eval(fr, s.Cond)
		if err != nil {
			return ctrlNone, nil, err
		}
		if truthy(cond) {
			return in.execBlock(fr, s.Body)
		}
		return in.execBlock(fr, s.Else)
	case *Pass:
	case *Break:
		return ctrlBreak, nil, nil
	case *Continue:
		return ctrlContinue, nil, nil
	default:
		return ctrlNone, nil, rtErr("SyntaxError", "unsupported statement %T", st)
	}
	return ctrlNone, nil, nil
}

func (in *Interp) execFor(fr *frame, s *For) (ctrl, Value, error) {
	iterable, err := in.eval(fr, s.Iter)
	if err != nil {
		return ctrlNone, nil, err
	}
	next, err := iterate(iterable)
	if err != nil {
		return ctrlNone, nil, err
	}
	for {
		v, ok := next()
		if !ok {
			return ctrlNone, nil, nil
		}
		if err := in.step(); err != nil {
			return ctrlNone, nil, err
		}
		if err := in.assign(fr, s.Target, v); err != nil {
			return ctrlNone, nil, err
		}
		c, rv, err := in.execBlock(fr, s.Body)
		if err != nil {
			return ctrlNone, nil, err
		}
		switch c {
		case ctrlReturn:
			return c, rv, nil
		case ctrlBreak:
			return ctrlNone, nil, nil
		}
	}
}

func (in *Interp) store(fr *frame, name string, v Value) {
	if fr.locals != nil {
		fr.locals[name] = v
		return
	}
	in.globals[name] = v
}

func (in *Interp) load(fr *frame, name string) (Value, error) {
	if fr.locals != nil {
		if v, ok := fr.locals[name]; ok {
			return v, nil
		}
	}
	if v, ok := in.globals[name]; ok {
		return v, nil
	}
	return nil, rtErr("NameError", "name '%s' is not defined", name)
}

func (in *Interp) assign(fr *frame, target Expr, v Value) error {
	switch t := target.(type) {
	case *Name:
		in.store(fr, t.ID, v)
		return nil
	case *Attribute:
		obj, err := in.eval(fr, t.X)
		if err != nil {
			return err
		}
		return setAttr(obj, t.Attr, v)
	case *Subscript:
		obj, err := in.eval(fr, t.X)
		if err != nil {
			return err
		}
		idx, err := in.eval(fr, t.Index)
		if err != nil {
			return err
		}
		return setIndex(obj, idx, v)
	case *TupleExpr:
		return in.unpack(fr, t.Elts, v)
	case *ListExpr:
		return in.unpack(fr, t.Elts, v)
	}
	return rtErr("SyntaxError", "cannot assign to %T", target)
}

func (in *Interp) unpack(fr *frame, targets []Expr, v Value) error {
	vals, err := materialize(v)
	if err != nil {
		return err
	}
	if len(vals) != len(targets) {
		return valueErrorf("expected %d values to unpack, got %d", len(targets), len(vals))
	}
	for i, t := range targets {
		if err := in.assign(fr, t, vals[i]); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interp) augAssign(fr *frame, s *AugAssign) error {
	rhs, err := in.eval(fr, s.Value)
	if err != nil {
		return err
	}
	switch t := s.Target.(type) {
	case *Name:
		cur, err := in.load(fr, t.ID)
		if err != nil {
			return err
		}
		if l, ok := cur.(*List); ok && s.Op == "+" {
			items, err := materialize(rhs)
			if err != nil {
				return err
			}
			if len(l.Elems)+len(items) > maxSequence {
				return rtErr("MemoryError", "list too large")
			}
			if _, err := in.charge(Tuple(items)); err != nil {
				return err
			}
			l.Elems = append(l.Elems, items...)
			return nil
		}
		nv, err := in.binop(s.Op, cur, rhs)
		if err != nil {
			return err
		}
		in.store(fr, t.ID, nv)
		return nil
	case *Attribute:
		obj, err := in.eval(fr, t.X)
		if err != nil {
			return err
		}
		cur, err := getAttr(obj, t.Attr)
		if err != nil {
			return err
		}
		nv, err := in.binop(s.Op, cur, rhs)
		if err != nil {
			return err
		}
		return setAttr(obj, t.Attr, nv)
	case *Subscript:
		obj, err := in.eval(fr, t.X)
		if err != nil {
			return err
		}
		idx, err := in.eval(fr, t.Index)
		if err != nil {
			return err
		}
		cur, err := getIndex(obj, idx)
		if err != nil {
			return err
		}
		nv, err := in.binop(s.Op, cur, rhs)
		if err != nil {
			return err
		}
		return setIndex(obj, idx, nv)
	}
	return rtErr("SyntaxError", "illegal target for augmented assignment")
}

func (in *Interp) eval(fr *frame, e Expr) (Value, error) {
	switch n := e.(type) {
	case *Name:
		return in.load(fr, n.ID)
	case *IntLit:
		return n.Value, nil
	case *FloatLit:
		return n.Value, nil
	case *StrLit:
		return n.Value, nil
	case *BoolLit:
		return n.Value, nil
	case *NoneLit:
		return None, nil
	case *ListExpr:
		vals, err := in.evalAll(fr, n.Elts)
		if err != nil {
			return nil, err
		}
		return &List{Elems: vals}, nil
	case *TupleExpr:
		vals, err := in.evalAll(fr, n.Elts)
		if err != nil {
			return nil, err
		}
		return Tuple(vals), nil
	case *DictExpr:
		d := newDict()
		for i := range n.Keys {
			k, err := in.eval(fr, n.Keys[i])
			if err != nil {
				return nil, err
			}
			v, err := in.eval(fr, n.Values[i])
			if err != nil {
				return nil, err
			}
			if err := d.Set(k, v); err != nil {
				return nil, err
			}
		}
		return d, nil
	case *Attribute:
		x, err := in.eval(fr, n.X)
		if err != nil {
			return nil, err
		}
		return getAttr(x, n.Attr)
	case *Subscript:
		x, err := in.eval(fr, n.X)
		if err != nil {
			return nil, err
		}
		if sl, ok := n.Index.(*SliceExpr); ok {
			return in.slice(fr, x, sl)
		}
		idx, err := in.eval(fr, n.Index)
		if err != nil {
			return nil, err
		}
		return getIndex(x, idx)
	case *Call:
		fn, err := in.eval(fr, n.Func)
		if err != nil {
			return nil, err
		}
		var a Args
		if a.Pos, err = in.evalAll(fr, n.Args); err != nil {
			return nil, err
		}
		for _, kw := range n.Kwargs {
			v, err := in.eval(fr, kw.Value)
			if err != nil {
				return nil, err
			}
			a.Kw = append(a.Kw, kwArg{Name: kw.Name, Value: v})
		}
		return in.call(fn, a)
	case *Unary:
		x, err := in.eval(fr, n.X)
		if err != nil {
			return nil, err
		}
		return unop(n.Op, x)
	case *Binary:
		x, err := in.eval(fr, n.X)
		if err != nil {
			return nil, err
		}
		y, err := in.eval(fr, n.Y)
		if err != nil {
			return nil, err
		}
		return in.binop(n.Op, x, y)
	case *Compare:
		left, err := in.eval(fr, n.Operands[0])
		if err != nil {
			return nil, err
		}
		for i, op := range n.Ops {
			right, err := in.eval(fr, n.Operands[i+1])
			if err != nil {
				return nil, err
			}
			ok, err := compareOp(op, left, right)
			if err != nil {
				return nil, err
			}
			if !ok {
				return false, nil
			}
			left = right
		}
		return true, nil
	case *BoolOp:
		var v Value
		for _, x := range n.Values {
			var err error
			if v, err = in.eval(fr, x); err != nil {
				return nil, err
			}
			if truthy(v) == (n.Op == "or") {
				return v, nil
			}
		}
		return v, nil
	case *IfExpr:
		c, err := in.eval(fr, n.Cond)
		if err != nil {
			return nil, err
		}
		if truthy(c) {
			return in.eval(fr, n.Then)
		}
		return in.eval(fr, n.Else)
	}
	return nil, rtErr("SyntaxError", "unsupported expression %T", e)
}

func (in *Interp) evalAll(fr *frame, exprs []Expr) ([]Value, error) {
	out := make([]Value, 0, len(exprs))
	for _, x := range exprs {
		v, err := in.eval(fr, x)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (in *Interp) slice(fr *frame, x Value, sl *SliceExpr) (Value, error) {
	bound := func(e Expr, def int, n int) (int, error) {
		if e == nil {
			return def, nil
		}
		v, err := in.eval(fr, e)
		if err != nil {
			return 0, err
		}
		if _, none := v.(NoneType); none {
			return def, nil
		}
		i, err := toInt(v, "slice index")
		if err != nil {
			return 0, err
		}
		if i < 0 {
			i += int64(n)
		}
		return int(min(max(i, 0), int64(n))), nil
	}
	slice := func(n int) (int, int, error) {
		lo, err := bound(sl.Lo, 0, n)
		if err != nil {
			return 0, 0, err
		}
		hi, err := bound(sl.Hi, n, n)
		if err != nil {
			return 0, 0, err
		}
		if hi < lo {
			hi = lo
		}
		return lo, hi, nil
	}
	switch v := x.(type) {
	case string:
		r := []rune(v)
		lo, hi, err := slice(len(r))
		if err != nil {
			return nil, err
		}
		return string(r[lo:hi]), nil
	case Tuple:
		lo, hi, err := slice(len(v))
		if err != nil {
			return nil, err
		}
		return append(Tuple{}, v[lo:hi]...), nil
	case *List:
		lo, hi, err := slice(len(v.Elems))
		if err != nil {
			return nil, err
		}
		return &List{Elems: append([]Value{}, v.Elems[lo:hi]...)}, nil
	}
	return nil, typeErrorf("'%s' object is not subscriptable", typeName(x))
}

func (in *Interp) call(fn Value, a Args) (Value, error) {
	if err := in.step(); err != nil {
		return nil, err
	}
	switch f := fn.(type) {
	case *Function:
		return in.callFunction(f, a)
	case *Builtin:
		v, err := f.Fn(in, a)
		if err != nil {
			return nil, err
		}
		return in.charge(v)
	}
	return nil, typeErrorf("'%s' object is not callable", typeName(fn))
}

func (in *Interp) callFunction(f *Function, a Args) (Value, error) {
	if in.depth >= maxCallDepth {
		return nil, rtErr("RecursionError", "maximum recursion depth exceeded")
	}
	params := make([]string, len(f.Def.Params))
	for i, p := range f.Def.Params {
		params[i] = p.Name
		if p.Default != nil {
			params[i] += "?"
		}
	}
	vals, err := bindArgs(f.Def.Name, a, params...)
	if err != nil {
		return nil, err
	}
	locals := make(map[string]Value, len(params))
	for i, p := range f.Def.Params {
		v := vals[i]
		if v == nil {
			v = f.Defaults[i]
		}
		locals[p.Name] = v
	}
	in.depth++
	defer func() { in.depth-- }()
	c, rv, err := in.execBlock(&frame{locals: locals}, f.Def.Body)
	if err != nil {
		return nil, err
	}
	if c == ctrlReturn {
		return rv, nil
	}
	return None, nil
}

func (in *Interp) print(a Args) (Value, error) {
	sep := " "
	for _, kw := range a.Kw {
		if kw.Name == "sep" {
			if s, ok := kw.Value.(string); ok {
				sep = s
			}
		}
	}
	parts := make([]string, len(a.Pos))
	for i, v := range a.Pos {
		parts[i] = str(v)
	}
	if len(in.output) < maxOutput {
		in.output = append(in.output, strings.Join(parts, sep))
	}
	return None, nil
}

// iterate returns a pull iterator over v.
func iterate(v Value) (func() (Value, bool), error) {
	i := 0
	switch x := v.(type) {
	case Tuple:
		return func() (Value, bool) {
			if i >= len(x) {
				return nil, false
			}
			i++
			return x[i-1], true
		}, nil
	case *List:
		return func() (Value, bool) {
			if i >= len(x.Elems) {
				return nil, false
			}
			i++
			return x.Elems[i-1], true
		}, nil
	case string:
		return func() (Value, bool) {
			if i >= len(x) {
				return nil, false
			}
			r, w := utf8.DecodeRuneInString(x[i:])
			i += w
			return string(r), true
		}, nil
	case *Dict:
		keys := x.Keys()
		return func() (Value, bool) {
			if i >= len(keys) {
				return nil, false
			}
			i++
			return keys[i-1], true
		}, nil
	case *Range:
		n := x.Len()
		return func() (Value, bool) {
			if i >= n {
				return nil, false
			}
			i++
			return x.At(i - 1), true
		}, nil
	case sequence:
		items := x.Items()
		return iterate(Tuple(items))
	}
	return nil, typeErrorf("'%s' object is not iterable", typeName(v))
}

func materialize(v Value) ([]Value, error) {
	switch x := v.(type) {
	case Tuple:
		return x, nil
	case *List:
		return x.Elems, nil
	}
	next, err := iterate(v)
	if err != nil {
		return nil, err
	}
	var out []Value
	for {
		e, ok := next()
		if !ok {
			return out, nil
		}
		if len(out) >= maxSequence {
			return nil, rtErr("MemoryError", "sequence too large")
		}
		out = append(out, e)
	}
}

func unop(op string, x Value) (Value, error) {
	switch op {
	case "not":
		return !truthy(x), nil
	case "-":
		if i, ok := asInt(x); ok {
			return -i, nil
		}
		if f, ok := x.(float64); ok {
			return -f, nil
		}
	case "+":
		if i, ok := asInt(x); ok {
			return i, nil
		}
		if f, ok := x.(float64); ok {
			return f, nil
		}
	}
	return nil, typeErrorf("bad operand type for unary %s: '%s'", op, typeName(x))
}

func (in *Interp) binop(op string, a, b Value) (Value, error) {
	v, err := binop(op, a, b)
	if err != nil {
		return nil, err
	}
	return in.charge(v)
}

// fits reports whether n copies of size items stay within limit, without
// overflowing the product.
func fits(size int, n int64, limit int) bool {
	if size == 0 || n <= 0 {
		return true
	}
	return n <= int64(limit/size)
}

func binop(op string, a, b Value) (Value, error) {
	ai, aInt := asInt(a)
	bi, bInt := asInt(b)
	if aInt && bInt {
		return intOp(op, ai, bi)
	}
	if isNumber(a) && isNumber(b) {
		af, _ := asFloat(a)
		bf, _ := asFloat(b)
		return floatOp(op, af, bf)
	}
	switch op {
	case "+":
		switch x := a.(type) {
		case string:
			if y, ok := b.(string); ok {
				if len(x)+len(y) > maxString {
					return nil, rtErr("MemoryError", "string too large")
				}
				return x + y, nil
			}
		case *List:
			if y, ok := b.(*List); ok {
				if len(x.Elems)+len(y.Elems) > maxSequence {
					return nil, rtErr("MemoryError", "list too large")
				}
				return &List{Elems: append(append([]Value{}, x.Elems...), y.Elems...)}, nil
			}
		case Tuple:
			if y, ok := b.(Tuple); ok {
				if len(x)+len(y) > maxSequence {
					return nil, rtErr("MemoryError", "tuple too large")
				}
				return append(append(Tuple{}, x...), y...), nil
			}
		}
	case "*":
		if bInt {
			return repeat(a, bi)
		}
		if aInt {
			return repeat(b, ai)
		}
	case "%":
		if s, ok := a.(string); ok {
			return percentFormat(s, b)
		}
	}
	return nil, typeErrorf("unsupported operand type(s) for %s: '%s' and '%s'", op, typeName(a), typeName(b))
}

func repeat(seq Value, n int64) (Value, error) {
	if n < 0 {
		n = 0
	}
	switch x := seq.(type) {
	case string:
		if !fits(len(x), n, maxString) {
			return nil, rtErr("MemoryError", "string too large")
		}
		if x == "" {
			return "", nil
		}
		return strings.Repeat(x, int(n)), nil
	case *List:
		if !fits(len(x.Elems), n, maxSequence) {
			return nil, rtErr("MemoryError", "list too large")
		}
		if len(x.Elems) == 0 {
			return &List{}, nil
		}
		return &List{Elems: slices.Repeat(x.Elems, int(n))}, nil
	case Tuple:
		if !fits(len(x), n, maxSequence) {
			return nil, rtErr("MemoryError", "tuple too large")
		}
		if len(x) == 0 {
			return Tuple{}, nil
		}
		return slices.Repeat(x, int(n)), nil
	}
	return nil, typeErrorf("can't multiply sequence of type '%s'", typeName(seq))
}

func intOp(op string, a, b int64) (Value, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return nil, rtErr("ZeroDivisionError", "division by zero")
		}
		return float64(a) / float64(b), nil
	case "//":
		if b == 0 {
			return nil, rtErr("ZeroDivisionError", "integer division or modulo by zero")
		}
		q := a / b
		if (a%b != 0) && ((a < 0) != (b < 0)) {
			q--
		}
		return q, nil
	case "%":
		if b == 0 {
			return nil, rtErr("ZeroDivisionError", "integer division or modulo by zero")
		}
		m := a % b
		if m != 0 && ((m < 0) != (b < 0)) {
			m += b
		}
		return m, nil
	case "**":
		if b < 0 {
			return math.Pow(float64(a), float64(b)), nil
		}
		f := math.Pow(float64(a), float64(b))
		if math.Abs(f) >= 1<<62 {
			return f, nil
		}
		r := int64(1)
		for range b {
			r *= a
		}
		return r, nil
	}
	return nil, typeErrorf("unsupported operator %s", op)
}

func floatOp(op string, a, b float64) (Value, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return nil, rtErr("ZeroDivisionError", "float division by zero")
		}
		return a / b, nil
	case "//":
		if b == 0 {
			return nil, rtErr("ZeroDivisionError", "float floor division by zero")
		}
		return math.Floor(a / b), nil
	case "%":
		if b == 0 {
			return nil, rtErr("ZeroDivisionError", "float modulo")
		}
		m := math.Mod(a, b)
		if m != 0 && ((m < 0) != (b < 0)) {
			m += b
		}
		return m, nil
	case "**":
		return math.Pow(a, b), nil
	}
	return nil, typeErrorf("unsupported operator %s", op)
}

func compareOp(op string, a, b Value) (bool, error) {
	switch op {
	case "==":
		return equal(a, b), nil
	case "!=":
		return !equal(a, b), nil
	case "is":
		return same(a, b), nil
	case "is not":
		return !same(a, b), nil
	case "in":
		return contains(b, a)
	case "not in":
		ok, err := contains(b, a)
		return !ok, err
	}
	c, err := compare(a, b)
	if err != nil {
		return false, err
	}
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return false, typeErrorf("unsupported comparison %s", op)
}

func same(a, b Value) bool {
	switch a.(type) {
	case NoneType, bool:
		return fmt.Sprintf("%T", a) == fmt.Sprintf("%T", b) && equal(a, b)
	}
	return identical(a, b)
}

func contains(container, item Value) (bool, error) {
	switch c := container.(type) {
	case string:
		s, ok := item.(string)
		if !ok {
			return false, typeErrorf("'in <string>' requires string as left operand, not %s", typeName(item))
		}
		return strings.Contains(c, s), nil
	case *Dict:
		_, ok, err := c.Get(item)
		return ok, err
	case *Range:
		i, ok := asInt(item)
		if !ok {
			return false, nil
		}
		for k := 0; k < c.Len(); k++ {
			if c.At(k) == i {
				return true, nil
			}
		}
		return false, nil
	}
	next, err := iterate(container)
	if err != nil {
		return false, typeErrorf("argument of type '%s' is not iterable", typeName(container))
	}
	for {
		v, ok := next()
		if !ok {
			return false, nil
		}
		if equal(v, item) {
			return true, nil
		}
	}
}

func getIndex(x, idx Value) (Value, error) {
	switch v := x.(type) {
	case Tuple:
		i, err := seqIndex(idx, len(v), "tuple")
		if err != nil {
			return nil, err
		}
		return v[i], nil
	case *List:
		i, err := seqIndex(idx, len(v.Elems), "list")
		if err != nil {
			return nil, err
		}
		return v.Elems[i], nil
	case string:
		r := []rune(v)
		i, err := seqIndex(idx, len(r), "string")
		if err != nil {
			return nil, err
		}
		return string(r[i]), nil
	case *Range:
		i, err := seqIndex(idx, v.Len(), "range object")
		if err != nil {
			return nil, err
		}
		return v.At(i), nil
	case *Dict:
		val, ok, err := v.Get(idx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, keyErrorf("%s", repr(idx))
		}
		return val, nil
	case indexGetter:
		return v.GetIndex(idx)
	}
	return nil, typeErrorf("'%s' object is not subscriptable", typeName(x))
}

func seqIndex(idx Value, n int, what string) (int, error) {
	i, ok := asInt(idx)
	if !ok {
		return 0, typeErrorf("%s indices must be integers, not %s", what, typeName(idx))
	}
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, indexErrorf("%s index out of range", what)
	}
	return int(i), nil
}

func setIndex(x, idx, v Value) error {
	switch c := x.(type) {
	case *List:
		i, err := seqIndex(idx, len(c.Elems), "list assignment")
		if err != nil {
			return err
		}
		c.Elems[i] = v
		return nil
	case *Dict:
		return c.Set(idx, v)
	}
	return typeErrorf("'%s' object does not support item assignment", typeName(x))
}

func getAttr(x Value, name string) (Value, error) {
	if strings.HasPrefix(name, "_") {
		return nil, attrError(x, name)
	}
	var (
		v   Value
		ok  bool
		err error
	)
	switch o := x.(type) {
	case string:
		v, ok = strMethod(o, name)
	case *List:
		v, ok = listMethod(o, name)
	case *Dict:
		v, ok = dictMethod(o, name)
	case Length:
		v, ok = lengthAttr(o, name)
	case *ModuleRef:
		v, ok = moduleAttr(o, name)
	case *Builtin:
		v, ok = o.Attrs[name]
	case attrGetter:
		v, ok, err = o.GetAttr(name)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, attrError(x, name)
	}
	return v, nil
}

func setAttr(x Value, name string, v Value) error {
	if strings.HasPrefix(name, "_") {
		return attrError(x, name)
	}
	if o, ok := x.(attrSetter); ok {
		return o.SetAttr(name, v)
	}
	return rtErr("AttributeError", "'%s' object attribute '%s' is read-only", typeName(x), name)
}
