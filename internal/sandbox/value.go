package sandbox

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Value is any runtime value: NoneType, bool, int64, float64, string,
// Length, Tuple, *List, *Dict, *Range, *Function, *Builtin, *ModuleRef or a
// builder object.
type Value any

type NoneType struct{}

var None Value = NoneType{}

// Length is an EMU distance. It behaves as an int in arithmetic.
type Length int64

type Tuple []Value

type List struct {
	Elems []Value
}

type dictEntry struct {
	key Value
	val Value
}

type Dict struct {
	entries []dictEntry
	index   map[string]int
}

func newDict() *Dict { return &Dict{index: map[string]int{}} }

func (d *Dict) Get(k Value) (Value, bool, error) {
	hk, err := hashKey(k)
	if err != nil {
		return nil, false, err
	}
	i, ok := d.index[hk]
	if !ok {
		return nil, false, nil
	}
	return d.entries[i].val, true, nil
}

func (d *Dict) Set(k, v Value) error {
	hk, err := hashKey(k)
	if err != nil {
		return err
	}
	if i, ok := d.index[hk]; ok {
		d.entries[i].val = v
		return nil
	}
	d.index[hk] = len(d.entries)
	d.entries = append(d.entries, dictEntry{key: k, val: v})
	return nil
}

func (d *Dict) Delete(k Value) (Value, bool, error) {
	hk, err := hashKey(k)
	if err != nil {
		return nil, false, err
	}
	i, ok := d.index[hk]
	if !ok {
		return nil, false, nil
	}
	v := d.entries[i].val
	d.entries = append(d.entries[:i], d.entries[i+1:]...)
	delete(d.index, hk)
	for key, j := range d.index {
		if j > i {
			d.index[key] = j - 1
		}
	}
	return v, true, nil
}

func (d *Dict) Len() int { return len(d.entries) }

func (d *Dict) Keys() []Value {
	out := make([]Value, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.key
	}
	return out
}

// Range is a lazy integer sequence.
type Range struct {
	Start, Stop, Step int64
}

func (r *Range) Len() int {
	if r.Step > 0 && r.Start < r.Stop {
		return int((r.Stop - r.Start + r.Step - 1) / r.Step)
	}
	if r.Step < 0 && r.Start > r.Stop {
		return int((r.Start - r.Stop - r.Step - 1) / -r.Step)
	}
	return 0
}

func (r *Range) At(i int) int64 { return r.Start + int64(i)*r.Step }

type Function struct {
	Def      *FuncDef
	Defaults []Value
}

// Args holds call arguments in source order.
type Args struct {
	Pos []Value
	Kw  []kwArg
}

type kwArg struct {
	Name  string
	Value Value
}

// Builtin is a native callable. Attrs holds class-level attributes such as
// alternate constructors.
type Builtin struct {
	Name  string
	Fn    func(in *Interp, a Args) (Value, error)
	Attrs map[string]Value
}

// ModuleRef is an importable namespace from the allow-list.
type ModuleRef struct {
	Path string
}

// Object is a builder value exposed to scripts.
type Object interface {
	TypeName() string
}

type attrGetter interface {
	GetAttr(name string) (Value, bool, error)
}

type attrSetter interface {
	SetAttr(name string, v Value) error
}

type indexGetter interface {
	GetIndex(k Value) (Value, error)
}

type sequence interface {
	Items() []Value
}

// RuntimeError is a fault raised while running a script.
type RuntimeError struct {
	Type string
	Msg  string
	Line int
}

func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s (line %d)", e.Type, e.Msg, e.Line)
	}
	return e.Type + ": " + e.Msg
}

func rtErr(typ, format string, args ...any) *RuntimeError {
	return &RuntimeError{Type: typ, Msg: fmt.Sprintf(format, args...)}
}

func typeErrorf(format string, args ...any) error  { return rtErr("TypeError", format, args...) }
func valueErrorf(format string, args ...any) error { return rtErr("ValueError", format, args...) }
func indexErrorf(format string, args ...any) error { return rtErr("IndexError", format, args...) }
func keyErrorf(format string, args ...any) error   { return rtErr("KeyError", format, args...) }

func attrError(v Value, name string) error {
	return rtErr("AttributeError", "'%s' object has no attribute '%s'", typeName(v), name)
}

func typeName(v Value) string {
	switch x := v.(type) {
	case NoneType:
		return "NoneType"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case Length:
		return "Length"
	case Tuple:
		return "tuple"
	case *List:
		return "list"
	case *Dict:
		return "dict"
	case *Range:
		return "range"
	case *Function:
		return "function"
	case *Builtin:
		return "builtin_function_or_method"
	case *ModuleRef:
		return "module"
	case Object:
		return x.TypeName()
	}
	return fmt.Sprintf("%T", v)
}

func truthy(v Value) bool {
	switch x := v.(type) {
	case NoneType:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case Length:
		return x != 0
	case string:
		return x != ""
	case Tuple:
		return len(x) > 0
	case *List:
		return len(x.Elems) > 0
	case *Dict:
		return x.Len() > 0
	case *Range:
		return x.Len() > 0
	}
	return true
}

func isNumber(v Value) bool {
	switch v.(type) {
	case bool, int64, float64, Length:
		return true
	}
	return false
}

// asInt converts integral values. Floats are rejected.
func asInt(v Value) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case Length:
		return int64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func asFloat(v Value) (float64, bool) {
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	if f, ok := v.(float64); ok {
		return f, true
	}
	return 0, false
}

func toInt(v Value, what string) (int64, error) {
	if i, ok := asInt(v); ok {
		return i, nil
	}
	return 0, typeErrorf("%s must be an integer, not %s", what, typeName(v))
}

func toFloat(v Value, what string) (float64, error) {
	if f, ok := asFloat(v); ok {
		return f, nil
	}
	return 0, typeErrorf("%s must be a number, not %s", what, typeName(v))
}

func toString(v Value, what string) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", typeErrorf("%s must be a str, not %s", what, typeName(v))
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e16 || abs < 1e-4) {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mant, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		digits := strings.TrimLeft(exp[1:], "0")
		if len(digits) < 2 {
			digits = strings.Repeat("0", 2-len(digits)) + digits
		}
		return mant + "e" + sign + digits
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// str renders v the way print would.
func str(v Value) string {
	if s, ok := v.(string); ok {
		return s
	}
	return repr(v)
}

func repr(v Value) string {
	switch x := v.(type) {
	case NoneType:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(x, 10)
	case Length:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return formatFloat(x)
	case string:
		return quote(x)
	case Tuple:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = repr(e)
		}
		if len(parts) == 1 {
			return "(" + parts[0] + ",)"
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case *List:
		parts := make([]string, len(x.Elems))
		for i, e := range x.Elems {
			parts[i] = repr(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Dict:
		parts := make([]string, len(x.entries))
		for i, e := range x.entries {
			parts[i] = repr(e.key) + ": " + repr(e.val)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Range:
		if x.Step == 1 {
			return fmt.Sprintf("range(%d, %d)", x.Start, x.Stop)
		}
		return fmt.Sprintf("range(%d, %d, %d)", x.Start, x.Stop, x.Step)
	case *Function:
		return "<function " + x.Def.Name + ">"
	case *Builtin:
		return "<built-in function " + x.Name + ">"
	case *ModuleRef:
		return "<module '" + x.Path + "'>"
	case fmt.Stringer:
		return x.String()
	}
	return "<" + typeName(v) + " object>"
}

func quote(s string) string {
	q := "'"
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		q = `"`
	}
	var b strings.Builder
	b.WriteString(q)
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\r':
			b.WriteString(`\r`)
		case string(r) == q:
			b.WriteString(`\` + q)
		case r < 0x20:
			fmt.Fprintf(&b, `\x%02x`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteString(q)
	return b.String()
}

// hashKey returns a canonical key for dict lookups.
func hashKey(v Value) (string, error) {
	switch x := v.(type) {
	case NoneType:
		return "none", nil
	case string:
		return "s:" + x, nil
	case bool, int64, Length:
		i, _ := asInt(x)
		return "n:" + strconv.FormatInt(i, 10), nil
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<62 {
			return "n:" + strconv.FormatInt(int64(x), 10), nil
		}
		return "f:" + strconv.FormatFloat(x, 'g', -1, 64), nil
	case Tuple:
		parts := make([]string, len(x))
		for i, e := range x {
			k, err := hashKey(e)
			if err != nil {
				return "", err
			}
			parts[i] = strconv.Quote(k)
		}
		return "t:" + strings.Join(parts, ","), nil
	case *EnumMember:
		return "e:" + x.Enum + "." + x.Name, nil
	}
	return "", typeErrorf("unhashable type: '%s'", typeName(v))
}

func equal(a, b Value) bool {
	if isNumber(a) && isNumber(b) {
		if ai, ok := asInt(a); ok {
			if bi, ok := asInt(b); ok {
				return ai == bi
			}
		}
		af, _ := asFloat(a)
		bf, _ := asFloat(b)
		return af == bf
	}
	switch x := a.(type) {
	case NoneType:
		_, ok := b.(NoneType)
		return ok
	case string:
		y, ok := b.(string)
		return ok && x == y
	case Tuple:
		y, ok := b.(Tuple)
		return ok && equalSlices(x, y)
	case *List:
		y, ok := b.(*List)
		return ok && equalSlices(x.Elems, y.Elems)
	case *Dict:
		y, ok := b.(*Dict)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for _, e := range x.entries {
			v, found, err := y.Get(e.key)
			if err != nil || !found || !equal(e.val, v) {
				return false
			}
		}
		return true
	case *EnumMember:
		y, ok := b.(*EnumMember)
		return ok && x.Enum == y.Enum && x.Name == y.Name
	case RGBColor:
		y, ok := b.(RGBColor)
		return ok && x == y
	}
	return identical(a, b)
}

func identical(a, b Value) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

func equalSlices(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// compare orders numbers, strings and sequences.
func compare(a, b Value) (int, error) {
	if isNumber(a) && isNumber(b) {
		af, _ := asFloat(a)
		bf, _ := asFloat(b)
		if ai, ok := asInt(a); ok {
			if bi, ok := asInt(b); ok {
				return cmpOrdered(ai, bi), nil
			}
		}
		return cmpOrdered(af, bf), nil
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs), nil
		}
	}
	as, aok := seqItems(a)
	bs, bok := seqItems(b)
	if aok && bok && fmt.Sprintf("%T", a) == fmt.Sprintf("%T", b) {
		for i := 0; i < len(as) && i < len(bs); i++ {
			if equal(as[i], bs[i]) {
				continue
			}
			return compare(as[i], bs[i])
		}
		return cmpOrdered(len(as), len(bs)), nil
	}
	return 0, typeErrorf("'<' not supported between instances of '%s' and '%s'", typeName(a), typeName(b))
}

func cmpOrdered[T int | int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func seqItems(v Value) ([]Value, bool) {
	switch x := v.(type) {
	case Tuple:
		return x, true
	case *List:
		return x.Elems, true
	}
	return nil, false
}

func sortValues(vals []Value, reverse bool) error {
	var err error
	sort.SliceStable(vals, func(i, j int) bool {
		c, e := compare(vals[i], vals[j])
		if e != nil && err == nil {
			err = e
		}
		if reverse {
			return c > 0
		}
		return c < 0
	})
	return err
}

// bindArgs maps positional and keyword arguments onto params. A param
// ending in "?" is optional; missing optionals are nil.
func bindArgs(fn string, a Args, params ...string) ([]Value, error) {
	out := make([]Value, len(params))
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = strings.TrimSuffix(p, "?")
	}
	if len(a.Pos) > len(params) {
		return nil, typeErrorf("%s() takes %d positional arguments but %d were given", fn, len(params), len(a.Pos))
	}
	copy(out, a.Pos)
	for _, kw := range a.Kw {
		i := indexOf(names, kw.Name)
		if i < 0 {
			return nil, typeErrorf("%s() got an unexpected keyword argument '%s'", fn, kw.Name)
		}
		if out[i] != nil {
			return nil, typeErrorf("%s() got multiple values for argument '%s'", fn, kw.Name)
		}
		out[i] = kw.Value
	}
	for i, p := range params {
		if out[i] == nil && !strings.HasSuffix(p, "?") {
			return nil, typeErrorf("%s() missing required argument: '%s'", fn, p)
		}
	}
	return out, nil
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// given reports whether an optional argument was supplied and not None.
func given(v Value) bool {
	if v == nil {
		return false
	}
	_, none := v.(NoneType)
	return !none
}
