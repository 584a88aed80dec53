package sandbox

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SafeBuiltins are the builtin functions scripts may call.
var SafeBuiltins = []string{
	"range", "len", "enumerate", "zip", "min", "max", "abs", "round", "int", "float", "str",
	"bool", "list", "tuple", "dict", "sum", "sorted", "reversed", "print",
}

func builtinTable() map[string]*Builtin {
	fns := map[string]func(in *Interp, a Args) (Value, error){
		"range":     builtinRange,
		"len":       builtinLen,
		"enumerate": builtinEnumerate,
		"zip":       builtinZip,
		"min":       func(in *Interp, a Args) (Value, error) { return builtinExtreme("min", a, -1) },
		"max":       func(in *Interp, a Args) (Value, error) { return builtinExtreme("max", a, 1) },
		"abs":       builtinAbs,
		"round":     builtinRound,
		"int":       builtinInt,
		"float":     builtinFloat,
		"str":       builtinStr,
		"bool":      builtinBool,
		"list":      builtinList,
		"tuple":     builtinTuple,
		"dict":      builtinDict,
		"sum":       builtinSum,
		"sorted":    builtinSorted,
		"reversed":  builtinReversed,
		"print":     func(in *Interp, a Args) (Value, error) { return in.print(a) },
	}
	out := make(map[string]*Builtin, len(fns))
	for name, fn := range fns {
		out[name] = &Builtin{Name: name, Fn: fn}
	}
	return out
}

func builtinRange(_ *Interp, a Args) (Value, error) {
	if len(a.Kw) > 0 {
		return nil, typeErrorf("range() takes no keyword arguments")
	}
	ints := make([]int64, len(a.Pos))
	for i, v := range a.Pos {
		n, err := toInt(v, "range() argument")
		if err != nil {
			return nil, err
		}
		ints[i] = n
	}
	switch len(ints) {
	case 1:
		return &Range{Start: 0, Stop: ints[0], Step: 1}, nil
	case 2:
		return &Range{Start: ints[0], Stop: ints[1], Step: 1}, nil
	case 3:
		if ints[2] == 0 {
			return nil, valueErrorf("range() arg 3 must not be zero")
		}
		return &Range{Start: ints[0], Stop: ints[1], Step: ints[2]}, nil
	}
	return nil, typeErrorf("range expected 1 to 3 arguments, got %d", len(ints))
}

func builtinLen(_ *Interp, a Args) (Value, error) {
	v, err := bindArgs("len", a, "obj")
	if err != nil {
		return nil, err
	}
	switch x := v[0].(type) {
	case string:
		return int64(utf8.RuneCountInString(x)), nil
	case Tuple:
		return int64(len(x)), nil
	case *List:
		return int64(len(x.Elems)), nil
	case *Dict:
		return int64(x.Len()), nil
	case *Range:
		return int64(x.Len()), nil
	case sequence:
		return int64(len(x.Items())), nil
	}
	return nil, typeErrorf("object of type '%s' has no len()", typeName(v[0]))
}

func builtinEnumerate(_ *Interp, a Args) (Value, error) {
	v, err := bindArgs("enumerate", a, "iterable", "start?")
	if err != nil {
		return nil, err
	}
	start := int64(0)
	if v[1] != nil {
		if start, err = toInt(v[1], "start"); err != nil {
			return nil, err
		}
	}
	items, err := materialize(v[0])
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(items))
	for i, it := range items {
		out[i] = Tuple{start + int64(i), it}
	}
	return &List{Elems: out}, nil
}

func builtinZip(_ *Interp, a Args) (Value, error) {
	seqs := make([][]Value, len(a.Pos))
	n := -1
	for i, v := range a.Pos {
		items, err := materialize(v)
		if err != nil {
			return nil, err
		}
		seqs[i] = items
		if n < 0 || len(items) < n {
			n = len(items)
		}
	}
	if n < 0 {
		n = 0
	}
	out := make([]Value, n)
	for i := range n {
		t := make(Tuple, len(seqs))
		for j := range seqs {
			t[j] = seqs[j][i]
		}
		out[i] = t
	}
	return &List{Elems: out}, nil
}

func builtinExtreme(name string, a Args, sign int) (Value, error) {
	items := a.Pos
	if len(items) == 1 {
		var err error
		if items, err = materialize(items[0]); err != nil {
			return nil, err
		}
	}
	if len(items) == 0 {
		for _, kw := range a.Kw {
			if kw.Name == "default" {
				return kw.Value, nil
			}
		}
		return nil, valueErrorf("%s() arg is an empty sequence", name)
	}
	best := items[0]
	for _, v := range items[1:] {
		c, err := compare(v, best)
		if err != nil {
			return nil, err
		}
		if c*sign > 0 {
			best = v
		}
	}
	return best, nil
}

func builtinAbs(_ *Interp, a Args) (Value, error) {
	v, err := bindArgs("abs", a, "x")
	if err != nil {
		return nil, err
	}
	if i, ok := asInt(v[0]); ok {
		if i < 0 {
			return -i, nil
		}
		return i, nil
	}
	if f, ok := v[0].(float64); ok {
		return math.Abs(f), nil
	}
	return nil, typeErrorf("bad operand type for abs(): '%s'", typeName(v[0]))
}

func builtinRound(_ *Interp, a Args) (Value, error) {
	v, err := bindArgs("round", a, "number", "ndigits?")
	if err != nil {
		return nil, err
	}
	f, err := toFloat(v[0], "round() argument")
	if err != nil {
		return nil, err
	}
	if !given(v[1]) {
		if i, ok := asInt(v[0]); ok {
			return i, nil
		}
		return int64(math.RoundToEven(f)), nil
	}
	nd, err := toInt(v[1], "ndigits")
	if err != nil {
		return nil, err
	}
	if i, ok := asInt(v[0]); ok && nd >= 0 {
		return i, nil
	}
	p := math.Pow(10, float64(nd))
	return math.RoundToEven(f*p) / p, nil
}

func builtinInt(_ *Interp, a Args) (Value, error) {
	v, err := bindArgs("int", a, "x?", "base?")
	if err != nil {
		return nil, err
	}
	if v[0] == nil {
		return int64(0), nil
	}
	switch x := v[0].(type) {
	case string:
		base := int64(10)
		if v[1] != nil {
			if base, err = toInt(v[1], "base"); err != nil {
				return nil, err
			}
		}
		s := strings.ReplaceAll(strings.TrimSpace(x), "_", "")
		n, err := strconv.ParseInt(s, int(base), 64)
		if err != nil {
			return nil, valueErrorf("invalid literal for int() with base %d: %s", base, quote(x))
		}
		return n, nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, valueErrorf("cannot convert float %s to integer", formatFloat(x))
		}
		return int64(x), nil
	}
	if i, ok := asInt(v[0]); ok {
		return i, nil
	}
	return nil, typeErrorf("int() argument must be a string or a number, not '%s'", typeName(v[0]))
}

func builtinFloat(_ *Interp, a Args) (Value, error) {
	v, err := bindArgs("float", a, "x?")
	if err != nil {
		return nil, err
	}
	if v[0] == nil {
		return 0.0, nil
	}
	if s, ok := v[0].(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, valueErrorf("could not convert string to float: %s", quote(s))
		}
		return f, nil
	}
	f, err := toFloat(v[0], "float() argument")
	if err != nil {
		return nil, err
	}
	return f, nil
}

func builtinStr(_ *Interp, a Args) (Value, error) {
	v, err := bindArgs("str", a, "object?")
	if err != nil {
		return nil, err
	}
	if v[0] == nil {
		return "", nil
	}
	return str(v[0]), nil
}

func builtinBool(_ *Interp, a Args) (Value, error) {
	v, err := bindArgs("bool", a, "x?")
	if err != nil {
		return nil, err
	}
	return v[0] != nil && truthy(v[0]), nil
}

func builtinList(_ *Interp, a Args) (Value, error) {
	v, err := bindArgs("list", a, "iterable?")
	if err != nil {
		return nil, err
	}
	if v[0] == nil {
		return &List{}, nil
	}
	items, err := materialize(v[0])
	if err != nil {
		return nil, err
	}
	return &List{Elems: append([]Value{}, items...)}, nil
}

func builtinTuple(_ *Interp, a Args) (Value, error) {
	v, err := bindArgs("tuple", a, "iterable?")
	if err != nil {
		return nil, err
	}
	if v[0] == nil {
		return Tuple{}, nil
	}
	items, err := materialize(v[0])
	if err != nil {
		return nil, err
	}
	return append(Tuple{}, items...), nil
}

func builtinDict(_ *Interp, a Args) (Value, error) {
	d := newDict()
	if len(a.Pos) > 1 {
		return nil, typeErrorf("dict expected at most 1 argument, got %d", len(a.Pos))
	}
	if len(a.Pos) == 1 {
		if src, ok := a.Pos[0].(*Dict); ok {
			for _, e := range src.entries {
				_ = d.Set(e.key, e.val)
			}
		} else {
			pairs, err := materialize(a.Pos[0])
			if err != nil {
				return nil, err
			}
			for _, p := range pairs {
				kv, err := materialize(p)
				if err != nil || len(kv) != 2 {
					return nil, valueErrorf("dictionary update sequence element has wrong length")
				}
				if err := d.Set(kv[0], kv[1]); err != nil {
					return nil, err
				}
			}
		}
	}
	for _, kw := range a.Kw {
		_ = d.Set(kw.Name, kw.Value)
	}
	return d, nil
}

func builtinSum(in *Interp, a Args) (Value, error) {
	v, err := bindArgs("sum", a, "iterable", "start?")
	if err != nil {
		return nil, err
	}
	var total Value = int64(0)
	if v[1] != nil {
		total = v[1]
	}
	items, err := materialize(v[0])
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if err := in.step(); err != nil {
			return nil, err
		}
		if total, err = in.binop("+", total, it); err != nil {
			return nil, err
		}
	}
	return total, nil
}

func builtinSorted(_ *Interp, a Args) (Value, error) {
	v, err := bindArgs("sorted", a, "iterable", "reverse?")
	if err != nil {
		return nil, err
	}
	items, err := materialize(v[0])
	if err != nil {
		return nil, err
	}
	out := append([]Value{}, items...)
	if err := sortValues(out, v[1] != nil && truthy(v[1])); err != nil {
		return nil, err
	}
	return &List{Elems: out}, nil
}

func builtinReversed(_ *Interp, a Args) (Value, error) {
	v, err := bindArgs("reversed", a, "sequence")
	if err != nil {
		return nil, err
	}
	items, err := materialize(v[0])
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(items))
	for i, it := range items {
		out[len(items)-1-i] = it
	}
	return &List{Elems: out}, nil
}

func method(name string, fn func(a Args) (Value, error)) *Builtin {
	return &Builtin{Name: name, Fn: func(_ *Interp, a Args) (Value, error) { return fn(a) }}
}

func strMethod(s, name string) (Value, bool) {
	noArgs := func(f func(string) string) *Builtin {
		return method(name, func(a Args) (Value, error) {
			if _, err := bindArgs(name, a); err != nil {
				return nil, err
			}
			return f(s), nil
		})
	}
	strip := func(f func(string, string) string, def func(string) string) *Builtin {
		return method(name, func(a Args) (Value, error) {
			v, err := bindArgs(name, a, "chars?")
			if err != nil {
				return nil, err
			}
			if !given(v[0]) {
				return def(s), nil
			}
			chars, err := toString(v[0], "chars")
			if err != nil {
				return nil, err
			}
			return f(s, chars), nil
		})
	}
	switch name {
	case "upper":
		return noArgs(strings.ToUpper), true
	case "lower":
		return noArgs(strings.ToLower), true
	case "title":
		return noArgs(titleCase), true
	case "capitalize":
		return noArgs(func(s string) string {
			if s == "" {
				return s
			}
			r, w := utf8.DecodeRuneInString(s)
			return string(unicode.ToUpper(r)) + strings.ToLower(s[w:])
		}), true
	case "strip":
		return strip(strings.Trim, strings.TrimSpace), true
	case "lstrip":
		return strip(strings.TrimLeft, func(s string) string { return strings.TrimLeftFunc(s, unicode.IsSpace) }), true
	case "rstrip":
		return strip(strings.TrimRight, func(s string) string { return strings.TrimRightFunc(s, unicode.IsSpace) }), true
	case "split":
		return method(name, func(a Args) (Value, error) {
			v, err := bindArgs(name, a, "sep?", "maxsplit?")
			if err != nil {
				return nil, err
			}
			n := -1
			if given(v[1]) {
				m, err := toInt(v[1], "maxsplit")
				if err != nil {
					return nil, err
				}
				n = int(m)
			}
			var parts []string
			if !given(v[0]) {
				parts = strings.Fields(s)
				if n >= 0 && len(parts) > n+1 {
					parts = append(parts[:n], strings.Join(parts[n:], " "))
				}
			} else {
				sep, err := toString(v[0], "sep")
				if err != nil {
					return nil, err
				}
				if sep == "" {
					return nil, valueErrorf("empty separator")
				}
				if n >= 0 {
					n++
				}
				parts = strings.SplitN(s, sep, n)
			}
			return stringList(parts), nil
		}), true
	case "splitlines":
		return noArgsList(name, func() []string {
			if s == "" {
				return nil
			}
			return strings.Split(strings.TrimRight(s, "\n"), "\n")
		}), true
	case "join":
		return method(name, func(a Args) (Value, error) {
			v, err := bindArgs(name, a, "iterable")
			if err != nil {
				return nil, err
			}
			items, err := materialize(v[0])
			if err != nil {
				return nil, err
			}
			parts := make([]string, len(items))
			size := 0
			if len(items) > 1 {
				if !fits(len(s), int64(len(items)-1), maxString) {
					return nil, rtErr("MemoryError", "string too large")
				}
				size = len(s) * (len(items) - 1)
			}
			for i, it := range items {
				p, ok := it.(string)
				if !ok {
					return nil, typeErrorf("sequence item %d: expected str instance, %s found", i, typeName(it))
				}
				if size += len(p); size > maxString {
					return nil, rtErr("MemoryError", "string too large")
				}
				parts[i] = p
			}
			return strings.Join(parts, s), nil
		}), true
	case "replace":
		return method(name, func(a Args) (Value, error) {
			v, err := bindArgs(name, a, "old", "new", "count?")
			if err != nil {
				return nil, err
			}
			old, err := toString(v[0], "old")
			if err != nil {
				return nil, err
			}
			nw, err := toString(v[1], "new")
			if err != nil {
				return nil, err
			}
			n := -1
			if given(v[2]) {
				c, err := toInt(v[2], "count")
				if err != nil {
					return nil, err
				}
				n = int(c)
			}
			if !replaceFits(s, old, nw, n) {
				return nil, rtErr("MemoryError", "string too large")
			}
			return strings.Replace(s, old, nw, n), nil
		}), true
	case "startswith", "endswith", "find", "count":
		return method(name, func(a Args) (Value, error) {
			v, err := bindArgs(name, a, "sub")
			if err != nil {
				return nil, err
			}
			sub, err := toString(v[0], "sub")
			if err != nil {
				return nil, err
			}
			switch name {
			case "startswith":
				return strings.HasPrefix(s, sub), nil
			case "endswith":
				return strings.HasSuffix(s, sub), nil
			case "find":
				i := strings.Index(s, sub)
				if i < 0 {
					return int64(-1), nil
				}
				return int64(utf8.RuneCountInString(s[:i])), nil
			}
			return int64(strings.Count(s, sub)), nil
		}), true
	case "isdigit", "isalpha", "isspace", "isupper", "islower":
		return method(name, func(a Args) (Value, error) {
			if _, err := bindArgs(name, a); err != nil {
				return nil, err
			}
			return classify(name, s), nil
		}), true
	case "zfill":
		return method(name, func(a Args) (Value, error) {
			v, err := bindArgs(name, a, "width")
			if err != nil {
				return nil, err
			}
			w, err := toInt(v[0], "width")
			if err != nil {
				return nil, err
			}
			if w > maxString {
				return nil, rtErr("MemoryError", "string too large")
			}
			n := int(w) - utf8.RuneCountInString(s)
			if n <= 0 {
				return s, nil
			}
			if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
				return s[:1] + strings.Repeat("0", n) + s[1:], nil
			}
			return strings.Repeat("0", n) + s, nil
		}), true
	case "format":
		return method(name, func(a Args) (Value, error) { return formatString(s, a) }), true
	}
	return nil, false
}

// replaceFits reports whether replacing up to n occurrences of old in s
// stays within maxString, before the result is built.
func replaceFits(s, old, nw string, n int) bool {
	grow := len(nw) - len(old)
	if grow <= 0 {
		return true
	}
	// An empty old matches around every rune.
	count := utf8.RuneCountInString(s) + 1
	if old != "" {
		count = strings.Count(s, old)
	}
	if n >= 0 && n < count {
		count = n
	}
	if count == 0 {
		return true
	}
	return fits(grow, int64(count), maxString-len(s))
}

func noArgsList(name string, f func() []string) *Builtin {
	return method(name, func(a Args) (Value, error) {
		if _, err := bindArgs(name, a); err != nil {
			return nil, err
		}
		return stringList(f()), nil
	})
}

func stringList(parts []string) *List {
	out := make([]Value, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return &List{Elems: out}
}

func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		prevLetter = false
		b.WriteRune(r)
	}
	return b.String()
}

func classify(name, s string) bool {
	if s == "" {
		return false
	}
	cased := false
	for _, r := range s {
		switch name {
		case "isdigit":
			if !unicode.IsDigit(r) {
				return false
			}
		case "isalpha":
			if !unicode.IsLetter(r) {
				return false
			}
		case "isspace":
			if !unicode.IsSpace(r) {
				return false
			}
		case "isupper":
			if unicode.IsLower(r) {
				return false
			}
			cased = cased || unicode.IsUpper(r)
		case "islower":
			if unicode.IsUpper(r) {
				return false
			}
			cased = cased || unicode.IsLower(r)
		}
	}
	if name == "isupper" || name == "islower" {
		return cased
	}
	return true
}

func listMethod(l *List, name string) (Value, bool) {
	switch name {
	case "append":
		return method(name, func(a Args) (Value, error) {
			v, err := bindArgs(name, a, "object")
			if err != nil {
				return nil, err
			}
			if len(l.Elems) >= maxSequence {
				return nil, rtErr("MemoryError", "list too large")
			}
			l.Elems = append(l.Elems, v[0])
			return None, nil
		}), true
	case "extend":
		return method(name, func(a Args) (Value, error) {
			v, err := bindArgs(name, a, "iterable")
			if err != nil {
				return nil, err
			}
			items, err := materialize(v[0])
			if err != nil {
				return nil, err
			}
			if len(l.Elems)+len(items) > maxSequence {
				return nil, rtErr("MemoryError", "list too large")
			}
			l.Elems = append(l.Elems, items...)
			return None, nil
		}), true
	case "insert":
		return method(name, func(a Args) (Value, error) {
			v, err := bindArgs(name, a, "index", "object")
			if err != nil {
				return nil, err
			}
			i, err := toInt(v[0], "index")
			if err != nil {
				return nil, err
			}
			n := int64(len(l.Elems))
			if i < 0 {
				i += n
			}
			i = min(max(i, 0), n)
			l.Elems = append(l.Elems, nil)
			copy(l.Elems[i+1:], l.Elems[i:])
			l.Elems[i] = v[1]
			return None, nil
		}), true
	case "pop":
		return method(name, func(a Args) (Value, error) {
			v, err := bindArgs(name, a, "index?")
			if err != nil {
				return nil, err
			}
			if len(l.Elems) == 0 {
				return nil, indexErrorf("pop from empty list")
			}
			var idx Value = int64(-1)
			if v[0] != nil {
				idx = v[0]
			}
			i, err := seqIndex(idx, len(l.Elems), "pop")
			if err != nil {
				return nil, err
			}
			out := l.Elems[i]
			l.Elems = append(l.Elems[:i], l.Elems[i+1:]...)
			return out, nil
		}), true
	case "index", "remove", "count":
		return method(name, func(a Args) (Value, error) {
			v, err := bindArgs(name, a, "value")
			if err != nil {
				return nil, err
			}
			n := int64(0)
			for i, e := range l.Elems {
				if !equal(e, v[0]) {
					continue
				}
				switch name {
				case "index":
					return int64(i), nil
				case "remove":
					l.Elems = append(l.Elems[:i], l.Elems[i+1:]...)
					return None, nil
				}
				n++
			}
			if name == "count" {
				return n, nil
			}
			return nil, valueErrorf("%s is not in list", repr(v[0]))
		}), true
	case "reverse":
		return method(name, func(a Args) (Value, error) {
			for i, j := 0, len(l.Elems)-1; i < j; i, j = i+1, j-1 {
				l.Elems[i], l.Elems[j] = l.Elems[j], l.Elems[i]
			}
			return None, nil
		}), true
	case "sort":
		return method(name, func(a Args) (Value, error) {
			v, err := bindArgs(name, a, "reverse?")
			if err != nil {
				return nil, err
			}
			return None, sortValues(l.Elems, v[0] != nil && truthy(v[0]))
		}), true
	case "copy":
		return method(name, func(a Args) (Value, error) {
			return &List{Elems: append([]Value{}, l.Elems...)}, nil
		}), true
	}
	return nil, false
}

func dictMethod(d *Dict, name string) (Value, bool) {
	switch name {
	case "get":
		return method(name, func(a Args) (Value, error) {
			v, err := bindArgs(name, a, "key", "default?")
			if err != nil {
				return nil, err
			}
			val, ok, err := d.Get(v[0])
			if err != nil {
				return nil, err
			}
			if ok {
				return val, nil
			}
			if v[1] != nil {
				return v[1], nil
			}
			return None, nil
		}), true
	case "keys":
		return method(name, func(a Args) (Value, error) { return &List{Elems: d.Keys()}, nil }), true
	case "values":
		return method(name, func(a Args) (Value, error) {
			out := make([]Value, len(d.entries))
			for i, e := range d.entries {
				out[i] = e.val
			}
			return &List{Elems: out}, nil
		}), true
	case "items":
		return method(name, func(a Args) (Value, error) {
			out := make([]Value, len(d.entries))
			for i, e := range d.entries {
				out[i] = Tuple{e.key, e.val}
			}
			return &List{Elems: out}, nil
		}), true
	case "update":
		return method(name, func(a Args) (Value, error) {
			src, err := builtinDict(nil, a)
			if err != nil {
				return nil, err
			}
			for _, e := range src.(*Dict).entries {
				_ = d.Set(e.key, e.val)
			}
			return None, nil
		}), true
	case "pop":
		return method(name, func(a Args) (Value, error) {
			v, err := bindArgs(name, a, "key", "default?")
			if err != nil {
				return nil, err
			}
			val, ok, err := d.Delete(v[0])
			if err != nil {
				return nil, err
			}
			if ok {
				return val, nil
			}
			if v[1] != nil {
				return v[1], nil
			}
			return nil, keyErrorf("%s", repr(v[0]))
		}), true
	case "setdefault":
		return method(name, func(a Args) (Value, error) {
			v, err := bindArgs(name, a, "key", "default?")
			if err != nil {
				return nil, err
			}
			val, ok, err := d.Get(v[0])
			if err != nil {
				return nil, err
			}
			if ok {
				return val, nil
			}
			def := v[1]
			if def == nil {
				def = None
			}
			return def, d.Set(v[0], def)
		}), true
	}
	return nil, false
}

var formatSpecRe = regexp.MustCompile(`^(?:(.)?([<>^=]))?([+\- ])?(0)?(\d+)?(,)?(?:\.(\d+))?([sdfFeEgGxXo%])?$`)

// formatString implements str.format for positional, indexed and keyword
// fields with a basic format spec.
func formatString(s string, a Args) (Value, error) {
	var b strings.Builder
	auto := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '}' {
			if i+1 < len(s) && s[i+1] == '}' {
				i++
			}
			b.WriteByte('}')
			continue
		}
		if c != '{' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(s) && s[i+1] == '{' {
			b.WriteByte('{')
			i++
			continue
		}
		end := strings.IndexByte(s[i:], '}')
		if end < 0 {
			return nil, valueErrorf("single '{' encountered in format string")
		}
		field := s[i+1 : i+end]
		i += end
		name, spec, _ := strings.Cut(field, ":")
		name = strings.TrimSuffix(strings.TrimSuffix(name, "!r"), "!s")
		var v Value
		switch {
		case name == "":
			if auto >= len(a.Pos) {
				return nil, indexErrorf("replacement index %d out of range for positional args tuple", auto)
			}
			v = a.Pos[auto]
			auto++
		case name[0] >= '0' && name[0] <= '9':
			n, err := strconv.Atoi(name)
			if err != nil || n >= len(a.Pos) {
				return nil, indexErrorf("replacement index %s out of range for positional args tuple", name)
			}
			v = a.Pos[n]
		default:
			found := false
			for _, kw := range a.Kw {
				if kw.Name == name {
					v, found = kw.Value, true
				}
			}
			if !found {
				return nil, keyErrorf("'%s'", name)
			}
		}
		out, err := formatValue(v, spec)
		if err != nil {
			return nil, err
		}
		b.WriteString(out)
	}
	return b.String(), nil
}

func formatValue(v Value, spec string) (string, error) {
	if spec == "" {
		return str(v), nil
	}
	m := formatSpecRe.FindStringSubmatch(spec)
	if m == nil {
		return "", valueErrorf("invalid format specifier '%s'", spec)
	}
	fill, align, sign, zero, width, comma, prec, verb := m[1], m[2], m[3], m[4], m[5], m[6], m[7], m[8]
	var body string
	switch verb {
	case "f", "F", "e", "E", "g", "G", "%":
		f, err := toFloat(v, "format argument")
		if err != nil {
			return "", err
		}
		p := 6
		if prec != "" {
			p, _ = strconv.Atoi(prec)
		}
		if p > maxPrecision {
			return "", valueErrorf("precision too big")
		}
		if verb == "%" {
			body = strconv.FormatFloat(f*100, 'f', p, 64) + "%"
		} else {
			fc := verb[0]
			if fc == 'F' {
				fc = 'f'
			}
			body = strconv.FormatFloat(f, fc, p, 64)
		}
	case "d", "x", "X", "o":
		i, err := toInt(v, "format argument")
		if err != nil {
			return "", err
		}
		base := map[string]int{"d": 10, "x": 16, "X": 16, "o": 8}[verb]
		body = strconv.FormatInt(i, base)
		if verb == "X" {
			body = strings.ToUpper(body)
		}
	default:
		body = str(v)
		if prec != "" {
			p, _ := strconv.Atoi(prec)
			if r := []rune(body); len(r) > p {
				body = string(r[:p])
			}
		}
	}
	if comma != "" {
		body = groupThousands(body)
	}
	if sign == "+" && !strings.HasPrefix(body, "-") && isNumber(v) {
		body = "+" + body
	}
	w, _ := strconv.Atoi(width)
	if w > maxString {
		return "", rtErr("MemoryError", "string too large")
	}
	pad := w - utf8.RuneCountInString(body)
	if pad <= 0 {
		return body, nil
	}
	if fill == "" {
		fill = " "
		if zero != "" {
			fill, align = "0", "="
		}
	}
	if align == "" {
		align = "<"
		if isNumber(v) {
			align = ">"
		}
	}
	switch align {
	case ">":
		return strings.Repeat(fill, pad) + body, nil
	case "^":
		return strings.Repeat(fill, pad/2) + body + strings.Repeat(fill, pad-pad/2), nil
	case "=":
		if strings.HasPrefix(body, "-") || strings.HasPrefix(body, "+") {
			return body[:1] + strings.Repeat(fill, pad) + body[1:], nil
		}
		return strings.Repeat(fill, pad) + body, nil
	}
	return body + strings.Repeat(fill, pad), nil
}

func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if hasFrac {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

// percentFormat implements the printf-style % operator on strings.
func percentFormat(format string, arg Value) (Value, error) {
	args, ok := arg.(Tuple)
	if !ok {
		args = Tuple{arg}
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(format) && strings.IndexByte("0123456789.-+ ", format[j]) >= 0 {
			j++
		}
		if j >= len(format) {
			return nil, valueErrorf("incomplete format")
		}
		flags, verb := format[i+1:j], format[j]
		i = j
		if verb == '%' {
			b.WriteByte('%')
			continue
		}
		if n >= len(args) {
			return nil, typeErrorf("not enough arguments for format string")
		}
		v := args[n]
		n++
		spec := ""
		width, prec, hasPrec := flags, "", false
		if k := strings.IndexByte(flags, '.'); k >= 0 {
			width, prec, hasPrec = flags[:k], flags[k+1:], true
		}
		left := strings.HasPrefix(width, "-")
		width = strings.TrimLeft(width, "-+ ")
		if left {
			spec += "<"
		}
		spec += width
		if hasPrec {
			spec += "." + prec
		}
		switch verb {
		case 's':
			spec += "s"
			v = str(v)
		case 'r':
			spec += "s"
			v = repr(v)
		case 'd', 'i':
			if f, ok := v.(float64); ok {
				v = int64(f)
			}
			spec += "d"
		case 'f', 'F', 'e', 'E', 'g', 'G', 'x', 'X', 'o':
			spec += string(verb)
		default:
			return nil, valueErrorf("unsupported format character '%c'", verb)
		}
		out, err := formatValue(v, spec)
		if err != nil {
			return nil, err
		}
		b.WriteString(out)
	}
	if n < len(args) {
		return nil, typeErrorf("not all arguments converted during string formatting")
	}
	return b.String(), nil
}

func lengthAttr(l Length, name string) (Value, bool) {
	switch name {
	case "inches":
		return float64(l) / 914400, true
	case "pt":
		return float64(l) / 12700, true
	case "cm":
		return float64(l) / 360000, true
	case "mm":
		return float64(l) / 36000, true
	case "emu":
		return int64(l), true
	case "centipoints":
		return int64(l) / 127, true
	}
	return nil, false
}
