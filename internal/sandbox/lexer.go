package sandbox

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokName
	tokInt
	tokFloat
	tokString
	tokOp
	tokNewline
	tokIndent
	tokDedent
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of file"
	case tokName:
		return "name"
	case tokInt, tokFloat:
		return "number"
	case tokString:
		return "string"
	case tokOp:
		return "operator"
	case tokNewline:
		return "newline"
	case tokIndent:
		return "indent"
	case tokDedent:
		return "dedent"
	}
	return "token"
}

type token struct {
	kind tokenKind
	text string // operator, name, or decoded string contents
	i    int64
	f    float64
	line int
	col  int
}

func (t token) describe() string {
	switch t.kind {
	case tokName, tokOp:
		return strconv.Quote(t.text)
	}
	return t.kind.String()
}

// SyntaxError is a lexing or parsing failure with a 1-based position.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// three-, two- and one-rune operators, longest first.
var operators = []string{
	"**=", "//=", ">>=", "<<=", "...",
	"**", "//", "==", "!=", "<=", ">=", "+=", "-=", "*=", "/=", "%=", "->", ">>", "<<", "&=", "|=", "^=", ":=",
	"+", "-", "*", "/", "%", "<", ">", "=", "(", ")", "[", "]", "{", "}", ",", ":", ".", ";", "@", "~", "&", "|", "^",
}

type lexer struct {
	src     string
	pos     int
	line    int
	col     int
	depth   int // bracket nesting; newlines inside brackets are ignored
	indents []int
	toks    []token
	atBOL   bool
}

// tokenize splits src into tokens, synthesizing INDENT and DEDENT from
// leading whitespace.
func tokenize(src string) ([]token, error) {
	lx := &lexer{src: strings.ReplaceAll(src, "\r\n", "\n"), line: 1, col: 1, indents: []int{0}, atBOL: true}
	if err := lx.run(); err != nil {
		return nil, err
	}
	return lx.toks, nil
}

func (lx *lexer) errorf(format string, args ...any) error {
	return &SyntaxError{Line: lx.line, Col: lx.col, Msg: fmt.Sprintf(format, args...)}
}

func (lx *lexer) emit(t token) {
	if t.line == 0 {
		t.line, t.col = lx.line, lx.col
	}
	lx.toks = append(lx.toks, t)
}

func (lx *lexer) peekRune() (rune, int) {
	if lx.pos >= len(lx.src) {
		return 0, 0
	}
	return utf8.DecodeRuneInString(lx.src[lx.pos:])
}

func (lx *lexer) advance(n int) {
	for i := 0; i < n && lx.pos < len(lx.src); {
		r, w := utf8.DecodeRuneInString(lx.src[lx.pos:])
		lx.pos += w
		i += w
		if r == '\n' {
			lx.line++
			lx.col = 1
		} else {
			lx.col++
		}
	}
}

func (lx *lexer) run() error {
	for {
		if lx.atBOL && lx.depth == 0 {
			done, err := lx.indentation()
			if err != nil {
				return err
			}
			if done {
				break
			}
		}
		r, w := lx.peekRune()
		if w == 0 {
			break
		}
		switch {
		case r == '\n':
			if lx.depth == 0 {
				lx.emit(token{kind: tokNewline})
				lx.atBOL = true
			}
			lx.advance(1)
		case r == ' ' || r == '\t' || r == '\f':
			lx.advance(1)
		case r == '#':
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
				lx.advance(1)
			}
		case r == '\\':
			if !strings.HasPrefix(lx.src[lx.pos:], "\\\n") {
				return lx.errorf("unexpected character after line continuation")
			}
			lx.advance(2)
		case r == '_' || unicode.IsLetter(r):
			if err := lx.nameOrString(); err != nil {
				return err
			}
		case unicode.IsDigit(r) || (r == '.' && lx.pos+1 < len(lx.src) && isDigit(lx.src[lx.pos+1])):
			if err := lx.number(); err != nil {
				return err
			}
		case r == '"' || r == '\'':
			if err := lx.str(false); err != nil {
				return err
			}
		default:
			if err := lx.operator(); err != nil {
				return err
			}
		}
	}
	if n := len(lx.toks); n > 0 && lx.toks[n-1].kind != tokNewline && lx.toks[n-1].kind != tokDedent {
		lx.emit(token{kind: tokNewline})
	}
	for len(lx.indents) > 1 {
		lx.indents = lx.indents[:len(lx.indents)-1]
		lx.emit(token{kind: tokDedent})
	}
	lx.emit(token{kind: tokEOF})
	return nil
}

// indentation consumes leading whitespace of a logical line. Blank and
// comment-only lines produce no tokens.
func (lx *lexer) indentation() (eof bool, err error) {
	for {
		width := 0
		for lx.pos < len(lx.src) {
			c := lx.src[lx.pos]
			if c == ' ' {
				width++
			} else if c == '\t' {
				width += 8 - width%8
			} else {
				break
			}
			lx.advance(1)
		}
		if lx.pos >= len(lx.src) {
			return true, nil
		}
		c := lx.src[lx.pos]
		if c == '\n' || c == '#' {
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
				lx.advance(1)
			}
			lx.advance(1)
			continue
		}
		lx.atBOL = false
		cur := lx.indents[len(lx.indents)-1]
		switch {
		case width > cur:
			lx.indents = append(lx.indents, width)
			lx.emit(token{kind: tokIndent})
		case width < cur:
			for width < lx.indents[len(lx.indents)-1] {
				lx.indents = lx.indents[:len(lx.indents)-1]
				lx.emit(token{kind: tokDedent})
			}
			if width != lx.indents[len(lx.indents)-1] {
				return false, lx.errorf("unindent does not match any outer indentation level")
			}
		}
		return false, nil
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (lx *lexer) nameOrString() error {
	start := lx.pos
	line, col := lx.line, lx.col
	for lx.pos < len(lx.src) {
		r, w := utf8.DecodeRuneInString(lx.src[lx.pos:])
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		lx.advance(w)
	}
	word := lx.src[start:lx.pos]
	if lx.pos < len(lx.src) && (lx.src[lx.pos] == '"' || lx.src[lx.pos] == '\'') {
		switch strings.ToLower(word) {
		case "f", "rf", "fr":
			return &SyntaxError{Line: line, Col: col, Msg: "f-strings are not supported"}
		case "r":
			return lx.str(true)
		case "u":
			return lx.str(false)
		case "b", "br", "rb":
			return &SyntaxError{Line: line, Col: col, Msg: "bytes literals are not supported"}
		}
	}
	lx.emit(token{kind: tokName, text: word, line: line, col: col})
	return nil
}

func (lx *lexer) number() error {
	start := lx.pos
	line, col := lx.line, lx.col
	s := lx.src
	isFloat := false
	if strings.HasPrefix(s[lx.pos:], "0x") || strings.HasPrefix(s[lx.pos:], "0X") {
		lx.advance(2)
		for lx.pos < len(s) && (strings.IndexByte("0123456789abcdefABCDEF_", s[lx.pos]) >= 0) {
			lx.advance(1)
		}
	} else {
	digits:
		for lx.pos < len(s) {
			c := s[lx.pos]
			switch {
			case isDigit(c) || c == '_':
			case c == '.' && !isFloat:
				isFloat = true
			case (c == 'e' || c == 'E') && lx.pos+1 < len(s):
				isFloat = true
				if s[lx.pos+1] == '+' || s[lx.pos+1] == '-' {
					lx.advance(1)
				}
			default:
				break digits
			}
			lx.advance(1)
		}
	}
	text := strings.ReplaceAll(s[start:lx.pos], "_", "")
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return &SyntaxError{Line: line, Col: col, Msg: fmt.Sprintf("invalid number %q", text)}
		}
		lx.emit(token{kind: tokFloat, text: text, f: f, line: line, col: col})
		return nil
	}
	i, err := strconv.ParseInt(text, 0, 64)
	if err != nil {
		return &SyntaxError{Line: line, Col: col, Msg: fmt.Sprintf("invalid number %q", text)}
	}
	lx.emit(token{kind: tokInt, text: text, i: i, line: line, col: col})
	return nil
}

func (lx *lexer) str(raw bool) error {
	line, col := lx.line, lx.col
	q := lx.src[lx.pos]
	triple := strings.HasPrefix(lx.src[lx.pos:], strings.Repeat(string(q), 3))
	delim := string(q)
	if triple {
		delim = strings.Repeat(string(q), 3)
	}
	lx.advance(len(delim))
	var b strings.Builder
	for {
		if lx.pos >= len(lx.src) {
			return &SyntaxError{Line: line, Col: col, Msg: "unterminated string literal"}
		}
		if strings.HasPrefix(lx.src[lx.pos:], delim) {
			lx.advance(len(delim))
			break
		}
		c := lx.src[lx.pos]
		if c == '\n' && !triple {
			return &SyntaxError{Line: line, Col: col, Msg: "unterminated string literal"}
		}
		if c == '\\' && lx.pos+1 < len(lx.src) {
			if raw {
				b.WriteString(lx.src[lx.pos : lx.pos+2])
				lx.advance(2)
				continue
			}
			n, err := lx.escape(&b)
			if err != nil {
				return err
			}
			lx.advance(n)
			continue
		}
		r, w := utf8.DecodeRuneInString(lx.src[lx.pos:])
		b.WriteRune(r)
		lx.advance(w)
	}
	lx.emit(token{kind: tokString, text: b.String(), line: line, col: col})
	return nil
}

// escape decodes the escape sequence at lx.pos and returns its width.
func (lx *lexer) escape(b *strings.Builder) (int, error) {
	s := lx.src[lx.pos:]
	switch s[1] {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case '0':
		b.WriteByte(0)
	case '\\', '\'', '"':
		b.WriteByte(s[1])
	case '\n':
	case 'x', 'u', 'U':
		width := map[byte]int{'x': 2, 'u': 4, 'U': 8}[s[1]]
		if len(s) < 2+width {
			return 0, lx.errorf("truncated escape sequence")
		}
		v, err := strconv.ParseUint(s[2:2+width], 16, 32)
		if err != nil {
			return 0, lx.errorf("invalid escape sequence \\%s", s[1:2+width])
		}
		b.WriteRune(rune(v))
		return 2 + width, nil
	default:
		b.WriteString(s[:2])
	}
	return 2, nil
}

func (lx *lexer) operator() error {
	rest := lx.src[lx.pos:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op) {
			switch op {
			case "(", "[", "{":
				lx.depth++
			case ")", "]", "}":
				if lx.depth > 0 {
					lx.depth--
				}
			}
			lx.emit(token{kind: tokOp, text: op})
			lx.advance(len(op))
			return nil
		}
	}
	r, _ := lx.peekRune()
	return lx.errorf("unexpected character %q", r)
}
