package sandbox

import "fmt"

// Rewrite records one normalization applied to a script.
type Rewrite struct {
	Line int
	From string
	To   string
}

func (r Rewrite) String() string { return fmt.Sprintf("line %d: %s -> %s", r.Line, r.From, r.To) }

type memberRule struct {
	enum, member string // member "*" matches any member
	toEnum       string
	toMember     string // empty keeps the member
}

// rewriteRules map names models commonly emit onto the bound ones.
var rewriteRules = []memberRule{
	{enum: "MSO_SHAPE", member: "STRAIGHT_CONNECTOR", toEnum: "MSO_CONNECTOR", toMember: "STRAIGHT"},
	{enum: "MSO_SHAPE", member: "LINE", toEnum: "MSO_CONNECTOR", toMember: "STRAIGHT"},
	{enum: "MSO_SHAPE", member: "ELLIPSE", toEnum: "MSO_SHAPE", toMember: "OVAL"},
	{enum: "MSO_SHAPE", member: "CIRCLE", toEnum: "MSO_SHAPE", toMember: "OVAL"},
	{enum: "MSO_SHAPE", member: "RECT", toEnum: "MSO_SHAPE", toMember: "RECTANGLE"},
	{enum: "PP_ALIGN", member: "CENTRE", toEnum: "PP_ALIGN", toMember: "CENTER"},
	{enum: "MSO_LINE_DASH_STYLE", member: "*", toEnum: "MSO_LINE"},
}

// rewriteModule applies the rewrite table in place and drops `x.save(...)`
// expression statements.
func rewriteModule(m *Module) []Rewrite {
	var out []Rewrite
	m.Body = rewriteBlock(m.Body, &out)
	return out
}

func rewriteBlock(body []Stmt, out *[]Rewrite) []Stmt {
	kept := body[:0]
	for _, s := range body {
		if isSaveCall(s) {
			*out = append(*out, Rewrite{Line: s.Line(), From: "save(...)", To: "(removed)"})
			continue
		}
		for _, e := range stmtExprs(s) {
			walkExpr(e, func(x Expr) bool {
				if a, ok := x.(*Attribute); ok {
					rewriteMember(a, out)
				}
				return true
			})
		}
		switch n := s.(type) {
		case *FuncDef:
			n.Body = rewriteBlock(n.Body, out)
		case *For:
			n.Body = rewriteBlock(n.Body, out)
		case *If:
			n.Body = rewriteBlock(n.Body, out)
			n.Else = rewriteBlock(n.Else, out)
		}
		kept = append(kept, s)
	}
	return kept
}

func isSaveCall(s Stmt) bool {
	es, ok := s.(*ExprStmt)
	if !ok {
		return false
	}
	c, ok := es.X.(*Call)
	if !ok {
		return false
	}
	a, ok := c.Func.(*Attribute)
	return ok && a.Attr == "save"
}

// enumRef returns the enum name an attribute base refers to, for both
// MSO_SHAPE and pptx.enum.shapes.MSO_SHAPE forms.
func enumRef(x Expr) (string, bool) {
	switch n := x.(type) {
	case *Name:
		return n.ID, true
	case *Attribute:
		return n.Attr, true
	}
	return "", false
}

func rewriteMember(a *Attribute, out *[]Rewrite) {
	base, ok := enumRef(a.X)
	if !ok {
		return
	}
	for _, r := range rewriteRules {
		if base != r.enum || (r.member != "*" && a.Attr != r.member) {
			continue
		}
		from := base + "." + a.Attr
		if r.toMember != "" {
			a.Attr = r.toMember
		}
		if r.toEnum != base {
			switch n := a.X.(type) {
			case *Name:
				a.X = &Name{pos: n.pos, ID: r.toEnum}
			case *Attribute:
				a.X = &Attribute{pos: n.pos, X: n.X, Attr: r.toEnum}
			}
		}
		*out = append(*out, Rewrite{Line: a.Line(), From: from, To: r.toEnum + "." + a.Attr})
		return
	}
}
