package sandbox

// Node is any syntax tree element. Line is 1-based.
type Node interface {
	Line() int
}

type pos struct{ line int }

func (p pos) Line() int { return p.line }

type Expr interface {
	Node
	expr()
}

type Stmt interface {
	Node
	stmt()
}

type (
	Name struct {
		pos
		ID string
	}
	IntLit struct {
		pos
		Value int64
	}
	FloatLit struct {
		pos
		Value float64
	}
	StrLit struct {
		pos
		Value string
	}
	BoolLit struct {
		pos
		Value bool
	}
	NoneLit struct{ pos }
	ListExpr struct {
		pos
		Elts []Expr
	}
	TupleExpr struct {
		pos
		Elts []Expr
	}
	DictExpr struct {
		pos
		Keys   []Expr
		Values []Expr
	}
	Attribute struct {
		pos
		X    Expr
		Attr string
	}
	Subscript struct {
		pos
		X     Expr
		Index Expr
	}
	// SliceExpr appears only as a Subscript index. Nil bounds are open.
	SliceExpr struct {
		pos
		Lo, Hi Expr
	}
	Keyword struct {
		Name  string
		Value Expr
	}
	Call struct {
		pos
		Func   Expr
		Args   []Expr
		Kwargs []Keyword
	}
	Unary struct {
		pos
		Op string // "-", "+", "not"
		X  Expr
	}
	Binary struct {
		pos
		Op   string
		X, Y Expr
	}
	// Compare is a chained comparison: Operands[0] Ops[0] Operands[1] ...
	Compare struct {
		pos
		Ops      []string
		Operands []Expr
	}
	BoolOp struct {
		pos
		Op     string // "and", "or"
		Values []Expr
	}
	IfExpr struct {
		pos
		Cond, Then, Else Expr
	}
)

func (*Name) expr()      {}
func (*IntLit) expr()    {}
func (*FloatLit) expr()  {}
func (*StrLit) expr()    {}
func (*BoolLit) expr()   {}
func (*NoneLit) expr()   {}
func (*ListExpr) expr()  {}
func (*TupleExpr) expr() {}
func (*DictExpr) expr()  {}
func (*Attribute) expr() {}
func (*Subscript) expr() {}
func (*SliceExpr) expr() {}
func (*Call) expr()      {}
func (*Unary) expr()     {}
func (*Binary) expr()    {}
func (*Compare) expr()   {}
func (*BoolOp) expr()    {}
func (*IfExpr) expr()    {}

type Alias struct {
	Name   string
	AsName string
}

// Bound is the name the alias binds in the namespace.
func (a Alias) Bound() string {
	if a.AsName != "" {
		return a.AsName
	}
	return a.Name
}

type Param struct {
	Name    string
	Default Expr
}

type (
	Import struct {
		pos
		Names []Alias
	}
	ImportFrom struct {
		pos
		Module string
		Names  []Alias // a single "*" alias for star imports
	}
	FuncDef struct {
		pos
		Name   string
		Params []Param
		Body   []Stmt
	}
	Assign struct {
		pos
		Targets []Expr
		Value   Expr
	}
	AugAssign struct {
		pos
		Target Expr
		Op     string
		Value  Expr
	}
	ExprStmt struct {
		pos
		X Expr
	}
	Return struct {
		pos
		Value Expr
	}
	For struct {
		pos
		Target Expr
		Iter   Expr
		Body   []Stmt
	}
	If struct {
		pos
		Cond Expr
		Body []Stmt
		Else []Stmt
	}
	Pass     struct{ pos }
	Break    struct{ pos }
	Continue struct{ pos }
)

func (*Import) stmt()     {}
func (*ImportFrom) stmt() {}
func (*FuncDef) stmt()    {}
func (*Assign) stmt()     {}
func (*AugAssign) stmt()  {}
func (*ExprStmt) stmt()   {}
func (*Return) stmt()     {}
func (*For) stmt()        {}
func (*If) stmt()         {}
func (*Pass) stmt()       {}
func (*Break) stmt()      {}
func (*Continue) stmt()   {}

// Module is a parsed script.
type Module struct {
	Body []Stmt
}

// walkExpr visits e and its subexpressions in source order. fn returning
// false skips the children of that node.
func walkExpr(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *ListExpr:
		for _, x := range n.Elts {
			walkExpr(x, fn)
		}
	case *TupleExpr:
		for _, x := range n.Elts {
			walkExpr(x, fn)
		}
	case *DictExpr:
		for i := range n.Keys {
			walkExpr(n.Keys[i], fn)
			walkExpr(n.Values[i], fn)
		}
	case *Attribute:
		walkExpr(n.X, fn)
	case *Subscript:
		walkExpr(n.X, fn)
		walkExpr(n.Index, fn)
	case *SliceExpr:
		walkExpr(n.Lo, fn)
		walkExpr(n.Hi, fn)
	case *Call:
		walkExpr(n.Func, fn)
		for _, x := range n.Args {
			walkExpr(x, fn)
		}
		for _, kw := range n.Kwargs {
			walkExpr(kw.Value, fn)
		}
	case *Unary:
		walkExpr(n.X, fn)
	case *Binary:
		walkExpr(n.X, fn)
		walkExpr(n.Y, fn)
	case *Compare:
		for _, x := range n.Operands {
			walkExpr(x, fn)
		}
	case *BoolOp:
		for _, x := range n.Values {
			walkExpr(x, fn)
		}
	case *IfExpr:
		walkExpr(n.Cond, fn)
		walkExpr(n.Then, fn)
		walkExpr(n.Else, fn)
	}
}

// stmtExprs returns the expressions held directly by s.
func stmtExprs(s Stmt) []Expr {
	switch n := s.(type) {
	case *FuncDef:
		var out []Expr
		for _, p := range n.Params {
			if p.Default != nil {
				out = append(out, p.Default)
			}
		}
		return out
	case *Assign:
		return append(append([]Expr{}, n.Targets...), n.Value)
	case *AugAssign:
		return []Expr{n.Target, n.Value}
	case *ExprStmt:
		return []Expr{n.X}
	case *Return:
		if n.Value != nil {
			return []Expr{n.Value}
		}
	case *For:
		return []Expr{n.Target, n.Iter}
	case *If:
		return []Expr{n.Cond}
	}
	return nil
}

// childBlocks returns the nested statement lists of s.
func childBlocks(s Stmt) [][]Stmt {
	switch n := s.(type) {
	case *FuncDef:
		return [][]Stmt{n.Body}
	case *For:
		return [][]Stmt{n.Body}
	case *If:
		return [][]Stmt{n.Body, n.Else}
	}
	return nil
}

// walkStmts visits every statement in body, depth first.
func walkStmts(body []Stmt, fn func(Stmt)) {
	for _, s := range body {
		fn(s)
		for _, b := range childBlocks(s) {
			walkStmts(b, fn)
		}
	}
}
