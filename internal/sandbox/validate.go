package sandbox

import (
	"fmt"
	"slices"
	"strings"
)

// Forbidden lists builder operations scripts must not call.
var Forbidden = []string{"add_freeform", "build_freeform"}

var bannedNames = map[string]bool{
	"exec": true, "eval": true, "open": true, "compile": true, "__import__": true,
	"getattr": true, "setattr": true, "delattr": true, "globals": true, "locals": true,
	"vars": true, "input": true, "breakpoint": true, "exit": true, "quit": true,
}

// ValidationError is a static rejection of a script.
type ValidationError struct {
	Line int
	Msg  string
}

func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

func reject(n Node, format string, args ...any) *ValidationError {
	return &ValidationError{Line: n.Line(), Msg: fmt.Sprintf(format, args...)}
}

// Repair is a sandbox binding the script used without importing it.
type Repair struct {
	Name   string
	Module string
}

func (r Repair) String() string { return "from " + r.Module + " import " + r.Name }

type validator struct {
	globals  map[string]bool
	imported map[string]bool
	repairs  []Repair
	seen     map[string]bool
}

// validate inspects a rewritten module without running it.
func validate(m *Module) ([]Repair, error) {
	v := &validator{
		globals:  map[string]bool{},
		imported: map[string]bool{},
		seen:     map[string]bool{},
	}
	bindNames(m.Body, v.globals)
	var err error
	walkStmts(m.Body, func(s Stmt) {
		if err == nil {
			err = v.imports(s)
		}
	})
	if err != nil {
		return nil, err
	}
	if err := v.block(m.Body, nil); err != nil {
		return nil, err
	}
	return v.repairs, nil
}

func (v *validator) imports(s Stmt) error {
	switch n := s.(type) {
	case *Import:
		for _, a := range n.Names {
			if !moduleAllowed(a.Name) {
				return reject(n, "import of module '%s' is not allowed", a.Name)
			}
			top, _, _ := strings.Cut(a.Name, ".")
			v.imported[top] = true
			if a.AsName != "" {
				v.imported[a.AsName] = true
			}
		}
	case *ImportFrom:
		if !moduleAllowed(n.Module) {
			return reject(n, "import from module '%s' is not allowed", n.Module)
		}
		for _, a := range n.Names {
			if a.Name == "*" {
				for _, name := range moduleExports(n.Module) {
					v.imported[name] = true
				}
				continue
			}
			if _, ok := lookupExport(n.Module, a.Name); !ok {
				return reject(n, "cannot import name '%s' from '%s'", a.Name, n.Module)
			}
			v.imported[a.Bound()] = true
		}
	}
	return nil
}

// bindNames collects names assigned in body. Nested function bodies are
// skipped since they have their own scope.
func bindNames(body []Stmt, into map[string]bool) {
	for _, s := range body {
		switch n := s.(type) {
		case *Import:
			for _, a := range n.Names {
				if a.AsName != "" {
					into[a.AsName] = true
				} else {
					top, _, _ := strings.Cut(a.Name, ".")
					into[top] = true
				}
			}
		case *ImportFrom:
			for _, a := range n.Names {
				if a.Name == "*" {
					for _, name := range moduleExports(n.Module) {
						into[name] = true
					}
					continue
				}
				into[a.Bound()] = true
			}
		case *FuncDef:
			into[n.Name] = true
			continue
		case *Assign:
			for _, t := range n.Targets {
				targetNames(t, into)
			}
		case *AugAssign:
			targetNames(n.Target, into)
		case *For:
			targetNames(n.Target, into)
		}
		for _, b := range childBlocks(s) {
			bindNames(b, into)
		}
	}
}

func targetNames(e Expr, into map[string]bool) {
	switch t := e.(type) {
	case *Name:
		into[t.ID] = true
	case *TupleExpr:
		for _, x := range t.Elts {
			targetNames(x, into)
		}
	case *ListExpr:
		for _, x := range t.Elts {
			targetNames(x, into)
		}
	}
}

func (v *validator) block(body []Stmt, locals map[string]bool) error {
	for _, s := range body {
		for _, e := range stmtExprs(s) {
			if err := v.expr(e, locals); err != nil {
				return err
			}
		}
		if fd, ok := s.(*FuncDef); ok {
			if slices.Contains(Forbidden, fd.Name) || bannedNames[fd.Name] {
				return reject(fd, "defining '%s' is not allowed", fd.Name)
			}
			inner := map[string]bool{}
			for _, p := range fd.Params {
				inner[p.Name] = true
			}
			bindNames(fd.Body, inner)
			if err := v.block(fd.Body, inner); err != nil {
				return err
			}
			continue
		}
		for _, b := range childBlocks(s) {
			if err := v.block(b, locals); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *validator) expr(e Expr, locals map[string]bool) error {
	var err error
	walkExpr(e, func(x Expr) bool {
		if err != nil {
			return false
		}
		switch n := x.(type) {
		case *Attribute:
			err = v.attribute(n, locals)
		case *Name:
			err = v.name(n, locals)
		}
		return err == nil
	})
	return err
}

func (v *validator) attribute(a *Attribute, locals map[string]bool) error {
	if slices.Contains(Forbidden, a.Attr) {
		return reject(a, "Generated code uses unsupported method: %s()", a.Attr)
	}
	if strings.HasPrefix(a.Attr, "__") {
		return reject(a, "access to attribute '%s' is not allowed", a.Attr)
	}
	base, ok := enumRef(a.X)
	if !ok {
		return nil
	}
	if n, isName := a.X.(*Name); isName && (locals[n.ID] || v.shadowed(n.ID)) {
		return nil
	}
	if e, ok := enums[base]; ok && !e.Has(a.Attr) && a.Attr != "name" {
		return reject(a, "%s has no member '%s'", base, a.Attr)
	}
	return nil
}

// shadowed reports whether the script rebinds a sandbox name itself.
func (v *validator) shadowed(name string) bool {
	return v.globals[name] && !v.imported[name]
}

func (v *validator) name(n *Name, locals map[string]bool) error {
	id := n.ID
	switch {
	case slices.Contains(Forbidden, id):
		return reject(n, "Generated code uses unsupported method: %s()", id)
	case bannedNames[id], strings.HasPrefix(id, "__"):
		return reject(n, "use of '%s' is not allowed", id)
	case locals[id], v.globals[id], slices.Contains(SafeBuiltins, id):
		return nil
	case id == "SOURCE_IMAGE":
		return nil
	}
	if _, ok := bindings[id]; ok {
		if !v.imported[id] && !v.seen[id] {
			v.seen[id] = true
			mod, _ := exportModule(id)
			v.repairs = append(v.repairs, Repair{Name: id, Module: mod})
		}
		return nil
	}
	return reject(n, "name '%s' is not defined", id)
}
