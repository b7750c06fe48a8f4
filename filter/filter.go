// Package filter implements the request filter algebra.
//
// Composite filters are explicit expression trees (Leaf, And, Or, Not)
// evaluated by a small interpreter. Evaluation is strictly left to right and
// short-circuits: And stops at the first rejecting child, Or at the first
// accepting child. Children with side effects (history filters) rely on this
// order, so it is part of the contract.
package filter

import (
	"fmt"
	"strings"

	"github.com/fwojciec/recrawl"
)

// Op identifies the kind of an expression node.
type Op int

// Expression node kinds.
const (
	OpLeaf Op = iota
	OpAnd
	OpOr
	OpNot
)

func (op Op) String() string {
	switch op {
	case OpLeaf:
		return "leaf"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpNot:
		return "not"
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}

// Compile-time interface verification.
var _ recrawl.Filter = (*Expr)(nil)

// Expr is a node of a filter expression tree.
// Leaf nodes hold a filter; And/Or nodes hold any number of children;
// Not nodes hold exactly one child.
type Expr struct {
	Op       Op
	Leaf     recrawl.Filter
	Children []*Expr
}

// Leaf wraps f as an expression. Expressions are returned unchanged.
func Leaf(f recrawl.Filter) *Expr {
	if e, ok := f.(*Expr); ok {
		return e
	}
	return &Expr{Op: OpLeaf, Leaf: f}
}

// And accepts a request only if every filter accepts it.
// An And with no children accepts everything.
func And(fs ...recrawl.Filter) *Expr {
	return &Expr{Op: OpAnd, Children: leaves(fs)}
}

// Or accepts a request if any filter accepts it.
// An Or with no children rejects everything.
func Or(fs ...recrawl.Filter) *Expr {
	return &Expr{Op: OpOr, Children: leaves(fs)}
}

// Not inverts f.
func Not(f recrawl.Filter) *Expr {
	return &Expr{Op: OpNot, Children: []*Expr{Leaf(f)}}
}

// Minus accepts what a accepts and b rejects. b is evaluated only when a
// accepts.
func Minus(a, b recrawl.Filter) *Expr {
	return And(a, Not(b))
}

// And returns And(e, fs...).
func (e *Expr) And(fs ...recrawl.Filter) *Expr {
	return And(append([]recrawl.Filter{e}, fs...)...)
}

// Or returns Or(e, fs...).
func (e *Expr) Or(fs ...recrawl.Filter) *Expr {
	return Or(append([]recrawl.Filter{e}, fs...)...)
}

// Minus returns Minus(e, f).
func (e *Expr) Minus(f recrawl.Filter) *Expr {
	return Minus(e, f)
}

// Accept evaluates the expression against req.
func (e *Expr) Accept(req *recrawl.Request) bool {
	return Eval(e, req)
}

// Eval evaluates e against req, left to right with short circuit.
func Eval(e *Expr, req *recrawl.Request) bool {
	switch e.Op {
	case OpLeaf:
		return e.Leaf.Accept(req)
	case OpAnd:
		for _, c := range e.Children {
			if !Eval(c, req) {
				return false
			}
		}
		return true
	case OpOr:
		for _, c := range e.Children {
			if Eval(c, req) {
				return true
			}
		}
		return false
	case OpNot:
		if len(e.Children) != 1 {
			panic(fmt.Sprintf("filter: not node with %d children", len(e.Children)))
		}
		return !Eval(e.Children[0], req)
	}
	panic(fmt.Sprintf("filter: unknown op %s", e.Op))
}

// Walk calls fn for every leaf filter in evaluation order.
func Walk(f recrawl.Filter, fn func(recrawl.Filter)) {
	e, ok := f.(*Expr)
	if !ok {
		if f != nil {
			fn(f)
		}
		return
	}
	if e.Op == OpLeaf {
		Walk(e.Leaf, fn)
		return
	}
	for _, c := range e.Children {
		Walk(c, fn)
	}
}

// Stashers returns every leaf of f that carries state, in evaluation order.
func Stashers(f recrawl.Filter) []recrawl.Stasher {
	var out []recrawl.Stasher
	Walk(f, func(leaf recrawl.Filter) {
		if s, ok := leaf.(recrawl.Stasher); ok {
			out = append(out, s)
		}
	})
	return out
}

// String renders the tree shape, e.g. "and(leaf, not(leaf))".
func (e *Expr) String() string {
	if e.Op == OpLeaf {
		return "leaf"
	}
	parts := make([]string, len(e.Children))
	for i, c := range e.Children {
		parts[i] = c.String()
	}
	return e.Op.String() + "(" + strings.Join(parts, ", ") + ")"
}

func leaves(fs []recrawl.Filter) []*Expr {
	out := make([]*Expr, 0, len(fs))
	for _, f := range fs {
		out = append(out, Leaf(f))
	}
	return out
}
