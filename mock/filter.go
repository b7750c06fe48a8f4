package mock

import "github.com/fwojciec/recrawl"

var _ recrawl.Filter = (*Filter)(nil)

// Filter is a mock implementation of recrawl.Filter.
// It counts Accept calls so tests can observe short-circuit evaluation.
type Filter struct {
	AcceptFn func(req *recrawl.Request) bool

	Calls int
}

func (f *Filter) Accept(req *recrawl.Request) bool {
	f.Calls++
	return f.AcceptFn(req)
}

// Const returns a Filter that always answers v.
func Const(v bool) *Filter {
	return &Filter{AcceptFn: func(*recrawl.Request) bool { return v }}
}
