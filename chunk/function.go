package chunk

import "github.com/wudi/magpie/values"

// Upvar is a mutable one-slot cell shared by an outer frame and any inner
// closure that captured it (§3, DESIGN NOTES). Its lifetime equals the
// longest-lived holder; in Go that simply falls out of normal GC reachability
// once nothing references it anymore.
type Upvar struct {
	values.GCHeader
	value *values.Value
}

func NewUpvar() *Upvar { return &Upvar{value: values.NewAtom(values.AtomNothing)} }

func (u *Upvar) Value() *values.Value   { return u.value }
func (u *Upvar) SetValue(v *values.Value) { u.value = v }
func (u *Upvar) Reach(mark func(*values.Value)) { mark(u.value) }

// Function is a closure: a pointer to an (immutable, possibly shared) Chunk
// plus the array of Upvars it captured (§3).
type Function struct {
	values.GCHeader
	Chunk  *Chunk
	Upvars []*Upvar
}

func NewFunction(c *Chunk) *Function {
	return &Function{Chunk: c, Upvars: make([]*Upvar, len(c.Upvars))}
}

func NewFunctionValue(c *Chunk) *values.Value {
	return &values.Value{Type: values.TypeFunction, Data: NewFunction(c)}
}

func (f *Function) Reach(mark func(*values.Value)) {
	for _, uv := range f.Upvars {
		if uv != nil {
			mark(uv.Value())
		}
	}
}

func (f *Function) GetUpvar(slot uint32) *Upvar { return f.Upvars[slot] }
func (f *Function) SetUpvar(slot uint32, uv *Upvar) { f.Upvars[slot] = uv }

// AsFunction extracts the *Function payload from a TypeFunction Value.
func AsFunction(v *values.Value) (*Function, bool) {
	if v == nil || v.Type != values.TypeFunction {
		return nil, false
	}
	fn, ok := v.Data.(*Function)
	return fn, ok
}
