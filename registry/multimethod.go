package registry

import (
	"strconv"
	"strings"

	"github.com/wudi/magpie/chunk"
	"github.com/wudi/magpie/values"
)

// Matcher reports whether a method's declared argument pattern accepts args.
// Pattern matching is emitted by the (out-of-scope) compiler as part of each
// method's chunk prologue; the dispatcher only needs a yes/no predicate per
// method (§4.5: "pattern matching is a compiler-generated property of each
// method's chunk").
type Matcher func(args []*values.Value) bool

// Method is one implementation registered under a Multimethod's signature.
type Method struct {
	Matcher Matcher
	Fn      *chunk.Function
}

// Multimethod is an ordered, append-only list of Methods sharing a
// signature string (§4.5). CALL dispatch walks the list in insertion order
// and invokes the first Method whose Matcher accepts the call's arguments;
// ties are broken by insertion order, matching the spec's Open Question
// resolution recorded in DESIGN.md.
type Multimethod struct {
	values.GCHeader
	Signature string
	Arity     int
	Methods   []*Method
}

// arityFromSignature reads the "/N" arity suffix convention the compiler is
// expected to emit on multimethod signatures (e.g. "add/2"), since CALL
// must know how many registers belong to the argument window before a
// method (and hence its chunk) has been selected — the signature is the
// only thing the dispatcher has at that point. Signatures without a
// suffix get arity 0, meaning the dispatcher passes the call's full
// argument list to Matcher.
func arityFromSignature(signature string) int {
	i := strings.LastIndex(signature, "/")
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(signature[i+1:])
	if err != nil {
		return 0
	}
	return n
}

func NewMultimethod(signature string) *Multimethod {
	return &Multimethod{Signature: signature, Arity: arityFromSignature(signature)}
}

func NewMultimethodValue(signature string) *values.Value {
	return &values.Value{Type: values.TypeMultimethod, Data: NewMultimethod(signature)}
}

func (m *Multimethod) AddMethod(method *Method) { m.Methods = append(m.Methods, method) }

// Select returns the first method whose Matcher accepts args, or nil if
// none matches (caller raises NO_METHOD_ERROR per §4.5/§7).
func (m *Multimethod) Select(args []*values.Value) *Method {
	for _, method := range m.Methods {
		if method.Matcher(args) {
			return method
		}
	}
	return nil
}

func (m *Multimethod) String() string { return "multimethod " + m.Signature }

func (m *Multimethod) Reach(mark func(*values.Value)) {
	for _, method := range m.Methods {
		method.Fn.Reach(mark)
	}
}

// AsMultimethod extracts the *Multimethod payload of a TypeMultimethod Value.
func AsMultimethod(v *values.Value) (*Multimethod, bool) {
	if v == nil || v.Type != values.TypeMultimethod {
		return nil, false
	}
	mm, ok := v.Data.(*Multimethod)
	return mm, ok
}

// Multimethods is the VM's append-only signature -> Multimethod table,
// grounded on VM::declareMultimethod/findMultimethod/defineMethod.
type Multimethods struct {
	bySignature map[string]int
	table       []*values.Value // each *Value of TypeMultimethod
}

func NewMultimethods() *Multimethods {
	return &Multimethods{bySignature: make(map[string]int)}
}

// Declare returns the id of the multimethod for signature, creating it if
// this is the first time the signature has been declared.
func (t *Multimethods) Declare(signature string) (int, *values.Value) {
	if id, ok := t.bySignature[signature]; ok {
		return id, t.table[id]
	}
	v := NewMultimethodValue(signature)
	id := len(t.table)
	t.bySignature[signature] = id
	t.table = append(t.table, v)
	return id, v
}

func (t *Multimethods) Find(signature string) (int, bool) {
	id, ok := t.bySignature[signature]
	return id, ok
}

func (t *Multimethods) Get(id int) *values.Value {
	if id < 0 || id >= len(t.table) {
		return nil
	}
	return t.table[id]
}

// Define appends method to the multimethod at id (§4.1's METHOD opcode).
func (t *Multimethods) Define(id int, method *Method) {
	mm, _ := AsMultimethod(t.table[id])
	mm.AddMethod(method)
}
