// Package registry holds the VM's process-wide, append-only global tables:
// interned symbols, record types, classes, multimethods, and natives (§3,
// §4.5). Every table here grows monotonically and never reorders or removes
// entries, so an index captured in a compiled chunk stays valid for the
// life of the VM (§5: "indices captured in bytecode are stable").
package registry

import "github.com/wudi/magpie/values"

// Symbols interns field/method/variable names to small integer ids so chunks
// can reference them by index instead of by string (§3: "interned symbols
// (string->id)").
type Symbols struct {
	names []string
}

// Intern returns the id for name, adding it if not already present (§4.5
// amortized lookup; grounded on VM::addSymbol's linear-scan-then-append).
func (s *Symbols) Intern(name string) int {
	for i, n := range s.names {
		if n == name {
			return i
		}
	}
	s.names = append(s.names, name)
	return len(s.names) - 1
}

func (s *Symbols) Name(id int) string {
	if id < 0 || id >= len(s.names) {
		return ""
	}
	return s.names[id]
}

func (s *Symbols) Len() int { return len(s.names) }

// RecordTypes interns RecordType descriptors by their sorted field-symbol
// vector, grounded on VM::addRecordType.
type RecordTypes struct {
	types []*values.RecordType
}

// Intern returns the id of the RecordType matching fields, creating one if
// none of the existing types has that exact sorted symbol set.
func (r *RecordTypes) Intern(fields []int) (int, *values.RecordType) {
	for i, t := range r.types {
		if t.SameShape(fields) {
			return i, t
		}
	}
	t := values.NewRecordType(fields)
	r.types = append(r.types, t)
	return len(r.types) - 1, t
}

func (r *RecordTypes) Get(id int) *values.RecordType {
	if id < 0 || id >= len(r.types) {
		return nil
	}
	return r.types[id]
}
