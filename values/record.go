package values

import "golang.org/x/exp/slices"

// RecordType is the canonical sorted set of field symbol ids identifying a
// structural record shape (§3). Two records share a type iff their symbol
// sets are identical, so the VM interns RecordTypes in registry and hands
// out stable ids; RecordType here only carries the sorted symbol vector.
type RecordType struct {
	Symbols []int // sorted ascending
}

// NewRecordType sorts fields and returns the canonical type descriptor.
func NewRecordType(fields []int) *RecordType {
	sorted := append([]int(nil), fields...)
	slices.Sort(sorted)
	return &RecordType{Symbols: sorted}
}

// SameShape reports whether two field id sets denote the same record type.
func (t *RecordType) SameShape(other []int) bool {
	sorted := append([]int(nil), other...)
	slices.Sort(sorted)
	return slices.Equal(t.Symbols, sorted)
}

func (t *RecordType) IndexOf(symbol int) (int, bool) {
	i, found := slices.BinarySearch(t.Symbols, symbol)
	if !found {
		return 0, false
	}
	return i, true
}

// Record is an instance of a RecordType: a parallel array of field values
// in the type's canonical (sorted) symbol order.
type Record struct {
	GCHeader
	TypeID int // index into the registry's record-type table
	Type   *RecordType
	Fields []*Value
}

func NewRecord(typeID int, rt *RecordType, fields []*Value) *Value {
	return &Value{Type: TypeRecord, Data: &Record{TypeID: typeID, Type: rt, Fields: fields}}
}

func (r *Record) Reach(mark func(*Value)) {
	for _, f := range r.Fields {
		mark(f)
	}
}

// GetField returns the value bound to the given field symbol, or nil (and
// false) if the record's type does not have that field (§4.1 GET_FIELD).
func (r *Record) GetField(symbol int) (*Value, bool) {
	i, ok := r.Type.IndexOf(symbol)
	if !ok {
		return nil, false
	}
	return r.Fields[i], true
}

// AsRecord extracts the *Record payload from a TypeRecord Value.
func AsRecord(v *Value) (*Record, bool) {
	if v == nil || v.Type != TypeRecord {
		return nil, false
	}
	r, ok := v.Data.(*Record)
	return r, ok
}

func (r *Record) String() string {
	out := "("
	for i, f := range r.Fields {
		if i > 0 {
			out += ", "
		}
		out += f.String()
	}
	return out + ")"
}
