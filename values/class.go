package values

// Class represents a user- or core-defined class: name, field count,
// direct superclasses, and a precomputed linearization used by the `is`
// test (§3, §4.5).
type Class struct {
	GCHeader
	Name           string
	NumFields      int
	Superclasses   []*Value // each a *Value of TypeClass
	Linearization  []*Class // transitive closure including self, computed once at creation
	staticFields   map[int]*Value // GET_CLASS_FIELD/SET_CLASS_FIELD storage, keyed by symbol id
}

func (c *Class) StaticField(symbol int) (*Value, bool) {
	v, ok := c.staticFields[symbol]
	return v, ok
}

func (c *Class) SetStaticField(symbol int, v *Value) {
	if c.staticFields == nil {
		c.staticFields = make(map[int]*Value)
	}
	c.staticFields[symbol] = v
}

func NewClass(name string, numFields int, superclasses []*Value) *Value {
	c := &Class{Name: name, NumFields: numFields, Superclasses: superclasses}
	c.Linearization = linearize(c)
	return &Value{Type: TypeClass, Data: c}
}

func linearize(c *Class) []*Class {
	seen := map[*Class]bool{c: true}
	order := []*Class{c}
	var walk func(*Class)
	walk = func(cur *Class) {
		for _, sup := range cur.Superclasses {
			sc := sup.Data.(*Class)
			if !seen[sc] {
				seen[sc] = true
				order = append(order, sc)
				walk(sc)
			}
		}
	}
	walk(c)
	return order
}

func (c *Class) Reach(mark func(*Value)) {
	for _, s := range c.Superclasses {
		mark(s)
	}
	for _, v := range c.staticFields {
		mark(v)
	}
}

// AsClass extracts the *Class payload from a TypeClass Value.
func AsClass(v *Value) (*Class, bool) {
	if v == nil || v.Type != TypeClass {
		return nil, false
	}
	c, ok := v.Data.(*Class)
	return c, ok
}

// IsA implements the `is` test: true iff target appears in c's
// linearization (§4.5).
func (c *Class) IsA(target *Class) bool {
	for _, anc := range c.Linearization {
		if anc == target {
			return true
		}
	}
	return false
}

// Dynamic is an instance of a user class: class pointer + field slots
// indexed by declaration order (§3).
type Dynamic struct {
	GCHeader
	Class  *Class
	Fields []*Value
}

func NewDynamic(class *Class) *Value {
	fields := make([]*Value, class.NumFields)
	for i := range fields {
		fields[i] = NewAtom(AtomNothing)
	}
	return &Value{Type: TypeDynamic, Data: &Dynamic{Class: class, Fields: fields}}
}

func (d *Dynamic) Reach(mark func(*Value)) {
	for _, f := range d.Fields {
		mark(f)
	}
}

func (d *Dynamic) GetField(i int) *Value   { return d.Fields[i] }
func (d *Dynamic) SetField(i int, v *Value) { d.Fields[i] = v }

func (d *Dynamic) String() string { return "instance of " + d.Class.Name }

// ClassOf returns the runtime class of any Value, used by the IS opcode.
func ClassOf(v *Value, core *CoreClasses) *Class {
	switch v.Type {
	case TypeDynamic:
		return v.Data.(*Dynamic).Class
	case TypeClass:
		return core.ClassClass
	case TypeRecord:
		return core.RecordClass
	case TypeList:
		return core.ListClass
	case TypeString:
		return core.StringClass
	case TypeInt:
		return core.IntClass
	case TypeFloat:
		return core.FloatClass
	case TypeChar:
		return core.CharClass
	case TypeAtom:
		return core.ClassForAtom(v.AsAtom())
	case TypeFunction:
		return core.FunctionClass
	case TypeChannel:
		return core.ChannelClass
	case TypeFiber:
		return core.FiberClass
	case TypeMultimethod:
		return core.MultimethodClass
	default:
		return nil
	}
}

// CoreClasses holds the well-known built-in classes bound once at VM init,
// mirroring the original's CoreClass-indexed array in VM::bindClass/getClass.
type CoreClasses struct {
	ClassClass, RecordClass, ListClass, StringClass   *Class
	IntClass, FloatClass, CharClass, FunctionClass    *Class
	ChannelClass, FiberClass, MultimethodClass        *Class
	BoolClass, NothingClass, DoneClass                *Class
	NoMatchError, NoMethodError, UndefinedVarError     *Class
	OverflowError, Error                              *Class
}

func (c *CoreClasses) ClassForAtom(a Atom) *Class {
	switch a {
	case AtomTrue, AtomFalse:
		return c.BoolClass
	case AtomNothing:
		return c.NothingClass
	case AtomDone:
		return c.DoneClass
	default:
		return c.NoMethodError
	}
}
