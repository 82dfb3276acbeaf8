package registry

import "github.com/wudi/magpie/values"

// Classes is the append-only class table, keyed by name for user classes
// plus direct handles for the well-known core classes the VM binds at boot
// (§3: "classes (by well-known CoreClass id and by user class)").
type Classes struct {
	byName map[string]*values.Value // each *Value of TypeClass
	order  []*values.Value
	Core   values.CoreClasses
}

func NewClasses() *Classes {
	return &Classes{byName: make(map[string]*values.Value)}
}

// Define registers a new class under name and returns its *Value. Redefining
// an existing name is a programmer error in this VM (classes are declared
// once, at module load); callers should check Lookup first.
func (c *Classes) Define(name string, numFields int, superclasses []*values.Value) *values.Value {
	v := values.NewClass(name, numFields, superclasses)
	c.byName[name] = v
	c.order = append(c.order, v)
	return v
}

func (c *Classes) Lookup(name string) (*values.Value, bool) {
	v, ok := c.byName[name]
	return v, ok
}

func (c *Classes) All() []*values.Value { return c.order }

// BindCore registers the fixed set of classes every VM instance boots with
// (bool, nothing, done, the five error kinds, and the per-Type runtime
// classes), grounded on VM::bindClass's CoreClass table.
func (c *Classes) BindCore() {
	object := c.Define("Object", 0, nil)
	objCls := object.Data.(*values.Class)

	mk := func(name string, fields int, supers ...*values.Value) *values.Value {
		if len(supers) == 0 {
			supers = []*values.Value{object}
		}
		return c.Define(name, fields, supers)
	}

	c.Core.ClassClass = mk("Class", 0).Data.(*values.Class)
	c.Core.RecordClass = mk("Record", 0).Data.(*values.Class)
	c.Core.ListClass = mk("List", 0).Data.(*values.Class)
	c.Core.StringClass = mk("String", 0).Data.(*values.Class)
	c.Core.IntClass = mk("Int", 0).Data.(*values.Class)
	c.Core.FloatClass = mk("Float", 0).Data.(*values.Class)
	c.Core.CharClass = mk("Char", 0).Data.(*values.Class)
	c.Core.FunctionClass = mk("Function", 0).Data.(*values.Class)
	c.Core.ChannelClass = mk("Channel", 0).Data.(*values.Class)
	c.Core.FiberClass = mk("Fiber", 0).Data.(*values.Class)
	c.Core.MultimethodClass = mk("Multimethod", 0).Data.(*values.Class)
	c.Core.BoolClass = mk("Bool", 0).Data.(*values.Class)
	c.Core.NothingClass = mk("Nothing", 0).Data.(*values.Class)
	c.Core.DoneClass = mk("Done", 0).Data.(*values.Class)

	errCls := mk("Error", 0)
	c.Core.Error = errCls.Data.(*values.Class)
	c.Core.NoMatchError = mk("NoMatchError", 0, errCls).Data.(*values.Class)
	c.Core.NoMethodError = mk("NoMethodError", 0, errCls).Data.(*values.Class)
	c.Core.UndefinedVarError = mk("UndefinedVarError", 0, errCls).Data.(*values.Class)
	c.Core.OverflowError = mk("OverflowError", 0, errCls).Data.(*values.Class)

	_ = objCls
}
