package native

import (
	"fmt"
	"math"
	"time"

	"github.com/wudi/magpie/sched"
	"github.com/wudi/magpie/values"
)

// RegisterCore binds the core namespace: printing, stringification, a
// clock reading, and the list/string primitives §6 names as the minimum
// required surface. Adapted from runtime/output.go's print builtin and
// runtime/array.go's/runtime/string.go's primitive shapes, rewritten
// against the Magpie value model instead of PHP's.
func RegisterCore(t *Table) {
	t.Define("core.print", func(host Host, args []*values.Value) (*values.Value, Disposition) {
		for i, a := range args {
			if i > 0 {
				fmt.Fprint(host.Stdout(), " ")
			}
			fmt.Fprint(host.Stdout(), a.String())
		}
		fmt.Fprintln(host.Stdout())
		return values.NewAtom(values.AtomNothing), Return
	})

	t.Define("core.toString", func(host Host, args []*values.Value) (*values.Value, Disposition) {
		if len(args) == 0 {
			return values.NewString(""), Return
		}
		return values.NewString(args[0].String()), Return
	})

	t.Define("core.clock", func(host Host, args []*values.Value) (*values.Value, Disposition) {
		return values.NewFloat(float64(time.Now().UnixNano()) / 1e9), Return
	})

	t.Define("list.add", func(host Host, args []*values.Value) (*values.Value, Disposition) {
		l, ok := args[0].Data.(*values.List)
		if !ok {
			return values.NewString("list.add: not a list"), Throw
		}
		l.Add(args[1])
		return args[0], Return
	})

	t.Define("list.get", func(host Host, args []*values.Value) (*values.Value, Disposition) {
		l, ok := args[0].Data.(*values.List)
		if !ok {
			return values.NewString("list.get: not a list"), Throw
		}
		v, ok := l.At(int(args[1].Int64))
		if !ok {
			return values.NewString("list.get: index out of range"), Throw
		}
		return v, Return
	})

	t.Define("list.length", func(host Host, args []*values.Value) (*values.Value, Disposition) {
		l, ok := args[0].Data.(*values.List)
		if !ok {
			return values.NewString("list.length: not a list"), Throw
		}
		return values.NewInt(int64(l.Len())), Return
	})

	t.Define("string.length", func(host Host, args []*values.Value) (*values.Value, Disposition) {
		s, ok := args[0].Data.(*values.String)
		if !ok {
			return values.NewString("string.length: not a string"), Throw
		}
		return values.NewInt(int64(s.Len())), Return
	})

	t.Define("string.slice", func(host Host, args []*values.Value) (*values.Value, Disposition) {
		s, ok := args[0].Data.(*values.String)
		if !ok {
			return values.NewString("string.slice: not a string"), Throw
		}
		sub, ok := s.Slice(int(args[1].Int64), int(args[2].Int64))
		if !ok {
			return values.NewString("string.slice: out of range"), Throw
		}
		return &values.Value{Type: values.TypeString, Data: sub}, Return
	})

	t.Define("string.concat", func(host Host, args []*values.Value) (*values.Value, Disposition) {
		a, aok := args[0].Data.(*values.String)
		b, bok := args[1].Data.(*values.String)
		if !aok || !bok {
			return values.NewString("string.concat: not a string"), Throw
		}
		return &values.Value{Type: values.TypeString, Data: values.Concat(a, b)}, Return
	})

	t.Define("core.channel", func(host Host, args []*values.Value) (*values.Value, Disposition) {
		return host.Alloc(sched.NewChannelValue()), Return
	})

	t.Define("core.send", func(host Host, args []*values.Value) (*values.Value, Disposition) {
		ch, ok := sched.AsChannel(args[0])
		if !ok {
			return values.NewString("core.send: not a channel"), Throw
		}
		if host.ChannelSend(ch, args[1]) {
			return values.NewAtom(values.AtomNothing), Return
		}
		return values.NewAtom(values.AtomNothing), Suspend
	})

	t.Define("core.receive", func(host Host, args []*values.Value) (*values.Value, Disposition) {
		ch, ok := sched.AsChannel(args[0])
		if !ok {
			return values.NewString("core.receive: not a channel"), Throw
		}
		if v, ok := host.ChannelReceive(ch); ok {
			return v, Return
		}
		return values.NewAtom(values.AtomNothing), Suspend
	})

	t.Define("core.sleep", func(host Host, args []*values.Value) (*values.Value, Disposition) {
		var d time.Duration
		switch args[0].Type {
		case values.TypeInt:
			d = time.Duration(args[0].Int64) * time.Second
		case values.TypeFloat:
			d = time.Duration(args[0].Flt * float64(time.Second))
		}
		host.Sleep(d)
		return values.NewAtom(values.AtomNothing), Suspend
	})

	t.Define("int.add", numericBinOp("int.add", values.AddInt64, func(a, b float64) float64 { return a + b }))
	t.Define("int.sub", numericBinOp("int.sub", values.SubInt64, func(a, b float64) float64 { return a - b }))
	t.Define("int.mul", numericBinOp("int.mul", values.MulInt64, func(a, b float64) float64 { return a * b }))

	t.Define("int.div", func(host Host, args []*values.Value) (*values.Value, Disposition) {
		a, b := args[0], args[1]
		if a.Type == values.TypeInt && b.Type == values.TypeInt {
			if b.Int64 == 0 {
				return values.NewString("int.div: division by zero"), Throw
			}
			if a.Int64 == math.MinInt64 && b.Int64 == -1 {
				return host.NewOverflowError(), Throw
			}
			return values.NewInt(a.Int64 / b.Int64), Return
		}
		af, aok := values.AsFloat(a)
		bf, bok := values.AsFloat(b)
		if !aok || !bok {
			return values.NewString("int.div: operand is not numeric"), Throw
		}
		if bf == 0 {
			return values.NewString("int.div: division by zero"), Throw
		}
		return values.NewFloat(af / bf), Return
	})

	t.Define("int.mod", func(host Host, args []*values.Value) (*values.Value, Disposition) {
		a, b := args[0], args[1]
		if a.Type != values.TypeInt || b.Type != values.TypeInt {
			return values.NewString("int.mod: operands must be integers"), Throw
		}
		if b.Int64 == 0 {
			return values.NewString("int.mod: division by zero"), Throw
		}
		return values.NewInt(a.Int64 % b.Int64), Return
	})

	t.Define("fiber.await", func(host Host, args []*values.Value) (*values.Value, Disposition) {
		if len(args) == 0 || args[0].Type != values.TypeFiber {
			return values.NewString("fiber.await: not a fiber"), Throw
		}
		if result, done := host.AwaitFiber(args[0]); done {
			return result, Return
		}
		return values.NewAtom(values.AtomNothing), Suspend
	})
}

// numericBinOp builds a native for one of the checked integer/float
// arithmetic operators (§6's "integer/float arithmetic" minimum native
// surface): both-int operands use the checked intOp, raising OVERFLOW_ERROR
// (§7) on overflow; any float operand coerces both sides to float64 and
// follows IEEE-754, matching the int/float comparison coercion rule §4.1
// already uses for EQUAL.
func numericBinOp(name string, intOp func(a, b int64) (int64, bool), floatOp func(a, b float64) float64) Func {
	return func(host Host, args []*values.Value) (*values.Value, Disposition) {
		a, b := args[0], args[1]
		if a.Type == values.TypeInt && b.Type == values.TypeInt {
			result, ok := intOp(a.Int64, b.Int64)
			if !ok {
				return host.NewOverflowError(), Throw
			}
			return values.NewInt(result), Return
		}
		af, aok := values.AsFloat(a)
		bf, bok := values.AsFloat(b)
		if !aok || !bok {
			return values.NewString(name + ": operand is not numeric"), Throw
		}
		return values.NewFloat(floatOp(af, bf)), Return
	}
}
