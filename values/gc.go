package values

// GCHeader is embedded in every heap-allocated Magpie object so the
// collector can stamp reachability during a trace without reflection.
type GCHeader struct {
	ID  uint64
	Gen uint64
}

func (h *GCHeader) Header() *GCHeader { return h }

// Reacher is implemented by every heap object variant. Reach must invoke
// mark on every *Value it directly holds, mirroring Managed::reach() in the
// original C++ runtime.
type Reacher interface {
	Reach(mark func(*Value))
	Header() *GCHeader
}

// HeapData returns the Reacher payload of a heap-variant Value, or nil for
// primitive variants.
func (v *Value) HeapData() Reacher {
	if v == nil || v.Data == nil {
		return nil
	}
	r, _ := v.Data.(Reacher)
	return r
}
