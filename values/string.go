package values

// String is an immutable byte sequence with cached length and content
// equality (§3). Concatenation and substring always allocate a new String.
type String struct {
	GCHeader
	Content string
}

func NewString(s string) *Value {
	return &Value{Type: TypeString, Data: &String{Content: s}}
}

func (s *String) Reach(mark func(*Value)) {}

func (s *String) Len() int { return len(s.Content) }

// ByteAt returns the byte at index i.
func (s *String) ByteAt(i int) (byte, bool) {
	if i < 0 || i >= len(s.Content) {
		return 0, false
	}
	return s.Content[i], true
}

// Slice returns the half-open substring [start, end).
func (s *String) Slice(start, end int) (*String, bool) {
	if start < 0 || end > len(s.Content) || start > end {
		return nil, false
	}
	return &String{Content: s.Content[start:end]}, true
}

func Concat(a, b *String) *String {
	return &String{Content: a.Content + b.Content}
}

// WithByteReplaced returns a copy of s with the byte at index i replaced.
func (s *String) WithByteReplaced(i int, b byte) (*String, bool) {
	if i < 0 || i >= len(s.Content) {
		return nil, false
	}
	buf := []byte(s.Content)
	buf[i] = b
	return &String{Content: string(buf)}, true
}
