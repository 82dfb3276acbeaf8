package native

// RegisterNet exists so the net namespace has a registration home, matching
// the original's defineNetNatives(*this) being called from VM::VM() even
// when it binds nothing. Non-goals exclude network I/O features, so no
// native is bound here yet; future net.* natives register through t.
func RegisterNet(t *Table) {}
