package sched

import "github.com/wudi/magpie/values"

type sendWaiter struct {
	waiter Waiter
	value  *values.Value
}

// Channel is a synchronous rendezvous mailbox (§4.6): at any moment only one
// side has parked waiters, since a send and a receive pair off immediately
// whenever both are present. Fairness is FIFO within each side.
type Channel struct {
	values.GCHeader
	senders   []sendWaiter
	receivers []Waiter
}

func NewChannel() *Channel { return &Channel{} }

func NewChannelValue() *values.Value {
	return &values.Value{Type: values.TypeChannel, Data: NewChannel()}
}

func (c *Channel) Reach(mark func(*values.Value)) {
	for _, sw := range c.senders {
		mark(sw.value)
	}
}

// Send implements §4.6's send(from, value). If a receiver is already
// parked, it is resumed immediately with value and ok is true (the caller
// does not need to park `from`). Otherwise from's Waiter is queued and ok is
// false, telling the caller to park the current fiber as WAITING_SEND.
func (c *Channel) Send(from Waiter, value *values.Value) (ok bool) {
	if len(c.receivers) > 0 {
		r := c.receivers[0]
		c.receivers = c.receivers[1:]
		if r.Resume != nil {
			r.Resume(value)
		}
		return true
	}
	c.senders = append(c.senders, sendWaiter{waiter: from, value: value})
	return false
}

// Receive implements §4.6's receive(by). If a sender is already parked, its
// value is consumed immediately (ok=true) and the sender is re-readied.
// Otherwise by's Waiter is queued and ok is false, telling the caller to
// park the current fiber as WAITING_RECEIVE.
func (c *Channel) Receive(by Waiter) (value *values.Value, ok bool) {
	if len(c.senders) > 0 {
		sw := c.senders[0]
		c.senders = c.senders[1:]
		if sw.waiter.Resume != nil {
			sw.waiter.Resume(nil)
		}
		return sw.value, true
	}
	c.receivers = append(c.receivers, by)
	return nil, false
}

// AsChannel extracts the *Channel payload from a TypeChannel Value.
func AsChannel(v *values.Value) (*Channel, bool) {
	if v == nil || v.Type != values.TypeChannel {
		return nil, false
	}
	ch, ok := v.Data.(*Channel)
	return ch, ok
}
