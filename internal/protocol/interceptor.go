package protocol

import (
	"context"
	"sync"
	"sync/atomic"
)

// SenderInterceptor hooks into device message sends.
//
// PreSend runs before a message is encoded and handed to the transport and
// may replace the message. Returning a nil message with a nil error
// suppresses the send; no later interceptor runs and nothing is published.
// AfterSent runs once the send completed and may
// replace the device reply (nil when the send expects no reply).
type SenderInterceptor interface {
	PreSend(ctx context.Context, device DeviceOperator, msg *Message) (*Message, error)
	AfterSent(ctx context.Context, device DeviceOperator, msg *Message, reply *Message) (*Message, error)
}

// NoopInterceptor passes messages through unchanged.
type NoopInterceptor struct{}

// PreSend implements SenderInterceptor.
func (NoopInterceptor) PreSend(_ context.Context, _ DeviceOperator, msg *Message) (*Message, error) {
	return msg, nil
}

// AfterSent implements SenderInterceptor.
func (NoopInterceptor) AfterSent(_ context.Context, _ DeviceOperator, _ *Message, reply *Message) (*Message, error) {
	return reply, nil
}

// CompositeInterceptor invokes an ordered list of interceptors as one.
//
// Members run in the order they were added. Each member receives the output
// of the previous one; the first error stops the chain and is returned.
// A member that suppresses a send (nil message from PreSend) ends PreSend.
//
// Thread Safety: Add may be called while the composite is being invoked.
// An invocation uses the member list as it was when the invocation started.
type CompositeInterceptor struct {
	mu      sync.Mutex // serialises Add
	members atomic.Pointer[[]SenderInterceptor]
}

// NewCompositeInterceptor creates a composite with the given initial members.
func NewCompositeInterceptor(members ...SenderInterceptor) *CompositeInterceptor {
	c := &CompositeInterceptor{}
	list := make([]SenderInterceptor, 0, len(members))
	for _, m := range members {
		if m != nil {
			list = append(list, m)
		}
	}
	c.members.Store(&list)
	return c
}

// Add appends an interceptor. Nil interceptors are ignored.
func (c *CompositeInterceptor) Add(i SenderInterceptor) {
	if i == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.snapshot()
	next := make([]SenderInterceptor, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, i)
	c.members.Store(&next)
}

// Members returns a copy of the member list in invocation order.
func (c *CompositeInterceptor) Members() []SenderInterceptor {
	cur := c.snapshot()
	out := make([]SenderInterceptor, len(cur))
	copy(out, cur)
	return out
}

// Len returns the number of members.
func (c *CompositeInterceptor) Len() int {
	return len(c.snapshot())
}

func (c *CompositeInterceptor) snapshot() []SenderInterceptor {
	if p := c.members.Load(); p != nil {
		return *p
	}
	return nil
}

// PreSend implements SenderInterceptor.
func (c *CompositeInterceptor) PreSend(ctx context.Context, device DeviceOperator, msg *Message) (*Message, error) {
	var err error
	for _, m := range c.snapshot() {
		if msg, err = m.PreSend(ctx, device, msg); err != nil {
			return nil, err
		}
		if msg == nil {
			return nil, nil
		}
	}
	return msg, nil
}

// AfterSent implements SenderInterceptor.
func (c *CompositeInterceptor) AfterSent(ctx context.Context, device DeviceOperator, msg *Message, reply *Message) (*Message, error) {
	var err error
	for _, m := range c.snapshot() {
		if reply, err = m.AfterSent(ctx, device, msg, reply); err != nil {
			return nil, err
		}
	}
	return reply, nil
}

// interceptorRef boxes the current interceptor for atomic swaps.
type interceptorRef struct {
	interceptor SenderInterceptor
}

// AddSenderInterceptor registers an interceptor for device message sends.
//
// The first interceptor is stored as is. The second turns the slot into a
// CompositeInterceptor holding both; later ones are appended to it.
// Registration order is invocation order. Nil interceptors are ignored.
func (s *Support) AddSenderInterceptor(i SenderInterceptor) {
	if i == nil {
		return
	}

	s.interceptorMu.Lock()
	defer s.interceptorMu.Unlock()

	var current SenderInterceptor
	if ref := s.interceptor.Load(); ref != nil {
		current = ref.interceptor
	}

	switch cur := current.(type) {
	case nil:
		s.interceptor.Store(&interceptorRef{interceptor: i})
	case *CompositeInterceptor:
		cur.Add(i)
	default:
		s.interceptor.Store(&interceptorRef{interceptor: NewCompositeInterceptor(cur, i)})
	}

	s.logger.Debug("sender interceptor registered", "protocol", s.id)
}

// SenderInterceptor returns the effective interceptor. It never blocks and
// returns NoopInterceptor when nothing has been registered.
func (s *Support) SenderInterceptor() SenderInterceptor {
	if ref := s.interceptor.Load(); ref != nil {
		return ref.interceptor
	}
	return NoopInterceptor{}
}
