package sendq

import "context"

// Transport puts one message on the wire. It is the boundary to the
// encryption and networking layers and is never invoked inside the enqueue
// path.
type Transport interface {
	// Send transmits a single message and returns an error on failure.
	Send(ctx context.Context, msg Message) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, msg Message) error

// Send implements Transport.
func (fn TransportFunc) Send(ctx context.Context, msg Message) error {
	return fn(ctx, msg)
}
