package transport

// Receiver consumes inbound traffic from a transport owner. The engine
// satisfies it directly: every received message is handed to HandleRaw
// in delivery order, and HandleTransportClosed fires once when the
// connection is gone.
type Receiver interface {
	HandleRaw(raw []byte)
	HandleTransportClosed()
}
