package channel

import "sync/atomic"

// OpState is the lifecycle state of a Channel.
type OpState uint32

const (
	OpenedState OpState = iota
	ClosingState
	ClosedState
)

func (s OpState) String() string {
	switch s {
	case OpenedState:
		return "Opened"
	case ClosingState:
		return "Closing"
	case ClosedState:
		return "Closed"
	default:
		return "Unknown"
	}
}

// atomicOpState holds an OpState with compare-and-swap transitions.
type atomicOpState struct {
	state atomic.Uint32
}

func (st *atomicOpState) Get() OpState {
	return OpState(st.state.Load())
}

func (st *atomicOpState) IsOpened() bool {
	return st.Get() == OpenedState
}

func (st *atomicOpState) IsClosed() bool {
	return st.Get() == ClosedState
}

// ToClosing moves an opened channel to closing. It returns false if the channel
// was already closing or closed.
func (st *atomicOpState) ToClosing() bool {
	return st.state.CompareAndSwap(uint32(OpenedState), uint32(ClosingState))
}

// ToClosed moves a closing channel to closed.
func (st *atomicOpState) ToClosed() bool {
	if st.IsClosed() {
		return true
	}

	return st.state.CompareAndSwap(uint32(ClosingState), uint32(ClosedState))
}

// directions holds the monotonic closed flags of both directions.
type directions struct {
	inboundClosed  atomic.Bool
	outboundClosed atomic.Bool
}

func (d *directions) closeInbound()  { d.inboundClosed.Store(true) }
func (d *directions) closeOutbound() { d.outboundClosed.Store(true) }
func (d *directions) isInboundClosed() bool {
	return d.inboundClosed.Load()
}

func (d *directions) isOutboundClosed() bool {
	return d.outboundClosed.Load()
}
