// Package push implements the reconnecting socket client that feeds
// server-side change events into the local stores.
//
// Connection management is an explicit state machine: Transition is a
// pure function from (Machine, Event) to the next Machine plus the side
// effects the Client must perform. The Client executes effects on a
// single event loop driven by a Clock.
package push

import "time"

// State is the connection state of the push transport.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

// States lists every state, in declaration order.
var States = []State{Disconnected, Connecting, Connected, Reconnecting}

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Machine is the transport's state plus the reconnect attempt counter.
type Machine struct {
	State    State
	Attempts int
}

// Policy bounds reconnection.
type Policy struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
}

// DefaultPolicy retries after 1s, 2s, 4s, 8s, 16s and then gives up.
var DefaultPolicy = Policy{Base: time.Second, Cap: 30 * time.Second, MaxAttempts: 5}

// Delay returns min(Base * 2^attempts, Cap).
func (p Policy) Delay(attempts int) time.Duration {
	d := p.Base
	for i := 0; i < attempts; i++ {
		if d >= p.Cap {
			return p.Cap
		}
		d *= 2
	}
	return min(d, p.Cap)
}

// Event is the closed set of inputs to the state machine.
type Event interface {
	event()
}

// Connect is a request to open the transport.
type Connect struct{}

// Opened reports a successful handshake.
type Opened struct{}

// Closed reports that the socket closed or a dial failed.
type Closed struct {
	Err error
}

// RetryDue fires when a scheduled reconnect delay elapses.
type RetryDue struct{}

// Disconnect is a request to stop the transport for good.
type Disconnect struct{}

func (Connect) event()    {}
func (Opened) event()     {}
func (Closed) event()     {}
func (RetryDue) event()   {}
func (Disconnect) event() {}

// Effect is the closed set of actions the Client performs after a
// transition.
type Effect interface {
	effect()
}

// Dial opens a new connection.
type Dial struct{}

// StartHeartbeat begins sending pings at the heartbeat interval.
type StartHeartbeat struct{}

// StopHeartbeat stops the ping timer.
type StopHeartbeat struct{}

// ScheduleRetry arms the reconnect timer.
type ScheduleRetry struct {
	Delay time.Duration
}

// CancelRetry disarms the reconnect timer.
type CancelRetry struct{}

// CloseConn closes the current connection.
type CloseConn struct{}

func (Dial) effect()           {}
func (StartHeartbeat) effect() {}
func (StopHeartbeat) effect()  {}
func (ScheduleRetry) effect()  {}
func (CancelRetry) effect()    {}
func (CloseConn) effect()      {}

// Transition computes the next machine and its effects. Events that do
// not apply to the current state are ignored.
func Transition(p Policy, m Machine, ev Event) (Machine, []Effect) {
	switch ev.(type) {
	case Connect:
		if m.State != Disconnected {
			return m, nil
		}
		return Machine{State: Connecting}, []Effect{Dial{}}

	case Opened:
		if m.State != Connecting {
			return m, nil
		}
		return Machine{State: Connected}, []Effect{StartHeartbeat{}}

	case Closed:
		var effects []Effect
		switch m.State {
		case Connected:
			effects = append(effects, StopHeartbeat{}, CloseConn{})
		case Connecting:
			effects = append(effects, CloseConn{})
		default:
			return m, nil
		}
		if m.Attempts >= p.MaxAttempts {
			return Machine{State: Disconnected}, effects
		}
		effects = append(effects, ScheduleRetry{Delay: p.Delay(m.Attempts)})
		return Machine{State: Reconnecting, Attempts: m.Attempts + 1}, effects

	case RetryDue:
		if m.State != Reconnecting {
			return m, nil
		}
		return Machine{State: Connecting, Attempts: m.Attempts}, []Effect{Dial{}}

	case Disconnect:
		switch m.State {
		case Connected:
			return Machine{State: Disconnected}, []Effect{StopHeartbeat{}, CloseConn{}}
		case Connecting:
			return Machine{State: Disconnected}, []Effect{CloseConn{}}
		case Reconnecting:
			return Machine{State: Disconnected}, []Effect{CancelRetry{}}
		}
	}
	return m, nil
}
