package client

import (
	"context"

	"github.com/looplab/fsm"
	log "github.com/sirupsen/logrus"
)

// State is the connection state of a Client.
type State string

const (
	// StateDisconnected is the initial state, and the state after the
	// connection closed or the server rejected the connect request.
	StateDisconnected State = "disconnected"
	// StateConnecting means a CONNECT was sent and the CONNACK is pending.
	StateConnecting State = "connecting"
	// StateConnected means the server accepted the connection.
	StateConnected State = "connected"
)

const (
	eventConnect = "connect"
	eventConnAck = "connack"
	eventReject  = "reject"
	eventClose   = "close"
)

func newStateMachine(logger log.FieldLogger, metrics *Metrics) *fsm.FSM {
	disconnected := string(StateDisconnected)
	connecting := string(StateConnecting)
	connected := string(StateConnected)
	return fsm.NewFSM(
		disconnected,
		fsm.Events{
			{
				Name: eventConnect,
				Src:  []string{disconnected, connected},
				Dst:  connecting,
			},
			{Name: eventConnAck, Src: []string{connecting}, Dst: connected},
			{Name: eventReject, Src: []string{connecting}, Dst: disconnected},
			{
				Name: eventClose,
				Src:  []string{connecting, connected},
				Dst:  disconnected,
			},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.Debugf("session: %s -> %s (%s)",
					e.Src, e.Dst, e.Event)
				metrics.setConnected(e.Dst == connected)
			},
		},
	)
}

// transition fires event on the session state machine. Events that are not
// valid in the current state are ignored.
func (c *Client) transition(event string) {
	err := c.state.Event(context.Background(), event)
	if err != nil {
		c.log.Debugf("session: ignoring %s event: %s", event, err)
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Current())
}
