package peer

import (
	"context"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/looplab/fsm"
)

// State is a peer's connection state. States only move forward, and any
// state may move to StateShutdown, which is terminal.
type State string

const (
	StateInit      State = "Init"
	StateConnect   State = "Connect"
	StateListening State = "Listening"
	StateHandshake State = "Handshake"
	StateVerify    State = "Verify"
	StateSubscribe State = "Subscribe"
	StateRun       State = "Run"
	StateShutdown  State = "Shutdown"
)

var stateRank = map[State]int{
	StateInit:      0,
	StateConnect:   1,
	StateListening: 2,
	StateHandshake: 3,
	StateVerify:    4,
	StateSubscribe: 5,
	StateRun:       6,
	StateShutdown:  7,
}

// Rank orders states along the connection lifecycle.
func (s State) Rank() int {
	if r, ok := stateRank[s]; ok {
		return r
	}

	return -1
}

func (s State) String() string {
	return string(s)
}

// Event names driving the state machine.
const (
	EventConnect   = "connect"
	EventListen    = "listen"
	EventHandshake = "handshake"
	EventVerify    = "verify"
	EventSubscribe = "subscribe"
	EventRun       = "run"
	EventShutdown  = "shutdown"
)

// NewStateMachine builds the connection state machine. The states are:
// - Init
// - Connect
// - Listening (inbound only)
// - Handshake
// - Verify
// - Subscribe
// - Run
// - Shutdown
// Every event moves strictly forward and no event leaves Shutdown.
func NewStateMachine(opts ...func(*fsm.FSM)) *fsm.FSM {
	finiteStateMachine := fsm.NewFSM(
		StateInit.String(),
		fsm.Events{
			{
				Name: EventConnect,
				Src:  []string{StateInit.String()},
				Dst:  StateConnect.String(),
			},
			{
				Name: EventListen,
				Src:  []string{StateConnect.String()},
				Dst:  StateListening.String(),
			},
			{
				Name: EventHandshake,
				Src: []string{
					StateConnect.String(),
					StateListening.String(),
				},
				Dst: StateHandshake.String(),
			},
			{
				Name: EventVerify,
				Src:  []string{StateHandshake.String()},
				Dst:  StateVerify.String(),
			},
			{
				Name: EventSubscribe,
				Src:  []string{StateVerify.String()},
				Dst:  StateSubscribe.String(),
			},
			{
				Name: EventRun,
				Src:  []string{StateSubscribe.String()},
				Dst:  StateRun.String(),
			},
			{
				Name: EventShutdown,
				Src: []string{
					StateInit.String(),
					StateConnect.String(),
					StateListening.String(),
					StateHandshake.String(),
					StateVerify.String(),
					StateSubscribe.String(),
					StateRun.String(),
				},
				Dst: StateShutdown.String(),
			},
		},
		fsm.Callbacks{},
	)

	for _, opt := range opts {
		opt(finiteStateMachine)
	}

	return finiteStateMachine
}

// transition fires event on the state machine. A refused transition is an
// ERR_STATE_ERROR and leaves the state unchanged.
func transition(ctx context.Context, sm *fsm.FSM, event string) error {
	from := sm.Current()

	if err := sm.Event(ctx, event); err != nil {
		return errors.NewStateError("cannot %s from %s", event, from, err)
	}

	return nil
}
