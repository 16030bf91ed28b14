// Package messages defines the control-plane messages the API and
// socket listeners hand to the task handler (spec.md §4.5). The handler
// drains at most one per tick from a buffered channel, keeping the tick
// loop single-threaded.
package messages

// Kind identifies which control operation a Message carries.
type Kind int

const (
	KindPause Kind = iota
	KindStart
	KindKill
	KindSend
	KindReset
)

// Message is the union of every control operation a client can submit.
// Only the fields relevant to Kind are populated; the rest are zero.
type Message struct {
	Kind Kind

	// TaskIDs selects specific tasks for Pause/Start/Kill. When it is
	// empty, the whole group named by Group is targeted; when Group is
	// also empty, Kill targets every alive task and Pause/Start act on
	// the whole daemon.
	TaskIDs []int
	Group   string

	// Force bypasses the dependency/slot checks on Start (spec.md §4.5:
	// force-start).
	Force bool

	// SendTaskID and Input are used only for KindSend: Input is written
	// to the running child's stdin verbatim.
	SendTaskID int
	Input      string

	// Reply, if non-nil, receives the outcome of processing this
	// message. Callers that don't need to wait for completion may leave
	// it nil.
	Reply chan error
}

// Queue is the single-consumer channel the handler reads from. It is
// buffered so that a burst of API requests doesn't block their HTTP
// handlers on the 100ms tick cadence.
type Queue chan Message

// NewQueue creates a Queue with the given buffer size.
func NewQueue(buffer int) Queue {
	return make(Queue, buffer)
}

// Reply sends err on msg.Reply if the caller registered one, without
// blocking if nobody is listening.
func Reply(msg Message, err error) {
	if msg.Reply == nil {
		return
	}
	select {
	case msg.Reply <- err:
	default:
	}
}
