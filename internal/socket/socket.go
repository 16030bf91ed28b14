// Package socket implements the local control-plane transport described
// in SPEC_FULL.md's supplement to spec.md: a Unix domain socket at
// <pueue_directory>/taskd.sock accepting newline-delimited JSON control
// messages. It is the minimal concrete stand-in for pueue_lib's
// network_blocking/socket wire protocol (TLS-over-TCP or a Unix socket,
// selected by platform) that spec.md leaves out of scope; every command
// it accepts lands on the same messages.Queue the HTTP control-plane
// uses, so the daemon is exercisable without a generated HTTP client.
package socket

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/taskd-project/taskd/internal/logger"
	"github.com/taskd-project/taskd/internal/messages"
	"github.com/taskd-project/taskd/internal/state"
	"github.com/taskd-project/taskd/internal/task"
)

// Path returns the socket path for a given pueue directory.
func Path(pueueDirectory string) string {
	return filepath.Join(pueueDirectory, "taskd.sock")
}

// controlTimeout bounds how long a socket command waits for the handler
// tick loop to acknowledge it, matching the HTTP control-plane's bound.
const controlTimeout = 2 * time.Second

// Request is one line of client input. Kind selects which fields apply,
// mirroring pueue's own client command vocabulary (pause, start, kill,
// send, reset, submit).
type Request struct {
	Kind string `json:"kind"`

	// submit
	Command      string     `json:"command,omitempty"`
	Path         string     `json:"path,omitempty"`
	Group        string     `json:"group,omitempty"`
	Dependencies []int      `json:"dependencies,omitempty"`
	EnqueueAt    *time.Time `json:"enqueue_at,omitempty"`
	Stashed      bool       `json:"stashed,omitempty"`

	// pause/start/kill
	TaskIDs []int `json:"task_ids,omitempty"`
	Force   bool  `json:"force,omitempty"`

	// send
	SendTaskID int    `json:"send_task_id,omitempty"`
	Input      string `json:"input,omitempty"`
}

// Response is one line of reply, written after a Request is processed.
type Response struct {
	OK    bool         `json:"ok"`
	Error string       `json:"error,omitempty"`
	Task  *task.Task   `json:"task,omitempty"`
	Tasks []*task.Task `json:"tasks,omitempty"`
}

// Listener accepts local clients and feeds their commands into the
// handler's control message queue.
type Listener struct {
	path  string
	state *state.State
	queue messages.Queue

	ln net.Listener
	wg sync.WaitGroup
}

// New creates a Listener bound to <pueueDirectory>/taskd.sock. Any stale
// socket file left by a crashed previous daemon is removed first.
func New(pueueDirectory string, s *state.State, queue messages.Queue) (*Listener, error) {
	path := Path(pueueDirectory)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}

	return &Listener{path: path, state: s, queue: queue, ln: ln}, nil
}

// Serve accepts connections until ctx is cancelled or the listener is
// closed. It never returns an error for a clean shutdown.
func (l *Listener) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		l.ln.Close()
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				l.wg.Wait()
				return nil
			}
			return err
		}
		l.wg.Add(1)
		go l.handleConn(conn)
	}
}

// Close removes the socket file from disk.
func (l *Listener) Close() error {
	err := l.ln.Close()
	os.Remove(l.path)
	return err
}

func (l *Listener) handleConn(conn net.Conn) {
	defer l.wg.Done()
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			enc.Encode(Response{OK: false, Error: "invalid request: " + err.Error()})
			continue
		}

		resp := l.handle(req)
		if err := enc.Encode(resp); err != nil {
			logger.Warn().Err(err).Msg("failed to write socket response")
			return
		}
	}
}

func (l *Listener) handle(req Request) Response {
	switch req.Kind {
	case "submit":
		return l.handleSubmit(req)
	case "pause":
		return l.send(messages.Message{Kind: messages.KindPause, TaskIDs: req.TaskIDs, Group: req.Group})
	case "start":
		return l.send(messages.Message{Kind: messages.KindStart, TaskIDs: req.TaskIDs, Group: req.Group, Force: req.Force})
	case "kill":
		return l.send(messages.Message{Kind: messages.KindKill, TaskIDs: req.TaskIDs, Group: req.Group})
	case "send":
		return l.send(messages.Message{Kind: messages.KindSend, SendTaskID: req.SendTaskID, Input: req.Input})
	case "reset":
		return l.send(messages.Message{Kind: messages.KindReset})
	case "list":
		return Response{OK: true, Tasks: l.state.All()}
	default:
		return Response{OK: false, Error: "unknown command kind: " + req.Kind}
	}
}

func (l *Listener) handleSubmit(req Request) Response {
	if req.Command == "" {
		return Response{OK: false, Error: "command is required"}
	}

	t := task.New(-1, req.Command, req.Path)
	t.Group = req.Group
	t.Dependencies = req.Dependencies
	if req.EnqueueAt != nil {
		t.EnqueueAt = req.EnqueueAt
		t.Status = task.StatusStashed
	} else if req.Stashed {
		t.Status = task.StatusStashed
	}

	id := l.state.Add(t)
	created, _ := l.state.Get(id)
	return Response{OK: true, Task: created}
}

func (l *Listener) send(msg messages.Message) Response {
	reply := make(chan error, 1)
	msg.Reply = reply

	select {
	case l.queue <- msg:
	case <-time.After(controlTimeout):
		return Response{OK: false, Error: "timed out submitting control message"}
	}

	select {
	case err := <-reply:
		if err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		return Response{OK: true}
	case <-time.After(controlTimeout):
		return Response{OK: false, Error: "timed out waiting for handler"}
	}
}
