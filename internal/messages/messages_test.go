package messages

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewQueue_Buffered(t *testing.T) {
	q := NewQueue(2)
	q <- Message{Kind: KindPause}
	q <- Message{Kind: KindStart}
	assert.Len(t, q, 2)
}

func TestReply_DeliversWhenListening(t *testing.T) {
	reply := make(chan error, 1)
	msg := Message{Kind: KindKill, Reply: reply}

	Reply(msg, errors.New("boom"))

	select {
	case err := <-reply:
		assert.EqualError(t, err, "boom")
	default:
		t.Fatal("expected reply to be delivered")
	}
}

func TestReply_NilReplyIsNoop(t *testing.T) {
	msg := Message{Kind: KindReset}
	assert.NotPanics(t, func() { Reply(msg, nil) })
}

func TestReply_DoesNotBlockWhenUnbuffredAndUnread(t *testing.T) {
	reply := make(chan error)
	msg := Message{Kind: KindSend, Reply: reply}
	assert.NotPanics(t, func() { Reply(msg, nil) })
}
