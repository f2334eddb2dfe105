package rabbitmq

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type pendingConfirm struct {
	done chan struct{}
	ack  bool
}

func newPendingConfirm() *pendingConfirm { return &pendingConfirm{done: make(chan struct{})} }

func (p *pendingConfirm) resolve(ack bool) {
	p.ack = ack
	close(p.done)
}

func (p *pendingConfirm) WaitContext(ctx context.Context) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-p.done:
	}
	return p.ack, nil
}

func TestAwaitConfirm_TimedOutPublishDoesNotLeakIntoNext(t *testing.T) {
	slow := newPendingConfirm()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, awaitConfirm(ctx, slow), context.DeadlineExceeded)

	// the broker nacks the first message only after the second was sent
	next := newPendingConfirm()
	go func() {
		slow.resolve(false)
		next.resolve(true)
	}()
	assert.NoError(t, awaitConfirm(context.Background(), next))
}

func TestAwaitConfirm_Nack(t *testing.T) {
	conf := newPendingConfirm()
	conf.resolve(false)
	assert.ErrorIs(t, awaitConfirm(context.Background(), conf), ErrNacked)

	conf = newPendingConfirm()
	conf.resolve(true)
	assert.NoError(t, awaitConfirm(context.Background(), conf))
}
