package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"food-marketplace/internal/common/logger"
	"food-marketplace/internal/domain"
)

type recordingProcessor struct {
	mu      sync.Mutex
	batches [][]Record
}

func (p *recordingProcessor) Process(_ context.Context, batch []Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, append([]Record(nil), batch...))
	return nil
}

func (p *recordingProcessor) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func rec(id string) Record {
	return Record{OrderID: id, Command: "update_status", NewStatus: domain.StatusAccepted, Timestamp: time.Now()}
}

func TestWorkerPool_FlushesOnBatchSize(t *testing.T) {
	proc := &recordingProcessor{}
	pool := NewWorkerPool(PoolConfig{Workers: 1, BatchSize: 3, Timeout: time.Hour, ChannelSize: 10}, logger.Discard(), proc)
	pool.Start(context.Background())
	defer pool.Shutdown()

	for _, id := range []string{"a", "b", "c"} {
		pool.Log(rec(id))
	}
	assert.Eventually(t, func() bool { return proc.total() == 3 }, time.Second, 5*time.Millisecond)
}

func TestWorkerPool_FlushesOnTimeout(t *testing.T) {
	proc := &recordingProcessor{}
	pool := NewWorkerPool(PoolConfig{Workers: 1, BatchSize: 100, Timeout: 20 * time.Millisecond, ChannelSize: 10}, logger.Discard(), proc)
	pool.Start(context.Background())
	defer pool.Shutdown()

	pool.Log(rec("a"))
	assert.Eventually(t, func() bool { return proc.total() == 1 }, time.Second, 5*time.Millisecond)
}

func TestWorkerPool_ShutdownFlushesPending(t *testing.T) {
	proc := &recordingProcessor{}
	pool := NewWorkerPool(PoolConfig{Workers: 2, BatchSize: 100, Timeout: time.Hour, ChannelSize: 10}, logger.Discard(), proc)
	pool.Start(context.Background())

	pool.Log(rec("a"))
	pool.Log(rec("b"))
	pool.Shutdown()

	assert.Equal(t, 2, proc.total())
}

func TestWorkerPool_LogDropsWhenFull(t *testing.T) {
	proc := &recordingProcessor{}
	// not started: nothing drains the channel
	pool := NewWorkerPool(PoolConfig{BatchSize: 1, ChannelSize: 1}, logger.Discard(), proc)

	done := make(chan struct{})
	go func() {
		pool.Log(rec("a"))
		pool.Log(rec("b"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Log blocked on a full buffer")
	}
	assert.Len(t, pool.inputCh, 1)
}

func TestKafkaProcessor_KeysByOrder(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	for _, id := range []string{"o-1", "o-2"} {
		id := id
		producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
			var got Record
			if err := json.Unmarshal(val, &got); err != nil {
				return err
			}
			if got.OrderID != id {
				return errors.New("unexpected order " + got.OrderID)
			}
			return nil
		})
	}

	p := NewKafkaProcessor(producer, "order-audit")
	require.NoError(t, p.Process(context.Background(), []Record{rec("o-1"), rec("o-2")}))
	require.NoError(t, p.Close())
}

func TestKafkaProcessor_ReturnsSendError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewKafkaProcessor(producer, "order-audit")
	err := p.Process(context.Background(), []Record{rec("o-1")})
	assert.Error(t, err)
	require.NoError(t, p.Close())
}
