package audit

import (
	"context"
	"sync"
	"time"

	"food-marketplace/internal/common/logger"
	"food-marketplace/internal/domain"
)

// Record is one committed change to an order.
type Record struct {
	Timestamp   time.Time          `json:"timestamp"`
	OrderID     string             `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	Command     string             `json:"command"`
	OldStatus   domain.OrderStatus `json:"old_status,omitempty"`
	NewStatus   domain.OrderStatus `json:"new_status"`
	ActorID     string             `json:"actor_id"`
	ActorRole   domain.Role        `json:"actor_role"`
	PartnerID   string             `json:"partner_id,omitempty"`
}

type PoolConfig struct {
	Workers     int
	BatchSize   int
	Timeout     time.Duration
	ChannelSize int
}

type Processor interface {
	Process(ctx context.Context, batch []Record) error
}

// Logger is what command handlers see of the pool.
type Logger interface {
	Log(rec Record)
}

// LogProcessor writes each record as a structured log line.
type LogProcessor struct {
	log *logger.Logger
}

func NewLogProcessor(lg *logger.Logger) *LogProcessor {
	return &LogProcessor{log: lg}
}

func (p *LogProcessor) Process(_ context.Context, batch []Record) error {
	for _, rec := range batch {
		p.log.Info("order_audit", map[string]any{
			"order_id":     rec.OrderID,
			"order_number": rec.OrderNumber,
			"command":      rec.Command,
			"old_status":   rec.OldStatus,
			"new_status":   rec.NewStatus,
			"actor_id":     rec.ActorID,
			"actor_role":   rec.ActorRole,
		})
	}
	return nil
}

// WorkerPool batches records and hands each batch to every processor.
type WorkerPool struct {
	inputCh    chan Record
	processors []Processor
	batchSize  int
	timeout    time.Duration
	workers    int
	log        *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorkerPool(cfg PoolConfig, lg *logger.Logger, processors ...Processor) *WorkerPool {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &WorkerPool{
		inputCh:    make(chan Record, cfg.ChannelSize),
		processors: processors,
		batchSize:  cfg.BatchSize,
		timeout:    cfg.Timeout,
		workers:    cfg.Workers,
		log:        lg,
	}
}

func (p *WorkerPool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.worker(ctx)
		}()
	}
}

func (p *WorkerPool) worker(ctx context.Context) {
	var batch []Record
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			batch = p.drain(batch)
			if len(batch) > 0 {
				p.processBatch(batch)
			}
			return
		case rec := <-p.inputCh:
			batch = append(batch, rec)
			if len(batch) >= p.batchSize {
				if !timer.Stop() {
					<-timer.C
				}
				p.processBatch(batch)
				batch = nil
				timer.Reset(p.timeout)
			}
		case <-timer.C:
			if len(batch) > 0 {
				p.processBatch(batch)
				batch = nil
			}
			timer.Reset(p.timeout)
		}
	}
}

// drain picks up whatever is still buffered at shutdown.
func (p *WorkerPool) drain(batch []Record) []Record {
	for {
		select {
		case rec := <-p.inputCh:
			batch = append(batch, rec)
		default:
			return batch
		}
	}
}

func (p *WorkerPool) processBatch(batch []Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, proc := range p.processors {
		if err := proc.Process(ctx, batch); err != nil {
			p.log.Error("audit_batch_failed", err, map[string]any{"size": len(batch)})
		}
	}
}

// Log never blocks: when the buffer is full the record is dropped.
func (p *WorkerPool) Log(rec Record) {
	select {
	case p.inputCh <- rec:
	default:
		p.log.Warn("audit_dropped", map[string]any{"order_id": rec.OrderID, "command": rec.Command})
	}
}

// Shutdown stops the workers after they flush what they hold.
func (p *WorkerPool) Shutdown() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}
