package order

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"

	"food-marketplace/internal/audit"
	"food-marketplace/internal/common/httpx"
	"food-marketplace/internal/common/logger"
	"food-marketplace/internal/common/metrics"
	"food-marketplace/internal/config"
	"food-marketplace/internal/connections/database"
	"food-marketplace/internal/connections/rabbitmq"
	"food-marketplace/internal/domain"
	"food-marketplace/internal/microservices/order/handlers"
	"food-marketplace/internal/microservices/order/repository"
	"food-marketplace/internal/microservices/order/service"
	"food-marketplace/internal/realtime"
)

// Run starts the order service and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, lg *logger.Logger) error {
	taxRate, err := cfg.Pricing.Rate()
	if err != nil {
		return fmt.Errorf("invalid tax rate: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	repo, pool, err := openStore(ctx, cfg, lg)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	router := realtime.NewRouter(cfg.Realtime.SendBuffer, m.Realtime, lg.With(map[string]any{"component": "router"}))
	var dispatcher realtime.Dispatcher = realtime.NewLocalDispatcher(router)

	if cfg.RabbitMQ.Enabled {
		rmq, err := rabbitmq.Dial(cfg.RabbitMQ)
		if err != nil {
			return fmt.Errorf("rabbitmq connect: %w", err)
		}
		defer rmq.Close()
		lg.Info("rabbitmq_connected", map[string]any{"host": cfg.RabbitMQ.Host, "port": cfg.RabbitMQ.Port})

		bridge := realtime.NewBridge(rmq, dispatcher, instanceID(), m.Realtime, lg.With(map[string]any{"component": "bridge"}))
		go consumeBridge(ctx, bridge, lg)
		dispatcher = bridge
	}

	// background workers outlive ctx so that commands finishing during the
	// HTTP shutdown still get their events and audit records out
	async := realtime.NewAsyncDispatcher(dispatcher, cfg.Realtime.DispatchQueue, m.Realtime, lg)
	async.Start(context.Background())
	defer async.Stop()

	auditPool, closeAudit, err := startAudit(cfg, lg)
	if err != nil {
		return err
	}
	defer closeAudit()
	defer auditPool.Shutdown()

	svc := service.New(repo, service.Options{
		Dispatcher: async,
		Audit:      auditPool,
		Metrics:    m.Command,
		Logger:     lg,
		TaxRate:    taxRate,
	})

	mux := http.NewServeMux()
	handlers.Register(mux, handlers.New(svc, lg))
	mux.Handle("GET /ws", realtime.NewGateway(router, svc.OrderService, realtime.GatewayConfig{
		WriteWait:      cfg.Realtime.WriteWait,
		PongWait:       cfg.Realtime.PongWait,
		MaxMessageSize: cfg.Realtime.MaxMessageSize,
	}, lg.With(map[string]any{"component": "gateway"})))
	mux.HandleFunc("GET /healthz", healthz(pool))
	mux.Handle("GET /metrics", m.Handler())

	lg.Info("service_started", map[string]any{"addr": cfg.HTTP.Addr(), "store": cfg.Store})
	return httpx.New(cfg.HTTP.Addr(), mux, cfg.HTTP.ShutdownTimeout).Run(ctx)
}

func openStore(ctx context.Context, cfg *config.Config, lg *logger.Logger) (*repository.Repository, *pgxpool.Pool, error) {
	if cfg.Store == "memory" {
		lg.Warn("memory_store", map[string]any{"detail": "orders are lost on restart"})
		return repository.NewInMemory(demoCatalog()), nil, nil
	}

	pool, err := database.ConnectDB(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	lg.Info("db_connected", map[string]any{"host": cfg.Database.Host, "database": cfg.Database.Database})
	return repository.New(pool), pool, nil
}

// startAudit builds the audit pool. The returned func closes the Kafka
// producer, if any, and must run after the pool has shut down.
func startAudit(cfg *config.Config, lg *logger.Logger) (*audit.WorkerPool, func(), error) {
	alg := lg.With(map[string]any{"component": "audit"})
	processors := []audit.Processor{audit.NewLogProcessor(alg)}
	closeFn := func() {}

	if cfg.Kafka.Enabled {
		producer, err := audit.NewSaramaProducer(cfg.Kafka.Brokers)
		if err != nil {
			return nil, nil, fmt.Errorf("kafka producer: %w", err)
		}
		kp := audit.NewKafkaProcessor(producer, cfg.Kafka.Topic)
		processors = append(processors, kp)
		closeFn = func() {
			if err := kp.Close(); err != nil {
				alg.Error("kafka_close_failed", err, nil)
			}
		}
	}

	pool := audit.NewWorkerPool(audit.PoolConfig{
		Workers:     cfg.Audit.Workers,
		BatchSize:   cfg.Audit.BatchSize,
		Timeout:     cfg.Audit.FlushTimeout,
		ChannelSize: cfg.Audit.ChannelSize,
	}, alg, processors...)
	pool.Start(context.Background())
	return pool, closeFn, nil
}

func healthz(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pool.Ping(ctx); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// consumeBridge keeps the broker consumer running until ctx is done. Local
// sessions are served by the bridge itself while the consumer is down.
func consumeBridge(ctx context.Context, bridge *realtime.Bridge, lg *logger.Logger) {
	backoff := time.Second
	for {
		err := bridge.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		lg.Error("bridge_stopped", err, map[string]any{"retry_in": backoff.String()})
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 30*time.Second)
	}
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "order-service"
	}
	return host + "-" + uuid.NewString()[:8]
}

// demoCatalog seeds the in-memory store so the service is usable without
// Postgres.
func demoCatalog() *repository.MemoryCatalog {
	c := repository.NewMemoryCatalog()
	c.AddVendor(domain.Vendor{
		ID:           "vendor-demo",
		Name:         "Demo Kitchen",
		Open:         true,
		MinimumOrder: decimal.RequireFromString("10.00"),
		PrepTime:     25 * time.Minute,
		DeliveryFee:  decimal.RequireFromString("2.99"),
	})
	c.AddMenuItem(domain.MenuItem{ID: "item-burger", VendorID: "vendor-demo", Name: "Burger", Price: decimal.RequireFromString("8.50"), Available: true})
	c.AddMenuItem(domain.MenuItem{ID: "item-fries", VendorID: "vendor-demo", Name: "Fries", Price: decimal.RequireFromString("3.25"), Available: true})
	return c
}
