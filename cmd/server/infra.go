package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"docverify/internal/health"
	"docverify/internal/ledger"
	"docverify/internal/ledger/journal"
	ledgermetrics "docverify/internal/ledger/metrics"
	"docverify/internal/platform/config"
	"docverify/internal/platform/kafka"
	"docverify/internal/platform/mongo"
	"docverify/internal/platform/postgres"
	"docverify/internal/platform/redis"
	ratelimit "docverify/internal/ratelimit/middleware"
	"docverify/internal/ratelimit/store/bucket"
	"docverify/internal/registry/service"
	doctorstore "docverify/internal/registry/store/doctor"
	reportstore "docverify/internal/registry/store/report"
	"docverify/pkg/platform/audit/publisher"
	auditkafka "docverify/pkg/platform/audit/store/kafka"
	auditmemory "docverify/pkg/platform/audit/store/memory"
	"docverify/pkg/platform/circuit"
	"docverify/pkg/platform/keylock"
)

const auditBufferSize = 1024

// infra holds the backends chosen by configuration. Each is picked once at
// start-up; nothing falls back to another backend at runtime.
type infra struct {
	doctors service.DoctorStore
	reports service.ReportStore
	ledger  *ledger.Resilient
	locker  keylock.Locker
	audit   *publisher.Publisher
	buckets ratelimit.BucketStore

	sqlDB       *sql.DB
	mongoClient *mongodriver.Client
	journal     *journal.Journal
	redis       *redis.Client
	kafka       *kafka.Client
}

func buildInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (_ *infra, err error) {
	in := &infra{}
	defer func() {
		if err != nil {
			in.Close(log)
		}
	}()

	if err := in.openStores(ctx, cfg.Store); err != nil {
		return nil, err
	}
	if err := in.openLedger(cfg.Ledger, log); err != nil {
		return nil, err
	}

	in.locker = keylock.NewMemory()
	in.buckets = bucket.NewInMemoryBucketStore()
	if in.redis, err = redis.New(ctx, cfg.Redis); err != nil {
		return nil, err
	}
	if in.redis != nil {
		in.locker = keylock.NewRedis(in.redis.Client, cfg.Redis.LockTTL)
		in.buckets = bucket.NewRedisBucketStore(in.redis.Client)
		log.Info("per-license locks and rate limits shared through redis")
	}

	auditOpts := []publisher.Option{publisher.WithLogger(log), publisher.WithAsyncBuffer(auditBufferSize)}
	if in.kafka, err = kafka.New(ctx, cfg.Kafka); err != nil {
		return nil, err
	}
	if in.kafka != nil {
		auditOpts = append(auditOpts, publisher.WithSink(auditkafka.NewSink(in.kafka, cfg.Kafka.AuditTopic)))
		log.Info("audit events streamed to kafka", "topic", cfg.Kafka.AuditTopic)
	}
	in.audit = publisher.NewPublisher(auditmemory.NewInMemoryStore(), auditOpts...)
	return in, nil
}

func (in *infra) openStores(ctx context.Context, cfg config.StoreConfig) error {
	switch cfg.Backend {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		in.sqlDB = db
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		in.doctors = doctorstore.NewPostgres(db)
		in.reports = reportstore.NewPostgres(db)
	case config.StoreMongo:
		client, err := mongo.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		in.mongoClient = client
		db := client.Database(cfg.MongoDB)
		if err := mongo.EnsureIndexes(ctx, db); err != nil {
			return err
		}
		in.doctors = doctorstore.NewMongo(db)
		in.reports = reportstore.NewMongo(db)
	default:
		in.doctors = doctorstore.NewInMemory()
		in.reports = reportstore.NewInMemory()
	}
	return nil
}

func (in *infra) openLedger(cfg config.LedgerConfig, log *slog.Logger) error {
	var backend journal.Backend = journal.NewMemoryBackend()
	if cfg.Backend == config.LedgerLevelDB {
		ldb, err := journal.OpenLevelDB(cfg.Path)
		if err != nil {
			return fmt.Errorf("open ledger at %s: %w", cfg.Path, err)
		}
		backend = ldb
	}
	in.journal = journal.New(backend)
	in.ledger = ledger.NewResilient(ledger.NewJournalClient(in.journal),
		ledger.WithRetry(cfg.MaxRetries, cfg.RetryInitial),
		ledger.WithBreaker(circuit.New("ledger", circuit.WithFailureThreshold(cfg.FailureThreshold))),
		ledger.WithLogger(log),
		ledger.WithMetrics(ledgermetrics.New()),
	)
	return nil
}

func (in *infra) healthChecks() []health.Option {
	opts := []health.Option{
		health.WithCheck("ledger", func(context.Context) error {
			if in.ledger.BreakerState() == circuit.StateOpen {
				return fmt.Errorf("ledger circuit open")
			}
			return nil
		}),
	}
	if in.sqlDB != nil {
		opts = append(opts, health.WithCheck("postgres", in.sqlDB.PingContext))
	}
	if in.mongoClient != nil {
		opts = append(opts, health.WithCheck("mongo", func(ctx context.Context) error {
			return in.mongoClient.Ping(ctx, nil)
		}))
	}
	if in.redis != nil {
		opts = append(opts, health.WithCheck("redis", in.redis.Health))
	}
	if in.kafka != nil {
		opts = append(opts, health.WithCheck("kafka", in.kafka.Health))
	}
	return opts
}

// Close releases backends in reverse start-up order. The audit publisher is
// drained before the kafka client goes away.
func (in *infra) Close(log *slog.Logger) {
	if in.audit != nil {
		in.audit.Close()
	}
	if in.kafka != nil {
		in.kafka.Close()
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			log.Warn("failed to close redis", "error", err)
		}
	}
	if in.journal != nil {
		if err := in.journal.Close(); err != nil {
			log.Warn("failed to close ledger journal", "error", err)
		}
	}
	if in.mongoClient != nil {
		if err := in.mongoClient.Disconnect(context.Background()); err != nil {
			log.Warn("failed to disconnect mongo", "error", err)
		}
	}
	if in.sqlDB != nil {
		if err := in.sqlDB.Close(); err != nil {
			log.Warn("failed to close postgres", "error", err)
		}
	}
}
