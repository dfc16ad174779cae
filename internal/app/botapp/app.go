package botapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/GK-FY/bulk/internal/app/apiapp"
	"github.com/GK-FY/bulk/internal/config"
	"github.com/GK-FY/bulk/internal/domain/model"
	"github.com/GK-FY/bulk/internal/infra/httpclient"
	kafkainfra "github.com/GK-FY/bulk/internal/infra/kafka"
	"github.com/GK-FY/bulk/internal/infra/metrics"
	s3infra "github.com/GK-FY/bulk/internal/infra/s3"
	tginfra "github.com/GK-FY/bulk/internal/infra/telegram"
	"github.com/GK-FY/bulk/internal/jobs/cleanup"
	"github.com/GK-FY/bulk/internal/repo/gatewayhttp"
	pgrepo "github.com/GK-FY/bulk/internal/repo/postgres"
	"github.com/GK-FY/bulk/internal/services/access"
	"github.com/GK-FY/bulk/internal/services/adminflow"
	"github.com/GK-FY/bulk/internal/services/broadcast"
	"github.com/GK-FY/bulk/internal/services/contacts"
	"github.com/GK-FY/bulk/internal/services/conversation"
	"github.com/GK-FY/bulk/internal/services/dedup"
	"github.com/GK-FY/bulk/internal/services/ledger"
	"github.com/GK-FY/bulk/internal/services/payments"
	"github.com/GK-FY/bulk/internal/services/rate"
	"github.com/GK-FY/bulk/internal/services/referral"
	"github.com/GK-FY/bulk/internal/services/settings"
	"github.com/GK-FY/bulk/internal/transport/http/handlers"
)

// App wires the chat front end: the bot listener, both conversation
// machines, the payment reconciler and the TTL sweeper.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	postgres *pgxpool.Pool
	redis    *goredis.Client
	bot      *tginfra.Bot
	producer *kafkainfra.Producer

	ledger       *ledger.Ledger
	settings     *settings.Registry
	transactions *pgrepo.TransactionRepo
	reconciler   *payments.Reconciler
	user         *conversation.Machine
	admin        *adminflow.Machine
	router       *router
	cleanupJob   *cleanup.Job
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	a := &App{
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics.New(),
		cleanupJob: cleanup.New(logger.Named("cleanup")),
	}

	a.postgres = openPostgres(ctx, cfg.Postgres, logger)
	a.redis = openRedis(ctx, cfg.Redis, logger)
	st := newStores(a.redis, cfg, a.cleanupJob)

	a.settings = loadSettings(ctx, pgrepo.NewSettingsRepo(a.postgres), logger)
	a.ledger = loadLedger(ctx, pgrepo.NewAccountRepo(a.postgres), logger)
	a.transactions = pgrepo.NewTransactionRepo(a.postgres)

	gateway, err := gatewayhttp.NewClient(gatewayhttp.Options{
		BaseURL:     cfg.Gateway.BaseURL,
		APIKey:      cfg.Gateway.APIKey,
		AccountID:   cfg.Gateway.AccountID,
		CallbackURL: cfg.Gateway.CallbackURL,
		Timeout:     cfg.Gateway.Timeout,
		HTTPClient:  httpclient.New(cfg.Gateway.Timeout),
	})
	if err != nil {
		a.closeStores()
		return nil, fmt.Errorf("init payment gateway client: %w", err)
	}

	if strings.TrimSpace(cfg.Bot.Token) != "" {
		a.bot, err = tginfra.NewBot(cfg.Bot.Token, httpclient.New(60*time.Second))
		if err != nil {
			a.closeStores()
			return nil, fmt.Errorf("init telegram bot: %w", err)
		}
	} else {
		logger.Warn("BOT_TOKEN is empty, listener disabled and replies are logged only")
	}

	publisher, err := a.newPublisher()
	if err != nil {
		a.closeStores()
		return nil, err
	}

	accessSvc := access.NewService(cfg.Bot.AdminIDs, a.settings)
	referrals := referral.NewEngine(a.ledger, a.settings, logger.Named("referral"))

	a.reconciler = payments.NewReconciler(payments.ReconcilerDependencies{
		Gateway:      gateway,
		Pending:      st.pending,
		Txs:          a.transactions,
		Ledger:       a.ledger,
		Referrals:    referrals,
		Notifier:     a,
		Admins:       accessSvc,
		Metrics:      a.metrics,
		Logger:       logger.Named("reconciler"),
		PollInterval: cfg.Gateway.PollInterval,
		PollAttempts: cfg.Gateway.PollAttempts,
	})
	initiator := payments.NewInitiator(payments.InitiatorDependencies{
		Gateway:  gateway,
		Txs:      a.transactions,
		Pending:  st.pending,
		Tracker:  a.reconciler,
		Limiter:  rate.NewLimiter(st.windows, cfg.Gateway.TopUpPerMinute, cfg.Gateway.TopUpPerHour),
		Settings: a.settings,
		Metrics:  a.metrics,
		Logger:   logger.Named("initiator"),
		Retries:  cfg.Gateway.InitRetries,
		Backoff:  cfg.Gateway.RetryBackoff,
	})

	a.user = conversation.New(conversation.Dependencies{
		Sessions:     st.sessions,
		Ledger:       a.ledger,
		Referrals:    referrals,
		Payments:     initiator,
		Contacts:     a.newImporter(ctx),
		Broadcaster:  broadcast.NewDispatcher(publisher, a.metrics, logger.Named("broadcast")),
		Transactions: a.transactions,
		Settings:     a.settings,
		Admins:       accessSvc,
		Logger:       logger.Named("conversation"),
	})
	a.admin = adminflow.New(adminflow.Dependencies{
		Sessions:     st.adminSessions,
		Ledger:       a.ledger,
		Settings:     a.settings,
		Access:       accessSvc,
		Transactions: a.transactions,
		Logger:       logger.Named("adminflow"),
	})

	guard := dedup.NewGuard(st.dedup, cfg.Dedup.TTL, logger.Named("dedup"))
	a.router = newRouter(a.handleEvent, a.sendText, guard, a.metrics, logger.Named("router"))

	return a, nil
}

func (a *App) newPublisher() (broadcast.Publisher, error) {
	if !a.cfg.Kafka.Enabled {
		return broadcast.NewLogPublisher(a.logger.Named("deliveries")), nil
	}
	producer, err := kafkainfra.NewProducer(a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic, a.logger.Named("kafka"))
	if err != nil {
		return nil, fmt.Errorf("init kafka producer: %w", err)
	}
	a.producer = producer
	return producer, nil
}

// newImporter leaves the file source or the archive unset when the bot or
// object storage is not configured.
func (a *App) newImporter(ctx context.Context) *contacts.Importer {
	var files contacts.FileSource
	if a.bot != nil {
		files = a.bot
	}

	var archive contacts.Archive
	if a.cfg.S3.Enabled {
		client, err := s3infra.NewClient(s3infra.Config{
			Endpoint:  a.cfg.S3.Endpoint,
			AccessKey: a.cfg.S3.AccessKey,
			SecretKey: a.cfg.S3.SecretKey,
			UseSSL:    a.cfg.S3.UseSSL,
		})
		if err != nil {
			a.logger.Warn("s3 unavailable, contact files are not archived", zap.Error(err))
		} else {
			store := s3infra.NewArchive(client, a.cfg.S3.Bucket)
			if err := store.EnsureBucket(ctx); err != nil {
				a.logger.Warn("ensure contacts bucket", zap.Error(err))
			}
			archive = store
		}
	}

	return contacts.NewImporter(files, archive, a.logger.Named("contacts"))
}

// handleEvent gives the admin console the first look at an event; anything
// it does not claim goes to the user conversation.
func (a *App) handleEvent(ctx context.Context, event model.InboundEvent) ([]model.OutboundMessage, error) {
	replies, handled, err := a.admin.Handle(ctx, event)
	if err != nil || handled {
		return replies, err
	}
	return a.user.Handle(ctx, event)
}

func (a *App) sendText(ctx context.Context, actorID, text string) error {
	if a.bot == nil {
		a.logger.Info("outbound message", zap.String("actor_id", actorID), zap.String("text", text))
		return nil
	}
	return a.bot.SendText(ctx, actorID, text)
}

// Notify delivers a reconciler notice. Failures are logged and dropped.
func (a *App) Notify(ctx context.Context, actorID, text string) {
	if err := a.sendText(ctx, actorID, text); err != nil {
		a.logger.Warn("notify actor", zap.String("actor_id", actorID), zap.Error(err))
	}
}

// Dispatch feeds one inbound event through dedup and the actor's mailbox.
func (a *App) Dispatch(ctx context.Context, event model.InboundEvent) {
	a.router.Dispatch(ctx, event)
}

// API exposes the pieces the HTTP surface needs.
func (a *App) API() apiapp.Dependencies {
	checks := make(map[string]handlers.HealthCheck)
	if a.postgres != nil {
		checks["postgres"] = a.postgres.Ping
	}
	if a.redis != nil {
		client := a.redis
		checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}

	return apiapp.Dependencies{
		Settler:      a.reconciler,
		Settings:     a.settings,
		Accounts:     a.ledger,
		Transactions: a.transactions,
		HealthChecks: checks,
		Metrics:      a.metrics,
	}
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("bot app started")

	go a.cleanupJob.Loop(ctx, a.cfg.Cleanup.Interval)

	errCh := make(chan error, 1)

	if a.bot != nil {
		go func() {
			errCh <- a.bot.Listen(ctx, a.Dispatch)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("bot app stopped")
			return nil
		case err := <-errCh:
			if err == nil || errors.Is(err, context.Canceled) {
				continue
			}
			return err
		}
	}
}

// Close waits for queued events and pollers, then releases the stores.
func (a *App) Close() {
	a.router.Wait()
	a.reconciler.Close()
	if a.producer != nil {
		a.producer.Close()
	}
	a.closeStores()
}

func (a *App) closeStores() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
}
