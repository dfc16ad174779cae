package botapp

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/GK-FY/bulk/internal/config"
	"github.com/GK-FY/bulk/internal/jobs/cleanup"
	pgrepo "github.com/GK-FY/bulk/internal/repo/postgres"
	redrepo "github.com/GK-FY/bulk/internal/repo/redis"
	"github.com/GK-FY/bulk/internal/services/adminflow"
	"github.com/GK-FY/bulk/internal/services/conversation"
	"github.com/GK-FY/bulk/internal/services/dedup"
	"github.com/GK-FY/bulk/internal/services/ledger"
	"github.com/GK-FY/bulk/internal/services/payments"
	"github.com/GK-FY/bulk/internal/services/rate"
	"github.com/GK-FY/bulk/internal/services/session"
	"github.com/GK-FY/bulk/internal/services/settings"
)

// stores holds the transient state backends. Every field is usable even when
// Redis is absent; the process-local fallbacks are then swept by cleanup.
type stores struct {
	dedup         dedup.Store
	sessions      session.Store[conversation.Session]
	adminSessions session.Store[adminflow.Session]
	pending       payments.PendingStore
	windows       rate.WindowStore
}

func openPostgres(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) *pgxpool.Pool {
	if strings.TrimSpace(cfg.DSN) == "" {
		logger.Warn("postgres dsn is empty, ledger and settings are kept in memory")
		return nil
	}
	pool, err := pgrepo.NewPool(ctx, cfg.DSN)
	if err != nil {
		logger.Warn("postgres unavailable, ledger and settings are kept in memory", zap.Error(err))
		return nil
	}
	if err := pgrepo.Migrate(ctx, pool); err != nil {
		logger.Warn("postgres schema migration failed, ledger and settings are kept in memory", zap.Error(err))
		pool.Close()
		return nil
	}
	return pool
}

// loadSettings falls back to an in-memory registry on compiled-in defaults
// when the stored settings cannot be read.
func loadSettings(ctx context.Context, store settings.Store, logger *zap.Logger) *settings.Registry {
	registry := settings.NewRegistry(store, logger.Named("settings"))
	if err := registry.Load(ctx); err != nil {
		logger.Warn("settings store unreadable, running on defaults in memory", zap.Error(err))
		return settings.NewRegistry(nil, logger.Named("settings"))
	}
	return registry
}

// loadLedger falls back to an empty in-memory ledger when the stored accounts
// cannot be read. The store is detached so later snapshots never overwrite
// rows that were not loaded.
func loadLedger(ctx context.Context, store ledger.Store, logger *zap.Logger) *ledger.Ledger {
	l := ledger.New(store, logger.Named("ledger"))
	if err := l.Load(ctx); err != nil {
		logger.Warn("account store unreadable, running with an empty ledger in memory", zap.Error(err))
		return ledger.New(nil, logger.Named("ledger"))
	}
	return l
}

func openRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *goredis.Client {
	if strings.TrimSpace(cfg.Addr) == "" {
		logger.Warn("redis addr is empty, transient state is kept in memory")
		return nil
	}
	client, err := redrepo.NewClient(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		logger.Warn("redis unavailable, transient state is kept in memory", zap.Error(err))
		return nil
	}
	return client
}

func newStores(client *goredis.Client, cfg config.Config, job *cleanup.Job) stores {
	if client != nil {
		return stores{
			dedup:         redrepo.NewDedupRepo(client),
			sessions:      redrepo.NewSessionRepo[conversation.Session](client, "user", cfg.Session.TTL),
			adminSessions: redrepo.NewSessionRepo[adminflow.Session](client, "admin", cfg.Session.TTL),
			pending:       redrepo.NewPendingRepo(client, pendingTTL(cfg.Gateway)),
			windows:       redrepo.NewRateRepo(client),
		}
	}

	dedupMemory := dedup.NewMemory()
	sessions := session.NewMemory[conversation.Session](cfg.Session.TTL)
	adminSessions := session.NewMemory[adminflow.Session](cfg.Session.TTL)
	windows := rate.NewMemoryStore()

	job.Attach("dedup", dedupMemory)
	job.Attach("sessions", sessions)
	job.Attach("admin_sessions", adminSessions)
	job.Attach("rate_windows", cleanup.ExpireFunc(func(ctx context.Context, now time.Time) (int, error) {
		return windows.Expire(ctx, now), nil
	}))

	return stores{
		dedup:         dedupMemory,
		sessions:      sessions,
		adminSessions: adminSessions,
		pending:       payments.NewMemoryPending(),
		windows:       windows,
	}
}

// pendingTTL outlives the whole poll window so a late callback still finds
// its entry.
func pendingTTL(cfg config.GatewayConfig) time.Duration {
	window := cfg.PollInterval * time.Duration(cfg.PollAttempts)
	if window <= 0 {
		window = 2 * time.Minute
	}
	return 2 * window
}
