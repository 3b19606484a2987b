package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	appfulfillment "github.com/Zhima-Mochi/textile-storefront/internal/application/fulfillment"
	appinventory "github.com/Zhima-Mochi/textile-storefront/internal/application/inventory"
	"github.com/Zhima-Mochi/textile-storefront/internal/application/welcome"
	"github.com/Zhima-Mochi/textile-storefront/internal/config"
	"github.com/Zhima-Mochi/textile-storefront/internal/domain/fulfillment"
	"github.com/Zhima-Mochi/textile-storefront/internal/domain/inventory"
	"github.com/Zhima-Mochi/textile-storefront/internal/domain/notification"
	"github.com/Zhima-Mochi/textile-storefront/internal/domain/order"
	"github.com/Zhima-Mochi/textile-storefront/internal/infrastructure/id"
	"github.com/Zhima-Mochi/textile-storefront/internal/infrastructure/mail"
	"github.com/Zhima-Mochi/textile-storefront/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/textile-storefront/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/textile-storefront/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/textile-storefront/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/textile-storefront/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/textile-storefront/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/textile-storefront/internal/infrastructure/pdfbill"
	"github.com/Zhima-Mochi/textile-storefront/internal/infrastructure/postgres"
	"github.com/Zhima-Mochi/textile-storefront/internal/infrastructure/redisstore"
	"github.com/Zhima-Mochi/textile-storefront/internal/infrastructure/sqlite"
	"github.com/Zhima-Mochi/textile-storefront/internal/observability"
	httppresentation "github.com/Zhima-Mochi/textile-storefront/internal/presentation/http"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	baseLogger := zaplogger.MustNew(cfg.Service.Name, cfg.Service.Env)
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger.Zap())

	systemLogger := baseLogger.System()

	tel := infraobs.NewPrometheus(
		oteltrace.New(cfg.Service.Name,
			attribute.String("service.name", cfg.Service.Name),
			attribute.String("deployment.environment", cfg.Service.Env),
		),
		baseLogger,
		prometrics.New("", "", prometheus.DefaultRegisterer),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, closeLedger, err := openLedger(ctx, cfg.Storage, systemLogger)
	if err != nil {
		systemLogger.Error("ledger_open_error", observability.F("backend", cfg.Storage.LedgerBackend), observability.F("error", err.Error()))
		os.Exit(1)
	}
	defer closeLedger()

	for _, item := range cfg.Seed {
		if err := ledger.Put(ctx, item); err != nil {
			systemLogger.Error("ledger_seed_error", observability.F("item_id", item.ID), observability.F("error", err.Error()))
			os.Exit(1)
		}
	}

	journal, closeJournal, err := openJournal(cfg.Storage)
	if err != nil {
		systemLogger.Error("journal_open_error", observability.F("error", err.Error()))
		os.Exit(1)
	}
	defer closeJournal()

	channel := mail.NewChannel(newTransport(cfg.Mail, systemLogger), channelConfig(cfg.Mail), tel)

	bills := pdfbill.DefaultOptions()
	bills.BrandName = cfg.Service.Brand

	// In-process event bus carrying stock and fulfillment events to the workers.
	bus := outbox.NewBus(tel)
	bus.Start(context.Background())

	decrement := appinventory.NewDecrementStockUseCase(ledger, bus, tel)
	submitOrder := appfulfillment.NewSubmitOrderUseCase(
		pdfbill.New(bills),
		channel,
		decrement,
		bus,
		appfulfillment.Config{NotifyTimeout: cfg.Mail.NotifyTimeout, Brand: cfg.Service.Brand},
		tel,
	)
	sendWelcome := welcome.NewSendWelcomeUseCase(channel, cfg.Service.Brand, tel)

	appinventory.NewStockWorker(bus, cfg.LowStockThreshold, tel).Start()
	appfulfillment.NewJournalWorker(bus, journal, tel).Start()

	handler := httppresentation.NewHandler(httppresentation.Deps{
		Checkout:    order.NewCheckout(cfg.Pricing, id.NewOrderIDs(nil), nil),
		SubmitOrder: submitOrder,
		Decrement:   decrement,
		Welcome:     sendWelcome,
		Stock:       ledger,
		Journal:     journal,
	}, tel)

	root := chi.NewRouter()
	root.Handle("/metrics", promhttp.Handler())
	root.Mount("/", handler.Router())

	server := &http.Server{
		Addr:    cfg.Service.HTTPAddr,
		Handler: root,
	}

	go func() {
		systemLogger.Info("http_server_start",
			observability.F("addr", server.Addr),
			observability.F("ledger_backend", cfg.Storage.LedgerBackend),
			observability.F("mail_state", string(channel.State())),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error", observability.F("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error", observability.F("error", err.Error()))
	} else {
		systemLogger.Info("http_server_stopped")
	}
	bus.Stop(shutdownCtx)
}

func openLedger(ctx context.Context, s config.Storage, logger observability.Logger) (inventory.StockLedger, func(), error) {
	switch s.LedgerBackend {
	case config.LedgerPostgres:
		pool, err := postgres.NewPool(ctx, s.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		ledger := postgres.NewInventoryLedger(pool)
		if err := ledger.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return ledger, pool.Close, nil
	case config.LedgerRedis:
		client := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		logger.Info("redis_connected", observability.F("addr", s.RedisAddr))
		return redisstore.NewInventoryLedger(client, s.RedisKeyPrefix), func() { _ = client.Close() }, nil
	default:
		return memory.NewInventoryLedger(), func() {}, nil
	}
}

func openJournal(s config.Storage) (fulfillment.Journal, func(), error) {
	if s.JournalPath == "" {
		return memory.NewFulfillmentJournal(), func() {}, nil
	}
	j, err := sqlite.Open(s.JournalPath)
	if err != nil {
		return nil, nil, err
	}
	return j, func() { _ = j.Close() }, nil
}

// channelConfig lets NOTIFY_TIMEOUT govern a whole send; otherwise the
// channel's own default would cut it short.
func channelConfig(m config.Mail) mail.ChannelConfig {
	return mail.ChannelConfig{
		ConnectTimeout: m.ConnectTimeout,
		SendTimeout:    m.NotifyTimeout,
	}
}

// newTransport returns nil when mail is not configured; the channel then skips every send.
func newTransport(m config.Mail, logger observability.Logger) mail.Transport {
	t, err := mail.NewSMTPTransport(mail.SMTPConfig{
		Host:     m.Host,
		Port:     m.Port,
		Username: m.User,
		Password: m.Pass,
		From:     m.From,
		FromName: m.FromName,
		Timeout:  m.ConnectTimeout,
	})
	if err != nil {
		if errors.Is(err, notification.ErrNoCredentials) {
			logger.Warn("mail_disabled", observability.F("reason", "no smtp credentials"))
		} else {
			logger.Error("mail_transport_error", observability.F("error", err.Error()))
		}
		return nil
	}
	logger.Info("mail_transport_ready", observability.F("host", t.Host()))
	return t
}
