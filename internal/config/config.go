// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Zhima-Mochi/textile-storefront/internal/domain/inventory"
	"github.com/Zhima-Mochi/textile-storefront/internal/domain/order"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	LedgerMemory   = "memory"
	LedgerPostgres = "postgres"
	LedgerRedis    = "redis"
)

type Service struct {
	Name            string
	Env             string
	HTTPAddr        string
	ShutdownTimeout time.Duration
	Brand           string
}

type Storage struct {
	LedgerBackend  string
	DatabaseURL    string
	RedisAddr      string
	RedisKeyPrefix string
	// JournalPath is the SQLite file for the fulfillment journal. Empty keeps it in memory.
	JournalPath string
}

type Mail struct {
	Host           string
	Port           int
	User           string
	Pass           string
	From           string
	FromName       string
	ConnectTimeout time.Duration
	NotifyTimeout  time.Duration
}

type Config struct {
	Service           Service
	Storage           Storage
	Mail              Mail
	Pricing           order.Pricing
	LowStockThreshold int
	Seed              []inventory.Item
}

// Load reads the environment and reports every invalid value at once.
func Load() (Config, error) {
	var errs []error
	p := parser{errs: &errs}

	cfg := Config{
		Service: Service{
			Name:            getenvDefault("SERVICE_NAME", "textile-storefront"),
			Env:             getenvDefault("ENV", "dev"),
			HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
			ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
			Brand:           getenvDefault("BRAND_NAME", "Textile Storefront"),
		},
		Storage: Storage{
			LedgerBackend:  strings.ToLower(getenvDefault("LEDGER_BACKEND", LedgerMemory)),
			DatabaseURL:    os.Getenv("DATABASE_URL"),
			RedisAddr:      getenvDefault("REDIS_ADDR", "localhost:6379"),
			RedisKeyPrefix: getenvDefault("REDIS_KEY_PREFIX", "textile"),
			JournalPath:    os.Getenv("JOURNAL_PATH"),
		},
		Mail: Mail{
			Host:           os.Getenv("SMTP_HOST"),
			Port:           p.int("SMTP_PORT", 587),
			User:           os.Getenv("SMTP_USER"),
			Pass:           os.Getenv("SMTP_PASS"),
			From:           os.Getenv("FROM_EMAIL"),
			FromName:       getenvDefault("FROM_NAME", "Textile Storefront"),
			ConnectTimeout: p.duration("SMTP_CONNECT_TIMEOUT", 10*time.Second),
			NotifyTimeout:  p.duration("NOTIFY_TIMEOUT", 20*time.Second),
		},
		Pricing:           order.DefaultPricing(),
		LowStockThreshold: p.int("LOW_STOCK_THRESHOLD", 1000),
	}

	cfg.Pricing.UnitPrice = p.decimal("PRICE_PER_METER", cfg.Pricing.UnitPrice)
	cfg.Pricing.DeliveryFee = p.decimal("DELIVERY_FEE", cfg.Pricing.DeliveryFee)
	cfg.Pricing.FreeDeliveryFrom = p.int("FREE_DELIVERY_FROM", cfg.Pricing.FreeDeliveryFrom)
	cfg.Pricing.MinimumQuantity = p.int("MIN_ORDER_METERS", cfg.Pricing.MinimumQuantity)

	seed, err := ParseSeed(os.Getenv("SEED_ITEMS"))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Seed = seed

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func (c Config) validate() []error {
	var errs []error
	switch c.Storage.LedgerBackend {
	case LedgerMemory, LedgerRedis:
	case LedgerPostgres:
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres ledger"))
		}
	default:
		errs = append(errs, fmt.Errorf("LEDGER_BACKEND %q is not one of memory, postgres, redis", c.Storage.LedgerBackend))
	}
	if c.Mail.Port <= 0 || c.Mail.Port > 65535 {
		errs = append(errs, fmt.Errorf("SMTP_PORT %d is out of range", c.Mail.Port))
	}
	if c.Pricing.UnitPrice.IsNegative() || c.Pricing.UnitPrice.IsZero() {
		errs = append(errs, errors.New("PRICE_PER_METER must be positive"))
	}
	if c.Pricing.DeliveryFee.IsNegative() {
		errs = append(errs, errors.New("DELIVERY_FEE must not be negative"))
	}
	if c.Pricing.MinimumQuantity <= 0 {
		errs = append(errs, errors.New("MIN_ORDER_METERS must be positive"))
	}
	return errs
}

// ParseSeed reads "id:title:quantity" entries separated by commas.
func ParseSeed(s string) ([]inventory.Item, error) {
	entries := lo.Compact(lo.Map(strings.Split(s, ","), func(e string, _ int) string {
		return strings.TrimSpace(e)
	}))

	items := make([]inventory.Item, 0, len(entries))
	var errs []error
	for _, e := range entries {
		parts := strings.Split(e, ":")
		if len(parts) != 3 {
			errs = append(errs, fmt.Errorf("SEED_ITEMS entry %q: want id:title:quantity", e))
			continue
		}
		qty, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			errs = append(errs, fmt.Errorf("SEED_ITEMS entry %q: quantity: %w", e, err))
			continue
		}
		item, err := inventory.NewItem(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), qty)
		if err != nil {
			errs = append(errs, fmt.Errorf("SEED_ITEMS entry %q: %w", e, err))
			continue
		}
		items = append(items, item)
	}

	dupes := lo.FindDuplicatesBy(items, func(it inventory.Item) string { return it.ID })
	for _, d := range dupes {
		errs = append(errs, fmt.Errorf("SEED_ITEMS: duplicate id %q", d.ID))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return items, nil
}

type parser struct{ errs *[]error }

func (p parser) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	if d <= 0 {
		*p.errs = append(*p.errs, fmt.Errorf("%s must be positive", key))
		return def
	}
	return d
}

func (p parser) decimal(key string, def decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
