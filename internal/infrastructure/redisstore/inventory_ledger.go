package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	domain "github.com/Zhima-Mochi/textile-storefront/internal/domain/inventory"
	"github.com/redis/go-redis/v9"
)

// Reply codes of decrementScript.
const (
	codeGranted     = 1
	codeRejected    = 0
	codeNotFound    = -1
	codeUnavailable = -2
)

// decrementScript runs atomically on the server: it checks the item and
// subtracts ARGV[1] from its quantity only when enough stock is left.
var decrementScript = redis.NewScript(`
local q = redis.call('HGET', KEYS[1], 'quantity')
if not q then
  return {-1, 0}
end
q = tonumber(q)
if redis.call('HGET', KEYS[1], 'active') ~= '1' then
  return {-2, q}
end
local n = tonumber(ARGV[1])
if q < n then
  return {0, q}
end
local left = redis.call('HINCRBY', KEYS[1], 'quantity', -n)
redis.call('HSET', KEYS[1], 'updated_at', ARGV[2])
return {1, left}
`)

// InventoryLedger keeps each item as a hash under "<prefix>:inventory:<id>".
type InventoryLedger struct {
	client *redis.Client
	prefix string
}

func NewInventoryLedger(client *redis.Client, prefix string) *InventoryLedger {
	if prefix == "" {
		prefix = "textile"
	}
	return &InventoryLedger{client: client, prefix: prefix}
}

func (l *InventoryLedger) key(itemID string) string {
	return fmt.Sprintf("%s:inventory:%s", l.prefix, itemID)
}

func (l *InventoryLedger) TryDecrement(ctx context.Context, itemID string, quantity int) (domain.Decrement, error) {
	if err := domain.ValidateDecrement(itemID, quantity); err != nil {
		return domain.Decrement{}, err
	}

	now := strconv.FormatInt(time.Now().UTC().UnixMilli(), 10)
	reply, err := decrementScript.Run(ctx, l.client, []string{l.key(itemID)}, quantity, now).Int64Slice()
	if err != nil {
		return domain.Decrement{}, fmt.Errorf("redis: decrement %s: %w", itemID, err)
	}
	if len(reply) != 2 {
		return domain.Decrement{}, fmt.Errorf("redis: decrement %s: unexpected reply %v", itemID, reply)
	}

	switch reply[0] {
	case codeGranted:
		return domain.Decrement{ItemID: itemID, Requested: quantity, Remaining: int(reply[1])}, nil
	case codeRejected:
		return domain.Decrement{}, &domain.RejectedError{ItemID: itemID, Requested: quantity, Available: int(reply[1])}
	case codeNotFound:
		return domain.Decrement{}, domain.ErrNotFound
	case codeUnavailable:
		return domain.Decrement{}, domain.ErrUnavailable
	default:
		return domain.Decrement{}, fmt.Errorf("redis: decrement %s: unknown code %d", itemID, reply[0])
	}
}

func (l *InventoryLedger) Get(ctx context.Context, itemID string) (domain.Item, error) {
	fields, err := l.client.HGetAll(ctx, l.key(itemID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.Item{}, fmt.Errorf("redis: get %s: %w", itemID, err)
	}
	if len(fields) == 0 {
		return domain.Item{}, domain.ErrNotFound
	}

	quantity, err := strconv.Atoi(fields["quantity"])
	if err != nil {
		return domain.Item{}, fmt.Errorf("redis: get %s: quantity: %w", itemID, err)
	}
	item := domain.Item{
		ID:       itemID,
		Title:    fields["title"],
		Quantity: quantity,
		Active:   fields["active"] == "1",
	}
	if ms, err := strconv.ParseInt(fields["updated_at"], 10, 64); err == nil {
		item.UpdatedAt = time.UnixMilli(ms).UTC()
	}
	return item, nil
}

func (l *InventoryLedger) Put(ctx context.Context, item domain.Item) error {
	if item.ID == "" {
		return domain.ErrNotFound
	}
	if item.Quantity < 0 {
		return domain.ErrInvalidQuantity
	}
	active := "0"
	if item.Active {
		active = "1"
	}
	err := l.client.HSet(ctx, l.key(item.ID),
		"title", item.Title,
		"quantity", item.Quantity,
		"active", active,
		"updated_at", time.Now().UTC().UnixMilli(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis: put %s: %w", item.ID, err)
	}
	return nil
}
