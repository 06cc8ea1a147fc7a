package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lotvend/lotvend/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ContextStore keeps in-flight payment contexts: which invoice or manual
// order belongs to which buyer and lot, and the queue entry created for it
// if the lot was empty at purchase time. Entries expire after the TTL; an
// expired context is indistinguishable from a settled one, which is fine
// because settled contexts are deleted anyway.
type ContextStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func New(client *redis.Client, ttl time.Duration) *ContextStore {
	return &ContextStore{client: client, ttl: ttl}
}

func invoiceKey(buyerID, lotID int64) string {
	return fmt.Sprintf("payment:%d:%d", buyerID, lotID)
}

func manualKey(lotID int64, handle string) string {
	return fmt.Sprintf("manual:%d:%s", lotID, strings.ToLower(strings.TrimPrefix(handle, "@")))
}

func (s *ContextStore) SaveInvoiceContext(ctx context.Context, pc domain.PaymentContext) error {
	return s.set(ctx, invoiceKey(pc.BuyerID, pc.LotID), pc)
}

func (s *ContextStore) InvoiceContext(ctx context.Context, buyerID, lotID int64) (*domain.PaymentContext, error) {
	return s.get(ctx, invoiceKey(buyerID, lotID))
}

func (s *ContextStore) DeleteInvoiceContext(ctx context.Context, buyerID, lotID int64) error {
	return s.del(ctx, invoiceKey(buyerID, lotID))
}

func (s *ContextStore) SaveManualContext(ctx context.Context, pc domain.PaymentContext) error {
	return s.set(ctx, manualKey(pc.LotID, pc.Username), pc)
}

func (s *ContextStore) ManualContext(ctx context.Context, lotID int64, handle string) (*domain.PaymentContext, error) {
	return s.get(ctx, manualKey(lotID, handle))
}

func (s *ContextStore) DeleteManualContext(ctx context.Context, lotID int64, handle string) error {
	return s.del(ctx, manualKey(lotID, handle))
}

func (s *ContextStore) set(ctx context.Context, key string, pc domain.PaymentContext) error {
	payload, err := json.Marshal(pc)
	if err != nil {
		return fmt.Errorf("marshal payment context: %w", err)
	}
	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("set payment context: %w", err)
	}
	return nil
}

func (s *ContextStore) get(ctx context.Context, key string) (*domain.PaymentContext, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment context: %w", err)
	}
	var pc domain.PaymentContext
	if err := json.Unmarshal([]byte(val), &pc); err != nil {
		return nil, fmt.Errorf("unmarshal payment context: %w", err)
	}
	return &pc, nil
}

func (s *ContextStore) del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("delete payment context: %w", err)
	}
	return nil
}
