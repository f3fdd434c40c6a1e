package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/cache"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type cachedProductService struct {
	next        ProductService
	redisClient redis.Cmdable
	cacheTTL    time.Duration
	logger      *zap.Logger
}

func NewCachedProductService(next ProductService, redisClient redis.Cmdable, cacheTTL time.Duration, logger *zap.Logger) ProductService {
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	return &cachedProductService{
		next:        next,
		redisClient: redisClient,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

func (s *cachedProductService) Create(ctx context.Context, cmd CreateProductCommand) (*domain.Product, error) {
	return s.next.Create(ctx, cmd)
}

func (s *cachedProductService) GetDetail(ctx context.Context, id int64) (*domain.ProductDetail, error) {
	key := cache.ProductDetailKey(id)

	val, err := s.redisClient.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var detail domain.ProductDetail
		if err := json.Unmarshal(val, &detail); err == nil {
			return &detail, nil
		}

		mylogger.Warn(ctx, s.logger, "Dropping unreadable cache entry", zap.String("key", key))
		s.redisClient.Del(ctx, key)
	case !errors.Is(err, redis.Nil):
		mylogger.Warn(ctx, s.logger, "Cache read failed", zap.String("key", key), zap.Error(err))
	}

	detail, err := s.next.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(detail); err == nil {
		if err := s.redisClient.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
			mylogger.Warn(ctx, s.logger, "Cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	return detail, nil
}

func (s *cachedProductService) RecordView(ctx context.Context, userID, id int64) {
	s.next.RecordView(ctx, userID, id)
}

func (s *cachedProductService) Restock(ctx context.Context, id, quantity int64) (*domain.StockChange, error) {
	return s.next.Restock(ctx, id, quantity)
}
