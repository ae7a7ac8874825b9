package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/train"
	redisinfra "github.com/sanosuguru/go-train-ticket-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-train-ticket-booking/internal/pkg/clock"
	"github.com/sanosuguru/go-train-ticket-booking/internal/pkg/logger"
)

const availabilityCacheTTL = 30 * time.Second

// CatalogService は列車と座席バケットの管理・検索を担う
type CatalogService struct {
	trainRepo  train.Repository
	bucketRepo inventory.Repository
	ledger     inventory.Ledger
	cache      *redisinfra.AvailabilityCache
	clk        clock.Clock
}

func NewCatalogService(tr train.Repository, br inventory.Repository, ledger inventory.Ledger, cache *redisinfra.AvailabilityCache, clk clock.Clock) *CatalogService {
	if clk == nil {
		clk = clock.System{}
	}
	return &CatalogService{trainRepo: tr, bucketRepo: br, ledger: ledger, cache: cache, clk: clk}
}

type AddTrainInput struct {
	Name        string
	Source      string
	Destination string
	Date        time.Time
	TotalSeats  int // 0 ならデフォルト容量
}

// AddTrain は列車を作成し、デフォルトの座席バケットを付与する
func (s *CatalogService) AddTrain(ctx context.Context, input AddTrainInput) (*train.Train, error) {
	now := s.clk.Now()
	t := train.NewTrain(input.Name, input.Source, input.Destination, input.Date, now)
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := s.trainRepo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("列車作成に失敗しました: %w", err)
	}

	totalSeats := input.TotalSeats
	if totalSeats <= 0 {
		totalSeats = inventory.DefaultTotalSeats
	}
	b := inventory.NewBucket(t.ID, inventory.DefaultClass, inventory.DefaultQuota, totalSeats, now)
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if err := s.bucketRepo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("座席バケット作成に失敗しました: %w", err)
	}

	logger.Info("列車を登録しました",
		zap.String("train_id", t.ID),
		zap.String("name", t.Name),
		zap.Int("total_seats", totalSeats))
	return t, nil
}

type AddSeatClassInput struct {
	TrainID    string
	Class      string
	Quota      string
	TotalSeats int
}

// AddSeatClass は列車に座席クラスのバケットを追加する
func (s *CatalogService) AddSeatClass(ctx context.Context, input AddSeatClassInput) (*inventory.Bucket, error) {
	if _, err := s.trainRepo.GetByID(ctx, input.TrainID); err != nil {
		return nil, fmt.Errorf("列車取得に失敗: %w", err)
	}

	quota := input.Quota
	if quota == "" {
		quota = inventory.DefaultQuota
	}
	b := inventory.NewBucket(input.TrainID, input.Class, quota, input.TotalSeats, s.clk.Now())
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if err := s.bucketRepo.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// SearchTrains は出発地・到着地・運行日で列車を検索する
// フィルタが空の場合は全件を返す
func (s *CatalogService) SearchTrains(ctx context.Context, filter train.SearchFilter) ([]*train.Train, error) {
	return s.trainRepo.Search(ctx, filter)
}

// GetTrain は列車をバケット一覧付きで取得する
func (s *CatalogService) GetTrain(ctx context.Context, id string) (*train.Train, []*inventory.Bucket, error) {
	t, err := s.trainRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	buckets, err := s.bucketRepo.ListByTrainID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("座席バケット取得に失敗: %w", err)
	}
	return t, buckets, nil
}

// Availability はバケットの残席数を取得する
// キャッシュは表示用のスナップショットであり、確保の判定には使われない
func (s *CatalogService) Availability(ctx context.Context, key inventory.BucketKey) (int, error) {
	if s.cache != nil {
		available, err := s.cache.Get(ctx, key)
		if err == nil {
			logger.Debug("キャッシュヒット",
				zap.String("train_id", key.TrainID),
				zap.String("class", key.Class),
				zap.Int("available", available))
			return available, nil
		}
		if !errors.Is(err, redisinfra.ErrCacheMiss) {
			logger.Warn("キャッシュ取得エラー", zap.Error(err))
		}
	}

	available, err := s.ledger.Availability(ctx, key)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, key, available, availabilityCacheTTL); cacheErr != nil {
			logger.Warn("キャッシュ保存エラー", zap.Error(cacheErr))
		}
	}
	return available, nil
}
