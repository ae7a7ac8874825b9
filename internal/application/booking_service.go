package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/train"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/transaction"
	"github.com/sanosuguru/go-train-ticket-booking/internal/infrastructure/queue"
	redisinfra "github.com/sanosuguru/go-train-ticket-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-train-ticket-booking/internal/pkg/clock"
	"github.com/sanosuguru/go-train-ticket-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-train-ticket-booking/internal/pkg/metrics"
)

const (
	bucketLockTTL        = 10 * time.Second
	compensationRetries  = 3
	compensationInterval = 100 * time.Millisecond
)

// BookingService は座席確保・予約永続化・補償解放を編成する
type BookingService struct {
	txManager   transaction.Manager
	bookingRepo booking.Repository
	trainRepo   train.Repository
	ledger      inventory.Ledger
	lockManager redisinfra.LockManagerInterface
	publisher   queue.Publisher
	cache       *redisinfra.AvailabilityCache
	clk         clock.Clock
}

func NewBookingService(
	tm transaction.Manager,
	br booking.Repository,
	tr train.Repository,
	ledger inventory.Ledger,
	lm redisinfra.LockManagerInterface,
	pub queue.Publisher,
	cache *redisinfra.AvailabilityCache,
	clk clock.Clock,
) *BookingService {
	if clk == nil {
		clk = clock.System{}
	}
	return &BookingService{
		txManager:   tm,
		bookingRepo: br,
		trainRepo:   tr,
		ledger:      ledger,
		lockManager: lm,
		publisher:   pub,
		cache:       cache,
		clk:         clk,
	}
}

type PassengerInput struct {
	Name      string
	Age       int
	Gender    string
	BerthPref string
}

type CreateBookingInput struct {
	UserID     string
	TrainID    string
	Class      string
	Quota      string
	Passengers []PassengerInput
}

// CreateBooking は座席を確保して予約を作成する
// 帳簿の確保が成功した後に永続化が失敗した場合は補償として座席を解放する
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*booking.Booking, error) {
	passengers := make([]booking.Passenger, 0, len(input.Passengers))
	for _, p := range input.Passengers {
		passengers = append(passengers, booking.Passenger{
			Name:      p.Name,
			Age:       p.Age,
			Gender:    p.Gender,
			BerthPref: p.BerthPref,
		})
	}

	b := booking.NewBooking(input.UserID, input.TrainID, input.Class, input.Quota, passengers, s.clk.Now())
	if err := b.Validate(); err != nil {
		s.countBooking("validation_error")
		return nil, err
	}

	if _, err := s.trainRepo.GetByID(ctx, input.TrainID); err != nil {
		return nil, fmt.Errorf("列車取得に失敗: %w", err)
	}

	key := b.BucketKey()

	// 分散ロックで同一バケットへの確保を直列化する（未設定なら帳簿の排他制御のみ）
	if s.lockManager != nil {
		lock, err := s.lockManager.AcquireLockWithRetry(ctx, s.bucketLockKey(key), bucketLockTTL, 3, 100*time.Millisecond)
		if err != nil {
			if errors.Is(err, redisinfra.ErrLockNotAcquired) {
				return nil, inventory.ErrInsufficientSeats
			}
			return nil, fmt.Errorf("ロック取得に失敗: %w", err)
		}
		defer lock.Release(ctx)
	}

	// 座席確保。これが唯一の入場判定であり、残席表示とは独立
	if err := s.ledger.TryReserve(ctx, key, b.SeatCount()); err != nil {
		if errors.Is(err, inventory.ErrInsufficientSeats) {
			s.countBooking("insufficient_seats")
		}
		return nil, err
	}
	s.countSeats("reserve", b.SeatCount())

	// 予約の永続化。失敗時は確保済み座席を解放して巻き戻す
	err := transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		return s.bookingRepo.Create(ctx, tx, b)
	})
	if err != nil {
		s.compensateReserve(ctx, key, b.SeatCount())
		s.countBooking("compensated")
		return nil, fmt.Errorf("予約の保存に失敗: %w", err)
	}

	s.countBooking("confirmed")
	s.invalidateCache(ctx, key)
	s.publishEvent(ctx, queue.RoutingKeyBookingConfirmed, b)
	logger.Info("予約を確定しました",
		zap.String("booking_id", b.ID),
		zap.String("train_id", b.TrainID),
		zap.String("class", b.Class),
		zap.String("quota", b.Quota),
		zap.Int("seats", b.SeatCount()))
	return b, nil
}

// compensateReserve は確保済み座席の補償解放を行う
// リトライしても失敗した場合は整合性ワーカーの修正に委ねる
func (s *BookingService) compensateReserve(ctx context.Context, key inventory.BucketKey, count int) {
	var lastErr error
	for i := 0; i < compensationRetries; i++ {
		released, err := s.ledger.Release(ctx, key, count)
		if err == nil {
			s.countSeats("release", released)
			return
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		time.Sleep(compensationInterval)
	}
	logger.Error("補償解放に失敗しました。整合性チェックで修正されます",
		zap.String("train_id", key.TrainID),
		zap.String("class", key.Class),
		zap.String("quota", key.Quota),
		zap.Int("seats", count),
		zap.Error(lastErr))
}

// CancelBooking は予約をキャンセルし、確保していた座席を解放する
// 解放先は予約に保存されたバケットキーから導出する
func (s *BookingService) CancelBooking(ctx context.Context, userID, bookingID string) (*booking.Booking, error) {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		// 他ユーザーの予約は存在を明かさない
		return nil, booking.ErrBookingNotFound
	}
	if err := b.Cancel(s.clk.Now()); err != nil {
		return nil, err
	}

	// 状態遷移はストア側の compare-and-set で確定する
	// 並行キャンセルでは勝者だけが成功し、解放も勝者の1回に限られる
	err = transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		return s.bookingRepo.UpdateStatus(ctx, tx, b)
	})
	if err != nil {
		if errors.Is(err, booking.ErrBookingAlreadyCancelled) || errors.Is(err, booking.ErrBookingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("予約の更新に失敗: %w", err)
	}

	// 状態遷移の確定後に解放する。解放失敗は整合性チェックで修正される
	released, err := s.ledger.Release(ctx, b.BucketKey(), b.SeatCount())
	if err != nil {
		logger.Error("座席解放に失敗しました。整合性チェックで修正されます",
			zap.String("booking_id", b.ID),
			zap.Error(err))
	} else {
		s.countSeats("release", released)
		if released < b.SeatCount() {
			logger.Warn("解放要求が予約数を上回りました",
				zap.String("booking_id", b.ID),
				zap.Int("requested", b.SeatCount()),
				zap.Int("released", released))
			if m := metrics.Get(); m != nil {
				m.LedgerShortReleases.Inc()
			}
		}
	}

	s.invalidateCache(ctx, b.BucketKey())
	s.publishEvent(ctx, queue.RoutingKeyBookingCancelled, b)
	logger.Info("予約をキャンセルしました",
		zap.String("booking_id", b.ID),
		zap.Int("seats", b.SeatCount()))
	return b, nil
}

// BookingDetails は予約と紐づく列車情報
type BookingDetails struct {
	Booking *booking.Booking
	Train   *train.Train
}

// GetBookingDetails は予約の詳細を列車情報付きで取得する
func (s *BookingService) GetBookingDetails(ctx context.Context, userID, bookingID string) (*BookingDetails, error) {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, booking.ErrBookingNotFound
	}
	t, err := s.trainRepo.GetByID(ctx, b.TrainID)
	if err != nil {
		return nil, fmt.Errorf("列車取得に失敗: %w", err)
	}
	return &BookingDetails{Booking: b, Train: t}, nil
}

// GetUserBookings はユーザーの予約一覧を取得する
func (s *BookingService) GetUserBookings(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.bookingRepo.GetByUserID(ctx, userID, limit, offset)
}

// invalidateCache は残席キャッシュを無効化する
// 失敗してもTTLで収束するため処理は継続する
func (s *BookingService) invalidateCache(ctx context.Context, key inventory.BucketKey) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, key); err != nil {
		logger.Warn("残席キャッシュの無効化に失敗",
			zap.String("train_id", key.TrainID),
			zap.String("class", key.Class),
			zap.String("quota", key.Quota),
			zap.Error(err))
	}
}

func (s *BookingService) bucketLockKey(key inventory.BucketKey) string {
	return fmt.Sprintf("bucket:%s:%s:%s", key.TrainID, key.Class, key.Quota)
}

func (s *BookingService) publishEvent(ctx context.Context, routingKey string, b *booking.Booking) {
	if s.publisher == nil {
		return
	}
	event := queue.BookingEvent{
		BookingID:  b.ID,
		UserID:     b.UserID,
		TrainID:    b.TrainID,
		Class:      b.Class,
		Quota:      b.Quota,
		SeatCount:  b.SeatCount(),
		OccurredAt: s.clk.Now(),
	}
	var err error
	switch routingKey {
	case queue.RoutingKeyBookingConfirmed:
		err = s.publisher.PublishBookingConfirmed(ctx, event)
	case queue.RoutingKeyBookingCancelled:
		err = s.publisher.PublishBookingCancelled(ctx, event)
	}
	if err != nil {
		logger.Warn("イベント発行に失敗しました", zap.String("routing_key", routingKey), zap.Error(err))
	}
}

func (s *BookingService) countBooking(result string) {
	if m := metrics.Get(); m != nil {
		m.BookingsTotal.WithLabelValues(result).Inc()
	}
}

func (s *BookingService) countSeats(operation string, n int) {
	if m := metrics.Get(); m != nil {
		m.LedgerSeatsTotal.WithLabelValues(operation).Add(float64(n))
	}
}
