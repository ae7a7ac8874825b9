package inventory

import "time"

// BucketKey は在庫バケットの識別子（列車・クラス・クォータ）
// Ledger における排他制御の単位でもある
type BucketKey struct {
	TrainID string
	Class   string
	Quota   string
}

// Bucket は座席在庫バケットを表す
// TotalSeats は作成時に固定され、BookedSeats は Ledger のみが変更する
type Bucket struct {
	ID          string
	TrainID     string
	Class       string
	Quota       string
	TotalSeats  int
	BookedSeats int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// デフォルトバケットの定義（列車作成時に自動付与される）
const (
	DefaultClass      = "SL"
	DefaultQuota      = "GENERAL"
	DefaultTotalSeats = 50
)

// NewBucket は新しいバケットを作成する
func NewBucket(trainID, class, quota string, totalSeats int, now time.Time) *Bucket {
	return &Bucket{
		TrainID:     trainID,
		Class:       class,
		Quota:       quota,
		TotalSeats:  totalSeats,
		BookedSeats: 0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Key はバケットの識別子を返す
func (b *Bucket) Key() BucketKey {
	return BucketKey{TrainID: b.TrainID, Class: b.Class, Quota: b.Quota}
}

// Available は残席数を返す
func (b *Bucket) Available() int {
	return b.TotalSeats - b.BookedSeats
}

// Validate はバケットの検証を行う
func (b *Bucket) Validate() error {
	if b.TrainID == "" {
		return ErrTrainIDRequired
	}
	if b.Class == "" {
		return ErrClassRequired
	}
	if b.Quota == "" {
		return ErrQuotaRequired
	}
	if b.TotalSeats < 0 {
		return ErrInvalidTotalSeats
	}
	return nil
}
