package inventory

import "context"

// Ledger は座席在庫の唯一の真実の源
// BookedSeats を変更できるのは Ledger の実装だけである
//
// 同一バケットに対する TryReserve / Release は直列化される
// 異なるバケットへの操作は互いにブロックしない
type Ledger interface {
	// TryReserve は booked + count <= total の検査と加算を
	// 単一のアトミックな操作として行う
	// 空きが足りない場合は何も変更せず ErrInsufficientSeats を返す
	// count == 0 は何もせず成功、count < 0 は ErrInvalidSeatCount
	TryReserve(ctx context.Context, key BucketKey, count int) error

	// Release は booked を count 減算する（0 で下限クランプ）
	// 実際に解放できた数を返す。戻り値が count より小さい場合は
	// 呼び出し側の論理エラーであり、呼び出し側が整合性警告として扱う
	Release(ctx context.Context, key BucketKey, count int) (int, error)

	// Availability は残席数のスナップショットを返す
	// 予約可否の判断には使用してはならない（判断は TryReserve のみ）
	Availability(ctx context.Context, key BucketKey) (int, error)
}

// Reconciler は帳簿と予約記録の突き合わせを行う
// 解放漏れ（過小解放）は安全側の状態であり、ここで修復する
type Reconciler interface {
	// ReconcileBuckets は CONFIRMED 予約の乗客数から各バケットの
	// BookedSeats を再計算し、修正したバケット数を返す
	ReconcileBuckets(ctx context.Context) (int, error)
}

// Repository はバケット定義リポジトリのインターフェース
// バケットの作成・参照のみを担い、BookedSeats の増減は Ledger が行う
type Repository interface {
	// Create は新しいバケットを作成する
	Create(ctx context.Context, bucket *Bucket) error

	// GetByKey はバケットキーからバケットを取得する
	GetByKey(ctx context.Context, key BucketKey) (*Bucket, error)

	// ListByTrainID は列車のバケット一覧を取得する
	ListByTrainID(ctx context.Context, trainID string) ([]*Bucket, error)
}
