package inventory

import "errors"

// 在庫ドメインのエラー定義
var (
	ErrBucketNotFound      = errors.New("クラス・クォータが見つかりません")
	ErrBucketAlreadyExists = errors.New("同じクラス・クォータのバケットが既に存在します")
	ErrInsufficientSeats   = errors.New("空席が不足しています")
	ErrInvalidSeatCount    = errors.New("座席数は0以上である必要があります")
	ErrTrainIDRequired     = errors.New("列車IDは必須です")
	ErrClassRequired       = errors.New("クラスは必須です")
	ErrQuotaRequired       = errors.New("クォータは必須です")
	ErrInvalidTotalSeats   = errors.New("総座席数は0以上である必要があります")
)
