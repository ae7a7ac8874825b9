package booking

import "errors"

// Booking ドメインのエラー定義
var (
	ErrBookingNotFound         = errors.New("予約が見つかりません")
	ErrBookingAlreadyCancelled = errors.New("予約は既にキャンセルされています")
	ErrUserIDRequired          = errors.New("ユーザーIDは必須です")
	ErrTrainIDRequired         = errors.New("列車IDは必須です")
	ErrClassRequired           = errors.New("クラスは必須です")
	ErrQuotaRequired           = errors.New("クォータは必須です")
	ErrPassengersRequired      = errors.New("乗客は1名以上必要です")
	ErrPassengerNameRequired   = errors.New("乗客名は必須です")
	ErrInvalidPassengerAge     = errors.New("乗客の年齢は1以上である必要があります")
	ErrPassengerGenderRequired = errors.New("乗客の性別は必須です")
	ErrBerthPrefRequired       = errors.New("寝台希望は必須です")
)
