package train

import "errors"

// Train ドメインのエラー定義
var (
	ErrTrainNotFound       = errors.New("列車が見つかりません")
	ErrTrainNameRequired   = errors.New("列車名は必須です")
	ErrSourceRequired      = errors.New("出発地は必須です")
	ErrDestinationRequired = errors.New("到着地は必須です")
	ErrInvalidDate         = errors.New("運行日が不正です")
)
