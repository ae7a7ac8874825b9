package user

import "errors"

// User ドメインのエラー定義
var (
	ErrUserNotFound       = errors.New("ユーザーが見つかりません")
	ErrEmailAlreadyExists = errors.New("メールアドレスは既に登録されています")
	ErrNameRequired       = errors.New("名前は必須です")
	ErrEmailRequired      = errors.New("メールアドレスは必須です")
	ErrPasswordRequired   = errors.New("パスワードは必須です")
	ErrInvalidCredentials = errors.New("メールアドレスまたはパスワードが不正です")
)
