package clock

import "time"

// Clock は現在時刻の取得を抽象化する
// サービスに注入することでテスト時に時刻を固定できる
type Clock interface {
	Now() time.Time
}

// System は実時刻を返すClock
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fixed は固定時刻を返すClock（テスト用）
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time { return f.T }
