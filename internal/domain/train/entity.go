package train

import "time"

// Train は列車エンティティを表す
// 作成後は管理者操作以外で変更されない
type Train struct {
	ID          string
	Name        string
	Source      string
	Destination string
	Date        time.Time // 運行日（時刻部分は持たない）
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DateLayout は運行日の表現形式
const DateLayout = "2006-01-02"

// NewTrain は新しい列車を作成する
func NewTrain(name, source, destination string, date time.Time, now time.Time) *Train {
	return &Train{
		Name:        name,
		Source:      source,
		Destination: destination,
		Date:        date,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate は列車の検証を行う
func (t *Train) Validate() error {
	if t.Name == "" {
		return ErrTrainNameRequired
	}
	if t.Source == "" {
		return ErrSourceRequired
	}
	if t.Destination == "" {
		return ErrDestinationRequired
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}
