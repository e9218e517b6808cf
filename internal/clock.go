package internal

import "time"

// Clock 提供目前時間，測試時可替換
type Clock interface {
	Now() time.Time
}

// SystemClock 預設時鐘（UTC）
var SystemClock Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// ClockFunc 讓一般函式滿足 Clock
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}
