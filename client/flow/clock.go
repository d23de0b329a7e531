package flow

import "time"

// Шаг таймеров потоков.
const tickInterval = time.Second

// Clock абстрагирует время: потоки не обращаются к time напрямую, чтобы
// тесты могли крутить секунды вручную.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker — минимальный интерфейс поверх time.Ticker.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTicker(d time.Duration) Ticker {
	return &systemTicker{ticker: time.NewTicker(d)}
}

type systemTicker struct {
	ticker *time.Ticker
}

func (t *systemTicker) C() <-chan time.Time { return t.ticker.C }
func (t *systemTicker) Stop()               { t.ticker.Stop() }

// SystemClock возвращает часы на основе пакета time.
func SystemClock() Clock { return systemClock{} }
