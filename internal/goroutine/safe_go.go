package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/upscpath/prep-platform/internal/logger"
)

// SafeGo запускает горутину с обработкой panic: фоновые задачи (доставка
// кодов, пампы WebSocket) не должны ронять процесс.
func SafeGo(fn func()) {
	go func() {
		defer recoverPanic()
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic.
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer recoverPanic()
		fn(ctx)
	}()
}

func recoverPanic() {
	if r := recover(); r != nil {
		logger.WithComponent("goroutine").
			WithField("panic", r).
			Errorf("panic в горутине\n%s", debug.Stack())
	}
}
