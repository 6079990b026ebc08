// log пробрасывает *slog.Logger через context.Context: корневой логгер
// кладётся в контекст один раз при старте, дальше компоненты (сессия,
// канал, диалог) достают его через From, не таская логгер параметром.
package log

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// Into возвращает контекст с привязанным логгером.
func Into(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From возвращает логгер из контекста. Если логгера там нет (или под
// ключом лежит nil), отдаёт slog.Default() — вызывающему всегда
// достаётся рабочий логгер.
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}

	return slog.Default()
}
