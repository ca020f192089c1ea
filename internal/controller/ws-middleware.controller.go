package controller

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/pkg/ctxlogger"
	"github.com/sharetube/watchparty/pkg/wsrouter"
)

func (c controller) wsRequestIdWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("ws_request_id", c.generateTimeBasedId()))
			if roomId := c.getConnStateFromCtx(ctx).roomId; roomId != "" {
				ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", roomId))
			}
			return next(ctx, conn, payload)
		}
	}
}

// loggerWSMw logs every message and the outcome of its handler. Payloads are
// not logged since signaling messages carry session descriptions.
func (c controller) loggerWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("message_type", wsrouter.GetMessageTypeFromCtx(ctx)))
			c.logger.DebugContext(ctx, "websocket message received")

			start := time.Now()

			err := next(ctx, conn, payload)
			if err != nil {
				c.logger.InfoContext(ctx, "websocket message rejected", "error", err)
			}

			if c.logger.Enabled(ctx, slog.LevelDebug) {
				var memStats runtime.MemStats
				runtime.ReadMemStats(&memStats)
				c.logger.DebugContext(ctx, "websocket message handled",
					"processing_time_us", time.Since(start).Microseconds(),
					"alloc", memStats.Alloc/1024,
					"goroutines", runtime.NumGoroutine(),
				)
			}

			return err
		}
	}
}
