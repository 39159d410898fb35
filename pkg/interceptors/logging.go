// Package interceptors holds connect interceptors shared by the RPC services.
package interceptors

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/FACorreiaa/statement-extractor/pkg/logger"
)

// NewLoggingInterceptor logs every unary call with its procedure, duration
// and, on failure, the connect code. Client errors are logged at warn level,
// server errors at error level.
func NewLoggingInterceptor(fallback *slog.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			res, err := next(ctx, req)

			log := logger.FromContext(ctx, fallback).With(
				slog.String("procedure", req.Spec().Procedure),
				slog.Duration("duration", time.Since(start)),
			)
			if err == nil {
				log.Debug("rpc completed")
				return res, nil
			}

			code := connect.CodeOf(err)
			switch code {
			case connect.CodeInternal, connect.CodeUnknown, connect.CodeDataLoss:
				log.Error("rpc failed", slog.String("code", code.String()), slog.Any("error", err))
			default:
				log.Warn("rpc failed", slog.String("code", code.String()), slog.Any("error", err))
			}
			return res, err
		}
	}
}
