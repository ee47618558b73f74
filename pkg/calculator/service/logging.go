package service

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

type loggingMiddleware struct {
	logger log.Logger        `json:""`
	next   CalculatorService `json:""`
}

// LoggingMiddleware takes a logger as a dependency
// and returns a ServiceMiddleware.
func LoggingMiddleware(logger log.Logger) Middleware {
	return func(next CalculatorService) CalculatorService {
		return loggingMiddleware{level.Debug(logger), next}
	}
}

func (lm loggingMiddleware) Add(ctx context.Context, in CalculatorInput) (rs int32, err error) {
	defer func(begin time.Time) {
		lm.logger.Log("method", "Add", "took", time.Since(begin), "err", err)
	}(time.Now())

	return lm.next.Add(ctx, in)
}
