package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics"
)

type instrumentingMiddleware struct {
	requestCount   metrics.Counter   `json:""`
	requestLatency metrics.Histogram `json:""`
	next           CalculatorService `json:""`
}

// InstrumentingMiddleware returns a service middleware that counts calls and
// records their latency in seconds, labeled by method and error.
func InstrumentingMiddleware(requestCount metrics.Counter, requestLatency metrics.Histogram) Middleware {
	return func(next CalculatorService) CalculatorService {
		return instrumentingMiddleware{
			requestCount:   requestCount,
			requestLatency: requestLatency,
			next:           next,
		}
	}
}

func (im instrumentingMiddleware) Add(ctx context.Context, in CalculatorInput) (rs int32, err error) {
	defer func(begin time.Time) {
		lvs := []string{"method", "Add", "error", fmt.Sprint(err != nil)}
		im.requestCount.With(lvs...).Add(1)
		im.requestLatency.With(lvs...).Observe(time.Since(begin).Seconds())
	}(time.Now())

	return im.next.Add(ctx, in)
}
