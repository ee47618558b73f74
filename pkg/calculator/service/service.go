package service

import (
	"context"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// Middleware describes a service (as opposed to endpoint) middleware.
type Middleware func(CalculatorService) CalculatorService

// CalculatorService describes a service that adds two operands together.
type CalculatorService interface {
	Add(ctx context.Context, in CalculatorInput) (rs int32, err error)
}

// the concrete implementation of service interface
type stubCalculatorService struct {
	logger log.Logger `json:"logger"`
}

// New return a new instance of the service.
// If you want to add service middleware this is the place to put them.
func New(logger log.Logger) (s CalculatorService) {
	var svc CalculatorService
	{
		svc = &stubCalculatorService{logger: level.Info(logger)}
		svc = LoggingMiddleware(logger)(svc)
	}
	return svc
}

// Sum adds a and b. Overflow wraps around.
func Sum(a int32, b int32) int32 {
	return a + b
}

// Implement the business logic of Add
func (ca *stubCalculatorService) Add(_ context.Context, in CalculatorInput) (rs int32, err error) {
	rs = Sum(in.N1, in.N2)

	ca.logger.Log("input", in)
	ca.logger.Log("output", rs)

	return rs, nil
}
