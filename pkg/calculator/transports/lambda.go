package transports

import (
	"context"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/cage1016/gokitcalculator/pkg/calculator/endpoints"
	"github.com/cage1016/gokitcalculator/pkg/calculator/service"
)

// LambdaHandler is the function signature handed to lambda.Start. The runtime
// decodes the event into a CalculatorInput and encodes the sum as a JSON number.
type LambdaHandler func(ctx context.Context, in service.CalculatorInput) (int32, error)

// NewLambdaHandler makes the Add endpoint available to the AWS Lambda runtime.
func NewLambdaHandler(endpoints endpoints.Endpoints, logger log.Logger) LambdaHandler {
	return func(ctx context.Context, in service.CalculatorInput) (int32, error) {
		if lc, ok := lambdacontext.FromContext(ctx); ok {
			level.Debug(logger).Log("request_id", lc.AwsRequestID, "function", lambdacontext.FunctionName)
		}
		return endpoints.Add(ctx, in)
	}
}
