package main

import (
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	stdopentracing "github.com/opentracing/opentracing-go"
	"github.com/openzipkin/zipkin-go"
	"github.com/openzipkin/zipkin-go/reporter"
	zipkinhttp "github.com/openzipkin/zipkin-go/reporter/http"

	"github.com/cage1016/gokitcalculator/pkg/calculator/endpoints"
	"github.com/cage1016/gokitcalculator/pkg/calculator/service"
	"github.com/cage1016/gokitcalculator/pkg/calculator/transports"
	"github.com/cage1016/gokitcalculator/pkg/logging"
)

const (
	defZipkinV2URL string = ""
	defServiceName string = "calculator"
	defLogLevel    string = "info"
	envZipkinV2URL string = "QS_ZIPKIN_V2_URL"
	envServiceName string = "QS_CALCULATOR_SERVICE_NAME"
	envLogLevel    string = "QS_CALCULATOR_LOG_LEVEL"
)

type config struct {
	serviceName string
	logLevel    string
	zipkinV2URL string
}

// Env reads specified environment variable. If no value has been found,
// fallback is returned.
func env(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	cfg := loadConfig()

	// Lambda forwards stdout and stderr to CloudWatch Logs.
	logger := logging.New(os.Stderr, cfg.logLevel)
	logger = log.With(logger, "service", cfg.serviceName)

	zipkinTracer, rep, err := newZipkinTracer(cfg)
	if err != nil {
		level.Error(logger).Log("err", err)
		os.Exit(1)
	}

	eps := endpoints.New(service.New(logger), logger, stdopentracing.GlobalTracer(), zipkinTracer)

	// The sandbox may be frozen between invocations and is shut down with
	// SIGTERM, so the reporter is flushed there.
	lambda.StartWithOptions(
		transports.NewLambdaHandler(eps, logger),
		lambda.WithEnableSIGTERM(func() {
			if err := rep.Close(); err != nil {
				level.Warn(logger).Log("reporter", "zipkin", "err", err)
			}
		}),
	)
}

func loadConfig() (cfg config) {
	cfg.serviceName = env(envServiceName, defServiceName)
	cfg.logLevel = env(envLogLevel, defLogLevel)
	cfg.zipkinV2URL = env(envZipkinV2URL, defZipkinV2URL)
	return cfg
}

// newZipkinTracer returns a noop tracer when no collector URL is configured.
// Spans are sent one at a time so nothing waits in a batch while the sandbox
// is frozen.
func newZipkinTracer(cfg config) (*zipkin.Tracer, reporter.Reporter, error) {
	var (
		useNoopTracer = (cfg.zipkinV2URL == "")
		rep           reporter.Reporter
	)
	if useNoopTracer {
		rep = reporter.NewNoopReporter()
	} else {
		rep = zipkinhttp.NewReporter(cfg.zipkinV2URL, zipkinhttp.BatchSize(1))
	}

	zEP, _ := zipkin.NewEndpoint(cfg.serviceName, "localhost:0")
	zipkinTracer, err := zipkin.NewTracer(rep, zipkin.WithLocalEndpoint(zEP), zipkin.WithNoopTracer(useNoopTracer))
	if err != nil {
		rep.Close()
		return nil, nil, err
	}
	return zipkinTracer, rep, nil
}
