package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	stdopentracing "github.com/opentracing/opentracing-go"
	"github.com/openzipkin/zipkin-go"
	zipkinhttp "github.com/openzipkin/zipkin-go/reporter/http"

	"github.com/cage1016/gokitcalculator/pkg/logging"
	routertransport "github.com/cage1016/gokitcalculator/pkg/router/transport"
)

const (
	defZipkinV2URL      = ""
	defServiceName      = "router"
	defLogLevel         = "info"
	defHTTPPort         = "8080"
	defGRPCPort         = ""
	defRetryTimeout     = "500" // time.Millisecond
	defRetryMax         = "3"
	defCalculatorName   = "calculator"
	defCalculatorURL    = ""
	defCalculatorGRPC   = ""
	defConsulHost       = ""
	defConsulPort       = "8500"
	envZipkinV2URL      = "QS_ZIPKIN_V2_URL"
	envServiceName      = "QS_ROUTER_SERVICE_NAME"
	envLogLevel         = "QS_ROUTER_LOG_LEVEL"
	envHTTPPort         = "QS_ROUTER_HTTP_PORT"
	envGRPCPort         = "QS_ROUTER_GRPC_PORT"
	envRetryMax         = "QS_ROUTER_RETRY_MAX"
	envRetryTimeout     = "QS_ROUTER_RETRY_TIMEOUT"
	envCalculatorName   = "QS_CALCULATOR_SERVICE_NAME"
	envCalculatorURL    = "QS_CALCULATOR_URL"
	envCalculatorGRPC   = "QS_CALCULATOR_GRPC_URL"
	envConsulHost       = "QS_CONSUL_HOST"
	envConsulPort       = "QS_CONSUL_PORT"
	calculatorURLPrefix = "calculator"
)

// Env reads specified environment variable. If no value has been found,
// fallback is returned.
func env(key string, fallback string) (s0 string) {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type config struct {
	serviceName    string
	logLevel       string
	httpPort       string
	grpcPort       string
	zipkinV2URL    string
	retryMax       int64
	retryTimeout   int64
	calculatorName string
	calculatorURL  string
	consulAddr     string
	routerMap      map[string]string
}

func main() {
	cfg := loadConfig(logging.New(os.Stderr, defLogLevel))
	logger := logging.New(os.Stderr, cfg.logLevel)
	logger = log.With(logger, "service", cfg.serviceName)

	var tracer stdopentracing.Tracer
	{
		tracer = stdopentracing.GlobalTracer()
	}

	var zipkinTracer *zipkin.Tracer
	{
		var (
			err           error
			hostPort      = fmt.Sprintf("localhost:%s", cfg.httpPort)
			serviceName   = cfg.serviceName
			useNoopTracer = (cfg.zipkinV2URL == "")
			reporter      = zipkinhttp.NewReporter(cfg.zipkinV2URL)
		)
		defer reporter.Close()
		zEP, _ := zipkin.NewEndpoint(serviceName, hostPort)
		zipkinTracer, err = zipkin.NewTracer(reporter, zipkin.WithLocalEndpoint(zEP), zipkin.WithNoopTracer(useNoopTracer))
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}
		if !useNoopTracer {
			logger.Log("tracer", "Zipkin", "type", "Native", "URL", cfg.zipkinV2URL)
		}
	}

	instancer, err := routertransport.NewInstancer(cfg.consulAddr, cfg.calculatorName, cfg.calculatorURL, logger)
	if err != nil {
		level.Error(logger).Log("consul", cfg.consulAddr, "err", err)
		os.Exit(1)
	}
	defer instancer.Stop()

	r := routertransport.NewRouter()
	r.Mount(calculatorURLPrefix, routertransport.MakeCalculatorHandler(
		instancer,
		int(cfg.retryMax),
		time.Duration(cfg.retryTimeout)*time.Millisecond,
		tracer,
		zipkinTracer,
		logger,
	))

	director := routertransport.NewGRPCDirector(cfg.routerMap, tracer, zipkinTracer)
	defer director.Close()

	errs := make(chan error, 2)
	go startHTTPServer(r, cfg.httpPort, logger, errs)
	go startGRPCServer(director, zipkinTracer, cfg.grpcPort, logger, errs)

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errs <- fmt.Errorf("%s", <-c)
	}()

	errc := <-errs
	level.Info(logger).Log("serviceName", cfg.serviceName, "terminated", errc)
}

func loadConfig(logger log.Logger) (cfg config) {
	retryMax, err := strconv.ParseInt(env(envRetryMax, defRetryMax), 10, 0)
	if err != nil {
		level.Error(logger).Log("envRetryMax", envRetryMax, "error", err)
		retryMax, _ = strconv.ParseInt(defRetryMax, 10, 0)
	}

	retryTimeout, err := strconv.ParseInt(env(envRetryTimeout, defRetryTimeout), 10, 0)
	if err != nil {
		level.Error(logger).Log("envRetryTimeout", envRetryTimeout, "error", err)
		retryTimeout, _ = strconv.ParseInt(defRetryTimeout, 10, 0)
	}

	cfg.serviceName = env(envServiceName, defServiceName)
	cfg.logLevel = env(envLogLevel, defLogLevel)
	cfg.httpPort = env(envHTTPPort, defHTTPPort)
	cfg.grpcPort = env(envGRPCPort, defGRPCPort)
	cfg.zipkinV2URL = env(envZipkinV2URL, defZipkinV2URL)
	cfg.retryMax = retryMax
	cfg.retryTimeout = retryTimeout
	cfg.calculatorName = env(envCalculatorName, defCalculatorName)
	cfg.calculatorURL = env(envCalculatorURL, defCalculatorURL)
	if host := env(envConsulHost, defConsulHost); host != "" {
		cfg.consulAddr = fmt.Sprintf("%s:%s", host, env(envConsulPort, defConsulPort))
	}

	cfg.routerMap = map[string]string{}
	cfg.routerMap[calculatorURLPrefix] = env(envCalculatorGRPC, defCalculatorGRPC)
	return
}

func startHTTPServer(handler http.Handler, port string, logger log.Logger, errs chan error) {
	if port == "" {
		return
	}
	p := fmt.Sprintf(":%s", port)
	level.Info(logger).Log("protocol", "HTTP", "exposed", port)
	errs <- http.ListenAndServe(p, handler)
}

func startGRPCServer(director *routertransport.GRPCDirector, zipkinTracer *zipkin.Tracer, port string, logger log.Logger, errs chan error) {
	if port == "" {
		return
	}
	p := fmt.Sprintf(":%s", port)
	listener, err := net.Listen("tcp", p)
	if err != nil {
		level.Error(logger).Log("GRPC", "proxy", "listen", port, "err", err)
		errs <- err
		return
	}

	level.Info(logger).Log("GRPC", "proxy", "exposed", port)
	errs <- routertransport.NewGRPCProxyServer(director, zipkinTracer).Serve(listener)
}
