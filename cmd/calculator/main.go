package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	"github.com/go-kit/kit/sd"
	consulsd "github.com/go-kit/kit/sd/consul"
	"github.com/gorilla/mux"
	consulapi "github.com/hashicorp/consul/api"
	stdopentracing "github.com/opentracing/opentracing-go"
	"github.com/openzipkin/zipkin-go"
	zipkinhttp "github.com/openzipkin/zipkin-go/reporter/http"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	pb "github.com/cage1016/gokitcalculator/pb/calculator"
	"github.com/cage1016/gokitcalculator/pkg/calculator/endpoints"
	"github.com/cage1016/gokitcalculator/pkg/calculator/service"
	"github.com/cage1016/gokitcalculator/pkg/calculator/transports"
	"github.com/cage1016/gokitcalculator/pkg/logging"
)

const (
	defZipkinV2URL string = ""
	defNameSpace   string = "gokitcalculator"
	defServiceName string = "calculator"
	defLogLevel    string = "info"
	defServiceHost string = "localhost"
	defHTTPPort    string = "8180"
	defGRPCPort    string = "8181"
	defConsulHost  string = ""
	defConsulPort  string = "8500"
	envZipkinV2URL string = "QS_ZIPKIN_V2_URL"
	envNameSpace   string = "QS_CALCULATOR_NAMESPACE"
	envServiceName string = "QS_CALCULATOR_SERVICE_NAME"
	envLogLevel    string = "QS_CALCULATOR_LOG_LEVEL"
	envServiceHost string = "QS_CALCULATOR_SERVICE_HOST"
	envHTTPPort    string = "QS_CALCULATOR_HTTP_PORT"
	envGRPCPort    string = "QS_CALCULATOR_GRPC_PORT"
	envConsulHost  string = "QS_CONSUL_HOST"
	envConsulPort  string = "QS_CONSUL_PORT"
)

type config struct {
	nameSpace   string
	serviceName string
	logLevel    string
	serviceHost string
	httpPort    string
	grpcPort    string
	zipkinV2URL string
	consulHost  string
	consulPort  string
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
			level.Error(logger).Log("err", err)
			os.Exit(1)
		}
		if !useNoopTracer {
			logger.Log("tracer", "Zipkin", "type", "Native", "URL", cfg.zipkinV2URL)
		}
	}

	errs := make(chan error, 2)
	grpcServer, httpHandler := NewServer(cfg, tracer, zipkinTracer, logger)

	if cfg.consulHost != "" {
		registrar, err := newRegistrar(cfg, logger)
		if err != nil {
			level.Error(logger).Log("consul", cfg.consulHost, "err", err)
			return
		}
		registrar.Register()
		defer registrar.Deregister()
	}

	go startHTTPServer(cfg, httpHandler, logger, errs)
	go startGRPCServer(cfg, grpcServer, logger, errs)

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errs <- fmt.Errorf("%s", <-c)
	}()

	err := <-errs
	level.Info(logger).Log("serviceName", cfg.serviceName, "terminated", err)
}

func loadConfig() (cfg config) {
	cfg.nameSpace = env(envNameSpace, defNameSpace)
	cfg.serviceName = env(envServiceName, defServiceName)
	cfg.logLevel = env(envLogLevel, defLogLevel)
	cfg.serviceHost = env(envServiceHost, defServiceHost)
	cfg.httpPort = env(envHTTPPort, defHTTPPort)
	cfg.grpcPort = env(envGRPCPort, defGRPCPort)
	cfg.zipkinV2URL = env(envZipkinV2URL, defZipkinV2URL)
	cfg.consulHost = env(envConsulHost, defConsulHost)
	cfg.consulPort = env(envConsulPort, defConsulPort)
	return cfg
}

func NewServer(cfg config, tracer stdopentracing.Tracer, zipkinTracer *zipkin.Tracer, logger log.Logger) (pb.CalculatorServer, http.Handler) {
	fieldKeys := []string{"method", "error"}
	requestCount := kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: cfg.nameSpace,
		Subsystem: cfg.serviceName,
		Name:      "request_count",
		Help:      "Number of requests received.",
	}, fieldKeys)
	requestLatency := kitprometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: cfg.nameSpace,
		Subsystem: cfg.serviceName,
		Name:      "request_latency_seconds",
		Help:      "Total duration of requests in seconds.",
	}, fieldKeys)

	svc := service.InstrumentingMiddleware(requestCount, requestLatency)(service.New(logger))
	eps := endpoints.New(svc, logger, tracer, zipkinTracer)

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.PathPrefix("/").Handler(transports.NewHTTPHandler(eps, tracer, zipkinTracer, logger))
	return transports.MakeGRPCServer(eps, tracer, zipkinTracer, logger), r
}

func newRegistrar(cfg config, logger log.Logger) (sd.Registrar, error) {
	port, err := strconv.Atoi(cfg.httpPort)
	if err != nil {
		return nil, err
	}

	consulConfig := consulapi.DefaultConfig()
	consulConfig.Address = fmt.Sprintf("%s:%s", cfg.consulHost, cfg.consulPort)
	consulClient, err := consulapi.NewClient(consulConfig)
	if err != nil {
		return nil, err
	}

	registration := &consulapi.AgentServiceRegistration{
		ID:      fmt.Sprintf("%s-%s-%d", cfg.serviceName, cfg.serviceHost, port),
		Name:    cfg.serviceName,
		Tags:    []string{cfg.nameSpace},
		Address: cfg.serviceHost,
		Port:    port,
		Check: &consulapi.AgentServiceCheck{
			HTTP:     fmt.Sprintf("http://%s:%d/health", cfg.serviceHost, port),
			Interval: "10s",
			Timeout:  "1s",
		},
	}
	return consulsd.NewRegistrar(consulsd.NewClient(consulClient), registration, logger), nil
}

func startHTTPServer(cfg config, httpHandler http.Handler, logger log.Logger, errs chan error) {
	p := fmt.Sprintf(":%s", cfg.httpPort)
	level.Info(logger).Log("serviceName", cfg.serviceName, "protocol", "HTTP", "exposed", cfg.httpPort)
	errs <- http.ListenAndServe(p, httpHandler)
}

func startGRPCServer(cfg config, grpcServer pb.CalculatorServer, logger log.Logger, errs chan error) {
	p := fmt.Sprintf(":%s", cfg.grpcPort)
	listener, err := net.Listen("tcp", p)
	if err != nil {
		level.Error(logger).Log("serviceName", cfg.serviceName, "protocol", "GRPC", "listen", cfg.grpcPort, "err", err)
		errs <- err
		return
	}

	level.Info(logger).Log("serviceName", cfg.serviceName, "protocol", "GRPC", "exposed", cfg.grpcPort)
	server := transports.NewGRPCServer(grpcServer, cfg.serviceName)
	errs <- server.Serve(listener)
}
