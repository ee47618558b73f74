package transport

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/sd"
	consulsd "github.com/go-kit/kit/sd/consul"
	"github.com/go-kit/kit/sd/lb"
	consulapi "github.com/hashicorp/consul/api"
	stdopentracing "github.com/opentracing/opentracing-go"
	stdzipkin "github.com/openzipkin/zipkin-go"

	"github.com/cage1016/gokitcalculator/pkg/calculator/endpoints"
	"github.com/cage1016/gokitcalculator/pkg/calculator/service"
	"github.com/cage1016/gokitcalculator/pkg/calculator/transports"
)

// MakeCalculatorHandler exposes the calculator HTTP API, balancing each call
// across the instances reported by instancer.
func MakeCalculatorHandler(instancer sd.Instancer, retryMax int, retryTimeout time.Duration, tracer stdopentracing.Tracer, zipkinTracer *stdzipkin.Tracer, logger log.Logger) http.Handler {
	var eps = endpoints.Endpoints{}
	{
		factory := calculatorFactory(endpoints.MakeAddEndpoint, tracer, zipkinTracer, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		eps.AddEndpoint = lb.Retry(retryMax, retryTimeout, balancer)
	}

	return transports.NewHTTPHandler(eps, tracer, zipkinTracer, logger)
}

func calculatorFactory(
	makeEndpoint func(service.CalculatorService) endpoint.Endpoint,
	tracer stdopentracing.Tracer,
	zipkinTracer *stdzipkin.Tracer,
	logger log.Logger) sd.Factory {

	return func(instance string) (endpoint.Endpoint, io.Closer, error) {
		svc, err := transports.NewHTTPClient(instance, tracer, zipkinTracer, logger)
		if err != nil {
			return nil, nil, err
		}
		return makeEndpoint(svc), nil, nil
	}
}

// NewInstancer watches consulAddr for passing instances of serviceName when
// consulAddr is set, and otherwise serves the comma separated instances list.
func NewInstancer(consulAddr string, serviceName string, instances string, logger log.Logger) (sd.Instancer, error) {
	if consulAddr == "" {
		var fixed sd.FixedInstancer
		for _, instance := range strings.Split(instances, ",") {
			if instance = strings.TrimSpace(instance); instance != "" {
				fixed = append(fixed, instance)
			}
		}
		return fixed, nil
	}

	consulConfig := consulapi.DefaultConfig()
	consulConfig.Address = consulAddr
	consulClient, err := consulapi.NewClient(consulConfig)
	if err != nil {
		return nil, err
	}
	return consulsd.NewInstancer(consulsd.NewClient(consulClient), logger, serviceName, nil, true), nil
}
