package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := loadConfig()

	assert.Equal(t, defServiceName, cfg.serviceName)
	assert.Equal(t, defLogLevel, cfg.logLevel)
	assert.Equal(t, defHTTPPort, cfg.httpPort)
	assert.Equal(t, defGRPCPort, cfg.grpcPort)
	assert.Empty(t, cfg.consulHost)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv(envHTTPPort, "9000")
	t.Setenv(envGRPCPort, "9001")
	t.Setenv(envLogLevel, "debug")
	t.Setenv(envConsulHost, "consul")

	cfg := loadConfig()
	assert.Equal(t, "9000", cfg.httpPort)
	assert.Equal(t, "9001", cfg.grpcPort)
	assert.Equal(t, "debug", cfg.logLevel)
	assert.Equal(t, "consul", cfg.consulHost)
	assert.Equal(t, defConsulPort, cfg.consulPort)
}

func TestNewRegistrarRejectsBadPort(t *testing.T) {
	cfg := loadConfig()
	cfg.httpPort = "http"

	_, err := newRegistrar(cfg, nil)
	assert.Error(t, err)
}
