package transports

import (
	"context"
	"encoding/json"
	"errors"
	"io/ioutil"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/ratelimit"
	"github.com/go-kit/kit/sd/lb"
	stdopentracing "github.com/opentracing/opentracing-go"
	stdzipkin "github.com/openzipkin/zipkin-go"
	"github.com/openzipkin/zipkin-go/reporter"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cage1016/gokitcalculator/pkg/calculator/endpoints"
	"github.com/cage1016/gokitcalculator/pkg/calculator/service"
)

func newTestTracers(t *testing.T) (stdopentracing.Tracer, *stdzipkin.Tracer) {
	t.Helper()
	zipkinTracer, err := stdzipkin.NewTracer(reporter.NewNoopReporter(), stdzipkin.WithNoopTracer(true))
	require.NoError(t, err)
	return stdopentracing.NoopTracer{}, zipkinTracer
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	otTracer, zipkinTracer := newTestTracers(t)
	logger := log.NewNopLogger()
	eps := endpoints.New(service.New(logger), logger, otTracer, zipkinTracer)
	return httptest.NewServer(NewHTTPHandler(eps, otTracer, zipkinTracer, logger))
}

func TestHTTPAdd(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	cases := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"sum", `{"n1": 2, "n2": 3}`, http.StatusOK, "5"},
		{"opposites", `{"n1": -7, "n2": 7}`, http.StatusOK, "0"},
		{"zeros", `{"n1": 0, "n2": 0}`, http.StatusOK, "0"},
		{"overflow", `{"n1": 2147483647, "n2": 1}`, http.StatusOK, "-2147483648"},
		{"empty body", ``, http.StatusBadRequest, `{"error":"EOF"}`},
		{"syntax error", `{"n1": 2,`, http.StatusBadRequest, `{"error":"unexpected EOF"}`},
		{"missing operand", `{"n1": 2}`, http.StatusBadRequest, `{"error":"missing operand: n2"}`},
		{"not an integer", `{"n1": "two", "n2": 3}`, http.StatusBadRequest, ""},
		{"out of range", `{"n1": 2147483648, "n2": 3}`, http.StatusBadRequest, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/add", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.wantStatus, resp.StatusCode)
			assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
			body, err := ioutil.ReadAll(resp.Body)
			require.NoError(t, err)
			if tc.wantBody != "" {
				assert.Equal(t, tc.wantBody, strings.TrimSpace(string(body)))
			}
		})
	}
}

func TestHTTPHealth(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/add")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHTTPClient(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	otTracer, zipkinTracer := newTestTracers(t)
	svc, err := NewHTTPClient(strings.TrimPrefix(srv.URL, "http://"), otTracer, zipkinTracer, log.NewNopLogger())
	require.NoError(t, err)

	got, err := svc.Add(context.Background(), service.CalculatorInput{N1: 2, N2: 3})
	require.NoError(t, err)
	assert.Equal(t, int32(5), got)

	got, err = svc.Add(context.Background(), service.CalculatorInput{N1: math.MaxInt32, N2: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(math.MinInt32), got)
}

func TestJSONErrorDecoder(t *testing.T) {
	rec := httptest.NewRecorder()
	httpEncodeError(context.Background(), ratelimit.ErrLimited, rec)

	err := JSONErrorDecoder(rec.Result())
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
	assert.Equal(t, ratelimit.ErrLimited.Error(), statusErr.Message)

	plain := &http.Response{Header: http.Header{"Content-Type": {"text/plain"}}, Body: ioutil.NopCloser(strings.NewReader("boom"))}
	assert.EqualError(t, JSONErrorDecoder(plain), "expected JSON formatted error, got Content-Type text/plain")
}

func TestHTTPStatusFromError(t *testing.T) {
	var typeErr *json.UnmarshalTypeError
	unmarshalErr := json.Unmarshal([]byte(`"x"`), new(int32))
	require.True(t, errors.As(unmarshalErr, &typeErr))

	cases := []struct {
		err  error
		want int
	}{
		{service.ErrMissingOperand, http.StatusBadRequest},
		{unmarshalErr, http.StatusBadRequest},
		{ratelimit.ErrLimited, http.StatusTooManyRequests},
		{gobreaker.ErrOpenState, http.StatusServiceUnavailable},
		{&StatusError{Code: http.StatusTeapot, Message: "remote"}, http.StatusTeapot},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, httpStatusFromError(tc.err), "error %v", tc.err)
	}
}

func TestHTTPEncodeErrorUnwrapsRetryError(t *testing.T) {
	rec := httptest.NewRecorder()
	httpEncodeError(context.Background(), lb.RetryError{RawErrors: []error{gobreaker.ErrOpenState}, Final: gobreaker.ErrOpenState}, rec)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"circuit breaker is open"}`, rec.Body.String())
}
