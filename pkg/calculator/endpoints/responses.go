package endpoints

import (
	"net/http"

	httptransport "github.com/go-kit/kit/transport/http"
)

var (
	_ httptransport.Headerer = (*AddResponse)(nil)

	_ httptransport.StatusCoder = (*AddResponse)(nil)
)

// AddResponse collects the response values for the Add method.
type AddResponse struct {
	Output int32 `json:"output"`
	Err    error `json:"-"`
}

func (r AddResponse) StatusCode() int {
	return http.StatusOK
}

func (r AddResponse) Headers() http.Header {
	return http.Header{}
}
