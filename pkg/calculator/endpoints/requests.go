package endpoints

type Request interface {
	validate() error
}

// AddRequest collects the request parameters for the Add method.
type AddRequest struct {
	N1 int32 `json:"n1"`
	N2 int32 `json:"n2"`
}

// Operands are checked by the decoder; any pair of int32 values is accepted here.
func (r AddRequest) validate() error {
	return nil
}
