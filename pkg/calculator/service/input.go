package service

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingOperand is returned when a decoded input lacks n1 or n2.
var ErrMissingOperand = errors.New("missing operand")

// CalculatorInput holds the two operands of a single invocation.
type CalculatorInput struct {
	N1 int32 `json:"n1"`
	N2 int32 `json:"n2"`
}

func (in CalculatorInput) String() string {
	return fmt.Sprintf("CalculatorInput{n1=%d, n2=%d}", in.N1, in.N2)
}

// UnmarshalJSON decodes {"n1": <int>, "n2": <int>}. Both operands are
// required and must fit in an int32.
func (in *CalculatorInput) UnmarshalJSON(b []byte) error {
	var raw struct {
		N1 *int32 `json:"n1"`
		N2 *int32 `json:"n2"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch {
	case raw.N1 == nil:
		return fmt.Errorf("%w: n1", ErrMissingOperand)
	case raw.N2 == nil:
		return fmt.Errorf("%w: n2", ErrMissingOperand)
	}
	in.N1, in.N2 = *raw.N1, *raw.N2
	return nil
}
