package expr

import (
	"golang.org/x/exp/constraints"
)

// Numeric kernels over plain slices. The evaluator widens Arrow arrays to
// int64 or float64 slices with a validity mask, runs these kernels, then
// narrows the result back to the promoted Arrow type. Null propagation is
// handled by the mask alone; kernel bodies never branch on validity except
// where a value rule depends on it (integer division by zero).

type number interface {
	constraints.Integer | constraints.Float
}

func addKernel[T number](a, b []T) []T {
	out := make([]T, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

func subKernel[T number](a, b []T) []T {
	out := make([]T, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

func mulKernel[T number](a, b []T) []T {
	out := make([]T, len(a))
	for i := range a {
		out[i] = a[i] * b[i]
	}
	return out
}

// divFloatKernel divides floats; division by zero follows IEEE semantics
// and yields Inf or NaN rather than null.
func divFloatKernel[T constraints.Float](a, b []T) []T {
	out := make([]T, len(a))
	for i := range a {
		out[i] = a[i] / b[i]
	}
	return out
}

// divIntKernel divides integers; a zero divisor nulls the output row.
func divIntKernel[T constraints.Integer](a, b []T, valid []bool) []T {
	out := make([]T, len(a))
	for i := range a {
		if b[i] == 0 {
			valid[i] = false
			continue
		}
		out[i] = a[i] / b[i]
	}
	return out
}

// modKernel computes the integer remainder; a zero divisor nulls the row.
func modKernel[T constraints.Integer](a, b []T, valid []bool) []T {
	out := make([]T, len(a))
	for i := range a {
		if b[i] == 0 {
			valid[i] = false
			continue
		}
		out[i] = a[i] % b[i]
	}
	return out
}

func negKernel[T number](a []T) []T {
	out := make([]T, len(a))
	for i := range a {
		out[i] = -a[i]
	}
	return out
}

func absKernel[T number](a []T) []T {
	out := make([]T, len(a))
	for i := range a {
		if a[i] < 0 {
			out[i] = -a[i]
		} else {
			out[i] = a[i]
		}
	}
	return out
}

// cmpKernel evaluates an ordered comparison over any ordered element type.
func cmpKernel[T constraints.Ordered](op BinaryOp, a, b []T) []bool {
	out := make([]bool, len(a))
	switch op {
	case OpEq:
		for i := range a {
			out[i] = a[i] == b[i]
		}
	case OpNe:
		for i := range a {
			out[i] = a[i] != b[i]
		}
	case OpLt:
		for i := range a {
			out[i] = a[i] < b[i]
		}
	case OpLe:
		for i := range a {
			out[i] = a[i] <= b[i]
		}
	case OpGt:
		for i := range a {
			out[i] = a[i] > b[i]
		}
	case OpGe:
		for i := range a {
			out[i] = a[i] >= b[i]
		}
	}
	return out
}

// andValid combines two validity masks; a row is valid only when both
// inputs are.
func andValid(a, b []bool) []bool {
	out := make([]bool, len(a))
	for i := range a {
		out[i] = a[i] && b[i]
	}
	return out
}

// broadcastTo repeats a single value across n rows.
func broadcastTo[T any](v T, n int) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = v
	}
	return out
}
