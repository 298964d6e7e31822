// Package embedding provides the fixed-length float-vector primitives used
// throughout ragcore: similarity metrics, normalization, weighted averaging,
// and the binary/base64 wire codec for embeddings.
package embedding

import (
	"encoding/base64"
	"encoding/binary"
	"math"

	rerrors "github.com/aman-cerp/ragcore/internal/errors"
)

// Vector is an ordered sequence of 32-bit floats of fixed dimension.
type Vector []float32

// Dimension returns the vector's length.
func (v Vector) Dimension() int {
	return len(v)
}

// Norm returns the Euclidean (L2) norm of v.
func (v Vector) Norm() float64 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	return math.Sqrt(sumSquares)
}

func requireSameDimension(a, b Vector) error {
	if len(a) != len(b) {
		return rerrors.ValidationError("dimension", "vectors must have equal dimension", nil)
	}
	return nil
}

// Dot returns the inner product of a and b. Both must share dimension.
func Dot(a, b Vector) (float64, error) {
	if err := requireSameDimension(a, b); err != nil {
		return 0, err
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum, nil
}

// Cosine returns the cosine similarity between a and b, in [-1, 1].
// Returns 0 when either vector has zero norm, per spec.
func Cosine(a, b Vector) (float64, error) {
	dot, err := Dot(a, b)
	if err != nil {
		return 0, err
	}
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (na * nb), nil
}

// Euclidean returns the L2 distance between a and b.
func Euclidean(a, b Vector) (float64, error) {
	if err := requireSameDimension(a, b); err != nil {
		return 0, err
	}
	var sumSquares float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sumSquares += d * d
	}
	return math.Sqrt(sumSquares), nil
}

// Normalize returns a unit-length copy of v, or a zero vector of the same
// dimension if v has zero norm.
func Normalize(v Vector) Vector {
	norm := v.Norm()
	out := make(Vector, len(v))
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Average returns the weighted average of vs, sum-normalized. Equal weights
// are used when ws is nil. All vectors must share dimension.
func Average(vs []Vector, ws []float64) (Vector, error) {
	if len(vs) == 0 {
		return nil, rerrors.ValidationError("vectors", "at least one vector is required", nil)
	}
	dim := len(vs[0])
	for _, v := range vs[1:] {
		if len(v) != dim {
			return nil, rerrors.ValidationError("dimension", "vectors must have equal dimension", nil)
		}
	}
	if ws == nil {
		ws = make([]float64, len(vs))
		for i := range ws {
			ws[i] = 1.0
		}
	} else if len(ws) != len(vs) {
		return nil, rerrors.ValidationError("weights", "weights must match vector count", nil)
	}

	var total float64
	for _, w := range ws {
		total += w
	}
	if total == 0 {
		return nil, rerrors.ValidationError("weights", "weights must not sum to zero", nil)
	}

	out := make(Vector, dim)
	for i, v := range vs {
		w := ws[i] / total
		for j, x := range v {
			out[j] += float32(float64(x) * w)
		}
	}
	return out, nil
}

// ToBinary encodes v as concatenated little-endian IEEE-754 32-bit floats.
func ToBinary(v Vector) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

// FromBinary decodes a little-endian IEEE-754 32-bit float sequence,
// inferring the dimension from len(data)/4.
func FromBinary(data []byte) (Vector, error) {
	if len(data)%4 != 0 {
		return nil, rerrors.ValidationError("data", "binary embedding length must be a multiple of 4", nil)
	}
	d := len(data) / 4
	out := make(Vector, d)
	for i := 0; i < d; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}

// ToBase64 returns the canonical base64 encoding of v's binary form.
func ToBase64(v Vector) string {
	return base64.StdEncoding.EncodeToString(ToBinary(v))
}

// FromBase64 decodes a base64 string produced by ToBase64.
func FromBase64(s string) (Vector, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, rerrors.ValidationError("data", "invalid base64 embedding", err)
	}
	return FromBinary(data)
}
