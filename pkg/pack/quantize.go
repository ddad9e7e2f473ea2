package pack

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	pkgerrors "github.com/knowpack-dev/knowpack/internal/errors"
)

// SemanticRow is one quantized embedding row: 127-clamped int8 components
// plus the per-row scale needed to dequantize them.
type SemanticRow struct {
	Values []int8
	Scale  float32
}

// quantizeVectors unit-normalizes and int8-quantizes each row independently.
// Rows are scattered into a pre-sized slice by index so goroutine completion
// order never affects output, keeping Build deterministic regardless of
// scheduling.
func quantizeVectors(ctx context.Context, vectors [][]float32, dims uint32) ([]SemanticRow, error) {
	rows := make([]SemanticRow, len(vectors))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, v := range vectors {
		i, v := i, v
		if uint32(len(v)) != dims {
			return nil, pkgerrors.Invalidf(fmt.Sprintf("embeddings[%d]", i), "expected %d dimensions, got %d", dims, len(v))
		}
		for j, x := range v {
			if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
				return nil, pkgerrors.Invalidf(fmt.Sprintf("embeddings[%d]", i), "component %d is not finite", j)
			}
		}
		g.Go(func() error {
			rows[i] = quantizeRow(v)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

// quantizeRow L2-normalizes v, then scales by max|n_i|/127 and rounds each
// component half-away-from-zero, clamped to [-127, 127].
func quantizeRow(v []float32) SemanticRow {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)

	values := make([]int8, len(v))
	if norm == 0 {
		return SemanticRow{Values: values, Scale: 0}
	}

	normalized := make([]float64, len(v))
	maxAbs := 0.0
	for i, x := range v {
		n := float64(x) / norm
		normalized[i] = n
		if a := math.Abs(n); a > maxAbs {
			maxAbs = a
		}
	}

	scale := maxAbs / 127
	if scale == 0 {
		return SemanticRow{Values: values, Scale: 0}
	}

	for i, n := range normalized {
		q := math.Round(n / scale) // math.Round: half away from zero
		if q > 127 {
			q = 127
		}
		if q < -127 {
			q = -127
		}
		values[i] = int8(q)
	}

	return SemanticRow{Values: values, Scale: float32(scale)}
}

// QuantizeRow applies the same L2-normalize-then-int8-scale transform Build
// uses for corpus embeddings to a single query-time vector, so a query
// embedding can be compared against stored rows with the same dot-product
// formula (§4.6 Step 9: "quantize the query embedding through the same
// path").
func QuantizeRow(v []float32) SemanticRow {
	return quantizeRow(v)
}

// Dequantize reconstructs an approximate float32 vector from a SemanticRow.
func Dequantize(row SemanticRow) []float32 {
	out := make([]float32, len(row.Values))
	for i, q := range row.Values {
		out[i] = float32(q) * row.Scale
	}
	return out
}

// float32ToFloat16 converts f to IEEE 754 binary16, rounding to nearest on
// mantissa truncation (a tie rounds away from zero). No ecosystem library in the dependency surface
// offers this; it is a closed, well-known bit transform, not domain logic,
// so the stdlib-only implementation here needs no third-party substitute.
func float32ToFloat16(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 16) & 0x8000)
	exp := int32((bits>>23)&0xff) - 127 + 15
	mant := bits & 0x7fffff

	switch {
	case exp <= 0:
		if exp < -10 {
			return sign
		}
		mant |= 0x800000
		shift := uint32(14 - exp)
		half := mant >> shift
		if mant&(1<<(shift-1)) != 0 {
			half++
		}
		return sign | uint16(half)
	case exp >= 31:
		return sign | 0x7c00
	default:
		half := uint16(exp)<<10 | uint16(mant>>13)
		if mant&0x1000 != 0 {
			half++
		}
		return sign | half
	}
}

// float16ToFloat32 converts an IEEE 754 binary16 value back to float32.
func float16ToFloat32(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h&0x7c00) >> 10
	mant := uint32(h & 0x03ff)

	switch exp {
	case 0:
		if mant == 0 {
			return math.Float32frombits(sign)
		}
		for mant&0x400 == 0 {
			mant <<= 1
			exp--
		}
		exp++
		mant &= 0x3ff
	case 0x1f:
		if mant == 0 {
			return math.Float32frombits(sign | 0x7f800000)
		}
		return math.Float32frombits(sign | 0x7f800000 | mant<<13)
	}

	exp32 := exp - 15 + 127
	bits := sign | exp32<<23 | mant<<13
	return math.Float32frombits(bits)
}
