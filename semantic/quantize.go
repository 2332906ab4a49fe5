package semantic

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Tier is the quantization tier selected by vocabulary size (spec §4.9).
type Tier string

const (
	TierExact          Tier = "exact"
	TierFP16           Tier = "fp16"
	TierInt8Coarse     Tier = "int8_coarse"
	TierInt8CoarseFine Tier = "int8_coarse_fine"
)

// SelectTier picks the quantization tier for a vocabulary of size n (spec
// §4.9's table).
func SelectTier(n int) Tier {
	switch {
	case n < 1000:
		return TierExact
	case n < 10000:
		return TierFP16
	case n < 100000:
		return TierInt8Coarse
	default:
		return TierInt8CoarseFine
	}
}

// encodeMatrix serializes a row-major [][]float32 embedding matrix under
// the given tier's quantization (spec §4.9: "Persist: the embedding matrix
// ... as external blobs (compressed)"). No library in the retrieved pack
// performs FP16/INT8 tensor quantization, so this narrow bit-level encoding
// is hand-rolled.
func encodeMatrix(tier Tier, matrix [][]float32) ([]byte, error) {
	if len(matrix) == 0 {
		return nil, nil
	}
	dim := len(matrix[0])
	buf := make([]byte, 0, 9+len(matrix)*dim*4)
	buf = append(buf, byte(tier[0]))
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(len(matrix)))
	binary.BigEndian.PutUint32(hdr[4:8], uint32(dim))
	buf = append(buf, hdr[:]...)

	switch tier {
	case TierFP16:
		for _, row := range matrix {
			for _, v := range row {
				var b [2]byte
				binary.BigEndian.PutUint16(b[:], float32ToFloat16(v))
				buf = append(buf, b[:]...)
			}
		}
	case TierInt8Coarse, TierInt8CoarseFine:
		for _, row := range matrix {
			for _, v := range row {
				buf = append(buf, quantizeInt8(v))
			}
		}
	default: // TierExact and anything unrecognized fall back to full precision
		for _, row := range matrix {
			for _, v := range row {
				var b [4]byte
				binary.BigEndian.PutUint32(b[:], math.Float32bits(v))
				buf = append(buf, b[:]...)
			}
		}
	}
	return buf, nil
}

func decodeMatrix(data []byte) (Tier, [][]float32, error) {
	if len(data) == 0 {
		return TierExact, nil, nil
	}
	if len(data) < 9 {
		return "", nil, fmt.Errorf("%w: truncated matrix header", ErrCorruptIndex)
	}
	// The header keeps only the first byte of the tier name; int8_coarse and
	// int8_coarse_fine share that byte and their encoding, so both decode as
	// TierInt8Coarse.
	var tier Tier
	switch data[0] {
	case TierFP16[0]:
		tier = TierFP16
	case TierInt8Coarse[0]:
		tier = TierInt8Coarse
	default:
		tier = TierExact
	}
	count := int(binary.BigEndian.Uint32(data[1:5]))
	dim := int(binary.BigEndian.Uint32(data[5:9]))
	payload := data[9:]

	matrix := make([][]float32, count)
	switch tier {
	case TierFP16:
		need := count * dim * 2
		if len(payload) < need {
			return "", nil, fmt.Errorf("%w: truncated fp16 payload", ErrCorruptIndex)
		}
		for i := 0; i < count; i++ {
			row := make([]float32, dim)
			for j := 0; j < dim; j++ {
				off := (i*dim + j) * 2
				row[j] = float16ToFloat32(binary.BigEndian.Uint16(payload[off : off+2]))
			}
			matrix[i] = row
		}
	case TierInt8Coarse, TierInt8CoarseFine:
		need := count * dim
		if len(payload) < need {
			return "", nil, fmt.Errorf("%w: truncated int8 payload", ErrCorruptIndex)
		}
		for i := 0; i < count; i++ {
			row := make([]float32, dim)
			for j := 0; j < dim; j++ {
				row[j] = dequantizeInt8(payload[i*dim+j])
			}
			matrix[i] = row
		}
	default:
		need := count * dim * 4
		if len(payload) < need {
			return "", nil, fmt.Errorf("%w: truncated exact payload", ErrCorruptIndex)
		}
		for i := 0; i < count; i++ {
			row := make([]float32, dim)
			for j := 0; j < dim; j++ {
				off := (i*dim + j) * 4
				row[j] = math.Float32frombits(binary.BigEndian.Uint32(payload[off : off+4]))
			}
			matrix[i] = row
		}
	}
	return tier, matrix, nil
}

// quantizeInt8/dequantizeInt8 map the unit range [-1, 1] (vectors are
// normalized before indexing, spec §4.9) onto a signed byte.
func quantizeInt8(v float32) byte {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return byte(int8(v * 127))
}

func dequantizeInt8(b byte) float32 {
	return float32(int8(b)) / 127
}

// float32ToFloat16/float16ToFloat32 implement the standard IEEE-754 binary16
// conversion.
func float32ToFloat16(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 16) & 0x8000)
	exp := int32((bits>>23)&0xff) - 127 + 15
	mantissa := bits & 0x7fffff

	switch {
	case exp <= 0:
		return sign
	case exp >= 0x1f:
		return sign | 0x7c00
	default:
		return sign | uint16(exp<<10) | uint16(mantissa>>13)
	}
}

func float16ToFloat32(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h&0x7c00) >> 10
	mantissa := uint32(h & 0x3ff)

	if exp == 0 {
		if mantissa == 0 {
			return math.Float32frombits(sign)
		}
		// subnormal
		for mantissa&0x400 == 0 {
			mantissa <<= 1
			exp--
		}
		exp++
		mantissa &= 0x3ff
	} else if exp == 0x1f {
		return math.Float32frombits(sign | 0x7f800000 | (mantissa << 13))
	}
	exp = exp + (127 - 15)
	return math.Float32frombits(sign | (exp << 23) | (mantissa << 13))
}
