package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/quiver/pkg/compression"
	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/sniff"
	"github.com/ajitpratap0/quiver/pkg/table"
)

const (
	minAnalyzeLen   = 16
	nullProbeLen    = 1024
	nullRatioCutoff = 0.10
)

// Codec labels reported by AnalyzeCompression when no frame magic matched.
const (
	CodecUnknownShort = "Unknown (insufficient data)"
	CodecNoneLikely   = "None (likely uncompressed)"
	CodecUnknown      = "Unknown (possibly compressed)"
)

// Analysis describes an encoded buffer.
type Analysis struct {
	Format        sniff.Format           `json:"-"`
	FormatName    string                 `json:"format"`
	Batches       int                    `json:"batches"`
	Fields        int                    `json:"fields"`
	Rows          int64                  `json:"rows"`
	Bytes         int                    `json:"bytes"`
	DetectedCodec string                 `json:"detected_codec"`
	Estimates     []compression.Estimate `json:"estimates"`
}

// DecodeDetected sniffs data and decodes it. When the detection was only
// speculative, the other candidate formats are tried in order before the
// first error is returned.
func (e *ArrowEngine) DecodeDetected(ctx context.Context, data []byte) (*table.Table, sniff.Detection, error) {
	det, err := sniff.Detect(data)
	if err != nil {
		return nil, det, err
	}

	t, err := e.Decode(ctx, data, det.Format)
	if err == nil || !det.Speculative {
		return t, det, err
	}

	first := err
	for _, alt := range det.Ambiguous {
		t, err = e.Decode(ctx, data, alt)
		if err == nil {
			e.logger.Debug("speculative detection resolved by fallback",
				zap.Stringer("detected", det.Format), zap.Stringer("decoded", alt))
			det.Format = alt
			return t, det, nil
		}
	}
	return nil, det, first
}

// AnalyzeCompression decodes data and reports its shape, which body codec
// its frames carry, and how each available codec would compress the
// uncompressed IPC stream form of the same table.
func (e *ArrowEngine) AnalyzeCompression(ctx context.Context, data []byte) (*Analysis, error) {
	t, det, err := e.DecodeDetected(ctx, data)
	if err != nil {
		return nil, err
	}
	defer t.Release()

	a := &Analysis{
		Format:        det.Format,
		FormatName:    det.Format.DisplayName(),
		Batches:       t.NumBatches(),
		Fields:        t.NumColumns(),
		Rows:          t.NumRows(),
		Bytes:         len(data),
		DetectedCodec: detectCodec(data),
	}

	plain, err := e.Encode(ctx, t, EncodeOptions{Format: sniff.ArrowIpcStream})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeIO, "failed to re-encode table for estimates")
	}
	a.Estimates, err = compression.EstimateAll(plain, e.SupportedCompressions())
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeIO, "failed to estimate compression ratios")
	}
	return a, nil
}

func detectCodec(data []byte) string {
	if alg, ok := compression.DetectFrame(data); ok {
		if alg == compression.LZ4 {
			return "LZ4_FRAME"
		}
		return string(alg)
	}
	if len(data) < minAnalyzeLen {
		return CodecUnknownShort
	}

	probe := data[:min(len(data), nullProbeLen)]
	zeros := 0
	for _, b := range probe {
		if b == 0 {
			zeros++
		}
	}
	if float64(zeros)/float64(len(probe)) > nullRatioCutoff {
		return CodecNoneLikely
	}
	return CodecUnknown
}
