package compression

// Estimate is the outcome of compressing a sample with one codec.
type Estimate struct {
	Algorithm      Algorithm `json:"algorithm"`
	OriginalSize   int       `json:"original_size"`
	CompressedSize int       `json:"compressed_size"`
	// Ratio is CompressedSize / OriginalSize; lower is better.
	Ratio float64 `json:"ratio"`
}

// EstimateAll compresses data with every algorithm in algs, skipping NONE
// and anything unavailable, and reports the resulting sizes.
func EstimateAll(data []byte, algs []Algorithm) ([]Estimate, error) {
	out := make([]Estimate, 0, len(algs))
	for _, alg := range algs {
		if alg == None || !IsAvailable(alg) {
			continue
		}
		c, err := NewCompressor(alg, Default)
		if err != nil {
			return nil, err
		}
		compressed, err := c.Compress(data)
		if err != nil {
			return nil, err
		}

		e := Estimate{Algorithm: alg, OriginalSize: len(data), CompressedSize: len(compressed)}
		if len(data) > 0 {
			e.Ratio = float64(len(compressed)) / float64(len(data))
		}
		out = append(out, e)
	}
	return out, nil
}
