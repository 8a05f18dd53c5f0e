package bridge

import (
	"context"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"go.uber.org/zap"

	"github.com/ajitpratap0/quiver/pkg/compression"
	"github.com/ajitpratap0/quiver/pkg/engine"
	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/handle"
	"github.com/ajitpratap0/quiver/pkg/logger"
	"github.com/ajitpratap0/quiver/pkg/sniff"
	"github.com/ajitpratap0/quiver/pkg/table"
)

// Sniff outcome labels.
const (
	outcomeOK          = "ok"
	outcomeWarning     = "warning"
	outcomeSpeculative = "speculative"
	outcomeError       = "error"
)

// Decode detects the format of data, decodes it and registers the table.
func (s *Store) Decode(ctx context.Context, data []byte) (handle.Handle, error) {
	ctx = logger.WithOperation(ctx, "decode")
	t, det, err := s.decode(ctx, data)
	if err != nil {
		logger.WithContext(ctx, s.logger).Debug("decode rejected", zap.Int("bytes", len(data)), zap.Error(err))
		return handle.Invalid, err
	}
	rows := t.NumRows()
	h, err := s.insertTable(t)
	if err != nil {
		return handle.Invalid, err
	}
	ctx = logger.WithFormat(logger.WithHandle(ctx, uint32(h)), det.Format.String())
	logger.WithContext(ctx, s.logger).Debug("table registered",
		zap.Int("bytes", len(data)),
		zap.Int64("rows", rows),
		zap.Bool("speculative", det.Speculative))
	return h, nil
}

// DecodeAs decodes data as format without sniffing.
func (s *Store) DecodeAs(ctx context.Context, data []byte, format sniff.Format) (handle.Handle, error) {
	t, err := s.engine.Decode(ctx, data, format)
	if err != nil {
		return handle.Invalid, err
	}
	return s.insertTable(t)
}

func (s *Store) decode(ctx context.Context, data []byte) (*table.Table, sniff.Detection, error) {
	det, err := sniff.Detect(data)
	s.recordSniff(det, err)
	if err != nil {
		return nil, det, err
	}
	if s.strict && len(det.Warnings) > 0 {
		return nil, det, errors.Newf(errors.CodeFormatDetection,
			"strict format detection rejected %s input: %s", det.Format.DisplayName(), strings.Join(det.Warnings, "; "))
	}
	for _, w := range det.Warnings {
		s.logger.Debug("format detection warning", zap.Stringer("format", det.Format), zap.String("warning", w))
	}

	t, err := s.engine.Decode(ctx, data, det.Format)
	if err == nil || !det.Speculative {
		return t, det, err
	}

	first := err
	for _, alt := range det.Ambiguous {
		if t, err = s.engine.Decode(ctx, data, alt); err == nil {
			det.Format = alt
			return t, det, nil
		}
	}
	return nil, det, first
}

func (s *Store) recordSniff(det sniff.Detection, err error) {
	if s.observer == nil {
		return
	}
	outcome := outcomeOK
	switch {
	case err != nil:
		outcome = outcomeError
	case det.Speculative:
		outcome = outcomeSpeculative
	case len(det.Warnings) > 0:
		outcome = outcomeWarning
	}
	s.observer.SniffResult(det.Format.String(), outcome)
}

// CreateTable registers a table built from batches. Every batch must match
// schema.
func (s *Store) CreateTable(schema *arrow.Schema, batches []arrow.Record, metadata map[string]string) (handle.Handle, error) {
	t, err := table.New(schema, batches, metadata)
	if err != nil {
		return handle.Invalid, err
	}
	return s.insertTable(t)
}

// Free releases a table handle. Derived tables stay valid.
func (s *Store) Free(h handle.Handle) error {
	return s.tables.Free(h)
}

// Slice registers rows [offset, offset+length) of h as a new table.
func (s *Store) Slice(h handle.Handle, offset, length int64) (handle.Handle, error) {
	return s.derive(h, func(t *table.Table) (*table.Table, error) {
		return t.Slice(offset, length)
	})
}

// Select registers a projection of the named columns, in the given order.
func (s *Store) Select(h handle.Handle, names []string) (handle.Handle, error) {
	return s.derive(h, func(t *table.Table) (*table.Table, error) {
		return t.Select(names)
	})
}

// SelectIndices is Select by column position.
func (s *Store) SelectIndices(h handle.Handle, indices []int) (handle.Handle, error) {
	if len(indices) == 0 {
		return handle.Invalid, errors.Validation("Select requires at least one column index")
	}
	return s.derive(h, func(t *table.Table) (*table.Table, error) {
		return t.SelectIndices(indices)
	})
}

// WithMetadata registers a table that shares h's batches with md merged
// over its metadata.
func (s *Store) WithMetadata(h handle.Handle, md map[string]string) (handle.Handle, error) {
	return s.derive(h, func(t *table.Table) (*table.Table, error) {
		return t.WithMetadata(md)
	})
}

// derive builds a table from h and registers it.
func (s *Store) derive(h handle.Handle, fn func(*table.Table) (*table.Table, error)) (handle.Handle, error) {
	var out *table.Table
	err := s.withTable(h, func(t *table.Table) error {
		var err error
		out, err = fn(t)
		return err
	})
	if err != nil {
		return handle.Invalid, err
	}
	return s.insertTable(out)
}

// Metadata returns a copy of the table metadata.
func (s *Store) Metadata(h handle.Handle) (map[string]string, error) {
	var md map[string]string
	err := s.withTable(h, func(t *table.Table) error {
		md = t.Metadata()
		return nil
	})
	return md, err
}

// SchemaSummary returns the table schema as JSON:
// {"columns":[{"name","arrow_type","nullable"}],"metadata":{}}.
func (s *Store) SchemaSummary(h handle.Handle) ([]byte, error) {
	var out []byte
	err := s.withTable(h, func(t *table.Table) error {
		var err error
		out, err = t.SummaryJSON()
		return err
	})
	return out, err
}

// FormatInfo describes the table shape in one line.
func (s *Store) FormatInfo(h handle.Handle) (string, error) {
	var info string
	err := s.withTable(h, func(t *table.Table) error {
		info = t.FormatInfo()
		return nil
	})
	return info, err
}

// Write encodes the table behind h. The compression selection is checked
// against the engine's capabilities first; an unavailable codec is an error.
func (s *Store) Write(ctx context.Context, h handle.Handle, format sniff.Format, cfg compression.Config) ([]byte, error) {
	ctx = logger.WithFormat(logger.WithHandle(logger.WithOperation(ctx, "write"), uint32(h)), format.String())
	log := logger.WithContext(ctx, s.logger)

	wo, err := cfg.ToEngineOptions(s.engine)
	if err != nil {
		log.Debug("write rejected", zap.Error(err))
		return nil, err
	}

	var out []byte
	err = s.withTable(h, func(t *table.Table) error {
		var err error
		out, err = s.engine.Encode(ctx, t, engine.EncodeOptions{Format: format, Compression: wo})
		return err
	})
	if err != nil {
		log.Debug("write failed", zap.Error(err))
		return nil, err
	}
	log.Debug("table written", zap.Int("bytes", len(out)), zap.String("compression", string(wo.Codec)))
	return out, nil
}

// ValidateArrowData sniffs and decodes data without registering anything.
func (s *Store) ValidateArrowData(ctx context.Context, data []byte) (sniff.Detection, error) {
	t, det, err := s.decode(ctx, data)
	if err != nil {
		return det, err
	}
	t.Release()
	return det, nil
}

type compressionAnalyzer interface {
	AnalyzeCompression(ctx context.Context, data []byte) (*engine.Analysis, error)
}

// AnalyzeCompression reports the shape and codec of an encoded buffer and
// estimates what each available codec would save.
func (s *Store) AnalyzeCompression(ctx context.Context, data []byte) (*engine.Analysis, error) {
	a, ok := s.engine.(compressionAnalyzer)
	if !ok {
		return nil, errors.New(errors.CodeNotImplemented, "the configured engine does not analyze compression")
	}
	return a.AnalyzeCompression(ctx, data)
}

// SupportedCompressions lists the codecs the engine can write.
func (s *Store) SupportedCompressions() []compression.Algorithm {
	return s.engine.SupportedCompressions()
}

// ValidateExtensions runs every enabled extension over the columns it
// applies to and returns the first failure.
func (s *Store) ValidateExtensions(h handle.Handle) error {
	kinds := s.extensions.Enabled()
	if len(kinds) == 0 {
		return nil
	}
	return s.withTable(h, func(t *table.Table) error {
		for i, f := range t.Schema().Fields() {
			for _, k := range kinds {
				if !k.Matches(f) {
					continue
				}
				if err := k.ValidateField(f); err != nil {
					return err
				}
				for b, rec := range t.Batches() {
					if err := k.ValidateColumn(rec.Column(i)); err != nil {
						return errors.Wrapf(err, errors.CodeValidation, "column '%s' failed %s validation", f.Name, k.ID()).
							WithDetail("column", i).WithDetail("batch", b)
					}
				}
			}
		}
		return nil
	})
}
