package sniff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/json"
)

// Detection is a successful classification.
type Detection struct {
	Format Format
	// Ambiguous lists other formats that share the matched signature.
	Ambiguous []Format
	// Speculative is set when no magic bytes matched and the format was
	// inferred from a length heuristic.
	Speculative bool
	// Warnings carries failed advisory checks. They never change Format.
	Warnings []string
}

// Sniff classifies data and returns only the format.
func Sniff(data []byte) (Format, error) {
	d, err := Detect(data)
	if err != nil {
		return Unknown, err
	}
	return d.Format, nil
}

// Detect classifies data by its leading and trailing bytes. Rules are tried
// in a fixed order and the first match wins; a later, looser rule never
// overrides an earlier, more specific one. Failures are FORMAT_DETECTION
// errors whose message names the detected foreign format when there is one.
func Detect(data []byte) (Detection, error) {
	n := len(data)
	if n < 4 {
		return Detection{}, errors.FormatDetection(fmt.Sprintf(
			"Data too short to determine format (minimum 4 bytes required, got %d)", n))
	}

	if bytes.HasSuffix(data, parquetMagic[:]) {
		d := Detection{Format: Parquet}
		if n >= 8 {
			footer := binary.LittleEndian.Uint32(data[n-8 : n-4])
			if footer == 0 || uint64(footer) >= uint64(n)/2 {
				d.Warnings = append(d.Warnings, fmt.Sprintf(
					"parquet footer length %d is implausible for a %d byte buffer", footer, n))
			}
		}
		return d, nil
	}

	if bytes.HasPrefix(data, arrowFileMagic[:]) {
		// Feather v2 is byte-identical to an Arrow IPC file; nothing in the
		// bytes tells them apart, so both are reported.
		d := Detection{Format: ArrowIpcFile, Ambiguous: []Format{Feather}}
		if n >= 12 {
			schemaLen := binary.LittleEndian.Uint32(data[8:12])
			if schemaLen == 0 || uint64(schemaLen) >= uint64(n) {
				d.Warnings = append(d.Warnings, fmt.Sprintf(
					"arrow file schema size %d is implausible for a %d byte buffer", schemaLen, n))
			}
		}
		return d, nil
	}

	if n >= 8 && bytes.HasPrefix(data, streamContinue[:]) {
		msgLen := binary.LittleEndian.Uint32(data[4:8])
		if msgLen > 0 && uint64(msgLen) < uint64(n) && msgLen < maxStreamMetaLen {
			return Detection{Format: ArrowIpcStream}, nil
		}
	}

	if bytes.HasPrefix(data, featherV1Magic[:]) {
		return Detection{Format: Feather}, nil
	}

	if msg, ok := foreignDiagnostic(data); ok {
		return Detection{}, errors.FormatDetection(msg)
	}

	if hint, ok := delimitedText(data); ok {
		return Detection{}, errors.FormatDetection(fmt.Sprintf(
			"Detected %s-like format - not supported. Please convert to Arrow IPC or Parquet format", hint))
	}

	if n >= 12 {
		metaLen := binary.LittleEndian.Uint32(data[0:4])
		if metaLen >= 8 && metaLen < maxHeaderlessMeta && uint64(metaLen) < uint64(n) && uint64(metaLen)+8 <= uint64(n) {
			return Detection{
				Format:      ArrowIpcFile,
				Ambiguous:   []Format{ArrowIpcStream},
				Speculative: true,
				Warnings: []string{fmt.Sprintf(
					"no magic bytes found; leading length %d treated as a headerless Arrow message", metaLen)},
			}, nil
		}
	}

	if n >= binarySampleLen && binaryNoise(data[:binarySampleLen]) {
		return Detection{}, errors.FormatDetection(
			"Detected binary data that may be corrupted or unsupported Arrow data. " +
				"Supported formats: Arrow IPC, Parquet, Feather")
	}

	return Detection{}, errors.FormatDetection(fallbackDiagnostic(data))
}

func foreignDiagnostic(data []byte) (string, bool) {
	if bytes.HasPrefix(data, avroMagic[:]) {
		return avroDiagnostic(data), true
	}
	for _, m := range foreignMagics {
		if bytes.HasPrefix(data, m.prefix) {
			return fmt.Sprintf("Detected %s format - not supported", m.name), true
		}
	}
	return "", false
}

// avroDiagnostic opens the object container header to name the writer
// schema and codec. A header that does not parse still gets the generic
// Avro message.
func avroDiagnostic(data []byte) string {
	const generic = "Detected Avro object container format - not supported"

	ocf, err := goavro.NewOCFReader(bytes.NewReader(data))
	if err != nil {
		return generic
	}

	var schema struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(ocf.Codec().Schema()), &schema); err != nil || schema.Name == "" {
		return fmt.Sprintf("Detected Avro object container format (codec %s) - not supported", ocf.CompressionName())
	}
	return fmt.Sprintf("Detected Avro object container format (%s %q, codec %s) - not supported",
		schema.Type, schema.Name, ocf.CompressionName())
}

// delimitedText reports "CSV" or "TSV" when the leading sample is printable
// text with a field separator and a line break.
func delimitedText(data []byte) (string, bool) {
	sample := data
	if len(sample) > csvSampleLen {
		sample = sample[:csvSampleLen]
	}

	var comma, tab, newline bool
	for _, b := range sample {
		if !isPrintable(b) {
			return "", false
		}
		switch b {
		case ',':
			comma = true
		case '\t':
			tab = true
		case '\n', '\r':
			newline = true
		}
	}

	if !newline || !(comma || tab) {
		return "", false
	}
	if comma {
		return "CSV", true
	}
	return "TSV", true
}

func binaryNoise(sample []byte) bool {
	noisy := 0
	for _, b := range sample {
		if !isGraphic(b) && !isWhitespace(b) {
			noisy++
		}
	}
	return noisy >= binaryNoiseCutoff
}

func fallbackDiagnostic(data []byte) string {
	var sb strings.Builder
	sb.WriteString("Unable to detect supported file format.\n")
	sb.WriteString("Supported formats:\n")
	sb.WriteString("  - Arrow IPC (file or stream)\n")
	sb.WriteString("  - Apache Parquet\n")
	sb.WriteString("  - Feather (v1 and v2)\n")
	sb.WriteString("\nData appears to be: ")

	sample := data
	if len(sample) > textSampleLen {
		sample = sample[:textSampleLen]
	}
	if isASCII(sample) {
		sb.WriteString("ASCII text (possibly CSV, JSON, or other text format)")
	} else {
		sb.WriteString("Binary data of unknown format")
	}
	return sb.String()
}

func isPrintable(b byte) bool {
	return (b >= 0x20 && b < 0x7F) || b == '\t' || b == '\n' || b == '\r'
}

func isGraphic(b byte) bool {
	return b > 0x20 && b < 0x7F
}

func isWhitespace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\f', '\r':
		return true
	}
	return false
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
