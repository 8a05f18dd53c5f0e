package sniff

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/linkedin/goavro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quiver/pkg/errors"
)

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func concat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func parquetLike(footer uint32) []byte {
	body := bytes.Repeat([]byte{0x15}, 64)
	return concat([]byte("PAR1"), body, le32(footer), []byte("PAR1"))
}

func TestDetectFormats(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		want        Format
		ambiguous   []Format
		speculative bool
		warnings    int
	}{
		{
			name: "parquet footer magic",
			data: parquetLike(20),
			want: Parquet,
		},
		{
			name:     "parquet with implausible footer stays parquet",
			data:     parquetLike(0),
			want:     Parquet,
			warnings: 1,
		},
		{
			name: "bare parquet magic",
			data: []byte("PAR1"),
			want: Parquet,
		},
		{
			name:      "arrow file magic",
			data:      concat([]byte("ARROW1\x00\x00"), le32(16), make([]byte, 32)),
			want:      ArrowIpcFile,
			ambiguous: []Format{Feather},
		},
		{
			name:      "arrow file magic with zero schema size",
			data:      concat([]byte("ARROW1\x00\x00"), le32(0), make([]byte, 32)),
			want:      ArrowIpcFile,
			ambiguous: []Format{Feather},
			warnings:  1,
		},
		{
			name:      "arrow file magic only",
			data:      []byte("ARROW1\x00\x00"),
			want:      ArrowIpcFile,
			ambiguous: []Format{Feather},
		},
		{
			name: "parquet suffix wins over arrow prefix",
			data: concat([]byte("ARROW1\x00\x00"), le32(16), make([]byte, 32), le32(8), []byte("PAR1")),
			want: Parquet,
		},
		{
			name: "arrow stream continuation marker",
			data: concat([]byte{0xFF, 0xFF, 0xFF, 0xFF}, le32(24), make([]byte, 40)),
			want: ArrowIpcStream,
		},
		{
			name: "feather v1",
			data: concat([]byte("FEA1"), make([]byte, 16)),
			want: Feather,
		},
		{
			name:        "headerless arrow message",
			data:        concat(le32(16), bytes.Repeat([]byte{0x0C}, 36)),
			want:        ArrowIpcFile,
			ambiguous:   []Format{ArrowIpcStream},
			speculative: true,
			warnings:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Detect(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Format)
			assert.Equal(t, tt.ambiguous, d.Ambiguous)
			assert.Equal(t, tt.speculative, d.Speculative)
			assert.Len(t, d.Warnings, tt.warnings)

			f, err := Sniff(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f)
		})
	}
}

func TestDetectDiagnostics(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		message string
	}{
		{name: "three bytes", data: []byte("PAR"), message: "Data too short"},
		{name: "empty", data: nil, message: "got 0"},
		{name: "zip", data: []byte{0x50, 0x4B, 0x03, 0x04, 0x14, 0x00}, message: "Detected ZIP archive format - not supported"},
		{name: "gzip", data: []byte{0x1F, 0x8B, 0x08, 0x00, 0x00}, message: "Detected GZIP format"},
		{name: "bzip2", data: []byte("BZh91AY&SY"), message: "Detected BZIP2 format"},
		{name: "pdf", data: []byte("%PDF-1.7\n"), message: "Detected PDF format"},
		{name: "jpeg", data: []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}, message: "Detected JPEG image format"},
		{name: "png", data: []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, message: "Detected PNG image format"},
		{name: "json", data: []byte(`{"a": 1, "b": 2}`), message: "Detected JSON format"},
		{name: "xml", data: []byte(`<?xml version="1.0"?><a/>`), message: "Detected XML/HTML format"},
		{name: "csv", data: []byte("id,name\n1,alpha\n2,beta\n"), message: "Detected CSV-like format - not supported. Please convert to Arrow IPC or Parquet format"},
		{name: "tsv", data: []byte("id\tname\n1\talpha\n"), message: "Detected TSV-like format"},
		{name: "avro with bad header", data: concat(avroMagic[:], []byte{0x00, 0x01}), message: "Detected Avro object container format - not supported"},
		{
			name:    "stream marker with implausible length is binary noise",
			data:    concat([]byte{0xFF, 0xFF, 0xFF, 0xFF}, le32(0xFFFFFFFF), make([]byte, 16)),
			message: "Detected binary data that may be corrupted",
		},
		{name: "text fallback", data: []byte("hello world without separators"), message: "ASCII text"},
		{name: "binary fallback", data: []byte{0x80, 0x81, 0x82, 0x83, 'a', 'b', 'c', 'd'}, message: "Binary data of unknown format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Detect(tt.data)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeFormatDetection), "got %v", err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestFallbackListsSupportedFormats(t *testing.T) {
	_, err := Detect([]byte("plain words only"))
	require.Error(t, err)
	for _, name := range []string{"Arrow IPC (file or stream)", "Apache Parquet", "Feather (v1 and v2)"} {
		assert.Contains(t, err.Error(), name)
	}
}

func TestDetectAvroNamesSchema(t *testing.T) {
	var buf bytes.Buffer
	w, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:      &buf,
		Schema: `{"type":"record","name":"User","fields":[{"name":"id","type":"long"}]}`,
	})
	require.NoError(t, err)
	require.NoError(t, w.Append([]interface{}{map[string]interface{}{"id": int64(1)}}))

	_, err = Detect(buf.Bytes())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `Detected Avro object container format (record "User", codec null) - not supported`)
}

func TestRandomDelimitedTextIsCSV(t *testing.T) {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789 ,.\n"
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		n := 8 + rng.Intn(200)
		data := make([]byte, n)
		for j := range data {
			data[j] = alphabet[rng.Intn(len(alphabet))]
		}
		data[0] = 'x'
		data[1] = ','
		data[2] = '\n'

		_, err := Detect(data)
		require.Error(t, err, "input %q", data)
		assert.Contains(t, err.Error(), "CSV-like", "input %q", data)
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range Supported() {
		got, err := ParseFormat(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	got, err := ParseFormat(" Stream ")
	require.NoError(t, err)
	assert.Equal(t, ArrowIpcStream, got)

	_, err = ParseFormat("orc")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
	assert.Equal(t, errors.CodeValidation, errors.ToBoundary(err).Code)
	assert.Equal(t, "unknown", Unknown.String())
	assert.Equal(t, "Apache Parquet", Parquet.DisplayName())
}
