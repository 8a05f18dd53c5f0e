package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quiver/pkg/engine"
	"github.com/ajitpratap0/quiver/pkg/errors"
	"github.com/ajitpratap0/quiver/pkg/sniff"
	"github.com/ajitpratap0/quiver/pkg/table"
	"github.com/ajitpratap0/quiver/pkg/testutil"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{}
	root := newRootCommand(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	a.close()
	return out.String(), err
}

func sampleFile(t *testing.T, format sniff.Format) string {
	t.Helper()
	mem := memory.NewGoAllocator()
	schema, recs := testutil.SampleRecords(mem)
	defer testutil.ReleaseAll(recs)

	tbl, err := table.New(schema, recs, nil)
	require.NoError(t, err)
	defer tbl.Release()

	data, err := engine.New(engine.WithAllocator(mem)).Encode(context.Background(), tbl, engine.EncodeOptions{Format: format})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "sample.arrow")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestVersionSkipsSetup(t *testing.T) {
	out, err := run(t, "version", "--config", "/does/not/exist.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Quiver v"+version)
	assert.Contains(t, out, "parquet")
}

func TestSniff(t *testing.T) {
	out, err := run(t, "sniff", sampleFile(t, sniff.ArrowIpcStream))
	require.NoError(t, err)

	var det detection
	require.NoError(t, gojson.Unmarshal([]byte(out), &det))
	assert.Equal(t, "arrow_ipc_stream", det.Format)
	assert.False(t, det.Speculative)
}

func TestConvertThenInspect(t *testing.T) {
	in := sampleFile(t, sniff.ArrowIpcFile)
	dst := filepath.Join(t.TempDir(), "out.parquet")

	_, err := run(t, "convert", in, dst,
		"--format", "parquet",
		"--compression", "zstd",
		"--columns", "id,score",
		"--sort-by", "score", "--desc")
	require.NoError(t, err)

	out, err := run(t, "sniff", dst)
	require.NoError(t, err)
	assert.Contains(t, out, `"parquet"`)

	out, err = run(t, "inspect", dst, "--rows", "2")
	require.NoError(t, err)

	var report struct {
		Stats map[string]map[string]any `json:"statistics"`
		Rows  []map[string]any          `json:"rows"`
	}
	require.NoError(t, gojson.Unmarshal([]byte(out), &report))
	require.Len(t, report.Rows, 2)
	assert.EqualValues(t, 5, report.Rows[0]["id"])
	assert.EqualValues(t, 2, report.Rows[1]["id"])
	assert.NotContains(t, report.Rows[0], "name")
	assert.EqualValues(t, 5, report.Stats["id"]["count"])
}

func TestValidateRejectsUnknownExtension(t *testing.T) {
	_, err := run(t, "validate", sampleFile(t, sniff.ArrowIpcFile), "--extension", "io.arrow.plugin.nope.v1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
}

func TestValidateWithoutGeometryColumns(t *testing.T) {
	out, err := run(t, "validate", sampleFile(t, sniff.ArrowIpcFile), "--extension", "geo")
	require.NoError(t, err)
	assert.Contains(t, out, "OK")
}

func TestMissingInputIsIOError(t *testing.T) {
	_, err := run(t, "inspect", filepath.Join(t.TempDir(), "missing.arrow"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeIO))

	b := errors.ToBoundary(err)
	assert.Equal(t, errors.CodeIO, b.Code)
}
