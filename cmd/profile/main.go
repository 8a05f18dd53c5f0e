// Command profile captures pprof profiles while the engine round-trips
// data through every container format.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/quiver/pkg/compression"
	"github.com/ajitpratap0/quiver/pkg/engine"
	"github.com/ajitpratap0/quiver/pkg/mmap"
	"github.com/ajitpratap0/quiver/pkg/sniff"
	"github.com/ajitpratap0/quiver/pkg/table"
	"github.com/ajitpratap0/quiver/pkg/testutil"
)

func main() {
	// Command-line flags
	var (
		duration     = flag.Duration("duration", 30*time.Second, "Profiling duration")
		outputDir    = flag.String("output", "./profiles", "Output directory for profiles")
		profileTypes = flag.String("types", "cpu,memory", "Profile types (cpu,memory,block,mutex,goroutine,all)")
		input        = flag.String("input", "", "Arrow, Feather or Parquet file to round-trip (synthetic data when empty)")
		rows         = flag.Int("rows", 1_000_000, "Rows of synthetic data")
		codec        = flag.String("compression", "zstd", "Body compression used when encoding")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -types cpu -duration 30s\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -input data.parquet -types all\n", os.Args[0])
	}

	flag.Parse()

	types := parseProfileTypes(*profileTypes)
	alg, err := compression.ParseAlgorithm(*codec)
	if err != nil {
		log.Fatalf("Invalid compression: %v", err)
	}

	fmt.Printf("Duration: %v\n", *duration)
	fmt.Printf("Profile types: %s\n", strings.Join(types, ","))
	fmt.Printf("Output directory: %s\n", *outputDir)

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	if contains(types, "block") {
		runtime.SetBlockProfileRate(1)
	}
	if contains(types, "mutex") {
		runtime.SetMutexProfileFraction(1)
	}

	mem := memory.NewGoAllocator()
	e := engine.New(engine.WithAllocator(mem))
	tbl, err := loadTable(e, mem, *input, *rows)
	if err != nil {
		log.Fatalf("Failed to load input: %v", err)
	}
	defer tbl.Release()

	if contains(types, "cpu") {
		cpuProfileFile := filepath.Join(*outputDir, "cpu.prof")
		f, err := os.Create(cpuProfileFile)
		if err != nil {
			log.Fatalf("Failed to create CPU profile: %v", err)
		}
		defer f.Close()

		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatalf("Failed to start CPU profile: %v", err)
		}
		fmt.Printf("CPU profiling enabled, writing to: %s\n", cpuProfileFile)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	n := roundTrip(ctx, e, tbl, alg)
	elapsed := time.Since(start)

	if contains(types, "cpu") {
		pprof.StopCPUProfile()
	}

	fmt.Printf("Round trips: %d in %v (%.0f rows/sec)\n", n, elapsed.Round(time.Millisecond),
		float64(n)*float64(tbl.NumRows())/elapsed.Seconds())

	if contains(types, "memory") {
		memProfileFile := filepath.Join(*outputDir, "mem.prof")
		f, err := os.Create(memProfileFile)
		if err != nil {
			log.Fatalf("Failed to create memory profile: %v", err)
		}
		defer f.Close()

		runtime.GC() // Get up-to-date statistics
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatalf("Failed to write memory profile: %v", err)
		}
		fmt.Printf("Memory profile written to: %s\n", memProfileFile)
	}

	for _, profileType := range types {
		switch profileType {
		case "block", "mutex", "goroutine":
			writeProfile(profileType, filepath.Join(*outputDir, profileType+".prof"))
		}
	}

	fmt.Printf("Profiling completed successfully\n")
}

func loadTable(e *engine.ArrowEngine, mem memory.Allocator, path string, rows int) (*table.Table, error) {
	if path == "" {
		schema, recs := testutil.GenerateRecords(mem, rows, 64*1024)
		defer testutil.ReleaseAll(recs)
		return table.New(schema, recs, nil)
	}

	f, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, _, err := e.DecodeDetected(context.Background(), f.Bytes())
	return t, err
}

// roundTrip encodes and decodes tbl through every format until ctx is done
// and returns the number of completed round trips.
func roundTrip(ctx context.Context, e *engine.ArrowEngine, tbl *table.Table, alg compression.Algorithm) int {
	opts := compression.WriteOptions{Codec: alg}
	n := 0
	for {
		for _, format := range sniff.Supported() {
			if ctx.Err() != nil {
				return n
			}
			data, err := e.Encode(ctx, tbl, engine.EncodeOptions{Format: format, Compression: opts})
			if err != nil {
				log.Printf("Encode %s failed: %v", format, err)
				return n
			}
			got, err := e.Decode(ctx, data, format)
			if err != nil {
				log.Printf("Decode %s failed: %v", format, err)
				return n
			}
			got.Release()
			n++
		}
	}
}

// writeProfile writes a specific profile type to file
func writeProfile(profileName, filename string) {
	profile := pprof.Lookup(profileName)
	if profile == nil {
		fmt.Printf("Profile %s not found\n", profileName)
		return
	}

	f, err := os.Create(filename)
	if err != nil {
		log.Printf("Failed to create %s profile: %v", profileName, err)
		return
	}
	defer f.Close()

	if err := profile.WriteTo(f, 0); err != nil {
		log.Printf("Failed to write %s profile: %v", profileName, err)
		return
	}

	fmt.Printf("%s profile written to: %s\n", profileName, filename)
}

// parseProfileTypes parses the profile types string
func parseProfileTypes(typesStr string) []string {
	if typesStr == "all" {
		return []string{"cpu", "memory", "block", "mutex", "goroutine"}
	}

	parts := strings.Split(typesStr, ",")
	types := make([]string, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "cpu", "memory", "mem", "block", "mutex", "goroutine":
			if part == "mem" {
				part = "memory"
			}
			types = append(types, part)
		}
	}

	return types
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
