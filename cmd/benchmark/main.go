// Command benchmark runs the engine benchmarks and saves their output.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

var (
	suite      = flag.String("suite", "all", "Benchmark suite (encode, decode, kernels, all)")
	outputDir  = flag.String("output", "benchmark-results", "Output directory for results")
	iterations = flag.Int("count", 3, "Number of iterations")
	duration   = flag.Duration("duration", 2*time.Second, "Benchmark duration")
	verbose    = flag.Bool("v", false, "Verbose output")
)

var suites = map[string]string{
	"encode":  "BenchmarkEncode",
	"decode":  "BenchmarkDecode",
	"kernels": "BenchmarkKernels",
}

func main() {
	flag.Parse()

	names, err := selectBenchmarks(*suite)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	timestamp := time.Now().Format("20060102-150405")
	outputFile := filepath.Join(*outputDir, fmt.Sprintf("engine_%s.txt", timestamp))

	fmt.Println("=== Quiver Engine Benchmark ===")
	fmt.Printf("Timestamp: %s\n\n", timestamp)

	failed := false
	for _, benchmark := range names {
		fmt.Printf("Running %s...\n", benchmark)

		args := []string{
			"test",
			"-run", "^$",
			"-bench", "^" + benchmark + "$",
			"-benchmem",
			"-benchtime", duration.String(),
			"-count", fmt.Sprintf("%d", *iterations),
			"./pkg/engine",
		}
		if *verbose {
			args = append(args, "-v")
		}

		cmd := exec.Command("go", args...) //nolint:gosec // Controlled args from predefined benchmarks
		output, err := cmd.CombinedOutput()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Benchmark failed: %v\n", err)
			fmt.Fprintf(os.Stderr, "Output: %s\n", output)
			failed = true
			continue
		}

		if err := appendResult(outputFile, benchmark, output); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save results: %v\n", err)
		}
		printBenchmarkSummary(string(output))
	}

	fmt.Printf("\nBenchmark results saved to: %s\n", outputFile)
	if failed {
		os.Exit(1)
	}
}

func selectBenchmarks(name string) ([]string, error) {
	if name == "all" {
		return []string{suites["encode"], suites["decode"], suites["kernels"]}, nil
	}
	b, ok := suites[name]
	if !ok {
		return nil, fmt.Errorf("unknown suite %q (expected encode, decode, kernels or all)", name)
	}
	return []string{b}, nil
}

func appendResult(path, benchmark string, output []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // results are not secret
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(f, "\n=== %s ===\n", benchmark); err != nil {
		f.Close()
		return err
	}
	if _, err := f.Write(output); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printBenchmarkSummary(output string) {
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "rows/sec") ||
			strings.Contains(line, "ns/op") ||
			strings.Contains(line, "FAIL") {
			fmt.Println("  ", strings.TrimSpace(line))
		}
	}
}
