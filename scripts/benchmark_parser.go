package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// BenchmarkResult represents a parsed benchmark result.
type BenchmarkResult struct {
	Name        string
	Operation   string
	Size        string // Sub-benchmark size label, e.g. "4KB"
	Iterations  int
	NsPerOp     float64
	BytesPerOp  int64
	AllocsPerOp int64
}

var (
	inputFile = flag.String(
		"input",
		"",
		"Input file with benchmark output (stdin if not specified)",
	)
	outputFile = flag.String("output", "", "Output markdown file (stdout if not specified)")
	quiet      = flag.Bool("quiet", false, "Suppress progress output")
)

func main() {
	flag.Parse()

	// Read benchmark output
	var scanner *bufio.Scanner
	var inputF *os.File
	if *inputFile != "" {
		f, err := os.Open(*inputFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening input file: %v\n", err)
			os.Exit(1)
		}
		inputF = f
		scanner = bufio.NewScanner(f)
	} else {
		scanner = bufio.NewScanner(os.Stdin)
	}

	// Parse benchmarks
	results := parseBenchmarks(scanner)

	if !*quiet {
		fmt.Fprintf(os.Stderr, "Parsed %d benchmark results\n", len(results))
	}

	// Generate markdown report
	report := generateMarkdownReport(results)

	// Write output
	if *outputFile != "" {
		err := os.WriteFile(*outputFile, []byte(report), 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			if inputF != nil {
				inputF.Close()
			}
			os.Exit(1)
		}
		if !*quiet {
			fmt.Fprintf(os.Stderr, "Report written to %s\n", *outputFile)
		}
	} else {
		fmt.Fprint(os.Stdout, report)
	}

	// Close input file if opened
	if inputF != nil {
		inputF.Close()
	}
}

func parseBenchmarks(scanner *bufio.Scanner) []BenchmarkResult {
	var results []BenchmarkResult

	// Regex to parse benchmark output lines
	// BenchmarkAllocFree/4KB-8    10000    1245 ns/op    0 B/op    0 allocs/op
	benchmarkRegex := regexp.MustCompile(
		`^(Benchmark\S+)\s+(\d+)\s+([\d.]+)\s+ns/op(?:\s+([\d.]+)\s+(?:B|MB)/op)?(?:\s+([\d.]+)\s+allocs/op)?`,
	)

	for scanner.Scan() {
		line := scanner.Text()

		// Try to parse as JSON (from -json flag)
		var testEvent map[string]any
		if err := json.Unmarshal([]byte(line), &testEvent); err == nil {
			if output, ok := testEvent["Output"].(string); ok {
				line = output
			}
		}

		// Parse benchmark line
		matches := benchmarkRegex.FindStringSubmatch(strings.TrimSpace(line))
		if matches == nil {
			continue
		}

		name := matches[1]
		iterations, _ := strconv.Atoi(matches[2])
		nsPerOp, _ := strconv.ParseFloat(matches[3], 64)

		var bytesPerOp int64
		var allocsPerOp int64

		if matches[4] != "" {
			bytesPerOp, _ = strconv.ParseInt(matches[4], 10, 64)
		}
		if matches[5] != "" {
			allocsPerOp, _ = strconv.ParseInt(matches[5], 10, 64)
		}

		operation, size := splitBenchmarkName(name)

		results = append(results, BenchmarkResult{
			Name:        name,
			Operation:   operation,
			Size:        size,
			Iterations:  iterations,
			NsPerOp:     nsPerOp,
			BytesPerOp:  bytesPerOp,
			AllocsPerOp: allocsPerOp,
		})
	}

	// Sort by operation then size
	sort.Slice(results, func(i, j int) bool {
		if results[i].Operation != results[j].Operation {
			return results[i].Operation < results[j].Operation
		}
		return results[i].Size < results[j].Size
	})

	return results
}

func splitBenchmarkName(name string) (string, string) {
	// Format: Benchmark<Operation>/<size>-<procs>
	// Or: Benchmark<Operation>-<procs> for benchmarks without size splits

	parts := strings.Split(name, "/")

	operation := strings.TrimPrefix(parts[0], "Benchmark")

	var size string
	if len(parts) >= 2 {
		size = parts[len(parts)-1]
	} else {
		// Strip the -N procs suffix from the operation itself
		if dashIdx := strings.LastIndex(operation, "-"); dashIdx > 0 {
			operation = operation[:dashIdx]
		}
		return operation, ""
	}

	// Strip the -N procs suffix from the size label
	if dashIdx := strings.LastIndex(size, "-"); dashIdx > 0 {
		size = size[:dashIdx]
	}

	return operation, size
}

func generateMarkdownReport(results []BenchmarkResult) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Benchmark Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", time.Now().Format("2006-01-02 15:04:05")))

	// Summary statistics
	operations := make(map[string]bool)
	zeroAlloc := 0
	for _, r := range results {
		operations[r.Operation] = true
		if r.AllocsPerOp == 0 {
			zeroAlloc++
		}
	}

	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- **Total benchmarks**: %d\n", len(results)))
	sb.WriteString(fmt.Sprintf("- **Operations covered**: %d\n", len(operations)))
	sb.WriteString(
		fmt.Sprintf(
			"- **Zero-allocation benchmarks**: %d (%.1f%%)\n",
			zeroAlloc,
			float64(zeroAlloc)/float64(max(len(results), 1))*100,
		),
	)
	sb.WriteString("\n")

	// Detailed results table
	sb.WriteString("## Detailed Results\n\n")
	sb.WriteString("| Operation | Size | ns/op | Memory (B/op) | Allocs |\n")
	sb.WriteString("|-----------|------|-------|---------------|--------|\n")

	for _, r := range results {
		size := r.Size
		if size == "" {
			size = "-"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
			r.Operation,
			size,
			formatNumber(r.NsPerOp),
			formatBytes(r.BytesPerOp),
			formatNumber(float64(r.AllocsPerOp)),
		))
	}

	sb.WriteString("\n")

	// Category summaries
	sb.WriteString("## Performance by Category\n\n")

	categories := categorizeOperations(results)
	for _, category := range []string{"Allocation", "Resizing", "Workloads", "Introspection", "Verification"} {
		res := categories[category]
		if len(res) == 0 {
			continue
		}

		avgNs := 0.0
		for _, r := range res {
			avgNs += r.NsPerOp
		}
		avgNs /= float64(len(res))

		sb.WriteString(fmt.Sprintf("- **%s**: %d benchmarks, %s ns/op average\n",
			category, len(res), formatNumber(avgNs)))
	}

	sb.WriteString("\n")

	// Notes
	sb.WriteString("## Notes\n\n")
	sb.WriteString("- **ns/op**: Wall time per operation, lower is better\n")
	sb.WriteString("- **Memory**: Go heap bytes per operation, excludes the arena itself\n")
	sb.WriteString("- **Allocs**: Go heap allocations per operation, steady state should be zero\n")

	return sb.String()
}

func categorizeOperations(results []BenchmarkResult) map[string][]BenchmarkResult {
	categories := map[string][]BenchmarkResult{
		"Allocation":    {},
		"Resizing":      {},
		"Workloads":     {},
		"Introspection": {},
		"Verification":  {},
	}

	for _, r := range results {
		op := strings.ToLower(r.Operation)

		switch {
		case strings.Contains(op, "realloc"):
			categories["Resizing"] = append(categories["Resizing"], r)
		case strings.Contains(op, "alloc") || strings.Contains(op, "free"):
			categories["Allocation"] = append(categories["Allocation"], r)
		case strings.Contains(op, "churn") || strings.Contains(op, "trace"):
			categories["Workloads"] = append(categories["Workloads"], r)
		case strings.Contains(op, "check") || strings.Contains(op, "verify"):
			categories["Verification"] = append(categories["Verification"], r)
		default:
			categories["Introspection"] = append(categories["Introspection"], r)
		}
	}

	return categories
}

func formatNumber(n float64) string {
	if n >= 1000000 {
		return fmt.Sprintf("%.2fM", n/1000000)
	} else if n >= 1000 {
		return fmt.Sprintf("%.1fK", n/1000)
	}
	return fmt.Sprintf("%.0f", n)
}

func formatBytes(b int64) string {
	if b >= 1024*1024 {
		return fmt.Sprintf("%.2fMB", float64(b)/(1024*1024))
	} else if b >= 1024 {
		return fmt.Sprintf("%.1fKB", float64(b)/1024)
	}
	return fmt.Sprintf("%dB", b)
}
