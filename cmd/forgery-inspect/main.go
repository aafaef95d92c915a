package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/anime-shed/forgery-inspector-go/internal/analyzer"
	"github.com/anime-shed/forgery-inspector-go/internal/config"
	"github.com/anime-shed/forgery-inspector-go/internal/container"
	"github.com/anime-shed/forgery-inspector-go/internal/logger"
	"github.com/anime-shed/forgery-inspector-go/internal/service"
	"github.com/anime-shed/forgery-inspector-go/pkg/models"
)

var (
	infoColor    = color.New(color.FgBlue).SprintFunc()
	successColor = color.New(color.FgGreen).SprintFunc()
	warningColor = color.New(color.FgYellow).SprintFunc()
	errorColor   = color.New(color.FgRed).SprintFunc()
	alertColor   = color.New(color.FgRed, color.Bold).SprintFunc()
)

var (
	// results go to out; progress and diagnostics go to progress, which
	// moves to stderr in JSON mode
	out      io.Writer = os.Stdout
	progress io.Writer = os.Stdout
	errOut   io.Writer = os.Stderr
)

// configureOutput routes progress lines away from stdout when results are
// printed as JSON.
func configureOutput(jsonOutput bool, stdout, stderr io.Writer) {
	out = stdout
	errOut = stderr
	progress = stdout
	if jsonOutput {
		progress = stderr
	}
}

func printInfo(format string, args ...interface{}) {
	fmt.Fprintf(progress, "%s %s\n", infoColor("[*]"), fmt.Sprintf(format, args...))
}

func printSuccess(format string, args ...interface{}) {
	fmt.Fprintf(progress, "%s %s\n", successColor("[+]"), fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...interface{}) {
	fmt.Fprintf(progress, "%s %s\n", warningColor("[!]"), fmt.Sprintf(format, args...))
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(errOut, "%s %s\n", errorColor("[-]"), fmt.Sprintf(format, args...))
}

func printAlert(format string, args ...interface{}) {
	fmt.Fprintf(progress, "%s %s\n", alertColor("[!!!]"), fmt.Sprintf(format, args...))
}

type cliOptions struct {
	quality    int
	threshold  float64
	noMetadata bool
	elaOut     string
	jsonOutput bool
	verbose    bool
}

func main() {
	var (
		filePath    = flag.String("file", "", "Path to a local image to analyze")
		urlPath     = flag.String("url", "", "URL of an image to download and analyze")
		urlFilePath = flag.String("urlfile", "", "Path to a file with one image URL per line")
		quality     = flag.Int("quality", 0, "JPEG quality for error level analysis (1-100)")
		threshold   = flag.Float64("threshold", 0, "Suspicious area threshold (0-1]")
		noMetadata  = flag.Bool("no-metadata", false, "Skip the metadata check")
		elaOut      = flag.String("ela-out", "", "Write the enhanced ELA difference image to this PNG path")
		jsonOutput  = flag.Bool("json", false, "Print results as JSON")
		verbose     = flag.Bool("verbose", false, "Enable verbose output")
	)
	flag.Parse()

	if *filePath == "" && *urlPath == "" && *urlFilePath == "" {
		fmt.Println("Usage:")
		fmt.Println("  forgery-inspect -file <path>")
		fmt.Println("  forgery-inspect -url <url>")
		fmt.Println("  forgery-inspect -urlfile <file-with-urls>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cli := cliOptions{
		quality:    *quality,
		threshold:  *threshold,
		noMetadata: *noMetadata,
		elaOut:     *elaOut,
		jsonOutput: *jsonOutput,
		verbose:    *verbose,
	}
	configureOutput(cli.jsonOutput, os.Stdout, os.Stderr)

	cfg, err := config.LoadFromEnv()
	if err != nil {
		printError("Failed to load config: %v", err)
		os.Exit(1)
	}
	// keep log lines off stdout so -json output stays parseable
	logger.SetOutput(os.Stderr)
	if !cli.verbose {
		cfg.LogLevel = "error"
	}

	c, err := container.NewContainer(cfg, container.WithLocalFileAccess())
	if err != nil {
		printError("Failed to initialize: %v", err)
		os.Exit(1)
	}
	defer c.Close()

	opts, err := buildOptions(c.Service(), cli)
	if err != nil {
		printError("Invalid options: %v", err)
		os.Exit(1)
	}

	ctx := context.Background()
	failed := false

	if *filePath != "" {
		if !runFile(ctx, c, *filePath, opts, cli) {
			failed = true
		}
	}
	if *urlPath != "" {
		if !runURL(ctx, c.Service(), *urlPath, opts, cli) {
			failed = true
		}
	}
	if *urlFilePath != "" {
		printInfo("Processing URLs from file: %s", *urlFilePath)
		urls, err := readLines(*urlFilePath)
		if err != nil {
			printError("Failed to read URL file: %v", err)
			os.Exit(1)
		}
		if !runBatch(ctx, c.Service(), urls, opts, cli) {
			failed = true
		}
	}

	if failed {
		os.Exit(2)
	}
}

func buildOptions(svc service.ForgeryAnalysisService, cli cliOptions) (analyzer.Options, error) {
	req := &models.AnalysisOptionsRequest{IncludeELAImage: cli.elaOut != ""}
	if cli.quality != 0 {
		req.ELAQuality = &cli.quality
	}
	if cli.threshold != 0 {
		req.SuspiciousAreaThreshold = &cli.threshold
	}
	if cli.noMetadata {
		enabled := false
		req.MetadataCheckEnabled = &enabled
	}
	opts := svc.ResolveOptions(req)
	return opts, opts.Validate()
}

func runFile(ctx context.Context, c *container.Container, path string, opts analyzer.Options, cli cliOptions) bool {
	printInfo("Analyzing file: %s", path)
	src, err := c.Images().FetchImage(ctx, path)
	if err != nil {
		printError("Failed to read %s: %v", path, err)
		return false
	}
	resp, err := c.Service().AnalyzeUpload(ctx, path, src.Bytes(), opts)
	if err != nil {
		printError("Analysis of %s failed: %v", path, err)
		return false
	}
	return report(resp, cli)
}

func runURL(ctx context.Context, svc service.ForgeryAnalysisService, imageURL string, opts analyzer.Options, cli cliOptions) bool {
	printInfo("Analyzing URL: %s", imageURL)
	resp, err := svc.AnalyzeURL(ctx, imageURL, opts)
	if err != nil {
		printError("Analysis of %s failed: %v", imageURL, err)
		return false
	}
	return report(resp, cli)
}

func runBatch(ctx context.Context, svc service.ForgeryAnalysisService, urls []string, opts analyzer.Options, cli cliOptions) bool {
	if len(urls) == 0 {
		printWarning("No URLs to analyze")
		return true
	}
	// a single ELA output path cannot hold several images
	opts.IncludeELAImage = false
	batchCLI := cli
	batchCLI.elaOut = ""

	resp, err := svc.AnalyzeBatch(ctx, urls, opts)
	if err != nil {
		printError("Batch analysis failed: %v", err)
		return false
	}
	if cli.jsonOutput {
		return writeJSON(out, resp) == nil && resp.Failed == 0
	}

	for _, item := range resp.Results {
		if item.Error != nil {
			printError("%s: %s", item.Source, item.Error.Message)
			continue
		}
		report(item.Result, batchCLI)
	}
	printInfo("Batch complete: %d succeeded, %d failed", resp.Succeeded, resp.Failed)
	return resp.Failed == 0
}

func report(resp *models.ForgeryAnalysisResponse, cli cliOptions) bool {
	if cli.elaOut != "" && resp.ELAImage != "" {
		if err := writeELAImage(cli.elaOut, resp.ELAImage); err != nil {
			printError("Failed to write ELA image: %v", err)
			return false
		}
		printSuccess("ELA image written to %s", cli.elaOut)
	}

	if cli.jsonOutput {
		return writeJSON(out, resp) == nil
	}

	printTier(resp)
	printInfo("Report: %s", resp.Report)
	if len(resp.FiredAnalyzers) > 0 {
		printInfo("Flagged by: %s", strings.Join(resp.FiredAnalyzers, ", "))
	}
	for i, area := range resp.SuspiciousAreas {
		if !cli.verbose && i >= 5 {
			printInfo("... and %d more suspicious areas (use -verbose)", len(resp.SuspiciousAreas)-i)
			break
		}
		printWarning("Area %d: %dx%d at (%d,%d) type=%s confidence=%.2f",
			i+1, area.Width, area.Height, area.X, area.Y, area.Type, area.Confidence)
	}
	if cli.verbose {
		printVerbose(resp.Analyzers)
	}
	printInfo("Processed in %.2fs (id %s)", resp.ProcessingTimeSec, resp.ID)
	return true
}

func printTier(resp *models.ForgeryAnalysisResponse) {
	switch analyzer.RiskTier(resp.RiskTier) {
	case analyzer.RiskHigh:
		printAlert("%s: HIGH risk of forgery (score %.2f)", resp.Source, resp.ForgeryScore)
	case analyzer.RiskMedium:
		printWarning("%s: MEDIUM risk of forgery (score %.2f)", resp.Source, resp.ForgeryScore)
	case analyzer.RiskLow:
		printWarning("%s: LOW risk of forgery (score %.2f)", resp.Source, resp.ForgeryScore)
	default:
		printSuccess("%s: appears authentic (score %.2f)", resp.Source, resp.ForgeryScore)
	}
}

func printVerbose(d models.AnalyzerDetails) {
	if d.ELA != nil {
		printInfo("ELA: max=%.0f mean=%.2f variance=%.2f peaks=%d",
			d.ELA.Statistics.MaxIntensity, d.ELA.Statistics.Mean, d.ELA.Statistics.Variance, len(d.ELA.Peaks))
	}
	if d.Compression != nil {
		printInfo("Compression: %d inconsistent blocks, suspicion %s%s",
			d.Compression.SuspiciousBlockCount, d.Compression.Suspicion, errorSuffix(d.Compression.Error))
	}
	if d.Noise != nil {
		printInfo("Noise: variance=%.2f snr=%.2f, %d inconsistent blocks%s",
			d.Noise.Variance, d.Noise.SignalToNoise, d.Noise.InconsistentBlockCount, errorSuffix(d.Noise.Error))
	}
	if d.Edges != nil {
		printInfo("Edges: ratio=%.3f average=%.2f%s",
			d.Edges.EdgeRatio, d.Edges.AverageEdgeIntensity, errorSuffix(d.Edges.Error))
	}
	if d.Metadata != nil {
		for _, finding := range d.Metadata.Findings {
			printInfo("Metadata: %s", finding)
		}
		if d.Metadata.Error != "" {
			printWarning("Metadata: %s", d.Metadata.Error)
		}
	}
}

func errorSuffix(msg string) string {
	if msg == "" {
		return ""
	}
	return " (error: " + msg + ")"
}

func writeELAImage(path, encoded string) error {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		printError("Failed to encode result: %v", err)
		return err
	}
	return nil
}

// readLines returns the non-empty, non-comment lines of path.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
