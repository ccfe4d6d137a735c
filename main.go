package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"allocbench/pkg/allocbench"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var fTxns int
var fMaxOps int
var fMaxKey int
var fCases int
var fReadOnly int
var fSeed int64

var fBenchmarkDir string
var fWorkloadDir string
var fOutDir string

var fEngine []string
var fWorkers int
var fTimeout int
var fLogFile string
var fAnalysisFile string
var fNoAnalysis bool
var fOutputFormat string
var fVerbose bool

func init() {
	pflag.IntVarP(&fTxns, "txns", "t", 1000, "total number of transactions per workload")
	pflag.IntVarP(&fMaxOps, "max-ops", "o", 10, "maximum number of operations per transaction")
	pflag.IntVarP(&fMaxKey, "max-key", "k", 1000, "maximum key id, keys are drawn from [1, max-key]")
	pflag.IntVarP(&fCases, "cases", "c", 1, "number of workload cases to generate")
	pflag.IntVarP(&fReadOnly, "read-only", "r", 0, "percentage of read-only transactions (0-100)")
	pflag.Int64Var(&fSeed, "seed", 0, "random seed for the random generator, 0 seeds from the clock")
	pflag.StringVarP(&fBenchmarkDir, "benchmarks", "b", "data/benchmarks", "directory of benchmark template files")
	pflag.StringVarP(&fWorkloadDir, "workloads", "i", "data/random_workload", "directory of workload files to allocate")
	pflag.StringVarP(&fOutDir, "out", "d", "", "output directory (defaults per command)")
	pflag.StringSliceVarP(&fEngine, "engine", "e", nil, "allocation engine command; input and output paths are appended, eg. --engine java,-cp,target/classes,algorithm.Allocator,allocate")
	pflag.IntVarP(&fWorkers, "workers", "w", allocbench.DefaultWorkers, "number of concurrent engine invocations")
	pflag.IntVar(&fTimeout, "timeout", 300, "per-invocation timeout in seconds, 0 disables")
	pflag.StringVar(&fLogFile, "log", "data/allocation_performance.csv", "performance log to write (run) or read (analyze)")
	pflag.StringVar(&fAnalysisFile, "analysis", "data/allocation_performance_analysis.csv", "analysis summary to write")
	pflag.BoolVar(&fNoAnalysis, "no-analysis", false, "skip writing the analysis summary after a run")
	pflag.StringVar(&fOutputFormat, "output", "auto", "output format, `auto`, `interactive` or `csv`")
	pflag.BoolVarP(&fVerbose, "verbose", "v", false, "debug logging")
}

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), `allocbench generates transactional workloads and benchmarks an
isolation-level allocation engine over them.

Usage:
  allocbench COMMAND [OPTION]...

Commands:
  random    generate random workloads
  bench     instantiate benchmark templates into workloads
  sweep     generate a one-parameter-at-a-time workload campaign
  run       allocate every workload file through the engine, record timings
  analyze   summarize an existing performance log

Options:
`)
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if pflag.NArg() == 0 {
		pflag.Usage()
		os.Exit(1)
	}

	log := newLogger(fVerbose)
	defer log.Sync()

	switch pflag.Arg(0) {
	case "random":
		runRandom(log)
	case "bench":
		runBench(log)
	case "sweep":
		runSweep(log)
	case "run":
		runAllocate(log)
	case "analyze":
		runAnalyze(log)
	default:
		log.Errorf("unknown command '%s'", pflag.Arg(0))
		pflag.Usage()
		os.Exit(1)
	}
}

func newLogger(verbose bool) *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %s\n", err)
		os.Exit(1)
	}
	return logger.Sugar()
}

func validateGenerationFlags(log *zap.SugaredLogger, needMaxOps bool) {
	if fTxns <= 0 {
		log.Fatal("--txns must be positive")
	}
	if needMaxOps && fMaxOps <= 0 {
		log.Fatal("--max-ops must be positive")
	}
	if fMaxKey <= 0 {
		log.Fatal("--max-key must be positive")
	}
	if fCases <= 0 {
		log.Fatal("--cases must be positive")
	}
	if fReadOnly < 0 || fReadOnly > 100 {
		log.Fatal("--read-only must be between 0 and 100")
	}
}

func runRandom(log *zap.SugaredLogger) {
	validateGenerationFlags(log, true)
	outDir := fOutDir
	if outDir == "" {
		outDir = "data/random_workload"
	}

	seed := fSeed
	if seed == 0 {
		seed = time.Now().Unix()
	}
	g := &allocbench.RandomGenerator{
		Txns:            fTxns,
		MaxOps:          fMaxOps,
		MaxKey:          fMaxKey,
		ReadOnlyPercent: fReadOnly,
		Rand:            rand.New(rand.NewSource(seed)),
	}
	n, err := g.GenerateRandomWorkloads(outDir, fCases, log)
	if err != nil {
		log.Fatalf("generation failed: %s", err)
	}
	log.Infof("generated %d workload files in %s (seed %d)", n, outDir, seed)
}

func runBench(log *zap.SugaredLogger) {
	validateGenerationFlags(log, false)
	outDir := fOutDir
	if outDir == "" {
		outDir = "data/bench_workload"
	}

	g := &allocbench.Instantiator{
		TotalTxns: fTxns,
		MaxKey:    fMaxKey,
	}
	n, err := g.GenerateBenchWorkloads(fBenchmarkDir, outDir, fCases, log)
	if err != nil {
		log.Fatalf("generation failed: %s", err)
	}
	log.Infof("generated %d workload files in %s", n, outDir)
}

func runSweep(log *zap.SugaredLogger) {
	if fCases <= 0 {
		log.Fatal("--cases must be positive")
	}
	outDir := fOutDir
	if outDir == "" {
		outDir = "data/random_workload"
	}

	n, err := allocbench.GenerateSweep(allocbench.DefaultSweepPlan(), outDir, fCases, log)
	if err != nil {
		log.Fatalf("sweep generation failed: %s", err)
	}
	log.Infof("generated %d workload files in %s", n, outDir)
}

func runAllocate(log *zap.SugaredLogger) {
	if fWorkers <= 0 {
		log.Fatal("--workers must be positive")
	}
	if fTimeout < 0 {
		log.Fatal("--timeout must not be negative")
	}
	outDir := fOutDir
	if outDir == "" {
		outDir = "data/allocated_random_workload"
	}

	engine, err := allocbench.NewExecEngine(fEngine)
	if err != nil {
		log.Fatalf("--engine is required: %s", err)
	}

	files, err := filepath.Glob(filepath.Join(fWorkloadDir, "*.json"))
	if err != nil {
		log.Fatalf("failed to list workload files: %s", err)
	}
	sort.Strings(files)
	if len(files) == 0 {
		log.Fatalf("no workload files found in %s", fWorkloadDir)
	}

	out, err := allocbench.NewOutput(fOutputFormat)
	if err != nil {
		log.Fatal(err)
	}

	stopCh, stop := allocbench.SetupSignalHandler(log)
	defer stop()

	harness := &allocbench.Harness{
		Engine:  engine,
		Workers: fWorkers,
		Timeout: time.Duration(fTimeout) * time.Second,
		Out:     out,
		Log:     log,
	}
	result, err := harness.Run(files, outDir, stopCh)
	if err != nil {
		out.Errorf(err.Error())
		os.Exit(1)
	}

	if err := allocbench.WriteRecords(fLogFile, result.Records); err != nil {
		out.Errorf(err.Error())
		os.Exit(1)
	}
	log.Infof("performance log written to %s", fLogFile)

	out.ReportRun(result)

	if !fNoAnalysis {
		writeAnalysis(log, out, result.Records)
	}

	if result.AllSucceeded() {
		os.Exit(0)
	}
	os.Exit(1)
}

func runAnalyze(log *zap.SugaredLogger) {
	out, err := allocbench.NewOutput(fOutputFormat)
	if err != nil {
		log.Fatal(err)
	}
	records, err := allocbench.ReadRecords(fLogFile, log)
	if err != nil {
		log.Fatalf("failed to read performance log: %s", err)
	}
	writeAnalysis(log, out, records)
}

func writeAnalysis(log *zap.SugaredLogger, out allocbench.Output, records []allocbench.PerformanceRecord) {
	rows := allocbench.Analyze(records, log)
	if len(rows) == 0 {
		log.Warnf("no analyzable records, skipping analysis summary")
		return
	}
	if err := allocbench.WriteAnalysis(fAnalysisFile, rows); err != nil {
		out.Errorf(err.Error())
		return
	}
	log.Infof("analysis summary written to %s", fAnalysisFile)
}
