package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/simline/simline/sim"
	"github.com/simline/simline/sim/control"
	"github.com/simline/simline/sim/event"
	"github.com/simline/simline/sim/line"
	"github.com/simline/simline/sim/trace"
)

var (
	// CLI flags shared by run and serve
	seed           int64   // Seed for every random stream; run-unique when not set
	logLevel       string  // Log verbosity level
	configPath     string  // Path to a line topology YAML file
	arrivalMean    float64 // Mean inter-arrival gap
	processingMean float64 // Mean processing time per station
	processingStd  float64 // Stddev of processing time per station
	bufferCapacity int     // Capacity applied to every buffer
	maxArrivals    int     // Stop generating after this many parts (0 = unlimited)
	traceDBPath    string  // SQLite trace output ("auto" picks a fresh name)
	eventBuffer    int     // Per-consumer event channel depth

	// run-only flags
	simulationHorizon float64 // Simulated time to run for
	eventsOutput      string  // JSON-lines event output ("-" for stdout)
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "simline",
	Short: "Discrete-event simulator for multi-stage manufacturing lines",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// runCmd executes one simulation run using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the line simulation to a horizon and print statistics",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadLineConfig(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		hub := event.NewHub()
		var consumers sync.WaitGroup

		if eventsOutput != "" {
			w, closeFn, err := openEventsOutput(eventsOutput)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
			defer closeFn()
			sub := hub.Subscribe(eventBuffer)
			consumers.Add(1)
			go func() {
				defer consumers.Done()
				if err := writeEvents(w, sub); err != nil {
					logrus.Errorf("writing events: %v", err)
				}
			}()
		}

		recorder, err := startTraceRecorder(hub, &consumers)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		ctrl, err := control.New(cfg, controllerOptions(cmd, hub)...)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		startTime := time.Now()
		run, err := ctrl.Start(simulationHorizon)
		if err != nil {
			logrus.Fatalf("Failed to start simulation: %v", err)
		}
		logrus.Infof("Run %s uses seed %d (pass --seed %d to replay)", run.ID, run.Seed, run.Seed)

		stopOnSignal(ctrl, run)
		result := run.Wait()

		hub.Close()
		consumers.Wait()
		closeTraceRecorder(recorder)

		if err := result.Statistics.Print(os.Stdout); err != nil {
			logrus.Errorf("printing statistics: %v", err)
		}
		if result.StoppedEarly {
			logrus.Warnf("Simulation stopped early at t=%.3f", result.Statistics.SimulationTime)
		}
		logrus.Infof("Simulation complete in %v.", time.Since(startTime))
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}
}

// loadLineConfig reads --config (or the built-in line) and applies the
// explicitly set overrides. Flags left at their defaults never override a
// value from the file.
func loadLineConfig(cmd *cobra.Command) (*line.Config, error) {
	cfg := line.DefaultConfig()
	if configPath != "" {
		loaded, err := line.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("arrival-mean") {
		cfg.ArrivalIntervalMean = arrivalMean
	}
	if flags.Changed("processing-mean") {
		cfg.Processing.Mean = processingMean
	}
	if flags.Changed("processing-std") {
		cfg.Processing.StdDev = processingStd
	}
	if flags.Changed("buffer-capacity") {
		cfg.SetBufferCapacity(bufferCapacity)
	}
	if flags.Changed("max-arrivals") {
		cfg.MaxArrivals = maxArrivals
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid line config: %w", err)
	}
	return cfg, nil
}

// controllerOptions wires the event hub, the seed and, at debug level, the
// kernel trace hook.
func controllerOptions(cmd *cobra.Command, hub *event.Hub) []control.Option {
	opts := []control.Option{control.WithSinks(hub)}
	if cmd.Flags().Changed("seed") {
		opts = append(opts, control.WithSeed(seed))
	}
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		opts = append(opts, control.WithHooks(sim.LogHook()))
	}
	return opts
}

// startTraceRecorder attaches a SQLite recorder to hub when --trace-db is set.
func startTraceRecorder(hub *event.Hub, consumers *sync.WaitGroup) (*trace.SQLiteRecorder, error) {
	if traceDBPath == "" {
		return nil, nil
	}
	path := traceDBPath
	if path == "auto" {
		path = trace.DefaultPath()
	}
	recorder, err := trace.NewSQLiteRecorder(path, 0)
	if err != nil {
		return nil, err
	}
	sub := hub.Subscribe(eventBuffer)
	consumers.Add(1)
	go func() {
		defer consumers.Done()
		recorder.Consume(sub)
	}()
	return recorder, nil
}

// closeTraceRecorder flushes and closes recorder, if any, and reports where
// the trace went.
func closeTraceRecorder(recorder *trace.SQLiteRecorder) {
	if recorder == nil {
		return
	}
	if err := recorder.Close(); err != nil {
		logrus.Errorf("closing trace %s: %v", recorder.Path(), err)
		return
	}
	logrus.Warnf("Event trace written to %s (%d events)", recorder.Path(), recorder.Written())
}

func openEventsOutput(path string) (io.Writer, func(), error) {
	if path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating events output: %w", err)
	}
	return f, func() { f.Close() }, nil
}

// writeEvents encodes every event of sub as one JSON object per line.
func writeEvents(w io.Writer, sub *event.Subscription) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	var firstErr error
	for ev := range sub.C() {
		if firstErr != nil {
			continue
		}
		if err := enc.Encode(ev); err != nil {
			firstErr = err
		}
	}
	if err := bw.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if n := sub.Dropped(); n > 0 {
		logrus.Warnf("%d events dropped before reaching the events output; raise --event-buffer", n)
	}
	return firstErr
}

// stopOnSignal turns SIGINT/SIGTERM into a cooperative stop of run.
func stopOnSignal(ctrl *control.Controller, run *control.Run) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigs)
		select {
		case sig := <-sigs:
			logrus.Warnf("Received %v, stopping at the next event boundary", sig)
			ctrl.RequestStop()
		case <-run.Done():
		}
	}()
}

func addLineFlags(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&seed, "seed", 0, "Seed for random streams (run-unique when not given)")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to line topology YAML (default: built-in reference line)")
	cmd.Flags().Float64Var(&arrivalMean, "arrival-mean", 6.0, "Mean inter-arrival time")
	cmd.Flags().Float64Var(&processingMean, "processing-mean", 5.0, "Mean processing time per station")
	cmd.Flags().Float64Var(&processingStd, "processing-std", 1.0, "Stddev of processing time per station")
	cmd.Flags().IntVar(&bufferCapacity, "buffer-capacity", 5, "Capacity of every buffer")
	cmd.Flags().IntVar(&maxArrivals, "max-arrivals", 0, "Number of parts to release (0 = until horizon)")
	cmd.Flags().StringVar(&traceDBPath, "trace-db", "", "Write the event trace to this SQLite file (\"auto\" for a fresh name)")
	cmd.Flags().IntVar(&eventBuffer, "event-buffer", 1<<16, "Per-consumer event channel depth")
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	addLineFlags(runCmd)
	runCmd.Flags().Float64Var(&simulationHorizon, "horizon", 100, "Simulated time to run for")
	runCmd.Flags().StringVar(&eventsOutput, "events", "", "Write events as JSON lines to this file (\"-\" for stdout)")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
