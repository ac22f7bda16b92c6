package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/roach88/provstream/internal/compiler"
	"github.com/roach88/provstream/internal/engine"
	"github.com/roach88/provstream/internal/ir"
	"github.com/roach88/provstream/internal/pipeline"
	"github.com/roach88/provstream/internal/store"
	"github.com/roach88/provstream/internal/window"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	StoreOptions
	SourceOptions

	QueueSize   int
	Retention   string
	MetricsAddr string
	NATS        string
	Subject     string

	// IDGenerator allows overriding instance IDs (for testing).
	// If nil, engines use UUIDv7.
	IDGenerator engine.IDGenerator
}

// RunSummary reports what a run did.
type RunSummary struct {
	Readings  int             `json:"readings"`
	StoreSize int             `json:"store_size"`
	Engines   []EngineSummary `json:"engines"`
}

// EngineSummary is the end state of one engine.
type EngineSummary struct {
	Name   string `json:"name"`
	ID     string `json:"id"`
	State  string `json:"state"`
	Deltas int    `json:"deltas"`
	Late   int    `json:"late"`
	Error  string `json:"error,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <specs-dir>",
		Short: "Run the engines declared in a specs directory",
		Long: `Run every inference engine declared in the CUE files of a specs directory.

Readings come either from sensor files (--data), which are assembled into
facts, windowed and inferred over until the files are exhausted, or from a
NATS subject (--nats) fed by 'provstream publish', until interrupted.
Every delta is appended to the provenance store.

Example:
  provstream run --db ./prov.db --data ./readings ./specs
  provstream run --postgres postgres://localhost/prov --nats nats://localhost:4222 ./specs
  provstream run --db ./prov.db --data ./readings --metrics-addr :9090 ./specs`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, args[0], cmd)
		},
	}

	opts.StoreOptions.addFlags(cmd)
	opts.SourceOptions.addFlags(cmd)
	cmd.Flags().IntVar(&opts.QueueSize, "queue-size", engine.DefaultQueueSize, "windows buffered per engine")
	cmd.Flags().StringVar(&opts.Retention, "retention", "all", "asserted history kept by engines (all|latest)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&opts.NATS, "nats", "", "NATS server URL to receive quadruples from")
	cmd.Flags().StringVar(&opts.Subject, "subject", DefaultSubject, "NATS subject carrying quadruples")
	cmd.MarkFlagsMutuallyExclusive("data", "nats")
	cmd.MarkFlagsOneRequired("data", "nats")

	return cmd
}

// DefaultSubject is the NATS subject publish and run agree on.
const DefaultSubject = "provstream.quadruples"

func runPipeline(opts *RunOptions, specsDir string, cmd *cobra.Command) error {
	configureLogging(opts.RootOptions)

	retention, ok := engine.ParseRetention(opts.Retention)
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid retention %q: must be all or latest", opts.Retention))
	}

	slog.Info("loading specs", "dir", specsDir)
	specs, err := loadEngines(specsDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load specs", err)
	}
	slog.Info("specs loaded", "engines", len(specs))

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	st, err := opts.StoreOptions.open(ctx)
	if err != nil {
		return err
	}
	defer closeStore(st)

	var metrics *engine.Metrics
	if opts.MetricsAddr != "" {
		reg := newMetricsRegistry()
		metrics = engine.NewMetrics(reg)
		srv, err := startMetricsServer(opts.MetricsAddr, reg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start metrics server", err)
		}
		defer srv.Stop()
	}

	p, err := pipeline.New(pipeline.Config{
		Specs:     specs,
		Store:     st,
		Metrics:   metrics,
		Retention: retention,
		QueueSize: opts.QueueSize,
		IDs:       opts.IDGenerator,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to configure engines", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	p.Start(ctx)

	var readings int
	var ingestErr error
	if opts.NATS != "" {
		ingestErr = receiveNATS(ctx, opts.NATS, opts.Subject, p.Evaluator())
	} else {
		readings, ingestErr = ingestFiles(ctx, &opts.SourceOptions, p)
	}

	drainErr := p.Drain(context.Background())

	summary, err := summarize(context.Background(), p, st, readings)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read store", err)
	}
	if err := outputRunSummary(cmd, opts.Format, summary); err != nil {
		return err
	}

	if ingestErr != nil && !errors.Is(ingestErr, context.Canceled) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("ingestion failed [%s]", ErrorCode(ingestErr)), ingestErr)
	}
	if drainErr != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("engine error [%s]", ErrorCode(drainErr)), drainErr)
	}
	slog.Info("pipeline stopped gracefully")
	return nil
}

// loadEngines loads, compiles and validates the engine declarations of dir.
func loadEngines(dir string) ([]*ir.EngineSpec, error) {
	loadResult, loadErrors := LoadSpecs(dir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}
	if verrs := compiler.Validate(loadResult.Engines); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i := range verrs {
			errs[i] = verrs[i]
		}
		return nil, errors.Join(errs...)
	}
	return loadResult.Engines, nil
}

// ingestFiles feeds every reading under the source directory into p.
func ingestFiles(ctx context.Context, src *SourceOptions, p *pipeline.Pipeline) (int, error) {
	parser, err := src.parser()
	if err != nil {
		return 0, err
	}
	var n int
	err = parser.Each(ctx, func(r ir.Reading) error {
		n++
		return p.Ingest(ctx, r)
	})
	slog.Info("readings ingested", "dir", src.Data, "readings", n)
	return n, err
}

// receiveNATS feeds quadruples from subject into e until ctx ends.
func receiveNATS(ctx context.Context, url, subject string, e *window.Evaluator) error {
	nc, err := nats.Connect(url,
		nats.Name("provstream-evaluator"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return ir.ConnectivityError(fmt.Sprintf("connect to NATS at %s", url), err)
	}
	defer nc.Close()

	sub, err := window.SubscribeNATS(nc, subject, e)
	if err != nil {
		return err
	}
	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		slog.Warn("NATS subscription drain failed", "error", err)
	}
	return ctx.Err()
}

func summarize(ctx context.Context, p *pipeline.Pipeline, st store.Reader, readings int) (RunSummary, error) {
	summary := RunSummary{Readings: readings, Engines: []EngineSummary{}}
	size, err := st.Size(ctx)
	if err != nil {
		return summary, err
	}
	summary.StoreSize = size

	late := p.Late()
	for _, eng := range p.Engines() {
		es := EngineSummary{
			Name:  eng.Name(),
			ID:    eng.ID(),
			State: eng.State().String(),
			Late:  late[eng.Name()],
		}
		deltas, err := st.Deltas(ctx, eng.Name())
		if err != nil {
			return summary, err
		}
		es.Deltas = len(deltas)
		if err := eng.Err(); err != nil {
			es.Error = string(ir.KindOf(err))
		}
		summary.Engines = append(summary.Engines, es)
	}
	return summary, nil
}

func outputRunSummary(cmd *cobra.Command, format string, s RunSummary) error {
	w := cmd.OutOrStdout()
	if format == "json" {
		return json.NewEncoder(w).Encode(CLIResponse{Status: "ok", Data: s})
	}

	fmt.Fprintf(w, "Ingested %d reading(s); store holds %d fact(s)\n\n", s.Readings, s.StoreSize)
	for _, e := range s.Engines {
		fmt.Fprintf(w, "  %s: %s, %d delta(s)", e.Name, e.State, e.Deltas)
		if e.Late > 0 {
			fmt.Fprintf(w, ", %d late", e.Late)
		}
		if e.Error != "" {
			fmt.Fprintf(w, " (%s)", e.Error)
		}
		fmt.Fprintln(w)
	}
	return nil
}
