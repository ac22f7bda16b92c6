package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/provstream/internal/store"
)

// DumpOptions holds flags for the dump command.
type DumpOptions struct {
	*RootOptions
	StoreOptions
	Engine string // optional - restrict to one engine
	Deltas bool   // list deltas instead of the fact union
}

// DumpDelta is one delta in dump output.
type DumpDelta struct {
	store.Delta
	Facts []string `json:"facts"`
}

// DumpResult holds the complete dump output.
type DumpResult struct {
	StoreSize int         `json:"store_size"`
	Facts     []string    `json:"facts,omitempty"`
	Deltas    []DumpDelta `json:"deltas,omitempty"`
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the contents of a provenance store",
		Long: `Print what the engines inferred.

By default prints the union of every appended delta as N-Triples, one fact
per line in a stable order. With --deltas, prints each delta in append
order with its engine, window and facts.

Examples:
  provstream dump --db ./prov.db
  provstream dump --db ./prov.db --deltas --engine temperature
  provstream dump --postgres postgres://localhost/prov --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(opts, cmd)
		},
	}

	opts.StoreOptions.addFlags(cmd)
	cmd.Flags().StringVar(&opts.Engine, "engine", "", "restrict --deltas to one engine")
	cmd.Flags().BoolVar(&opts.Deltas, "deltas", false, "list deltas instead of the fact union")

	return cmd
}

func runDump(opts *DumpOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := opts.StoreOptions.open(ctx)
	if err != nil {
		return err
	}
	defer closeStore(st)

	result, err := buildDump(ctx, st, opts.Engine, opts.Deltas)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read store", err)
	}

	if opts.Format == "json" {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(CLIResponse{Status: "ok", Data: result})
	}
	writeDumpText(cmd.OutOrStdout(), result, opts.Deltas)
	return nil
}

func buildDump(ctx context.Context, r store.Reader, engine string, deltas bool) (DumpResult, error) {
	var result DumpResult
	size, err := r.Size(ctx)
	if err != nil {
		return result, err
	}
	result.StoreSize = size

	if !deltas {
		facts, err := r.Facts(ctx)
		if err != nil {
			return result, err
		}
		result.Facts = splitLines(facts.NTriples())
		return result, nil
	}

	ds, err := r.Deltas(ctx, engine)
	if err != nil {
		return result, err
	}
	result.Deltas = make([]DumpDelta, len(ds))
	for i, d := range ds {
		result.Deltas[i] = DumpDelta{Delta: d, Facts: splitLines(d.Facts.NTriples())}
	}
	return result, nil
}

func writeDumpText(w io.Writer, result DumpResult, deltas bool) {
	if !deltas {
		for _, line := range result.Facts {
			fmt.Fprintln(w, line)
		}
		return
	}

	if len(result.Deltas) == 0 {
		fmt.Fprintln(w, "No deltas found")
		return
	}
	for _, d := range result.Deltas {
		fmt.Fprintf(w, "# delta %d engine=%s window=%d facts=%d id=%s\n",
			d.Seq, d.Engine, d.Window, len(d.Facts), d.ID)
		for _, line := range d.Facts {
			fmt.Fprintln(w, line)
		}
	}
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}
