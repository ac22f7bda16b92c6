package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/provstream/internal/assembler"
	"github.com/roach88/provstream/internal/ir"
	"github.com/roach88/provstream/internal/publisher"
)

// PublishOptions holds flags for the publish command.
type PublishOptions struct {
	*RootOptions
	SourceOptions
	NATS    string
	Subject string
	Stream  string
	Base    string

	// Sink overrides the NATS connection (for testing).
	Sink publisher.Sink
}

// PublishSummary reports what was published.
type PublishSummary struct {
	Stream   string `json:"stream"`
	Subject  string `json:"subject"`
	Readings int    `json:"readings"`
}

// NewPublishCommand creates the publish command.
func NewPublishCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PublishOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish sensor readings to a NATS subject",
		Long: `Parse sensor reading files, assemble each reading into facts and publish
them as timestamped quadruples on a NATS subject, for an evaluator started
with 'provstream run --nats'.

Example:
  provstream publish --data ./readings --nats nats://localhost:4222
  provstream publish --data ./readings --pattern '2015/**/*.csv' --stream http://foodsafety/ssn`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(opts, cmd)
		},
	}

	opts.SourceOptions.addFlags(cmd)
	_ = cmd.MarkFlagRequired("data")
	cmd.Flags().StringVar(&opts.NATS, "nats", "nats://127.0.0.1:4222", "NATS server URL")
	cmd.Flags().StringVar(&opts.Subject, "subject", DefaultSubject, "NATS subject to publish on")
	cmd.Flags().StringVar(&opts.Stream, "stream", "http://foodsafety/ssn", "input stream IRI the quadruples belong to")
	cmd.Flags().StringVar(&opts.Base, "base", assembler.DefaultBase, "base IRI of assembled readings")

	return cmd
}

func runPublish(opts *PublishOptions, cmd *cobra.Command) error {
	configureLogging(opts.RootOptions)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	parser, err := opts.SourceOptions.parser()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid reading source", err)
	}

	sink := opts.Sink
	if sink == nil {
		ns, err := publisher.DialNATS(opts.NATS, opts.Subject)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to connect [%s]", ErrorCode(err)), err)
		}
		defer ns.Close()
		sink = ns
	}

	asm := assembler.New(opts.Base)
	pub := publisher.New(opts.Stream, sink)

	var n int
	err = parser.Each(ctx, func(r ir.Reading) error {
		if err := pub.Publish(ctx, asm.ReadingIRI(r), asm.Assemble(r), r.Timestamp); err != nil {
			return err
		}
		n++
		return nil
	})
	slog.Info("readings published", "readings", n, "stream", opts.Stream, "subject", opts.Subject)
	if err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("publish failed [%s]", ErrorCode(err)), err)
	}

	summary := PublishSummary{Stream: opts.Stream, Subject: opts.Subject, Readings: n}
	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		return json.NewEncoder(w).Encode(CLIResponse{Status: "ok", Data: summary})
	}
	fmt.Fprintf(w, "✓ Published %d reading(s) to %s on %s\n", n, opts.Stream, opts.Subject)
	return nil
}
