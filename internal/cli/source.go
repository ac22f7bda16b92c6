package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/provstream/internal/ir"
	"github.com/roach88/provstream/internal/sensor"
)

// SourceOptions selects the sensor reading files to ingest.
type SourceOptions struct {
	Data     string // directory of reading files
	Pattern  string // doublestar glob relative to Data
	Location string // zone of reading timestamps
	Marker   string // header marker token
}

func (o *SourceOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Data, "data", "", "directory of sensor reading files")
	cmd.Flags().StringVar(&o.Pattern, "pattern", "", "glob selecting reading files, e.g. '**/*.csv'")
	cmd.Flags().StringVar(&o.Location, "location", sensor.DefaultLocation, "time zone of reading timestamps")
	cmd.Flags().StringVar(&o.Marker, "marker", sensor.DefaultMarker, "token marking header lines")
}

// parser builds a sensor parser for the configured directory.
func (o *SourceOptions) parser() (*sensor.Parser, error) {
	var opts []sensor.Option
	if o.Pattern != "" {
		opts = append(opts, sensor.WithPattern(o.Pattern))
	}
	if o.Marker != "" {
		opts = append(opts, sensor.WithMarker(o.Marker))
	}
	if o.Location != "" {
		loc, err := time.LoadLocation(o.Location)
		if err != nil {
			return nil, ir.ConfigurationError(fmt.Sprintf("unknown time zone %q", o.Location), err)
		}
		opts = append(opts, sensor.WithLocation(loc))
	}
	return sensor.NewParser(o.Data, opts...)
}
