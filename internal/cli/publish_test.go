package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/provstream/internal/assembler"
	"github.com/roach88/provstream/internal/ir"
	"github.com/roach88/provstream/internal/sensor"
)

type recordingSink struct {
	mu      sync.Mutex
	streams []string
	quads   []ir.Quadruple
	fail    error
}

func (s *recordingSink) Publish(streamID, subject, predicate, object string, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.streams = append(s.streams, streamID)
	s.quads = append(s.quads, ir.Quadruple{Subject: subject, Predicate: predicate, Object: object, TimestampMillis: ts})
	return nil
}

func publishOptions(format, dataDir string, sink *recordingSink) *PublishOptions {
	return &PublishOptions{
		RootOptions: &RootOptions{Format: format, LogWriter: &bytes.Buffer{}},
		SourceOptions: SourceOptions{
			Data:     dataDir,
			Location: sensor.DefaultLocation,
			Marker:   sensor.DefaultMarker,
		},
		Subject: DefaultSubject,
		Stream:  "http://foodsafety/ssn",
		Base:    assembler.DefaultBase,
		Sink:    sink,
	}
}

func TestPublishReadings(t *testing.T) {
	sink := &recordingSink{}
	opts := publishOptions("text", writeReadings(t, warmReadings), sink)

	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)

	require.NoError(t, runPublish(opts, cmd))
	assert.Equal(t, "✓ Published 4 reading(s) to http://foodsafety/ssn on provstream.quadruples\n", buf.String())

	// Four facts per reading.
	require.Len(t, sink.quads, 16)
	for _, s := range sink.streams {
		assert.Equal(t, "http://foodsafety/ssn", s)
	}
	first := sink.quads[0]
	assert.Equal(t, "http://foodsafety/data/reading/1/1450145761", first.Subject)
	assert.Equal(t, int64(1450145761000), first.TimestampMillis)
}

func TestPublishJSON(t *testing.T) {
	sink := &recordingSink{}
	opts := publishOptions("json", writeReadings(t, coolReadings), sink)
	opts.Subject = "probes"

	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)

	require.NoError(t, runPublish(opts, cmd))

	var resp struct {
		Status string         `json:"status"`
		Data   PublishSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, PublishSummary{Stream: "http://foodsafety/ssn", Subject: "probes", Readings: 2}, resp.Data)
}

func TestPublishSinkFailure(t *testing.T) {
	sink := &recordingSink{fail: ir.ConnectivityError("nats publish", errors.New("connection closed"))}
	opts := publishOptions("text", writeReadings(t, warmReadings), sink)

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	err := runPublish(opts, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "publish failed [E200]")
}

func TestPublishUnreachableNATS(t *testing.T) {
	opts := publishOptions("text", writeReadings(t, warmReadings), nil)
	opts.Sink = nil
	opts.NATS = "nats://127.0.0.1:1"

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	err := runPublish(opts, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to connect [E200]")
}

func TestPublishCommandRequiresData(t *testing.T) {
	cmd := NewPublishCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "data" not set`)
}
