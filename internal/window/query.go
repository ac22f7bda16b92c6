package window

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/roach88/provstream/internal/ir"
	"github.com/roach88/provstream/internal/rules"
)

// QuerySpec declares a windowed query.
type QuerySpec struct {
	Name   string
	Stream string
	Range  time.Duration
	Step   time.Duration
	// Text is the CONSTRUCT or SELECT query. It may carry a
	// REGISTER QUERY header and FROM STREAM clause, which override the
	// fields above.
	Text string
}

var (
	registerRe   = regexp.MustCompile(`(?is)^\s*REGISTER\s+(?:QUERY|STREAM)\s+(\S+)\s+AS\s+`)
	fromStreamRe = regexp.MustCompile(`(?is)\bFROM\s+STREAM\s+<([^>\s]+)>\s*(?:\[\s*RANGE\s+(\S+)\s+STEP\s+(\S+?)\s*\])?`)
)

// parseSpec resolves the header of spec.Text and parses the remaining
// query. The window must be positive and the step no longer than the range.
func parseSpec(spec QuerySpec) (QuerySpec, *rules.Query, error) {
	body := spec.Text
	if m := registerRe.FindStringSubmatch(body); m != nil {
		spec.Name = m[1]
		body = body[len(m[0]):]
	}
	if loc := fromStreamRe.FindStringSubmatchIndex(body); loc != nil {
		spec.Stream = body[loc[2]:loc[3]]
		if loc[4] >= 0 {
			rng, err := time.ParseDuration(body[loc[4]:loc[5]])
			if err != nil {
				return spec, nil, ir.ConfigurationError(fmt.Sprintf("query %s: bad RANGE", spec.Name), err)
			}
			step, err := time.ParseDuration(body[loc[6]:loc[7]])
			if err != nil {
				return spec, nil, ir.ConfigurationError(fmt.Sprintf("query %s: bad STEP", spec.Name), err)
			}
			spec.Range, spec.Step = rng, step
		}
		body = body[:loc[0]] + " " + body[loc[1]:]
	}

	switch {
	case spec.Stream == "":
		return spec, nil, ir.ConfigurationError(fmt.Sprintf("query %s reads no stream", spec.Name), nil)
	case spec.Range <= 0 || spec.Step <= 0:
		return spec, nil, ir.ConfigurationError(fmt.Sprintf("query %s needs a positive RANGE and STEP", spec.Name), nil)
	case spec.Step > spec.Range:
		return spec, nil, ir.ConfigurationError(fmt.Sprintf("query %s: STEP %s exceeds RANGE %s", spec.Name, spec.Step, spec.Range), nil)
	}

	q, err := rules.ParseQuery(strings.TrimSpace(body))
	if err != nil {
		return spec, nil, ir.QueryError(fmt.Sprintf("parse query %s", spec.Name), err)
	}
	return spec, q, nil
}

// ParseSpec validates a query declaration without registering it.
func ParseSpec(spec QuerySpec) (QuerySpec, error) {
	spec, _, err := parseSpec(spec)
	return spec, err
}
