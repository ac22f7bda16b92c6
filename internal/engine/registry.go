package engine

import (
	"fmt"

	"github.com/roach88/provstream/internal/ir"
	"github.com/roach88/provstream/internal/rdf"
	"github.com/roach88/provstream/internal/rules"
)

// registeredRule is rule text plus its parse, filled on first execution.
type registeredRule struct {
	text   string
	parsed *rules.Update
}

// RuleRegistry holds the coldstart and warm rule sequences of one engine,
// each in registration order.
//
// Registration never validates: rule text is parsed the first time it
// runs, and a parse failure surfaces then as a query error.
type RuleRegistry struct {
	coldstart []*registeredRule
	warm      []*registeredRule
}

// Add appends text to the sequence of the named stage. The stage name is
// matched case-insensitively; anything other than coldstart or warm is a
// configuration error.
func (r *RuleRegistry) Add(stageName, text string) (ir.Stage, error) {
	stage, err := ir.ParseStage(stageName)
	if err != nil {
		return 0, err
	}
	rule := &registeredRule{text: text}
	if stage == ir.StageColdstart {
		r.coldstart = append(r.coldstart, rule)
	} else {
		r.warm = append(r.warm, rule)
	}
	return stage, nil
}

// Rules returns the rule texts of stage in registration order.
func (r *RuleRegistry) Rules(stage ir.Stage) []string {
	seq := r.sequence(stage)
	out := make([]string, len(seq))
	for i, rule := range seq {
		out[i] = rule.text
	}
	return out
}

// Len returns the number of rules registered for stage.
func (r *RuleRegistry) Len(stage ir.Stage) int {
	return len(r.sequence(stage))
}

func (r *RuleRegistry) sequence(stage ir.Stage) []*registeredRule {
	if stage == ir.StageColdstart {
		return r.coldstart
	}
	return r.warm
}

// execute runs every rule of stage against g in order. Later rules see the
// effects of earlier ones; nothing is rolled back on failure.
func (r *RuleRegistry) execute(engine string, stage ir.Stage, g *rdf.Graph) (rules.Result, error) {
	var total rules.Result
	for i, rule := range r.sequence(stage) {
		if rule.parsed == nil {
			u, err := rules.ParseUpdate(rule.text)
			if err != nil {
				return total, ir.QueryError(fmt.Sprintf("%s rule %d of engine %s", stage, i+1, engine), err)
			}
			rule.parsed = u
		}
		res := rules.Execute(rule.parsed, g)
		total.Solutions += res.Solutions
		total.Deleted += res.Deleted
		total.Inserted += res.Inserted
	}
	return total, nil
}
