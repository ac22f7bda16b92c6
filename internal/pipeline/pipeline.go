// Package pipeline wires compiled engine declarations into a running
// system: sensor readings are assembled into fact graphs, published onto
// the evaluator's streams, windowed by each engine's query and delivered to
// that engine, which appends its inferences to the provenance store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/provstream/internal/assembler"
	"github.com/roach88/provstream/internal/engine"
	"github.com/roach88/provstream/internal/ir"
	"github.com/roach88/provstream/internal/publisher"
	"github.com/roach88/provstream/internal/store"
	"github.com/roach88/provstream/internal/window"
)

// Config holds everything needed to build a Pipeline.
type Config struct {
	Specs []*ir.EngineSpec
	Store store.Appender

	// Engine options applied to every engine.
	Metrics   *engine.Metrics
	Retention engine.Retention
	QueueSize int
	IDs       engine.IDGenerator

	// Base is the assembler IRI base. Empty uses assembler.DefaultBase.
	Base string

	// OnWindowError receives windows the evaluator rejected. Nil logs them.
	OnWindowError func(error)
}

// Pipeline is a set of engines fed by one evaluator.
type Pipeline struct {
	evaluator  *window.Evaluator
	assembler  *assembler.Assembler
	publishers []*publisher.Publisher
	engines    []*engine.Engine
	handles    []window.Handle

	wg      sync.WaitGroup
	mu      sync.Mutex
	runErrs []error
}

// New builds the evaluator and one engine per spec. Every engine has its
// schema and rules loaded; a failure closes whatever was built.
func New(cfg Config) (*Pipeline, error) {
	var evalOpts []window.Option
	if cfg.OnWindowError != nil {
		evalOpts = append(evalOpts, window.WithErrorHandler(cfg.OnWindowError))
	}
	p := &Pipeline{
		evaluator: window.New(evalOpts...),
		assembler: assembler.New(cfg.Base),
	}
	if err := p.build(cfg); err != nil {
		_ = p.evaluator.Close()
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) build(cfg Config) error {
	engineOpts := []engine.Option{
		engine.WithMetrics(cfg.Metrics),
		engine.WithRetention(cfg.Retention),
	}
	if cfg.QueueSize > 0 {
		engineOpts = append(engineOpts, engine.WithQueueSize(cfg.QueueSize))
	}
	if cfg.IDs != nil {
		engineOpts = append(engineOpts, engine.WithIDGenerator(cfg.IDs))
	}

	streams := make(map[string]bool)
	for _, spec := range cfg.Specs {
		qs, err := window.ParseSpec(window.QuerySpec{
			Name:   spec.Name,
			Stream: spec.Stream,
			Range:  spec.Window,
			Step:   spec.Slide,
			Text:   spec.Query,
		})
		if err != nil {
			return fmt.Errorf("engine %s: %w", spec.Name, err)
		}
		if !streams[qs.Stream] {
			streams[qs.Stream] = true
			if err := p.evaluator.RegisterStream(qs.Stream); err != nil {
				return err
			}
			p.publishers = append(p.publishers, publisher.New(qs.Stream, p.evaluator))
		}
		h, err := p.evaluator.Register(qs, true)
		if err != nil {
			return fmt.Errorf("engine %s: %w", spec.Name, err)
		}

		eng := engine.New(spec.Name, cfg.Store, engineOpts...)
		if err := eng.LoadSchema(spec.Schema); err != nil {
			return fmt.Errorf("engine %s: %w", spec.Name, err)
		}
		for _, stage := range []ir.Stage{ir.StageColdstart, ir.StageWarm} {
			for _, text := range spec.Rules(stage) {
				if err := eng.AddRule(stage.String(), text); err != nil {
					return fmt.Errorf("engine %s: %w", spec.Name, err)
				}
			}
		}
		if err := p.evaluator.Subscribe(h, eng.Callback()); err != nil {
			return err
		}
		p.engines = append(p.engines, eng)
		p.handles = append(p.handles, h)
		slog.Info("engine configured",
			"engine", spec.Name,
			"instance", eng.ID(),
			"stream", qs.Stream,
			"range", qs.Range,
			"step", qs.Step,
			"coldstart_rules", len(spec.Coldstart),
			"warm_rules", len(spec.Warm),
		)
	}
	return nil
}

// Evaluator returns the evaluator, e.g. for a NATS subscription.
func (p *Pipeline) Evaluator() *window.Evaluator { return p.evaluator }

// Engines returns the engines in declaration order.
func (p *Pipeline) Engines() []*engine.Engine { return p.engines }

// Streams returns the registered input streams in declaration order.
func (p *Pipeline) Streams() []string {
	out := make([]string, len(p.publishers))
	for i, pub := range p.publishers {
		out[i] = pub.Stream()
	}
	return out
}

// Start runs every engine on its own goroutine until Drain or ctx ends.
func (p *Pipeline) Start(ctx context.Context) {
	for _, eng := range p.engines {
		p.wg.Add(1)
		go func(eng *engine.Engine) {
			defer p.wg.Done()
			err := eng.Run(ctx)
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}
			p.mu.Lock()
			p.runErrs = append(p.runErrs, err)
			p.mu.Unlock()
		}(eng)
	}
}

// Ingest assembles one reading and publishes it onto every stream.
func (p *Pipeline) Ingest(ctx context.Context, r ir.Reading) error {
	g := p.assembler.Assemble(r)
	name := p.assembler.ReadingIRI(r)
	for _, pub := range p.publishers {
		if err := pub.Publish(ctx, name, g, r.Timestamp); err != nil {
			return err
		}
	}
	return nil
}

// Drain delivers every open window, lets the engines finish their queues
// and stops them. It returns the engines' failures, if any.
func (p *Pipeline) Drain(ctx context.Context) error {
	flushErr := p.evaluator.Flush(ctx)
	for _, eng := range p.engines {
		eng.Stop()
	}
	p.wg.Wait()
	_ = p.evaluator.Close()

	p.mu.Lock()
	defer p.mu.Unlock()
	if flushErr != nil && !errors.Is(flushErr, window.ErrClosed) {
		return errors.Join(append([]error{flushErr}, p.runErrs...)...)
	}
	return errors.Join(p.runErrs...)
}

// Late returns the number of late quadruples dropped per engine.
func (p *Pipeline) Late() map[string]int {
	out := make(map[string]int, len(p.engines))
	for i, eng := range p.engines {
		out[eng.Name()] = p.evaluator.Late(p.handles[i])
	}
	return out
}
