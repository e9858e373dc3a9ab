package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joshuapare/phvkit/phv/cluster"
	"github.com/joshuapare/phvkit/phv/field"
	"github.com/joshuapare/phvkit/phv/ir"
	"github.com/joshuapare/phvkit/phv/mutex"
	"github.com/joshuapare/phvkit/phv/nopack"
	"github.com/joshuapare/phvkit/phv/stackinfo"
	"github.com/joshuapare/phvkit/pkg/diag"
)

// ErrMissingState indicates a pass ran before the pass producing its input.
var ErrMissingState = errors.New("analysis: pass input not computed")

// Pass is one step of the pipeline. Run returns how many facts it added,
// removed or marked, for logging.
type Pass interface {
	Name() string
	Run(ac *Context) (int, error)
}

type funcPass struct {
	name string
	run  func(ac *Context) (int, error)
}

func (p funcPass) Name() string                 { return p.name }
func (p funcPass) Run(ac *Context) (int, error) { return p.run(ac) }

// NewPass wraps fn as a named pass.
func NewPass(name string, fn func(ac *Context) (int, error)) Pass {
	return funcPass{name: name, run: fn}
}

// PassResult records one executed pass.
type PassResult struct {
	Name     string        `json:"name" yaml:"name"`
	Changed  int           `json:"changed" yaml:"changed"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Result summarises a pipeline run.
type Result struct {
	Passes   []PassResult  `json:"passes" yaml:"passes"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Pipeline executes passes in registration order.
type Pipeline struct {
	passes []Pass
}

// NewPipeline creates a pipeline over passes.
func NewPipeline(passes ...Pass) *Pipeline {
	return &Pipeline{passes: passes}
}

// DefaultPipeline returns the full pass order for cfg.
func DefaultPipeline(cfg Config) *Pipeline {
	return NewPipeline(DefaultPasses(cfg)...)
}

// Passes returns the registered passes.
func (pl *Pipeline) Passes() []Pass { return pl.passes }

// Run executes every pass, stopping at the first error. Fatal errors are
// stamped with the failing pass name.
func (pl *Pipeline) Run(ctx context.Context, ac *Context) (*Result, error) {
	start := time.Now()
	res := &Result{Passes: make([]PassResult, 0, len(pl.passes))}
	for _, p := range pl.passes {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		t0 := time.Now()
		n, err := p.Run(ac)
		if err != nil {
			ac.Log.Error("pass failed", "pass", p.Name(), "error", err)
			return res, diag.WithPass(err, p.Name())
		}
		pr := PassResult{Name: p.Name(), Changed: n, Duration: time.Since(t0)}
		res.Passes = append(res.Passes, pr)
		ac.Log.Info("pass complete", "pass", pr.Name, "changed", pr.Changed, "duration", pr.Duration)
	}
	res.Duration = time.Since(start)
	return res, nil
}

// Analyze runs the default pipeline for the context's config.
func Analyze(ctx context.Context, ac *Context) (*Result, error) {
	return DefaultPipeline(ac.Config).Run(ctx, ac)
}

// Pass names, also used as the pass of emitted diagnostics.
const (
	PassHeaderStacks   = "header-stacks"
	PassFields         = "fields"
	PassFieldPragmas   = "field-pragmas"
	PassMutexSeed      = "mutex-seed"
	PassMutexParser    = "mutex-parser"
	PassMutexMAU       = "mutex-mau"
	PassMutexDeparser  = "mutex-deparser"
	PassMutexPragmas   = "mutex-pragmas"
	PassAliases        = "aliases"
	PassNoPackDeparser = "nopack-deparser"
	PassNoPackPragmas  = "nopack-pragmas"
	PassNoPackDigests  = "nopack-digests"
	PassNoPackTables   = "nopack-tables"
	PassNoPackBridged  = "nopack-bridged"
	PassClustering     = "clustering"
)

// DefaultPasses lists the passes in dependency order.
func DefaultPasses(cfg Config) []Pass {
	passes := []Pass{
		NewPass(PassHeaderStacks, runHeaderStacks),
		NewPass(PassFields, runFields),
		NewPass(PassFieldPragmas, runFieldPragmas),
		NewPass(PassMutexSeed, runMutexSeed),
		NewPass(PassMutexParser, withFields(func(ac *Context) (int, error) {
			return mutex.RelaxParser(ac.Program, ac.Fields, ac.Mutex)
		})),
		NewPass(PassMutexMAU, withFields(func(ac *Context) (int, error) {
			return mutex.RelaxMAU(ac.Program, ac.Fields, ac.Mutex)
		})),
		NewPass(PassMutexDeparser, withFields(func(ac *Context) (int, error) {
			return mutex.RelaxDeparser(ac.Program, ac.Fields, ac.Mutex)
		})),
		NewPass(PassMutexPragmas, withFields(func(ac *Context) (int, error) {
			return mutex.ApplyPragmas(ac.Program, ac.Fields, ac.Mutex, ac.Report), nil
		})),
		NewPass(PassAliases, withFields(func(ac *Context) (int, error) {
			return mutex.MarkAliases(ac.Program, ac.Fields, ac.Report), nil
		})),
		NewPass(PassNoPackDeparser, withFields(func(ac *Context) (int, error) {
			return nopack.SeedDeparser(ac.Fields, ac.NoPack, nopack.DefaultDeparserRule), nil
		})),
		NewPass(PassNoPackPragmas, withFields(func(ac *Context) (int, error) {
			return nopack.ApplyPragmas(ac.Program, ac.Fields, ac.NoPack, ac.Report), nil
		})),
		NewPass(PassNoPackDigests, withFields(func(ac *Context) (int, error) {
			return nopack.ApplyDigests(ac.Program, ac.Fields, ac.NoPack, ac.Config.Target, ac.Log), nil
		})),
		NewPass(PassNoPackTables, withFields(func(ac *Context) (int, error) {
			return nopack.ApplyTablePairs(ac.Program, ac.Fields, ac.NoPack, ac.Oracle, ac.Oracle, ac.Log)
		})),
	}
	if cfg.BridgedRule {
		passes = append(passes, NewPass(PassNoPackBridged, withFields(func(ac *Context) (int, error) {
			return nopack.ApplyBridgedPairs(ac.Program, ac.Fields, ac.NoPack, ac.Oracle, ac.Oracle, ac.Log)
		})))
	}
	return append(passes, NewPass(PassClustering, withFields(runClustering)))
}

// withFields guards passes that need the field database and mutex relation.
func withFields(fn func(ac *Context) (int, error)) func(ac *Context) (int, error) {
	return func(ac *Context) (int, error) {
		if ac.Fields == nil || ac.Mutex == nil {
			return 0, fmt.Errorf("%w: field database", ErrMissingState)
		}
		return fn(ac)
	}
}

func runHeaderStacks(ac *Context) (int, error) {
	info, err := stackinfo.Collect(ac.Program)
	if err != nil {
		return 0, err
	}
	ac.Stacks = info
	for _, e := range info.Entries() {
		ac.Log.Debug("header stack", "stack", e.Name, "size", e.Size,
			"max_push", e.MaxPush, "max_pop", e.MaxPop, "valid", e.ValidRange())
	}
	return info.Len(), nil
}

func runFields(ac *Context) (int, error) {
	if ac.Stacks == nil {
		return 0, fmt.Errorf("%w: header stacks", ErrMissingState)
	}
	db, err := ir.BuildFields(ac.Program)
	if err != nil {
		return 0, err
	}
	ac.Fields = db
	ac.Mutex = mutex.NewRelation(db.Len())
	return db.Len(), nil
}

// runFieldPragmas applies pa_solitary and pa_no_split.
func runFieldPragmas(ac *Context) (int, error) {
	if ac.Fields == nil {
		return 0, fmt.Errorf("%w: field database", ErrMissingState)
	}
	marked := 0
	mark := func(pass, name string, fl field.Flags) *field.Field {
		f, ok := ac.Fields.Lookup(name)
		if !ok {
			ac.Report.Warnf(pass, diag.Pos{}, "ignoring directive on unknown field %s", name)
			return nil
		}
		if !f.Has(fl) {
			f.Flags |= fl
			marked++
		}
		return f
	}
	for _, name := range ac.Program.Pragmas.Solitary {
		f := mark("pa_solitary", name, field.FlagSolitary)
		if f != nil && f.IsMetadata() && !f.IsDeparsed() {
			ac.Report.Warnf("pa_solitary", diag.Pos{}, "metadata field %s is never deparsed", name)
		}
	}
	for _, name := range ac.Program.Pragmas.NoSplit {
		mark("pa_no_split", name, field.FlagNoSplit)
	}
	return marked, nil
}

func runMutexSeed(ac *Context) (int, error) {
	if ac.Fields == nil || ac.Mutex == nil {
		return 0, fmt.Errorf("%w: field database", ErrMissingState)
	}
	if err := mutex.Seed(ac.Program, ac.Fields, ac.Mutex); err != nil {
		return 0, err
	}
	return ac.Mutex.Count(), nil
}

func runClustering(ac *Context) (int, error) {
	reg, scs, err := cluster.Build(ac.Program, ac.Fields)
	if err != nil {
		return 0, err
	}
	ac.Clusters = reg
	ac.SuperClusters = scs
	for _, sc := range scs {
		ac.Log.Debug("supercluster", "uid", sc.Uid,
			"rotational", len(sc.Rotational()), "slice_lists", len(sc.SliceLists()))
	}
	return len(scs), nil
}
