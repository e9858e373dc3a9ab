// Package analysis runs the constraint passes over a program in order and
// holds the shared state they produce: header-stack geometry, the field
// database, the mutex relation, pack conflicts and the initial clustering.
package analysis

import (
	"log/slog"

	"github.com/joshuapare/phvkit/internal/logger"
	"github.com/joshuapare/phvkit/phv/cluster"
	"github.com/joshuapare/phvkit/phv/field"
	"github.com/joshuapare/phvkit/phv/ir"
	"github.com/joshuapare/phvkit/phv/mutex"
	"github.com/joshuapare/phvkit/phv/nopack"
	"github.com/joshuapare/phvkit/pkg/diag"
)

// Context is the state of one analysis run. Passes read the program and
// fill in the remaining fields; a field is nil until its producing pass ran.
type Context struct {
	Program *ir.Program
	Config  Config
	Log     *slog.Logger
	Report  *diag.Report

	// Oracle answers stage and exclusivity queries for the nopack passes.
	Oracle *StaticOracle

	Stacks        *ir.HeaderStackInfo
	Fields        *field.Database
	Mutex         *mutex.Relation
	NoPack        *nopack.PackConflicts
	Clusters      *cluster.Registry
	SuperClusters []*cluster.SuperCluster
}

// NewContext prepares a run over p. A nil log falls back to the process
// logger.
func NewContext(p *ir.Program, cfg Config, log *slog.Logger) *Context {
	if log == nil {
		log = logger.L
	}
	return &Context{
		Program: p,
		Config:  cfg,
		Log:     log,
		Report:  diag.NewReport(),
		Oracle:  NewStaticOracle(p.Stages),
		NoPack:  nopack.New(),
	}
}

// SuperCluster returns the supercluster with the given uid.
func (c *Context) SuperCluster(uid int) (*cluster.SuperCluster, bool) {
	for _, sc := range c.SuperClusters {
		if sc.Uid == uid {
			return sc, true
		}
	}
	return nil, false
}
