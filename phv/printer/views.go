package printer

import (
	"fmt"
	"strings"
	"time"

	"github.com/joshuapare/phvkit/internal/sctext"
	"github.com/joshuapare/phvkit/phv/analysis"
	"github.com/joshuapare/phvkit/phv/cluster"
	"github.com/joshuapare/phvkit/phv/field"
	"github.com/joshuapare/phvkit/phv/ir"
	"github.com/joshuapare/phvkit/phv/mutex"
	"github.com/joshuapare/phvkit/phv/nopack"
	"github.com/joshuapare/phvkit/pkg/diag"
)

type passView struct {
	Name     string `json:"name" yaml:"name"`
	Changed  int    `json:"changed" yaml:"changed"`
	Duration string `json:"duration" yaml:"duration"`
}

type summaryView struct {
	Target          string            `json:"target" yaml:"target"`
	Fields          int               `json:"fields" yaml:"fields"`
	HeaderStacks    int               `json:"header_stacks" yaml:"header_stacks"`
	MutexPairs      int               `json:"mutex_pairs" yaml:"mutex_pairs"`
	PackConflicts   int               `json:"pack_conflicts" yaml:"pack_conflicts"`
	AlignedClusters int               `json:"aligned_clusters" yaml:"aligned_clusters"`
	SuperClusters   int               `json:"superclusters" yaml:"superclusters"`
	Passes          []passView        `json:"passes" yaml:"passes"`
	Duration        string            `json:"duration" yaml:"duration"`
	Diagnostics     []diag.Diagnostic `json:"diagnostics" yaml:"diagnostics"`
	Summary         diag.Summary      `json:"summary" yaml:"summary"`
}

func roundDuration(d time.Duration) string {
	return d.Round(time.Microsecond).String()
}

// PrintSummary prints pass statistics, relation sizes and diagnostics of
// a completed run.
func (p *Printer) PrintSummary(ac *analysis.Context, res *analysis.Result) error {
	v := summaryView{
		Target:        ac.Config.Target.String(),
		SuperClusters: len(ac.SuperClusters),
		Diagnostics:   ac.Report.Sorted(),
		Summary:       ac.Report.Summary,
	}
	if v.Diagnostics == nil {
		v.Diagnostics = []diag.Diagnostic{}
	}
	if ac.Fields != nil {
		v.Fields = ac.Fields.Len()
	}
	if ac.Stacks != nil {
		v.HeaderStacks = ac.Stacks.Len()
	}
	if ac.Mutex != nil {
		v.MutexPairs = ac.Mutex.Count()
	}
	if ac.NoPack != nil {
		v.PackConflicts = ac.NoPack.Count()
	}
	if ac.Clusters != nil {
		v.AlignedClusters = ac.Clusters.NumAligned()
	}
	if res != nil {
		v.Duration = roundDuration(res.Duration)
		for _, pr := range res.Passes {
			v.Passes = append(v.Passes, passView{Name: pr.Name, Changed: pr.Changed, Duration: roundDuration(pr.Duration)})
		}
	}
	if p.structured() {
		return p.encode(v)
	}

	if err := p.title(fmt.Sprintf("Analysis (%s)", v.Target)); err != nil {
		return err
	}
	t := newTable("PASS", "CHANGED", "DURATION")
	for _, pv := range v.Passes {
		t.add(pv.Name, pv.Changed, pv.Duration)
	}
	if err := t.render(p.writer, 0); err != nil {
		return err
	}
	fmt.Fprintf(p.writer, "\nfields: %d  header stacks: %d  mutex pairs: %d  pack conflicts: %d\n",
		v.Fields, v.HeaderStacks, v.MutexPairs, v.PackConflicts)
	fmt.Fprintf(p.writer, "aligned clusters: %d  superclusters: %d  total: %s\n\n",
		v.AlignedClusters, v.SuperClusters, v.Duration)
	return p.PrintDiagnostics(ac.Report)
}

// PrintDiagnostics prints the warnings and errors of a report.
func (p *Printer) PrintDiagnostics(r *diag.Report) error {
	if p.structured() {
		return p.encode(r)
	}
	if err := p.title("Diagnostics"); err != nil {
		return err
	}
	_, err := fmt.Fprint(p.writer, r.FormatTextCompact())
	return err
}

type stackView struct {
	Name       string `json:"name" yaml:"name"`
	Size       int    `json:"size" yaml:"size"`
	MaxPush    int    `json:"maxpush" yaml:"maxpush"`
	MaxPop     int    `json:"maxpop" yaml:"maxpop"`
	ValidWidth int    `json:"valid_width" yaml:"valid_width"`
	ValidBits  string `json:"valid_bits" yaml:"valid_bits"`
	Threads    string `json:"threads" yaml:"threads"`
}

func threads(e *ir.StackEntry) string {
	var parts []string
	for g := field.Gress(0); g < field.NumGress; g++ {
		if e.InThread[g] {
			parts = append(parts, g.String())
		}
	}
	return strings.Join(parts, ",")
}

// PrintStacks prints the collected header-stack geometry.
func (p *Printer) PrintStacks(info *ir.HeaderStackInfo) error {
	views := []stackView{}
	for _, e := range info.Entries() {
		views = append(views, stackView{
			Name:       e.Name,
			Size:       e.Size,
			MaxPush:    e.MaxPush,
			MaxPop:     e.MaxPop,
			ValidWidth: e.ValidWidth(),
			ValidBits:  e.ValidRange().String(),
			Threads:    threads(e),
		})
	}
	if p.structured() {
		return p.encode(views)
	}
	if err := p.title("Header stacks"); err != nil {
		return err
	}
	t := newTable("STACK", "SIZE", "MAXPUSH", "MAXPOP", "$STKVALID", "VALID BITS", "THREADS")
	for _, v := range views {
		t.add(v.Name, v.Size, v.MaxPush, v.MaxPop, v.ValidWidth, v.ValidBits, v.Threads)
	}
	return t.render(p.writer, 0)
}

type pairView struct {
	A string `json:"a" yaml:"a"`
	B string `json:"b" yaml:"b"`
}

func (p *Printer) printPairs(title, relation string, pairs []pairView) error {
	if p.structured() {
		return p.encode(pairs)
	}
	if err := p.title(fmt.Sprintf("%s (%d)", title, len(pairs))); err != nil {
		return err
	}
	t := newTable("FIELD", "", "FIELD")
	for _, pr := range pairs {
		t.add(pr.A, relation, pr.B)
	}
	return t.render(p.writer, p.opts.MaxRows)
}

// PrintMutex lists every mutually exclusive field pair.
func (p *Printer) PrintMutex(db *field.Database, rel *mutex.Relation) error {
	pairs := []pairView{}
	rel.Pairs(func(a, b field.FieldID) {
		pairs = append(pairs, pairView{A: db.Name(a), B: db.Name(b)})
	})
	return p.printPairs("Mutually exclusive fields", "<->", pairs)
}

// PrintNoPack lists field-level and then slice-level pack conflicts.
func (p *Printer) PrintNoPack(db *field.Database, pc *nopack.PackConflicts) error {
	pairs := []pairView{}
	pc.FieldPairs(func(a, b field.FieldID) {
		pairs = append(pairs, pairView{A: db.Name(a), B: db.Name(b)})
	})
	pc.SlicePairs(func(a, b field.FieldSlice) {
		pairs = append(pairs, pairView{A: db.SliceString(a), B: db.SliceString(b)})
	})
	return p.printPairs("Pack conflicts", "x", pairs)
}

type superClusterView struct {
	Uid        int          `json:"uid" yaml:"uid"`
	SliceLists [][]string   `json:"slice_lists" yaml:"slice_lists"`
	Rotational [][][]string `json:"rotational_clusters" yaml:"rotational_clusters"`
}

func superClusterOf(db *field.Database, sc *cluster.SuperCluster) superClusterView {
	v := superClusterView{Uid: sc.Uid, SliceLists: [][]string{}, Rotational: [][][]string{}}
	for _, l := range sc.SliceLists() {
		var names []string
		for _, s := range l.Slices {
			names = append(names, db.SliceString(s))
		}
		v.SliceLists = append(v.SliceLists, names)
	}
	for _, rc := range sc.Rotational() {
		var groups [][]string
		for _, ac := range rc.Clusters() {
			var names []string
			for _, s := range ac.Slices() {
				names = append(names, db.SliceString(s))
			}
			groups = append(groups, names)
		}
		v.Rotational = append(v.Rotational, groups)
	}
	return v
}

// PrintClusters prints superclusters in the debug dump format, or as
// nested lists in structured output.
func (p *Printer) PrintClusters(db *field.Database, scs []*cluster.SuperCluster) error {
	if p.structured() {
		views := make([]superClusterView, 0, len(scs))
		for _, sc := range scs {
			views = append(views, superClusterOf(db, sc))
		}
		return p.encode(views)
	}
	return sctext.Write(p.writer, db, scs)
}

type placementView struct {
	Container string `json:"container" yaml:"container"`
	Bits      string `json:"bits" yaml:"bits"`
	Slice     string `json:"slice" yaml:"slice"`
}

type allocView struct {
	Uid        int              `json:"uid" yaml:"uid"`
	Width      int              `json:"width" yaml:"width"`
	Alignments []map[int]int    `json:"alignments" yaml:"alignments"`
	Placements []placementView  `json:"placements,omitempty" yaml:"placements,omitempty"`
	Error      *allocErrorView  `json:"error,omitempty" yaml:"error,omitempty"`
	Clusters   map[int][]string `json:"clusters" yaml:"clusters"`
}

type allocErrorView struct {
	Code    cluster.ErrorCode `json:"code" yaml:"code"`
	Message string            `json:"message" yaml:"message"`
}

// PrintAlignments prints the candidate alignments of sc at width w and,
// when res is non-nil, the outcome of placing them.
func (p *Printer) PrintAlignments(db *field.Database, sc *cluster.SuperCluster, w int,
	aligns []*cluster.ScAllocAlignment, res *cluster.AllocResult,
) error {
	v := allocView{Uid: sc.Uid, Width: w, Alignments: []map[int]int{}, Clusters: map[int][]string{}}
	for _, ac := range sc.AlignedClusters() {
		var names []string
		for _, s := range ac.Slices() {
			names = append(names, db.SliceString(s))
		}
		v.Clusters[ac.ID()] = names
	}
	for _, a := range aligns {
		m := make(map[int]int, a.Len())
		for _, id := range a.IDs() {
			m[id], _ = a.Start(id)
		}
		v.Alignments = append(v.Alignments, m)
	}
	if res != nil {
		if res.Ok() {
			for _, pl := range res.Tx.Placements() {
				v.Placements = append(v.Placements, placementView{
					Container: pl.Container.String(),
					Bits:      pl.Bits().String(),
					Slice:     db.SliceString(pl.Slice),
				})
			}
		} else {
			v.Error = &allocErrorView{Code: res.Err.Code, Message: res.Err.Msg}
		}
	}
	if p.structured() {
		return p.encode(v)
	}

	if err := p.title(fmt.Sprintf("SuperCluster %d: %d alignment(s) at width %d", sc.Uid, len(aligns), w)); err != nil {
		return err
	}
	t := newTable("#", "ALIGNMENT")
	for i, a := range aligns {
		t.add(i, a.String())
	}
	if err := t.render(p.writer, p.opts.MaxRows); err != nil {
		return err
	}
	if res == nil {
		return nil
	}
	fmt.Fprintln(p.writer)
	if !res.Ok() {
		_, err := fmt.Fprintf(p.writer, "allocation failed: %s\n", res.Err.Error())
		return err
	}
	if err := p.title("Placement"); err != nil {
		return err
	}
	_, err := fmt.Fprint(p.writer, cluster.Describe(db, res.Tx.Placements()))
	return err
}
