package sctext

import (
	"bytes"
	"io"
	"strconv"

	"github.com/joshuapare/phvkit/phv/cluster"
	"github.com/joshuapare/phvkit/phv/field"
)

// Format renders one supercluster in the debug dump format.
func Format(db *field.Database, sc *cluster.SuperCluster) string {
	var buf bytes.Buffer
	emitSuperCluster(&buf, db, sc)
	return buf.String()
}

// Write renders superclusters back to back.
func Write(w io.Writer, db *field.Database, scs []*cluster.SuperCluster) error {
	var buf bytes.Buffer
	for _, sc := range scs {
		emitSuperCluster(&buf, db, sc)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func emitSuperCluster(buf *bytes.Buffer, db *field.Database, sc *cluster.SuperCluster) {
	buf.WriteString(SuperClusterPrefix)
	buf.WriteString(strconv.Itoa(sc.Uid))
	buf.WriteString(LF)

	buf.WriteString(SectionIndent + SliceListsHeader + LF)
	if len(sc.SliceLists()) == 0 {
		buf.WriteString(EntryIndent + EmptyList + LF)
	}
	for _, l := range sc.SliceLists() {
		for i, s := range l.Slices {
			if i == 0 {
				buf.WriteString(EntryIndent + ListOpen)
			} else {
				buf.WriteString(ContinuationIndent)
			}
			buf.WriteString(db.SliceString(s))
			if i == len(l.Slices)-1 {
				buf.WriteString(ListClose)
			}
			buf.WriteString(LF)
		}
	}

	buf.WriteString(SectionIndent + RotationalHeader + LF)
	for _, rc := range sc.Rotational() {
		buf.WriteString(EntryIndent + GroupOpen)
		for i, ac := range rc.Clusters() {
			if i > 0 {
				buf.WriteString(SliceSeparator)
			}
			buf.WriteString(GroupOpen)
			for j, s := range ac.Slices() {
				if j > 0 {
					buf.WriteString(SliceSeparator)
				}
				buf.WriteString(db.SliceString(s))
			}
			buf.WriteString(GroupClose)
		}
		buf.WriteString(GroupClose + LF)
	}
}
