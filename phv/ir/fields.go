package ir

import (
	"github.com/joshuapare/phvkit/phv/field"
	"github.com/joshuapare/phvkit/pkg/diag"
)

// BuildFields creates the field database for p. Ids follow declaration
// order: for each header instance its fields and then its POV bit, and for
// each stack its validity word after the last instance. Stack validity
// words are sized from p.StackInfo, which must already be collected.
func BuildFields(p *Program) (*field.Database, error) {
	db := field.NewDatabase()
	for i := range p.Headers {
		h := &p.Headers[i]
		g, err := field.ParseGress(h.Gress)
		if err != nil {
			return nil, diag.Fatalf(h.At, "header %s: %v", h.Name, err)
		}
		var flags field.Flags
		if h.Metadata {
			flags |= field.FlagMetadata
		}
		if h.Bridged {
			flags |= field.FlagBridged | field.FlagMetadata
		}
		for _, inst := range h.Instances() {
			for _, fd := range h.Fields {
				_, err := db.Add(FieldName(inst, fd.Name), fd.Width,
					field.WithGress(g), field.WithHeader(inst), field.WithFlags(flags))
				if err != nil {
					return nil, diag.Fatalf(h.At, "header %s: %v", h.Name, err)
				}
			}
			if flags&field.FlagMetadata != 0 {
				continue
			}
			if _, err := db.Add(ValidFieldName(inst), 1,
				field.WithGress(g), field.WithHeader(inst), field.WithFlags(field.FlagPOV)); err != nil {
				return nil, diag.Fatalf(h.At, "header %s: %v", h.Name, err)
			}
		}
		if !h.IsStack() {
			continue
		}
		e, ok := p.StackInfo.Get(h.Name)
		if !ok {
			return nil, diag.Fatalf(h.At, "stack %s has no collected geometry", h.Name)
		}
		if _, err := db.Add(StackValidFieldName(h.Name), e.ValidWidth(),
			field.WithGress(g), field.WithFlags(field.FlagPOV)); err != nil {
			return nil, diag.Fatalf(h.At, "header %s: %v", h.Name, err)
		}
	}

	for i := range p.Deparsers {
		dp := &p.Deparsers[i]
		for _, em := range dp.Emits {
			f, ok := db.Lookup(em.Field)
			if !ok {
				return nil, diag.Fatalf(diag.Pos{}, "deparser emits undeclared field %s", em.Field)
			}
			f.Flags |= field.FlagDeparsed
		}
		for _, dg := range dp.Digests {
			for _, fl := range dg.FieldLists {
				for _, name := range fl {
					f, ok := db.Lookup(name)
					if !ok {
						return nil, diag.Fatalf(diag.Pos{}, "digest %s names undeclared field %s", dg.Name, name)
					}
					f.Flags |= field.FlagDigest
				}
			}
		}
	}
	return db, nil
}
