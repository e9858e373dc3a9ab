package ir

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownKey indicates a mapping key that no field of the target type
// declares.
var ErrUnknownKey = errors.New("ir: unknown key")

var (
	yamlUnmarshaler = reflect.TypeFor[yaml.Unmarshaler]()
	textUnmarshaler = reflect.TypeFor[encoding.TextUnmarshaler]()
	nodeType        = reflect.TypeFor[yaml.Node]()
)

// checkKeys rejects mapping keys in n, and in every mapping nested below
// it, that the yaml tags of v's type do not declare. Types that decode
// themselves are left to their own unmarshaler. Node.Decode does not
// inherit KnownFields from the document decoder, so custom unmarshalers
// call this before decoding.
func checkKeys(n *yaml.Node, v any) error {
	return checkNode(n, reflect.TypeOf(v), true)
}

func checkNode(n *yaml.Node, t reflect.Type, top bool) error {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	if t == nodeType {
		return nil
	}
	if !top {
		pt := reflect.PointerTo(t)
		if pt.Implements(yamlUnmarshaler) || pt.Implements(textUnmarshaler) {
			return nil
		}
	}

	switch t.Kind() {
	case reflect.Struct:
		if n.Kind != yaml.MappingNode {
			return nil
		}
		fields := make(map[string]reflect.Type)
		collectKeys(t, fields)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, val := n.Content[i], n.Content[i+1]
			ft, ok := fields[k.Value]
			if !ok {
				return fmt.Errorf("%w: line %d: %q in %s", ErrUnknownKey, k.Line, k.Value, t.Name())
			}
			if err := checkNode(val, ft, false); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		if n.Kind != yaml.SequenceNode {
			return nil
		}
		for _, c := range n.Content {
			if err := checkNode(c, t.Elem(), false); err != nil {
				return err
			}
		}
	case reflect.Map:
		if n.Kind != yaml.MappingNode {
			return nil
		}
		for i := 1; i < len(n.Content); i += 2 {
			if err := checkNode(n.Content[i], t.Elem(), false); err != nil {
				return err
			}
		}
	}
	return nil
}

// collectKeys maps the yaml keys of struct t, including inlined structs,
// to their field types.
func collectKeys(t reflect.Type, out map[string]reflect.Type) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("yaml")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if strings.Contains(opts, "inline") {
			ft := f.Type
			for ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				collectKeys(ft, out)
			}
			continue
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		out[name] = f.Type
	}
}
