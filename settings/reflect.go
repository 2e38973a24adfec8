// Package settings converts systems and groups to and from flat property
// dictionaries keyed `s_<category>[_<feature>]_<property>`, and reads and
// writes preset and biome files built on those dictionaries.
package settings

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/pthm-cable/scatter/scatter"
)

// TagKind says how a tagged struct field contributes to property keys.
type TagKind int

const (
	TagScalar TagKind = iota
	TagCategory
	TagGroup
	TagInline
	TagDict
	TagSlots
	TagSkip
)

// Tag is a parsed prop struct tag.
type Tag struct {
	Name string
	Kind TagKind
	// Attach joins Name to the parent prefix without a separator
	// (s_pattern + 1 = s_pattern1).
	Attach bool
}

// ParseTag parses a prop struct tag.
// Format: `prop:"name[,kind][,attach]"`
// Examples:
//
//	`prop:"density"`            s_distribution_density
//	`prop:"random,group"`       nested feature, prefix s_scale_random
//	`prop:"1,group,attach"`     nested feature, prefix s_pattern1
//	`prop:",inline"`            embedded record sharing the parent prefix
//	`prop:"mask_dict,dict"`     universal mask nested under <prefix>_mask_dict
//	`prop:"id,slots"`           array of records keyed <prefix>_id_01_<prop>
//	`prop:"scale,category"`     category root, prefix s_scale
func ParseTag(tag string) Tag {
	if tag == "" || tag == "-" {
		return Tag{Kind: TagSkip}
	}
	parts := strings.Split(tag, ",")
	t := Tag{Name: strings.TrimSpace(parts[0])}
	for _, opt := range parts[1:] {
		switch strings.TrimSpace(opt) {
		case "category":
			t.Kind = TagCategory
		case "group":
			t.Kind = TagGroup
		case "inline":
			t.Kind = TagInline
		case "dict":
			t.Kind = TagDict
		case "slots":
			t.Kind = TagSlots
		case "attach":
			t.Attach = true
		}
	}
	return t
}

// Field is one addressable leaf property.
type Field struct {
	Key string
	// Dict is the enclosing mask dictionary key, empty for top-level keys.
	Dict string
	// Feature is the key prefix of the enclosing feature, e.g. s_scale_random.
	Feature string
	// Enabled reports whether the enclosing feature is switched on.
	Enabled bool
	Value   reflect.Value
}

func join(prefix, name string) string {
	switch {
	case prefix == "":
		return name
	case name == "":
		return prefix
	}
	return prefix + "_" + name
}

// walker enumerates the leaves of tagged structs.
type walker struct {
	fn func(Field)
}

// Walk calls fn for every property of v, which must be a pointer to a
// System, Group or category record. prefix is the key prefix of v.
func Walk(v any, prefix string, fn func(Field)) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return
	}
	w := walker{fn: fn}
	w.record(rv, prefix, prefix, "", true)
}

// WalkSystem enumerates every property of s.
func WalkSystem(s *scatter.System, fn func(Field)) { Walk(s, "", fn) }

// WalkGroup enumerates every property of g using the s_gr_ prefixes.
func WalkGroup(g *scatter.Group, fn func(Field)) { Walk(g, "gr", fn) }

// WalkCategory enumerates the properties of one category of s.
func WalkCategory(s *scatter.System, c scatter.Category, fn func(Field)) {
	Walk(s.Category(c), c.Prefix(), fn)
}

var gates = map[string]bool{"allow": true, "master_allow": true, "mask_allow": true}

func (w walker) record(v reflect.Value, prefix, feature, dict string, enabled bool) {
	t := v.Type()
	// A record's own allow/master field gates the rest of it.
	for i := 0; i < t.NumField(); i++ {
		tag := ParseTag(t.Field(i).Tag.Get("prop"))
		if tag.Kind == TagScalar && gates[tag.Name] && v.Field(i).Kind() == reflect.Bool {
			enabled = enabled && v.Field(i).Bool()
		}
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := ParseTag(sf.Tag.Get("prop"))
		name := tag.Name
		fv := v.Field(i)
		switch tag.Kind {
		case TagSkip:
			continue
		case TagCategory:
			p := "s_" + name
			if prefix != "" {
				p = "s_" + prefix + "_" + name
			}
			w.record(fv, p, p, "", true)
		case TagGroup:
			p := join(prefix, name)
			if tag.Attach {
				p = prefix + name
			}
			w.record(fv, p, p, dict, enabled)
		case TagInline:
			w.record(fv, prefix, feature, dict, enabled)
		case TagDict:
			w.record(fv, feature, feature, join(feature, name), enabled)
		case TagSlots:
			for j := 0; j < fv.Len(); j++ {
				p := join(join(prefix, name), fmt.Sprintf("%02d", j+1))
				w.record(fv.Index(j), p, feature, dict, enabled)
			}
		case TagScalar:
			w.fn(Field{
				Key:     join(prefix, name),
				Dict:    dict,
				Feature: feature,
				Enabled: enabled,
				Value:   fv,
			})
		}
	}
}
