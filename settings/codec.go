package settings

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/scatter"
)

var vecType = reflect.TypeOf(geom.Vec{})

// Options filters what Flatten emits.
type Options struct {
	// Categories limits output to these categories; nil means all.
	Categories []scatter.Category
	// Full keeps values equal to their defaults on disabled features.
	Full bool
}

func (o Options) covers(key string) bool {
	if o.Categories == nil {
		return true
	}
	c, ok := scatter.CategoryOfKey(key)
	if !ok {
		return key == scatter.MasterSeedKey
	}
	for _, want := range o.Categories {
		if want == c {
			return true
		}
	}
	return false
}

var defaults = func() map[string]any {
	out := map[string]any{}
	WalkSystem(scatter.NewSystem("", ""), func(f Field) { out[f.Key] = f.Value.Interface() })
	WalkGroup(scatter.NewGroup(""), func(f Field) { out[f.Key] = f.Value.Interface() })
	return out
}()

// IsDefault reports whether the property holds its default value.
func IsDefault(f Field) bool {
	d, ok := defaults[f.Key]
	return ok && reflect.DeepEqual(d, f.Value.Interface())
}

// Flatten encodes s as a property dictionary. Universal masks are nested
// under their <feature>_mask_dict key. Values equal to their default are
// dropped when their feature is disabled.
func Flatten(s *scatter.System, opts Options) map[string]any {
	return flatten(func(fn func(Field)) { WalkSystem(s, fn) }, opts)
}

// FlattenGroup encodes g like Flatten, with s_gr_ keys.
func FlattenGroup(g *scatter.Group, opts Options) map[string]any {
	return flatten(func(fn func(Field)) { WalkGroup(g, fn) }, Options{Full: opts.Full})
}

func flatten(walk func(func(Field)), opts Options) map[string]any {
	out := map[string]any{}
	walk(func(f Field) {
		if !opts.covers(f.Key) {
			return
		}
		if !opts.Full && !f.Enabled && IsDefault(f) {
			return
		}
		v := encode(f.Value)
		if f.Dict == "" {
			out[f.Key] = v
			return
		}
		d, _ := out[f.Dict].(map[string]any)
		if d == nil {
			d = map[string]any{}
			out[f.Dict] = d
		}
		d[f.Key] = v
	})
	return out
}

// Keys lists every property key of a system in declaration order.
func Keys(s *scatter.System) []string {
	var out []string
	WalkSystem(s, func(f Field) { out = append(out, f.Key) })
	return out
}

func index(walk func(func(Field))) (fields map[string]Field, dicts map[string]bool) {
	fields = map[string]Field{}
	dicts = map[string]bool{}
	walk(func(f Field) {
		fields[f.Key] = f
		if f.Dict != "" {
			dicts[f.Dict] = true
		}
	})
	return fields, dicts
}

// Get returns the encoded value of a property.
func Get(s *scatter.System, key string) (any, bool) {
	fields, _ := index(func(fn func(Field)) { WalkSystem(s, fn) })
	f, ok := fields[key]
	if !ok {
		return nil, false
	}
	return encode(f.Value), true
}

// Set decodes value into one property of s. A mask dictionary key accepts a
// map of its inner keys.
func Set(s *scatter.System, key string, value any) error {
	res, err := Apply(s, map[string]any{key: value})
	if err != nil {
		return err
	}
	if len(res.Ignored) > 0 {
		return scatter.Errorf(scatter.KindInvalidConfig, s.ID, key, "unknown property%s", res.hint(key))
	}
	return nil
}

// Result describes what Apply did with a dictionary.
type Result struct {
	Applied []string
	Ignored []string
	// Suggestions maps ignored keys to the closest known key.
	Suggestions map[string]string
}

func (r Result) hint(key string) string {
	if s, ok := r.Suggestions[key]; ok {
		return fmt.Sprintf(" (did you mean %s?)", s)
	}
	return ""
}

// Apply decodes a property dictionary into s. Unknown keys are ignored and
// reported; values of the wrong type are skipped and returned joined as
// invalid_config errors.
func Apply(s *scatter.System, d map[string]any) (Result, error) {
	return apply(s.ID, func(fn func(Field)) { WalkSystem(s, fn) }, d)
}

// ApplyGroup decodes s_gr_ keys into g.
func ApplyGroup(g *scatter.Group, d map[string]any) (Result, error) {
	return apply(g.Name, func(fn func(Field)) { WalkGroup(g, fn) }, d)
}

// Parse builds a system from defaults plus d.
func Parse(id string, d map[string]any) (*scatter.System, Result, error) {
	s := scatter.NewSystem(id, id)
	res, err := Apply(s, d)
	return s, res, err
}

func apply(owner string, walk func(func(Field)), d map[string]any) (Result, error) {
	fields, dicts := index(walk)
	var res Result
	var errs []error

	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var set func(key string, v any)
	set = func(key string, v any) {
		if dicts[key] {
			inner, ok := v.(map[string]any)
			if !ok {
				errs = append(errs, scatter.Errorf(scatter.KindInvalidConfig, owner, key, "expected an object, got %T", v))
				return
			}
			ik := make([]string, 0, len(inner))
			for k := range inner {
				ik = append(ik, k)
			}
			sort.Strings(ik)
			for _, k := range ik {
				set(k, inner[k])
			}
			return
		}
		f, ok := fields[key]
		if !ok {
			res.Ignored = append(res.Ignored, key)
			return
		}
		if err := decode(f.Value, v); err != nil {
			errs = append(errs, scatter.Errorf(scatter.KindInvalidConfig, owner, key, "%v", err))
			return
		}
		res.Applied = append(res.Applied, key)
	}
	for _, k := range keys {
		set(k, d[k])
	}
	if len(res.Ignored) > 0 {
		known := make([]string, 0, len(fields))
		for k := range fields {
			known = append(known, k)
		}
		sort.Strings(known)
		res.Suggestions = suggest(res.Ignored, known)
	}
	return res, errors.Join(errs...)
}

// suggest finds the closest known key for each ignored one, when close
// enough to be a likely typo.
func suggest(ignored, known []string) map[string]string {
	jw := metrics.NewJaroWinkler()
	jw.CaseSensitive = false
	out := map[string]string{}
	for _, k := range ignored {
		best, bestSim := "", 0.0
		for _, c := range known {
			if sim := strutil.Similarity(k, c, jw); sim > bestSim {
				best, bestSim = c, sim
			}
		}
		if bestSim >= 0.9 {
			out[k] = best
		}
	}
	return out
}

func encode(v reflect.Value) any {
	if v.Type() == vecType {
		vec := v.Interface().(geom.Vec)
		return []float64{vec.X, vec.Y, vec.Z}
	}
	switch v.Kind() {
	case reflect.Bool:
		return v.Bool()
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint()
	case reflect.Float32, reflect.Float64:
		return v.Float()
	case reflect.Array, reflect.Slice:
		out := make([]any, v.Len())
		for i := range out {
			out[i] = encode(v.Index(i))
		}
		return out
	}
	return v.Interface()
}

func decode(dst reflect.Value, x any) error {
	if dst.Type() == vecType {
		f, err := floats(x, 3)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(geom.V(f[0], f[1], f[2])))
		return nil
	}
	switch dst.Kind() {
	case reflect.Bool:
		b, ok := x.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", x)
		}
		dst.SetBool(b)
	case reflect.String:
		s, ok := x.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", x)
		}
		dst.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f, ok := number(x)
		if !ok || f != math.Trunc(f) {
			return fmt.Errorf("expected integer, got %v", x)
		}
		dst.SetInt(int64(f))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f, ok := number(x)
		if !ok || f < 0 || f != math.Trunc(f) {
			return fmt.Errorf("expected unsigned integer, got %v", x)
		}
		dst.SetUint(uint64(f))
	case reflect.Float32, reflect.Float64:
		f, ok := number(x)
		if !ok {
			return fmt.Errorf("expected number, got %T", x)
		}
		dst.SetFloat(f)
	case reflect.Array:
		items, ok := list(x)
		if !ok || len(items) != dst.Len() {
			return fmt.Errorf("expected list of %d, got %v", dst.Len(), x)
		}
		tmp := reflect.New(dst.Type()).Elem()
		for i, it := range items {
			if err := decode(tmp.Index(i), it); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		dst.Set(tmp)
	case reflect.Slice:
		items, ok := list(x)
		if !ok {
			return fmt.Errorf("expected list, got %T", x)
		}
		tmp := reflect.MakeSlice(dst.Type(), len(items), len(items))
		for i, it := range items {
			if err := decode(tmp.Index(i), it); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		dst.Set(tmp)
	default:
		return fmt.Errorf("unsupported field type %s", dst.Type())
	}
	return nil
}

func number(x any) (float64, bool) {
	switch v := x.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}

func list(x any) ([]any, bool) {
	switch v := x.(type) {
	case []any:
		return v, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(x)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func floats(x any, n int) ([]float64, error) {
	items, ok := list(x)
	if !ok || len(items) != n {
		return nil, fmt.Errorf("expected list of %d numbers, got %v", n, x)
	}
	out := make([]float64, n)
	for i, it := range items {
		f, ok := number(it)
		if !ok {
			return nil, fmt.Errorf("[%d]: expected number, got %T", i, it)
		}
		out[i] = f
	}
	return out, nil
}
