package sonata

import (
	"context"
	"math"
	"regexp"
	"slices"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/sonata/container"
	"github.com/hupe1980/sonata/errs"
	"github.com/hupe1980/sonata/internal/bulkread"
	"github.com/hupe1980/sonata/selection"
)

const (
	groupAttributes = "0"
	groupLibrary    = "@library"
	groupDynamics   = "dynamics_params"
)

// scanBlockRows bounds the rows read at once when an attribute is scanned
// for matches.
const scanBlockRows = bulkread.MinGapSize

// Population is a named table of nodes or edges. Attribute columns live in
// group "0"; enumeration attributes store codes into a string table in
// "0/@library" and dynamics attributes live in "0/dynamics_params".
//
// A Population is immutable and safe for concurrent use.
type Population struct {
	f    *container.File
	kind string
	name string
	path string
	opts Options
	size uint64

	attributes   []string
	enumerations []string
	dynamics     []string
}

func newPopulation(f *container.File, kind, name string, opts Options) (*Population, error) {
	path := "/" + kind + "s/" + name
	ds, err := f.Dataset(path + "/" + kind + "_type_id")
	if err != nil {
		return nil, translateError(err)
	}
	p := &Population{f: f, kind: kind, name: name, path: path, opts: opts, size: ds.Rows()}

	group := path + "/" + groupAttributes
	if !f.IsGroup(group) {
		return p, nil
	}
	if p.attributes, err = f.Datasets(group); err != nil {
		return nil, err
	}
	if f.IsGroup(group + "/" + groupLibrary) {
		libs, err := f.Datasets(group + "/" + groupLibrary)
		if err != nil {
			return nil, err
		}
		for _, lib := range libs {
			if _, ok := slices.BinarySearch(p.attributes, lib); ok {
				p.enumerations = append(p.enumerations, lib)
			}
		}
	}
	if f.IsGroup(group + "/" + groupDynamics) {
		if p.dynamics, err = f.Datasets(group + "/" + groupDynamics); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Name returns the population name.
func (p *Population) Name() string {
	return p.name
}

// Size returns the number of nodes or edges.
func (p *Population) Size() uint64 {
	return p.size
}

// SelectAll returns [0, Size()).
func (p *Population) SelectAll() selection.Selection {
	return selection.All(p.size)
}

// AttributeNames returns the sorted attribute names, enumerations included.
func (p *Population) AttributeNames() []string {
	return slices.Clone(p.attributes)
}

// EnumerationNames returns the sorted names of library-mapped attributes.
func (p *Population) EnumerationNames() []string {
	return slices.Clone(p.enumerations)
}

// DynamicsAttributeNames returns the sorted dynamics attribute names.
func (p *Population) DynamicsAttributeNames() []string {
	return slices.Clone(p.dynamics)
}

// HasAttribute reports whether name is an attribute of p.
func (p *Population) HasAttribute(name string) bool {
	_, ok := slices.BinarySearch(p.attributes, name)
	return ok
}

// IsEnumeration reports whether name is a library-mapped attribute.
func (p *Population) IsEnumeration(name string) bool {
	_, ok := slices.BinarySearch(p.enumerations, name)
	return ok
}

// HasDynamicsAttribute reports whether name is a dynamics attribute of p.
func (p *Population) HasDynamicsAttribute(name string) bool {
	_, ok := slices.BinarySearch(p.dynamics, name)
	return ok
}

func (p *Population) attrError(name string, err error) error {
	return &errs.AttributeError{Population: p.name, Attribute: name, Err: err}
}

func (p *Population) attributeDataset(name string) (*container.Dataset, error) {
	if !p.HasAttribute(name) {
		return nil, p.attrError(name, errs.Errorf(errs.ErrNotFound, "no such attribute"))
	}
	return p.f.Dataset(p.path + "/" + groupAttributes + "/" + name)
}

func (p *Population) dynamicsDataset(name string) (*container.Dataset, error) {
	if !p.HasDynamicsAttribute(name) {
		return nil, p.attrError(name, errs.Errorf(errs.ErrNotFound, "no such dynamics attribute"))
	}
	return p.f.Dataset(p.path + "/" + groupAttributes + "/" + groupDynamics + "/" + name)
}

// AttributeDataType returns the stored type of an attribute. Enumerations
// report the type of their codes.
func (p *Population) AttributeDataType(name string) (container.DType, error) {
	ds, err := p.attributeDataset(name)
	if err != nil {
		return container.Invalid, err
	}
	return ds.DType(), nil
}

// DynamicsAttributeDataType returns the stored type of a dynamics attribute.
func (p *Population) DynamicsAttributeDataType(name string) (container.DType, error) {
	ds, err := p.dynamicsDataset(name)
	if err != nil {
		return container.Invalid, err
	}
	return ds.DType(), nil
}

func (p *Population) checkSelection(sel selection.Selection) error {
	if last, ok := sel.Max(); ok && last >= p.size {
		return errs.Errorf(errs.ErrRange, "id %d out of range [0, %d) of population %q", last, p.size, p.name)
	}
	return nil
}

// EnumerationValues returns the string table of an enumeration attribute.
func (p *Population) EnumerationValues(ctx context.Context, name string) ([]string, error) {
	if !p.IsEnumeration(name) {
		return nil, p.attrError(name, errs.Errorf(errs.ErrNotFound, "no such enumeration"))
	}
	ds, err := p.f.Dataset(p.path + "/" + groupAttributes + "/" + groupLibrary + "/" + name)
	if err != nil {
		return nil, p.attrError(name, err)
	}
	values, err := container.ReadAllStrings(ctx, ds)
	if err != nil {
		return nil, p.attrError(name, err)
	}
	return values, nil
}

func fill[T any](n uint64, v T) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func readNumeric[T container.Element](ctx context.Context, p *Population, name string, ds *container.Dataset, sel selection.Selection) ([]T, error) {
	if err := p.checkSelection(sel); err != nil {
		return nil, p.attrError(name, err)
	}
	values, err := container.ReadSelection[T](ctx, ds, sel)
	if err != nil {
		return nil, p.attrError(name, err)
	}
	return values, nil
}

// GetAttribute reads a numeric attribute for the ids of sel, in ascending id
// order. If the attribute does not exist and a default is given, the default
// is returned for every id. Enumerations must be read with GetEnumeration or
// GetAttributeStrings.
func GetAttribute[T container.Element](ctx context.Context, p *Population, name string, sel selection.Selection, def ...T) ([]T, error) {
	if !p.HasAttribute(name) && len(def) > 0 {
		if err := p.checkSelection(sel); err != nil {
			return nil, p.attrError(name, err)
		}
		return fill(sel.FlatSize(), def[0]), nil
	}
	if p.IsEnumeration(name) {
		return nil, p.attrError(name, errs.Errorf(errs.ErrTypeMismatch, "enumeration attribute read as %s", container.DTypeOf[T]()))
	}
	ds, err := p.attributeDataset(name)
	if err != nil {
		return nil, err
	}
	return readNumeric[T](ctx, p, name, ds, sel)
}

// GetDynamicsAttribute reads a numeric dynamics attribute for the ids of sel.
func GetDynamicsAttribute[T container.Element](ctx context.Context, p *Population, name string, sel selection.Selection, def ...T) ([]T, error) {
	if !p.HasDynamicsAttribute(name) && len(def) > 0 {
		if err := p.checkSelection(sel); err != nil {
			return nil, p.attrError(name, err)
		}
		return fill(sel.FlatSize(), def[0]), nil
	}
	ds, err := p.dynamicsDataset(name)
	if err != nil {
		return nil, err
	}
	return readNumeric[T](ctx, p, name, ds, sel)
}

// GetEnumeration reads the raw codes of an enumeration attribute.
func GetEnumeration[T container.Element](ctx context.Context, p *Population, name string, sel selection.Selection) ([]T, error) {
	if !p.IsEnumeration(name) {
		if p.HasAttribute(name) {
			return nil, p.attrError(name, errs.Errorf(errs.ErrTypeMismatch, "not an enumeration"))
		}
		return nil, p.attrError(name, errs.Errorf(errs.ErrNotFound, "no such enumeration"))
	}
	ds, err := p.attributeDataset(name)
	if err != nil {
		return nil, err
	}
	return readNumeric[T](ctx, p, name, ds, sel)
}

func (p *Population) readStrings(ctx context.Context, name string, ds *container.Dataset, sel selection.Selection) ([]string, error) {
	if err := p.checkSelection(sel); err != nil {
		return nil, p.attrError(name, err)
	}
	if ds.DType() != container.String {
		return nil, p.attrError(name, errs.Errorf(errs.ErrTypeMismatch, "%s attribute read as string", ds.DType()))
	}
	values, err := container.ReadStringSelection(ctx, ds, sel)
	if err != nil {
		return nil, p.attrError(name, err)
	}
	return values, nil
}

func decodeEnumeration(codes []int64, library []string) ([]string, error) {
	out := make([]string, len(codes))
	for i, c := range codes {
		if c < 0 || c >= int64(len(library)) {
			return nil, errs.Errorf(errs.ErrRange, "invalid enumeration code %d for %d values", c, len(library))
		}
		out[i] = library[c]
	}
	return out, nil
}

// GetAttributeStrings reads a string attribute for the ids of sel.
// Enumerations are decoded through their library.
func (p *Population) GetAttributeStrings(ctx context.Context, name string, sel selection.Selection, def ...string) ([]string, error) {
	if !p.HasAttribute(name) && len(def) > 0 {
		if err := p.checkSelection(sel); err != nil {
			return nil, p.attrError(name, err)
		}
		return fill(sel.FlatSize(), def[0]), nil
	}
	ds, err := p.attributeDataset(name)
	if err != nil {
		return nil, err
	}
	if !p.IsEnumeration(name) {
		return p.readStrings(ctx, name, ds, sel)
	}

	library, err := p.EnumerationValues(ctx, name)
	if err != nil {
		return nil, err
	}
	codes, err := readNumeric[int64](ctx, p, name, ds, sel)
	if err != nil {
		return nil, err
	}
	values, err := decodeEnumeration(codes, library)
	if err != nil {
		return nil, p.attrError(name, err)
	}
	return values, nil
}

// GetDynamicsAttributeStrings reads a string dynamics attribute.
func (p *Population) GetDynamicsAttributeStrings(ctx context.Context, name string, sel selection.Selection, def ...string) ([]string, error) {
	if !p.HasDynamicsAttribute(name) && len(def) > 0 {
		if err := p.checkSelection(sel); err != nil {
			return nil, p.attrError(name, err)
		}
		return fill(sel.FlatSize(), def[0]), nil
	}
	ds, err := p.dynamicsDataset(name)
	if err != nil {
		return nil, err
	}
	return p.readStrings(ctx, name, ds, sel)
}

type category int

const (
	categoryString category = iota
	categoryEnumeration
	categoryInteger
	categoryFloat
)

func (c category) String() string {
	return [...]string{"string", "enumeration", "integer", "float"}[c]
}

func (p *Population) category(name string) (category, *container.Dataset, error) {
	ds, err := p.attributeDataset(name)
	if err != nil {
		return 0, nil, err
	}
	switch {
	case p.IsEnumeration(name):
		return categoryEnumeration, ds, nil
	case ds.DType() == container.String:
		return categoryString, ds, nil
	case ds.DType().IsFloat():
		return categoryFloat, ds, nil
	default:
		return categoryInteger, ds, nil
	}
}

func (p *Population) mismatch(name string, c category, what string) error {
	return p.attrError(name, errs.Errorf(errs.ErrTypeMismatch, "%s attribute cannot be matched %s", c, what))
}

// scan evaluates match on every row of an attribute, reading bounded blocks.
func scan[T any](rows uint64, read func(selection.Range) ([]T, error), match func(T) bool) (selection.Selection, error) {
	bm := roaring64.New()
	for begin := uint64(0); begin < rows; begin += scanBlockRows {
		values, err := read(selection.Range{Begin: begin, End: min(begin+scanBlockRows, rows)})
		if err != nil {
			return selection.Selection{}, err
		}
		for i, v := range values {
			if match(v) {
				bm.Add(begin + uint64(i))
			}
		}
	}
	return selection.FromBitmap(bm), nil
}

func (p *Population) scanNumeric(ctx context.Context, name string, ds *container.Dataset, match func(float64) bool) (selection.Selection, error) {
	sel, err := scan(ds.Rows(), func(r selection.Range) ([]float64, error) {
		return container.Read[float64](ctx, ds, r)
	}, match)
	if err != nil {
		return selection.Selection{}, p.attrError(name, err)
	}
	return sel, nil
}

func (p *Population) scanInts(ctx context.Context, name string, ds *container.Dataset, match func(int64) bool) (selection.Selection, error) {
	sel, err := scan(ds.Rows(), func(r selection.Range) ([]int64, error) {
		return container.Read[int64](ctx, ds, r)
	}, match)
	if err != nil {
		return selection.Selection{}, p.attrError(name, err)
	}
	return sel, nil
}

func (p *Population) scanStrings(ctx context.Context, name string, ds *container.Dataset, match func(string) bool) (selection.Selection, error) {
	sel, err := scan(ds.Rows(), func(r selection.Range) ([]string, error) {
		return container.ReadStrings(ctx, ds, r)
	}, match)
	if err != nil {
		return selection.Selection{}, p.attrError(name, err)
	}
	return sel, nil
}

// matchLibrary selects the rows of an enumeration whose decoded value
// satisfies match. Only the library is tested; rows are compared by code.
func (p *Population) matchLibrary(ctx context.Context, name string, ds *container.Dataset, match func(string) bool) (selection.Selection, error) {
	library, err := p.EnumerationValues(ctx, name)
	if err != nil {
		return selection.Selection{}, err
	}
	codes := make(map[int64]struct{})
	for i, v := range library {
		if match(v) {
			codes[int64(i)] = struct{}{}
		}
	}
	if len(codes) == 0 {
		return selection.Selection{}, nil
	}
	return p.scanInts(ctx, name, ds, func(c int64) bool {
		_, ok := codes[c]
		return ok
	})
}

// MatchStrings selects the rows whose string or decoded enumeration value is
// one of values.
func (p *Population) MatchStrings(ctx context.Context, name string, values []string) (selection.Selection, error) {
	c, ds, err := p.category(name)
	if err != nil {
		return selection.Selection{}, err
	}
	want := make(map[string]struct{}, len(values))
	for _, v := range values {
		want[v] = struct{}{}
	}
	match := func(s string) bool {
		_, ok := want[s]
		return ok
	}
	switch c {
	case categoryEnumeration:
		return p.matchLibrary(ctx, name, ds, match)
	case categoryString:
		return p.scanStrings(ctx, name, ds, match)
	default:
		return selection.Selection{}, p.mismatch(name, c, "by string")
	}
}

// MatchInts selects the rows whose integer value is one of values.
// Enumerations are symbolic and cannot be matched by code.
func (p *Population) MatchInts(ctx context.Context, name string, values []int64) (selection.Selection, error) {
	c, ds, err := p.category(name)
	if err != nil {
		return selection.Selection{}, err
	}
	if c != categoryInteger {
		return selection.Selection{}, p.mismatch(name, c, "by integer")
	}
	if ds.DType() == container.Uint64 {
		want := make(map[uint64]struct{}, len(values))
		for _, v := range values {
			if v >= 0 {
				want[uint64(v)] = struct{}{}
			}
		}
		sel, err := scan(ds.Rows(), func(r selection.Range) ([]uint64, error) {
			return container.Read[uint64](ctx, ds, r)
		}, func(v uint64) bool {
			_, ok := want[v]
			return ok
		})
		if err != nil {
			return selection.Selection{}, p.attrError(name, err)
		}
		return sel, nil
	}
	want := make(map[int64]struct{}, len(values))
	for _, v := range values {
		want[v] = struct{}{}
	}
	return p.scanInts(ctx, name, ds, func(v int64) bool {
		_, ok := want[v]
		return ok
	})
}

// MatchValues selects the rows equal to value, which may be a string, an
// integer, an integral float64, or a slice of strings or int64.
func (p *Population) MatchValues(ctx context.Context, name string, value any) (selection.Selection, error) {
	switch v := value.(type) {
	case string:
		return p.MatchStrings(ctx, name, []string{v})
	case []string:
		return p.MatchStrings(ctx, name, v)
	case int:
		return p.MatchInts(ctx, name, []int64{int64(v)})
	case int64:
		return p.MatchInts(ctx, name, []int64{v})
	case uint64:
		if v > math.MaxInt64 {
			return selection.Selection{}, errs.Errorf(errs.ErrInvalidArgument, "value %d overflows int64", v)
		}
		return p.MatchInts(ctx, name, []int64{int64(v)})
	case []int64:
		return p.MatchInts(ctx, name, v)
	case float64:
		if v != math.Trunc(v) {
			return selection.Selection{}, p.attrError(name, errs.Errorf(errs.ErrTypeMismatch, "float %v cannot be matched by equality", v))
		}
		return p.MatchInts(ctx, name, []int64{int64(v)})
	default:
		return selection.Selection{}, errs.Errorf(errs.ErrInvalidArgument, "unsupported match value %T", value)
	}
}

// RegexMatch selects the rows whose string or decoded enumeration value fully
// matches pattern.
func (p *Population) RegexMatch(ctx context.Context, name, pattern string) (selection.Selection, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return selection.Selection{}, errs.Errorf(errs.ErrInvalidArgument, "invalid regex %q: %v", pattern, err)
	}
	c, ds, err := p.category(name)
	if err != nil {
		return selection.Selection{}, err
	}
	switch c {
	case categoryEnumeration:
		return p.matchLibrary(ctx, name, ds, re.MatchString)
	case categoryString:
		return p.scanStrings(ctx, name, ds, re.MatchString)
	default:
		return selection.Selection{}, p.mismatch(name, c, "by regex")
	}
}

// FilterNumeric selects the rows of a numeric attribute for which keep
// returns true. Values are converted to float64.
func (p *Population) FilterNumeric(ctx context.Context, name string, keep func(float64) bool) (selection.Selection, error) {
	c, ds, err := p.category(name)
	if err != nil {
		return selection.Selection{}, err
	}
	if c != categoryInteger && c != categoryFloat {
		return selection.Selection{}, p.mismatch(name, c, "numerically")
	}
	return p.scanNumeric(ctx, name, ds, keep)
}
