package mp

import (
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/robert-malhotra/go-massphotometry/hdf5"
)

// Flatten traverses an open container depth-first and returns one entry per
// dataset leaf, keyed by the '/'-joined path. Nodes that cannot be opened
// or read are logged and skipped; the traversal itself never fails.
func Flatten(f *hdf5.File, log *zap.Logger) RecordSet {
	if log == nil {
		log = zap.NewNop()
	}
	rs := make(RecordSet)

	stack := []*hdf5.Group{f.Root()}
	for len(stack) > 0 {
		g := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		members, err := g.Members()
		if err != nil {
			log.Warn("skipping unreadable group",
				zap.String("path", g.Path()), zap.Error(err))
			continue
		}

		for _, name := range members {
			if sub, err := g.OpenGroup(name); err == nil {
				stack = append(stack, sub)
				continue
			}

			ds, err := g.OpenDataset(name)
			if err != nil {
				log.Warn("skipping unreadable node",
					zap.String("path", g.Path()+"/"+name), zap.Error(err))
				continue
			}

			entry, err := datasetEntry(ds)
			if err != nil {
				log.Warn("skipping unreadable dataset",
					zap.String("path", ds.Path()), zap.Error(err))
				continue
			}
			rs[recordKey(ds.Path())] = entry
		}
	}

	return rs
}

// recordKey strips the leading slash from a container path.
func recordKey(path string) string {
	return strings.TrimPrefix(path, "/")
}

// datasetEntry reads one dataset leaf into an Entry. Unsigned integer
// arrays keep their sample width (the frame codec needs it); all other
// numeric data is widened to float64.
func datasetEntry(ds *hdf5.Dataset) (Entry, error) {
	goType, err := ds.GoType()
	if err != nil {
		return Entry{}, err
	}

	if goType.Kind() == reflect.String {
		vals, err := ds.ReadString()
		if err != nil {
			return Entry{}, err
		}
		if len(vals) != 1 {
			return Entry{}, fmt.Errorf("string dataset has %d values", len(vals))
		}
		return StringEntry(vals[0]), nil
	}

	shape := intShape(ds.Shape())

	if ds.IsScalar() {
		vals, err := ds.ReadFloat64()
		if err != nil {
			return Entry{}, err
		}
		if len(vals) != 1 {
			return Entry{}, fmt.Errorf("scalar dataset has %d values", len(vals))
		}
		return ScalarEntry(vals[0]), nil
	}

	arr := &Array{Shape: shape}
	switch goType.Kind() {
	case reflect.Uint8:
		arr.U8, err = ds.ReadUint8()
	case reflect.Uint16:
		arr.U16, err = ds.ReadUint16()
	case reflect.Uint32:
		arr.U32, err = ds.ReadUint32()
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint64, reflect.Float32, reflect.Float64:
		arr.F64, err = ds.ReadFloat64()
	default:
		return Entry{}, fmt.Errorf("unsupported dataset kind %s", goType.Kind())
	}
	if err != nil {
		return Entry{}, err
	}
	if err := arr.checkShape(); err != nil {
		return Entry{}, err
	}
	return ArrayEntry(arr), nil
}

// intShape converts container dimensions to ints.
func intShape(dims []uint64) []int {
	out := make([]int, len(dims))
	for i, d := range dims {
		out[i] = int(d)
	}
	return out
}
