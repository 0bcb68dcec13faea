package domain

import "fmt"

// Dataset is a labeled multi-dimensional view of a compiled table: one axis
// per index column (run time, forecasted time, and any discriminator keys),
// with every remaining column as a data variable over those axes. Variable
// data is stored row-major over the coordinate grid; cells with no source row
// are nil.
type Dataset struct {
	Dims   []string
	Coords map[string][]any
	Vars   map[string][]any
	shape  []int
}

// Shape returns the length of each dimension, in Dims order.
func (ds *Dataset) Shape() []int { return ds.shape }

// Size returns the number of cells in the coordinate grid.
func (ds *Dataset) Size() int {
	n := 1
	for _, s := range ds.shape {
		n *= s
	}
	return n
}

// At returns a variable value at the given per-dimension coordinate indexes.
func (ds *Dataset) At(name string, idx ...int) (any, error) {
	data, ok := ds.Vars[name]
	if !ok {
		return nil, fmt.Errorf("no variable %s", name)
	}
	if len(idx) != len(ds.Dims) {
		return nil, fmt.Errorf("variable %s has %d dims, got %d indexes", name, len(ds.Dims), len(idx))
	}
	flat := 0
	for d, i := range idx {
		if i < 0 || i >= ds.shape[d] {
			return nil, fmt.Errorf("index %d out of range for dim %s", i, ds.Dims[d])
		}
		flat = flat*ds.shape[d] + i
	}
	return data[flat], nil
}

// PivotFrame reshapes a flat frame into a Dataset indexed by dimColumns. All
// other columns become data variables. Each (dim...) combination must map to
// at most one source row; a collision is a CardinalityError, indicating
// either a source-data anomaly or an incorrect table variant selection.
func PivotFrame(f *Frame, table string, dimColumns []string) (*Dataset, error) {
	dimIdx := make([]int, 0, len(dimColumns))
	dims := make([]string, 0, len(dimColumns))
	for _, name := range dimColumns {
		if i := f.ColumnIndex(name); i >= 0 {
			dimIdx = append(dimIdx, i)
			dims = append(dims, name)
		}
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("table %s: no index columns present to reshape on", table)
	}

	// Collect ordered unique coordinates per dimension.
	coords := make(map[string][]any, len(dims))
	positions := make([]map[string]int, len(dims))
	for d := range dims {
		positions[d] = make(map[string]int)
	}
	for _, row := range f.Rows {
		for d, idx := range dimIdx {
			key := ValueKey(row[idx])
			if _, ok := positions[d][key]; !ok {
				positions[d][key] = len(coords[dims[d]])
				coords[dims[d]] = append(coords[dims[d]], row[idx])
			}
		}
	}

	shape := make([]int, len(dims))
	size := 1
	for d, name := range dims {
		shape[d] = len(coords[name])
		size *= shape[d]
	}

	isDim := make(map[int]bool, len(dimIdx))
	for _, idx := range dimIdx {
		isDim[idx] = true
	}
	ds := &Dataset{Dims: dims, Coords: coords, Vars: make(map[string][]any), shape: shape}
	var varCols []int
	for i, c := range f.Columns {
		if isDim[i] {
			continue
		}
		ds.Vars[c.Name] = make([]any, size)
		varCols = append(varCols, i)
	}

	filled := make(map[int]bool, len(f.Rows))
	for _, row := range f.Rows {
		flat := 0
		for d, idx := range dimIdx {
			flat = flat*shape[d] + positions[d][ValueKey(row[idx])]
		}
		if filled[flat] {
			return nil, &CardinalityError{Table: table, Key: rowKey(row, dimIdx)}
		}
		filled[flat] = true
		for _, i := range varCols {
			ds.Vars[f.Columns[i].Name][flat] = row[i]
		}
	}
	return ds, nil
}
