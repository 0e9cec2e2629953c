package optimize

import "sort"

// Dimension is one axis of a parameter grid: a wire-name parameter and its
// candidate values.
type Dimension struct {
	Name   string
	Values []float64
}

// Grid is an ordered set of parameter dimensions. Enumeration order is fixed
// by the dimension order, so a given grid always yields the same combination
// sequence.
type Grid struct {
	dims []Dimension
}

// NewGrid returns an empty grid.
func NewGrid() *Grid { return &Grid{} }

// Add appends one dimension. It returns the grid for chaining.
func (g *Grid) Add(name string, values ...float64) *Grid {
	g.dims = append(g.dims, Dimension{Name: name, Values: values})
	return g
}

// GridFromMap builds a grid from an unordered ranges map. Dimension order is
// the sorted parameter names, which keeps enumeration reproducible.
func GridFromMap(ranges map[string][]float64) *Grid {
	names := make([]string, 0, len(ranges))
	for name := range ranges {
		names = append(names, name)
	}
	sort.Strings(names)

	g := NewGrid()
	for _, name := range names {
		g.Add(name, ranges[name]...)
	}
	return g
}

// Dimensions returns the grid's dimensions in enumeration order.
func (g *Grid) Dimensions() []Dimension { return g.dims }

// Size returns the number of combinations: the product of the candidate-list
// lengths. A grid with an empty dimension has size zero.
func (g *Grid) Size() int {
	if len(g.dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range g.dims {
		n *= len(d.Values)
	}
	return n
}

// Combos enumerates the full Cartesian product in lexicographic order over
// the dimension order, with the last dimension varying fastest. Each combo is
// a value slice aligned with Dimensions().
func (g *Grid) Combos() [][]float64 {
	size := g.Size()
	if size == 0 {
		return nil
	}

	combos := make([][]float64, 0, size)
	idx := make([]int, len(g.dims))
	for {
		combo := make([]float64, len(g.dims))
		for i, d := range g.dims {
			combo[i] = d.Values[idx[i]]
		}
		combos = append(combos, combo)

		// Advance the odometer, rightmost digit first.
		i := len(idx) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(g.dims[i].Values) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return combos
		}
	}
}
