package recur

import (
	"slices"
	"sort"
)

// Cursor is a cyclic position over the values of one by-part. Values are
// interpreted against an optional maximum (days in the month, days in the
// year, weeks in the year): a negative value v stands for max+1+v, and the
// traversal order follows those normalized values. Every method that returns
// a value returns it normalized.
//
// A Cursor must hold at least one value.
type Cursor struct {
	values  []int // ascending, as given
	order   []int // values in traversal order under max
	index   int
	wrapped bool
	max     int
}

// NewCursor returns a cursor positioned on the smallest value. Duplicates
// are dropped.
func NewCursor(values []int) *Cursor {
	v := slices.Clone(values)
	slices.Sort(v)
	v = slices.Compact(v)
	return &Cursor{values: v, order: slices.Clone(v)}
}

func (c *Cursor) normalize(v int) int {
	if v < 0 && c.max > 0 {
		return c.max + 1 + v
	}
	return v
}

// Peek returns the current value.
func (c *Cursor) Peek() int {
	return c.normalize(c.order[c.index])
}

// PeekNext returns the value the next Advance would land on.
func (c *Cursor) PeekNext() int {
	return c.normalize(c.order[(c.index+1)%len(c.order)])
}

// PeekPrev returns the value the next Retreat would land on.
func (c *Cursor) PeekPrev() int {
	i := c.index - 1
	if i < 0 {
		i = len(c.order) - 1
	}
	return c.normalize(c.order[i])
}

// Advance moves forward one position, wrapping to the first value at the end.
func (c *Cursor) Advance() int {
	c.index++
	c.wrapped = c.index == len(c.order)
	if c.wrapped {
		c.index = 0
	}
	return c.Peek()
}

// Retreat moves back one position, wrapping to the last value at the start.
func (c *Cursor) Retreat() int {
	c.index--
	c.wrapped = c.index < 0
	if c.wrapped {
		c.index = len(c.order) - 1
	}
	return c.Peek()
}

// Seek moves to the first value not less than target. When every value is
// smaller the cursor wraps to the first value.
func (c *Cursor) Seek(target int) int {
	i := sort.Search(len(c.order), func(i int) bool {
		return c.normalize(c.order[i]) >= target
	})
	c.wrapped = i == len(c.order)
	if c.wrapped {
		i = 0
	}
	c.index = i
	return c.Peek()
}

// SetMaximum rebases negative values against m. When m differs from the
// current maximum the traversal order is recomputed and the cursor returns to
// its first position.
func (c *Cursor) SetMaximum(m int) {
	if m == c.max {
		return
	}
	c.max = m
	c.order = slices.Clone(c.values)
	slices.SortStableFunc(c.order, func(a, b int) int {
		return c.normalize(a) - c.normalize(b)
	})
	c.reset()
}

// NextWraps reports whether the next Advance wraps.
func (c *Cursor) NextWraps() bool {
	return c.index == len(c.order)-1
}

// PrevWraps reports whether the next Retreat wraps.
func (c *Cursor) PrevWraps() bool {
	return c.index == 0
}

// Wrapped reports whether the last move crossed the end of the list.
func (c *Cursor) Wrapped() bool {
	return c.wrapped
}

// Maximum returns the maximum negative values are rebased on, 0 if none.
func (c *Cursor) Maximum() int {
	return c.max
}

// Len returns the number of values.
func (c *Cursor) Len() int {
	return len(c.values)
}

func (c *Cursor) reset() {
	c.index = 0
	c.wrapped = false
}

// CursorState is the plain-data form of a Cursor.
type CursorState struct {
	Part    ByPart `json:"part"`
	Values  []int  `json:"values"`
	Index   int    `json:"index"`
	Wrapped bool   `json:"wrapped,omitempty"`
	Max     int    `json:"max,omitempty"`
}

func (c *Cursor) state(part ByPart) CursorState {
	return CursorState{
		Part:    part,
		Values:  slices.Clone(c.values),
		Index:   c.index,
		Wrapped: c.wrapped,
		Max:     c.max,
	}
}

func cursorFromState(s CursorState) (*Cursor, bool) {
	if len(s.Values) == 0 {
		return nil, false
	}
	c := NewCursor(s.Values)
	if len(c.values) != len(s.Values) || s.Index < 0 || s.Index >= len(c.values) || s.Max < 0 {
		return nil, false
	}
	c.SetMaximum(s.Max)
	c.index = s.Index
	c.wrapped = s.Wrapped
	return c, true
}
