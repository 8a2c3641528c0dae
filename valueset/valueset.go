// Package valueset implements the abstract domain used by the analyses: a set
// of 32-bit signed integers stored as sorted, non-overlapping, non-adjacent
// closed intervals.
package valueset

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Cardinality of the full 32-bit range.
const AllSize uint64 = 1 << 32

// Interval is a closed range [Start, End].
type Interval struct {
	Start int32
	End   int32
}

// Size returns the number of integers in the interval.
func (iv Interval) Size() uint64 {
	return uint64(int64(iv.End)-int64(iv.Start)) + 1
}

// Set is a set of int32 values. The zero value is the empty set.
// Mutating methods modify the receiver and return it for chaining.
type Set struct {
	intervals []Interval
}

// Empty returns a new empty set.
func Empty() *Set {
	return &Set{}
}

// Of returns a set containing the given values.
func Of(values ...int32) *Set {
	s := &Set{}
	for _, v := range values {
		s.Union(&Set{intervals: []Interval{{v, v}}})
	}
	return s
}

// OfInterval returns the set [lo, hi]. The bounds are swapped if lo > hi.
func OfInterval(lo, hi int32) *Set {
	if lo > hi {
		lo, hi = hi, lo
	}
	return &Set{intervals: []Interval{{lo, hi}}}
}

// All returns the set of every representable 32-bit value.
func All() *Set {
	return OfInterval(math.MinInt32, math.MaxInt32)
}

// Clone returns an independent copy of s.
func (s *Set) Clone() *Set {
	c := &Set{intervals: make([]Interval, len(s.intervals))}
	copy(c.intervals, s.intervals)
	return c
}

// Intervals returns a copy of the underlying intervals in ascending order.
func (s *Set) Intervals() []Interval {
	out := make([]Interval, len(s.intervals))
	copy(out, s.intervals)
	return out
}

// Size returns the number of values in the set.
func (s *Set) Size() uint64 {
	var n uint64
	for _, iv := range s.intervals {
		n += iv.Size()
	}
	return n
}

// IsEmpty reports whether the set has no values.
func (s *Set) IsEmpty() bool {
	return len(s.intervals) == 0
}

// IsAll reports whether the set spans the full 32-bit range.
func (s *Set) IsAll() bool {
	return len(s.intervals) == 1 &&
		s.intervals[0].Start == math.MinInt32 &&
		s.intervals[0].End == math.MaxInt32
}

// Single returns the only value of a set of size one.
func (s *Set) Single() (int32, bool) {
	if len(s.intervals) != 1 || s.intervals[0].Start != s.intervals[0].End {
		return 0, false
	}
	return s.intervals[0].Start, true
}

// Has reports whether v is in the set.
func (s *Set) Has(v int32) bool {
	i := sort.Search(len(s.intervals), func(i int) bool {
		return s.intervals[i].End >= v
	})
	return i < len(s.intervals) && s.intervals[i].Start <= v
}

// Get returns the value of rank i in ascending order.
func (s *Set) Get(i uint64) (int32, bool) {
	for _, iv := range s.intervals {
		size := iv.Size()
		if i < size {
			return int32(int64(iv.Start) + int64(i)), true
		}
		i -= size
	}
	return 0, false
}

// Min returns the smallest value in the set.
func (s *Set) Min() (int32, bool) {
	if len(s.intervals) == 0 {
		return 0, false
	}
	return s.intervals[0].Start, true
}

// Max returns the largest value in the set.
func (s *Set) Max() (int32, bool) {
	if len(s.intervals) == 0 {
		return 0, false
	}
	return s.intervals[len(s.intervals)-1].End, true
}

// Values returns every element in ascending order. It returns nil when the
// set has more than limit elements.
func (s *Set) Values(limit int) []int32 {
	if s.Size() > uint64(limit) {
		return nil
	}
	out := make([]int32, 0, s.Size())
	for _, iv := range s.intervals {
		for v := int64(iv.Start); v <= int64(iv.End); v++ {
			out = append(out, int32(v))
		}
	}
	return out
}

// Equal reports whether s and other contain the same values.
func (s *Set) Equal(other *Set) bool {
	if len(s.intervals) != len(other.intervals) {
		return false
	}
	for i := range s.intervals {
		if s.intervals[i] != other.intervals[i] {
			return false
		}
	}
	return true
}

// Union adds every value of other to s.
func (s *Set) Union(other *Set) *Set {
	if other == nil || len(other.intervals) == 0 {
		return s
	}
	s.intervals = append(s.intervals, other.intervals...)
	s.normalize()
	return s
}

// SetAll replaces the contents of s with the full range.
func (s *Set) SetAll() *Set {
	s.intervals = []Interval{{math.MinInt32, math.MaxInt32}}
	return s
}

// Add shifts every value by k.
func (s *Set) Add(k int32) *Set {
	return s.apply(func(v int64) int64 { return v + int64(k) })
}

// Sub shifts every value by -k.
func (s *Set) Sub(k int32) *Set {
	return s.apply(func(v int64) int64 { return v - int64(k) })
}

// Mul scales every interval endpoint by k.
func (s *Set) Mul(k int32) *Set {
	return s.apply(func(v int64) int64 { return v * int64(k) })
}

// Div divides every interval endpoint by k, rounding toward zero. Division by
// zero makes the set unknown.
func (s *Set) Div(k int32) *Set {
	if k == 0 {
		if len(s.intervals) == 0 {
			return s
		}
		return s.SetAll()
	}
	return s.apply(func(v int64) int64 { return v / int64(k) })
}

// apply maps every endpoint through f. A result outside the 32-bit range makes
// the whole set unknown. Unknown stays unknown.
func (s *Set) apply(f func(int64) int64) *Set {
	if s.IsAll() {
		return s
	}
	for i, iv := range s.intervals {
		lo, hi := f(int64(iv.Start)), f(int64(iv.End))
		if lo > hi {
			lo, hi = hi, lo
		}
		if lo < math.MinInt32 || hi > math.MaxInt32 {
			return s.SetAll()
		}
		s.intervals[i] = Interval{int32(lo), int32(hi)}
	}
	s.normalize()
	return s
}

// normalize sorts the intervals and coalesces overlapping or adjacent ones.
func (s *Set) normalize() {
	if len(s.intervals) < 2 {
		return
	}
	sort.Slice(s.intervals, func(i, j int) bool {
		return s.intervals[i].Start < s.intervals[j].Start
	})
	out := s.intervals[:1]
	for _, iv := range s.intervals[1:] {
		last := &out[len(out)-1]
		if int64(iv.Start) <= int64(last.End)+1 {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	s.intervals = out
}

func (s *Set) String() string {
	if s.IsAll() {
		return "{*}"
	}
	parts := make([]string, len(s.intervals))
	for i, iv := range s.intervals {
		if iv.Start == iv.End {
			parts[i] = fmt.Sprint(iv.Start)
		} else {
			parts[i] = fmt.Sprintf("%d..%d", iv.Start, iv.End)
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
