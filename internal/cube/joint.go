package cube

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

type route struct {
	cube  int
	local int
}

// Joint presents several cubes with disjoint trade sets as one cube. Trade
// indexes follow the caller-supplied id ordering.
type Joint struct {
	cubes  []Cube
	ids    *IDIndex
	routes []route
	depth  int
}

var _ Cube = (*Joint)(nil)

// NewJoint combines cubes over identical axes. When order is nil, ids are
// concatenated in cube order; otherwise order must name every trade exactly
// once.
func NewJoint(cubes []Cube, order []string) (*Joint, error) {
	if len(cubes) == 0 {
		return nil, fmt.Errorf("%w: joint cube needs at least one cube", ErrInvalidShape)
	}
	if err := sameAxes(cubes, true); err != nil {
		return nil, err
	}

	owners := make(map[string]route)
	var concat []string
	for ci, c := range cubes {
		x := c.IDsAndIndexes()
		for li := 0; li < x.Len(); li++ {
			id := x.ID(li)
			if _, dup := owners[id]; dup {
				return nil, fmt.Errorf("%w: %s appears in more than one cube", ErrDuplicateID, id)
			}
			owners[id] = route{cube: ci, local: li}
			concat = append(concat, id)
		}
	}
	if order == nil {
		order = concat
	}
	if len(order) != len(owners) {
		return nil, fmt.Errorf("%w: order names %d ids, cubes hold %d", ErrInvalidShape, len(order), len(owners))
	}
	ids, err := NewIDIndex(order)
	if err != nil {
		return nil, err
	}

	j := &Joint{cubes: cubes, ids: ids, routes: make([]route, len(order))}
	for i, id := range order {
		r, ok := owners[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s in order but in no cube", ErrNotFound, id)
		}
		j.routes[i] = r
	}
	for _, c := range cubes {
		if c.Depth() > j.depth {
			j.depth = c.Depth()
		}
	}
	return j, nil
}

// sameAxes checks asof and dates, and sample counts when samples is set.
func sameAxes(cubes []Cube, samples bool) error {
	first := cubes[0]
	for i, c := range cubes[1:] {
		if samples && c.Samples() != first.Samples() {
			return fmt.Errorf("%w: cube %d has %d samples, expected %d", ErrInvalidShape, i+1, c.Samples(), first.Samples())
		}
		if !c.Asof().Equal(first.Asof()) {
			return fmt.Errorf("%w: cube %d asof %s differs from %s", ErrInvalidShape, i+1, c.Asof().Format(time.DateOnly), first.Asof().Format(time.DateOnly))
		}
		if c.NumDates() != first.NumDates() {
			return fmt.Errorf("%w: cube %d has %d dates, expected %d", ErrInvalidShape, i+1, c.NumDates(), first.NumDates())
		}
		for k, d := range c.Dates() {
			if !d.Equal(first.Dates()[k]) {
				return fmt.Errorf("%w: cube %d date %d differs", ErrInvalidShape, i+1, k)
			}
		}
	}
	return nil
}

func (j *Joint) Asof() time.Time         { return j.cubes[0].Asof() }
func (j *Joint) Dates() []time.Time      { return j.cubes[0].Dates() }
func (j *Joint) IDsAndIndexes() *IDIndex { return j.ids }
func (j *Joint) NumIDs() int             { return j.ids.Len() }
func (j *Joint) NumDates() int           { return j.cubes[0].NumDates() }
func (j *Joint) Samples() int            { return j.cubes[0].Samples() }
func (j *Joint) Depth() int              { return j.depth }

// Parts returns the underlying cubes.
func (j *Joint) Parts() []Cube { return j.cubes }

func (j *Joint) lookup(trade int) (route, bool) {
	if trade < 0 || trade >= len(j.routes) {
		return route{}, false
	}
	return j.routes[trade], true
}

func (j *Joint) Get(trade, date, sample, depth int) float64 {
	r, ok := j.lookup(trade)
	if !ok {
		return 0
	}
	return j.cubes[r.cube].Get(r.local, date, sample, depth)
}

func (j *Joint) Set(value float64, trade, date, sample, depth int) error {
	r, ok := j.lookup(trade)
	if !ok {
		if value == 0 {
			return nil
		}
		return &OutOfRangeError{Trade: trade, Date: date, Sample: sample, Depth: depth, Value: value, Field: "trade", Limit: len(j.routes)}
	}
	return j.rebase(j.cubes[r.cube].Set(value, r.local, date, sample, depth), trade)
}

func (j *Joint) GetT0(trade, depth int) float64 {
	r, ok := j.lookup(trade)
	if !ok {
		return 0
	}
	return j.cubes[r.cube].GetT0(r.local, depth)
}

func (j *Joint) SetT0(value float64, trade, depth int) error {
	r, ok := j.lookup(trade)
	if !ok {
		if value == 0 {
			return nil
		}
		return &OutOfRangeError{Trade: trade, Date: -1, Sample: -1, Depth: depth, Value: value, Field: "trade", Limit: len(j.routes)}
	}
	return j.rebase(j.cubes[r.cube].SetT0(value, r.local, depth), trade)
}

// rebase rewrites a part's out-of-range error to the joint trade index.
func (j *Joint) rebase(err error, trade int) error {
	var oor *OutOfRangeError
	if !errors.As(err, &oor) {
		return err
	}
	e := *oor
	e.Trade = trade
	e.TradeID = j.ids.ID(trade)
	return &e
}

// SampleJoint concatenates cubes with identical trades and dates along the
// sample axis. T0 reads come from the first cube; T0 writes go to all of them.
type SampleJoint struct {
	cubes   []Cube
	offsets []int // first global sample of each cube
	samples int
	depth   int
}

var _ Cube = (*SampleJoint)(nil)

// NewSampleJoint combines cubes that each hold a contiguous sample range.
func NewSampleJoint(cubes []Cube) (*SampleJoint, error) {
	if len(cubes) == 0 {
		return nil, fmt.Errorf("%w: sample joint needs at least one cube", ErrInvalidShape)
	}
	if err := sameAxes(cubes, false); err != nil {
		return nil, err
	}
	first := cubes[0].IDsAndIndexes()
	s := &SampleJoint{cubes: cubes, offsets: make([]int, len(cubes))}
	for i, c := range cubes {
		x := c.IDsAndIndexes()
		if x.Len() != first.Len() {
			return nil, fmt.Errorf("%w: cube %d has %d ids, expected %d", ErrInvalidShape, i, x.Len(), first.Len())
		}
		for k := 0; k < x.Len(); k++ {
			if x.ID(k) != first.ID(k) {
				return nil, fmt.Errorf("%w: cube %d id %d is %s, expected %s", ErrInvalidShape, i, k, x.ID(k), first.ID(k))
			}
		}
		s.offsets[i] = s.samples
		s.samples += c.Samples()
		if c.Depth() > s.depth {
			s.depth = c.Depth()
		}
	}
	return s, nil
}

func (s *SampleJoint) Asof() time.Time         { return s.cubes[0].Asof() }
func (s *SampleJoint) Dates() []time.Time      { return s.cubes[0].Dates() }
func (s *SampleJoint) IDsAndIndexes() *IDIndex { return s.cubes[0].IDsAndIndexes() }
func (s *SampleJoint) NumIDs() int             { return s.cubes[0].NumIDs() }
func (s *SampleJoint) NumDates() int           { return s.cubes[0].NumDates() }
func (s *SampleJoint) Samples() int            { return s.samples }
func (s *SampleJoint) Depth() int              { return s.depth }

func (s *SampleJoint) locate(sample int) (int, int, bool) {
	if sample < 0 || sample >= s.samples {
		return 0, 0, false
	}
	i := sort.Search(len(s.offsets), func(i int) bool { return s.offsets[i] > sample }) - 1
	return i, sample - s.offsets[i], true
}

func (s *SampleJoint) Get(trade, date, sample, depth int) float64 {
	ci, local, ok := s.locate(sample)
	if !ok {
		return 0
	}
	return s.cubes[ci].Get(trade, date, local, depth)
}

func (s *SampleJoint) Set(value float64, trade, date, sample, depth int) error {
	ci, local, ok := s.locate(sample)
	if !ok {
		if value == 0 {
			return nil
		}
		return &OutOfRangeError{
			TradeID: s.IDsAndIndexes().ID(trade),
			Trade:   trade, Date: date, Sample: sample, Depth: depth,
			Value: value, Field: "sample", Limit: s.samples,
		}
	}
	err := s.cubes[ci].Set(value, trade, date, local, depth)
	var oor *OutOfRangeError
	if errors.As(err, &oor) {
		e := *oor
		e.Sample = sample
		return &e
	}
	return err
}

func (s *SampleJoint) GetT0(trade, depth int) float64 {
	return s.cubes[0].GetT0(trade, depth)
}

func (s *SampleJoint) SetT0(value float64, trade, depth int) error {
	for _, c := range s.cubes {
		if err := c.SetT0(value, trade, depth); err != nil {
			return err
		}
	}
	return nil
}
