package cube

import "fmt"

// IDIndex is an immutable, ordered trade id → index mapping. Index order is
// construction order. It is safe to share between goroutines.
type IDIndex struct {
	ids []string
	pos map[string]int
}

// NewIDIndex builds an index over ids. Returns ErrDuplicateID on repeats.
func NewIDIndex(ids []string) (*IDIndex, error) {
	x := &IDIndex{
		ids: make([]string, len(ids)),
		pos: make(map[string]int, len(ids)),
	}
	copy(x.ids, ids)
	for i, id := range x.ids {
		if _, exists := x.pos[id]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		x.pos[id] = i
	}
	return x, nil
}

// Len returns the number of ids.
func (x *IDIndex) Len() int { return len(x.ids) }

// ID returns the id at index i, or "" if i is out of range.
func (x *IDIndex) ID(i int) string {
	if i < 0 || i >= len(x.ids) {
		return ""
	}
	return x.ids[i]
}

// Index returns the index of id.
func (x *IDIndex) Index(id string) (int, bool) {
	i, ok := x.pos[id]
	return i, ok
}

// IDs returns a copy of the ids in index order.
func (x *IDIndex) IDs() []string {
	out := make([]string, len(x.ids))
	copy(out, x.ids)
	return out
}
