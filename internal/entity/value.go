// ABOUTME: Cacheable value shapes: a single record or an ordered collection
// ABOUTME: Both deep-copy cleanly so cached state never aliases caller state

package entity

// Value is what a cache entry holds: either a single record or an ordered
// collection of records. CloneValue must return a deep, independent copy.
type Value interface {
	CloneValue() Value
}

// Collection is an ordered list of records of one type, plus the server's
// total count (which may exceed len(Records) for paginated responses).
type Collection struct {
	Type    Type
	Records []Record
	Count   int
}

func (c *Collection) CloneValue() Value {
	out := &Collection{Type: c.Type, Count: c.Count}
	if c.Records != nil {
		out.Records = make([]Record, len(c.Records))
		for i, r := range c.Records {
			out.Records[i] = r.Clone()
		}
	}
	return out
}

// Find returns the index of the record with the given id, or -1.
func (c *Collection) Find(id string) int {
	for i, r := range c.Records {
		if r.RecordID() == id {
			return i
		}
	}
	return -1
}

// Filtered returns the records matching the given status predicate, in order.
func (c *Collection) Filtered(keep func(Status) bool) []Record {
	var out []Record
	for _, r := range c.Records {
		if keep(r.RecordStatus()) {
			out = append(out, r)
		}
	}
	return out
}

// Single wraps one record as a cacheable value.
type Single struct {
	Record Record
}

func (s *Single) CloneValue() Value {
	if s.Record == nil {
		return &Single{}
	}
	return &Single{Record: s.Record.Clone()}
}
