package domain

import "sort"

// ChangeSet maps a field or option name to a description of its change.
type ChangeSet map[string]string

// Has returns true if the field was recorded as changed.
func (c ChangeSet) Has(field string) bool {
	_, ok := c[field]
	return ok
}

// Fields returns the changed field names in sorted order.
func (c ChangeSet) Fields() []string {
	fields := make([]string, 0, len(c))
	for f := range c {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}
