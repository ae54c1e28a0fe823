package aggregate

// Tally counts string occurrences and remembers the order values first appeared in,
// so the most common value is stable under ties.
type Tally struct {
	counts map[string]int
	order  []string
}

// NewTally returns an empty tally.
func NewTally() *Tally {
	return &Tally{counts: map[string]int{}}
}

// Add records one occurrence of value.
func (t *Tally) Add(value string) {
	if _, ok := t.counts[value]; !ok {
		t.order = append(t.order, value)
	}
	t.counts[value]++
}

// Count reports how often value was added.
func (t *Tally) Count(value string) int {
	return t.counts[value]
}

// Len is the number of distinct values.
func (t *Tally) Len() int {
	return len(t.order)
}

// MostCommon returns the most frequent value; ties go to the value seen first.
func (t *Tally) MostCommon() (string, bool) {
	best, bestCount := "", 0
	for _, value := range t.order {
		if c := t.counts[value]; c > bestCount {
			best, bestCount = value, c
		}
	}
	return best, bestCount > 0
}
