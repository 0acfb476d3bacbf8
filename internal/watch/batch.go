package watch

import "sort"

// batch accumulates paths between debounce flushes. A path ends up in
// whichever set its latest event put it in.
type batch struct {
	changed map[string]struct{}
	deleted map[string]struct{}
}

func newBatch() *batch {
	return &batch{changed: map[string]struct{}{}, deleted: map[string]struct{}{}}
}

func (b *batch) change(p string) {
	delete(b.deleted, p)
	b.changed[p] = struct{}{}
}

func (b *batch) remove(p string) {
	delete(b.changed, p)
	b.deleted[p] = struct{}{}
}

func (b *batch) empty() bool { return len(b.changed) == 0 && len(b.deleted) == 0 }

// take returns sorted paths and resets the batch.
func (b *batch) take() (changed, deleted []string) {
	changed, deleted = keys(b.changed), keys(b.deleted)
	b.changed = map[string]struct{}{}
	b.deleted = map[string]struct{}{}
	return changed, deleted
}

func keys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
