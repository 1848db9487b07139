package reconcile

import (
	"fmt"

	"ftc-sync/core/utils"
)

// Classification is the output of Classify.
type Classification[U any] struct {
	// Creates holds records whose natural key is not persisted, in upstream order.
	Creates []Action[U]

	// Updates holds records with at least one differing tracked field, in upstream order.
	Updates []Action[U]

	// Unchanged counts records whose tracked fields all match.
	Unchanged int

	// Duplicates lists natural keys that appeared more than once upstream.
	Duplicates []string
}

// Classify compares upstream records against the persisted index by natural key.
// It is a pure function: absent keys become creates, keys whose tracked fields
// differ become updates, everything else is unchanged. When a key appears more than
// once the later record wins and the key is reported in Duplicates.
func Classify[U, P any](
	records []U,
	index map[string]P,
	keyFn func(U) string,
	idFn func(P) uint64,
	compareFn func(P, U) []string,
) Classification[U] {
	var result Classification[U]

	// Deduplicate first, keeping the position of the first occurrence for stable output.
	order := make([]string, 0, len(records))
	latest := make(map[string]U, len(records))
	seen := make(map[string]int, len(records))
	for _, record := range records {
		key := keyFn(record)
		seen[key]++
		if seen[key] == 1 {
			order = append(order, key)
		} else if seen[key] == 2 {
			result.Duplicates = append(result.Duplicates, key)
		}
		latest[key] = record
	}

	for _, key := range order {
		record := latest[key]

		existing, ok := index[key]
		if !ok {
			result.Creates = append(result.Creates, Action[U]{
				Type:   ActionCreate,
				Key:    key,
				Record: record,
			})
			continue
		}

		mismatch := compareFn(existing, record)
		if len(mismatch) == 0 {
			result.Unchanged++
			continue
		}

		result.Updates = append(result.Updates, Action[U]{
			Type:     ActionUpdate,
			Key:      key,
			ID:       idFn(existing),
			Mismatch: mismatch,
			Record:   record,
		})
	}

	return result
}

// Field pairs a persisted and an upstream value of one tracked field.
type Field struct {
	Name      string
	Persisted any
	Upstream  any
}

// F is shorthand for building a Field.
func F(name string, persisted, upstream any) Field {
	return Field{Name: name, Persisted: persisted, Upstream: upstream}
}

// Diff compares tracked fields on normalized values and returns one description per
// differing field, e.g. "city: upstream=San Jose persisted=Fremont".
// Temporal values are compared in canonical UTC form, nil and absent are equal,
// and numbers are compared exactly.
func Diff(fields []Field) []string {
	var mismatch []string

	for _, f := range fields {
		p, pok := utils.Canonical(f.Persisted)
		u, uok := utils.Canonical(f.Upstream)
		if pok == uok && p == u {
			continue
		}
		mismatch = append(mismatch, fmt.Sprintf("%s: upstream=%s persisted=%s", f.Name, display(u, uok), display(p, pok)))
	}

	return mismatch
}

func display(v string, ok bool) string {
	if !ok {
		return "<nil>"
	}
	return v
}
