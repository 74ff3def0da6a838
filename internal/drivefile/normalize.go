package drivefile

// Normalized is a record annotated with its resolved parent.
type Normalized struct {
	Record
	CurrentParent string `json:"currentParent"`
}

type flattenFrame struct {
	record    Record
	enclosing string
}

// Flatten turns flat or tree-shaped input into a pre-order flat list. The
// resolved parent is parents[0] when present, else the enclosing tree node,
// else root. A blank first parent stays blank so callers can treat it as
// unresolved. Children are stripped from the output records.
func Flatten(records []Record) []Normalized {
	flattened := make([]Normalized, 0, len(records))
	stack := make([]flattenFrame, 0, len(records))
	for index := len(records) - 1; index >= 0; index-- {
		stack = append(stack, flattenFrame{record: records[index]})
	}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children := current.record.Children
		record := current.record.Clone()
		record.Children = nil
		flattened = append(flattened, Normalized{
			Record:        record,
			CurrentParent: resolveParent(record, current.enclosing),
		})
		for index := len(children) - 1; index >= 0; index-- {
			stack = append(stack, flattenFrame{record: children[index], enclosing: record.ID})
		}
	}
	return flattened
}

func resolveParent(record Record, enclosing string) string {
	if parentID, ok := record.ParentID(); ok {
		return parentID
	}
	if enclosing != "" {
		return enclosing
	}
	return RootID
}

// Records strips the normalization annotation, writing the resolved parent
// back into parents so the output re-normalizes to the same value.
func Records(normalized []Normalized) []Record {
	records := make([]Record, len(normalized))
	for index, item := range normalized {
		record := item.Record.Clone()
		if _, ok := record.ParentID(); !ok && item.CurrentParent != "" {
			record.Parents = []string{item.CurrentParent}
		}
		records[index] = record
	}
	return records
}
