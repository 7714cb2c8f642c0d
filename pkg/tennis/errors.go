package tennis

import "fmt"

// SchemaError reports a mandatory join key missing from a table.
type SchemaError struct {
	Table  string
	Column string
	Row    int // 1-based row index, 0 when the whole column is missing
}

func (e *SchemaError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("schema: %s row %d has no %s", e.Table, e.Row, e.Column)
	}
	return fmt.Sprintf("schema: table %s is missing key column %s", e.Table, e.Column)
}
