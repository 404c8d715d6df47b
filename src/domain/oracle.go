package domain

// TableRow is one row of an arbitrary table, wrapped the way the API returns it.
type TableRow struct {
	Data map[string]any `json:"data"`
}
