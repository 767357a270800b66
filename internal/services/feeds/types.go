package feeds

// Change operations recorded on the write queue.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ListQuery controls a List page.
type ListQuery struct {
	Prefix string
	Limit  int
	Cursor string
	// Filter is an optional CEL expression evaluated per record with the
	// variables key (string), value (decoded JSON), and now_ms (int).
	Filter string
}

// ListPage is one page of records.
type ListPage struct {
	Keys       []string `json:"keys"`
	IsComplete bool     `json:"isComplete"`
	Cursor     string   `json:"cursor,omitempty"`
}
