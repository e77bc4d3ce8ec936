package search

// Result is a single page hit returned to the caller.
type Result struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Icon           string `json:"icon,omitempty"`
	OrganizationID string `json:"organizationId"`
	ParentID       string `json:"parentId,omitempty"`
}

// Query describes a search request. OrganizationID is mandatory; results
// never cross tenants.
type Query struct {
	Text           string
	OrganizationID string
	Limit          int
	Offset         int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over page titles.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer keeps the page index in step with the page lifecycle.
type Indexer interface {
	IndexPage(p PageRecord) error
	DeletePage(id string) error
}

// PageRecord is the data we index for a page. Trashed pages are deleted
// from the index rather than flagged.
type PageRecord struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Icon           string `json:"icon"`
	OrganizationID string `json:"organizationId"`
	ParentID       string `json:"parentId"`
}
