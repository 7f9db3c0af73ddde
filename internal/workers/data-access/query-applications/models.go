// internal/workers/data-access/query-applications/models.go
package queryapplications

// Query types
const (
	QueryTypeGetApplication  = "get_application"
	QueryTypeListByUser      = "list_by_user"
	QueryTypeListApplications = "list_applications"
)

type Input struct {
	QueryType     string `json:"queryType"`
	ApplicationID string `json:"applicationId,omitempty"`
	UserID        string `json:"userId,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

type Output struct {
	Data               interface{} `json:"data"`
	RowCount           int         `json:"rowCount"`
	CacheHit           bool        `json:"cacheHit"`
	QueryExecutionTime int64       `json:"queryExecutionTime"` // milliseconds
}
