package model

// Stats aggregates a result for dashboards and reports.
type Stats struct {
	TotalEndpoints int            `json:"total_endpoints"`
	ByMethod       map[string]int `json:"by_method"`
	ByFramework    map[string]int `json:"by_framework"`
	ByAuthType     map[string]int `json:"by_auth_type"`

	Security      SecurityStats      `json:"security"`
	Complexity    ComplexityStats    `json:"complexity"`
	Documentation DocumentationStats `json:"documentation"`
	Performance   PerformanceStats   `json:"performance"`
	Health        HealthStats        `json:"health"`
	Naming        NamingStats        `json:"naming"`
	Consistency   ConsistencyStats   `json:"consistency"`
	Similarity    SimilarityStats    `json:"similarity"`
	Dependencies  DependencyStats    `json:"dependencies"`
}

// SecurityStats rolls up security reports.
type SecurityStats struct {
	IssuesBySeverity    map[string]int `json:"issues_by_severity"`
	IssuesByType        map[string]int `json:"issues_by_type"`
	WithoutAuth         int            `json:"without_auth"`
	WithoutRateLimit    int            `json:"without_rate_limit"`
	WithoutValidation   int            `json:"without_validation"`
	AverageScore        float64        `json:"average_score"`
	EndpointsWithIssues int            `json:"endpoints_with_issues"`
}

// ComplexityStats rolls up complexity reports.
type ComplexityStats struct {
	Average float64 `json:"average"`
	Low     int     `json:"low"`    // 1-3
	Medium  int     `json:"medium"` // 4-6
	High    int     `json:"high"`   // 7-10
}

// DocumentationStats rolls up documentation reports.
type DocumentationStats struct {
	Average         float64 `json:"average"`
	FullyDocumented int     `json:"fully_documented"`
	Undocumented    int     `json:"undocumented"`
}

// PerformanceStats rolls up performance reports.
type PerformanceStats struct {
	Latency         map[string]int `json:"latency"`
	WithCaching     int            `json:"with_caching"`
	WithPagination  int            `json:"with_pagination"`
	WithCompression int            `json:"with_compression"`
}

// HealthStats is the health score distribution.
type HealthStats struct {
	Average   float64 `json:"average"`
	Excellent int     `json:"excellent"` // >= 80
	Good      int     `json:"good"`      // 60-79
	Fair      int     `json:"fair"`      // 40-59
	Poor      int     `json:"poor"`      // < 40
}

// NamingStats is the naming score distribution.
type NamingStats struct {
	Average    float64        `json:"average"`
	Clean      int            `json:"clean"` // score 100
	Minor      int            `json:"minor"` // 80-99
	Major      int            `json:"major"` // < 80
	IssueCount map[string]int `json:"issue_count"`
}

// ConsistencyStats tallies consistency classifications.
type ConsistencyStats struct {
	ResponseFormats map[string]int `json:"response_formats"`
	ErrorHandling   map[string]int `json:"error_handling"`
	Versioning      map[string]int `json:"versioning"`
}

// SimilarityPair is one pair of similar endpoints.
type SimilarityPair struct {
	A     string `json:"a"`
	B     string `json:"b"`
	Score int    `json:"score"`
}

// SimilarityStats lists the most similar pairs.
type SimilarityStats struct {
	TopPairs            []SimilarityPair `json:"top_pairs"`
	PotentialDuplicates int              `json:"potential_duplicates"`
}

// ConnectedEndpoint ranks an endpoint by dependency degree.
type ConnectedEndpoint struct {
	Endpoint    string `json:"endpoint"`
	Connections int    `json:"connections"`
}

// DependencyStats rolls up dependency reports.
type DependencyStats struct {
	InternalCalls int                 `json:"internal_calls"`
	ExternalAPIs  []string            `json:"external_apis"`
	MostConnected []ConnectedEndpoint `json:"most_connected"`
}

// NewStats returns zeroed stats with all maps and slices allocated.
func NewStats() Stats {
	return Stats{
		ByMethod:    map[string]int{},
		ByFramework: map[string]int{},
		ByAuthType:  map[string]int{},
		Security: SecurityStats{
			IssuesBySeverity: map[string]int{},
			IssuesByType:     map[string]int{},
		},
		Performance: PerformanceStats{Latency: map[string]int{}},
		Naming:      NamingStats{IssueCount: map[string]int{}},
		Consistency: ConsistencyStats{
			ResponseFormats: map[string]int{},
			ErrorHandling:   map[string]int{},
			Versioning:      map[string]int{},
		},
		Similarity:   SimilarityStats{TopPairs: []SimilarityPair{}},
		Dependencies: DependencyStats{ExternalAPIs: []string{}, MostConnected: []ConnectedEndpoint{}},
	}
}
