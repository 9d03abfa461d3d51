package model

// Severity grades a security issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Latency is the coarse latency estimate of a handler.
type Latency string

const (
	LatencyLow    Latency = "low"
	LatencyMedium Latency = "medium"
	LatencyHigh   Latency = "high"
)

// Analytics is the derived record attached to every canonical endpoint.
type Analytics struct {
	Complexity    ComplexityReport    `json:"complexity"`
	Security      SecurityReport      `json:"security"`
	Documentation DocumentationReport `json:"documentation"`
	Performance   PerformanceReport   `json:"performance"`
	Naming        NamingReport        `json:"naming"`
	Consistency   ConsistencyReport   `json:"consistency"`
	Similarity    SimilarityReport    `json:"similarity"`
	Dependencies  DependencyReport    `json:"dependencies"`
	HealthScore   int                 `json:"health_score"`
}

// ComplexityReport scores handler complexity from 1 to 10.
type ComplexityReport struct {
	Score            int      `json:"score"`
	Factors          []string `json:"factors"`
	CyclomaticApprox int      `json:"cyclomatic_approx"`
}

// SecurityIssue is one finding from the fixed catalog.
type SecurityIssue struct {
	Type     string   `json:"type"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// SecurityReport lists controls present and issues found.
type SecurityReport struct {
	Issues             []SecurityIssue `json:"issues"`
	HasAuth            bool            `json:"has_auth"`
	HasRateLimit       bool            `json:"has_rate_limit"`
	HasInputValidation bool            `json:"has_input_validation"`
	HasSanitization    bool            `json:"has_sanitization"`
	Score              int             `json:"score"`
}

// CountBySeverity counts issues with the given severity.
func (r SecurityReport) CountBySeverity(s Severity) int {
	n := 0
	for _, i := range r.Issues {
		if i.Severity == s {
			n++
		}
	}
	return n
}

// DocumentationReport scores documentation from 0 to 100.
type DocumentationReport struct {
	Score           int  `json:"score"`
	HasDescription  bool `json:"has_description"`
	HasParamDocs    bool `json:"has_param_docs"`
	HasResponseDocs bool `json:"has_response_docs"`
	HasExamples     bool `json:"has_examples"`
}

// PerformanceReport flags performance-relevant patterns.
type PerformanceReport struct {
	HasCaching     bool    `json:"has_caching"`
	HasCompression bool    `json:"has_compression"`
	HasPagination  bool    `json:"has_pagination"`
	Latency        Latency `json:"latency"`
	Score          int     `json:"score"`
}

// NamingReport scores path naming from 0 to 100.
type NamingReport struct {
	Score  int      `json:"score"`
	Issues []string `json:"issues"`
}

// ConsistencyReport classifies response, error and versioning styles.
type ConsistencyReport struct {
	ResponseFormat  string `json:"response_format"`  // json|xml|html|mixed|unknown
	ErrorHandling   string `json:"error_handling"`   // consistent|inconsistent|unknown
	VersioningStyle string `json:"versioning_style"` // path|header|query|none
}

// SimilarityMatch is one endpoint resembling another.
type SimilarityMatch struct {
	EndpointID string `json:"endpoint_id"`
	Method     string `json:"method"`
	Path       string `json:"path"`
	Score      int    `json:"score"`
}

// SimilarityReport holds the closest matches of an endpoint.
type SimilarityReport struct {
	TopMatches         []SimilarityMatch `json:"top_matches"`
	PotentialDuplicate bool              `json:"potential_duplicate"`
}

// DependencyReport holds call edges between endpoints and to external hosts.
type DependencyReport struct {
	CallsEndpoints    []string `json:"calls_endpoints"`
	CalledByEndpoints []string `json:"called_by_endpoints"`
	ExternalAPIs      []string `json:"external_apis"`
}
