package analytics

import (
	"regexp"
	"strings"

	"github.com/QTest-hq/apimap/pkg/model"
)

var (
	structuredErrorCue = regexp.MustCompile(`\.status\s*\(\s*[45]\d\d\s*\)|\bnext\s*\(\s*(?:err|error|e)\s*\)|\bthrow\s+new\s+\w*(?:Exception|Error)\b|\braise\s+\w*(?:HTTPException|Error|NotFound|ValidationError)\b|\bc\.(?:JSON|AbortWithStatusJSON|AbortWithError)\s*\(\s*(?:http\.Status(?:Bad|Internal|NotFound|Unauthorized|Forbidden|Conflict|Unprocessable)|[45]\d\d)|\bResponseEntity\s*\.\s*(?:badRequest|notFound|status|internalServerError)\b|\babort\s*\(\s*[45]\d\d|\bstatus:\s*:(?:unprocessable_entity|not_found|bad_request|unauthorized|forbidden)|\bhttp\.Error\s*\(|\bfiber\.NewError\b|\becho\.NewHTTPError\b|\bProblem\s*\(|\b(?:BadRequest|NotFound|Conflict|UnprocessableEntity)\s*\(|\{\s*error\s*:`)
	errorTryCue        = regexp.MustCompile(`\btry\s*[{:]|\bcatch\s*[({]|\bexcept\b|\brescue\b|\bif\s+err\s*!=\s*nil\b|\?;|\bRecover\b`)

	headerVersionCue = regexp.MustCompile(`(?i)accept-version|api-version|x-api-version|application/vnd\.[\w.-]+\+json|\bHeaderApiVersionReader\b`)
	queryVersionCue  = regexp.MustCompile(`(?i)[?&](?:api-)?version=|\bQueryStringApiVersionReader\b|query\w*\s*[.\[(]\s*['"]?(?:api[-_])?version\b`)
	pathVersionSeg   = regexp.MustCompile(`(?i)^v\d+(?:\.\d+)?$`)
)

// Consistency classifies the response format, error-handling style and
// versioning scheme of an endpoint.
func Consistency(ep *model.Endpoint) model.ConsistencyReport {
	text := body(ep)
	return model.ConsistencyReport{
		ResponseFormat:  responseFormat(ep),
		ErrorHandling:   errorHandling(ep, text),
		VersioningStyle: versioning(ep, text),
	}
}

func responseFormat(ep *model.Endpoint) string {
	formats := map[string]bool{}
	for _, r := range ep.Responses {
		switch {
		case strings.Contains(r.ContentType, "json"):
			formats["json"] = true
		case strings.Contains(r.ContentType, "xml"):
			formats["xml"] = true
		case strings.Contains(r.ContentType, "html"):
			formats["html"] = true
		}
	}
	switch len(formats) {
	case 0:
		return "unknown"
	case 1:
		for f := range formats {
			return f
		}
	}
	return "mixed"
}

// errorHandling is consistent when the handler both catches errors and
// answers them through a structured error path.
func errorHandling(ep *model.Endpoint, text string) string {
	caught := errorTryCue.MatchString(text)
	structured := structuredErrorCue.MatchString(text)
	for _, r := range ep.Responses {
		if r.StatusCode >= 400 {
			structured = true
		}
	}
	switch {
	case caught && structured:
		return "consistent"
	case caught:
		return "inconsistent"
	}
	return "unknown"
}

func versioning(ep *model.Endpoint, text string) string {
	for _, seg := range strings.Split(ep.Path, "/") {
		if pathVersionSeg.MatchString(seg) {
			return "path"
		}
	}
	if headerVersionCue.MatchString(text) {
		return "header"
	}
	for _, p := range ep.ParamsIn(model.InQuery) {
		n := strings.ToLower(p.Name)
		if n == "version" || n == "api-version" || n == "api_version" || n == "v" {
			return "query"
		}
	}
	if queryVersionCue.MatchString(text) {
		return "query"
	}
	return "none"
}
