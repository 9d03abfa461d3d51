package analytics

import (
	"regexp"

	"github.com/QTest-hq/apimap/pkg/model"
)

var (
	paramDocCue    = regexp.MustCompile(`(?m)@param\b|@ApiParam\b|@ApiQuery\b|@Parameter\b|@PathVariable\s*\(\s*(?:value\s*=\s*)?"[^"]*"\s*,\s*description|:param\s+\w+|\bArgs:\s*$|\b(?:Query|Path|Header|Body|Form)\s*\([^)]*\bdescription\s*=|<param\s+name=|@queryParam\b|@urlParam\b`)
	responseDocCue = regexp.MustCompile(`(?m)@returns?\b|@ApiResponse\b|@ApiOkResponse\b|@ApiCreatedResponse\b|@Operation\b|@response\b|:returns?:|\bReturns:\s*$|\bresponses\s*=|\bresponse_model\s*=|<returns>|\[ProducesResponseType|@Success\b|@Failure\b`)
	exampleCue     = regexp.MustCompile(`(?i)@example\b|\bexamples?\s*[:=]|<example>|\bschema_extra\b|@ApiProperty\s*\(\s*\{[^}]*\bexample\b`)
)

// Documentation scores how well an endpoint is documented:
// description 30, parameter docs 25, response docs 25, examples 20.
func Documentation(ep *model.Endpoint) model.DocumentationReport {
	docs := docBlock(ep) + "\n" + body(ep)
	r := model.DocumentationReport{
		HasDescription:  ep.Description != "",
		HasParamDocs:    paramDocCue.MatchString(docs),
		HasResponseDocs: responseDocCue.MatchString(docs),
		HasExamples:     exampleCue.MatchString(docs) || (ep.RequestBody != nil && ep.RequestBody.Example != ""),
	}
	for _, p := range ep.Parameters {
		if p.Description != "" {
			r.HasParamDocs = true
		}
	}

	if r.HasDescription {
		r.Score += 30
	}
	if r.HasParamDocs {
		r.Score += 25
	}
	if r.HasResponseDocs {
		r.Score += 25
	}
	if r.HasExamples {
		r.Score += 20
	}
	return r
}
