package miner

import (
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/QTest-hq/apimap/pkg/model"
)

// statusByName maps squashed status texts ("notfound", "created") to codes.
var statusByName = func() map[string]int {
	m := map[string]int{
		"forbid":               http.StatusForbidden,
		"createdataction":      http.StatusCreated,
		"createdatroute":       http.StatusCreated,
		"unprocessablecontent": http.StatusUnprocessableEntity,
		"internalerror":        http.StatusInternalServerError,
		"servererror":          http.StatusInternalServerError,
		"success":              http.StatusOK,
	}
	for code := 100; code < 600; code++ {
		if text := http.StatusText(code); text != "" {
			m[squash(text)] = code
		}
	}
	return m
}()

func squash(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// StatusFromName resolves a status constant or symbol such as CREATED,
// :unprocessable_entity or StatusNotFound. It returns 0 when unknown.
func StatusFromName(name string) int {
	name = strings.TrimPrefix(strings.TrimPrefix(name, ":"), "Status")
	return statusByName[squash(name)]
}

var (
	numericStatus = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:status|code|sendStatus|WriteHeader|abort|StatusCode|Status|put_status)\s*\(\s*(?:\w+\s*,\s*)?(\d{3})\b`),
		regexp.MustCompile(`\b(?:status_code|status|statusCode)\s*[:=]\s*(\d{3})\b`),
		regexp.MustCompile(`\b(?:JSON|IndentedJSON|PureJSON|String|XML|Data|NoContent|Redirect|JSONP|HTML|Blob|SendStatus)\s*\(\s*(\d{3})\b`),
		regexp.MustCompile(`\bHTTP_(\d{3})_`),
		regexp.MustCompile(`\bStatus(\d{3})[A-Z]`),
		regexp.MustCompile(`\bsend_resp\s*\(\s*\w+\s*,\s*(\d{3})`),
		regexp.MustCompile(`->json\s*\([^;]*?,\s*(\d{3})\s*\)`),
		regexp.MustCompile(`\bResponse\s*\(\s*(\d{3})\b`),
		regexp.MustCompile(`\bHTTPException\s*\(\s*(?:status_code\s*=\s*)?(\d{3})`),
	}
	namedStatus = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:http|fiber|echo|fasthttp)\.Status([A-Z]\w+)`),
		regexp.MustCompile(`\bHttpStatus\.([A-Z_]+)\b`),
		regexp.MustCompile(`\bHttpStatusCode\.(\w+)`),
		regexp.MustCompile(`\bResponseEntity\s*\.\s*(ok|created|accepted|noContent|notFound|badRequest|unprocessableEntity|internalServerError)\s*\(`),
		regexp.MustCompile(`\bResponse\.Status\.([A-Z_]+)\b`),
		regexp.MustCompile(`\bStatusCode::([A-Z_]+)\b`),
		regexp.MustCompile(`\bHttpResponse::([A-Z]\w+)\s*\(`),
		regexp.MustCompile(`\bstatus\s*(?::|=>)\s*:(\w+)|\bhead\s+:(\w+)|\bput_status\s*\(\s*(?:\w+\s*,\s*)?:(\w+)`),
		regexp.MustCompile(`\b(?:return\s+|Results\.|TypedResults\.)(Ok|Created|CreatedAtAction|CreatedAtRoute|Accepted|NoContent|NotFound|BadRequest|Unauthorized|Forbid|Conflict|UnprocessableEntity)\s*[(<]`),
		regexp.MustCompile(`\bResponse\s*\.\s*(ok|notFound|noContent|created|accepted|forbidden|badRequest|internalServerError|unauthorized)\s*\(`),
		regexp.MustCompile(`\bstatus\.HTTP_\d{3}_([A-Z_]+)`),
	}
	nestException = regexp.MustCompile(`\b(NotFound|BadRequest|Unauthorized|Forbidden|Conflict)Exception\b`)

	jsonResponseCue = regexp.MustCompile(`\.json\s*\(|\bJSON\s*\(|\bjsonify\s*\(|\bJsonResponse\b|\brender\s+json:|\bJson\s*\(|\bJson<|@ResponseBody|@RestController|application/json|\bResponseEntity\b|\bjson\s*\(\s*conn|\bResults\.\w+\(|\bjsonEncode\(|\bto_json\b|response\(\)->json`)
	xmlResponseCue  = regexp.MustCompile(`\bXML\s*\(|application/xml|\.xml\s*\(`)
	htmlResponseCue = regexp.MustCompile(`\brender_template\s*\(|\bHTML\s*\(|\bres\.render\s*\(|\brender\s*\(\s*conn|\bView\s*\(|text/html`)
	textResponseCue = regexp.MustCompile(`\bres\.send\s*\(\s*['"]|\bString\s*\(\s*(?:\d{3}|http\.)|text/plain|\bPlainTextResponse\b`)

	responseSchemaCues = []*regexp.Regexp{
		regexp.MustCompile(`response_model\s*=\s*(?:List\[|list\[)?(\w+)`),
		regexp.MustCompile(`ResponseEntity<(?:List<|Page<|Optional<)?(\w+)>`),
		regexp.MustCompile(`ActionResult<(?:IEnumerable<|List<)?(\w+)>`),
		regexp.MustCompile(`\)\s*:\s*Promise<(\w+)(?:\[\])?>`),
		regexp.MustCompile(`->\s*(?:impl\s+)?(?:Json|web::Json)<(?:Vec<)?(\w+)>`),
		regexp.MustCompile(`@ApiResponse\s*\([^)]*?type:\s*(\w+)`),
		regexp.MustCompile(`Produces<(\w+)>`),
	}
	genericSchemas = map[string]bool{
		"Object": true, "String": true, "Void": true, "void": true, "any": true, "IActionResult": true,
		"Map": true, "Response": true, "Integer": true, "Long": true, "Boolean": true, "T": true, "unknown": true,
	}
)

// recognizeResponses collects status codes set by the handler together with
// the response content type and schema.
func recognizeResponses(c *mineCtx) {
	text := c.near()
	codes := map[int]bool{}
	for _, re := range numericStatus {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if code, err := strconv.Atoi(m[1]); err == nil && code >= 100 && code < 600 {
				codes[code] = true
			}
		}
	}
	for _, re := range namedStatus {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			for _, g := range m[1:] {
				if g == "" {
					continue
				}
				if code := StatusFromName(g); code != 0 {
					codes[code] = true
				}
				break
			}
		}
	}
	for _, m := range nestException.FindAllStringSubmatch(text, -1) {
		if code := StatusFromName(m[1]); code != 0 {
			codes[code] = true
		}
	}

	ct := responseContentType(c)
	schema := ""
	for _, re := range responseSchemaCues {
		if m := re.FindStringSubmatch(c.decorators() + c.head(800)); m != nil && !genericSchemas[m[1]] {
			schema = m[1]
			break
		}
	}

	sorted := make([]int, 0, len(codes))
	for code := range codes {
		sorted = append(sorted, code)
	}
	sort.Ints(sorted)
	for _, code := range sorted {
		r := model.Response{StatusCode: code, ContentType: ct, Description: http.StatusText(code)}
		if code >= 200 && code < 300 && code != http.StatusNoContent {
			r.SchemaRef = schema
		}
		if code == http.StatusNoContent {
			r.ContentType = ""
		}
		c.ep.AddResponse(r)
	}
	if schema != "" && !hasSuccess(c.ep) {
		c.ep.AddResponse(model.Response{StatusCode: defaultStatus(c.ep.Method), ContentType: ct, SchemaRef: schema, Description: http.StatusText(defaultStatus(c.ep.Method))})
	}
}

func responseContentType(c *mineCtx) string {
	text := c.win.Preamble + c.win.Forward
	switch {
	case jsonResponseCue.MatchString(text):
		return "application/json"
	case xmlResponseCue.MatchString(text):
		return "application/xml"
	case htmlResponseCue.MatchString(text):
		return "text/html"
	case textResponseCue.MatchString(text):
		return "text/plain"
	}
	return "application/json"
}

func hasSuccess(e *model.Endpoint) bool {
	for _, r := range e.Responses {
		if r.StatusCode >= 200 && r.StatusCode < 300 {
			return true
		}
	}
	return false
}

func defaultStatus(method string) int {
	switch method {
	case "POST":
		return http.StatusCreated
	case "DELETE":
		return http.StatusNoContent
	}
	return http.StatusOK
}

// defaultResponse adds the conventional success response when the handler
// showed none, then orders responses by status code.
func defaultResponse(c *mineCtx) {
	if !hasSuccess(c.ep) {
		code := defaultStatus(c.ep.Method)
		r := model.Response{StatusCode: code, Description: http.StatusText(code)}
		if code != http.StatusNoContent {
			r.ContentType = responseContentType(c)
		}
		c.ep.AddResponse(r)
	}
	sort.SliceStable(c.ep.Responses, func(i, j int) bool {
		return c.ep.Responses[i].StatusCode < c.ep.Responses[j].StatusCode
	})
}
