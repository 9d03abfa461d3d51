package miner

import (
	"regexp"
	"strings"

	"github.com/QTest-hq/apimap/internal/srctext"
	"github.com/QTest-hq/apimap/pkg/model"
)

// cue is a pattern whose first non-empty group names a parameter.
type cue struct {
	langs []lang
	re    *regexp.Regexp
}

func (q cue) names(c *mineCtx, text string) []string {
	if len(q.langs) > 0 && !(recognizer{langs: q.langs}).appliesTo(c.lang) {
		return nil
	}
	var out []string
	for _, m := range q.re.FindAllStringSubmatch(text, -1) {
		for _, g := range m[1:] {
			if g != "" {
				out = append(out, g)
				break
			}
		}
	}
	return out
}

var typeWords = map[string]string{
	"int": "integer", "integer": "integer", "long": "integer", "short": "integer",
	"int32": "integer", "int64": "integer", "uint": "integer", "uint64": "integer",
	"i32": "integer", "i64": "integer", "u32": "integer", "u64": "integer", "usize": "integer",
	"float": "number", "double": "number", "decimal": "number", "number": "number",
	"float64": "number", "f32": "number", "f64": "number", "bigdecimal": "number",
	"bool": "boolean", "boolean": "boolean",
	"str": "string", "string": "string", "guid": "string", "uuid": "string",
}

func typeWord(s string) string {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "?")
	return typeWords[s]
}

// recognizePathParams reads types of path parameters from handler
// signatures and parse calls.
func recognizePathParams(c *mineCtx) {
	const parseCall = 3
	head := c.head(800)
	for i, p := range c.ep.Parameters {
		if p.In != model.InPath || p.Type != "string" {
			continue
		}
		n := regexp.QuoteMeta(p.Name)
		patterns := []string{
			// @PathVariable("id") Long itemId, @PathParam("id") long itemId
			`@(?:PathVariable|PathParam)\s*\(\s*(?:value\s*=\s*|name\s*=\s*)?"` + n + `"[^)]*\)\s*(?:final\s+)?(\w+)`,
			// Long id, int id, Guid id, [FromRoute] int id, @PathVariable Long id
			`\b(\w+)\??\s+` + n + `\b\s*[,)=]`,
			// id: int, id: number, id: i64
			`\b` + n + `\s*:\s*(\w+)`,
			// strconv.Atoi(c.Param("id")), parseInt(req.params.id)
			`(Atoi|ParseInt|parseInt|Number|int)\s*\(\s*[^)]*\b` + n + `\b`,
			// Path((id)): Path<(i64)>, Path<u32>
			`Path<\(?(\w+)\)?>`,
		}
		for j, pat := range patterns {
			m := regexp.MustCompile(pat).FindStringSubmatch(head)
			if m == nil {
				continue
			}
			t := typeWord(m[1])
			if j == parseCall {
				t = "integer"
				if m[1] == "Number" {
					t = "number"
				}
			}
			if t != "" {
				c.ep.Parameters[i].Type = t
				break
			}
		}
	}
}

var queryCues = []cue{
	{[]lang{langJS}, regexp.MustCompile(`\b(?:req|request|ctx|c)\.query\.(\w+)|\b(?:req|request|ctx)\.query\[\s*['"](\w+)['"]\s*\]|searchParams\.get\(\s*['"](\w+)['"]|@Query\(\s*['"](\w+)['"]`)},
	{[]lang{langPython}, regexp.MustCompile(`request\.(?:args|GET|query_params)\.get\(\s*['"](\w+)['"]|request\.(?:args|GET|query_params)\[\s*['"](\w+)['"]\s*\]`)},
	{[]lang{langJVM}, regexp.MustCompile(`@RequestParam\s*\(\s*(?:value\s*=\s*|name\s*=\s*)?"(\w+)"|@RequestParam(?:\([^)]*\))?\s+(?:final\s+)?[\w<>]+\s+(\w+)|@QueryParam\(\s*"(\w+)"`)},
	{[]lang{langGo}, regexp.MustCompile(`\.(?:Query|DefaultQuery|QueryParam|GetQuery)\(\s*"(\w+)"|URL\.Query\(\)\.Get\(\s*"(\w+)"`)},
	{[]lang{langCS}, regexp.MustCompile(`\[FromQuery(?:\(Name\s*=\s*"(\w+)"\))?\]\s*[\w<>?]+\s+(\w+)`)},
	{[]lang{langPHP}, regexp.MustCompile(`\$request->query\(\s*['"](\w+)['"]|\$_GET\[\s*['"](\w+)['"]`)},
	{[]lang{langRuby}, regexp.MustCompile(`request\.query_parameters\[\s*:(\w+)`)},
	{[]lang{langDart}, regexp.MustCompile(`queryParameters\[\s*['"](\w+)['"]\s*\]`)},
	{[]lang{langElixir}, regexp.MustCompile(`query_params\[\s*"(\w+)"\s*\]`)},
}

// recognizeQueryParams collects query-string reads in the handler body.
func recognizeQueryParams(c *mineCtx) {
	for _, q := range queryCues {
		for _, n := range q.names(c, c.win.Forward) {
			c.ep.AddParameter(model.Parameter{Name: n, Type: "string", In: model.InQuery})
		}
	}
	// Rails and Laravel read query and body alike; reads on safe methods
	// are query parameters
	if c.ep.IsMutating() {
		return
	}
	for _, n := range genericParamCue.names(c, c.win.Forward) {
		if !c.hasPathParam(n) {
			c.ep.AddParameter(model.Parameter{Name: n, Type: "string", In: model.InQuery})
		}
	}
}

var genericParamCue = cue{[]lang{langRuby, langPHP, langElixir}, regexp.MustCompile(`\bparams\[\s*:(\w+)\s*\]|\bparams\[\s*"(\w+)"\s*\]|\$request->(?:input|get)\(\s*['"](\w+)['"]`)}

func (c *mineCtx) hasPathParam(name string) bool {
	for _, p := range c.ep.Parameters {
		if p.In == model.InPath && p.Name == name {
			return true
		}
	}
	return false
}

var headerCues = []cue{
	{[]lang{langJS}, regexp.MustCompile(`\bheaders\[\s*['"]([\w-]+)['"]\s*\]|\bheaders\.get\(\s*['"]([\w-]+)['"]|\breq\.(?:header|get)\(\s*['"]([\w-]+)['"]|@Headers\(\s*['"]([\w-]+)['"]`)},
	{[]lang{langPython}, regexp.MustCompile(`\bheaders\.get\(\s*['"]([\w-]+)['"]|\bheaders\[\s*['"]([\w-]+)['"]\s*\]|\bMETA\[\s*['"]HTTP_(\w+)['"]`)},
	{[]lang{langJVM}, regexp.MustCompile(`@RequestHeader\s*\(\s*(?:value\s*=\s*|name\s*=\s*)?"([\w-]+)"|@HeaderParam\(\s*"([\w-]+)"`)},
	{[]lang{langGo}, regexp.MustCompile(`\.Header\.Get\(\s*"([\w-]+)"|\.GetHeader\(\s*"([\w-]+)"|\.Get\(\s*"([A-Z][\w-]+)"|Request\(\)\.Header\.Get\(\s*"([\w-]+)"`)},
	{[]lang{langCS}, regexp.MustCompile(`\[FromHeader(?:\(Name\s*=\s*"([\w-]+)"\))?\]\s*[\w<>?]+\s+(\w+)|Request\.Headers\[\s*"([\w-]+)"`)},
	{[]lang{langPHP}, regexp.MustCompile(`\$request->header\(\s*['"]([\w-]+)['"]`)},
	{[]lang{langRuby}, regexp.MustCompile(`request\.headers\[\s*['"]([\w-]+)['"]`)},
	{[]lang{langElixir}, regexp.MustCompile(`get_req_header\(\s*\w+\s*,\s*"([\w-]+)"`)},
	{[]lang{langDart}, regexp.MustCompile(`headers\[\s*['"]([\w-]+)['"]\s*\]`)},
	{[]lang{langRust}, regexp.MustCompile(`headers\(\)\.get\(\s*"([\w-]+)"|headers\.get\(\s*"([\w-]+)"`)},
}

// recognizeHeaderParams collects request header reads.
func recognizeHeaderParams(c *mineCtx) {
	for _, q := range headerCues {
		for _, n := range q.names(c, c.win.Forward) {
			if strings.EqualFold(n, "content-type") {
				continue
			}
			c.ep.AddParameter(model.Parameter{Name: n, Type: "string", In: model.InHeader})
		}
	}
}

var (
	bodyFieldCues = []cue{
		{[]lang{langJS}, regexp.MustCompile(`\b(?:req|request|ctx\.request)\.body\.(\w+)|\b(?:req|request)\.body\[\s*['"](\w+)['"]\s*\]`)},
		{[]lang{langPython}, regexp.MustCompile(`request\.(?:json|form|data|POST)\.get\(\s*['"](\w+)['"]|request\.(?:json|form|data|POST)\[\s*['"](\w+)['"]\s*\]`)},
		{[]lang{langGo}, regexp.MustCompile(`\.PostForm\(\s*"(\w+)"|\.FormValue\(\s*"(\w+)"`)},
		{[]lang{langDart}, regexp.MustCompile(`body\[\s*['"](\w+)['"]\s*\]`)},
	}
	destructuredBody = regexp.MustCompile(`\{\s*([\w\s,:]+?)\s*\}\s*=\s*(?:await\s+)?(?:req|request|ctx\.request)\.(?:body|json\(\))`)
	strongParams     = regexp.MustCompile(`params\.require\(\s*:(\w+)\s*\)\.permit\(([^)]*)\)`)
	phpValidateKeys  = regexp.MustCompile(`['"](\w+)['"]\s*=>\s*['"\[]`)
	phpValidateCall  = regexp.MustCompile(`(?s)(?:->validate|Validator::make)\s*\([^\[]*\[(.*?)\]\s*\)`)
	ectoCast         = regexp.MustCompile(`cast\(\s*\w+\s*,\s*\[([^\]]*)\]`)

	bodySchemaCues = []cue{
		{[]lang{langJVM}, regexp.MustCompile(`@RequestBody\s+(?:@Valid\s+|@Validated\s+|final\s+)*(\w+)`)},
		{[]lang{langJS}, regexp.MustCompile(`@Body\(\)\s+\w+\s*:\s*(\w+)|(\w+Schema)\.(?:parse|validate|safeParse)\(\s*req\.body`)},
		{[]lang{langCS}, regexp.MustCompile(`\[FromBody\]\s*(\w+)|\[FromForm\]\s*(\w+)`)},
		{[]lang{langRust}, regexp.MustCompile(`\b(?:web::)?(?:Json|Form)<(\w+)>`)},
		{[]lang{langGo}, regexp.MustCompile(`var\s+\w+\s+(\w+)\s*\n[^\n]*(?:Bind|BodyParser|Decode)`)},
		{[]lang{langPython}, regexp.MustCompile(`(\w+Serializer)\(\s*data\s*=`)},
		{[]lang{langPHP}, regexp.MustCompile(`\(\s*(\w+Request)\s+\$request`)},
	}
	goBindVar   = regexp.MustCompile(`(?:ShouldBind\w*|Bind\w*|BodyParser|Decode)\(\s*&(\w+)\s*\)`)
	goVarDecl   = `(?:var\s+%s\s+\*?([\w.]+)|%s\s*:?=\s*&?([\w.]+)\{)`
	bodyReadCue = regexp.MustCompile(`\breq\.body\b|\brequest\.(?:json|form|data|POST|body)\b|\bctx\.request\.body\b|\bawait\s+request\.(?:json|formData|text)\(\)|@Body\(|@RequestBody\b|\[FromBody\]|\[FromForm\]|\bShouldBind|\bBindJSON\b|\.Bind\(|BodyParser\(|json\.NewDecoder\(\w+\.Body\)|\$request->(?:input|all|validate|json)\b|\bparams\.require\b|\bJson<|\bForm<|readAsString\(\)|body_params|\bparams\[`)

	multipartCue  = regexp.MustCompile(`(?i)multipart|multer|upload\.(?:single|array|fields|any)\(|UploadFile|MultipartFile|IFormFile|FormFile\(|request\.files|->file\(|formData\(\)|@UploadedFile`)
	urlencodedCue = regexp.MustCompile(`(?i)urlencoded|request\.form\b|\bForm\(|PostForm\(|\[FromForm\]|\bForm<|request\.POST\b`)
	exampleCue    = regexp.MustCompile(`@example\s+(\{[^\n]*\})|example\s*[=:]\s*(\{[^\n]*\})`)
)

// recognizeRequestBody collects body fields and describes the payload of
// mutating endpoints that read one.
func recognizeRequestBody(c *mineCtx) {
	fwd := c.win.Forward
	var fields []string
	for _, q := range bodyFieldCues {
		fields = append(fields, q.names(c, fwd)...)
	}
	if m := destructuredBody.FindStringSubmatch(fwd); m != nil && c.lang == langJS {
		for _, part := range strings.Split(m[1], ",") {
			name := strings.TrimSpace(strings.SplitN(part, ":", 2)[0])
			fields = append(fields, name)
		}
	}
	if m := strongParams.FindStringSubmatch(fwd); m != nil && c.lang == langRuby {
		fields = append(fields, quotedItems(m[2])...)
	}
	if m := phpValidateCall.FindStringSubmatch(fwd); m != nil && c.lang == langPHP {
		for _, k := range phpValidateKeys.FindAllStringSubmatch(m[1], -1) {
			fields = append(fields, k[1])
		}
	}
	if m := ectoCast.FindStringSubmatch(fwd); m != nil && c.lang == langElixir {
		fields = append(fields, quotedItems(m[1])...)
	}
	if c.ep.IsMutating() {
		fields = append(fields, genericParamCue.names(c, fwd)...)
	}
	for _, f := range fields {
		if !c.hasPathParam(f) {
			c.ep.AddParameter(model.Parameter{Name: f, Type: "string", In: model.InBody})
		}
	}

	schema := ""
	for _, q := range bodySchemaCues {
		if n := q.names(c, c.near()); len(n) > 0 {
			schema = n[0]
			break
		}
	}
	if schema == "" && c.lang == langGo {
		schema = goBoundType(c.win.Forward)
	}

	switch c.ep.Method {
	case "POST", "PUT", "PATCH":
	case "DELETE":
		if schema == "" && len(fields) == 0 {
			return
		}
	default:
		return
	}
	if schema == "" && len(fields) == 0 && !bodyReadCue.MatchString(fwd) {
		return
	}

	body := &model.RequestBody{ContentType: "application/json", SchemaRef: schema, Required: true}
	ctx := c.near()
	switch {
	case multipartCue.MatchString(ctx):
		body.ContentType = "multipart/form-data"
	case urlencodedCue.MatchString(ctx):
		body.ContentType = "application/x-www-form-urlencoded"
	}
	if m := exampleCue.FindStringSubmatch(leadingBlock(c.win.Backward) + c.head(600)); m != nil {
		body.Example = strings.TrimSpace(m[1] + m[2])
	}
	c.ep.RequestBody = body
}

// goBoundType resolves the declared type of the variable passed to a
// Bind/Decode call.
func goBoundType(fwd string) string {
	m := goBindVar.FindStringSubmatch(fwd)
	if m == nil {
		return ""
	}
	n := regexp.QuoteMeta(m[1])
	decl := regexp.MustCompile(strings.ReplaceAll(goVarDecl, "%s", n))
	if d := decl.FindStringSubmatch(fwd); d != nil {
		t := d[1] + d[2]
		if i := strings.LastIndexByte(t, '.'); i >= 0 {
			t = t[i+1:]
		}
		return t
	}
	return ""
}

var (
	pyDef       = regexp.MustCompile(`\bdef\s+\w+\s*\(`)
	pyParam     = regexp.MustCompile(`^\*{0,2}(\w+)\s*(?::\s*([^=]+?))?\s*(?:=\s*(.+))?$`)
	pyOptional  = regexp.MustCompile(`^(?:Optional\[(.+)\]|(.+?)\s*\|\s*None)$`)
	pyScalar    = map[string]string{"int": "integer", "float": "number", "str": "string", "bool": "boolean", "UUID": "string", "date": "string", "datetime": "string"}
	pyInjected  = regexp.MustCompile(`^(?:Depends|Security|Request|BackgroundTasks|Response|Session|AsyncSession|WebSocket)\b`)
	pyParamKind = regexp.MustCompile(`^(Query|Header|Body|Form|File|Path|Cookie)\s*\(`)
)

// recognizePythonSignature reads FastAPI style handler signatures: scalar
// parameters not in the path are query parameters, model typed ones the
// body, Header()/Form()/File() defaults name their location.
func recognizePythonSignature(c *mineCtx) {
	loc := pyDef.FindStringIndex(c.win.Forward)
	if loc == nil {
		return
	}
	args, _ := srctext.CallArgs(c.win.Forward, loc[1]-1)
	for _, a := range args {
		m := pyParam.FindStringSubmatch(strings.TrimSpace(a))
		if m == nil {
			continue
		}
		name, typ, def := m[1], strings.TrimSpace(m[2]), strings.TrimSpace(m[3])
		if name == "self" || name == "cls" || name == "request" || typ == "" && def == "" {
			continue
		}
		if pyInjected.MatchString(typ) || pyInjected.MatchString(def) || strings.Contains(typ, "Depends(") {
			continue
		}
		optional := def != ""
		if om := pyOptional.FindStringSubmatch(typ); om != nil {
			typ = strings.TrimSpace(om[1] + om[2])
			optional = true
		}
		if c.hasPathParam(name) {
			if t, ok := pyScalar[typ]; ok {
				c.setPathType(name, t)
			}
			continue
		}
		kind := ""
		if km := pyParamKind.FindStringSubmatch(def); km != nil {
			kind = km[1]
			optional = strings.HasPrefix(strings.TrimSpace(strings.TrimPrefix(def, kind+"(")), "None")
		}
		switch {
		case kind == "Header":
			c.ep.AddParameter(model.Parameter{Name: strings.ReplaceAll(name, "_", "-"), Type: scalarOr(typ), Required: !optional, In: model.InHeader})
		case kind == "Form" || kind == "File":
			c.ep.AddParameter(model.Parameter{Name: name, Type: scalarOr(typ), Required: !optional, In: model.InBody})
			ct := "application/x-www-form-urlencoded"
			if kind == "File" || strings.Contains(typ, "UploadFile") {
				ct = "multipart/form-data"
			}
			if c.ep.RequestBody == nil {
				c.ep.RequestBody = &model.RequestBody{Required: true}
			}
			if c.ep.RequestBody.ContentType != "multipart/form-data" {
				c.ep.RequestBody.ContentType = ct
			}
		case kind == "Query" || kind == "" && isPyScalar(typ):
			c.ep.AddParameter(model.Parameter{Name: name, Type: scalarOr(typ), Required: !optional, In: model.InQuery})
		case kind == "Body" || isModelName(typ):
			if c.ep.RequestBody == nil {
				c.ep.RequestBody = &model.RequestBody{ContentType: "application/json", Required: !optional}
			}
			if c.ep.RequestBody.SchemaRef == "" && isModelName(typ) {
				c.ep.RequestBody.SchemaRef = typ
			}
		}
	}
}

func (c *mineCtx) setPathType(name, typ string) {
	for i := range c.ep.Parameters {
		if c.ep.Parameters[i].In == model.InPath && c.ep.Parameters[i].Name == name {
			c.ep.Parameters[i].Type = typ
		}
	}
}

func isPyScalar(t string) bool {
	_, ok := pyScalar[t]
	return ok || strings.HasPrefix(t, "List[") || strings.HasPrefix(t, "list[")
}

func scalarOr(t string) string {
	if s, ok := pyScalar[t]; ok {
		return s
	}
	if strings.HasPrefix(strings.ToLower(t), "list[") {
		return "array"
	}
	return "string"
}

var modelName = regexp.MustCompile(`^[A-Z]\w*$`)

func isModelName(t string) bool {
	return modelName.MatchString(t) && !isPyScalar(t) && t != "UploadFile"
}
