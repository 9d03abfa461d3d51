package miner

import (
	"regexp"
	"strings"

	"github.com/QTest-hq/apimap/internal/srctext"
	"github.com/QTest-hq/apimap/pkg/model"
)

var (
	chiWith          = regexp.MustCompile(`\.With\s*\(`)
	nestUse          = regexp.MustCompile(`@Use(?:Guards|Interceptors|Pipes|Filters)\s*\(`)
	fluentMiddleware = regexp.MustCompile(`->middleware\s*\(|\.(?:RequireAuthorization|RequireRateLimiting|RequireCors|AddEndpointFilter)\s*(?:<(\w+)>)?\s*\(`)
	pipeThrough      = regexp.MustCompile(`pipe_through\s*\(?\s*(\[[^\]]*\]|:\w+)`)
	beforeAction     = regexp.MustCompile(`(?m)^\s*before_(?:action|filter)\s+:(\w+!?)(?:\s*,\s*(only|except):\s*(\[[^\]]*\]|%i\[[^\]]*\]|:\w+))?`)
	pyDecorator      = regexp.MustCompile(`(?m)^\s*@([\w.]+)`)
	pyDependency     = regexp.MustCompile(`\bDepends\(\s*([\w.]+)\s*\)`)
	drfClasses       = regexp.MustCompile(`(?:permission|authentication|throttle)_classes\s*=\s*[\[(]([^\])]*)[\])]`)
	csAttribute      = regexp.MustCompile(`\[(Authorize|AllowAnonymous|EnableRateLimiting|ResponseCache|OutputCache|ValidateAntiForgeryToken|ServiceFilter|TypeFilter)\b[^\]]*\]`)
	javaGuards       = regexp.MustCompile(`@(PreAuthorize|Secured|RolesAllowed|RateLimiter|Cacheable|CacheEvict|Validated)\b`)
	fastifyHooks     = regexp.MustCompile(`\b(?:preHandler|onRequest|preValidation|beforeHandler)\s*:\s*(\[[^\]]*\]|[\w.]+)`)
	rustLayers       = regexp.MustCompile(`\.(?:layer|wrap|route_layer)\s*\(\s*([\w:]+)`)
	dartPipeline     = regexp.MustCompile(`\.addMiddleware\s*\(\s*(\w+)`)
	pyNotMiddleware  = map[string]bool{"staticmethod": true, "classmethod": true, "property": true, "override": true, "api_view": true, "action": true}
	routeDecorator   = regexp.MustCompile(`\.(?:get|post|put|patch|delete|head|options|route|api_route|websocket)$`)
)

// recognizeMiddleware collects guards, filters and middleware from the
// idioms of each language: extra arguments of fluent registrations, chi
// With(), Nest @Use*(), Laravel ->middleware(), Rails before_action,
// Phoenix pipe_through, Python decorators and FastAPI dependencies.
func recognizeMiddleware(c *mineCtx) {
	ep := c.ep
	for _, a := range c.middleArgs() {
		ep.AddMiddleware(argNames(a)...)
	}

	switch c.lang {
	case langGo:
		line := c.lineBefore() + c.head(len(srctext.Line(c.content, c.offset)))
		for _, loc := range chiWith.FindAllStringIndex(line, -1) {
			args, _ := srctext.CallArgs(line, loc[1]-1)
			for _, a := range args {
				ep.AddMiddleware(srctext.CalleeName(a))
			}
		}
	case langJS:
		for _, m := range fastifyHooks.FindAllStringSubmatch(c.head(600), -1) {
			ep.AddMiddleware(argNames(m[1])...)
		}
		for _, text := range []string{c.win.Preamble, c.decorators(), c.head(400)} {
			ep.AddMiddleware(callArgNames(text, nestUse)...)
		}
	case langPHP:
		ep.AddMiddleware(callArgNames(c.statement(), fluentMiddleware)...)
	case langCS:
		for _, text := range []string{c.win.Preamble, c.decorators(), c.head(300)} {
			for _, m := range csAttribute.FindAllStringSubmatch(text, -1) {
				ep.AddMiddleware(m[1])
			}
		}
		for _, loc := range fluentMiddleware.FindAllStringSubmatchIndex(c.statement(), -1) {
			st := c.statement()
			name := strings.TrimSpace(strings.TrimLeft(st[loc[0]:loc[1]], ".->"))
			if i := strings.IndexAny(name, "<("); i >= 0 {
				name = name[:i]
			}
			ep.AddMiddleware(name)
			if loc[2] >= 0 {
				ep.AddMiddleware(st[loc[2]:loc[3]])
			}
		}
	case langJVM:
		for _, text := range []string{c.win.Preamble, c.decorators(), c.head(300)} {
			for _, m := range javaGuards.FindAllStringSubmatch(text, -1) {
				ep.AddMiddleware(m[1])
			}
		}
	case langRuby:
		for _, m := range beforeAction.FindAllStringSubmatch(c.win.Preamble+"\n"+c.win.Backward, -1) {
			if beforeActionApplies(m, ep.HandlerName) {
				ep.AddMiddleware(m[1])
			}
		}
	case langElixir:
		if ms := pipeThrough.FindAllStringSubmatch(c.win.Backward, -1); len(ms) > 0 {
			ep.AddMiddleware(quotedItems(ms[len(ms)-1][1])...)
		}
	case langPython:
		for _, m := range pyDecorator.FindAllStringSubmatch(c.head(600), -1) {
			name := m[1]
			if pyNotMiddleware[name] || routeDecorator.MatchString(name) {
				continue
			}
			ep.AddMiddleware(name)
		}
		if loc := pyDef.FindStringIndex(c.win.Forward); loc != nil {
			sig := srctext.Window(c.win.Forward, 0, srctext.LineEnd(c.win.Forward, loc[1]))
			for _, m := range pyDependency.FindAllStringSubmatch(c.head(loc[0])+sig, -1) {
				ep.AddMiddleware(m[1])
			}
		}
		for _, m := range drfClasses.FindAllStringSubmatch(c.win.Forward+c.win.Preamble, -1) {
			ep.AddMiddleware(argNames(m[1])...)
		}
	case langRust:
		for _, m := range rustLayers.FindAllStringSubmatch(c.statement(), -1) {
			ep.AddMiddleware(m[1])
		}
	case langDart:
		for _, m := range dartPipeline.FindAllStringSubmatch(c.win.Backward, -1) {
			ep.AddMiddleware(m[1])
		}
	}
}

// statement is the forward window cut at the end of the registration
// statement: the first ';' or blank line.
func (c *mineCtx) statement() string {
	fwd := c.win.Forward
	end := len(fwd)
	if i := strings.IndexByte(fwd, ';'); i >= 0 && i < end {
		end = i
	}
	if i := strings.Index(fwd, "\n\n"); i >= 0 && i < end {
		end = i
	}
	return fwd[:end]
}

// argNames flattens one argument (an identifier, a call or a list of
// them) into middleware names.
func argNames(arg string) []string {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, "[") && strings.HasSuffix(arg, "]") {
		var out []string
		args, _ := srctext.CallArgs("("+arg[1:len(arg)-1]+")", 0)
		for _, a := range args {
			out = append(out, argNames(a)...)
		}
		return out
	}
	if s, ok := srctext.Unquote(arg); ok {
		return []string{s}
	}
	if n := srctext.CalleeName(arg); n != "" {
		return []string{n}
	}
	return nil
}

// callArgNames returns the argument names of every call re opens in text.
// re must end at the call's opening parenthesis.
func callArgNames(text string, re *regexp.Regexp) []string {
	var out []string
	for _, loc := range re.FindAllStringIndex(text, -1) {
		if text[loc[1]-1] != '(' {
			continue
		}
		args, _ := srctext.CallArgs(text, loc[1]-1)
		for _, a := range args {
			out = append(out, argNames(a)...)
		}
	}
	return out
}

func beforeActionApplies(m []string, handler string) bool {
	if m[2] == "" {
		return true
	}
	action := handler
	if i := strings.LastIndexAny(action, "#@."); i >= 0 {
		action = action[i+1:]
	}
	listed := false
	for _, a := range quotedItems(strings.NewReplacer("%i[", "[:", " ", " :").Replace(m[3])) {
		if a == action {
			listed = true
		}
	}
	if m[2] == "only" {
		return listed
	}
	return !listed
}

// authRule maps a cue to an auth type. Rules are tried in order; the first
// matching rule decides.
type authRule struct {
	typ model.AuthType
	re  *regexp.Regexp
}

var authRules = []authRule{
	{model.AuthJWT, regexp.MustCompile(`(?i)\bjwt\b|jsonwebtoken|passport\.authenticate\(\s*['"]jwt|JwtAuthGuard|AuthGuard\(\s*['"]jwt|jwt_required|JWTAuthentication|verifyJwt|verify_jwt|express-?jwt|JwtBearer|jwtauth|echojwt|jwtware|\bJwt\w*|\w+Jwt\b`)},
	{model.AuthOAuth, regexp.MustCompile(`(?i)oauth2?|OAuth2PasswordBearer|oauth2_scheme|@PreAuthorize\(\s*"#oauth2|hasScope\(|SCOPE_|openid`)},
	{model.AuthAPIKey, regexp.MustCompile(`(?i)api[-_]?key|x-api-key|APIKeyHeader|ApiKeyAuth|HeaderAPIKey`)},
	{model.AuthBasic, regexp.MustCompile(`(?i)basic[-_ ]?auth|HTTPBasic|httpBasic\(|authenticate_or_request_with_http_basic|http_basic_authenticate_with|BasicAuth`)},
	{model.AuthBearer, regexp.MustCompile(`(?i)\bbearer\b|HTTPBearer|auth:sanctum|auth:api|TokenAuthentication|token_required|verifyToken|authenticate_with_http_token|\bPassport\b`)},
	{model.AuthSession, regexp.MustCompile(`(?i)\bsession\b|req\.session|login_required|LoginRequiredMixin|authenticate_user!|passport\.authenticate\(\s*['"]local|current_user|ensureLoggedIn|isLoggedIn|SessionAuthentication|\bauth:web\b|require_authenticated_user|fetch_session`)},
	{model.AuthBearer, regexp.MustCompile(`(?i)\bauth\b|\bauthenticate\w*|requireAuth|isAuthenticated|IsAuthenticated|\bprotect(?:ed)?\b|@UseGuards\(\s*\w*AuthGuard|AuthGuard\b|\[Authorize\b|RequireAuthorization|@PreAuthorize|@Secured|@RolesAllowed|Depends\(\s*get_current_\w*user|permission_required|authorize\b|ensureAuth\w*|verifyUser|checkAuth|withAuth`)},
}

var (
	noAuthCue = regexp.MustCompile(`\[AllowAnonymous\]|@PermitAll|@Public\(\)|skip_before_action\s+:authenticate|AllowAny\b|withoutMiddleware\(\s*['"]auth`)

	roleCues = []*regexp.Regexp{
		regexp.MustCompile(`@Roles\s*\(([^)]*)\)`),
		regexp.MustCompile(`has(?:Any)?(?:Role|Authority)\s*\(([^)]*)\)`),
		regexp.MustCompile(`@RolesAllowed\s*\(([^)]*)\)`),
		regexp.MustCompile(`@Secured\s*\(([^)]*)\)`),
		regexp.MustCompile(`Roles\s*=\s*"([^"]*)"`),
		regexp.MustCompile(`\b(?:requireRole|requireRoles|checkRole|hasRole|authorize|roles_required|role_required)\s*\(([^)]*)\)`),
		regexp.MustCompile(`['"]role:([\w,|]+)['"]`),
		regexp.MustCompile(`\brole\s*[!=]==?\s*['"](\w+)['"]`),
	}
	roleSplit = regexp.MustCompile(`[\s,|'"{}\[\]]+`)
)

// recognizeAuth picks the auth scheme from middleware names and nearby
// cues, and collects required roles.
func recognizeAuth(c *mineCtx) {
	cues := strings.Join(c.ep.Middleware, " ") + "\n" + c.all()
	if noAuthCue.MatchString(c.decorators() + c.head(300)) {
		return
	}
	for _, r := range authRules {
		if loc := r.re.FindStringIndex(cues); loc != nil {
			c.ep.Auth = &model.Auth{Type: r.typ, Source: cues[loc[0]:loc[1]]}
			break
		}
	}
	if c.ep.Auth == nil {
		return
	}
	for _, re := range roleCues {
		for _, m := range re.FindAllStringSubmatch(cues, -1) {
			for _, r := range roleSplit.Split(m[1], -1) {
				r = strings.TrimPrefix(strings.TrimPrefix(r, "Role."), "ROLE_")
				if r == "" || strings.Contains(r, "(") || r == "value" || r == "=" {
					continue
				}
				c.ep.Auth.Roles = addUnique(c.ep.Auth.Roles, r)
			}
		}
	}
}
