package miner

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/QTest-hq/apimap/pkg/model"
)

// ============================================================================
// Validation
// ============================================================================

type validator struct {
	library string
	detect  *regexp.Regexp
	rules   *regexp.Regexp // first non-empty group (joined with the second when present) is a rule
}

var validators = []validator{
	{"zod", regexp.MustCompile(`\bz\.(?:object|string|number|array)\(|\bzod\b|\w+Schema\.(?:safeParse|parse)\(`),
		regexp.MustCompile(`\.(min|max|email|length|regex|uuid|url|positive|int|nonempty|optional|nullable)\(([^)]*)\)`)},
	{"joi", regexp.MustCompile(`\bJoi\.`), regexp.MustCompile(`\.(required|min|max|email|alphanum|pattern|valid|integer)\(([^)]*)\)`)},
	{"yup", regexp.MustCompile(`\byup\.`), regexp.MustCompile(`\.(required|min|max|email|matches|integer)\(([^)]*)\)`)},
	{"express-validator", regexp.MustCompile(`\b(?:body|check|query|param)\(\s*['"]\w+['"]\s*\)\s*\.\s*(?:is|not|trim|escape|exists|optional)|validationResult\(`),
		regexp.MustCompile(`\b(?:body|check|query|param)\(\s*['"](\w+)['"]\s*\)\s*\.\s*(\w+)`)},
	{"class-validator", regexp.MustCompile(`\bValidationPipe\b|@Is(?:String|Email|Int|NotEmpty|Optional|UUID)\(`),
		regexp.MustCompile(`@(Is\w+|Min|Max|Length|Matches)\(([^)]*)\)`)},
	{"pydantic", regexp.MustCompile(`\bBaseModel\b|\bField\(|\bconstr\(|\bconint\(|\bvalidator\(|@field_validator`),
		regexp.MustCompile(`\bField\(([^)]*)\)|\b(con\w+\([^)]*\))`)},
	{"marshmallow", regexp.MustCompile(`\bSchema\(\)\.load\(|\bfields\.\w+\(|ValidationError`), regexp.MustCompile(`\bfields\.(\w+)\(([^)]*)\)`)},
	{"drf-serializer", regexp.MustCompile(`\.is_valid\(|Serializer\(\s*data\s*=`), regexp.MustCompile(`(\w+Serializer)\(\s*data`)},
	{"wtforms", regexp.MustCompile(`\bvalidate_on_submit\(|\bFlaskForm\b`), regexp.MustCompile(`validators=\[([^\]]*)\]`)},
	{"bean-validation", regexp.MustCompile(`@(?:Valid|Validated|NotNull|NotBlank|NotEmpty|Size|Email|Min|Max|Pattern)\b`),
		regexp.MustCompile(`@(NotNull|NotBlank|NotEmpty|Size|Email|Min|Max|Pattern|Valid|Validated)(\([^)]*\))?`)},
	{"go-playground/validator", regexp.MustCompile(`\bbinding:"|\bvalidate:"|\bShouldBind\w*\(|\bvalidator\.New\(|\.Validate\.Struct\(`),
		regexp.MustCompile(`(?:binding|validate):"([^"]+)"`)},
	{"laravel-validation", regexp.MustCompile(`\$request->validate\(|Validator::make\(|\$request->validated\(\)`),
		regexp.MustCompile(`['"](\w+)['"]\s*=>\s*['"]([^'"]+)['"]`)},
	{"rails-strong-params", regexp.MustCompile(`\bparams\.require\(`), regexp.MustCompile(`\.permit\(([^)]*)\)`)},
	{"data-annotations", regexp.MustCompile(`ModelState\.IsValid|\[(?:Required|StringLength|Range|EmailAddress|MaxLength|MinLength|RegularExpression)\b|\[ApiController\]`),
		regexp.MustCompile(`\[(Required|StringLength|Range|EmailAddress|MaxLength|MinLength|RegularExpression)(\([^)]*\))?\]`)},
	{"ecto-changeset", regexp.MustCompile(`\bvalidate_(?:required|length|format|number)\(|\bchangeset\(`),
		regexp.MustCompile(`\b(validate_\w+)\(\s*\w*\s*,?\s*([^)]*)\)`)},
	{"validator", regexp.MustCompile(`#\[validate\(|\.validate\(\)`), regexp.MustCompile(`#\[validate\(([^\]]*)\)\]`)},
}

const maxRules = 20

// recognizeValidation names the validation library used near the handler
// and collects its rule fragments.
func recognizeValidation(c *mineCtx) {
	text := c.all()
	for _, v := range validators {
		if !v.detect.MatchString(text) {
			continue
		}
		val := &model.Validation{Library: v.library, Rules: make([]string, 0)}
		for _, m := range v.rules.FindAllStringSubmatch(text, -1) {
			if len(val.Rules) >= maxRules {
				break
			}
			rule := strings.TrimSpace(m[1])
			if len(m) > 2 && strings.TrimSpace(m[2]) != "" {
				if rule == "" {
					rule = strings.TrimSpace(m[2])
				} else if strings.HasPrefix(m[2], "(") {
					rule += m[2]
				} else if v.library == "express-validator" || v.library == "laravel-validation" {
					rule += ": " + strings.TrimSpace(m[2])
				} else {
					rule += "(" + strings.TrimSpace(m[2]) + ")"
				}
			}
			val.Rules = addUnique(val.Rules, rule)
		}
		c.ep.Validation = val
		return
	}
}

// ============================================================================
// Rate limits
// ============================================================================

var (
	expressRateLimit = regexp.MustCompile(`(?:rateLimit|slowDown|RateLimit)\s*\(\s*\{|limiter\.New\s*\(\s*limiter\.Config\s*\{`)
	limitKey         = regexp.MustCompile(`\b(?:max|limit|points|Max|Limit)\s*:\s*([^,\n}]+)`)
	windowKey        = regexp.MustCompile(`\b(?:windowMs|duration|Expiration|window)\s*:\s*([^,\n}]+)`)
	keyGenKey        = regexp.MustCompile(`\b(?:keyGenerator|KeyGenerator)\s*:\s*(?:\([^)]*\)|\w+)\s*=>\s*\w+\.(\w+)|\b(?:keyGenerator|KeyGenerator)\s*:\s*([\w.]+)`)
	ratePerString    = regexp.MustCompile(`(?i)['"](\d+)\s*(?:/|per)\s*(\d+)?\s*(seconds?|secs?|s|minutes?|mins?|m|hours?|hrs?|h|days?|d)['"]`)
	throttleMW       = regexp.MustCompile(`\bthrottle:(\d+)(?:,(\d+))?|\bthrottle:(\w+)`)
	nestThrottle     = regexp.MustCompile(`@Throttle\s*\(\s*(\d+)\s*,\s*(\d+)\s*\)|@Throttle\s*\(\s*\{\s*\w+\s*:\s*\{\s*limit\s*:\s*([^,}]+),\s*ttl\s*:\s*([^,}]+)`)
	railsRateLimit   = regexp.MustCompile(`\brate_limit\s+to:\s*(\d+)\s*,\s*within:\s*([\w.* ]+?)(?:,\s*by:\s*->\s*\{\s*([^}]+)\}|\n|$)`)
	rackThrottle     = regexp.MustCompile(`\bthrottle\s*\(\s*['"][^'"]+['"]\s*,\s*limit:\s*(\d+)\s*,\s*period:\s*([\w.* ]+)`)
	djangoRateLimit  = regexp.MustCompile(`@ratelimit\s*\(([^)]*)\)`)
	pyRateKey        = regexp.MustCompile(`\bkey\s*=\s*['"](\w+)['"]|key_func\s*=\s*(\w+)`)
	resilienceLimit  = regexp.MustCompile(`@RateLimiter\s*\(\s*name\s*=\s*"(\w+)"|\[EnableRateLimiting\(\s*"(\w+)"\s*\)\]|\.RequireRateLimiting\(\s*"(\w+)"\s*\)|throttle_scope\s*=\s*['"](\w+)['"]`)
	bucket4j         = regexp.MustCompile(`Bandwidth\.(?:simple|classic)\s*\(\s*(\d+)\s*,\s*(?:Refill\.\w+\(\s*\d+\s*,\s*)?Duration\.of(Seconds|Minutes|Hours|Days)\(\s*(\d+)\s*\)`)
	goHttpRate       = regexp.MustCompile(`httprate\.Limit(?:ByIP|ByRealIP|All)?\s*\(\s*(\d+)\s*,\s*([^)]+)\)`)
	goRateLimiter    = regexp.MustCompile(`rate\.NewLimiter\s*\(\s*rate\.Every\(([^)]+)\)\s*,\s*(\d+)\s*\)|rate\.NewLimiter\s*\(\s*(\d+)\s*,\s*(\d+)\s*\)`)
	hammerCheck      = regexp.MustCompile(`Hammer\.check_rate\s*\(\s*[^,]+,\s*([\d_]+)\s*,\s*([\d_]+)\s*\)`)
	genericRateCue   = regexp.MustCompile(`(?i)rate[-_ ]?limit|throttl|limiter`)
)

// recognizeRateLimit reads throttling directives: inline options, limiter
// middleware defined elsewhere in the file, decorators and named policies.
func recognizeRateLimit(c *mineCtx) {
	text := c.all()
	var rl *model.RateLimit

	sources := []string{text}
	for _, mw := range c.ep.Middleware {
		if def := limiterDefinition(c.content, mw); def != "" {
			sources = append(sources, def)
		}
	}
	for _, src := range sources {
		if loc := expressRateLimit.FindStringIndex(src); loc != nil {
			opts := srcBlock(src, loc[1]-1)
			rl = &model.RateLimit{}
			if m := limitKey.FindStringSubmatch(opts); m != nil {
				rl.Limit = evalInt(m[1])
			}
			if m := windowKey.FindStringSubmatch(opts); m != nil {
				unit := 1
				if strings.Contains(m[0], "duration") {
					unit = 1000
				}
				rl.WindowSeconds = durationSeconds(m[1], unit)
			}
			if m := keyGenKey.FindStringSubmatch(opts); m != nil {
				rl.Key = m[1] + m[2]
			}
			break
		}
	}

	switch {
	case rl != nil:
	case throttleMW.MatchString(text):
		m := throttleMW.FindStringSubmatch(text)
		rl = &model.RateLimit{}
		if m[3] != "" {
			rl.Key = m[3]
		} else {
			rl.Limit = evalInt(m[1])
			minutes := 1
			if m[2] != "" {
				if n := evalInt(m[2]); n != nil {
					minutes = *n
				}
			}
			rl.WindowSeconds = intPtr(minutes * 60)
		}
	case nestThrottle.MatchString(text):
		m := nestThrottle.FindStringSubmatch(text)
		rl = &model.RateLimit{}
		if m[1] != "" {
			rl.Limit, rl.WindowSeconds = evalInt(m[1]), evalInt(m[2])
		} else {
			rl.Limit, rl.WindowSeconds = evalInt(m[3]), durationSeconds(m[4], 1)
		}
	case railsRateLimit.MatchString(text):
		m := railsRateLimit.FindStringSubmatch(text)
		rl = &model.RateLimit{Limit: evalInt(m[1]), WindowSeconds: durationSeconds(m[2], 1000), Key: strings.TrimSpace(m[3])}
	case rackThrottle.MatchString(text):
		m := rackThrottle.FindStringSubmatch(text)
		rl = &model.RateLimit{Limit: evalInt(m[1]), WindowSeconds: durationSeconds(m[2], 1000)}
	case djangoRateLimit.MatchString(text):
		args := djangoRateLimit.FindStringSubmatch(text)[1]
		rl = &model.RateLimit{}
		if m := ratePerString.FindStringSubmatch(args); m != nil {
			rl.Limit, rl.WindowSeconds = parseRate(m)
		}
		if m := pyRateKey.FindStringSubmatch(args); m != nil {
			rl.Key = m[1] + m[2]
		}
	case ratePerString.MatchString(text) && genericRateCue.MatchString(text):
		m := ratePerString.FindStringSubmatch(text)
		rl = &model.RateLimit{}
		rl.Limit, rl.WindowSeconds = parseRate(m)
		if k := pyRateKey.FindStringSubmatch(text); k != nil {
			rl.Key = k[1] + k[2]
		}
	case bucket4j.MatchString(text):
		m := bucket4j.FindStringSubmatch(text)
		rl = &model.RateLimit{Limit: evalInt(m[1])}
		if n := evalInt(m[3]); n != nil {
			rl.WindowSeconds = intPtr(*n * unitSeconds(m[2]))
		}
	case goHttpRate.MatchString(text):
		m := goHttpRate.FindStringSubmatch(text)
		rl = &model.RateLimit{Limit: evalInt(m[1]), WindowSeconds: durationSeconds(m[2], 1000)}
	case goRateLimiter.MatchString(text):
		m := goRateLimiter.FindStringSubmatch(text)
		rl = &model.RateLimit{}
		if m[1] != "" {
			rl.Limit, rl.WindowSeconds = intPtr(1), durationSeconds(m[1], 1000)
		} else {
			rl.Limit, rl.WindowSeconds = evalInt(m[3]), intPtr(1)
		}
	case hammerCheck.MatchString(text):
		m := hammerCheck.FindStringSubmatch(text)
		rl = &model.RateLimit{Limit: evalInt(m[2]), WindowSeconds: durationSeconds(m[1], 1)}
	case resilienceLimit.MatchString(text):
		m := resilienceLimit.FindStringSubmatch(text)
		rl = &model.RateLimit{Key: m[1] + m[2] + m[3] + m[4]}
	}
	c.ep.RateLimit = rl
}

// limiterDefinition finds `const name = rateLimit({...})` style definitions
// of a middleware used by the endpoint.
func limiterDefinition(content, name string) string {
	if name == "" || strings.ContainsAny(name, ".: ") {
		return ""
	}
	re, err := regexp.Compile(`\b(?:const|let|var)\s+` + regexp.QuoteMeta(name) + `\s*=\s*`)
	if err != nil {
		return ""
	}
	loc := re.FindStringIndex(content)
	if loc == nil {
		return ""
	}
	end := loc[1] + 600
	if end > len(content) {
		end = len(content)
	}
	return content[loc[1]:end]
}

// srcBlock returns the bracketed block opening at open, or the rest of src.
func srcBlock(src string, open int) string {
	depth := 0
	for i := open; i < len(src); i++ {
		switch src[i] {
		case '(', '{', '[':
			depth++
		case ')', '}', ']':
			depth--
			if depth == 0 {
				return src[open : i+1]
			}
		}
	}
	return src[open:]
}

func parseRate(m []string) (*int, *int) {
	limit := evalInt(m[1])
	n := 1
	if m[2] != "" {
		if v := evalInt(m[2]); v != nil {
			n = *v
		}
	}
	return limit, intPtr(n * unitSeconds(m[3]))
}

func unitSeconds(unit string) int {
	u := strings.ToLower(unit)
	switch {
	case strings.HasPrefix(u, "d"):
		return 86400
	case strings.HasPrefix(u, "h"):
		return 3600
	case strings.HasPrefix(u, "m"):
		return 60
	}
	return 1
}

// ============================================================================
// Cache
// ============================================================================

type cacheRule struct {
	strategy string
	detect   *regexp.Regexp
	ttl      *regexp.Regexp // first group: value, second optional group: unit
	unitMs   int            // unit of a bare ttl number, in milliseconds
}

var cacheRules = []cacheRule{
	{"apicache", regexp.MustCompile(`\bapicache\b|\bcache\(\s*['"]\d+\s*\w+['"]\s*\)`), regexp.MustCompile(`cache\(\s*['"](\d+)\s*(\w+)['"]`), 1000},
	{"nest-cache", regexp.MustCompile(`CacheInterceptor|@CacheTTL|@CacheKey`), regexp.MustCompile(`@CacheTTL\(\s*([^)]+)\)`), 1000},
	{"spring-cache", regexp.MustCompile(`@Cacheable|@CachePut|@CacheEvict`), nil, 1000},
	{"django-cache", regexp.MustCompile(`@cache_page|cache_page\(`), regexp.MustCompile(`cache_page\(\s*([^),]+)`), 1000},
	{"flask-caching", regexp.MustCompile(`@cache\.(?:cached|memoize)`), regexp.MustCompile(`@cache\.(?:cached|memoize)\(\s*(?:timeout\s*=\s*)?([^),]+)`), 1000},
	{"fastapi-cache", regexp.MustCompile(`@cache\s*\(\s*expire`), regexp.MustCompile(`expire\s*=\s*([^),]+)`), 1000},
	{"response-cache", regexp.MustCompile(`\[ResponseCache\b|\[OutputCache\b|\.CacheOutput\(`), regexp.MustCompile(`Duration\s*=\s*(\d+)|Expire\(TimeSpan\.From(Seconds|Minutes|Hours)\((\d+)\)\)`), 1000},
	{"rails-cache", regexp.MustCompile(`Rails\.cache\.fetch|caches_action|\bexpires_in\b|fresh_when|stale\?`), regexp.MustCompile(`expires_in:?\s*([\w.* ]+?)(?:[,)\n]|$)`), 1000},
	{"laravel-cache", regexp.MustCompile(`Cache::(?:remember|rememberForever|put|tags)`), regexp.MustCompile(`Cache::(?:remember|put)\(\s*[^,]+,\s*([^,]+),`), 1000},
	{"redis", regexp.MustCompile(`(?i)\bredis\b.*\b(?:setex|set|expire|get)\b|\bsetex\(`), regexp.MustCompile(`(?i)setex\(\s*[^,]+,\s*([^,]+),|['"]EX['"]\s*,\s*([\d_* ]+)|\bEX\s*:\s*([\d_* ]+)`), 1000},
	{"memcached", regexp.MustCompile(`(?i)memcache`), nil, 1000},
	{"isr", regexp.MustCompile(`export\s+const\s+revalidate\s*=|next\s*:\s*\{\s*revalidate|unstable_cache\(`), regexp.MustCompile(`revalidate\s*[=:]\s*(\d+)`), 1000},
	{"http", regexp.MustCompile(`(?i)cache-control|\bETag\b|\bLast-Modified\b|\bexpires\b|max-age`), regexp.MustCompile(`(?i)max-age=(\d+)|s-maxage=(\d+)`), 1000},
	{"memory", regexp.MustCompile(`(?i)\bcache\.(?:get|set|put)\(|\bnode-cache\b|\bLRU(?:Cache)?\b|\bMemoryCache\b|\bIMemoryCache\b|\blru_cache\b|\bcachetools\b`), regexp.MustCompile(`(?i)\b(?:ttl|stdTTL|maxAge|expiration)\s*[:=]\s*([^,)\n}]+)`), 1000},
}

var (
	cacheTags   = regexp.MustCompile(`\btags\s*[:=]\s*\[([^\]]*)\]|Cache::tags\(\s*\[([^\]]*)\]|revalidateTag\(\s*['"]([\w:-]+)['"]|cacheNames\s*=\s*\{?([^})]*)\}?|@Cacheable\(\s*"([\w:-]+)"|@Cacheable\(\s*value\s*=\s*"([\w:-]+)"|@CacheKey\(\s*['"]([\w:-]+)['"]`)
	genericTTL  = regexp.MustCompile(`(?i)\b(?:ttl|maxAge|max_age|timeout|expires?(?:_in|In)?)\s*[:=]\s*([^,)\n}]+)`)
	tagSplitter = regexp.MustCompile(`[\s,'"]+`)
)

// recognizeCache detects response and data caching directives.
func recognizeCache(c *mineCtx) {
	text := c.all()
	for _, r := range cacheRules {
		if !r.detect.MatchString(text) {
			continue
		}
		cd := &model.CacheDirective{Strategy: r.strategy}
		if r.ttl != nil {
			if m := r.ttl.FindStringSubmatch(text); m != nil {
				cd.TTLSeconds = ttlFromMatch(r, m)
			}
		} else if m := genericTTL.FindStringSubmatch(text); m != nil {
			cd.TTLSeconds = durationSeconds(m[1], 1000)
		}
		for _, m := range cacheTags.FindAllStringSubmatch(text, -1) {
			for _, g := range m[1:] {
				if g == "" {
					continue
				}
				for _, t := range tagSplitter.Split(g, -1) {
					t = strings.TrimPrefix(t, ":")
					if t != "" && t != "value" && t != "=" {
						cd.Tags = addUnique(cd.Tags, t)
					}
				}
			}
		}
		c.ep.Cache = cd
		return
	}
}

func ttlFromMatch(r cacheRule, m []string) *int {
	switch r.strategy {
	case "apicache":
		if n := evalInt(m[1]); n != nil {
			return intPtr(*n * unitSeconds(m[2]))
		}
		return nil
	case "response-cache":
		if m[1] != "" {
			return evalInt(m[1])
		}
		if n := evalInt(m[3]); n != nil {
			return intPtr(*n * unitSeconds(m[2]))
		}
		return nil
	}
	for _, g := range m[1:] {
		if strings.TrimSpace(g) != "" {
			return durationSeconds(g, r.unitMs)
		}
	}
	return nil
}

// ============================================================================
// Numbers
// ============================================================================

var (
	unitFactorsMs = map[string]int{
		"time.Millisecond": 1, "time.Second": 1000, "time.Minute": 60000, "time.Hour": 3600000,
	}
	rubyDuration = regexp.MustCompile(`^(\d+)\.(seconds?|minutes?|hours?|days?|weeks?)$`)
	callDuration = regexp.MustCompile(`^(?:Duration\.of|TimeSpan\.From|timedelta\()\s*(Seconds|Minutes|Hours|Days|seconds|minutes|hours|days)?\s*\(?\s*=?\s*(\d+)\s*\)?$`)
	goDuration   = regexp.MustCompile(`^['"]?(\d+(?:ms|s|m|h))+['"]?$`)
	goDurPart    = regexp.MustCompile(`(\d+)(ms|s|m|h)`)
)

// durationSeconds evaluates a duration expression to whole seconds. Bare
// numbers are read in unitMs milliseconds, so windowMs values pass 1000 and
// second valued options pass 1. It returns nil when the expression cannot be
// evaluated.
func durationSeconds(expr string, unitMs int) *int {
	ms, ok := durationMs(strings.TrimSpace(expr), unitMs)
	if !ok || ms < 0 {
		return nil
	}
	return intPtr(ms / 1000)
}

func durationMs(expr string, unitMs int) (int, bool) {
	expr = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(expr), ","))
	if expr == "" {
		return 0, false
	}
	if m := rubyDuration.FindStringSubmatch(expr); m != nil {
		n, _ := strconv.Atoi(m[1])
		u := m[2]
		if strings.HasPrefix(u, "week") {
			return n * 7 * 86400000, true
		}
		return n * unitSeconds(u) * 1000, true
	}
	if m := callDuration.FindStringSubmatch(expr); m != nil {
		n, _ := strconv.Atoi(m[2])
		if m[1] == "" {
			return n * 1000, true
		}
		return n * unitSeconds(m[1]) * 1000, true
	}
	if goDuration.MatchString(expr) {
		s := strings.Trim(expr, `'"`)
		total := 0
		for _, part := range goDurPart.FindAllStringSubmatch(s, -1) {
			n, _ := strconv.Atoi(part[1])
			switch part[2] {
			case "ms":
				total += n
			case "s":
				total += n * 1000
			case "m":
				total += n * 60000
			case "h":
				total += n * 3600000
			}
		}
		return total, true
	}

	// products like 15 * 60 * 1000 or 30 * time.Second
	product := 1
	unit := unitMs
	for _, f := range strings.Split(expr, "*") {
		f = strings.TrimSpace(f)
		if ms, ok := unitFactorsMs[f]; ok {
			product *= ms
			unit = 1
			continue
		}
		n := evalInt(f)
		if n == nil {
			return 0, false
		}
		product *= *n
	}
	return product * unit, true
}

// evalInt evaluates an integer literal or a product/sum of them, such as
// 100, 60_000 or 15 * 60. It returns nil for anything else.
func evalInt(expr string) *int {
	expr = strings.TrimSpace(expr)
	expr = strings.Trim(expr, `'"`)
	if expr == "" {
		return nil
	}
	sum := 0
	for _, term := range strings.Split(expr, "+") {
		product := 1
		for _, f := range strings.Split(term, "*") {
			f = strings.ReplaceAll(strings.TrimSpace(f), "_", "")
			f = strings.TrimSuffix(strings.TrimSuffix(f, "L"), "l")
			n, err := strconv.Atoi(f)
			if err != nil {
				return nil
			}
			product *= n
		}
		sum += product
	}
	return &sum
}

func intPtr(n int) *int { return &n }
