package analytics

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/QTest-hq/apimap/pkg/model"
)

var (
	branchPattern = regexp.MustCompile(`\b(?:if|elif|elsif|unless|case|when|switch|match)\b|&&|\|\||\?\?`)
	loopPattern   = regexp.MustCompile(`\b(?:for|foreach|while|loop|until)\b|\.(?:forEach|map|filter|reduce|each|each_with_index|iter|for_each)\s*[({]`)
	tryPattern    = regexp.MustCompile(`(?m)\btry\s*[{:]|\btry\s*$|\bbegin\s*$|\brescue\b|\bcatch_unwind\b`)
	asyncPattern  = regexp.MustCompile(`\bawait\b|\.then\s*\(|\bPromise\.\w+|\.await\b|\bgo\s+func\b|\bCompletableFuture\b|\bTask\.Run\b`)

	dbPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:db|prisma|knex|sequelize|mongoose|repo|repository|session|cursor|tx|pool|conn|em|entityManager|objects|DB|Repo|gorm|orm|\w+Repository|\w+Repo|\w+Service\.repo)\s*\.\s*(?:\w+\s*\.\s*)?(?:find\w*|create\w*|insert\w*|update\w*|delete\w*|remove|save\w*|query\w*|Query\w*|exec\w*|Exec\w*|aggregate|count\w*|upsert\w*|filter|all|select|where|First|Find|Where|Create|Save|Delete|Update|Raw|Model|Preload|get|get_or_404)\s*\(`),
		regexp.MustCompile(`\b[A-Z]\w+\.(?:objects\.\w+|find_by\w*|find|where|create!?|all|first|last|destroy_all|findById|findOne|findAll|findByPk|query)\b`),
		regexp.MustCompile(`\b[A-Z]\w+::(?:find\w*|where|create|all|query|firstOrFail|findOrFail|paginate)\s*\(`),
		regexp.MustCompile(`(?i)["'\x60]\s*(?:SELECT\s+.+?\s+FROM|INSERT\s+INTO|UPDATE\s+\w+\s+SET|DELETE\s+FROM)\b`),
		regexp.MustCompile(`\bRepo\.(?:get|all|insert|update|delete|one)!?\s*\(`),
	}

	httpCallPattern = regexp.MustCompile(`\b(?:fetch|axios(?:\.(?:get|post|put|patch|delete|request))?|got(?:\.\w+)?|superagent\.\w+|needle\.\w+|requests\.(?:get|post|put|patch|delete|request)|httpx\.(?:get|post|put|patch|delete|AsyncClient)|aiohttp\.ClientSession|http\.(?:Get|Post|NewRequest\w*|DefaultClient)|restTemplate\.\w+|webClient\.\w+|HttpClient\.\w+|httpClient\.\w+|Net::HTTP\.\w+|HTTParty\.\w+|Faraday\.\w+|Http::(?:get|post|put|delete)|reqwest::\w+|HTTPoison\.\w+|Req\.(?:get|post))\s*[(!.]`)
)

// Complexity scores a handler from 1 to 10 by adding points for each
// structural factor found.
func Complexity(ep *model.Endpoint) model.ComplexityReport {
	text := body(ep)
	score := 1
	var factors []string
	add := func(n int, format string, args ...any) {
		score += n
		factors = append(factors, fmt.Sprintf(format, args...))
	}

	switch n := len(ep.Parameters); {
	case n > 5:
		add(2, "%d parameters", n)
	case n > 2:
		add(1, "%d parameters", n)
	}

	if ep.RequestBody != nil {
		if strings.HasPrefix(ep.RequestBody.ContentType, "multipart/") {
			add(2, "multipart request body")
		} else {
			add(1, "request body")
		}
	}

	if ep.AuthType() != model.AuthNone {
		add(1, "%s auth", ep.AuthType())
	}

	switch n := len(ep.Middleware); {
	case n > 3:
		add(2, "%d middleware", n)
	case n > 0:
		add(1, "%d middleware", n)
	}

	switch n := dbCalls(text); {
	case n > 3:
		add(2, "%d database calls", n)
	case n > 0:
		add(1, "%d database calls", n)
	}

	if externalCalls(text) > 0 {
		add(2, "external HTTP calls")
	}

	if n := count(tryPattern, text); n > 2 {
		add(1, "%d try blocks", n)
	}

	branches := count(branchPattern, text)
	switch {
	case branches > 10:
		add(2, "%d branches", branches)
	case branches > 3:
		add(1, "%d branches", branches)
	}

	if n := count(loopPattern, text); n > 5 {
		add(1, "%d loops", n)
	}

	if n := count(asyncPattern, text); n > 5 {
		add(1, "%d async operations", n)
	}

	if factors == nil {
		factors = []string{}
	}
	return model.ComplexityReport{
		Score:            clamp(score, 1, 10),
		Factors:          factors,
		CyclomaticApprox: branches + 1,
	}
}

func dbCalls(text string) int {
	n := 0
	for _, re := range dbPatterns {
		n += count(re, text)
	}
	return n
}

func externalCalls(text string) int {
	return count(httpCallPattern, text)
}
