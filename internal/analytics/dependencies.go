package analytics

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/QTest-hq/apimap/pkg/model"
)

var (
	// clientCall captures the HTTP verb hint (groups 1-4) and the literal
	// root-relative target (group 5) of a client call.
	clientCall = regexp2.MustCompile(
		`\b(?:fetch|axios(?:\.(get|post|put|patch|delete))?|\$http\.(get|post|put|patch|delete)|`+
			`(?:this\.)?(?:http|api|client|httpClient|request|requests|httpx|got|superagent)\.(get|post|put|patch|delete)|`+
			`(?:req|request)\s*\(\s*['"](GET|POST|PUT|PATCH|DELETE)['"]\s*,)\s*\(?\s*['"\x60]((?:https?://(?:localhost|127\.0\.0\.1)(?::\d+)?)?/(?!/)[^'"\x60\s?#]*)`,
		regexp2.IgnoreCase)

	// externalHost captures the hostname of an absolute non-local URL.
	externalHost = regexp2.MustCompile(
		`https?://(?!localhost\b|127\.0\.0\.1\b|0\.0\.0\.0\b|\[::1\]|www\.w3\.org\b|schemas\.)([A-Za-z0-9-]+(?:\.[A-Za-z0-9-]+)*\.[A-Za-z]{2,})`,
		regexp2.None)

	fetchMethod   = regexp.MustCompile(`(?i)\bmethod\s*:\s*['"](GET|POST|PUT|PATCH|DELETE)['"]`)
	interpolation = regexp.MustCompile(`\$\{[^}]*\}|#\{[^}]*\}|\{[^}/]*\}|:\w+`)
	localOrigin   = regexp.MustCompile(`^https?://[^/]+`)
)

// callTarget is one literal internal call found in a handler.
type callTarget struct {
	method string // empty when the call does not say
	path   string
}

func emptyDependencies() model.DependencyReport {
	return model.DependencyReport{
		CallsEndpoints:    []string{},
		CalledByEndpoints: []string{},
		ExternalAPIs:      []string{},
	}
}

// Dependencies records the literal internal call targets and external API
// hosts of one handler. Targets are resolved to endpoints later, once the
// whole set is known.
func Dependencies(ep *model.Endpoint) model.DependencyReport {
	r := emptyDependencies()
	text := body(ep)
	for _, t := range callTargets(text) {
		r.CallsEndpoints = appendUnique(r.CallsEndpoints, t.path)
	}

	hosts := map[string]bool{}
	m, _ := externalHost.FindStringMatch(text)
	for m != nil {
		hosts[strings.ToLower(m.GroupByNumber(1).String())] = true
		m, _ = externalHost.FindNextMatch(m)
	}
	for h := range hosts {
		r.ExternalAPIs = append(r.ExternalAPIs, h)
	}
	sort.Strings(r.ExternalAPIs)
	return r
}

func callTargets(text string) []callTarget {
	var out []callTarget
	runes := []rune(text)
	m, _ := clientCall.FindStringMatch(text)
	for m != nil {
		method := ""
		for _, g := range []int{1, 2, 3, 4} {
			if v := m.GroupByNumber(g).String(); v != "" {
				method = strings.ToUpper(v)
				break
			}
		}
		if method == "" && strings.HasPrefix(strings.ToLower(m.String()), "fetch") {
			end := m.Index + m.Length
			tail := string(runes[end:min(end+200, len(runes))])
			if fm := fetchMethod.FindStringSubmatch(tail); fm != nil {
				method = strings.ToUpper(fm[1])
			} else {
				method = "GET"
			}
		}
		target := localOrigin.ReplaceAllString(m.GroupByNumber(5).String(), "")
		if target != "" && target != "/" {
			out = append(out, callTarget{method: method, path: target})
		}
		m, _ = clientCall.FindNextMatch(m)
	}
	return out
}

// resolveDependencies replaces call targets with the endpoints they hit and
// fills the reverse calledBy edges.
func resolveDependencies(endpoints []*model.Endpoint) {
	for _, caller := range endpoints {
		resolved := []string{}
		for _, t := range callTargets(body(caller)) {
			hits := matchTargets(endpoints, t)
			if len(hits) == 0 {
				resolved = appendUnique(resolved, t.path)
				continue
			}
			for _, callee := range hits {
				if callee == caller {
					continue
				}
				resolved = appendUnique(resolved, callee.String())
				callee.Analytics.Dependencies.CalledByEndpoints = appendUnique(callee.Analytics.Dependencies.CalledByEndpoints, caller.String())
			}
		}
		caller.Analytics.Dependencies.CallsEndpoints = resolved
	}
}

func matchTargets(endpoints []*model.Endpoint, t callTarget) []*model.Endpoint {
	var hits []*model.Endpoint
	target := strings.TrimSuffix(t.path, "/")
	for _, ep := range endpoints {
		if t.method != "" && ep.Method != t.method {
			continue
		}
		if pathMatches(ep.Path, target) {
			hits = append(hits, ep)
		}
	}
	return hits
}

// pathMatches compares a route template with a call target segment by
// segment. Template parameters and interpolated target segments match
// anything.
func pathMatches(template, target string) bool {
	ts := strings.Split(strings.Trim(template, "/"), "/")
	cs := strings.Split(strings.Trim(target, "/"), "/")
	if len(ts) != len(cs) {
		return false
	}
	for i := range ts {
		if isParamSegment(ts[i]) || interpolation.MatchString(cs[i]) {
			continue
		}
		if ts[i] != cs[i] {
			return false
		}
	}
	return true
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
