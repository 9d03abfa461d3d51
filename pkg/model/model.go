// Package model defines the endpoint inventory produced by a scan: the
// canonical endpoints, their mined contract details, the analytics bundle
// attached to each one and the aggregate statistics for a project.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Framework identifies the route-declaration idiom a project (or a single
// endpoint) was recognized with.
type Framework string

const (
	FrameworkExpress Framework = "express"
	FrameworkNestJS  Framework = "nestjs"
	FrameworkNextJS  Framework = "nextjs"
	FrameworkFastify Framework = "fastify"
	FrameworkKoa     Framework = "koa"
	FrameworkHapi    Framework = "hapi"
	FrameworkFastAPI Framework = "fastapi"
	FrameworkFlask   Framework = "flask"
	FrameworkDjango  Framework = "django"
	FrameworkSpring  Framework = "spring"
	FrameworkJAXRS   Framework = "jaxrs"
	FrameworkGin     Framework = "gin"
	FrameworkEcho    Framework = "echo"
	FrameworkFiber   Framework = "fiber"
	FrameworkChi     Framework = "chi"
	FrameworkGorilla Framework = "gorilla"
	FrameworkNetHTTP Framework = "nethttp"
	FrameworkRails   Framework = "rails"
	FrameworkSinatra Framework = "sinatra"
	FrameworkLaravel Framework = "laravel"
	FrameworkSymfony Framework = "symfony"
	FrameworkASPNet  Framework = "aspnet"
	FrameworkActix   Framework = "actix"
	FrameworkAxum    Framework = "axum"
	FrameworkRocket  Framework = "rocket"
	FrameworkPhoenix Framework = "phoenix"
	FrameworkShelf   Framework = "shelf"
	FrameworkUnknown Framework = "unknown"
)

// Frameworks lists every known tag except unknown, in detection priority order.
func Frameworks() []Framework {
	return []Framework{
		FrameworkNextJS, FrameworkNestJS, FrameworkFastify, FrameworkHapi, FrameworkKoa, FrameworkExpress,
		FrameworkFastAPI, FrameworkDjango, FrameworkFlask,
		FrameworkSpring, FrameworkJAXRS,
		FrameworkGin, FrameworkEcho, FrameworkFiber, FrameworkChi, FrameworkGorilla, FrameworkNetHTTP,
		FrameworkRails, FrameworkSinatra,
		FrameworkLaravel, FrameworkSymfony,
		FrameworkASPNet,
		FrameworkActix, FrameworkAxum, FrameworkRocket,
		FrameworkShelf,
		FrameworkPhoenix,
	}
}

// ParseFramework maps a user supplied name to a Framework tag.
func ParseFramework(s string) (Framework, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "springboot", "spring-boot":
		return FrameworkSpring, true
	case "net/http", "http":
		return FrameworkNetHTTP, true
	case "asp.net", "aspnetcore":
		return FrameworkASPNet, true
	case "next", "next.js":
		return FrameworkNextJS, true
	}
	for _, fw := range Frameworks() {
		if string(fw) == s {
			return fw, true
		}
	}
	if s == string(FrameworkUnknown) {
		return FrameworkUnknown, true
	}
	return FrameworkUnknown, false
}

// ParamLocation is where a parameter travels in the request.
type ParamLocation string

const (
	InPath   ParamLocation = "path"
	InQuery  ParamLocation = "query"
	InBody   ParamLocation = "body"
	InHeader ParamLocation = "header"
)

// AuthType is the closed set of recognized auth schemes.
type AuthType string

const (
	AuthJWT     AuthType = "jwt"
	AuthSession AuthType = "session"
	AuthAPIKey  AuthType = "apikey"
	AuthOAuth   AuthType = "oauth"
	AuthBasic   AuthType = "basic"
	AuthBearer  AuthType = "bearer"
	AuthNone    AuthType = "none"
)

// RawMatch is a single route declaration found by an extractor, before any
// contract mining or deduplication.
type RawMatch struct {
	Method     string    `json:"method"`
	RawPath    string    `json:"raw_path"`
	Offset     int       `json:"offset"`
	SourceFile string    `json:"source_file"`
	Framework  Framework `json:"framework"`
	Extractor  string    `json:"extractor"`
	Handler    string    `json:"handler,omitempty"`

	// PathParamTypes carries types an extractor could read from the route
	// syntax itself, e.g. Django's <int:pk>.
	PathParamTypes map[string]string `json:"path_param_types,omitempty"`
}

// Parameter is a declared request input.
type Parameter struct {
	Name        string        `json:"name"`
	Type        string        `json:"type"`
	Required    bool          `json:"required"`
	In          ParamLocation `json:"in"`
	Description string        `json:"description,omitempty"`
}

// RequestBody describes the payload an endpoint accepts.
type RequestBody struct {
	ContentType string `json:"content_type"`
	SchemaRef   string `json:"schema_ref,omitempty"`
	Example     string `json:"example,omitempty"`
	Required    bool   `json:"required"`
}

// Response describes one documented or inferred response.
type Response struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type,omitempty"`
	SchemaRef   string `json:"schema_ref,omitempty"`
	Description string `json:"description,omitempty"`
}

// Auth is the detected authentication requirement.
type Auth struct {
	Type   AuthType `json:"type"`
	Source string   `json:"source,omitempty"` // the cue that matched
	Roles  []string `json:"roles,omitempty"`
}

// Validation collects validation rule fragments found near the handler.
type Validation struct {
	Library string   `json:"library,omitempty"`
	Rules   []string `json:"rules"`
}

// RateLimit is a detected throttling directive. Nil numbers mean the value
// could not be read as a number.
type RateLimit struct {
	Limit         *int   `json:"limit,omitempty"`
	WindowSeconds *int   `json:"window_seconds,omitempty"`
	Key           string `json:"key,omitempty"`
}

// CacheDirective is a detected response/data cache instruction.
type CacheDirective struct {
	TTLSeconds *int     `json:"ttl_seconds,omitempty"`
	Strategy   string   `json:"strategy,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// Endpoint is one HTTP operation recovered from source.
type Endpoint struct {
	ID          string    `json:"id"`
	Method      string    `json:"method"`
	Path        string    `json:"path"`     // normalized, {param} placeholders
	RawPath     string    `json:"raw_path"` // as declared, prefixes applied
	SourceFile  string    `json:"source_file"`
	Line        int       `json:"line"`
	HandlerName string    `json:"handler_name,omitempty"`
	IsAsync     bool      `json:"is_async"`
	Framework   Framework `json:"framework"`
	Description string    `json:"description,omitempty"`

	Parameters  []Parameter     `json:"parameters"`
	RequestBody *RequestBody    `json:"request_body,omitempty"`
	Responses   []Response      `json:"responses"`
	Auth        *Auth           `json:"auth,omitempty"`
	Middleware  []string        `json:"middleware"`
	Validation  *Validation     `json:"validation,omitempty"`
	RateLimit   *RateLimit      `json:"rate_limit,omitempty"`
	Cache       *CacheDirective `json:"cache,omitempty"`

	Analytics *Analytics `json:"analytics,omitempty"`

	// Context is the forward window of source around the declaration and
	// Leading the backward one; analytics read them, they are not serialized.
	Context string `json:"-"`
	Leading string `json:"-"`
}

// Key returns the canonicalization key of the endpoint.
func (e *Endpoint) Key() string {
	return CanonicalKey(e.Method, e.Path, e.SourceFile)
}

// CanonicalKey joins the identity tuple into one comparable string.
func CanonicalKey(method, path, file string) string {
	return strings.ToUpper(method) + " " + path + " @" + file
}

var endpointNamespace = uuid.MustParse("6f1c5c1e-4a0e-4f55-9a7e-0c2f3d8b9e21")

// EndpointID derives a stable identifier from a canonical key.
func EndpointID(key string) string {
	return uuid.NewSHA1(endpointNamespace, []byte(key)).String()
}

// AddParameter appends p unless a parameter with the same name already
// exists in the same location. It reports whether p was added.
func (e *Endpoint) AddParameter(p Parameter) bool {
	if p.Name == "" {
		return false
	}
	for _, existing := range e.Parameters {
		if existing.Name == p.Name && existing.In == p.In {
			return false
		}
	}
	e.Parameters = append(e.Parameters, p)
	return true
}

// ParamsIn returns the parameters declared in one location.
func (e *Endpoint) ParamsIn(in ParamLocation) []Parameter {
	var out []Parameter
	for _, p := range e.Parameters {
		if p.In == in {
			out = append(out, p)
		}
	}
	return out
}

// AddResponse appends r unless the status code is already present.
func (e *Endpoint) AddResponse(r Response) bool {
	for _, existing := range e.Responses {
		if existing.StatusCode == r.StatusCode {
			return false
		}
	}
	e.Responses = append(e.Responses, r)
	return true
}

// AddMiddleware appends names not yet present, keeping order.
func (e *Endpoint) AddMiddleware(names ...string) {
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		dup := false
		for _, existing := range e.Middleware {
			if existing == n {
				dup = true
				break
			}
		}
		if !dup {
			e.Middleware = append(e.Middleware, n)
		}
	}
}

// AuthType returns the endpoint's auth scheme, none when absent.
func (e *Endpoint) AuthType() AuthType {
	if e.Auth == nil || e.Auth.Type == "" {
		return AuthNone
	}
	return e.Auth.Type
}

// IsMutating reports whether the method changes server state.
func (e *Endpoint) IsMutating() bool {
	switch e.Method {
	case "POST", "PUT", "PATCH", "DELETE":
		return true
	}
	return false
}

// String renders "METHOD /path".
func (e *Endpoint) String() string {
	return fmt.Sprintf("%s %s", e.Method, e.Path)
}

// Group collects endpoints sharing the first static path segment.
type Group struct {
	Prefix    string      `json:"prefix"`
	Endpoints []*Endpoint `json:"endpoints"`
}

// ScanInfo summarizes the traversal that produced a result.
type ScanInfo struct {
	FilesVisited      int           `json:"files_visited"`
	FilesScanned      int           `json:"files_scanned"`
	FilesSkipped      int           `json:"files_skipped"`
	RawMatches        int           `json:"raw_matches"`
	DuplicatesDropped int           `json:"duplicates_dropped"`
	CacheHits         int64         `json:"cache_hits"`
	CacheMisses       int64         `json:"cache_misses"`
	Truncated         bool          `json:"truncated"` // a file-count or time ceiling was hit
	Duration          time.Duration `json:"duration"`
}

// Result is the output of one extraction run.
type Result struct {
	Root      string      `json:"root"`
	Framework Framework   `json:"framework"`
	Endpoints []*Endpoint `json:"endpoints"`
	Groups    []Group     `json:"groups"`
	Stats     Stats       `json:"stats"`
	Scan      ScanInfo    `json:"scan"`
}

// NewResult returns a result whose slices are non-nil.
func NewResult(root string) *Result {
	return &Result{
		Root:      root,
		Framework: FrameworkUnknown,
		Endpoints: make([]*Endpoint, 0),
		Groups:    make([]Group, 0),
		Stats:     NewStats(),
	}
}
