package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/QTest-hq/apimap/internal/canonical"
	"github.com/QTest-hq/apimap/internal/routepath"
	"github.com/QTest-hq/apimap/pkg/model"
)

// PostmanSchema is the collection format URL
const PostmanSchema = "https://schema.getpostman.com/json/collection/v2.1.0/collection.json"

var collectionNamespace = uuid.MustParse("0d2f5c8a-9b7e-4c13-8f6a-3e1d2b4c5a69")

// PostmanCollection is a Postman v2.1 collection
type PostmanCollection struct {
	Info     PostmanInfo       `json:"info"`
	Item     []PostmanFolder   `json:"item"`
	Variable []PostmanVariable `json:"variable"`
}

// PostmanInfo is the collection header
type PostmanInfo struct {
	PostmanID   string `json:"_postman_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Schema      string `json:"schema"`
}

// PostmanFolder holds the requests of one path group
type PostmanFolder struct {
	Name string        `json:"name"`
	Item []PostmanItem `json:"item"`
}

// PostmanItem is one saved request
type PostmanItem struct {
	Name    string         `json:"name"`
	Request PostmanRequest `json:"request"`
}

type PostmanRequest struct {
	Method      string       `json:"method"`
	Header      []PostmanKV  `json:"header"`
	URL         PostmanURL   `json:"url"`
	Body        *PostmanBody `json:"body,omitempty"`
	Auth        *PostmanAuth `json:"auth,omitempty"`
	Description string       `json:"description,omitempty"`
}

type PostmanURL struct {
	Raw      string      `json:"raw"`
	Host     []string    `json:"host"`
	Path     []string    `json:"path"`
	Query    []PostmanKV `json:"query,omitempty"`
	Variable []PostmanKV `json:"variable,omitempty"`
}

type PostmanKV struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Type  string `json:"type,omitempty"`
}

type PostmanBody struct {
	Mode     string          `json:"mode"`
	Raw      string          `json:"raw,omitempty"`
	FormData []PostmanKV     `json:"formdata,omitempty"`
	Options  *PostmanOptions `json:"options,omitempty"`
}

type PostmanOptions struct {
	Raw struct {
		Language string `json:"language"`
	} `json:"raw"`
}

type PostmanAuth struct {
	Type   string      `json:"type"`
	Bearer []PostmanKV `json:"bearer,omitempty"`
	Basic  []PostmanKV `json:"basic,omitempty"`
	APIKey []PostmanKV `json:"apikey,omitempty"`
}

type PostmanVariable struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Postman builds a collection with one folder per path group. The
// collection id is derived from the title and the endpoint set.
func Postman(endpoints []*model.Endpoint, opts Options) *PostmanCollection {
	opts = opts.withDefaults()
	eps := sorted(endpoints)

	var ids strings.Builder
	ids.WriteString(opts.Title)
	for _, ep := range eps {
		ids.WriteString("\n" + ep.String())
	}

	c := &PostmanCollection{
		Info: PostmanInfo{
			PostmanID:   uuid.NewSHA1(collectionNamespace, []byte(ids.String())).String(),
			Name:        opts.Title,
			Description: opts.Description,
			Schema:      PostmanSchema,
		},
		Item: make([]PostmanFolder, 0),
		Variable: []PostmanVariable{
			{Key: "baseUrl", Value: opts.BaseURL},
			{Key: "token", Value: ""},
		},
	}

	for _, g := range canonical.Group(eps) {
		folder := PostmanFolder{Name: g.Prefix, Item: make([]PostmanItem, 0, len(g.Endpoints))}
		for _, ep := range g.Endpoints {
			folder.Item = append(folder.Item, postmanItem(ep))
		}
		c.Item = append(c.Item, folder)
	}
	return c
}

// PostmanJSON renders the collection as indented JSON
func PostmanJSON(endpoints []*model.Endpoint, opts Options) ([]byte, error) {
	data, err := json.MarshalIndent(Postman(endpoints, opts), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal postman collection: %w", err)
	}
	return data, nil
}

func postmanItem(ep *model.Endpoint) PostmanItem {
	s := NewSample(ep)

	segs := routepath.Segments(ep.Path)
	path := make([]string, len(segs))
	for i, seg := range segs {
		if routepath.IsParam(seg) {
			seg = ":" + seg[1:len(seg)-1]
		}
		path[i] = seg
	}

	u := PostmanURL{
		Raw:  "{{baseUrl}}/" + strings.Join(path, "/"),
		Host: []string{"{{baseUrl}}"},
		Path: path,
	}
	for _, v := range s.PathVars {
		u.Variable = append(u.Variable, PostmanKV{Key: v.Key, Value: v.Value})
	}
	if len(s.Query) > 0 {
		q := make([]string, len(s.Query))
		for i, kv := range s.Query {
			u.Query = append(u.Query, PostmanKV{Key: kv.Key, Value: kv.Value})
			q[i] = kv.Key + "=" + kv.Value
		}
		u.Raw += "?" + strings.Join(q, "&")
	}

	req := PostmanRequest{
		Method:      ep.Method,
		Header:      make([]PostmanKV, 0),
		URL:         u,
		Auth:        postmanAuth(ep.AuthType()),
		Description: ep.Description,
	}
	for _, h := range s.Headers {
		// auth travels in the auth block
		if req.Auth != nil && (h.Key == "Authorization" || h.Key == "X-API-Key") {
			continue
		}
		req.Header = append(req.Header, PostmanKV{Key: h.Key, Value: h.Value})
	}

	switch {
	case s.Multipart:
		body := &PostmanBody{Mode: "formdata"}
		for _, f := range s.Form {
			kv := PostmanKV{Key: f.Key, Value: f.Value, Type: "text"}
			if strings.HasPrefix(f.Value, "@") {
				kv.Type = "file"
				kv.Value = ""
			}
			body.FormData = append(body.FormData, kv)
		}
		req.Body = body
	case s.Body != nil:
		raw, _ := json.MarshalIndent(s.Body, "", "  ")
		body := &PostmanBody{Mode: "raw", Raw: string(raw), Options: &PostmanOptions{}}
		body.Options.Raw.Language = "json"
		req.Body = body
	}

	return PostmanItem{Name: summary(ep), Request: req}
}

func postmanAuth(t model.AuthType) *PostmanAuth {
	switch t {
	case model.AuthJWT, model.AuthBearer, model.AuthOAuth:
		return &PostmanAuth{Type: "bearer", Bearer: []PostmanKV{{Key: "token", Value: "{{token}}", Type: "string"}}}
	case model.AuthBasic:
		return &PostmanAuth{Type: "basic", Basic: []PostmanKV{
			{Key: "username", Value: "{{username}}", Type: "string"},
			{Key: "password", Value: "{{password}}", Type: "string"},
		}}
	case model.AuthAPIKey:
		return &PostmanAuth{Type: "apikey", APIKey: []PostmanKV{
			{Key: "key", Value: "X-API-Key", Type: "string"},
			{Key: "value", Value: "{{apiKey}}", Type: "string"},
			{Key: "in", Value: "header", Type: "string"},
		}}
	}
	return nil
}
