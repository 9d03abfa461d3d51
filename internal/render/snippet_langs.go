package render

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/QTest-hq/apimap/pkg/model"
)

// FetchSnippet generates browser/Node fetch calls
type FetchSnippet struct{}

func (s *FetchSnippet) Name() string     { return "javascript-fetch" }
func (s *FetchSnippet) Language() string { return "javascript" }

func (s *FetchSnippet) Render(ep *model.Endpoint, opts Options) string {
	opts = opts.withDefaults()
	req := NewSample(ep)
	var sb strings.Builder

	fmt.Fprintf(&sb, "// %s\n", ep.String())
	if req.Multipart {
		sb.WriteString("const form = new FormData();\n")
		for _, f := range req.Form {
			if strings.HasPrefix(f.Value, "@") {
				fmt.Fprintf(&sb, "form.append(%q, fileInput.files[0]);\n", f.Key)
				continue
			}
			fmt.Fprintf(&sb, "form.append(%q, %q);\n", f.Key, f.Value)
		}
	}
	fmt.Fprintf(&sb, "const response = await fetch(%q, {\n", req.URL(opts.BaseURL))
	fmt.Fprintf(&sb, "  method: %q,\n", ep.Method)
	if headers := headersExcept(req, req.Multipart); len(headers) > 0 {
		sb.WriteString("  headers: {\n")
		for _, h := range headers {
			fmt.Fprintf(&sb, "    %q: %q,\n", h.Key, h.Value)
		}
		sb.WriteString("  },\n")
	}
	switch {
	case req.Multipart:
		sb.WriteString("  body: form,\n")
	case req.Body != nil:
		fmt.Fprintf(&sb, "  body: JSON.stringify(%s),\n", indentJSON(req.Body, "  "))
	}
	sb.WriteString("});\n")
	sb.WriteString("const data = await response.json();\n")
	return sb.String()
}

// RequestsSnippet generates Python requests calls
type RequestsSnippet struct{}

func (s *RequestsSnippet) Name() string     { return "python-requests" }
func (s *RequestsSnippet) Language() string { return "python" }

func (s *RequestsSnippet) Render(ep *model.Endpoint, opts Options) string {
	opts = opts.withDefaults()
	req := NewSample(ep)
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n", ep.String())
	sb.WriteString("import requests\n\n")
	args := []string{strconv.Quote(opts.BaseURL + req.Path)}

	if headers := headersExcept(req, true); len(headers) > 0 {
		sb.WriteString("headers = {\n")
		for _, h := range headers {
			fmt.Fprintf(&sb, "    %s: %s,\n", strconv.Quote(h.Key), strconv.Quote(h.Value))
		}
		sb.WriteString("}\n")
		args = append(args, "headers=headers")
	}
	if len(req.Query) > 0 {
		sb.WriteString("params = {\n")
		for _, q := range req.Query {
			fmt.Fprintf(&sb, "    %s: %s,\n", strconv.Quote(q.Key), strconv.Quote(q.Value))
		}
		sb.WriteString("}\n")
		args = append(args, "params=params")
	}
	switch {
	case req.Multipart:
		var files, data []KV
		for _, f := range req.Form {
			if strings.HasPrefix(f.Value, "@") {
				files = append(files, f)
			} else {
				data = append(data, f)
			}
		}
		if len(files) > 0 {
			sb.WriteString("files = {\n")
			for _, f := range files {
				fmt.Fprintf(&sb, "    %s: open(%s, \"rb\"),\n", strconv.Quote(f.Key), strconv.Quote(strings.TrimPrefix(f.Value, "@")))
			}
			sb.WriteString("}\n")
			args = append(args, "files=files")
		}
		if len(data) > 0 {
			sb.WriteString("data = {\n")
			for _, f := range data {
				fmt.Fprintf(&sb, "    %s: %s,\n", strconv.Quote(f.Key), strconv.Quote(f.Value))
			}
			sb.WriteString("}\n")
			args = append(args, "data=data")
		}
	case req.Body != nil:
		fmt.Fprintf(&sb, "payload = %s\n", pythonLiteral(req.Body, ""))
		args = append(args, "json=payload")
	}

	fmt.Fprintf(&sb, "\nresponse = requests.%s(%s)\n", strings.ToLower(ep.Method), strings.Join(args, ", "))
	sb.WriteString("response.raise_for_status()\n")
	return sb.String()
}

// GoHTTPSnippet generates Go net/http calls
type GoHTTPSnippet struct{}

func (s *GoHTTPSnippet) Name() string     { return "go-net-http" }
func (s *GoHTTPSnippet) Language() string { return "go" }

func (s *GoHTTPSnippet) Render(ep *model.Endpoint, opts Options) string {
	opts = opts.withDefaults()
	req := NewSample(ep)
	var sb strings.Builder

	fmt.Fprintf(&sb, "// %s\n", ep.String())
	body := "nil"
	switch {
	case req.Multipart:
		sb.WriteString("var buf bytes.Buffer\n")
		sb.WriteString("form := multipart.NewWriter(&buf)\n")
		assign := ":="
		for _, f := range req.Form {
			if strings.HasPrefix(f.Value, "@") {
				fmt.Fprintf(&sb, "part, _ %s form.CreateFormFile(%q, %q)\n", assign, f.Key, strings.TrimPrefix(f.Value, "@./"))
				assign = "="
				sb.WriteString("part.Write(fileContent)\n")
				continue
			}
			fmt.Fprintf(&sb, "form.WriteField(%q, %q)\n", f.Key, f.Value)
		}
		sb.WriteString("form.Close()\n")
		body = "&buf"
	case req.Body != nil:
		data, _ := json.Marshal(req.Body)
		fmt.Fprintf(&sb, "body := strings.NewReader(`%s`)\n", string(data))
		body = "body"
	}

	fmt.Fprintf(&sb, "req, err := http.NewRequest(%q, %q, %s)\n", ep.Method, req.URL(opts.BaseURL), body)
	sb.WriteString("if err != nil {\n\treturn err\n}\n")
	for _, h := range headersExcept(req, req.Multipart) {
		fmt.Fprintf(&sb, "req.Header.Set(%q, %q)\n", h.Key, h.Value)
	}
	if req.Multipart {
		sb.WriteString("req.Header.Set(\"Content-Type\", form.FormDataContentType())\n")
	}
	sb.WriteString("resp, err := http.DefaultClient.Do(req)\n")
	sb.WriteString("if err != nil {\n\treturn err\n}\n")
	sb.WriteString("defer resp.Body.Close()\n")
	return sb.String()
}

// JavaHTTPClientSnippet generates java.net.http calls
type JavaHTTPClientSnippet struct{}

func (s *JavaHTTPClientSnippet) Name() string     { return "java-httpclient" }
func (s *JavaHTTPClientSnippet) Language() string { return "java" }

func (s *JavaHTTPClientSnippet) Render(ep *model.Endpoint, opts Options) string {
	opts = opts.withDefaults()
	req := NewSample(ep)
	var sb strings.Builder

	fmt.Fprintf(&sb, "// %s\n", ep.String())
	sb.WriteString("HttpClient client = HttpClient.newHttpClient();\n")
	if req.Multipart {
		sb.WriteString("String boundary = \"apimap-boundary\";\n")
	}
	publisher := "HttpRequest.BodyPublishers.noBody()"
	switch {
	case req.Multipart:
		// HttpClient has no multipart builder
		publisher = "HttpRequest.BodyPublishers.ofFile(Path.of(\"payload.multipart\"))"
	case req.Body != nil:
		data, _ := json.Marshal(req.Body)
		publisher = fmt.Sprintf("HttpRequest.BodyPublishers.ofString(%s)", strconv.Quote(string(data)))
	}

	sb.WriteString("HttpRequest request = HttpRequest.newBuilder()\n")
	fmt.Fprintf(&sb, "    .uri(URI.create(%s))\n", strconv.Quote(req.URL(opts.BaseURL)))
	for _, h := range headersExcept(req, false) {
		fmt.Fprintf(&sb, "    .header(%s, %s)\n", strconv.Quote(h.Key), strconv.Quote(h.Value))
	}
	if req.Multipart {
		sb.WriteString("    .header(\"Content-Type\", \"multipart/form-data; boundary=\" + boundary)\n")
	}
	fmt.Fprintf(&sb, "    .method(%s, %s)\n", strconv.Quote(ep.Method), publisher)
	sb.WriteString("    .build();\n")
	sb.WriteString("HttpResponse<String> response = client.send(request, HttpResponse.BodyHandlers.ofString());\n")
	return sb.String()
}

// headersExcept returns the sample headers, optionally without the JSON
// content type the client library sets on its own.
func headersExcept(req Sample, dropContentType bool) []KV {
	out := make([]KV, 0, len(req.Headers))
	for _, h := range req.Headers {
		if dropContentType && h.Key == "Content-Type" {
			continue
		}
		out = append(out, h)
	}
	return out
}

func indentJSON(v any, prefix string) string {
	data, err := json.MarshalIndent(v, prefix, "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// pythonLiteral renders a decoded JSON value as a Python expression
func pythonLiteral(v any, indent string) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case bool:
		if t {
			return "True"
		}
		return "False"
	case string:
		return strconv.Quote(t)
	case map[string]any:
		if len(t) == 0 {
			return "{}"
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		inner := indent + "    "
		var sb strings.Builder
		sb.WriteString("{\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "%s%s: %s,\n", inner, strconv.Quote(k), pythonLiteral(t[k], inner))
		}
		sb.WriteString(indent + "}")
		return sb.String()
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = pythonLiteral(item, indent)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return strconv.Quote(fmt.Sprint(t))
	}
}
