package render

import (
	"fmt"
	"strings"

	"github.com/QTest-hq/apimap/pkg/model"
)

// Output formats accepted by Artifact
const (
	FormatOpenAPI     = "openapi"
	FormatOpenAPIYAML = "openapi-yaml"
	FormatPostman     = "postman"
	FormatCurl        = "curl"
	FormatSnippet     = "snippet"
	FormatMock        = "mock"
)

// Formats lists the output formats
func Formats() []string {
	return []string{FormatOpenAPI, FormatOpenAPIYAML, FormatPostman, FormatCurl, FormatSnippet, FormatMock}
}

// ContentType returns the media type of a format's output
func ContentType(format string) string {
	switch format {
	case FormatOpenAPIYAML:
		return "application/yaml"
	case FormatCurl, FormatSnippet:
		return "text/plain; charset=utf-8"
	}
	return "application/json"
}

// Artifact renders endpoints in the named format. lang selects the
// snippet renderer and is ignored by the other formats.
func Artifact(format string, endpoints []*model.Endpoint, opts Options, lang string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatOpenAPI:
		return OpenAPIJSON(endpoints, opts)
	case FormatOpenAPIYAML, "yaml":
		return OpenAPIYAML(endpoints, opts)
	case FormatPostman:
		return PostmanJSON(endpoints, opts)
	case FormatCurl:
		return []byte(CurlAll(endpoints, opts)), nil
	case FormatSnippet:
		if lang == "" {
			return nil, fmt.Errorf("snippet format requires a language (one of %s)", strings.Join(NewSnippetRegistry().List(), ", "))
		}
		s, err := NewSnippetRegistry().Get(lang)
		if err != nil {
			return nil, err
		}
		return []byte(RenderAll(s, endpoints, opts)), nil
	case FormatMock:
		return MockJSON(endpoints)
	}
	return nil, fmt.Errorf("unsupported format %q (one of %s)", format, strings.Join(Formats(), ", "))
}
