package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/QTest-hq/apimap/pkg/model"
)

// Curl renders one endpoint as a shell command
func Curl(ep *model.Endpoint, opts Options) string {
	opts = opts.withDefaults()
	s := NewSample(ep)

	var sb strings.Builder
	fmt.Fprintf(&sb, "curl -X %s %s", ep.Method, shellQuote(s.URL(opts.BaseURL)))
	for _, h := range s.Headers {
		if s.Multipart && h.Key == "Content-Type" {
			continue
		}
		fmt.Fprintf(&sb, " \\\n  -H %s", shellQuote(h.Key+": "+h.Value))
	}

	switch {
	case s.Multipart:
		for _, f := range s.Form {
			fmt.Fprintf(&sb, " \\\n  -F %s", shellQuote(f.Key+"="+f.Value))
		}
	case s.Body != nil:
		data, err := json.Marshal(s.Body)
		if err == nil {
			fmt.Fprintf(&sb, " \\\n  -d %s", shellQuote(string(data)))
		}
	}
	return sb.String()
}

// CurlAll renders every endpoint, separated by blank lines and preceded by
// a comment naming the operation.
func CurlAll(endpoints []*model.Endpoint, opts Options) string {
	var sb strings.Builder
	for i, ep := range sorted(endpoints) {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "# %s\n", ep.String())
		sb.WriteString(Curl(ep, opts))
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	return sb.String()
}

// shellQuote wraps s in single quotes for POSIX shells
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
