package rewrite

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"text/template"
)

//go:embed monitor.js.tmpl
var monitorSource string

var monitorTemplate = template.Must(template.New("monitor").Parse(monitorSource))

// monitorData holds the JSON-encoded literals substituted into the script.
// json.Marshal escapes <, > and &, so no value can close the <script> element.
type monitorData struct {
	TargetBase string
	Prefix     string
	Attributes string
	Selector   string
	SkipTags   string
	Schemes    string
}

// MonitorScript returns the client-side interception script for a page
// fetched from target. The script carries the rule's constants so that
// runtime rewrites match the server-side Rewrite exactly.
func (r Rule) MonitorScript(target *url.URL) (string, error) {
	data := monitorData{}
	fields := []struct {
		dst *string
		v   any
	}{
		{&data.TargetBase, Origin(target)},
		{&data.Prefix, r.Prefix()},
		{&data.Attributes, lower(r.Attributes)},
		{&data.Selector, r.Selector()},
		{&data.SkipTags, lower(r.SkipTags)},
		{&data.Schemes, lower(r.Schemes)},
	}
	for _, f := range fields {
		b, err := json.Marshal(f.v)
		if err != nil {
			return "", fmt.Errorf("encode monitor literal: %w", err)
		}
		*f.dst = string(b)
	}

	var sb strings.Builder
	if err := monitorTemplate.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render monitor script: %w", err)
	}
	return sb.String(), nil
}

func lower(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
