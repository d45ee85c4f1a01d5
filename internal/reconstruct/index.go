package reconstruct

import (
	"fmt"
	"html/template"
	"net/url"
	"os"
	"path/filepath"
	"sort"
)

const indexTemplate = `<!DOCTYPE html>
<html>
<head>
<title>Reconstructed Pages</title>
<style>
body { font-family: Arial, sans-serif; margin: 20px; }
h1 { color: #333; }
.domain { margin: 20px 0; padding: 15px; border: 1px solid #ddd; border-radius: 5px; }
.domain h2 { color: #666; margin-top: 0; }
ul { list-style-type: none; padding: 0; }
li { margin: 5px 0; }
a { color: #0066cc; text-decoration: none; }
a:hover { text-decoration: underline; }
.stats { background: #f5f5f5; padding: 10px; border-radius: 3px; margin-bottom: 20px; }
.cached { color: #888; }
.tag { background: #eee; color: #666; padding: 0 4px; }
</style>
</head>
<body>
<h1>Reconstructed Web Pages</h1>
<div class="stats">
<strong>Statistics:</strong><br>
Pages: {{.PageCount}}<br>
Supporting resources: {{.ResourceCount}}<br>
Cached (not reconstructable): {{.CachedCount}}
</div>
{{range .Domains}}<div class="domain">
<h2>{{.Name}}</h2>
<ul>
{{range .Pages}}<li><a href="{{.Href}}" title="{{.URL}}">{{.Label}}</a></li>
{{end}}{{range .Cached}}<li><span class="cached">{{.}}</span> <span class="tag" title="Content was cached (304 Not Modified) and could not be reconstructed">[CACHED]</span></li>
{{end}}</ul>
</div>
{{end}}</body>
</html>
`

type indexPage struct {
	URL   string
	Href  string
	Label string
}

type indexDomain struct {
	Name   string
	Pages  []indexPage
	Cached []string
}

type indexData struct {
	PageCount     int
	ResourceCount int
	CachedCount   int
	Domains       []indexDomain
}

// WriteIndex writes an index.html at the artifact tree root listing every
// reconstructed page grouped by domain, with cached hits marked. The index
// is regenerated in full on every call, so repeated reconstruction keeps it
// consistent with the tree.
func (r *Reconstructor) WriteIndex(res *Result) error {
	byDomain := make(map[string]*indexDomain)
	domain := func(name string) *indexDomain {
		if name == "" {
			name = "unknown-host"
		}
		d, ok := byDomain[name]
		if !ok {
			d = &indexDomain{Name: name}
			byDomain[name] = d
		}
		return d
	}

	for _, page := range res.Pages {
		href, err := filepath.Rel(r.outDir, page.LocalPath)
		if err != nil {
			href = page.LocalPath
		}
		label := page.SourceURL
		if len(label) > 80 {
			label = label[:77] + "..."
		}
		d := domain(page.Domain)
		d.Pages = append(d.Pages, indexPage{
			URL:   page.SourceURL,
			Href:  filepath.ToSlash(href),
			Label: label,
		})
	}
	for _, entry := range res.NonReconstructed {
		if !entry.Cached {
			continue
		}
		label := entry.URL
		if len(label) > 80 {
			label = label[:77] + "..."
		}
		d := domain(hostOf(entry.URL))
		d.Cached = append(d.Cached, label)
	}

	data := indexData{
		PageCount:     res.Summary.Pages,
		ResourceCount: res.Summary.Resources,
		CachedCount:   res.Summary.Cached,
	}
	for _, d := range byDomain {
		data.Domains = append(data.Domains, *d)
	}
	sort.Slice(data.Domains, func(i, j int) bool {
		return data.Domains[i].Name < data.Domains[j].Name
	})

	tmpl, err := template.New("index").Parse(indexTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse index template: %w", err)
	}
	if err := os.MkdirAll(r.outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	f, err := os.Create(filepath.Join(r.outDir, "index.html"))
	if err != nil {
		return fmt.Errorf("failed to create index page: %w", err)
	}
	defer f.Close()
	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("failed to render index page: %w", err)
	}
	return nil
}

func hostOf(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
