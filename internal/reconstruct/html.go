package reconstruct

import (
	"bytes"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// tagAttrs lists the element attributes that carry resource references
// worth pointing at co-located reconstructed files.
var tagAttrs = []struct {
	tag  string
	attr string
}{
	{"link", "href"},
	{"script", "src"},
	{"img", "src"},
	{"a", "href"},
	{"iframe", "src"},
}

// skipSchemes are reference forms that never resolve to captured resources.
var skipSchemes = []string{"data:", "#", "javascript:", "mailto:"}

// RewriteHTML rewrites intra-page resource references to point at
// reconstructed files from the same window. References to resources that
// were not captured in the window are left as their original absolute URLs;
// reconstruction is best-effort, not guaranteed-complete. Returns the
// rewritten document and the absolute URLs that were resolved locally. A
// parse failure returns the body unchanged.
func RewriteHTML(body []byte, pageURL, pagePath string, resources map[string]string) ([]byte, []string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return body, nil, err
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return body, nil, err
	}

	var resolved []string
	pageDir := filepath.Dir(pagePath)

	for _, ta := range tagAttrs {
		doc.Find(ta.tag).Each(func(_ int, sel *goquery.Selection) {
			ref, ok := sel.Attr(ta.attr)
			if !ok || ref == "" {
				return
			}
			for _, prefix := range skipSchemes {
				if strings.HasPrefix(ref, prefix) {
					return
				}
			}

			refURL, err := url.Parse(ref)
			if err != nil {
				return
			}
			abs := base.ResolveReference(refURL).String()

			local, ok := resources[abs]
			if !ok {
				return
			}
			rel, err := filepath.Rel(pageDir, local)
			if err != nil {
				rel = local
			}
			sel.SetAttr(ta.attr, filepath.ToSlash(rel))
			resolved = append(resolved, abs)
		})
	}

	out, err := doc.Html()
	if err != nil {
		return body, nil, err
	}
	return []byte(out), resolved, nil
}
