package reconstruct

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	maxNameLen   = 100
	maxPartLen   = 50
	maxTreeDepth = 4
)

var (
	invalidNameChars = regexp.MustCompile(`[<>:"|?*\\/]`)
	controlChars     = regexp.MustCompile(`[\x00-\x1f]`)
)

// sanitizeName makes a URL component safe to use as a file or directory
// name, truncating overlong names with a short hash so distinct inputs stay
// distinct.
func sanitizeName(name string, maxLen int) string {
	name = invalidNameChars.ReplaceAllString(name, "_")
	name = controlChars.ReplaceAllString(name, "")
	if len(name) <= maxLen {
		return name
	}
	suffix := shortHash(name, 4)
	if ext := path.Ext(name); ext != "" && len(ext) <= 10 {
		base := name[:maxLen-len(ext)-5]
		return base + "_" + suffix + ext
	}
	return name[:maxLen-5] + "_" + suffix
}

func shortHash(s string, n int) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:n]
}

// extFor picks a file extension from the declared content type, falling
// back to fallback when the type is unrecognized.
func extFor(contentType, fallback string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "html"):
		return ".html"
	case strings.Contains(ct, "javascript"):
		return ".js"
	case strings.Contains(ct, "css"):
		return ".css"
	case strings.Contains(ct, "json"):
		return ".json"
	case strings.Contains(ct, "image/gif"):
		return ".gif"
	case strings.Contains(ct, "image/png"):
		return ".png"
	case strings.Contains(ct, "image/jpeg"), strings.Contains(ct, "image/jpg"):
		return ".jpg"
	case strings.Contains(ct, "image/svg"):
		return ".svg"
	default:
		return fallback
	}
}

// ArtifactPath derives the deterministic local path for a captured URL
// under root: {domain}/{derived path}. Query strings are folded into a
// hashed filename so distinct resources never collide, and re-deriving the
// path for the same URL always yields the same result.
func ArtifactPath(root, rawurl, contentType string) (string, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", err
	}

	domain := sanitizeName(strings.ReplaceAll(u.Host, ":", "_"), maxNameLen)
	if domain == "" {
		domain = "unknown-host"
	}

	trimmed := strings.Trim(u.Path, "/")
	if trimmed == "" {
		if u.RawQuery != "" {
			return filepath.Join(root, domain, "index_"+shortHash(rawurl, 8)+".html"), nil
		}
		return filepath.Join(root, domain, "index.html"), nil
	}

	parts := strings.Split(trimmed, "/")
	if len(parts) > maxTreeDepth {
		// Keep the leading directories and the leaf.
		parts = append(parts[:maxTreeDepth-1:maxTreeDepth-1], parts[len(parts)-1])
	}
	for i := range parts {
		parts[i] = sanitizeName(parts[i], maxPartLen)
	}

	leaf := parts[len(parts)-1]
	if u.RawQuery != "" {
		base := strings.SplitN(leaf, ".", 2)[0]
		ext := extFor(contentType, path.Ext(leaf))
		if ext == "" {
			ext = ".html"
		}
		leaf = sanitizeName(base, 30) + "_" + shortHash(rawurl, 8) + ext
	} else if path.Ext(leaf) == "" {
		leaf += extFor(contentType, "")
	}
	parts[len(parts)-1] = leaf

	return filepath.Join(append([]string{root, domain}, parts...)...), nil
}
