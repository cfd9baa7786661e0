// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

// SourceType classifies an input dataset identifier.
type SourceType int

const (
	TypeUnknown SourceType = iota
	TypeKaggle
	TypeURL
)

func (t SourceType) String() string {
	switch t {
	case TypeKaggle:
		return "kaggle"
	case TypeURL:
		return "url"
	default:
		return "unknown"
	}
}

// kaggleAPIBase is the Kaggle dataset download endpoint. Declared as a var
// so tests can substitute an httptest server.
var kaggleAPIBase = "https://www.kaggle.com/api/v1/datasets/download/"

// nsSchoolImmunization is the Kaggle mirror of the Nova Scotia school-based
// immunization coverage dataset, the pipeline's default input.
const nsSchoolImmunization = "kaggle:imtkaggleteam/school-based-immunization-coverage-in-nova-scotia"

// presets maps short dataset names to full identifiers.
var presets = map[string]string{
	"ns-school-immunization": nsSchoolImmunization,
}

// kagglePattern matches Kaggle dataset references: "kaggle:owner/dataset-name".
var kagglePattern = regexp.MustCompile(`^kaggle:([a-zA-Z0-9_-]+)/([a-zA-Z0-9_-]+)$`)

// Classify determines the source type and returns the normalized form.
// Preset names expand first, so "ns-school-immunization" classifies as the
// Kaggle dataset it names.
func Classify(identifier string) (SourceType, string) {
	identifier = strings.TrimSpace(identifier)
	if full, ok := presets[identifier]; ok {
		identifier = full
	}

	if m := kagglePattern.FindStringSubmatch(identifier); m != nil {
		return TypeKaggle, m[1] + "/" + m[2]
	}

	if u, err := url.Parse(identifier); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return TypeURL, identifier
	}

	return TypeUnknown, identifier
}

// Slug returns a filesystem-safe filename stem for the identifier.
func Slug(srcType SourceType, normalized string) string {
	switch srcType {
	case TypeKaggle:
		// Dataset name without the owner.
		return normalized[strings.IndexByte(normalized, '/')+1:]
	case TypeURL:
		u, err := url.Parse(normalized)
		if err != nil {
			return urlHashSlug(normalized)
		}
		base := strings.TrimSuffix(filepath.Base(u.Path), filepath.Ext(u.Path))
		if base == "" || base == "." || base == "/" {
			return urlHashSlug(normalized)
		}
		return slugify(base)
	default:
		return "unknown"
	}
}

// DownloadURL returns the URL the raw file is fetched from. Kaggle serves
// dataset downloads through its API; direct URLs pass through.
func DownloadURL(srcType SourceType, normalized string) string {
	switch srcType {
	case TypeKaggle:
		return kaggleAPIBase + normalized
	case TypeURL:
		return normalized
	default:
		return ""
	}
}

// slugify lowers a name and replaces runs of non-alphanumerics with hyphens.
func slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func urlHashSlug(rawURL string) string {
	h := sha256.Sum256([]byte(rawURL))
	return fmt.Sprintf("url-%x", h[:8])
}
