package audit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cbtap/cbtap/internal/formula"
	"github.com/cbtap/cbtap/internal/platform"
)

// Duplicate is a checksum shared by different versions of one formula
// family for the same platform.
type Duplicate struct {
	Family   string
	Key      platform.Key
	SHA256   string
	Formulas []string
}

func (d Duplicate) String() string {
	return fmt.Sprintf("%s %s: %s share checksum %s", d.Family, d.Key, strings.Join(d.Formulas, ", "), d.SHA256)
}

// CheckUniqueChecksums reports checksums reused across versions. Entries
// that point at the same URL are the same upstream file and are not
// reported.
func CheckUniqueChecksums(formulas []*formula.Formula) []Duplicate {
	type slot struct {
		family string
		key    platform.Key
		sha    string
	}
	type use struct {
		name    string
		version string
		url     string
	}

	seen := make(map[slot][]use)
	for _, f := range formulas {
		for key, art := range f.Artifacts {
			s := slot{family: f.BaseName(), key: key, sha: art.SHA256}
			seen[s] = append(seen[s], use{name: f.Name, version: f.Version, url: art.URL})
		}
	}

	var dups []Duplicate
	for s, uses := range seen {
		versions := make(map[string]bool)
		urls := make(map[string]bool)
		names := make([]string, 0, len(uses))
		for _, u := range uses {
			versions[u.version] = true
			urls[u.url] = true
			names = append(names, u.name)
		}
		if len(versions) < 2 || len(urls) < 2 {
			continue
		}
		sort.Strings(names)
		dups = append(dups, Duplicate{Family: s.family, Key: s.key, SHA256: s.sha, Formulas: names})
	}

	sort.Slice(dups, func(i, j int) bool {
		if dups[i].Family != dups[j].Family {
			return dups[i].Family < dups[j].Family
		}
		return dups[i].Key < dups[j].Key
	})
	return dups
}

// Finding is a lint result.
type Finding struct {
	Formula string
	Field   string
	Message string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s: %s", f.Formula, f.Field, f.Message)
}

// Lint reports metadata gaps and platform coverage holes in f. It does
// not repeat the parse-time validation.
func Lint(f *formula.Formula) []Finding {
	var findings []Finding
	add := func(field, format string, args ...any) {
		findings = append(findings, Finding{Formula: f.Name, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if f.Desc == "" {
		add("desc", "missing description")
	}
	if f.Homepage == "" {
		add("homepage", "missing homepage")
	}
	if f.License == "" {
		add("license", "missing license")
	}

	for _, key := range platform.AllKeys {
		art, ok := f.Artifacts[key]
		if !ok {
			add("url", "no artifact for %s", key)
			continue
		}
		if !strings.HasPrefix(art.URL, "https://") {
			add("url", "%s url is not https", key)
		}
		if !strings.Contains(art.URL, f.Version) {
			add("url", "%s url does not mention version %s", key, f.Version)
		}
	}

	bySHA := make(map[string][]string)
	for _, key := range f.Keys() {
		sha := f.Artifacts[key].SHA256
		bySHA[sha] = append(bySHA[sha], key.String())
	}
	shas := make([]string, 0, len(bySHA))
	for sha := range bySHA {
		shas = append(shas, sha)
	}
	sort.Strings(shas)
	for _, sha := range shas {
		if keys := bySHA[sha]; len(keys) > 1 {
			add("sha256", "%s share one checksum", strings.Join(keys, ", "))
		}
	}

	if f.Test.Expect == "" {
		add("test", "no expected version output")
	}

	return findings
}
