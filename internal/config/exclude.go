package config

import (
	"path"
	"strings"

	"github.com/gobwas/glob"
)

// excludeRule is an rsync-style exclude pattern compiled for local matching.
type excludeRule struct {
	glob.Glob
	anchored  bool
	dirOnly   bool
	wholePath bool
}

func compileExclude(pattern string) (glob.Glob, error) {
	p := strings.TrimSuffix(strings.TrimPrefix(pattern, "/"), "/")
	return glob.Compile(p, '/')
}

func parseExclude(pattern string, g glob.Glob) excludeRule {
	trimmed := strings.TrimSuffix(pattern, "/")
	return excludeRule{
		Glob:      g,
		anchored:  strings.HasPrefix(trimmed, "/"),
		dirOnly:   strings.HasSuffix(pattern, "/"),
		wholePath: strings.Contains(strings.TrimPrefix(trimmed, "/"), "/") || strings.Contains(trimmed, "**"),
	}
}

func (r excludeRule) matches(p string, isDir bool) bool {
	if r.dirOnly && !isDir {
		return false
	}
	switch {
	case r.anchored:
		return r.Match(p)
	case r.wholePath:
		parts := strings.Split(p, "/")
		for i := range parts {
			if r.Match(strings.Join(parts[i:], "/")) {
				return true
			}
		}
		return false
	default:
		return r.Match(path.Base(p))
	}
}

// Excludes reports whether the source-relative path rel is covered by one
// of the target's exclude patterns, either directly or through one of its
// parent directories.
func (t *Target) Excludes(rel string, isDir bool) bool {
	rel = strings.Trim(path.Clean("/"+rel), "/")
	if rel == "" {
		return false
	}

	rules := make([]excludeRule, 0, len(t.Exclude))
	for i, pattern := range t.Exclude {
		var g glob.Glob
		if i < len(t.excludes) {
			g = t.excludes[i]
		} else {
			var err error
			if g, err = compileExclude(pattern); err != nil {
				continue
			}
		}
		rules = append(rules, parseExclude(pattern, g))
	}

	parts := strings.Split(rel, "/")
	for i := 1; i <= len(parts); i++ {
		prefix := strings.Join(parts[:i], "/")
		dir := i < len(parts) || isDir
		for _, r := range rules {
			if r.matches(prefix, dir) {
				return true
			}
		}
	}
	return false
}
