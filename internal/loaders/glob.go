package loaders

import (
	"path"
	"strings"
)

// matchGlob matches a slash-separated relative path against a glob
// pattern. Beyond path.Match semantics, a "**" segment matches any
// number of path segments, including zero.
func matchGlob(pattern, rel string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(rel, "/"))
}

func matchSegments(pattern, segs []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			if matchSegments(pattern[1:], segs) {
				return true
			}
			if len(segs) == 0 {
				return false
			}
			segs = segs[1:]
			continue
		}
		if len(segs) == 0 {
			return false
		}
		ok, err := path.Match(pattern[0], segs[0])
		if err != nil || !ok {
			return false
		}
		pattern = pattern[1:]
		segs = segs[1:]
	}
	return len(segs) == 0
}
