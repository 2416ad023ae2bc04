package selector

import (
	"fmt"
	"strings"
)

const (
	wildcardSingle = "*"
	wildcardMulti  = "**"
	separator      = "."
)

type glob struct {
	pattern  string
	segments []string
}

// Glob returns a selector for dot separated topics. "*" matches exactly one
// segment and "**" matches zero or more segments.
func Glob(pattern string) (Selector, error) {
	if !validTopic(pattern) {
		return nil, fmt.Errorf("invalid glob selector %q", pattern)
	}
	return glob{pattern: pattern, segments: strings.Split(pattern, separator)}, nil
}

func (g glob) Object() any { return g.pattern }

func (g glob) Matches(key any) bool {
	s, ok := keyString(key)
	if !ok || !validTopic(s) {
		return false
	}
	return matchSegments(strings.Split(s, separator), g.segments)
}

func (g glob) String() string { return fmt.Sprintf("G(%s)", g.pattern) }

// matchSegments performs recursive pattern matching on topic segments.
func matchSegments(topic, pattern []string) bool {
	for len(pattern) > 0 {
		head := pattern[0]
		if head == wildcardMulti {
			rest := pattern[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(topic); i++ {
				if matchSegments(topic[i:], rest) {
					return true
				}
			}
			return false
		}

		if len(topic) == 0 {
			return false
		}
		if head != wildcardSingle && head != topic[0] {
			return false
		}
		topic, pattern = topic[1:], pattern[1:]
	}
	return len(topic) == 0
}

// validTopic rejects empty topics and empty segments.
func validTopic(s string) bool {
	if s == "" {
		return false
	}
	for _, seg := range strings.Split(s, separator) {
		if seg == "" {
			return false
		}
	}
	return true
}
