package facet

import (
	"strconv"
	"strings"
)

// PathSegment is one step of a parsed path: a property name and an optional
// 1-based index into its value. Index 0 means the segment carries no index.
type PathSegment struct {
	Property string
	Index    int
}

// Path is an ordered list of segments addressing one node in an object graph.
// A parsed path is immutable and may be resolved against any number of roots.
type Path []PathSegment

// ParsePath parses a dotted path string such as "Children[2].Name" into
// segments. The empty string parses to an empty path, which resolves to the
// root itself. Identifiers are restricted to word characters and indices must
// be positive.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}
	parts := strings.Split(s, ".")
	path := make(Path, 0, len(parts))
	for _, part := range parts {
		segment, err := parseSegment(s, part)
		if err != nil {
			return nil, err
		}
		path = append(path, segment)
	}
	return path, nil
}

func parseSegment(full, raw string) (PathSegment, error) {
	if raw == "" {
		return PathSegment{}, NewInvalidPathSyntaxError(full, "empty path segment")
	}
	name := raw
	index := 0
	if open := strings.IndexByte(raw, '['); open >= 0 {
		if raw[len(raw)-1] != ']' {
			return PathSegment{}, NewInvalidPathSyntaxError(full, "unterminated index bracket")
		}
		name = raw[:open]
		digits := raw[open+1 : len(raw)-1]
		if digits == "" {
			return PathSegment{}, NewInvalidPathSyntaxError(full, "empty index")
		}
		for i := 0; i < len(digits); i++ {
			if digits[i] < '0' || digits[i] > '9' {
				return PathSegment{}, NewInvalidPathSyntaxError(full, "index is not a number")
			}
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			return PathSegment{}, NewInvalidPathSyntaxError(full, "index is not a number")
		}
		if n < 1 {
			return PathSegment{}, NewInvalidIndexError(full, n)
		}
		index = n
	}
	if name == "" {
		return PathSegment{}, NewInvalidPathSyntaxError(full, "segment has no property name")
	}
	for i := 0; i < len(name); i++ {
		if !isWordChar(name[i]) {
			return PathSegment{}, NewInvalidPathSyntaxError(full, "invalid character in property name")
		}
	}
	return PathSegment{Property: name, Index: index}, nil
}

func isWordChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// ValidatePathSyntax is a cheap pre-check of character set and bracket
// balance. It accepts some strings a full parse would reject; use it to
// screen input before parsing, not instead of parsing.
func ValidatePathSyntax(s string) error {
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '[':
			depth++
			if depth > 1 {
				return NewInvalidPathSyntaxError(s, "nested index bracket")
			}
		case c == ']':
			depth--
			if depth < 0 {
				return NewInvalidPathSyntaxError(s, "unmatched closing bracket")
			}
		case c == '.' || isWordChar(c):
		default:
			return NewInvalidPathSyntaxError(s, "invalid character in path")
		}
	}
	if depth != 0 {
		return NewInvalidPathSyntaxError(s, "unmatched opening bracket")
	}
	return nil
}

// String reassembles the path into its canonical dotted form.
func (p Path) String() string {
	var b strings.Builder
	for i, segment := range p {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(segment.Property)
		if segment.Index > 0 {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(segment.Index))
			b.WriteByte(']')
		}
	}
	return b.String()
}

// Resolve walks the path from the root and returns the node it addresses.
// An empty path returns the root unchanged. Each segment requires the current
// node to expose the named property; indexed segments additionally require the
// value to be a sequence containing the 1-based index.
func (p Path) Resolve(root any) (any, error) {
	current := root
	for _, segment := range p {
		value, state := lookupProperty(current, segment.Property)
		if state == propNoAccessor {
			return nil, NewInvalidPathError(p.String(), segment.Property)
		}
		if segment.Index > 0 {
			seq, ok := asSequence(value)
			if !ok {
				return nil, NewIndexOutOfBoundsError(p.String(), segment.Index, 0)
			}
			if segment.Index > len(seq) {
				return nil, NewIndexOutOfBoundsError(p.String(), segment.Index, len(seq))
			}
			current = seq[segment.Index-1]
			continue
		}
		current = value
	}
	return current, nil
}

// ResolvePath parses the path string and resolves it against the root.
func ResolvePath(s string, root any) (any, error) {
	path, err := ParsePath(s)
	if err != nil {
		return nil, err
	}
	return path.Resolve(root)
}

// SetValueAtPath resolves all but the last segment and writes the value to
// the node the final segment addresses. Indexed final segments overwrite the
// addressed element in place, which requires the sequence to be a []any.
func SetValueAtPath(root any, pathString string, value any) error {
	path, err := ParsePath(pathString)
	if err != nil {
		return err
	}
	if len(path) == 0 {
		return NewInvalidPathSyntaxError(pathString, "cannot write to an empty path")
	}
	last := path[len(path)-1]
	parent, err := path[:len(path)-1].Resolve(root)
	if err != nil {
		return err
	}
	if last.Index > 0 {
		current, state := lookupProperty(parent, last.Property)
		if state == propNoAccessor {
			return NewInvalidPathError(pathString, last.Property)
		}
		seq, ok := current.([]any)
		if !ok {
			return NewIndexOutOfBoundsError(pathString, last.Index, 0)
		}
		if last.Index > len(seq) {
			return NewIndexOutOfBoundsError(pathString, last.Index, len(seq))
		}
		seq[last.Index-1] = value
		return nil
	}
	if err := writeProperty(parent, last.Property, value); err != nil {
		if fe, isFacet := err.(*FacetError); isFacet && fe.Path == "" {
			fe.WithPath(pathString)
		}
		return err
	}
	return nil
}
