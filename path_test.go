package facet

import (
	"reflect"
	"testing"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want Path
	}{
		{"empty", "", Path{}},
		{"single property", "Name", Path{{Property: "Name"}}},
		{"indexed", "Children[2]", Path{{Property: "Children", Index: 2}}},
		{
			"dotted with index",
			"Children[2].Name",
			Path{{Property: "Children", Index: 2}, {Property: "Name"}},
		},
		{
			"underscores and digits",
			"child_2.value_10[3]",
			Path{{Property: "child_2"}, {Property: "value_10", Index: 3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePath(tt.path)
			if err != nil {
				t.Fatalf("ParsePath(%q) failed: %v", tt.path, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParsePath(%q) = %#v, want %#v", tt.path, got, tt.want)
			}
		})
	}
}

func TestParsePathErrors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		wantCode string
	}{
		{"unterminated bracket", "A[1", ErrCodeInvalidPathSyntax},
		{"zero index", "Children[0]", ErrCodeInvalidIndex},
		{"negative-looking index", "A[-1]", ErrCodeInvalidPathSyntax},
		{"empty index", "A[]", ErrCodeInvalidPathSyntax},
		{"non-numeric index", "A[x]", ErrCodeInvalidPathSyntax},
		{"empty segment", "A..B", ErrCodeInvalidPathSyntax},
		{"trailing dot", "A.", ErrCodeInvalidPathSyntax},
		{"no property name", "[1]", ErrCodeInvalidPathSyntax},
		{"text after bracket", "A[1]B", ErrCodeInvalidPathSyntax},
		{"illegal character", "A-B", ErrCodeInvalidPathSyntax},
		{"space", "A B", ErrCodeInvalidPathSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePath(tt.path)
			if err == nil {
				t.Fatalf("Expected ParsePath(%q) to fail", tt.path)
			}
			facetErr, ok := err.(*FacetError)
			if !ok {
				t.Fatalf("Expected *FacetError, got %T", err)
			}
			if facetErr.Code != tt.wantCode {
				t.Errorf("ParsePath(%q) code = %s, want %s", tt.path, facetErr.Code, tt.wantCode)
			}
		})
	}
}

func TestValidatePathSyntax(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"empty", "", false},
		{"plain", "Children[2].Name", false},
		{"screens character set only", "A[].B", false},
		{"nested brackets", "A[[1]]", true},
		{"unmatched close", "A]1", true},
		{"unmatched open", "A[1", true},
		{"illegal character", "A-B", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathSyntax(tt.path)
			if tt.wantErr && err == nil {
				t.Fatalf("Expected ValidatePathSyntax(%q) to fail", tt.path)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("ValidatePathSyntax(%q) failed: %v", tt.path, err)
			}
			if err != nil {
				if facetErr, ok := err.(*FacetError); !ok || facetErr.Code != ErrCodeInvalidPathSyntax {
					t.Errorf("Expected INVALID_PATH_SYNTAX, got %v", err)
				}
			}
		})
	}
}

func TestPathString(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"plain", "Name"},
		{"full", "Children[2].Name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParsePath(tt.path)
			if err != nil {
				t.Fatalf("ParsePath(%q) failed: %v", tt.path, err)
			}
			if got := parsed.String(); got != tt.path {
				t.Errorf("String() = %q, want %q", got, tt.path)
			}
		})
	}
}

func newParentWithOneChild(t *testing.T) *GenericRecord {
	t.Helper()
	registry := newSessionRegistry(t)
	factory := NewFactory(registry)
	record, err := factory.Create("Parent", map[string]any{
		"Name": "root",
		"Children": []any{
			map[string]any{"SessionID": float64(101), "Label": "only"},
		},
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	return record
}

func TestResolvePath(t *testing.T) {
	parent := newParentWithOneChild(t)

	t.Run("empty path returns root", func(t *testing.T) {
		got, err := ResolvePath("", parent)
		if err != nil {
			t.Fatalf("ResolvePath() failed: %v", err)
		}
		if got != any(parent) {
			t.Error("Expected empty path to return the root unchanged")
		}
	})

	t.Run("first child", func(t *testing.T) {
		got, err := ResolvePath("Children[1]", parent)
		if err != nil {
			t.Fatalf("ResolvePath() failed: %v", err)
		}
		child, ok := got.(*GenericRecord)
		if !ok {
			t.Fatalf("Expected child record, got %T", got)
		}
		if v, _ := child.Value("SessionID"); v != float64(101) {
			t.Errorf("Expected SessionID 101, got %v", v)
		}
	})

	t.Run("descend into child property", func(t *testing.T) {
		got, err := ResolvePath("Children[1].Label", parent)
		if err != nil {
			t.Fatalf("ResolvePath() failed: %v", err)
		}
		if got != "only" {
			t.Errorf("Expected 'only', got %v", got)
		}
	})

	t.Run("index past the end", func(t *testing.T) {
		_, err := ResolvePath("Children[2]", parent)
		if err == nil {
			t.Fatal("Expected out-of-bounds error")
		}
		if !IsIndexOutOfBounds(err) {
			t.Errorf("Expected INDEX_OUT_OF_BOUNDS, got %v", err)
		}
	})

	t.Run("unknown property", func(t *testing.T) {
		_, err := ResolvePath("Nope", parent)
		if err == nil {
			t.Fatal("Expected invalid path error")
		}
		facetErr, ok := err.(*FacetError)
		if !ok || facetErr.Code != ErrCodeInvalidPath {
			t.Errorf("Expected INVALID_PATH, got %v", err)
		}
	})

	t.Run("index on a scalar", func(t *testing.T) {
		_, err := ResolvePath("Name[1]", parent)
		if err == nil {
			t.Fatal("Expected out-of-bounds error for non-sequence")
		}
		if !IsIndexOutOfBounds(err) {
			t.Errorf("Expected INDEX_OUT_OF_BOUNDS, got %v", err)
		}
	})

	t.Run("descend through unpopulated property", func(t *testing.T) {
		_, err := ResolvePath("ActiveChild.SessionID", parent)
		if err == nil {
			t.Fatal("Expected invalid path error below an unpopulated property")
		}
		facetErr, ok := err.(*FacetError)
		if !ok || facetErr.Code != ErrCodeInvalidPath {
			t.Errorf("Expected INVALID_PATH, got %v", err)
		}
	})

	t.Run("map root", func(t *testing.T) {
		got, err := ResolvePath("a.b[2]", map[string]any{
			"a": map[string]any{"b": []any{"x", "y"}},
		})
		if err != nil {
			t.Fatalf("ResolvePath() failed: %v", err)
		}
		if got != "y" {
			t.Errorf("Expected 'y', got %v", got)
		}
	})
}

func TestPathReuseAcrossRoots(t *testing.T) {
	path, err := ParsePath("Children[1].Label")
	if err != nil {
		t.Fatalf("ParsePath() failed: %v", err)
	}

	first := newParentWithOneChild(t)
	second := map[string]any{
		"Children": []any{map[string]any{"Label": "from map"}},
	}

	got, err := path.Resolve(first)
	if err != nil {
		t.Fatalf("Resolve(first) failed: %v", err)
	}
	if got != "only" {
		t.Errorf("Expected 'only', got %v", got)
	}

	got, err = path.Resolve(second)
	if err != nil {
		t.Fatalf("Resolve(second) failed: %v", err)
	}
	if got != "from map" {
		t.Errorf("Expected 'from map', got %v", got)
	}
}

func TestSetValueAtPath(t *testing.T) {
	t.Run("record property", func(t *testing.T) {
		parent := newParentWithOneChild(t)
		if err := SetValueAtPath(parent, "Children[1].Label", "renamed"); err != nil {
			t.Fatalf("SetValueAtPath() failed: %v", err)
		}
		got, err := ResolvePath("Children[1].Label", parent)
		if err != nil {
			t.Fatalf("ResolvePath() failed: %v", err)
		}
		if got != "renamed" {
			t.Errorf("Expected 'renamed', got %v", got)
		}
	})

	t.Run("sequence element", func(t *testing.T) {
		root := map[string]any{"items": []any{"a", "b"}}
		if err := SetValueAtPath(root, "items[2]", "z"); err != nil {
			t.Fatalf("SetValueAtPath() failed: %v", err)
		}
		if !reflect.DeepEqual(root["items"], []any{"a", "z"}) {
			t.Errorf("Expected second element replaced, got %#v", root["items"])
		}
	})

	t.Run("empty path", func(t *testing.T) {
		err := SetValueAtPath(map[string]any{}, "", 1)
		if err == nil {
			t.Fatal("Expected error for empty path write")
		}
		facetErr, ok := err.(*FacetError)
		if !ok || facetErr.Code != ErrCodeInvalidPathSyntax {
			t.Errorf("Expected INVALID_PATH_SYNTAX, got %v", err)
		}
	})

	t.Run("out of bounds element", func(t *testing.T) {
		root := map[string]any{"items": []any{"a"}}
		err := SetValueAtPath(root, "items[2]", "z")
		if err == nil {
			t.Fatal("Expected out-of-bounds error")
		}
		if !IsIndexOutOfBounds(err) {
			t.Errorf("Expected INDEX_OUT_OF_BOUNDS, got %v", err)
		}
	})

	t.Run("undeclared record property", func(t *testing.T) {
		parent := newParentWithOneChild(t)
		err := SetValueAtPath(parent, "Nope", 1)
		if err == nil {
			t.Fatal("Expected error for undeclared property write")
		}
		if !IsUnknownProperty(err) {
			t.Errorf("Expected UNKNOWN_PROPERTY, got %v", err)
		}
	})
}
