package cache

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

var testID = Identity{Scope: "example.com/pkg", Name: "Add"}

type point struct{ X, Y int }

func (p point) CacheKey() string { return fmt.Sprintf("%d-%d", p.X, p.Y) }

func mustKey(t *testing.T, id Identity, call Call) string {
	t.Helper()
	key, err := NewDefaultKeyer().Key(id, call)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	return key
}

func TestKeyer_KeyFormat(t *testing.T) {
	key := mustKey(t, testID, Call{
		Args:   []any{2, 3},
		Kwargs: map[string]any{"y": "a b", "x": 1.5},
	})

	want := "example.com%2Fpkg.Add.(2,3).(x=1.5,y='a%20b')"
	if key != want {
		t.Errorf("Key() = %q, want %q", key, want)
	}
}

func TestKeyer_SameInputsSameKey(t *testing.T) {
	call := Call{
		Args:   []any{"query", []int{1, 2}, map[string]bool{"a": true}},
		Kwargs: map[string]any{"limit": 10},
	}

	first := mustKey(t, testID, call)
	for i := 0; i < 5; i++ {
		if got := mustKey(t, testID, call); got != first {
			t.Errorf("Key should be consistent across calls:\n  first=%s\n  got=%s", first, got)
		}
	}
}

func TestKeyer_KeywordOrderIndependent(t *testing.T) {
	kw1 := map[string]any{}
	kw1["x"] = 1
	kw1["y"] = 2
	kw2 := map[string]any{}
	kw2["y"] = 2
	kw2["x"] = 1

	key1 := mustKey(t, testID, Call{Kwargs: kw1})
	key2 := mustKey(t, testID, Call{Kwargs: kw2})
	if key1 != key2 {
		t.Errorf("Keys should be equal for reordered keywords:\n  key1=%s\n  key2=%s", key1, key2)
	}
	if !strings.HasSuffix(key1, ".(x=1,y=2)") {
		t.Errorf("keywords should be sorted by name, got %q", key1)
	}
}

func TestKeyer_DistinctArgumentsDistinctKeys(t *testing.T) {
	calls := []Call{
		{},
		{Args: []any{1}},
		{Args: []any{2}},
		{Args: []any{"1"}},
		{Args: []any{1, 2}},
		{Args: []any{[]int{1, 2}}},
		{Args: []any{[]int{2, 1}}},
		{Args: []any{[]int{12}}},
		{Args: []any{[][]int{{1}, {2}}}},
		{Args: []any{[][]int{{1, 2}}}},
		{Args: []any{"a,b"}},
		{Args: []any{[]string{"a", "b"}}},
		{Args: []any{nil}},
		{Args: []any{"null"}},
		{Args: []any{true}},
		{Args: []any{false}},
		{Args: []any{1.5}},
		{Args: []any{map[string]int{"a": 1}}},
		{Args: []any{map[string]int{"a": 2}}},
		{Args: []any{"x=1"}},
		{Kwargs: map[string]any{"x": 1}},
		{Kwargs: map[string]any{"y": 1}},
		{Args: []any{1}, Kwargs: map[string]any{"x": 1}},
	}

	seen := make(map[string]int)
	for i, call := range calls {
		key := mustKey(t, testID, call)
		if j, ok := seen[key]; ok {
			t.Errorf("calls %d and %d share key %q", j, i, key)
		}
		seen[key] = i
	}
}

func TestKeyer_DifferentFunctionsDifferentKeys(t *testing.T) {
	call := Call{Args: []any{1}}

	key1 := mustKey(t, Identity{Scope: "example.com/pkg", Name: "A"}, call)
	key2 := mustKey(t, Identity{Scope: "example.com/pkg", Name: "B"}, call)
	key3 := mustKey(t, Identity{Scope: "example.com/other", Name: "A"}, call)

	if key1 == key2 || key1 == key3 || key2 == key3 {
		t.Errorf("keys should differ per function: %q %q %q", key1, key2, key3)
	}
}

func TestKeyer_FilesystemSafe(t *testing.T) {
	key := mustKey(t, Identity{Scope: "example.com/a/b", Name: "(*T).Get"}, Call{
		Args: []any{`C:\dir/file?.txt`, "*<>|\"", "tab\there", "ünï"},
	})

	if strings.ContainsAny(key, `/\:*?"<>|`) {
		t.Errorf("key contains reserved characters: %q", key)
	}
	for i := 0; i < len(key); i++ {
		if key[i] < 0x20 || key[i] >= 0x7f {
			t.Fatalf("key contains non-printable byte %#x: %q", key[i], key)
		}
	}
	if err := ValidateKey(key); err != nil {
		t.Errorf("ValidateKey() = %v", err)
	}
}

func TestKeyer_LongKeysAreHashed(t *testing.T) {
	long := strings.Repeat("a", 300)

	key := mustKey(t, testID, Call{Args: []any{long}})
	if !strings.HasPrefix(key, "example.com%2Fpkg.Add.sha256-") {
		t.Errorf("long key should keep the identity prefix, got %q", key)
	}
	if len(key) > MaxKeyLength {
		t.Errorf("len(key) = %d, want <= %d", len(key), MaxKeyLength)
	}

	other := mustKey(t, testID, Call{Args: []any{long + "b"}})
	if key == other {
		t.Error("hashed keys should differ for different arguments")
	}

	key = mustKey(t, Identity{Scope: strings.Repeat("s", 300), Name: "F"}, Call{})
	if !strings.HasPrefix(key, "sha256-") || len(key) != len("sha256-")+64 {
		t.Errorf("oversized identity should hash the whole key, got %q", key)
	}
}

func TestKeyer_UnsupportedArguments(t *testing.T) {
	tests := []struct {
		name string
		call Call
	}{
		{"struct", Call{Args: []any{struct{ A int }{1}}}},
		{"struct pointer", Call{Args: []any{&struct{ A int }{1}}}},
		{"func", Call{Args: []any{func() {}}}},
		{"channel", Call{Args: []any{make(chan int)}}},
		{"complex", Call{Args: []any{complex(1, 2)}}},
		{"nested in slice", Call{Args: []any{[]any{1, struct{}{}, func() {}}}}},
		{"nested in map", Call{Args: []any{map[string]any{"k": make(chan int)}}}},
		{"keyword", Call{Kwargs: map[string]any{"cb": func() {}}}},
		{"empty keyword name", Call{Kwargs: map[string]any{"": 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDefaultKeyer().Key(testID, tt.call)
			if !errors.Is(err, ErrUnsupportedKeyArgument) {
				t.Errorf("Key() error = %v, want ErrUnsupportedKeyArgument", err)
			}
		})
	}
}

func TestKeyer_IncompleteIdentity(t *testing.T) {
	_, err := NewDefaultKeyer().Key(Identity{Name: "F"}, Call{})
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Key() error = %v, want ErrInvalidKey", err)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"nil", nil, "null"},
		{"nil pointer", (*int)(nil), "null"},
		{"int", -42, "-42"},
		{"uint8", uint8(7), "7"},
		{"float", 1.25, "1.25"},
		{"float32", float32(0.5), "0.5"},
		{"bool", true, "true"},
		{"string", "hello world", "'hello%20world'"},
		{"empty string", "", "''"},
		{"bytes as text", []byte("hi"), "'hi'"},
		{"byte array as text", [2]byte{'h', 'i'}, "'hi'"},
		{"pointer to int", func() *int { v := 3; return &v }(), "3"},
		{"slice", []string{"a", "b"}, "['a','b']"},
		{"nil slice", []int(nil), "[]"},
		{"array", [3]int{1, 2, 3}, "[1,2,3]"},
		{"mixed slice", []any{1, "x", nil}, "[1,'x',null]"},
		{"map sorted", map[string]int{"b": 2, "a": 1}, "{'a'=1,'b'=2}"},
		{"set", map[string]struct{}{"y": {}, "x": {}}, "{'x'=-,'y'=-}"},
		{"type", reflect.TypeOf([]string{}), "%5B%5Dstring"},
		{"keyable", point{X: 1, Y: 2}, "1-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.value)
			if err != nil {
				t.Fatalf("Normalize(%v) error = %v", tt.value, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestNormalize_DelimitersEscaped(t *testing.T) {
	got, err := Normalize("a,b=c.d'e(f)[g]{h}")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(got, "'"), "'")
	if strings.ContainsAny(inner, ",=.'()[]{}") {
		t.Errorf("delimiters should be escaped, got %q", got)
	}
}

func TestParseFuncName(t *testing.T) {
	tests := []struct {
		full string
		want Identity
	}{
		{"github.com/a/b.Add", Identity{Scope: "github.com/a/b", Name: "Add"}},
		{"github.com/a/b.(*T).Get", Identity{Scope: "github.com/a/b", Name: "(*T).Get"}},
		{"github.com/a/b.Outer.func1", Identity{Scope: "github.com/a/b", Name: "Outer.func1"}},
		{"gopkg.in/yaml.v3.Marshal", Identity{Scope: "gopkg.in/yaml", Name: "v3.Marshal"}},
		{"main.run", Identity{Scope: "main", Name: "run"}},
		{"noscope", Identity{Name: "noscope"}},
	}

	for _, tt := range tests {
		t.Run(tt.full, func(t *testing.T) {
			if got := parseFuncName(tt.full); got != tt.want {
				t.Errorf("parseFuncName(%q) = %+v, want %+v", tt.full, got, tt.want)
			}
		})
	}
}

func TestFuncIdentity(t *testing.T) {
	id := FuncIdentity(ValidateKey)
	want := Identity{Scope: "github.com/jonwraymond/diskmemo/cache", Name: "ValidateKey"}
	if id != want {
		t.Errorf("FuncIdentity(ValidateKey) = %+v, want %+v", id, want)
	}

	if got := FuncIdentity(42); got != (Identity{}) {
		t.Errorf("FuncIdentity(42) = %+v, want zero", got)
	}
	var nilFn func()
	if got := FuncIdentity(nilFn); got != (Identity{}) {
		t.Errorf("FuncIdentity(nil func) = %+v, want zero", got)
	}
}

func TestIdentity_IsMethodValue(t *testing.T) {
	tests := []struct {
		name string
		fn   any
		want bool
	}{
		{"function", ValidateKey, false},
		{"method expression", point.CacheKey, false},
		{"method value", point{X: 1}.CacheKey, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := FuncIdentity(tt.fn)
			if got := id.IsMethodValue(); got != tt.want {
				t.Errorf("FuncIdentity(%s).IsMethodValue() = %v, want %v", id, got, tt.want)
			}
		})
	}
}
