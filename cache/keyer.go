package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"strconv"
	"strings"
)

// maxNormalizeDepth bounds recursion through nested collections.
const maxNormalizeDepth = 32

// Identity names a memoized function: its declaring package and its name.
type Identity struct {
	Scope string // import path of the declaring package
	Name  string // function name, including receiver for methods
}

// String returns scope.name.
func (id Identity) String() string {
	if id.Scope == "" {
		return id.Name
	}
	return id.Scope + "." + id.Name
}

// Call holds the arguments of one invocation.
type Call struct {
	Args   []any          // positional, in call order
	Kwargs map[string]any // keyword, order-independent
}

// Keyable lets a type provide its own stable key text. Implement it for
// types that are otherwise rejected by normalization, such as structs.
type Keyable interface {
	CacheKey() string
}

// Keyer generates deterministic cache keys from a function identity and its
// call arguments.
//
// Contract:
// - Determinism: same inputs must produce same key, regardless of map
// iteration order or keyword order.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	// Key generates a cache key for one invocation.
	Key(id Identity, call Call) (string, error)
}

// DefaultKeyer builds readable, filesystem-safe keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key generates a deterministic cache key.
// Format: <scope>.<name>.(<positional>).(<keyword>)
// where positional values keep call order and keyword entries are
// name=value sorted by name. Keys longer than MaxKeyLength are replaced by
// <scope>.<name>.sha256-<hex>, or sha256-<hex> alone when even that is too long.
func (k *DefaultKeyer) Key(id Identity, call Call) (string, error) {
	if id.Scope == "" || id.Name == "" {
		return "", fmt.Errorf("%w: function identity %q is incomplete", ErrInvalidKey, id.String())
	}

	positional := make([]string, len(call.Args))
	for i, arg := range call.Args {
		s, err := Normalize(arg)
		if err != nil {
			return "", fmt.Errorf("positional argument %d: %w", i, err)
		}
		positional[i] = s
	}

	names := make([]string, 0, len(call.Kwargs))
	for name := range call.Kwargs {
		if name == "" {
			return "", fmt.Errorf("%w: empty keyword name", ErrUnsupportedKeyArgument)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	keyword := make([]string, len(names))
	for i, name := range names {
		s, err := Normalize(call.Kwargs[name])
		if err != nil {
			return "", fmt.Errorf("keyword argument %q: %w", name, err)
		}
		keyword[i] = escapeValue(name) + "=" + s
	}

	prefix := escapeIdent(id.Scope) + "." + escapeIdent(id.Name)
	key := prefix + ".(" + strings.Join(positional, ",") + ").(" + strings.Join(keyword, ",") + ")"
	if len(key) > MaxKeyLength {
		sum := sha256.Sum256([]byte(key))
		digest := "sha256-" + hex.EncodeToString(sum[:])
		key = prefix + "." + digest
		if len(key) > MaxKeyLength {
			key = digest
		}
	}

	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// FuncIdentity derives the identity of fn from the runtime symbol table.
// Closures are named after their enclosing function (Outer.func1), which is
// stable for a given build of the program. It returns the zero Identity when
// fn is not a non-nil function.
func FuncIdentity(fn any) Identity {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return Identity{}
	}
	rf := runtime.FuncForPC(v.Pointer())
	if rf == nil {
		return Identity{}
	}
	return parseFuncName(rf.Name())
}

// methodValueSuffix marks the runtime symbol of a bound method value such as
// obj.Method. The symbol is shared by every receiver.
const methodValueSuffix = "-fm"

// IsMethodValue reports whether id names a bound method value. Its receiver
// is not part of the identity, so calls on different receivers would share
// cache keys.
func (id Identity) IsMethodValue() bool {
	return strings.HasSuffix(id.Name, methodValueSuffix)
}

// parseFuncName splits a runtime symbol like github.com/a/b.(*T).M into
// scope github.com/a/b and name (*T).M. The package name ends at the first
// dot after the last slash.
func parseFuncName(full string) Identity {
	slash := strings.LastIndex(full, "/")
	dot := strings.Index(full[slash+1:], ".")
	if dot < 0 {
		return Identity{Name: full}
	}
	dot += slash + 1
	return Identity{Scope: full[:dot], Name: full[dot+1:]}
}

// Normalize converts one argument into its key text.
//
// Scalars use their canonical form, strings are quoted and escaped, byte
// sequences are treated as text, sequences keep order and maps are sorted by
// key. Values with no stable textual form (structs, funcs, channels, complex
// numbers, unsafe pointers) fail with ErrUnsupportedKeyArgument instead of
// falling back to a representation that may differ between runs.
func Normalize(v any) (string, error) {
	var b strings.Builder
	if err := normalize(&b, reflect.ValueOf(v), 0); err != nil {
		return "", err
	}
	return b.String(), nil
}

var (
	typeType    = reflect.TypeOf((*reflect.Type)(nil)).Elem()
	keyableType = reflect.TypeOf((*Keyable)(nil)).Elem()
)

func normalize(b *strings.Builder, v reflect.Value, depth int) error {
	if depth > maxNormalizeDepth {
		return fmt.Errorf("%w: nesting deeper than %d", ErrUnsupportedKeyArgument, maxNormalizeDepth)
	}
	if !v.IsValid() {
		b.WriteString("null")
		return nil
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			b.WriteString("null")
			return nil
		}
	}

	t := v.Type()
	if t.Implements(typeType) && v.CanInterface() {
		b.WriteString(escapeValue(v.Interface().(reflect.Type).String()))
		return nil
	}
	if t.Implements(keyableType) && v.CanInterface() {
		b.WriteString(escapeValue(v.Interface().(Keyable).CacheKey()))
		return nil
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		return normalize(b, v.Elem(), depth+1)

	case reflect.Bool:
		b.WriteString(strconv.FormatBool(v.Bool()))

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.WriteString(strconv.FormatInt(v.Int(), 10))

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		b.WriteString(strconv.FormatUint(v.Uint(), 10))

	case reflect.Float32:
		b.WriteString(strconv.FormatFloat(v.Float(), 'g', -1, 32))

	case reflect.Float64:
		b.WriteString(strconv.FormatFloat(v.Float(), 'g', -1, 64))

	case reflect.String:
		writeQuoted(b, v.String())

	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			writeQuoted(b, string(byteSequence(v)))
			return nil
		}
		b.WriteByte('[')
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := normalize(b, v.Index(i), depth+1); err != nil {
				return err
			}
		}
		b.WriteByte(']')

	case reflect.Map:
		return normalizeMap(b, v, depth)

	case reflect.Struct:
		// struct{} is the member type of Go sets.
		if t.NumField() == 0 {
			b.WriteByte('-')
			return nil
		}
		return fmt.Errorf("%w: %s", ErrUnsupportedKeyArgument, t)

	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedKeyArgument, t)
	}
	return nil
}

func normalizeMap(b *strings.Builder, v reflect.Value, depth int) error {
	entries := make([]string, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		var kb, vb strings.Builder
		if err := normalize(&kb, iter.Key(), depth+1); err != nil {
			return err
		}
		if err := normalize(&vb, iter.Value(), depth+1); err != nil {
			return err
		}
		entries = append(entries, kb.String()+"="+vb.String())
	}
	// Map keys are unique, so sorting whole entries is deterministic.
	sort.Strings(entries)

	b.WriteByte('{')
	b.WriteString(strings.Join(entries, ","))
	b.WriteByte('}')
	return nil
}

func byteSequence(v reflect.Value) []byte {
	if v.Kind() == reflect.Slice {
		return v.Bytes()
	}
	out := make([]byte, v.Len())
	for i := range out {
		out[i] = byte(v.Index(i).Uint())
	}
	return out
}

func writeQuoted(b *strings.Builder, s string) {
	b.WriteByte('\'')
	b.WriteString(escapeValue(s))
	b.WriteByte('\'')
}

const upperHex = "0123456789ABCDEF"

// escapeValue percent-encodes every byte outside [A-Za-z0-9_-], so values
// never contain key delimiters or characters illegal in file names.
func escapeValue(s string) string {
	return escape(s, false)
}

// escapeIdent is escapeValue but keeps dots, which separate the package
// path segments and method receivers of an identity.
func escapeIdent(s string) string {
	return escape(s, true)
}

func escape(s string, keepDot bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9', c == '-', c == '_':
			b.WriteByte(c)
		case c == '.' && keepDot:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperHex[c>>4])
			b.WriteByte(upperHex[c&0x0f])
		}
	}
	return b.String()
}

// Ensure DefaultKeyer implements Keyer
var _ Keyer = (*DefaultKeyer)(nil)
