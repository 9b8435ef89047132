package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// KeySeparator defines the delimiter used between query key segments.
const KeySeparator = "::"

// Query is a raw key made of an operation name and its arguments, the
// shape used when caching method calls.
type Query struct {
	Method string
	Args   []any
}

// NewQuery builds a Query from a method name and its arguments.
func NewQuery(method string, args ...any) Query {
	return Query{Method: method, Args: args}
}

// QueryNormalizer implements KeyNormalizer for Query using reflection.
//
// Maps are encoded with sorted keys, so two maps with the same content
// normalize identically regardless of iteration order. Slices and arrays
// keep element order. Structs contribute exported fields only. Pointers are
// dereferenced. Anything else falls back to JSON.
//
// Functions and channels are encoded by their code or channel pointer,
// which is stable only within one process. Closures made by the same
// function literal share a code pointer whatever they capture, so two
// such arguments normalize to the same key. Callers keying on closures
// must supply a distinguishing argument of their own.
type QueryNormalizer struct{}

// NewQueryNormalizer creates a normalizer for Query values.
func NewQueryNormalizer() QueryNormalizer { return QueryNormalizer{} }

// Normalize implements KeyNormalizer.
func (n QueryNormalizer) Normalize(q Query) CanonicalKey {
	if len(q.Args) == 0 {
		return NewCanonicalKey(q.Method)
	}

	parts := make([]string, 0, len(q.Args)+1)
	parts = append(parts, q.Method)
	for _, arg := range q.Args {
		parts = append(parts, n.encode(arg))
	}

	return NewCanonicalKey(strings.Join(parts, KeySeparator))
}

// MethodPrefix returns the canonical prefix shared by every Query whose
// leading components are method and args.
func (n QueryNormalizer) MethodPrefix(method string, args ...any) string {
	return n.Normalize(NewQuery(method, args...)).String()
}

func (n QueryNormalizer) encode(v any) string {
	if v == nil {
		return "nil"
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Func:
		return fmt.Sprintf("func:%p", v)
	case reflect.Chan:
		return fmt.Sprintf("chan:%p", v)
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return "nil"
		}
		return n.encode(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return "slice:nil"
		}
		return "slice" + n.encodeSeq(rv)
	case reflect.Array:
		return "array" + n.encodeSeq(rv)
	case reflect.Map:
		if rv.IsNil() {
			return "map:nil"
		}
		return n.encodeMap(rv)
	case reflect.Struct:
		return n.encodeStruct(rv)
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128,
		reflect.String:
		return fmt.Sprintf("%v", v)
	}

	return n.jsonFallback(v)
}

func (n QueryNormalizer) encodeSeq(rv reflect.Value) string {
	length := rv.Len()
	parts := make([]string, length)
	for i := 0; i < length; i++ {
		parts[i] = n.encode(rv.Index(i).Interface())
	}
	return fmt.Sprintf("[%d]:{%s}", length, strings.Join(parts, ","))
}

func (n QueryNormalizer) encodeMap(rv reflect.Value) string {
	type pair struct{ k, v string }

	pairs := make([]pair, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, pair{
			k: n.encode(iter.Key().Interface()),
			v: n.encode(iter.Value().Interface()),
		})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.k + "=" + p.v
	}
	return fmt.Sprintf("map[%d]:{%s}", len(parts), strings.Join(parts, ","))
}

func (n QueryNormalizer) encodeStruct(rv reflect.Value) string {
	rt := rv.Type()
	parts := make([]string, 0, rv.NumField())

	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		fv := rv.Field(i)
		if !fv.CanInterface() {
			continue
		}
		parts = append(parts, field.Name+":"+n.encode(fv.Interface()))
	}

	return fmt.Sprintf("struct:{%s}", strings.Join(parts, ","))
}

// jsonFallback never fails: unmarshalable values degrade to their type name.
func (n QueryNormalizer) jsonFallback(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "fallback:" + reflect.TypeOf(v).String()
	}
	return "json:" + string(data)
}

var _ KeyNormalizer[Query] = QueryNormalizer{}
