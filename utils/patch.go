package utils

import (
	"reflect"
	"strconv"
	"strings"
)

// UpdatesFromPtrDTO builds the partial-update map for a pointer DTO: only
// non-nil *fields appear, keyed by the `json` tag (before any comma options).
// The optional renames map translates json names to db columns when they
// diverge (e.g., {"cache_ttl_seconds": "ttl_seconds"}).
func UpdatesFromPtrDTO(dto any, renames map[string]string) map[string]any {
	res := make(map[string]any)
	v := reflect.ValueOf(dto)
	if v.Kind() != reflect.Ptr {
		return res
	}
	s := v.Elem()
	if s.Kind() != reflect.Struct {
		return res
	}
	t := s.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		fv := s.Field(i)
		if fv.Kind() != reflect.Ptr || fv.IsNil() {
			continue
		}
		jsonTag := sf.Tag.Get("json")
		if jsonTag == "" || jsonTag == "-" {
			continue
		}
		name := strings.Split(jsonTag, ",")[0]
		if renames != nil {
			if alt, ok := renames[name]; ok && alt != "" {
				name = alt
			}
		}
		res[name] = fv.Elem().Interface()
	}
	return res
}

// ParseIntDefault reads a non-negative integer from a query/path parameter,
// falling back to def on anything unparsable.
func ParseIntDefault(s string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && v >= 0 {
		return v
	}
	return def
}
