package overlay

import (
	"reflect"
	"strings"
	"sync"
)

type fieldInfo struct {
	index   int
	name    string
	typ     reflect.Type
	passive bool
	leaf    bool
}

type structInfo struct {
	tuple  bool
	fields []fieldInfo
	// opaque holds the indices of fields carried through untouched.
	opaque []int
}

var structCache sync.Map // map[reflect.Type]*structInfo

func structInfoFor(t reflect.Type) *structInfo {
	if cached, ok := structCache.Load(t); ok {
		return cached.(*structInfo)
	}
	info := &structInfo{}
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Anonymous && t.Field(i).Type == tupleType {
			info.tuple = true
		}
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || field.Type == tupleType {
			info.opaque = append(info.opaque, i)
			continue
		}
		name, skip := jsonName(field)
		if skip {
			info.opaque = append(info.opaque, i)
			continue
		}
		passive, leaf := overlayTag(field.Tag.Get("overlay"))
		info.fields = append(info.fields, fieldInfo{
			index:   i,
			name:    name,
			typ:     field.Type,
			passive: passive,
			leaf:    leaf,
		})
	}
	actual, _ := structCache.LoadOrStore(t, info)
	return actual.(*structInfo)
}

func (s *structInfo) field(name string) (int, bool) {
	for i := range s.fields {
		if s.fields[i].name == name {
			return i, true
		}
	}
	for i := range s.fields {
		if strings.EqualFold(s.fields[i].name, name) {
			return i, true
		}
	}
	return 0, false
}

func jsonName(field reflect.StructField) (string, bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		name = field.Name
	}
	return name, false
}

func overlayTag(tag string) (passive, leaf bool) {
	for _, part := range strings.Split(tag, ",") {
		switch strings.TrimSpace(part) {
		case "passive":
			passive = true
		case "leaf":
			leaf = true
		}
	}
	return passive, leaf
}
