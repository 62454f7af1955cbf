package util

import (
	"github.com/mohae/deepcopy"
	"github.com/project-flogo/core/data/coerce"
)

func DeepCopy(data interface{}) interface{} {
	return deepcopy.Copy(data)
}

// DeepCopyMap copies a data map so that the copy shares no mutable state
// with the original. A nil map copies to nil.
func DeepCopyMap(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}
	copiedData := deepcopy.Copy(data)
	if copiedMap, ok := copiedData.(map[string]interface{}); ok {
		return copiedMap
	}
	copiedMap, _ := coerce.ToObject(copiedData)
	return copiedMap
}

// MergeMap copies every value of src into dst, creating dst when needed
func MergeMap(dst, src map[string]interface{}) map[string]interface{} {
	if dst == nil {
		dst = make(map[string]interface{}, len(src))
	}
	for name, value := range DeepCopyMap(src) {
		dst[name] = value
	}
	return dst
}
