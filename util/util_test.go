package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeepCopyMap(t *testing.T) {
	orig := map[string]interface{}{
		"amount": 10,
		"items":  []interface{}{"a", "b"},
		"nested": map[string]interface{}{"key": "value"},
	}

	copied := DeepCopyMap(orig)
	assert.Equal(t, orig, copied)

	copied["items"].([]interface{})[0] = "z"
	copied["nested"].(map[string]interface{})["key"] = "changed"

	assert.Equal(t, "a", orig["items"].([]interface{})[0])
	assert.Equal(t, "value", orig["nested"].(map[string]interface{})["key"])

	assert.Nil(t, DeepCopyMap(nil))
}

func TestMergeMap(t *testing.T) {
	dst := MergeMap(nil, map[string]interface{}{"a": 1})
	assert.Equal(t, 1, dst["a"])

	dst = MergeMap(dst, map[string]interface{}{"a": 2, "b": "x"})
	assert.Equal(t, 2, dst["a"])
	assert.Equal(t, "x", dst["b"])
}
