package tools

import "strings"

func PtrOf[T any](v T) *T {
	return &v
}

// GetNested walks a tree of map[string]any nodes along a dot separated path.
//
// The second return value reports whether the path could be traversed up to
// its final segment. In that case the segment's value is returned, and nil
// when the final key is absent. A missing intermediate key or a non-map node
// before the final segment yields (nil, false).
func GetNested(tree any, path string) (any, bool) {
	keys := strings.Split(path, ".")
	var cur any = tree
	for i, key := range keys {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		value, present := node[key]
		if !present && i < len(keys)-1 {
			return nil, false
		}
		cur = value
	}
	return cur, true
}
