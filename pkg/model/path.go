package model

import "strings"

// SplitPath splits a dotted settings path ("mysql.server_root_password").
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// GetPath walks nested maps following path and returns the value found, or
// nil when any segment is missing. Only map traversal is supported; both the
// JSON (map[string]interface{}) and yaml.v2 (map[interface{}]interface{})
// shapes are understood.
func GetPath(doc map[string]interface{}, path []string) interface{} {
	var cur interface{} = doc
	for _, key := range path {
		switch m := cur.(type) {
		case map[string]interface{}:
			v, ok := m[key]
			if !ok {
				return nil
			}
			cur = v
		case map[interface{}]interface{}:
			v, ok := m[key]
			if !ok {
				return nil
			}
			cur = v
		default:
			return nil
		}
	}
	return cur
}

// Setting returns the value at the dotted path in the node's attributes.
func (n *Node) Setting(path string) interface{} {
	if n == nil || path == "" {
		return nil
	}
	return GetPath(n.Attributes, SplitPath(path))
}
