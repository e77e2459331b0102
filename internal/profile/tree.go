package profile

import (
	"encoding/json"
	"fmt"
	"strings"
)

type nodeKind int

const (
	kindScalar nodeKind = iota
	kindArray
	kindObject
)

// node is a JSON value that remembers object key order, which
// map[string]any does not.
type node struct {
	kind     nodeKind
	text     string
	isString bool
	items    []*node
	keys     []string
	values   []*node
}

// lookup returns the first present, non-null value among keys, compared
// case-insensitively.
func (n *node) lookup(keys ...string) *node {
	if n == nil || n.kind != kindObject {
		return nil
	}
	for _, want := range keys {
		for i, k := range n.keys {
			if strings.EqualFold(k, want) && n.values[i] != nil {
				return n.values[i]
			}
		}
	}
	return nil
}

func readNode(dec *json.Decoder) (*node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return fromToken(dec, tok)
}

func fromToken(dec *json.Decoder, tok json.Token) (*node, error) {
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			obj := &node{kind: kindObject}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, _ := keyTok.(string)
				val, err := readNode(dec)
				if err != nil {
					return nil, err
				}
				obj.keys = append(obj.keys, key)
				obj.values = append(obj.values, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := &node{kind: kindArray}
			for dec.More() {
				item, err := readNode(dec)
				if err != nil {
					return nil, err
				}
				if item != nil {
					arr.items = append(arr.items, item)
				}
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", v)
	case string:
		return &node{kind: kindScalar, text: v, isString: true}, nil
	case json.Number:
		return &node{kind: kindScalar, text: v.String()}, nil
	case bool:
		if v {
			return &node{kind: kindScalar, text: "true"}, nil
		}
		return &node{kind: kindScalar, text: "false"}, nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}
