// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package convert

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeridianIDE/MeridianCore/services/model/ast"
)

// sampleModel builds a small acyclic document:
//
//	Model "shop"
//	  entities: Entity "Order", Entity "Customer"
//	  Order.fields: Property "total"
func sampleModel() *ast.Element {
	order := ast.NewElement("Entity", "Order")
	order.AddChild("fields", ast.NewElement("Property", "total").SetProperty("dataType", "number"))

	customer := ast.NewElement("Entity", "Customer")

	model := ast.NewElement("Model", "shop")
	model.SetProperty("version", 3)
	model.AddChild("entities", order)
	model.AddChild("entities", customer)
	return model
}

func TestConvert_Acyclic(t *testing.T) {
	c := New()
	res := c.Convert(sampleModel(), Options{IncludeIDs: true})

	assert.False(t, res.HasCircular)
	assert.Empty(t, res.CircularRefs)

	root, ok := res.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Model", root[KeyType])
	assert.Equal(t, "shop_Model", root[KeyID])
	assert.Equal(t, "shop", root["name"])
	assert.Equal(t, 3, root["version"])

	entities, ok := root["entities"].([]any)
	require.True(t, ok)
	require.Len(t, entities, 2)

	// The tree must be JSON-safe end to end.
	raw, err := json.Marshal(res.Data)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), KeyRef)
}

func TestConvert_Deterministic(t *testing.T) {
	c := New()
	model := sampleModel()

	first, err := json.Marshal(c.Convert(model, Options{IncludeIDs: true}).Data)
	require.NoError(t, err)
	second, err := json.Marshal(c.Convert(model, Options{IncludeIDs: true}).Data)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestConvert_Cycle(t *testing.T) {
	// A -> B (child), B -> A (reference) closes a cycle.
	a := ast.NewElement("Entity", "A")
	b := ast.NewElement("Entity", "B")
	a.AddChild("members", b)
	b.AddReference("owner", a)

	c := New()
	res := c.Convert(a, Options{IncludeIDs: true})

	assert.True(t, res.HasCircular)
	require.Len(t, res.CircularRefs, 1)
	assert.Equal(t, "B_Entity", res.CircularRefs[0].SourceID)
	assert.Equal(t, "A_Entity", res.CircularRefs[0].TargetID)
	assert.Equal(t, "owner", res.CircularRefs[0].Property)

	root := res.Data.(map[string]any)
	members := root["members"].([]any)
	inner := members[0].(map[string]any)
	owners := inner["owner"].([]any)
	marker, ok := owners[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "A_Entity", marker[KeyRef])

	// Conversion must terminate and the output must marshal.
	_, err := json.Marshal(res.Data)
	require.NoError(t, err)
}

func TestConvert_ChildEdgeCycle(t *testing.T) {
	// A -> B -> A through children only, no reference edges. The cycle
	// marker and HasCircular must agree.
	a := ast.NewElement("Entity", "A")
	b := ast.NewElement("Entity", "B")
	a.AddChild("members", b)
	b.AddChild("members", a)

	res := New().Convert(a, Options{IncludeIDs: true})

	assert.True(t, res.HasCircular)
	require.Len(t, res.CircularRefs, 1)
	assert.Equal(t, "B_Entity", res.CircularRefs[0].SourceID)
	assert.Equal(t, "A_Entity", res.CircularRefs[0].TargetID)
	assert.Equal(t, "members", res.CircularRefs[0].Property)

	root := res.Data.(map[string]any)
	inner := root["members"].([]any)[0].(map[string]any)
	marker, ok := inner["members"].([]any)[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "A_Entity", marker[KeyRef])
}

func TestConvert_EmbeddedNodeCycle(t *testing.T) {
	// A property value embedding a node already on the path must be
	// recorded too.
	a := ast.NewElement("Entity", "A")
	b := ast.NewElement("Entity", "B")
	a.AddChild("members", b)
	b.SetProperty("owner", ast.Node(a))

	res := New().Convert(a, Options{IncludeIDs: true})

	assert.True(t, res.HasCircular)
	require.Len(t, res.CircularRefs, 1)
	assert.Equal(t, "B_Entity", res.CircularRefs[0].SourceID)
	assert.Equal(t, "owner", res.CircularRefs[0].Property)
}

func TestConvert_SharedNodeIsNotACycle(t *testing.T) {
	// Two entities referencing the same type node share it without any
	// path-level cycle; both occurrences are inlined.
	shared := ast.NewElement("DataType", "string")
	a := ast.NewElement("Entity", "A").AddReference("type", shared)
	b := ast.NewElement("Entity", "B").AddReference("type", shared)
	root := ast.NewElement("Model", "m")
	root.AddChild("entities", a)
	root.AddChild("entities", b)

	res := New().Convert(root, Options{IncludeIDs: true})
	assert.False(t, res.HasCircular)
}

func TestConvert_MaxDepth(t *testing.T) {
	root := ast.NewElement("Entity", "root")
	current := root
	for i := 0; i < 10; i++ {
		child := ast.NewElement("Entity", "")
		current.AddChild("next", child)
		current = child
	}

	res := New().Convert(root, Options{MaxDepth: 3})

	node := res.Data.(map[string]any)
	node = node["next"].([]any)[0].(map[string]any)
	node = node["next"].([]any)[0].(map[string]any)
	truncated, ok := node["next"].([]any)[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, truncated[KeyTruncated])
}

func TestConvert_NilRoot(t *testing.T) {
	res := New().Convert(nil, Options{})
	assert.Nil(t, res.Data)
	assert.False(t, res.HasCircular)
}

func TestConvert_FieldFilters(t *testing.T) {
	node := ast.NewElement("Entity", "Order")
	node.SetProperty("visible", true)
	node.SetProperty("internal", "secret")
	node.SetProperty("id", "order-1")

	tests := []struct {
		name    string
		opts    Options
		want    []string
		notWant []string
	}{
		{
			name:    "allow list is exclusive",
			opts:    Options{IncludeFields: []string{"visible"}},
			want:    []string{"visible", "name", "id"},
			notWant: []string{"internal"},
		},
		{
			name:    "deny list removes fields",
			opts:    Options{ExcludeFields: []string{"internal"}},
			want:    []string{"visible", "name", "id"},
			notWant: []string{"internal"},
		},
		{
			name:    "identity fields survive a deny list",
			opts:    Options{ExcludeFields: []string{"name", "id"}},
			want:    []string{"name", "id"},
			notWant: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := New().Convert(node, tt.opts).Data.(map[string]any)
			for _, key := range tt.want {
				assert.Contains(t, out, key)
			}
			for _, key := range tt.notWant {
				assert.NotContains(t, out, key)
			}
		})
	}
}

func TestConvert_InternalFieldsStripped(t *testing.T) {
	node := ast.NewElement("Entity", "Order")
	node.SetProperty("payload", map[string]any{
		"$container": "backref",
		"kept":       1,
	})

	out := New().Convert(node, Options{}).Data.(map[string]any)
	payload := out["payload"].(map[string]any)
	assert.NotContains(t, payload, "$container")
	assert.Equal(t, 1, payload["kept"])
}

func TestConvert_CounterIDsForUnnamedNodes(t *testing.T) {
	root := ast.NewElement("Model", "")
	root.AddChild("items", ast.NewElement("Item", ""))

	out := New().Convert(root, Options{IncludeIDs: true}).Data.(map[string]any)
	assert.Equal(t, "node_0", out[KeyID])
	item := out["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "node_1", item[KeyID])
}
