package core

import (
	"bytes"
	"encoding/gob"
	"testing"
)

func TestMetadataFromAny(t *testing.T) {
	in := map[string]any{
		"title": "hello",
		"count": float64(3),
		"score": 0.5,
		"tags":  []any{"a", true, nil},
	}
	m, err := MetadataFromAny(in)
	if err != nil {
		t.Fatalf("MetadataFromAny failed: %v", err)
	}
	obj, ok := m.(Object)
	if !ok {
		t.Fatalf("expected Object, got %T", m)
	}
	if obj["title"] != Text("hello") {
		t.Errorf("title = %v; want Text(hello)", obj["title"])
	}
	if obj["count"] != Integer(3) {
		t.Errorf("count = %#v; want Integer(3)", obj["count"])
	}
	if obj["score"] != Float(0.5) {
		t.Errorf("score = %#v; want Float(0.5)", obj["score"])
	}
	tags := obj["tags"].(List)
	if len(tags) != 3 || tags[1] != Boolean(true) || tags[2].Kind() != KindNull {
		t.Errorf("unexpected tags: %#v", tags)
	}
	if got := obj.Keys(); len(got) != 4 || got[0] != "count" {
		t.Errorf("Keys() = %v", got)
	}

	if _, err := MetadataFromAny(struct{}{}); err == nil {
		t.Error("expected error for unsupported type, got none")
	}
}

func TestMetadataRoundTripAny(t *testing.T) {
	m := Object{"a": List{Integer(1), Text("x")}, "b": Bytes("raw")}
	back, err := MetadataFromAny(ToAny(m))
	if err != nil {
		t.Fatalf("MetadataFromAny failed: %v", err)
	}
	if !EqualMetadata(m, back) {
		t.Errorf("round trip mismatch: %#v vs %#v", m, back)
	}
}

func TestMetadataGob(t *testing.T) {
	type holder struct {
		Items []Metadata
	}
	in := holder{Items: []Metadata{Text("t"), Integer(7), nil, Object{"k": Float(1.5)}}}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(in); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	var out holder
	if err := gob.NewDecoder(&buf).Decode(&out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(out.Items) != len(in.Items) {
		t.Fatalf("got %d items; want %d", len(out.Items), len(in.Items))
	}
	for i := range in.Items {
		if !EqualMetadata(in.Items[i], out.Items[i]) {
			t.Errorf("item %d: got %#v; want %#v", i, out.Items[i], in.Items[i])
		}
	}
}

func TestEqualMetadata(t *testing.T) {
	if !EqualMetadata(nil, Null{}) {
		t.Error("nil and Null should be equal")
	}
	if EqualMetadata(Integer(1), Float(1)) {
		t.Error("Integer and Float must differ")
	}
	if EqualMetadata(Object{"a": Integer(1)}, Object{"a": Integer(2)}) {
		t.Error("objects with different values must differ")
	}
}
