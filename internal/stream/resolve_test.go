package stream

import (
	"encoding/json"
	"testing"

	"github.com/buger/jsonparser"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"object", `{"a": 1, "b": "x"}`, `{"a":1,"b":"x"}`},
		{"double encoded object", `"{\"summary\":\"x\"}"`, `{"summary":"x"}`},
		{"double encoded number", `"42"`, `42`},
		{"literal string", `"just text"`, `"just text"`},
		{"blank string", `"  "`, `"  "`},
		{"missing", ``, `null`},
		{"null", `null`, `null`},
		{"array", `[1, "a", {"k": true}]`, `[1,"a",{"k":true}]`},
		{"keeps member order", `{"z":1,"a":2,"m":3}`, `{"z":1,"a":2,"m":3}`},
		{"unescapes unicode", `{"s":"\u3042"}`, `{"s":"あ"}`},
		{"no html escaping", `{"s":"<b>&"}`, `{"s":"<b>&"}`},
		{"lone surrogate", `{"k":"\ud800"}`, "{\"k\":\"\uFFFD\"}"},
		{"escaped double encoding", `"{\"s\":\"line\\nbreak\"}"`, `{"s":"line\nbreak"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(json.RawMessage(tt.raw))
			if string(got) != tt.want {
				t.Errorf("Resolve(%s) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestResolveIsIdempotentOnObjects(t *testing.T) {
	once := Resolve(json.RawMessage(`"{\"a\":[1,2]}"`))
	twice := Resolve(once)
	if string(once) != string(twice) {
		t.Errorf("once = %s, twice = %s", once, twice)
	}
}

func TestKind(t *testing.T) {
	tests := map[string]jsonparser.ValueType{
		`{}`:    jsonparser.Object,
		`[]`:    jsonparser.Array,
		`"s"`:   jsonparser.String,
		`1.5`:   jsonparser.Number,
		`true`:  jsonparser.Boolean,
		`null`:  jsonparser.Null,
		`{"a":`: jsonparser.Unknown,
	}
	for raw, want := range tests {
		if got := Kind(json.RawMessage(raw)); got != want {
			t.Errorf("Kind(%s) = %v, want %v", raw, got, want)
		}
	}
}

func TestObjectStrings(t *testing.T) {
	values, ok := objectStrings(json.RawMessage(`{"b":"first","n":3,"o":{"x":"y"},"a":"second","t":true}`))
	if !ok {
		t.Fatal("ok = false for object")
	}
	if len(values) != 2 || values[0] != "first" || values[1] != "second" {
		t.Errorf("values = %q, want [first second]", values)
	}

	if _, ok := objectStrings(json.RawMessage(`["a"]`)); ok {
		t.Error("ok = true for array")
	}
}

func TestLookupNumber(t *testing.T) {
	v := json.RawMessage(`{"a":4,"b":"4","c":null,"d":2.5}`)
	if got := lookupNumber(v, "a"); got != 4 {
		t.Errorf("a = %v, want 4", got)
	}
	if got := lookupNumber(v, "b"); got != 0 {
		t.Errorf("b = %v, want 0", got)
	}
	if got := lookupNumber(v, "c"); got != 0 {
		t.Errorf("c = %v, want 0", got)
	}
	if got := lookupNumber(v, "d"); got != 2.5 {
		t.Errorf("d = %v, want 2.5", got)
	}
	if got := lookupNumber(v, "missing"); got != 0 {
		t.Errorf("missing = %v, want 0", got)
	}
}

func TestMembers(t *testing.T) {
	got := Members(json.RawMessage(`{"persona":"student","score":3,"tags":["a"]}`))
	want := []struct{ key, value string }{
		{"persona", `"student"`},
		{"score", `3`},
		{"tags", `["a"]`},
	}
	if len(got) != len(want) {
		t.Fatalf("members = %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Key != w.key || string(got[i].Value) != w.value {
			t.Errorf("members[%d] = %s:%s, want %s:%s", i, got[i].Key, got[i].Value, w.key, w.value)
		}
	}

	if Members(json.RawMessage(`"text"`)) != nil {
		t.Error("members of a string should be nil")
	}
}

func TestRepeatedKeyLookupTakesFirst(t *testing.T) {
	v := json.RawMessage(`{"review":"first","review":"second"}`)
	if got, _ := lookupString(v, "review"); got != "first" {
		t.Errorf("review = %q, want %q", got, "first")
	}
	if got := string(Resolve(v)); got != `{"review":"first","review":"second"}` {
		t.Errorf("canonical = %s, want both members kept", got)
	}
}
