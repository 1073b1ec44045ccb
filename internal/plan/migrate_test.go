package plan

import (
	"encoding/json"
	"testing"
)

func v1Document(t *testing.T) map[string]any {
	t.Helper()
	raw := `{
		"phase": "plan",
		"source_text": "notes",
		"custom_extension": {"theme": "dark"},
		"plan_data": {
			"subjects": [{
				"id": "s1",
				"name": "Math",
				"topics": [
					{"id": "t1", "name": "Limits", "done": true},
					{"id": "t2", "name": "Series", "done": false},
					{"id": "t3", "name": "Proofs"}
				]
			}]
		}
	}`
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("fixture parse error: %v", err)
	}
	return doc
}

func topicStatuses(t *testing.T, doc map[string]any) []string {
	t.Helper()
	planData := doc["plan_data"].(map[string]any)
	subjects := planData["subjects"].([]any)
	topics := subjects[0].(map[string]any)["topics"].([]any)
	var out []string
	for _, raw := range topics {
		topic := raw.(map[string]any)
		status, _ := topic["status"].(string)
		out = append(out, status)
		if _, stillThere := topic["done"]; stillThere {
			t.Errorf("migrated topic still carries the v1 done flag: %v", topic)
		}
	}
	return out
}

func TestMigrateDocumentV1(t *testing.T) {
	doc := MigrateDocument(v1Document(t))

	if doc["schema_version"] != SchemaVersion {
		t.Errorf("expected schema_version %q, got %v", SchemaVersion, doc["schema_version"])
	}

	statuses := topicStatuses(t, doc)
	want := []string{"done", "pending", "pending"}
	for i, s := range statuses {
		if s != want[i] {
			t.Errorf("topic %d: status %q, want %q", i, s, want[i])
		}
	}
}

func TestMigrateDocumentPreservesUnknownFields(t *testing.T) {
	doc := MigrateDocument(v1Document(t))

	ext, ok := doc["custom_extension"].(map[string]any)
	if !ok || ext["theme"] != "dark" {
		t.Errorf("unknown field dropped during migration: %v", doc["custom_extension"])
	}
}

func TestMigrateDocumentIdempotent(t *testing.T) {
	first := MigrateDocument(v1Document(t))
	firstJSON, _ := json.Marshal(first)

	second := MigrateDocument(first)
	secondJSON, _ := json.Marshal(second)

	if string(firstJSON) != string(secondJSON) {
		t.Errorf("second migration changed the document:\n%s\n%s", firstJSON, secondJSON)
	}
}

func TestMigrateDocumentCurrentVersionUntouched(t *testing.T) {
	doc := map[string]any{
		"schema_version": SchemaVersion,
		"plan_data": map[string]any{
			"subjects": []any{map[string]any{
				"id": "s1",
				"topics": []any{
					// A current-version doc is returned as-is even when a
					// topic looks v1-shaped.
					map[string]any{"id": "t1", "done": true},
				},
			}},
		},
	}
	out := MigrateDocument(doc)
	topic := out["plan_data"].(map[string]any)["subjects"].([]any)[0].(map[string]any)["topics"].([]any)[0].(map[string]any)
	if _, migrated := topic["status"]; migrated {
		t.Errorf("current-version document was rewritten: %v", topic)
	}
}

func TestMigrateDocumentNil(t *testing.T) {
	if MigrateDocument(nil) != nil {
		t.Error("nil document should stay nil")
	}
}

func TestMigrateDocumentNoPlanData(t *testing.T) {
	doc := MigrateDocument(map[string]any{"phase": "upload"})
	if doc["schema_version"] != SchemaVersion {
		t.Errorf("expected version stamp even without plan data, got %v", doc["schema_version"])
	}
}
