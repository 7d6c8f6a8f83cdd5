package openapi

import (
	"strings"
	"testing"
)

func loadTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return idx
}

func TestLoad_indexesEmbeddedDocument(t *testing.T) {
	idx := loadTestIndex(t)

	want := []string{
		"applyActions", "deleteTrip", "getReport", "getTrip",
		"listComments", "listTrips", "putTrip", "recomputeTrip", "validateLinks",
	}
	got := idx.AllOperationIDs()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("AllOperationIDs() = %v, want %v", got, want)
	}
	if idx.Len() != len(want) {
		t.Errorf("Len() = %d, want %d", idx.Len(), len(want))
	}
	if !strings.HasPrefix(string(idx.Raw()), "openapi: 3.0.3") {
		t.Error("Raw() should return the embedded document")
	}
}

func TestLoadData_invalidDocument(t *testing.T) {
	if _, err := LoadData([]byte("openapi: 3.0.3\ninfo: {}\n")); err == nil {
		t.Fatal("LoadData() with invalid document should return error")
	}
}

func TestGetOperation_mergesPathParameters(t *testing.T) {
	idx := loadTestIndex(t)

	op, ok := idx.GetOperation("applyActions")
	if !ok {
		t.Fatal("GetOperation(applyActions) not found")
	}
	if op.Method != "POST" {
		t.Errorf("Method = %q, want POST", op.Method)
	}
	if op.PathTemplate != "/v1/trips/{tripId}/actions" {
		t.Errorf("PathTemplate = %q", op.PathTemplate)
	}

	names := map[string]bool{}
	for _, p := range op.Parameters {
		names[p.Name] = true
	}
	if !names["tripId"] || !names["X-Idempotency-Key"] {
		t.Errorf("parameters = %v, want tripId and X-Idempotency-Key", names)
	}

	if _, ok := idx.GetOperation("nope"); ok {
		t.Error("GetOperation(nope) should not be found")
	}
}

func TestValidateRequest(t *testing.T) {
	idx := loadTestIndex(t)

	tests := []struct {
		name      string
		operation string
		body      string
		wantField string
	}{
		{"valid actions", "applyActions", `{"actions":[{"type":"vote_cast","vote_type":"shortlist","voter":"a","choice":"Alta"}]}`, ""},
		{"unknown action type", "applyActions", `{"actions":[{"type":"comment_add","body":"hi"},{"type":"teleport"}]}`, "actions.1.type"},
		{"unknown action field", "applyActions", `{"actions":[{"type":"comment_add","colour":"red"}]}`, "actions.0"},
		{"empty batch", "applyActions", `{"actions":[]}`, "actions"},
		{"null task owner allowed", "applyActions", `{"actions":[{"type":"task_patch","task_id":"t","owner":null}]}`, ""},
		{"missing spec", "putTrip", `{"decision":{}}`, "spec"},
		{"valid put", "putTrip", `{"spec":{},"decision":null}`, ""},
		{"bad recompute mode", "recomputeTrip", `{"mode":"sometimes"}`, "mode"},
		{"no body schema", "validateLinks", `{}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := idx.ValidateRequest(tt.operation, []byte(tt.body))
			if tt.wantField == "" {
				if len(errs) != 0 {
					t.Fatalf("ValidateRequest() = %v, want no errors", errs)
				}
				return
			}
			if len(errs) == 0 {
				t.Fatal("ValidateRequest() returned no errors")
			}
			if !strings.HasPrefix(errs[0].Field, tt.wantField) {
				t.Errorf("first error field = %q (%s), want %q", errs[0].Field, errs[0].Message, tt.wantField)
			}
		})
	}
}

func TestValidateRequest_unknownOperationAndBadJSON(t *testing.T) {
	idx := loadTestIndex(t)

	if errs := idx.ValidateRequest("nope", []byte(`{}`)); len(errs) != 1 {
		t.Errorf("unknown operation errors = %v, want 1", errs)
	}
	if errs := idx.ValidateRequest("putTrip", []byte(`{`)); len(errs) != 1 || errs[0].Message != "request body is not valid JSON" {
		t.Errorf("bad JSON errors = %v", errs)
	}
}
