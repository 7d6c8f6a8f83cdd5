// Package openapi loads the service's embedded API document, indexes its
// operations by operationId, and validates request bodies against the
// operation schemas.
package openapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var embedded []byte

// Operation holds a resolved API operation.
type Operation struct {
	OperationID  string
	Method       string
	PathTemplate string
	Parameters   []*openapi3.Parameter
	RequestBody  *openapi3.RequestBody
}

// ValidationError describes a schema validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Index is an in-memory index of the API document's operations keyed by
// operationId.
type Index struct {
	raw        []byte
	doc        *openapi3.T
	operations map[string]Operation
}

// Load parses and indexes the embedded API document.
func Load() (*Index, error) {
	return LoadData(embedded)
}

// LoadData parses, validates, and indexes an API document.
func LoadData(data []byte) (*Index, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("openapi: loading document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("openapi: validating document: %w", err)
	}

	idx := &Index{
		raw:        data,
		doc:        doc,
		operations: make(map[string]Operation),
	}

	for path, pathItem := range doc.Paths.Map() {
		for method, op := range pathItem.Operations() {
			if op.OperationID == "" {
				continue
			}

			// Merge path-level and operation-level parameters.
			params := make([]*openapi3.Parameter, 0)
			for _, ref := range pathItem.Parameters {
				if ref.Value != nil {
					params = append(params, ref.Value)
				}
			}
			for _, ref := range op.Parameters {
				if ref.Value != nil {
					params = append(params, ref.Value)
				}
			}

			var reqBody *openapi3.RequestBody
			if op.RequestBody != nil && op.RequestBody.Value != nil {
				reqBody = op.RequestBody.Value
			}

			idx.operations[op.OperationID] = Operation{
				OperationID:  op.OperationID,
				Method:       method,
				PathTemplate: path,
				Parameters:   params,
				RequestBody:  reqBody,
			}
		}
	}

	return idx, nil
}

// Raw returns the document as loaded.
func (idx *Index) Raw() []byte {
	return idx.raw
}

// Len returns the number of indexed operations.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.operations)
}

// GetOperation returns the indexed operation for the given operation ID.
func (idx *Index) GetOperation(operationID string) (Operation, bool) {
	op, ok := idx.operations[operationID]
	return op, ok
}

// AllOperationIDs returns all operation IDs, sorted.
func (idx *Index) AllOperationIDs() []string {
	ids := make([]string, 0, len(idx.operations))
	for id := range idx.operations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ValidateRequest validates a raw JSON request body against the operation's
// request schema. Returns nil if valid, or a list of validation errors.
func (idx *Index) ValidateRequest(operationID string, body []byte) []ValidationError {
	op, ok := idx.operations[operationID]
	if !ok {
		return []ValidationError{{Message: fmt.Sprintf("operation %s not found", operationID)}}
	}

	if op.RequestBody == nil {
		return nil
	}

	ct := op.RequestBody.Content.Get("application/json")
	if ct == nil || ct.Schema == nil || ct.Schema.Value == nil {
		return nil
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return []ValidationError{{Message: "request body is not valid JSON"}}
	}

	err := ct.Schema.Value.VisitJSON(value, openapi3.MultiErrors())
	if err == nil {
		return nil
	}
	return flatten(err)
}

// flatten converts kin-openapi's nested errors into field errors ordered by
// field path.
func flatten(err error) []ValidationError {
	var out []ValidationError
	var walk func(error)
	walk = func(err error) {
		var multi openapi3.MultiError
		if errors.As(err, &multi) {
			for _, e := range multi {
				walk(e)
			}
			return
		}
		var schemaErr *openapi3.SchemaError
		if errors.As(err, &schemaErr) {
			out = append(out, ValidationError{
				Field:   strings.Join(schemaErr.JSONPointer(), "."),
				Message: schemaErr.Reason,
			})
			return
		}
		out = append(out, ValidationError{Message: err.Error()})
	}
	walk(err)

	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}
