package server

import (
	"github.com/morezero/textcipher/pkg/dispatcher"
	"github.com/morezero/textcipher/pkg/registry"
)

// openAPI3 types for describing the HTTP API.
type openAPI3Spec struct {
	OpenAPI string                      `json:"openapi"`
	Info    openAPI3Info                `json:"info"`
	Paths   map[string]openAPI3PathItem `json:"paths"`
}

type openAPI3Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

type openAPI3PathItem struct {
	Get  *openAPI3Operation `json:"get,omitempty"`
	Post *openAPI3Operation `json:"post,omitempty"`
}

type openAPI3Operation struct {
	Summary     string                      `json:"summary"`
	Description string                      `json:"description,omitempty"`
	OperationID string                      `json:"operationId"`
	RequestBody *openAPI3RequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]openAPI3Response `json:"responses"`
}

type openAPI3RequestBody struct {
	Content map[string]openAPI3MediaType `json:"content"`
}

type openAPI3Response struct {
	Description string                       `json:"description"`
	Content     map[string]openAPI3MediaType `json:"content,omitempty"`
}

type openAPI3MediaType struct {
	Schema map[string]interface{} `json:"schema,omitempty"`
}

// buildOpenAPISpec describes the transform routes; the algorithm enum comes
// from the registry listing, aliases included.
func buildOpenAPISpec(algs []registry.Descriptor) *openAPI3Spec {
	var names []interface{}
	for _, a := range algs {
		names = append(names, string(a.Algorithm))
		for _, alias := range a.Aliases {
			names = append(names, alias)
		}
	}

	requestSchema := map[string]interface{}{
		"type":     "object",
		"required": []string{"text", "algorithm"},
		"properties": map[string]interface{}{
			"text":      map[string]interface{}{"type": "string"},
			"algorithm": map[string]interface{}{"type": "string", "enum": names},
			"options": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"shiftAmount": map[string]interface{}{"type": "integer"},
					"key":         map[string]interface{}{"type": "string"},
				},
			},
		},
	}

	transformOp := func(dir registry.Direction, field string) *openAPI3Operation {
		return &openAPI3Operation{
			Summary:     string(dir),
			OperationID: string(dir),
			RequestBody: &openAPI3RequestBody{
				Content: map[string]openAPI3MediaType{"application/json": {Schema: requestSchema}},
			},
			Responses: map[string]openAPI3Response{
				"200": jsonResponse("Success", map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"success":   map[string]interface{}{"type": "boolean"},
						field:       map[string]interface{}{"type": "string"},
						"algorithm": map[string]interface{}{"type": "string"},
						"keyUsed":   map[string]interface{}{"type": "string", "enum": []string{"provided", "default"}},
					},
				}),
				"400": jsonResponse("ValidationError or UnsupportedOperation", errorSchema()),
				"422": jsonResponse("MalformedInput or DecryptionFailed", errorSchema()),
				"413": jsonResponse("PayloadTooLarge (not a transform result)", errorSchema()),
			},
		}
	}

	encode := &openAPI3PathItem{Post: transformOp(registry.Encode, "encodedText")}
	decode := &openAPI3PathItem{Post: transformOp(registry.Decode, "decodedText")}

	return &openAPI3Spec{
		OpenAPI: "3.0.0",
		Info: openAPI3Info{
			Title:       "textcipher",
			Description: "Text encode and decode API",
			Version:     dispatcher.APIVersion,
		},
		Paths: map[string]openAPI3PathItem{
			"/api/encode":  *encode,
			"/api/encrypt": *encode,
			"/api/decode":  *decode,
			"/api/decrypt": *decode,
			"/api/health": {Get: &openAPI3Operation{
				Summary:     "health",
				OperationID: "health",
				Responses:   map[string]openAPI3Response{"200": jsonResponse("Service is running", nil)},
			}},
			"/api/algorithms": {Get: &openAPI3Operation{
				Summary:     "algorithms",
				OperationID: "algorithms",
				Responses:   map[string]openAPI3Response{"200": jsonResponse("Registered algorithms", nil)},
			}},
		},
	}
}

func jsonResponse(desc string, schema map[string]interface{}) openAPI3Response {
	if schema == nil {
		schema = map[string]interface{}{"type": "object"}
	}
	return openAPI3Response{
		Description: desc,
		Content:     map[string]openAPI3MediaType{"application/json": {Schema: schema}},
	}
}

func errorSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"success": map[string]interface{}{"type": "boolean"},
			"error":   map[string]interface{}{"type": "string"},
		},
	}
}
