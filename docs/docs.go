// Package docs registers the OpenAPI description of the HTTP API with swag.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/deals/{dealId}/documents/ingest": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Ingestion"],
                "summary": "Ingest a deal document",
                "parameters": [
                    {"type": "string", "description": "Deal ID", "name": "dealId", "in": "path", "required": true},
                    {"description": "Document handle", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.IngestRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/domain.IngestionJob"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "503": {"description": "Queue unavailable", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/deals/{dealId}/jobs": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Ingestion"],
                "summary": "List ingestion jobs of a deal",
                "parameters": [
                    {"type": "string", "description": "Deal ID", "name": "dealId", "in": "path", "required": true},
                    {"type": "integer", "description": "Max jobs (default 50)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/domain.IngestionJob"}}}
                }
            }
        },
        "/jobs/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Ingestion"],
                "summary": "Get an ingestion job",
                "parameters": [
                    {"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.IngestionJob"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/deals/search": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Search"],
                "summary": "Search deal documents",
                "parameters": [
                    {"type": "string", "description": "Free-text query (empty is allowed)", "name": "query", "in": "query", "required": false},
                    {"type": "string", "description": "Restrict to one deal", "name": "dealId", "in": "query"},
                    {"type": "integer", "description": "Number of neighbours (default 5)", "name": "maxResults", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"type": "string"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/search": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Search"],
                "summary": "Search with details",
                "parameters": [
                    {"description": "Search query", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.SearchQuery"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.SearchResult"}}
                }
            }
        },
        "/debug/embeddings": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Debug"],
                "summary": "Vector store summary",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.EmbeddingsDebugResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.IngestionJob": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "parent_id": {"type": "string"},
                "document_key": {"type": "string"},
                "state": {"type": "string", "enum": ["PENDING", "PARSING", "SPLITTING", "EMBEDDING", "STORING", "STORED", "FAILED"]},
                "error": {"type": "string"},
                "segments": {"type": "integer"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"},
                "completed_at": {"type": "string"}
            }
        },
        "domain.SearchQuery": {
            "type": "object",
            "properties": {
                "query": {"type": "string"},
                "parent_id": {"type": "string"},
                "max_results": {"type": "integer"}
            }
        },
        "domain.SearchResult": {
            "type": "object",
            "properties": {
                "query": {"type": "string"},
                "parent_id": {"type": "string"},
                "texts": {"type": "array", "items": {"type": "string"}},
                "candidates": {"type": "integer"},
                "took": {"type": "integer", "example": 1500000}
            }
        },
        "http.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string", "example": "invalid request body"}}
        },
        "http.IngestRequest": {
            "type": "object",
            "properties": {"document_key": {"type": "string", "example": "deal-42/term-sheet.pdf"}}
        },
        "http.EmbeddingsDebugResponse": {
            "type": "object",
            "properties": {
                "backend": {"type": "string", "example": "postgres"},
                "count": {"type": "integer", "example": 1280}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "JWT Bearer token. Format: \"Bearer {token}\"",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Innovest RAG API",
	Description:      "Deal document ingestion and semantic retrieval.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
