// Package docs holds the OpenAPI description of the management API.
// Regenerate with: swag init -g main.go -d cmd/management-service,internal/management,internal/coloring,pkg/errors -o cmd/management-service/docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
	"schemes": {{ marshal .Schemes }},
	"swagger": "2.0",
	"info": {
		"description": "{{escape .Description}}",
		"title": "{{.Title}}",
		"contact": {},
		"version": "{{.Version}}"
	},
	"host": "{{.Host}}",
	"basePath": "{{.BasePath}}",
	"paths": {
		"/subdomains/{subdomain}/rules": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"rules"
				],
				"summary": "List coloring rules",
				"parameters": [
					{
						"type": "string",
						"description": "CRM subdomain",
						"name": "subdomain",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/coloring.Rule"
							}
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					}
				},
				"description": "All rules of a subdomain, active or not, in evaluation order"
			},
			"post": {
				"produces": [
					"application/json"
				],
				"tags": [
					"rules"
				],
				"summary": "Create a coloring rule",
				"parameters": [
					{
						"type": "string",
						"description": "CRM subdomain",
						"name": "subdomain",
						"in": "path",
						"required": true
					},
					{
						"description": "Rule data",
						"name": "rule",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/management.CreateRuleRequest"
						}
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"$ref": "#/definitions/coloring.Rule"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					},
					"409": {
						"description": "Conflict",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				]
			}
		},
		"/subdomains/{subdomain}/rules/priorities": {
			"put": {
				"produces": [
					"application/json"
				],
				"tags": [
					"rules"
				],
				"summary": "Reorder coloring rules",
				"parameters": [
					{
						"type": "string",
						"description": "CRM subdomain",
						"name": "subdomain",
						"in": "path",
						"required": true
					},
					{
						"description": "New priorities",
						"name": "priorities",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/management.PrioritiesRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/management.PrioritiesResult"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"description": "Sets the priority of several rules at once. Ids of other subdomains are ignored."
			}
		},
		"/subdomains/{subdomain}/rules/test": {
			"post": {
				"produces": [
					"application/json"
				],
				"tags": [
					"rules"
				],
				"summary": "Dry-run a condition tree",
				"parameters": [
					{
						"type": "string",
						"description": "CRM subdomain",
						"name": "subdomain",
						"in": "path",
						"required": true
					},
					{
						"description": "Conditions and lead",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/coloring.TestRuleRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/coloring.TestRuleResult"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"description": "Evaluates the conditions against lead_data, or against the CRM lead lead_id when no data is given"
			}
		},
		"/subdomains/{subdomain}/rules/{id}": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"rules"
				],
				"summary": "Get a coloring rule",
				"parameters": [
					{
						"type": "string",
						"description": "CRM subdomain",
						"name": "subdomain",
						"in": "path",
						"required": true
					},
					{
						"type": "integer",
						"description": "Rule ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/coloring.Rule"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					}
				}
			},
			"put": {
				"produces": [
					"application/json"
				],
				"tags": [
					"rules"
				],
				"summary": "Update a coloring rule",
				"parameters": [
					{
						"type": "string",
						"description": "CRM subdomain",
						"name": "subdomain",
						"in": "path",
						"required": true
					},
					{
						"type": "integer",
						"description": "Rule ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"description": "Changed fields",
						"name": "rule",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/management.UpdateRuleRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/coloring.Rule"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					},
					"409": {
						"description": "Conflict",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"description": "Only the fields present in the body change"
			},
			"delete": {
				"tags": [
					"rules"
				],
				"summary": "Delete a coloring rule",
				"parameters": [
					{
						"type": "string",
						"description": "CRM subdomain",
						"name": "subdomain",
						"in": "path",
						"required": true
					},
					{
						"type": "integer",
						"description": "Rule ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"204": {
						"description": "No Content"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					}
				}
			}
		},
		"/subdomains/{subdomain}/rules/{id}/audit": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"audit"
				],
				"summary": "Change log of one rule",
				"parameters": [
					{
						"type": "string",
						"description": "CRM subdomain",
						"name": "subdomain",
						"in": "path",
						"required": true
					},
					{
						"type": "integer",
						"description": "Rule ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"type": "integer",
						"default": 100,
						"description": "Maximum number of entries (1-1000)",
						"name": "limit",
						"in": "query"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/management.AuditEntry"
							}
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					}
				}
			}
		},
		"/subdomains/{subdomain}/audit": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"audit"
				],
				"summary": "Change log of a subdomain's rules",
				"parameters": [
					{
						"type": "string",
						"description": "CRM subdomain",
						"name": "subdomain",
						"in": "path",
						"required": true
					},
					{
						"type": "integer",
						"default": 100,
						"description": "Maximum number of entries (1-1000)",
						"name": "limit",
						"in": "query"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/management.AuditEntry"
							}
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					}
				}
			}
		},
		"/subdomains/{subdomain}/leads/styles": {
			"post": {
				"produces": [
					"application/json"
				],
				"tags": [
					"leads"
				],
				"summary": "Resolve lead styles",
				"parameters": [
					{
						"type": "string",
						"description": "CRM subdomain",
						"name": "subdomain",
						"in": "path",
						"required": true
					},
					{
						"description": "Lead ids",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/management.LeadsStylesRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"$ref": "#/definitions/coloring.LeadStyle"
							}
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					},
					"503": {
						"description": "Service Unavailable",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"description": "Returns the style of every lead that matched a rule, keyed by lead id. Unmatched leads are omitted."
			}
		},
		"/subdomains/{subdomain}/fields": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"fields"
				],
				"summary": "List rule fields",
				"parameters": [
					{
						"type": "string",
						"description": "CRM subdomain",
						"name": "subdomain",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/fields.Field"
							}
						}
					},
					"503": {
						"description": "Service Unavailable",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					}
				},
				"description": "Standard lead fields followed by the subdomain's custom fields, with the operators each supports"
			}
		},
		"/subdomains/{subdomain}/history": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"leads"
				],
				"summary": "Recent coloring passes",
				"parameters": [
					{
						"type": "string",
						"description": "CRM subdomain",
						"name": "subdomain",
						"in": "path",
						"required": true
					},
					{
						"type": "integer",
						"default": 50,
						"description": "Maximum number of passes (1-500)",
						"name": "limit",
						"in": "query"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/coloring.PassSummary"
							}
						}
					},
					"503": {
						"description": "Service Unavailable",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					}
				}
			}
		}
	},
	"definitions": {
		"errors.ErrorResponse": {
			"type": "object",
			"properties": {
				"error": {
					"type": "string"
				},
				"error_code": {
					"type": "string"
				},
				"details": {
					"type": "object",
					"additionalProperties": true
				}
			}
		},
		"conditions.Leaf": {
			"type": "object",
			"properties": {
				"field": {
					"type": "string"
				},
				"operator": {
					"type": "string",
					"enum": [
						"is_empty",
						"is_not_empty",
						"equals",
						"not_equals",
						"contains",
						"not_contains",
						"starts_with",
						"ends_with",
						"greater_than",
						"less_than",
						"greater_or_equal",
						"less_or_equal",
						"between",
						"in_list",
						"not_in_list",
						"after",
						"before",
						"today",
						"yesterday",
						"this_week",
						"last_week",
						"this_month",
						"last_month",
						"last_n_days"
					]
				},
				"value": {}
			}
		},
		"conditions.Tree": {
			"type": "object",
			"properties": {
				"type": {
					"type": "string",
					"enum": [
						"AND",
						"OR"
					]
				},
				"rules": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/conditions.Leaf"
					}
				}
			}
		},
		"coloring.Style": {
			"type": "object",
			"required": [
				"background_color",
				"text_color"
			],
			"properties": {
				"text_color": {
					"type": "string",
					"maxLength": 32
				},
				"background_color": {
					"type": "string",
					"maxLength": 32
				}
			}
		},
		"coloring.Rule": {
			"type": "object",
			"properties": {
				"id": {
					"type": "integer"
				},
				"subdomain": {
					"type": "string"
				},
				"name": {
					"type": "string"
				},
				"is_active": {
					"type": "boolean"
				},
				"priority": {
					"type": "integer"
				},
				"conditions": {
					"$ref": "#/definitions/conditions.Tree"
				},
				"style": {
					"$ref": "#/definitions/coloring.Style"
				},
				"created_at": {
					"type": "string"
				},
				"updated_at": {
					"type": "string"
				}
			}
		},
		"coloring.LeadStyle": {
			"type": "object",
			"properties": {
				"text_color": {
					"type": "string"
				},
				"background_color": {
					"type": "string"
				},
				"matched_rule_id": {
					"type": "integer"
				},
				"matched_rule_name": {
					"type": "string"
				}
			}
		},
		"coloring.PriorityUpdate": {
			"type": "object",
			"required": [
				"id"
			],
			"properties": {
				"id": {
					"type": "integer"
				},
				"priority": {
					"type": "integer"
				}
			}
		},
		"coloring.TestRuleRequest": {
			"type": "object",
			"properties": {
				"conditions": {
					"$ref": "#/definitions/conditions.Tree"
				},
				"lead_data": {
					"type": "object",
					"additionalProperties": true
				},
				"lead_id": {
					"type": "integer"
				}
			}
		},
		"conditions.LeafResult": {
			"type": "object",
			"properties": {
				"expected": {},
				"actual": {},
				"error": {
					"type": "string"
				},
				"field": {
					"type": "string"
				},
				"operator": {
					"type": "string"
				},
				"matched": {
					"type": "boolean"
				}
			}
		},
		"coloring.TestRuleResult": {
			"type": "object",
			"properties": {
				"matches": {
					"type": "boolean"
				},
				"details": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/conditions.LeafResult"
					}
				}
			}
		},
		"coloring.PassSummary": {
			"type": "object",
			"properties": {
				"subdomain": {
					"type": "string"
				},
				"request_id": {
					"type": "string"
				},
				"requested": {
					"type": "integer"
				},
				"fetched": {
					"type": "integer"
				},
				"matched": {
					"type": "integer"
				},
				"rules": {
					"type": "integer"
				},
				"rule_hits": {
					"type": "object",
					"additionalProperties": {
						"type": "integer"
					}
				},
				"duration_ms": {
					"type": "integer"
				},
				"status": {
					"type": "string"
				},
				"created_at": {
					"type": "string"
				}
			}
		},
		"fields.Field": {
			"type": "object",
			"properties": {
				"id": {
					"type": "string"
				},
				"name": {
					"type": "string"
				},
				"type": {
					"type": "string"
				},
				"code": {
					"type": "string"
				},
				"custom": {
					"type": "boolean"
				},
				"operators": {
					"type": "array",
					"items": {
						"type": "string"
					}
				}
			}
		},
		"management.CreateRuleRequest": {
			"type": "object",
			"required": [
				"conditions",
				"name",
				"style"
			],
			"properties": {
				"name": {
					"type": "string",
					"maxLength": 255
				},
				"is_active": {
					"type": "boolean"
				},
				"priority": {
					"type": "integer"
				},
				"conditions": {
					"$ref": "#/definitions/conditions.Tree"
				},
				"style": {
					"$ref": "#/definitions/coloring.Style"
				}
			}
		},
		"management.UpdateRuleRequest": {
			"type": "object",
			"properties": {
				"name": {
					"type": "string",
					"maxLength": 255
				},
				"is_active": {
					"type": "boolean"
				},
				"priority": {
					"type": "integer"
				},
				"conditions": {
					"$ref": "#/definitions/conditions.Tree"
				},
				"style": {
					"$ref": "#/definitions/coloring.Style"
				}
			}
		},
		"management.PrioritiesRequest": {
			"type": "object",
			"required": [
				"priorities"
			],
			"properties": {
				"priorities": {
					"type": "array",
					"minItems": 1,
					"items": {
						"$ref": "#/definitions/coloring.PriorityUpdate"
					}
				}
			}
		},
		"management.PrioritiesResult": {
			"type": "object",
			"properties": {
				"updated": {
					"type": "integer"
				}
			}
		},
		"management.LeadsStylesRequest": {
			"type": "object",
			"required": [
				"lead_ids"
			],
			"properties": {
				"lead_ids": {
					"type": "array",
					"minItems": 1,
					"items": {
						"type": "integer"
					}
				}
			}
		},
		"management.AuditEntry": {
			"type": "object",
			"properties": {
				"id": {
					"type": "integer"
				},
				"rule_id": {
					"type": "integer"
				},
				"subdomain": {
					"type": "string"
				},
				"action": {
					"type": "string"
				},
				"changed_by": {
					"type": "string"
				},
				"old_value": {
					"type": "object"
				},
				"new_value": {
					"type": "object"
				},
				"created_at": {
					"type": "string"
				}
			}
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Leads Coloring Management API",
	Description:      "REST API for managing lead coloring rules and resolving lead styles",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
