// Package docs holds the swagger document served at /swagger/*any.
// Regenerate with: swag init -g cmd/api/main.go -o internal/docs
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
        "/": {
            "get": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["dashboard"],
                "summary": "Dashboard",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/login": {
            "post": {
                "description": "Authenticate with username and password. Sets access_token, session_id and refresh_token cookies.",
                "consumes": ["application/json", "application/x-www-form-urlencoded"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Log in",
                "parameters": [{"description": "Credentials", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.LoginRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.LoginResponse"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "422": {"description": "Missing fields", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/logout": {
            "post": {
                "description": "Blacklist the access and refresh tokens, terminate the session and clear cookies. Safe to repeat.",
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Log out",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.MessageResponse"}}}
            }
        },
        "/refresh": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Refresh access token",
                "parameters": [{"description": "Refresh token when no cookie is sent", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/handlers.RefreshRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.RefreshResponse"}},
                    "401": {"description": "Invalid token or session", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/me": {
            "get": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Current admin",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/models": {
            "get": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "List models",
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/handlers.ModelInfo"}}}}
            }
        },
        "/models/{model}": {
            "get": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "List rows",
                "parameters": [
                    {"type": "string", "name": "model", "in": "path", "required": true},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "page_size", "in": "query"},
                    {"type": "string", "name": "sort", "in": "query"},
                    {"type": "string", "name": "order", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            },
            "post": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "Create row",
                "parameters": [{"type": "string", "name": "model", "in": "path", "required": true}],
                "responses": {
                    "201": {"description": "Created", "schema": {"type": "object"}},
                    "422": {"description": "Validation failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/models/{model}/{id}": {
            "get": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "Get row",
                "parameters": [
                    {"type": "string", "name": "model", "in": "path", "required": true},
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            },
            "patch": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "Update row",
                "parameters": [
                    {"type": "string", "name": "model", "in": "path", "required": true},
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            },
            "delete": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "Delete row",
                "parameters": [
                    {"type": "string", "name": "model", "in": "path", "required": true},
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.MessageResponse"}}}
            }
        },
        "/models/{model}/bulk-delete": {
            "post": {
                "security": [{"CookieAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "Bulk delete rows",
                "parameters": [
                    {"type": "string", "name": "model", "in": "path", "required": true},
                    {"description": "Ids to delete", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.BulkDeleteRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/sessions": {
            "get": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "My sessions",
                "parameters": [{"type": "boolean", "name": "all", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/sessions/{session_id}": {
            "delete": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Revoke session",
                "parameters": [{"type": "string", "name": "session_id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.MessageResponse"}},
                    "403": {"description": "Not your session", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Session not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/events/users/{user_id}": {
            "get": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["events"],
                "summary": "User activity",
                "parameters": [
                    {"type": "integer", "name": "user_id", "in": "path", "required": true},
                    {"type": "string", "name": "start", "in": "query"},
                    {"type": "string", "name": "end", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/events/users/{user_id}/export": {
            "get": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "tags": ["events"],
                "summary": "Export user activity",
                "parameters": [{"type": "integer", "name": "user_id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"type": "file"}}}
            }
        },
        "/events/resources/{type}/{id}": {
            "get": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["events"],
                "summary": "Resource history",
                "parameters": [
                    {"type": "string", "name": "type", "in": "path", "required": true},
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/events/resources/{type}/{id}/export": {
            "get": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "tags": ["events"],
                "summary": "Export resource history",
                "parameters": [
                    {"type": "string", "name": "type", "in": "path", "required": true},
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "file"}}}
            }
        },
        "/events/alerts": {
            "get": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["events"],
                "summary": "Security alerts",
                "parameters": [{"type": "integer", "name": "hours", "in": "query"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "403": {"description": "Superuser required", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.BulkDeleteRequest": {
            "type": "object",
            "required": ["ids"],
            "properties": {"ids": {"type": "array", "items": {}}}
        },
        "handlers.ErrorDetail": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "fields": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"$ref": "#/definitions/handlers.ErrorDetail"}}
        },
        "handlers.LoginRequest": {
            "type": "object",
            "required": ["password", "username"],
            "properties": {"password": {"type": "string"}, "username": {"type": "string"}}
        },
        "handlers.LoginResponse": {
            "type": "object",
            "properties": {
                "expires_in": {"type": "integer"},
                "session_id": {"type": "string"},
                "user": {"type": "object", "additionalProperties": true}
            }
        },
        "handlers.MessageResponse": {
            "type": "object",
            "properties": {"message": {"type": "string"}}
        },
        "handlers.ModelInfo": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "permissions": {"$ref": "#/definitions/registry.Permissions"}
            }
        },
        "handlers.RefreshRequest": {
            "type": "object",
            "properties": {"refresh_token": {"type": "string"}}
        },
        "handlers.RefreshResponse": {
            "type": "object",
            "properties": {"access_token": {"type": "string"}, "expires_in": {"type": "integer"}}
        },
        "registry.Permissions": {
            "type": "object",
            "properties": {"create": {"type": "boolean"}, "delete": {"type": "boolean"}, "update": {"type": "boolean"}}
        }
    },
    "securityDefinitions": {
        "CookieAuth": {
            "type": "apiKey",
            "name": "access_token",
            "in": "cookie"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/admin",
	Schemes:          []string{},
	Title:            "crudadmin API",
	Description:      "Admin interface with sessions, token revocation and audited CRUD over registered models.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
