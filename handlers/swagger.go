package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the to-do API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRoutes) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>todo-api - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "todo-api", "version": "v1.0.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } },
    "schemas": {
      "Error": { "type": "object", "properties": { "code": { "type": "string" }, "message": { "type": "string" }, "errors": { "type": "object" } } },
      "Todo": { "type": "object", "properties": {
        "id": { "type": "string" }, "createdAt": { "type": "string", "format": "date-time" }, "updatedAt": { "type": "string", "format": "date-time", "nullable": true },
        "description": { "type": "string" }, "isCompleted": { "type": "boolean" }, "priority": { "type": "string", "enum": ["low", "medium", "high"] }, "userId": { "type": "string" } } },
      "User": { "type": "object", "properties": {
        "id": { "type": "string" }, "createdAt": { "type": "string", "format": "date-time" }, "updatedAt": { "type": "string", "format": "date-time", "nullable": true },
        "name": { "type": "string" }, "email": { "type": "string", "format": "email" } } },
      "TokenSet": { "type": "object", "properties": { "accessToken": { "type": "string" }, "refreshToken": { "type": "string" }, "expiresIn": { "type": "integer" }, "tokenType": { "type": "string" } } }
    }
  },
  "paths": {
    "/users/create": {
      "post": {
        "summary": "Create a user and its login",
        "requestBody": { "required": true, "content": { "application/json": { "schema": { "type": "object", "required": ["name", "email", "password"], "properties": { "name": { "type": "string" }, "email": { "type": "string", "format": "email" }, "password": { "type": "string", "minLength": 6 } } } } } },
        "responses": { "201": { "description": "created, returns {id}" }, "400": { "description": "validation failed or email already in use" } }
      }
    },
    "/users/{id}": {
      "get": {
        "summary": "Get a user by id", "security": [{ "bearer": [] }],
        "parameters": [{ "in": "path", "name": "id", "required": true, "schema": { "type": "string" } }],
        "responses": { "200": { "description": "user", "content": { "application/json": { "schema": { "$ref": "#/components/schemas/User" } } } }, "422": { "description": "document not found" } }
      }
    },
    "/users/login": {
      "post": {
        "summary": "Sign in with email and password",
        "requestBody": { "required": true, "content": { "application/json": { "schema": { "type": "object", "properties": { "email": { "type": "string" }, "password": { "type": "string" } } } } } },
        "responses": { "200": { "description": "tokens", "content": { "application/json": { "schema": { "$ref": "#/components/schemas/TokenSet" } } } }, "401": { "description": "invalid credential" } }
      }
    },
    "/users/refresh": {
      "post": {
        "summary": "Exchange a refresh token",
        "requestBody": { "required": true, "content": { "application/json": { "schema": { "type": "object", "properties": { "refreshToken": { "type": "string" } } } } } },
        "responses": { "200": { "description": "tokens" }, "401": { "description": "invalid refresh token" } }
      }
    },
    "/users/logout": {
      "post": { "summary": "Sign out and revoke tokens", "security": [{ "bearer": [] }], "responses": { "200": { "description": "signed out" } } }
    },
    "/to-do": {
      "get": { "summary": "List the caller's items", "security": [{ "bearer": [] }], "responses": { "200": { "description": "items", "content": { "application/json": { "schema": { "type": "array", "items": { "$ref": "#/components/schemas/Todo" } } } } }, "403": { "description": "without permission" } } },
      "post": {
        "summary": "Create an item", "security": [{ "bearer": [] }],
        "requestBody": { "required": true, "content": { "application/json": { "schema": { "type": "object", "required": ["description", "priority"], "properties": { "description": { "type": "string" }, "priority": { "type": "string", "enum": ["low", "medium", "high"] } } } } } },
        "responses": { "201": { "description": "created, returns {id, uid}" }, "400": { "description": "validation failed" } }
      }
    },
    "/to-do/{id}": {
      "patch": { "summary": "Mark an item as completed", "security": [{ "bearer": [] }], "parameters": [{ "in": "path", "name": "id", "required": true, "schema": { "type": "string" } }], "responses": { "200": { "description": "completed" }, "403": { "description": "not the owner" }, "422": { "description": "document not found" } } },
      "delete": { "summary": "Delete an item", "security": [{ "bearer": [] }], "parameters": [{ "in": "path", "name": "id", "required": true, "schema": { "type": "string" } }], "responses": { "200": { "description": "deleted, returns {id}" }, "403": { "description": "not the owner" } } }
    },
    "/to-do/export": {
      "get": { "summary": "Export the caller's items to object storage", "security": [{ "bearer": [] }], "responses": { "200": { "description": "presigned download link" }, "501": { "description": "export not configured" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`
