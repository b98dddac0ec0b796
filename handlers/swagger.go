package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the people API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
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
    <title>people — Swagger</title>
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
  "info": { "title": "people", "version": "v0.1.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } },
    "schemas": {
      "Person": { "type": "object", "properties": { "id": {"type":"string"}, "name": {"type":"string"}, "age": {"type":"integer"}, "favoriteFoods": {"type":"array","items":{"type":"string"}} } },
      "PersonInput": { "type": "object", "required": ["name"], "properties": { "name": {"type":"string"}, "age": {"type":"integer"}, "favoriteFoods": {"type":"array","items":{"type":"string"}} } },
      "DeleteResult": { "type": "object", "properties": { "deletedCount": {"type":"integer"} } }
    }
  },
  "paths": {
    "/api/people": {
      "get": { "summary": "Find people by name (all people when name is omitted)", "parameters": [{"name":"name","in":"query","schema":{"type":"string"}}], "responses": { "200": { "description": "matching people" } } },
      "post": { "summary": "Create a person", "security": [{"bearer":[]}], "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/PersonInput"} } } }, "responses": { "201": { "description": "created person" }, "400": { "description": "missing name" } } },
      "patch": { "summary": "Set the age of the first person with the given name", "security": [{"bearer":[]}], "parameters": [{"name":"name","in":"query","required":true,"schema":{"type":"string"}}], "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"age":{"type":"integer"}}} } } }, "responses": { "200": { "description": "updated person" }, "404": { "description": "no match" } } },
      "delete": { "summary": "Delete every person with the given name", "security": [{"bearer":[]}], "parameters": [{"name":"name","in":"query","required":true,"schema":{"type":"string"}}], "responses": { "200": { "description": "delete result" } } }
    },
    "/api/batch/people": {
      "post": { "summary": "Create many people", "security": [{"bearer":[]}], "requestBody": { "content": { "application/json": { "schema": {"type":"array","items":{"$ref":"#/components/schemas/PersonInput"}} } } }, "responses": { "201": { "description": "created people" }, "400": { "description": "an entry is missing its name" } } }
    },
    "/api/people/{id}": {
      "get": { "summary": "Find a person by id", "responses": { "200": { "description": "person" }, "400": { "description": "malformed id" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Delete a person by id", "security": [{"bearer":[]}], "responses": { "200": { "description": "removed person" }, "404": { "description": "not found" } } }
    },
    "/api/people/{id}/foods": {
      "post": { "summary": "Append a favorite food and save", "security": [{"bearer":[]}], "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"food":{"type":"string"}}} } } }, "responses": { "200": { "description": "updated person" }, "404": { "description": "not found" } } }
    },
    "/api/foods/{food}/person": {
      "get": { "summary": "Find one person who likes a food", "responses": { "200": { "description": "person" }, "404": { "description": "no match" } } }
    },
    "/api/foods/{food}/people": {
      "get": { "summary": "People who like a food, sorted by name, limited to two, without age", "responses": { "200": { "description": "people" } } }
    },
    "/api/exports": {
      "post": { "summary": "Write a JSON snapshot of all people to object storage", "security": [{"bearer":[]}], "responses": { "201": { "description": "snapshot key, count and download url" }, "503": { "description": "storage not configured" } } }
    },
    "/api/exports/{key}": {
      "get": { "summary": "Read back a stored snapshot", "security": [{"bearer":[]}], "responses": { "200": { "description": "snapshot" }, "404": { "description": "not found" } } }
    },
    "/api/auth/revoke": {
      "post": { "summary": "Revoke the caller's bearer token", "security": [{"bearer":[]}], "responses": { "204": { "description": "revoked" }, "401": { "description": "unauthenticated" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`
