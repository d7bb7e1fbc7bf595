// Package docs holds the swag-generated API description for cmd/raftnode's
// HTTP admin surface. It is hand-maintained here in the shape `swag init`
// would emit, since the toolchain isn't run as part of this build.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "raftnode admin API",
        "description": "Status and key/value surface fronting a single raftkit node.",
        "version": "1.0"
    },
    "paths": {
        "/status": {
            "get": {
                "summary": "Node status",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/kv/{key}": {
            "get": {
                "summary": "Read a key",
                "parameters": [{"name": "key", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            },
            "put": {
                "summary": "Set a key",
                "parameters": [{"name": "key", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}
            },
            "delete": {
                "summary": "Delete a key",
                "parameters": [{"name": "key", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        }
    }
}`

// SwaggerInfo holds exported swagger metadata, registered with swag at
// package init the way `swag init` output always does.
var SwaggerInfo = &swag.Spec{
	Version:     "1.0",
	Host:        "",
	BasePath:    "/",
	Schemes:     []string{},
	Title:       "raftnode admin API",
	Description: "Status and key/value surface fronting a single raftkit node.",
}

func init() {
	SwaggerInfo.SwaggerTemplate = docTemplate
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
