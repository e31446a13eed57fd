// Package docs registers the Swagger spec for the query API. Normally
// generated by `swag init` from the handler annotations in cmd/api; hand
// maintained here since the generator isn't run as part of this build.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "description": "{{.Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/news": {
            "get": {
                "summary": "List articles in the retention window",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/api/news/search": {
            "get": {
                "summary": "Search articles by embedded similarity",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger metadata, filled in by main at startup
// annotations (see cmd/api/main.go's @title/@version/@host comments).
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "embird News Query API",
	Description:      "Query surface over crawled articles, clusters, and UMAP projections.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
