// Package swagger registers the API documentation served at /docs.
package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Automated Timetable API",
        "description": "Multi-tenant timetable validation and lifecycle engine",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Admin authentication"},
        {"name": "Catalog", "description": "Slots, rooms, professors, sections"},
        {"name": "Rules", "description": "Admin rules, blocked slots, availability"},
        {"name": "Plans", "description": "Weekly plan lifecycle and dry-run evaluation"},
        {"name": "Sessions", "description": "Dated session lifecycle and reschedules"},
        {"name": "Runs", "description": "Timetable runs and assignment batches"},
        {"name": "Availability", "description": "Slot occupancy views"},
        {"name": "Timetable", "description": "Weekly timetable exports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate an admin user",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/plans": {
            "post": {
                "tags": ["Plans"],
                "summary": "Create a weekly plan",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Slot conflict"},
                    "422": {"description": "Rule violation"}
                }
            }
        },
        "/runs/{id}/assignments": {
            "post": {
                "tags": ["Runs"],
                "summary": "Commit an assignment batch",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Run already finalized"},
                    "422": {"description": "Batch rejected"}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported swagger metadata.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{"http"},
	Title:            "Automated Timetable API",
	Description:      "Multi-tenant timetable validation and lifecycle engine",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
