// Package docs registers the OpenAPI document served under /swagger/.
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
        "/api/meetings/{meeting_id}/propositions/{proposition_id}/votations": {
            "post": {
                "summary": "Start a votation",
                "parameters": [
                    {"type": "string", "name": "meeting_id", "in": "path", "required": true},
                    {"type": "string", "name": "proposition_id", "in": "path", "required": true}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Votation"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/Error"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/api/meetings/{meeting_id}/propositions/{proposition_id}/votes": {
            "post": {
                "summary": "Cast or change a ballot",
                "parameters": [
                    {"type": "string", "name": "meeting_id", "in": "path", "required": true},
                    {"type": "string", "name": "proposition_id", "in": "path", "required": true},
                    {"type": "string", "name": "X-Ticket-Code", "in": "header", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CastVoteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/CastVoteResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/Error"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/Error"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/api/propositions/{proposition_id}/votations": {
            "get": {
                "summary": "List votations of a proposition, latest first",
                "parameters": [
                    {"type": "string", "name": "proposition_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/api/propositions/{proposition_id}/votations/latest": {
            "get": {
                "summary": "Latest votation of a proposition",
                "parameters": [
                    {"type": "string", "name": "proposition_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Votation"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/api/propositions/{proposition_id}/votations/stop": {
            "post": {
                "summary": "Stop the latest open votation",
                "parameters": [
                    {"type": "string", "name": "proposition_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Votation"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/api/propositions/{proposition_id}/votations/revote": {
            "post": {
                "summary": "Overwrite open votations ahead of a new round",
                "parameters": [
                    {"type": "string", "name": "proposition_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/api/votations/{votation_id}/my-vote": {
            "get": {
                "summary": "Check the ticket's ballot in a votation",
                "parameters": [
                    {"type": "string", "name": "votation_id", "in": "path", "required": true},
                    {"type": "string", "name": "X-Ticket-Code", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/api/votations/{votation_id}/results": {
            "get": {
                "summary": "Tally a votation",
                "parameters": [
                    {"type": "string", "name": "votation_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/api/votations/{votation_id}/manual-ballots": {
            "post": {
                "summary": "Add paper ballots",
                "parameters": [
                    {"type": "string", "name": "votation_id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ManualBallotsRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/Error"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/api/ballots/{ballot_id}": {
            "delete": {
                "summary": "Revoke a ballot of an open votation",
                "parameters": [
                    {"type": "string", "name": "ballot_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/Error"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        }
    },
    "definitions": {
        "Error": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "Votation": {
            "type": "object",
            "properties": {
                "votation_id": {"type": "string"},
                "meeting_id": {"type": "string"},
                "proposition_id": {"type": "string"},
                "status": {"type": "string"},
                "open": {"type": "boolean"},
                "overwritten": {"type": "boolean"},
                "started_at_utc": {"type": "string"},
                "ended_at_utc": {"type": "string"}
            }
        },
        "CastVoteRequest": {
            "type": "object",
            "properties": {
                "vote_option_id": {"type": "string"}
            }
        },
        "CastVoteResponse": {
            "type": "object",
            "properties": {
                "ballot_id": {"type": "string"},
                "vote_id": {"type": "string"},
                "votation_id": {"type": "string"},
                "vote_option_id": {"type": "string"},
                "action": {"type": "string"}
            }
        },
        "ManualBallotsRequest": {
            "type": "object",
            "properties": {
                "option_counts": {"type": "object", "additionalProperties": {"type": "integer"}},
                "notes": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Quorum Votation Engine API",
	Description:      "Voting rounds, ballots and tallies for meeting propositions.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
