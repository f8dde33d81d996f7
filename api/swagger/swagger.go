package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Student Risk Monitor API",
        "description": "Records attendance, quizzes and assignments and derives per-student risk levels.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Students", "description": "Student registry"},
        {"name": "Attendance", "description": "Daily attendance records"},
        {"name": "Quizzes", "description": "Quizzes and quiz submissions"},
        {"name": "Assignments", "description": "Assignments and assignment submissions"},
        {"name": "Performance", "description": "Performance history"},
        {"name": "Alerts", "description": "High-risk alerts"},
        {"name": "Dashboard", "description": "Aggregate dashboard rollups"},
        {"name": "Reports", "description": "Roster exports"}
    ],
    "paths": {
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "parameters": [
                    {"name": "riskLevel", "in": "query", "type": "string", "enum": ["low", "medium", "high"]},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "sort", "in": "query", "type": "string", "enum": ["name", "student_id", "performance_score", "enrollment_date"]},
                    {"name": "order", "in": "query", "type": "string", "enum": ["asc", "desc"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Students"],
                "summary": "Create student",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateStudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate student ID", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/lookup/{studentId}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get student by external student ID",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/attendance": {
            "get": {
                "tags": ["Attendance"],
                "summary": "List attendance for a student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "days", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/attendance/stats": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Attendance stats for a student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/quizzes": {
            "get": {
                "tags": ["Quizzes"],
                "summary": "List quiz submissions for a student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/quizzes/stats": {
            "get": {
                "tags": ["Quizzes"],
                "summary": "Quiz stats for a student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/assignments": {
            "get": {
                "tags": ["Assignments"],
                "summary": "List assignment submissions for a student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/assignments/stats": {
            "get": {
                "tags": ["Assignments"],
                "summary": "Assignment stats for a student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/performance": {
            "get": {
                "tags": ["Performance"],
                "summary": "Performance history for a student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "days", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Mark attendance for today",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MarkAttendanceRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Student not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/quizzes": {
            "get": {
                "tags": ["Quizzes"],
                "summary": "List active quizzes",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Quizzes"],
                "summary": "Create quiz",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateQuizRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/quizzes/{id}": {
            "delete": {
                "tags": ["Quizzes"],
                "summary": "Deactivate quiz",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/quizzes/{id}/submissions": {
            "post": {
                "tags": ["Quizzes"],
                "summary": "Submit quiz",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmissionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already submitted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments": {
            "get": {
                "tags": ["Assignments"],
                "summary": "List active assignments",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Assignments"],
                "summary": "Create assignment",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateAssignmentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/{id}": {
            "delete": {
                "tags": ["Assignments"],
                "summary": "Deactivate assignment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/{id}/submissions": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Submit assignment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmissionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already submitted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/alerts": {
            "get": {
                "tags": ["Alerts"],
                "summary": "List alerts",
                "parameters": [
                    {"name": "unread", "in": "query", "type": "boolean"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/alerts/{id}/read": {
            "patch": {
                "tags": ["Alerts"],
                "summary": "Mark alert read",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/alerts/read-all": {
            "post": {
                "tags": ["Alerts"],
                "summary": "Mark every alert read",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/dashboard/stats": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Dashboard statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/risk-roster": {
            "get": {
                "tags": ["Reports"],
                "summary": "Export risk roster",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "riskLevel", "in": "query", "type": "string", "enum": ["low", "medium", "high"]}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateStudentRequest": {
            "type": "object",
            "required": ["name", "email", "studentId"],
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"},
                "studentId": {"type": "string"}
            }
        },
        "MarkAttendanceRequest": {
            "type": "object",
            "required": ["studentId", "status"],
            "properties": {
                "studentId": {"type": "string"},
                "status": {"type": "string", "enum": ["present", "absent", "late"]}
            }
        },
        "CreateQuizRequest": {
            "type": "object",
            "required": ["title", "totalQuestions"],
            "properties": {
                "title": {"type": "string"},
                "totalQuestions": {"type": "integer"}
            }
        },
        "CreateAssignmentRequest": {
            "type": "object",
            "required": ["title", "dueDate", "totalPoints"],
            "properties": {
                "title": {"type": "string"},
                "dueDate": {"type": "string", "format": "date-time"},
                "totalPoints": {"type": "number"}
            }
        },
        "SubmissionRequest": {
            "type": "object",
            "required": ["studentId", "score"],
            "properties": {
                "studentId": {"type": "string"},
                "score": {"type": "number"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
