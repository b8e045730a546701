// Package auth holds the OpenAPI document served at /swagger/.
// Regenerate with: swag init -g internal/auth/http/router.go -o api/auth
package auth

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "AussieBroadWAN Team",
            "url": "https://github.com/aussiebroadwan/bartab-accounts"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/v1/auth/register": {
            "post": {
                "description": "Creates an unverified account and emails a verification link. Registrations are limited per source IP.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Register a new account",
                "parameters": [
                    {"description": "Account details", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "The created user", "schema": {"$ref": "#/definitions/authsdk.RegisterResponse"}},
                    "400": {"description": "Validation failed, email in use or unknown role", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "403": {"description": "Role cannot be self-assigned", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "429": {"description": "Too many registrations from this address", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/v1/auth/login": {
            "post": {
                "description": "Checks credentials. A device that has not been verified gets an emailed OTP and requireOtp in the response; repeat the call with the otp field to finish.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Log in",
                "parameters": [
                    {"description": "Credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Tokens, or an OTP challenge", "schema": {"$ref": "#/definitions/authsdk.LoginResponse"}},
                    "400": {"description": "Invalid credentials, invalid OTP or unverified email", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "403": {"description": "Account locked", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "429": {"description": "Too many attempts", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/v1/auth/verify-otp": {
            "post": {
                "description": "Redeems an OTP for the login, resetPassword or changeDevice action. changeDevice requires a bearer token.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Verify a one-time code",
                "parameters": [
                    {"description": "Action and code", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.VerifyOTPRequest"}}
                ],
                "responses": {
                    "200": {"description": "Action completed", "schema": {"$ref": "#/definitions/authsdk.LoginResponse"}},
                    "400": {"description": "Invalid action, OTP or unverified email", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "401": {"description": "Missing bearer token for changeDevice", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "404": {"description": "Unknown email", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/v1/auth/verify-email/{token}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Verify an email address",
                "parameters": [
                    {"type": "string", "description": "Verification token", "name": "token", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Verified or already verified", "schema": {"$ref": "#/definitions/authsdk.MessageResponse"}},
                    "400": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "404": {"description": "User not found", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/v1/auth/forget-password": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Start a password reset",
                "parameters": [
                    {"description": "Email and method (link or otp)", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.ForgotPasswordRequest"}}
                ],
                "responses": {
                    "200": {"description": "Reset mail sent", "schema": {"$ref": "#/definitions/authsdk.MessageResponse"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "404": {"description": "User not found", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/v1/auth/reset-password": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Reset a password with a reset token",
                "parameters": [
                    {"description": "Token and new password", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.ResetPasswordRequest"}}
                ],
                "responses": {
                    "200": {"description": "Password changed", "schema": {"$ref": "#/definitions/authsdk.MessageResponse"}},
                    "400": {"description": "Invalid token or weak password", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/v1/auth/refresh-token": {
            "post": {
                "description": "Rotates the refresh token taken from the body or the refreshToken cookie.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Refresh a session",
                "parameters": [
                    {"description": "Refresh token", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/authsdk.RefreshRequest"}}
                ],
                "responses": {
                    "200": {"description": "New tokens", "schema": {"$ref": "#/definitions/authsdk.TokenResponse"}},
                    "401": {"description": "Invalid or revoked refresh token", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/v1/auth/logout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Log out",
                "responses": {
                    "200": {"description": "Logged out", "schema": {"$ref": "#/definitions/authsdk.MessageResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/v1/auth/resend-otp": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Send a new device confirmation code",
                "responses": {
                    "200": {"description": "Code sent", "schema": {"$ref": "#/definitions/authsdk.MessageResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "429": {"description": "Too many requests", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/v1/auth/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Get the current user",
                "responses": {
                    "200": {"description": "The user", "schema": {"$ref": "#/definitions/authsdk.User"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "404": {"description": "User not found", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/v1/roles": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Roles"],
                "summary": "List all roles",
                "responses": {
                    "200": {"description": "List of roles", "schema": {"type": "array", "items": {"$ref": "#/definitions/authsdk.Role"}}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Roles"],
                "summary": "Create a role",
                "parameters": [
                    {"description": "Role name", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.RoleRequest"}}
                ],
                "responses": {
                    "201": {"description": "The created role", "schema": {"$ref": "#/definitions/authsdk.Role"}},
                    "400": {"description": "Invalid role name", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "403": {"description": "Forbidden - Admin role required", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "409": {"description": "Role already exists", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/v1/roles/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Roles"],
                "summary": "Get a role",
                "parameters": [
                    {"type": "string", "description": "Role ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "The role", "schema": {"$ref": "#/definitions/authsdk.Role"}},
                    "404": {"description": "Role not found", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Roles"],
                "summary": "Rename a role",
                "parameters": [
                    {"type": "string", "description": "Role ID", "name": "id", "in": "path", "required": true},
                    {"description": "New name", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.RoleRequest"}}
                ],
                "responses": {
                    "200": {"description": "The renamed role", "schema": {"$ref": "#/definitions/authsdk.Role"}},
                    "403": {"description": "Forbidden - Admin role required", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "404": {"description": "Role not found", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "409": {"description": "Name already taken", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Roles"],
                "summary": "Delete a role",
                "parameters": [
                    {"type": "string", "description": "Role ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "403": {"description": "Forbidden - Admin role required", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "404": {"description": "Role not found", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/.well-known/jwks.json": {
            "get": {
                "produces": ["application/json"],
                "tags": ["well-known"],
                "summary": "Get JWKS",
                "responses": {
                    "200": {"description": "The JSON Web Key Set", "schema": {"$ref": "#/definitions/jwtx.JWKS"}}
                }
            }
        },
        "/livez": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health Check Endpoint",
                "responses": {
                    "200": {"description": "status, uptime, version", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}}
                }
            }
        },
        "/readyz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Readiness Check Endpoint",
                "responses": {
                    "200": {"description": "status, uptime, version, checks", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}},
                    "503": {"description": "service not ready", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}}
                }
            }
        }
    },
    "definitions": {
        "authsdk.APIError": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "message": {"type": "string"},
                "details": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "authsdk.User": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "firstName": {"type": "string"},
                "lastName": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "address": {"type": "string"},
                "emailVerified": {"type": "boolean"},
                "roles": {"type": "array", "items": {"type": "string"}},
                "lastLogin": {"type": "string"},
                "createdAt": {"type": "string"}
            }
        },
        "authsdk.RegisterRequest": {
            "type": "object",
            "properties": {
                "firstName": {"type": "string"},
                "lastName": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string"},
                "phone": {"type": "string"},
                "address": {"type": "string"},
                "roles": {"type": "array", "items": {"type": "string"}}
            }
        },
        "authsdk.RegisterResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "user": {"$ref": "#/definitions/authsdk.User"}
            }
        },
        "authsdk.LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "otp": {"type": "string"},
                "rememberMe": {"type": "boolean"}
            }
        },
        "authsdk.LoginResponse": {
            "type": "object",
            "properties": {
                "requireOtp": {"type": "boolean"},
                "message": {"type": "string"},
                "accessToken": {"type": "string"},
                "refreshToken": {"type": "string"},
                "expiresIn": {"type": "integer"},
                "user": {"$ref": "#/definitions/authsdk.User"}
            }
        },
        "authsdk.VerifyOTPRequest": {
            "type": "object",
            "properties": {
                "action": {"type": "string", "enum": ["login", "resetPassword", "changeDevice"]},
                "otp": {"type": "string"},
                "email": {"type": "string"},
                "newPassword": {"type": "string"},
                "rememberMe": {"type": "boolean"}
            }
        },
        "authsdk.ForgotPasswordRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "method": {"type": "string", "enum": ["link", "otp"]}
            }
        },
        "authsdk.ResetPasswordRequest": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "newPassword": {"type": "string"}
            }
        },
        "authsdk.RefreshRequest": {
            "type": "object",
            "properties": {
                "refreshToken": {"type": "string"}
            }
        },
        "authsdk.TokenResponse": {
            "type": "object",
            "properties": {
                "accessToken": {"type": "string"},
                "refreshToken": {"type": "string"},
                "expiresIn": {"type": "integer"}
            }
        },
        "authsdk.MessageResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"}
            }
        },
        "authsdk.Role": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "authsdk.RoleRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"}
            }
        },
        "authsdk.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "uptime": {"type": "string"},
                "version": {"type": "string"},
                "checks": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "jwtx.JWK": {
            "type": "object",
            "properties": {
                "kty": {"type": "string"},
                "kid": {"type": "string"},
                "use": {"type": "string"},
                "alg": {"type": "string"},
                "crv": {"type": "string"},
                "x": {"type": "string"},
                "y": {"type": "string"}
            }
        },
        "jwtx.JWKS": {
            "type": "object",
            "properties": {
                "keys": {"type": "array", "items": {"$ref": "#/definitions/jwtx.JWK"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "JWT access token. Format: \"Bearer {token}\".",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "BarTab Accounts API",
	Description:      "Account registration, device-aware login with emailed one-time codes, password reset and JWT sessions.\n\nAccess tokens are signed with EdDSA or ES256 and can be verified using the JWKS endpoint.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
