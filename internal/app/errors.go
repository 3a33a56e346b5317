package app

import (
	"fmt"
	"net/http"

	"taskboard/api/internal/rbac"
)

const (
	codeValidation              = "VALIDATION_ERROR"
	codeBadRequest              = "BAD_REQUEST"
	codeAccessDenied            = "ACCESS_DENIED"
	codeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	codeUnauthorized            = "UNAUTHORIZED"
	codeInvalidCredentials      = "INVALID_CREDENTIALS"
	codeRegistrationFailed      = "REGISTRATION_FAILED"
	codeServerError             = "SERVER_ERROR"
	codeNotFound                = "NOT_FOUND"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
	// Access records why an access check failed; it is logged, never rendered.
	Access rbac.AccessResult
	cause  error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.cause
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(message string, details any) *DomainError {
	return domainError(http.StatusBadRequest, codeValidation, message, details)
}

func fieldError(field, message string) *DomainError {
	return validationError(message, map[string]string{"field": field})
}

func badRequest(message string) *DomainError {
	return domainError(http.StatusBadRequest, codeBadRequest, message, nil)
}

func malformedID(field string) *DomainError {
	return domainError(http.StatusBadRequest, codeBadRequest, "Invalid "+field, map[string]string{"field": field})
}

// accessDenied renders the same response for missing and forbidden entities.
func accessDenied(result rbac.AccessResult) *DomainError {
	err := domainError(http.StatusForbidden, codeAccessDenied, "Access denied", nil)
	err.Access = result
	return err
}

func insufficientPermissions(required rbac.Role) *DomainError {
	return domainError(http.StatusForbidden, codeInsufficientPermissions, "Insufficient permissions",
		map[string]string{"requiredRole": string(required)})
}

func unauthorized() *DomainError {
	return domainError(http.StatusUnauthorized, codeUnauthorized, "Unauthorized", nil)
}

func invalidCredentials() *DomainError {
	return domainError(http.StatusUnauthorized, codeInvalidCredentials, "Invalid username or password", nil)
}

func registrationFailed(cause error) *DomainError {
	err := domainError(http.StatusInternalServerError, codeRegistrationFailed, "Registration failed", nil)
	err.cause = cause
	return err
}

func internalError(cause error) *DomainError {
	err := domainError(http.StatusInternalServerError, codeServerError, "Server error", nil)
	err.cause = cause
	return err
}
