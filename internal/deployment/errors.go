// Package deployment provides the deployment service and its error handling
package deployment

import (
	"errors"
	"fmt"

	"github.com/lakeshift/lakeshift/internal/interfaces"
)

// Error represents a structured deployment error with context
type Error struct {
	Code       string                      // Machine-readable error code
	Message    string                      // Human-readable message
	Status     interfaces.DeploymentStatus // Related deployment status
	HTTPStatus int                         // Suggested HTTP status code
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common deployment errors
var (
	ErrDeploymentNotFound = &Error{
		Code:       "DEPLOYMENT_NOT_FOUND",
		Message:    "Deployment not found",
		HTTPStatus: 404,
	}

	ErrInvalidRequest = &Error{
		Code:       "INVALID_REQUEST",
		Message:    "Invalid deployment request",
		HTTPStatus: 400,
	}

	ErrDeploymentInProgress = &Error{
		Code:       "DEPLOYMENT_IN_PROGRESS",
		Message:    "Deployment is currently processing and cannot be canceled",
		Status:     interfaces.DeploymentStatusProcessing,
		HTTPStatus: 409,
	}

	ErrDeploymentTerminal = &Error{
		Code:       "DEPLOYMENT_TERMINAL",
		Message:    "Deployment has already reached a terminal state",
		HTTPStatus: 410,
	}

	ErrEnvironmentRequired = &Error{
		Code:       "ENVIRONMENT_REQUIRED",
		Message:    "Deployment request must name a target environment",
		HTTPStatus: 400,
	}
)

// IsDeploymentError checks if an error is a deployment.Error
func IsDeploymentError(err error) (*Error, bool) {
	var depErr *Error
	if errors.As(err, &depErr) {
		return depErr, true
	}
	return nil, false
}
