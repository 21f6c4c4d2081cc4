package responses

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fal-mcp-server/utils/platformerrors"
)

type ErrorResponse struct {
	Code          string `json:"code"` // UUID from PlatformError
	Error         string `json:"error"`
	ErrorInstance error  `json:"-"`
	RequestID     string `json:"request_id,omitempty"`
}

// HandleError handles domain errors and returns appropriate HTTP responses.
// Status code is determined from the error type.
func HandleError(reqCtx *gin.Context, err error, message string) {
	var domainErr *platformerrors.PlatformError
	if errors.As(err, &domainErr) {
		statusCode := platformerrors.ErrorTypeToHTTPStatus(domainErr.GetErrorType())
		reqCtx.AbortWithStatusJSON(statusCode, ErrorResponse{
			Code:          domainErr.GetUUID(),
			Error:         message,
			ErrorInstance: domainErr,
			RequestID:     domainErr.GetRequestID(),
		})
		return
	}
	reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		Error:         message,
		ErrorInstance: err,
	})
}

// HandleNewError creates a new typed error at the route layer and handles it.
// The uuid parameter is a stable identifier for error tracking.
func HandleNewError(reqCtx *gin.Context, errorType platformerrors.ErrorType, message string, uuid string) {
	ctx := reqCtx.Request.Context()
	err := platformerrors.NewError(ctx, platformerrors.LayerRoute, errorType, message, nil, uuid)

	reqCtx.AbortWithStatusJSON(platformerrors.ErrorTypeToHTTPStatus(err.GetErrorType()), ErrorResponse{
		Code:          err.GetUUID(),
		Error:         message,
		ErrorInstance: err,
		RequestID:     err.GetRequestID(),
	})
}
