package dashboard

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"StockCast/internal/model"
	"StockCast/internal/pipeline"
)

// APIResponse represents standard API response.
type APIResponse struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError represents one failed request field or a classified run error.
type ValidationError struct {
	Code    string                 `json:"code,omitempty"`
	Field   string                 `json:"field,omitempty"`
	Message string                 `json:"message,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// DataResponse writes API response with status and data.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

// SuccessResponse writes success response.
func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

// BadRequestResponse writes bad request error.
func BadRequestResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusBadRequest, data)
}

// StatusFor maps a run error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrDataUnavailable):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInsufficientData), errors.Is(err, model.ErrConvergenceFailure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrMalformedRecord):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	switch model.Kind(err) {
	case model.ErrDataUnavailable:
		return "ERR_DATA_UNAVAILABLE"
	case model.ErrInsufficientData:
		return "ERR_INSUFFICIENT_DATA"
	case model.ErrConvergenceFailure:
		return "ERR_CONVERGENCE_FAILURE"
	case model.ErrMalformedRecord:
		return "ERR_MALFORMED_RECORD"
	case model.ErrRenderFailure:
		return "ERR_RENDER_FAILURE"
	}
	return "ERR_INTERNAL"
}

// RunErrorResponse writes the envelope for a failed pipeline run.
func RunErrorResponse(c echo.Context, err error) error {
	return DataResponse(c, StatusFor(err), []ValidationError{{
		Code:    errorCode(err),
		Message: err.Error(),
		Params:  map[string]interface{}{"kind": pipeline.ErrorKind(err)},
	}})
}
