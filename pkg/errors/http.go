package errors

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// JSON writes err as a JSON error response with the status mapped from its
// code.
func JSON(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if As(err, &appErr) {
		return c.JSON(ToHTTPStatus(appErr.Code()), ErrorResponse{
			Error: appErr.Error(),
			Code:  appErr.Code(),
		})
	}

	if echoErr, ok := err.(*echo.HTTPError); ok {
		return c.JSON(echoErr.Code, ErrorResponse{
			Error: http.StatusText(echoErr.Code),
			Code:  ErrInternal,
		})
	}

	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error: err.Error(),
		Code:  ErrInternal,
	})
}
