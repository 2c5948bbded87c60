package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ougirez/maturity/internal/pkg/constants"
	"github.com/ougirez/maturity/internal/pkg/logger"
)

type errorResponse struct {
	Message string                 `json:"message"`
	Code    int                    `json:"code"`
	Fields  []constants.FieldError `json:"fields,omitempty"`
}

func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	resp := errorResponse{Message: err.Error(), Code: http.StatusInternalServerError}

	var (
		verr  *constants.ValidationError
		coded *constants.CodedError
		he    *echo.HTTPError
	)
	switch {
	case errors.As(err, &verr):
		resp.Code = constants.ErrValidation.Code()
		resp.Fields = verr.Fields
	case errors.As(err, &coded):
		resp.Code = coded.Code()
	case errors.As(err, &he):
		resp.Code = he.Code
		if msg, ok := he.Message.(string); ok {
			resp.Message = msg
		}
	}

	if resp.Code >= http.StatusInternalServerError {
		logger.Errorf(c.Request().Context(), "%s %s: %v", c.Request().Method, c.Path(), err)
		resp.Message = http.StatusText(resp.Code)
	}

	_ = c.JSON(resp.Code, resp)
}
