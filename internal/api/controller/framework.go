package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ougirez/maturity/internal/domain"
)

func (c *Controller) CreateYear(ctx echo.Context) error {
	var req domain.AssessmentYear
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	year, err := c.framework.CreateYear(ctx.Request().Context(), actor(ctx), req)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, year)
}

func (c *Controller) SetYearStatus(ctx echo.Context) error {
	var req struct {
		Status domain.YearStatus `json:"status" validate:"required"`
	}
	if err := bind(ctx, &req); err != nil {
		return err
	}

	if err := c.framework.SetYearStatus(ctx.Request().Context(), actor(ctx), ctx.Param("id"), req.Status); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (c *Controller) GetFramework(ctx echo.Context) error {
	fw, err := c.framework.Framework(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, fw)
}

func (c *Controller) CreateDimension(ctx echo.Context) error {
	var req domain.Dimension
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	d, err := c.framework.CreateDimension(ctx.Request().Context(), actor(ctx), req)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, d)
}

func (c *Controller) CreateIndicator(ctx echo.Context) error {
	var req domain.Indicator
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	ind, err := c.framework.CreateIndicator(ctx.Request().Context(), actor(ctx), req)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, ind)
}

func (c *Controller) CreateSubQuestion(ctx echo.Context) error {
	var req domain.SubQuestion
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	q, err := c.framework.CreateSubQuestion(ctx.Request().Context(), actor(ctx), req)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, q)
}

type weightRequest struct {
	Weight *float64 `json:"weight" validate:"required"`
}

func (c *Controller) UpdateDimensionWeight(ctx echo.Context) error {
	var req weightRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}
	if err := c.framework.UpdateDimensionWeight(ctx.Request().Context(), actor(ctx), ctx.Param("id"), *req.Weight); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (c *Controller) UpdateIndicatorWeight(ctx echo.Context) error {
	var req weightRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}
	if err := c.framework.UpdateIndicatorWeight(ctx.Request().Context(), actor(ctx), ctx.Param("id"), *req.Weight); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (c *Controller) UpdateSubQuestionWeight(ctx echo.Context) error {
	var req weightRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}
	if err := c.framework.UpdateSubQuestionWeight(ctx.Request().Context(), actor(ctx), ctx.Param("id"), *req.Weight); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
