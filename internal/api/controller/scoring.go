package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ougirez/maturity/internal/domain"
)

func (c *Controller) SubmitScoringEntry(ctx echo.Context) error {
	var req struct {
		Score domain.CategoricalScore `json:"score" validate:"required,oneof=meets partially_meets does_not_meet"`
	}
	if err := bind(ctx, &req); err != nil {
		return err
	}

	entry, err := c.review.SubmitScoringEntry(ctx.Request().Context(), actor(ctx), ctx.Param("id"), req.Score)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (c *Controller) AggregateScore(ctx echo.Context) error {
	agg, err := c.review.AggregateScore(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, agg)
}

func (c *Controller) ScoringProgress(ctx echo.Context) error {
	p, err := c.review.ScoringProgress(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (c *Controller) SubmitScoringToChairman(ctx echo.Context) error {
	sub, err := c.review.SubmitScoringToChairman(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (c *Controller) FinalizeScoring(ctx echo.Context) error {
	var req struct {
		Overrides map[string]float64 `json:"overrides"`
	}
	if err := bind(ctx, &req); err != nil {
		return err
	}

	sub, err := c.review.FinalizeScoring(ctx.Request().Context(), actor(ctx), ctx.Param("id"), req.Overrides)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (c *Controller) UnitIndex(ctx echo.Context) error {
	a := actor(ctx)
	unitID := ctx.Param("id")
	if !c.access.CanAccessUnit(a, unitID) {
		return echo.NewHTTPError(http.StatusForbidden, "unit is out of reach")
	}

	score, err := c.calculation.UnitIndex(ctx.Request().Context(), unitID, ctx.QueryParam("year_id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, score)
}

func (c *Controller) NationalIndex(ctx echo.Context) error {
	idx, err := c.calculation.NationalIndex(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, idx)
}

func (c *Controller) DimensionAverages(ctx echo.Context) error {
	avgs, err := c.calculation.DimensionNationalAverages(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, avgs)
}

func (c *Controller) Ranking(ctx echo.Context) error {
	ranking, err := c.calculation.Ranking(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ranking)
}
