package controller

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ougirez/maturity/internal/domain"
	"github.com/ougirez/maturity/internal/service/review"
)

func (c *Controller) ListSubmissions(ctx echo.Context) error {
	filter := review.ListFilter{YearID: ctx.QueryParam("year_id")}
	if raw := ctx.QueryParam("status"); raw != "" {
		for _, st := range strings.Split(raw, ",") {
			filter.Statuses = append(filter.Statuses, domain.Status(st))
		}
	}

	subs, err := c.review.List(ctx.Request().Context(), actor(ctx), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (c *Controller) CreateSubmission(ctx echo.Context) error {
	var req struct {
		UnitID string `json:"unit_id" validate:"required"`
		YearID string `json:"year_id" validate:"required"`
	}
	if err := bind(ctx, &req); err != nil {
		return err
	}

	sub, err := c.review.CreateSubmission(ctx.Request().Context(), actor(ctx), req.UnitID, req.YearID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (c *Controller) GetSubmission(ctx echo.Context) error {
	view, err := c.review.Get(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, view)
}

func (c *Controller) DeleteSubmission(ctx echo.Context) error {
	if err := c.review.DeleteSubmission(ctx.Request().Context(), actor(ctx), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (c *Controller) History(ctx echo.Context) error {
	history, err := c.review.History(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, history)
}

func (c *Controller) SaveResponse(ctx echo.Context) error {
	var req review.ResponseInput
	if err := bind(ctx, &req); err != nil {
		return err
	}

	resp, err := c.review.SaveResponse(ctx.Request().Context(), actor(ctx), ctx.Param("id"), ctx.Param("sub_question_id"), req)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (c *Controller) SubmitForApproval(ctx echo.Context) error {
	sub, err := c.review.SubmitForApproval(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (c *Controller) ApproveInitial(ctx echo.Context) error {
	sub, err := c.review.ApproveInitial(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

type commentRequest struct {
	Comment string `json:"comment" validate:"required"`
}

func (c *Controller) RejectInitial(ctx echo.Context) error {
	var req commentRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}

	sub, err := c.review.RejectInitial(ctx.Request().Context(), actor(ctx), ctx.Param("id"), req.Comment)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (c *Controller) SubmitCentralValidation(ctx echo.Context) error {
	decision, err := c.review.SubmitCentralValidation(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, decision)
}

func (c *Controller) ResubmitToCentralCommittee(ctx echo.Context) error {
	sub, err := c.review.ResubmitToCentralCommittee(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (c *Controller) RejectToContributor(ctx echo.Context) error {
	var req commentRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}

	sub, err := c.review.RejectToContributor(ctx.Request().Context(), actor(ctx), ctx.Param("id"), req.Comment)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (c *Controller) ValidateResponse(ctx echo.Context) error {
	var req review.Validation
	if err := bind(ctx, &req); err != nil {
		return err
	}

	resp, err := c.review.ValidateResponse(ctx.Request().Context(), actor(ctx), ctx.Param("id"), req)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (c *Controller) SetRegionalNote(ctx echo.Context) error {
	var req struct {
		Note string `json:"note"`
	}
	if err := bind(ctx, &req); err != nil {
		return err
	}

	resp, err := c.review.SetRegionalNote(ctx.Request().Context(), actor(ctx), ctx.Param("id"), req.Note)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (c *Controller) AccessibleUnits(ctx echo.Context) error {
	ids := c.access.AccessibleUnitIDs(actor(ctx))
	units := make([]domain.AdministrativeUnit, 0, len(ids))
	for _, u := range c.access.Index().All() {
		if _, ok := ids[u.ID]; ok {
			units = append(units, u)
		}
	}
	return ctx.JSON(http.StatusOK, units)
}
