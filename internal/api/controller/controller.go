package controller

import (
	"github.com/labstack/echo/v4"

	"github.com/ougirez/maturity/internal/domain"
	"github.com/ougirez/maturity/internal/pkg/constants"
	"github.com/ougirez/maturity/internal/service/access"
	"github.com/ougirez/maturity/internal/service/calculation"
	"github.com/ougirez/maturity/internal/service/framework"
	"github.com/ougirez/maturity/internal/service/review"
)

type Controller struct {
	access      *access.Resolver
	review      *review.Service
	framework   *framework.Service
	calculation *calculation.Service
}

func NewController(resolver *access.Resolver, reviewService *review.Service, frameworkService *framework.Service, calculationService *calculation.Service) *Controller {
	return &Controller{
		access:      resolver,
		review:      reviewService,
		framework:   frameworkService,
		calculation: calculationService,
	}
}

// actor is set by the api actor middleware.
func actor(ctx echo.Context) *domain.User {
	u, _ := ctx.Get(constants.CtxKeyActor).(*domain.User)
	return u
}

// bind decodes the body into req and runs the struct validator on it.
func bind(ctx echo.Context, req interface{}) error {
	if err := ctx.Bind(req); err != nil {
		return err
	}
	return ctx.Validate(req)
}
