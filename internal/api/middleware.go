package api

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ougirez/maturity/internal/pkg/constants"
	"github.com/ougirez/maturity/internal/pkg/logger"
)

const HeaderUserID = constants.HeaderUserID

// ActorMiddleware resolves the acting user from the X-User-ID header set by
// the gateway in front of the service.
func (svc *APIService) ActorMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(HeaderUserID)
		if id == "" {
			return constants.ErrUnauthorized
		}

		ctx := c.Request().Context()
		user, err := svc.users.GetUser(ctx, id)
		if err != nil {
			if constants.IsNotFound(err) {
				return constants.ErrUnauthorized
			}
			return err
		}

		ctx = logger.WithFields(ctx, zap.String("actor_id", user.ID), zap.String("actor_role", string(user.Role)))
		c.SetRequest(c.Request().WithContext(ctx))
		c.Set(constants.CtxKeyActor, user)

		return next(c)
	}
}
