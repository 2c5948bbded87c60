package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/ougirez/maturity/internal/api/controller"
	"github.com/ougirez/maturity/internal/pkg/logger"
	"github.com/ougirez/maturity/internal/pkg/store"
	"github.com/ougirez/maturity/internal/service/access"
	"github.com/ougirez/maturity/internal/service/calculation"
	"github.com/ougirez/maturity/internal/service/framework"
	"github.com/ougirez/maturity/internal/service/review"
)

type Options struct {
	Users       store.UserReader
	Resolver    *access.Resolver
	Review      *review.Service
	Framework   *framework.Service
	Calculation *calculation.Service
	// AllowOrigins feeds the CORS middleware; empty disables it.
	AllowOrigins   []string
	DisableReqLogs bool
}

type APIService struct {
	router *echo.Echo
	users  store.UserReader
}

func (svc *APIService) Serve(addr string) {
	if err := svc.router.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal(context.Background(), err)
	}
}

func (svc *APIService) Shutdown(ctx context.Context) error {
	return svc.router.Shutdown(ctx)
}

func (svc *APIService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	svc.router.ServeHTTP(w, r)
}

func NewAPIService(opts Options) *APIService {
	svc := &APIService{router: echo.New(), users: opts.Users}

	svc.router.HideBanner = true
	svc.router.Logger.SetLevel(log.WARN)
	svc.router.Validator = NewValidator()
	svc.router.JSONSerializer = sonicSerializer{}
	svc.router.HTTPErrorHandler = httpErrorHandler

	svc.router.Pre(middleware.RemoveTrailingSlash())
	if !opts.DisableReqLogs {
		svc.router.Use(middleware.Logger())
	}
	svc.router.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	if len(opts.AllowOrigins) > 0 {
		svc.router.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: opts.AllowOrigins,
			AllowMethods: []string{echo.GET, echo.PUT, echo.POST, echo.DELETE},
			AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, HeaderUserID},
		}))
	}

	cntrl := controller.NewController(opts.Resolver, opts.Review, opts.Framework, opts.Calculation)

	api := svc.router.Group("/api/v1", svc.ActorMiddleware)

	units := api.Group("/units")
	units.GET("/accessible", cntrl.AccessibleUnits)
	units.GET("/:id/index", cntrl.UnitIndex)

	years := api.Group("/years")
	years.POST("", cntrl.CreateYear)
	years.PUT("/:id/status", cntrl.SetYearStatus)
	years.GET("/:id/framework", cntrl.GetFramework)
	years.GET("/:id/national-index", cntrl.NationalIndex)
	years.GET("/:id/dimension-averages", cntrl.DimensionAverages)
	years.GET("/:id/ranking", cntrl.Ranking)

	fw := api.Group("/framework")
	fw.POST("/dimensions", cntrl.CreateDimension)
	fw.PUT("/dimensions/:id/weight", cntrl.UpdateDimensionWeight)
	fw.POST("/indicators", cntrl.CreateIndicator)
	fw.PUT("/indicators/:id/weight", cntrl.UpdateIndicatorWeight)
	fw.POST("/sub-questions", cntrl.CreateSubQuestion)
	fw.PUT("/sub-questions/:id/weight", cntrl.UpdateSubQuestionWeight)

	subs := api.Group("/submissions")
	subs.GET("", cntrl.ListSubmissions)
	subs.POST("", cntrl.CreateSubmission)
	subs.GET("/:id", cntrl.GetSubmission)
	subs.DELETE("/:id", cntrl.DeleteSubmission)
	subs.GET("/:id/history", cntrl.History)
	subs.PUT("/:id/responses/:sub_question_id", cntrl.SaveResponse)
	subs.POST("/:id/submit", cntrl.SubmitForApproval)
	subs.POST("/:id/approve", cntrl.ApproveInitial)
	subs.POST("/:id/reject", cntrl.RejectInitial)
	subs.POST("/:id/central-validation", cntrl.SubmitCentralValidation)
	subs.POST("/:id/resubmit", cntrl.ResubmitToCentralCommittee)
	subs.POST("/:id/return", cntrl.RejectToContributor)
	subs.GET("/:id/scoring", cntrl.ScoringProgress)
	subs.POST("/:id/scoring/submit", cntrl.SubmitScoringToChairman)
	subs.POST("/:id/scoring/finalize", cntrl.FinalizeScoring)

	responses := api.Group("/responses")
	responses.PUT("/:id/validation", cntrl.ValidateResponse)
	responses.PUT("/:id/regional-note", cntrl.SetRegionalNote)
	responses.PUT("/:id/score", cntrl.SubmitScoringEntry)
	responses.GET("/:id/score", cntrl.AggregateScore)

	return svc
}
