package anomalyHandler

import (
	anomalyService "PoseAnomaly/internal/api/anomaly/service"
	"PoseAnomaly/internal/middleware"
	"PoseAnomaly/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type AnomalyHandler struct {
	log            *logrus.Logger
	validator      *validator.Validate
	middleware     middleware.Middleware
	anomalyService anomalyService.IAnomalyService
	utils          utils.IUtils
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	as anomalyService.IAnomalyService,
	utils utils.IUtils,
) *AnomalyHandler {
	return &AnomalyHandler{
		log:            log,
		validator:      validator,
		middleware:     middleware,
		anomalyService: as,
		utils:          utils,
	}
}

func (h *AnomalyHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	anomaly := srv.Group("/anomaly")
	anomaly.Post("/detect", h.middleware.NewRateLimiter, h.DetectAnomaly)

	anomaly.Use("/ws", wsMiddleware)
	anomaly.Get("/ws", websocket.New(h.handleWebSocket))

	anomaly.Get("/analyses", h.middleware.NewTokenMiddleware, h.ListAnalyses)
	anomaly.Get("/analyses/:id", h.middleware.NewTokenMiddleware, h.GetAnalysis)
}

// StartRoot registers the unversioned detection path existing clients post to.
func (h *AnomalyHandler) StartRoot(app fiber.Router) {
	app.Post("/detect-anomaly", h.middleware.NewRateLimiter, h.DetectAnomaly)
}
