package config

import (
	"PoseAnomaly/pkg/handlerUtil"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func NewFiber(logger *logrus.Logger) *fiber.App {
	app := fiber.New(
		fiber.Config{
			AppName:           "Pose Anomaly Service",
			BodyLimit:         50 * 1024 * 1024,
			DisableKeepalive:  false,
			StrictRouting:     true,
			CaseSensitive:     true,
			EnablePrintRoutes: logger.IsLevelEnabled(logrus.DebugLevel),
			JSONEncoder:       jsoniter.Marshal,
			JSONDecoder:       jsoniter.Unmarshal,
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				status := fiber.StatusInternalServerError
				if e, ok := err.(*fiber.Error); ok {
					status = e.Code
				}
				if status >= fiber.StatusInternalServerError {
					logger.WithField("path", c.Path()).Errorf("Unhandled error: %v", err)
				}
				return c.Status(status).JSON(handlerUtil.ErrorResponse{Error: err.Error()})
			},
		})

	return app
}

func NewValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}
