package handlerUtil

import (
	"PoseAnomaly/internal/pose"
	"PoseAnomaly/pkg/log"
	"PoseAnomaly/pkg/response"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type kindMapping struct {
	target  error
	status  int
	code    string
	message string
}

// Scoring pipeline failures, in the order they are matched.
var kindMappings = []kindMapping{
	{pose.ErrModelUnavailable, fiber.StatusServiceUnavailable, "MODEL_UNAVAILABLE", "Reconstruction model is not loaded"},
	{pose.ErrMalformedInput, fiber.StatusBadRequest, "MALFORMED_INPUT", "Malformed landmark payload"},
	{pose.ErrInsufficientData, fiber.StatusUnprocessableEntity, "INSUFFICIENT_DATA", "At least two frames are required"},
	{pose.ErrEmptyBatch, fiber.StatusInternalServerError, "EMPTY_BATCH", "No feature vectors to score"},
	{pose.ErrPrediction, fiber.StatusInternalServerError, "PREDICTION_FAILED", "Reconstruction model failed"},
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// Classify maps err to the status and body it is reported with. Unknown
// errors become a generic 500 without details.
func Classify(err error) (int, ErrorResponse) {
	var respErr *response.Error
	if errors.As(err, &respErr) {
		return respErr.Code, ErrorResponse{
			Error: respErr.Error(),
			Code:  respErr.Kind,
		}
	}

	for _, m := range kindMappings {
		if errors.Is(err, m.target) {
			body := ErrorResponse{Error: m.message, Code: m.code}
			if err.Error() != m.target.Error() {
				body.Details = err.Error()
			}
			return m.status, body
		}
	}

	return fiber.StatusInternalServerError, ErrorResponse{
		Error: "An unexpected error occurred",
	}
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	status, body := Classify(err)

	fields := log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"code":       body.Code,
		"status":     status,
		"path":       path,
		"operation":  operation,
	}

	switch {
	case body.Code == "":
		if status >= fiber.StatusInternalServerError {
			body.Details = "trace_id: " + log.ErrorWithTraceID(fields, "Unexpected error")
		} else {
			h.logger.WithFields(fields).Warn("Operation failed with error response")
		}
	case status >= fiber.StatusInternalServerError:
		h.logger.WithFields(fields).Error("Operation failed")
	default:
		h.logger.WithFields(fields).Warn("Operation rejected")
	}

	return c.Status(status).JSON(body)
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error: "Validation failed: " + err.Error(),
		Code:  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(utils.StatusMessage(fiber.StatusRequestTimeout))
}

func (h *ErrorHandler) HandleUnauthorized(c *fiber.Ctx, requestID string, message string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"path":       c.Path(),
		"message":    message,
	}).Warn("Unauthorized access")

	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Error: message,
		Code:  "UNAUTHORIZED",
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
