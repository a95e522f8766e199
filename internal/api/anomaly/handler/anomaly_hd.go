package anomalyHandler

import (
	"PoseAnomaly/internal/api/anomaly"
	"PoseAnomaly/internal/entity"
	"PoseAnomaly/internal/pose"
	contextPkg "PoseAnomaly/pkg/context"
	"PoseAnomaly/pkg/handlerUtil"
	"PoseAnomaly/pkg/log"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"golang.org/x/net/context"
)

const (
	requestTimeout     = 10 * time.Second
	wsMaxReadTimeout   = 60 * time.Second
	wsMaxWriteDuration = 10 * time.Second
)

// decodePayload checks the model before touching the body so an unloaded
// model is reported even for unreadable requests.
func (h *AnomalyHandler) decodePayload(contentType string, body []byte) (entity.LandmarkPayload, error) {
	var payload entity.LandmarkPayload

	if err := h.anomalyService.Ready(); err != nil {
		return payload, err
	}
	if err := h.utils.DecodeBody(contentType, body, &payload); err != nil {
		return payload, fmt.Errorf("%w: %v", pose.ErrMalformedInput, err)
	}
	if err := h.validator.Struct(payload); err != nil {
		return payload, fmt.Errorf("%w: %v", pose.ErrMalformedInput, err)
	}

	return payload, nil
}

func (h *AnomalyHandler) DetectAnomaly(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id":   requestID,
		"path":         ctx.Path(),
		"content_type": ctx.Get(fiber.HeaderContentType),
		"body_size":    len(ctx.Body()),
	}).Debug("Processing detect anomaly request")

	payload, err := h.decodePayload(ctx.Get(fiber.HeaderContentType), ctx.Body())
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "decode_payload")
	}

	resp, err := h.anomalyService.DetectAnomaly(c, payload)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "detect_anomaly")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, resp)
	}
}

func (h *AnomalyHandler) handleWebSocket(c *websocket.Conn) {
	requestID, _ := c.Locals("X-Request-ID").(string)
	if requestID == "" {
		requestID = "unknown"
	}

	h.log.WithField("request_id", requestID).Info("Anomaly WebSocket client connected")
	defer h.log.WithField("request_id", requestID).Info("Anomaly WebSocket client disconnected")

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	for seq := 1; ; seq++ {
		if err := c.SetReadDeadline(time.Now().Add(wsMaxReadTimeout)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Errorf("Anomaly WebSocket error: %v", err)
			}
			break
		}

		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			h.log.Warnf("Received unexpected message type: %d", messageType)
			continue
		}

		reply := h.scoreMessage(fmt.Sprintf("%s-%d", requestID, seq), message)

		if err := c.SetWriteDeadline(time.Now().Add(wsMaxWriteDuration)); err != nil {
			h.log.Errorf("Error setting write deadline: %v", err)
			break
		}
		if err := c.WriteJSON(reply); err != nil {
			h.log.Errorf("Error writing JSON response: %v", err)
			break
		}
	}
}

// scoreMessage runs one websocket message through the same path as the
// HTTP endpoint and returns either the response or the error body.
func (h *AnomalyHandler) scoreMessage(requestID string, message []byte) interface{} {
	ctx, cancel := context.WithTimeout(contextPkg.WithRequestID(context.Background(), requestID), requestTimeout)
	defer cancel()

	payload, err := h.decodePayload(fiber.MIMEApplicationJSON, message)
	if err == nil {
		var resp anomaly.DetectAnomalyResponse
		resp, err = h.anomalyService.DetectAnomaly(ctx, payload)
		if err == nil {
			return resp
		}
	}

	status, body := handlerUtil.Classify(err)
	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"status":     status,
		"code":       body.Code,
		"error":      err.Error(),
	}).Warn("WebSocket detection failed")
	return body
}

func (h *AnomalyHandler) ListAnalyses(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	req := anomaly.ListAnalysesRequest{Page: 1, Limit: 20}
	if err := ctx.QueryParser(&req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}
	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	resp, err := h.anomalyService.ListAnalyses(c, req)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "list_analyses")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, resp)
	}
}

func (h *AnomalyHandler) GetAnalysis(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	resp, err := h.anomalyService.GetAnalysis(c, ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_analysis")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, resp)
	}
}
