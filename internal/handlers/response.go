// Package handlers implements the JSON API: public page reads, address
// resolution, slug availability, link redirects, and the authoring
// surface over the optimistic engine.
package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"

	"linkpage/internal/engine"
	"linkpage/internal/models"
	"linkpage/internal/relay"
	"linkpage/internal/resolver"
)

// jsonSuccess returns a 200 response with data wrapped in the standard envelope.
func jsonSuccess(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"data":   data,
	})
}

// jsonError returns an error response with the given HTTP status code.
func jsonError(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"status": "error",
		"error":  message,
	})
}

// mapError translates domain errors into HTTP responses. Unreachable
// relays are a 503, not a 404: "could not check" must stay
// distinguishable from "checked, nothing there".
func mapError(c fiber.Ctx, err error) error {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		return jsonError(c, fiber.StatusBadRequest, verr.Error())
	case errors.Is(err, resolver.ErrResolution):
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrNotFound),
		errors.Is(err, engine.ErrNoDocument),
		errors.Is(err, engine.ErrItemNotFound),
		errors.Is(err, resolver.ErrNotFound):
		return jsonError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrPageExists):
		return jsonError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrReadOnly):
		return jsonError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, engine.ErrQuorumFailed):
		return jsonError(c, fiber.StatusBadGateway, err.Error())
	case errors.Is(err, relay.ErrTransport),
		errors.Is(err, engine.ErrSessionLoading),
		errors.Is(err, engine.ErrSessionClosed):
		return jsonError(c, fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return jsonError(c, fiber.StatusGatewayTimeout, err.Error())
	default:
		return jsonError(c, fiber.StatusInternalServerError, err.Error())
	}
}
