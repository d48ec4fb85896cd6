package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medvault_backend/pkg/reqctx"
)

// body is the JSON shape of every response: {"data": ...} or {"error": "..."}.
type body struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func reply(c fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(body{Data: data})
}

func fail(c fiber.Ctx, status int, msg string) error {
	if msg == "" {
		msg = fiber.ErrInternalServerError.Message
	}
	return c.Status(status).JSON(body{Error: msg})
}

func ok(c fiber.Ctx, data any) error      { return reply(c, fiber.StatusOK, data) }
func created(c fiber.Ctx, data any) error { return reply(c, fiber.StatusCreated, data) }
func noContent(c fiber.Ctx) error         { return c.SendStatus(fiber.StatusNoContent) }

func badRequest(c fiber.Ctx, msg string) error { return fail(c, fiber.StatusBadRequest, msg) }
func notFound(c fiber.Ctx, msg string) error   { return fail(c, fiber.StatusNotFound, msg) }
func conflict(c fiber.Ctx, msg string) error   { return fail(c, fiber.StatusConflict, msg) }
func tooLarge(c fiber.Ctx, msg string) error   { return fail(c, fiber.StatusRequestEntityTooLarge, msg) }
func unprocessable(c fiber.Ctx, msg string) error {
	return fail(c, fiber.StatusUnprocessableEntity, msg)
}

func unauthorized(c fiber.Ctx) error { return fail(c, fiber.StatusUnauthorized, "unauthorized") }
func forbidden(c fiber.Ctx) error    { return fail(c, fiber.StatusForbidden, "forbidden") }

// internalError hides err from the client and logs it with the request id.
func internalError(c fiber.Ctx, err error) error {
	attrs := append(reqctx.LogAttrs(c.Context()), "method", c.Method(), "path", c.Path(), "err", err)
	slog.ErrorContext(c.Context(), "request failed", attrs...)
	return fail(c, fiber.StatusInternalServerError, "internal server error")
}
