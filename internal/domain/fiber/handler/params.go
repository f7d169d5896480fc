package handler

import (
	"fmt"
	"strconv"

	"github.com/fadilmartias/interview-pipeline/internal/apperror"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func uuidParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperror.Wrap(apperror.ErrInvalidInput, fmt.Errorf("%s must be a UUID", name))
	}
	return id, nil
}

func intQuery(c *fiber.Ctx, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return apperror.Wrap(apperror.ErrInvalidInput, fmt.Errorf("malformed request body: %w", err))
	}
	return nil
}
