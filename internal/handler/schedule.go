package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/meeting-room-bot/internal/config"
	"github.com/iliyamo/meeting-room-bot/internal/logger"
	"github.com/iliyamo/meeting-room-bot/internal/model"
)

// ScheduleReader is satisfied by *ledger.Ledger.
type ScheduleReader interface {
	SortedView(ctx context.Context) ([]model.Booking, error)
}

type ScheduleHandler struct {
	ledger ScheduleReader
	log    *zap.Logger
}

func NewScheduleHandler(l ScheduleReader, log *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{ledger: l, log: logger.OrNop(log)}
}

// GetSchedule returns the current bookings in chronological order, read
// fresh from the store.
func (h *ScheduleHandler) GetSchedule(c echo.Context) error {
	view, err := h.ledger.SortedView(c.Request().Context())
	if err != nil {
		h.log.Error("read schedule", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to read schedule"})
	}
	if view == nil {
		view = []model.Booking{}
	}
	return c.JSON(http.StatusOK, echo.Map{"timezone": config.Zone, "bookings": view})
}
