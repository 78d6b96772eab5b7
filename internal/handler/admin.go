package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/meeting-room-bot/internal/ledger"
	"github.com/iliyamo/meeting-room-bot/internal/logger"
	"github.com/iliyamo/meeting-room-bot/internal/model"
)

type StatsReader interface {
	Summarize(ctx context.Context) ([]model.UserSummary, error)
}

type Sweeper interface {
	RunOnce(ctx context.Context) (ledger.SweepResult, error)
}

type Announcer interface {
	Announce(ctx context.Context, actorID int64, actor, text string) error
}

// AdminHandler exposes the administrator's chat tools over HTTP.
type AdminHandler struct {
	stats    StatsReader
	sweeper  Sweeper
	announce Announcer
	adminID  int64
	log      *zap.Logger
}

func NewAdminHandler(stats StatsReader, sweeper Sweeper, announce Announcer, adminID int64, log *zap.Logger) *AdminHandler {
	return &AdminHandler{stats: stats, sweeper: sweeper, announce: announce, adminID: adminID, log: logger.OrNop(log)}
}

// GetStats returns per-user command activity, most recent first.
func (h *AdminHandler) GetStats(c echo.Context) error {
	sums, err := h.stats.Summarize(c.Request().Context())
	if err != nil {
		h.log.Error("summarize activity", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to read stats"})
	}
	if sums == nil {
		sums = []model.UserSummary{}
	}
	return c.JSON(http.StatusOK, echo.Map{"users": sums})
}

// PostSweep runs the expiry sweep now.  A failed rewrite answers 500 with
// the partition so the caller can repair the table.
func (h *AdminHandler) PostSweep(c echo.Context) error {
	res, err := h.sweeper.RunOnce(c.Request().Context())
	body := echo.Map{"removed": nonNil(res.Removed), "kept": nonNil(res.Kept)}
	switch {
	case errors.Is(err, ledger.ErrSweepRewrite):
		body["error"] = err.Error()
		return c.JSON(http.StatusInternalServerError, body)
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, body)
}

type announceRequest struct {
	Text string `json:"text"`
}

// PostAnnounce broadcasts {"text": "..."} to the group.
func (h *AdminHandler) PostAnnounce(c echo.Context) error {
	var req announceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "text is required"})
	}
	if err := h.announce.Announce(c.Request().Context(), h.adminID, "admin", text); err != nil {
		h.log.Error("announce", zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "announcement not delivered"})
	}
	return c.NoContent(http.StatusNoContent)
}

func nonNil(bs []model.Booking) []model.Booking {
	if bs == nil {
		return []model.Booking{}
	}
	return bs
}
