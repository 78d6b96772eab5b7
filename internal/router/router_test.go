package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/meeting-room-bot/internal/handler"
	"github.com/iliyamo/meeting-room-bot/internal/ledger"
	"github.com/iliyamo/meeting-room-bot/internal/middleware"
	"github.com/iliyamo/meeting-room-bot/internal/model"
	"github.com/iliyamo/meeting-room-bot/internal/repository"
	"github.com/iliyamo/meeting-room-bot/internal/utils"
)

const (
	secret  = "s3cret"
	adminID = int64(171208804)
)

type fakeStats struct{ sums []model.UserSummary }

func (f fakeStats) Summarize(context.Context) ([]model.UserSummary, error) { return f.sums, nil }

type fakeSweeper struct {
	res ledger.SweepResult
	err error
}

func (f *fakeSweeper) RunOnce(context.Context) (ledger.SweepResult, error) { return f.res, f.err }

type fakeAnnouncer struct{ texts []string }

func (f *fakeAnnouncer) Announce(_ context.Context, _ int64, _, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

func setup(t *testing.T) (http.Handler, *fakeSweeper, *fakeAnnouncer, string) {
	t.Helper()
	loc := time.FixedZone("ICT", 7*3600)
	store := repository.NewMemoryBookingStore(
		model.Row{Date: "22/10/2025", Time: "09:00-10:00", Name: "Dara", TelegramID: "42"},
		model.Row{Date: "21/10/2025", Time: "09:00-10:00", Name: "Sokha", TelegramID: "7"},
	)
	l := ledger.New(store, loc)
	sw := &fakeSweeper{}
	an := &fakeAnnouncer{}
	stats := fakeStats{sums: []model.UserSummary{{Name: "Dara", Total: 1, Last: "20/10/2025 10:00:00",
		Commands: []model.CommandCount{{Command: "/book", Count: 1}}}}}

	e := New(Deps{
		Schedule: handler.NewScheduleHandler(l, nil),
		Admin:    handler.NewAdminHandler(stats, sw, an, adminID, nil),
		Secret:   secret,
		AdminID:  adminID,
	})
	tok, err := utils.NewAccessToken(secret, adminID, middleware.RoleAdmin, 5)
	require.NoError(t, err)
	return e, sw, an, tok.Token
}

func do(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPublicRoutes(t *testing.T) {
	h, _, _, _ := setup(t)

	rec := do(h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = do(h, http.MethodGet, "/v1/schedule", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Timezone string          `json:"timezone"`
		Bookings []model.Booking `json:"bookings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Asia/Phnom_Penh", got.Timezone)
	require.Len(t, got.Bookings, 2)
	assert.Equal(t, "Sokha", got.Bookings[0].Name)
	assert.Equal(t, 2, got.Bookings[0].Index)

	rec = do(h, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "meetroom_http_requests_total")
}

func TestAdminRoutes(t *testing.T) {
	h, sw, an, tok := setup(t)

	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/v1/admin/stats", "", "").Code)

	rec := do(h, http.MethodGet, "/v1/admin/stats", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Dara"`)

	sw.res = ledger.SweepResult{Removed: []model.Booking{{Index: 1, Row: model.Row{Date: "01/01/2025", Time: "09:00-10:00"}}}}
	rec = do(h, http.MethodPost, "/v1/admin/sweep", tok, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kept":[]`)

	sw.err = errors.Join(ledger.ErrSweepRewrite, errors.New("deadlock"))
	rec = do(h, http.MethodPost, "/v1/admin/sweep", tok, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"removed":[{`)

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/v1/admin/announce", tok, `{"text":"  "}`).Code)
	assert.Equal(t, http.StatusNoContent, do(h, http.MethodPost, "/v1/admin/announce", tok, `{"text":"Room closed Friday"}`).Code)
	assert.Equal(t, []string{"Room closed Friday"}, an.texts)
}
