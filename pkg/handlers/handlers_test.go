package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnavshah/pharmacal-api/pkg/auth"
	"github.com/arnavshah/pharmacal-api/pkg/config"
	"github.com/arnavshah/pharmacal-api/pkg/database"
	"github.com/arnavshah/pharmacal-api/pkg/models"
	"github.com/arnavshah/pharmacal-api/pkg/notify"
)

// 2024-06-03 is a Monday.
var monday = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

type fixture struct {
	h      *Handler
	r      *gin.Engine
	store  *database.MemoryStore
	mailer *notify.RecordingMailer
	token  string
}

func testConfig() *config.Config {
	return &config.Config{
		JWT:              config.JWTConfig{Secret: "test_secret", Expiration: time.Hour},
		BookingRefSecret: "ref_secret",
		CORS:             config.CORSConfig{AllowOrigins: []string{"http://localhost:3000"}, MaxAge: time.Hour},
		Calendar: config.CalendarConfig{
			Timezone:    "UTC",
			HorizonDays: 14,
			Columns:     2,
			AMStart:     "09:00",
			AMEnd:       "12:45",
			PMStart:     "13:15",
			PMEnd:       "17:00",
		},
	}
}

func newFixture(t *testing.T, slots ...models.Slot) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	store := database.NewMemoryStore(slots...)
	require.NoError(t, store.UpsertStaff(context.Background(), models.StaffMember{Name: "Alice", Email: "alice@pcn.example"}))
	mailer := notify.NewRecordingMailer()
	dispatcher := notify.NewDispatcher(mailer, models.DefaultSessionHours(), nil)

	h, err := New(cfg, store, dispatcher, nil, nil)
	require.NoError(t, err)
	h.now = func() time.Time { return monday.Add(8 * time.Hour) }

	token, err := h.Auth.CreateToken("admin")
	require.NoError(t, err)

	return &fixture{h: h, r: h.Router(h.Logger, nil), store: store, mailer: mailer, token: token}
}

func (f *fixture) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func (f *fixture) admin() map[string]string {
	return map[string]string{"Authorization": "Bearer " + f.token}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func assigned(code string, offset, column int, shift models.Shift, name string) models.Slot {
	return models.Slot{
		UniqueCode:   code,
		Date:         monday.AddDate(0, 0, offset),
		Shift:        shift,
		ColumnIndex:  column,
		AssignedName: models.AssigneeFromRaw(name),
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/admin/availability", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodGet, "/admin/availability", nil, map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodOptions, "/api/slots/a/cancel", nil, map[string]string{
		"Origin":                         "http://localhost:3000",
		"Access-Control-Request-Method":  http.MethodPost,
		"Access-Control-Request-Headers": "X-Booking-Ref",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = f.do(http.MethodGet, "/health", nil, map[string]string{"Origin": "http://evil.example"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	hash, err := auth.HashPassword("s3cret")
	require.NoError(t, err)
	require.NoError(t, f.store.CreateAdmin(context.Background(), "admin", hash))

	w := f.do(http.MethodPost, "/admin/login", gin.H{"username": "admin", "password": "s3cret"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["access_token"])

	w = f.do(http.MethodPost, "/admin/login", gin.H{"username": "admin", "password": "bad"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPublicListingHidesRequesterAndUnassigned(t *testing.T) {
	booked := assigned("b", 0, 1, models.ShiftAM, "Alice")
	booked.Booked = true
	booked.RequesterName = "Riverside"
	booked.RequesterContact = "r@riverside.example"
	f := newFixture(t,
		assigned("a", 0, 0, models.ShiftPM, "Alice"),
		booked,
		assigned("u", 1, 0, models.ShiftAM, "None"),
	)

	w := f.do(http.MethodGet, "/api/slots", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "r@riverside.example")

	slots := decode(t, w)["slots"].([]interface{})
	require.Len(t, slots, 2)
	first := slots[0].(map[string]interface{})
	assert.Equal(t, "b", first["unique_code"])
	assert.Equal(t, "booked", first["status"])
	assert.Equal(t, "09:00 - 12:45", first["session"])

	w = f.do(http.MethodGet, "/admin/slots", nil, f.admin())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "r@riverside.example")
}

func TestBookAndCancelWithReference(t *testing.T) {
	f := newFixture(t, assigned("a", 0, 0, models.ShiftAM, "Alice"))

	w := f.do(http.MethodPost, "/api/slots/a/book",
		gin.H{"requester_name": "Riverside", "requester_contact": "r@riverside.example"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ref := decode(t, w)["booking_ref"].(string)
	assert.Len(t, f.mailer.Sent(), 2)

	w = f.do(http.MethodPost, "/api/slots/a/cancel", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodPost, "/api/slots/a/cancel", nil, map[string]string{"X-Booking-Ref": "a.deadbeef"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodPost, "/api/slots/a/cancel", nil, map[string]string{"X-Booking-Ref": ref})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	s, err := f.store.FindSlotByCode(context.Background(), "a")
	require.NoError(t, err)
	assert.False(t, s.Booked)
	assert.Equal(t, "Alice", s.Assignee())

	w = f.do(http.MethodPost, "/api/slots/a/cancel", nil, f.admin())
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_STATE", decode(t, w)["code"])
}

func TestCancelWithReferenceFailsClosed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, assigned("a", 0, 0, models.ShiftAM, "Alice"), assigned("u", 0, 1, models.ShiftAM, "Alice"))

	w := f.do(http.MethodPost, "/api/slots/a/book",
		gin.H{"requester_name": "Riverside", "requester_contact": "r@riverside.example"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	f.store.FailOn("find", "a", errors.New("sheet unavailable"))
	w = f.do(http.MethodPost, "/api/slots/a/cancel", nil, map[string]string{"X-Booking-Ref": "a.deadbeef"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "STORAGE", decode(t, w)["code"])
	f.store.FailOn("find", "a", nil)

	s, err := f.store.FindSlotByCode(ctx, "a")
	require.NoError(t, err)
	assert.True(t, s.Booked)
	assert.Equal(t, "Riverside", s.RequesterName)

	// An unbooked slot has no booking a reference could name.
	w = f.do(http.MethodPost, "/api/slots/u/cancel", nil, map[string]string{"X-Booking-Ref": "u.deadbeef"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_STATE", decode(t, w)["code"])
}

func TestStaleReferenceCannotCancelRebooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, assigned("a", 0, 0, models.ShiftAM, "Alice"))
	request := gin.H{"requester_name": "Riverside", "requester_contact": "r@riverside.example"}

	w := f.do(http.MethodPost, "/api/slots/a/book", request, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	oldRef := decode(t, w)["booking_ref"].(string)

	w = f.do(http.MethodPost, "/api/slots/a/cancel", nil, map[string]string{"X-Booking-Ref": oldRef})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Same requester books the same slot again.
	w = f.do(http.MethodPost, "/api/slots/a/book", request, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	newRef := decode(t, w)["booking_ref"].(string)
	assert.NotEqual(t, oldRef, newRef)

	w = f.do(http.MethodPost, "/api/slots/a/cancel", nil, map[string]string{"X-Booking-Ref": oldRef})
	assert.Equal(t, http.StatusForbidden, w.Code)

	s, err := f.store.FindSlotByCode(ctx, "a")
	require.NoError(t, err)
	assert.True(t, s.Booked)

	w = f.do(http.MethodPost, "/api/slots/a/cancel", nil, map[string]string{"X-Booking-Ref": newRef})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestBookErrors(t *testing.T) {
	f := newFixture(t, assigned("u", 0, 0, models.ShiftAM, "None"), assigned("a", 0, 1, models.ShiftAM, "Alice"))
	valid := gin.H{"requester_name": "Riverside", "requester_contact": "r@riverside.example"}

	w := f.do(http.MethodPost, "/api/slots/u/book", valid, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_BOOKING", decode(t, w)["code"])

	w = f.do(http.MethodPost, "/api/slots/missing/book", valid, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "INVALID_BOOKING", decode(t, w)["code"])

	w = f.do(http.MethodPost, "/api/slots/a/book", gin.H{"requester_name": "Riverside"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION", decode(t, w)["code"])
}

func TestAvailabilityGrid(t *testing.T) {
	f := newFixture(t, assigned("a", 0, 0, models.ShiftAM, "Alice"))

	w := f.do(http.MethodGet, "/admin/availability?from=2024-06-03&to=2024-06-09", nil, f.admin())
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	cells := body["cells"].([]interface{})
	// five weekdays, two columns, two shifts
	assert.Len(t, cells, 20)
	first := cells[0].(map[string]interface{})
	assert.Equal(t, "Alice", first["assigned_name"])
	assert.Equal(t, "a", first["unique_code"])
}

func TestAvailabilityWindowIsCapped(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/admin/availability?from=2024-01-01&to=2026-01-01", nil, f.admin())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION", decode(t, w)["code"])

	w = f.do(http.MethodGet, "/admin/availability?from=2024-06-10&to=2024-06-03", nil, f.admin())
	assert.Equal(t, http.StatusBadRequest, w.Code)

	payload := gin.H{"from": "2024-01-01", "to": "2030-01-01", "assignments": []gin.H{}}
	w = f.do(http.MethodPost, "/admin/availability/preview", payload, f.admin())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateAvailability(t *testing.T) {
	booked := assigned("b", 0, 1, models.ShiftAM, "Alice")
	booked.Booked = true
	booked.RequesterName = "Riverside"
	booked.RequesterContact = "r@riverside.example"
	f := newFixture(t, assigned("a", 0, 0, models.ShiftAM, "Alice"), booked)

	payload := gin.H{
		"from": "2024-06-03",
		"to":   "2024-06-07",
		"assignments": []gin.H{
			{"date": "2024-06-03", "column": 0, "shift": "AM", "assigned_name": "Bob"},
			{"date": "2024-06-03", "column": 1, "shift": "AM", "assigned_name": nil},
			{"date": "2024-06-04", "column": 0, "shift": "pm", "assigned_name": "Carol"},
		},
	}

	w := f.do(http.MethodPost, "/admin/availability/preview", payload, f.admin())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode(t, w)["mutations"].([]interface{}), 2)

	w = f.do(http.MethodPut, "/admin/availability", payload, f.admin())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["ok"])
	assert.Len(t, body["outcomes"].([]interface{}), 2)

	a, err := f.store.FindSlotByCode(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "Bob", a.Assignee())

	b, err := f.store.FindSlotByCode(context.Background(), "b")
	require.NoError(t, err)
	assert.True(t, b.Booked)

	w = f.do(http.MethodPost, "/admin/availability/preview", payload, f.admin())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["mutations"].([]interface{}))
}

func TestUpdateAvailabilityRejectsOutOfWindow(t *testing.T) {
	f := newFixture(t)
	payload := gin.H{
		"from":        "2024-06-03",
		"to":          "2024-06-07",
		"assignments": []gin.H{{"date": "2024-06-20", "column": 0, "shift": "AM", "assigned_name": "Bob"}},
	}

	w := f.do(http.MethodPut, "/admin/availability", payload, f.admin())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStaffAndRequesters(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/admin/staff", gin.H{"name": "Bob", "email": "not-an-email"}, f.admin())
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/admin/staff", gin.H{"name": "Bob", "email": "bob@pcn.example"}, f.admin())
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/admin/staff", nil, f.admin())
	assert.Contains(t, w.Body.String(), "bob@pcn.example")

	w = f.do(http.MethodDelete, "/admin/staff", gin.H{"name": "Bob", "email": "other@pcn.example"}, f.admin())
	assert.Equal(t, http.StatusNotFound, w.Code)

	surgery := gin.H{"name": "Riverside", "email": "r@riverside.example", "list_size": 9000}
	for i := 0; i < 2; i++ {
		w = f.do(http.MethodPost, "/admin/requesters", surgery, f.admin())
		require.Equal(t, http.StatusOK, w.Code)
	}
	w = f.do(http.MethodGet, "/api/requesters", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["requesters"].([]interface{}), 1)
	assert.NotContains(t, w.Body.String(), "r@riverside.example")
}

func TestCoverRequests(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/cover-requests", gin.H{
		"cover_date": "2024-06-05", "requester": "Riverside", "name": "Dr Who", "session": "pm", "reason": "Leave",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(http.MethodPost, "/api/cover-requests", gin.H{"cover_date": "2024-06-05", "session": "XX"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, "/admin/cover-requests", nil, f.admin())
	require.Equal(t, http.StatusOK, w.Code)
	reqs := decode(t, w)["cover_requests"].([]interface{})
	require.Len(t, reqs, 1)
	assert.Equal(t, "PM", reqs[0].(map[string]interface{})["session"])
}

func TestSheetImportExport(t *testing.T) {
	f := newFixture(t)
	sheet := strings.Join([]string{
		"unique_code,Date,am_pm,pharm,booked,surgery,email",
		"1717372800-am-1,2024-06-03,am,1,FALSE,,",
		",2024-06-03,pm,2,TRUE,Riverside,r@riverside.example",
		"bad,not-a-date,am,1,FALSE,,",
	}, "\n")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("sheet_file", "sheet.csv")
	require.NoError(t, err)
	_, _ = part.Write([]byte(sheet))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/admin/slots/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+f.token)
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode(t, w)
	assert.Equal(t, float64(2), out["imported"])
	assert.Len(t, out["failed"].([]interface{}), 1)

	legacy, err := f.store.FindSlotByCode(context.Background(), "1717372800-am-1")
	require.NoError(t, err)
	assert.Equal(t, 0, legacy.ColumnIndex)
	assert.Equal(t, "Alice", legacy.Assignee())

	w = f.do(http.MethodGet, "/admin/slots/export", nil, f.admin())
	require.Equal(t, http.StatusOK, w.Code)
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "unique_code,Date,am_pm,pharm,pharmacist_name,booked,surgery,email", lines[0])
	assert.Contains(t, w.Body.String(), "TRUE,Riverside,r@riverside.example")
}
