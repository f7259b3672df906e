package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sungwon/move-booking/internal/storage"
	"github.com/sungwon/move-booking/internal/validate"
)

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestBookingHandler(store *mockBookingStore) *BookingHandler {
	h := NewBookingHandler(store, "send-booking-email", 0)
	h.now = func() time.Time { return testNow }
	return h
}

func postBooking(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/booking", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeFieldErrors(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var resp struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp.Errors
}

func TestBookingHandler_Created(t *testing.T) {
	store := &mockBookingStore{out: storage.CreatedBooking{
		BookingID:  11,
		CustomerID: 3,
		CreatedAt:  fixedCreatedAt,
		JobID:      "job-1",
	}}
	h := newTestBookingHandler(store)

	rec := postBooking(h, `{"name":"  Ann  ","email":" ann@x.com ","move_date":"2025-06-02","moving_address":" 123 Main St "}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d; body: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["booking_id"] != float64(11) || resp["customer_id"] != float64(3) {
		t.Errorf("unexpected ids in response %v", resp)
	}
	if resp["created_at"] != "2025-06-01T12:00:00Z" {
		t.Errorf("unexpected created_at %v", resp["created_at"])
	}
	if len(resp) != 3 {
		t.Errorf("expected exactly three keys, got %v", resp)
	}

	if store.callCount() != 1 {
		t.Fatalf("expected 1 store call, got %d", store.callCount())
	}
	nb := store.calls[0]
	if nb.Name != "Ann" || nb.Email != "ann@x.com" || nb.MovingAddress != "123 Main St" {
		t.Errorf("expected trimmed fields, got %+v", nb)
	}
	if nb.QueueName != "send-booking-email" {
		t.Errorf("unexpected queue name %q", nb.QueueName)
	}
	if got := validate.FormatMoveDate(nb.MoveDate); got != "2025-06-02" {
		t.Errorf("unexpected move date %s", got)
	}
}

func TestBookingHandler_SameDayAllowed(t *testing.T) {
	store := &mockBookingStore{out: storage.CreatedBooking{BookingID: 1, CustomerID: 1, CreatedAt: fixedCreatedAt}}
	rec := postBooking(newTestBookingHandler(store), `{"name":"Ann","email":"ann@x.com","move_date":"2025-06-01","moving_address":"123 Main St"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d; body: %s", rec.Code, rec.Body.String())
	}
}

func TestBookingHandler_ValidationErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantErrors map[string]string
	}{
		{
			name:       "invalid json",
			body:       `{"name":`,
			wantErrors: map[string]string{"general": validate.MsgInvalidBody},
		},
		{
			name:       "array body",
			body:       `[1,2,3]`,
			wantErrors: map[string]string{"general": validate.MsgInvalidBody},
		},
		{
			name:       "null body",
			body:       `null`,
			wantErrors: map[string]string{"general": validate.MsgInvalidBody},
		},
		{
			name: "every field invalid",
			body: `{"name":"A","email":"nope","move_date":"2025-05-31","moving_address":"abc"}`,
			wantErrors: map[string]string{
				"name":           validate.MsgName,
				"email":          validate.MsgEmail,
				"move_date":      validate.MsgMoveDatePast,
				"moving_address": validate.MsgMovingAddress,
			},
		},
		{
			name: "wrong types and missing date",
			body: `{"name":42,"email":"ann@x.com","moving_address":"123 Main St"}`,
			wantErrors: map[string]string{
				"name":      validate.MsgName,
				"move_date": validate.MsgMoveDateMissing,
			},
		},
		{
			name:       "unparseable date",
			body:       `{"name":"Ann","email":"ann@x.com","move_date":"next tuesday","moving_address":"123 Main St"}`,
			wantErrors: map[string]string{"move_date": validate.MsgMoveDateFormat},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockBookingStore{}
			rec := postBooking(newTestBookingHandler(store), tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d; body: %s", rec.Code, rec.Body.String())
			}
			got := decodeFieldErrors(t, rec)
			if len(got) != len(tt.wantErrors) {
				t.Errorf("expected errors %v, got %v", tt.wantErrors, got)
			}
			for field, msg := range tt.wantErrors {
				if got[field] != msg {
					t.Errorf("field %s: expected %q, got %q", field, msg, got[field])
				}
			}
			if store.callCount() != 0 {
				t.Error("expected no store call for an invalid submission")
			}
		})
	}
}

func TestBookingHandler_BodyTooLarge(t *testing.T) {
	store := &mockBookingStore{}
	h := NewBookingHandler(store, "send-booking-email", 64)

	body := `{"name":"Ann","email":"ann@x.com","move_date":"2030-01-01","moving_address":"` + strings.Repeat("x", 200) + `"}`
	rec := postBooking(h, body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if decodeFieldErrors(t, rec)["general"] != validate.MsgInvalidBody {
		t.Error("expected general body error for oversized request")
	}
	if store.callCount() != 0 {
		t.Error("expected no store call")
	}
}

func TestBookingHandler_StoreFailure(t *testing.T) {
	store := &mockBookingStore{err: errors.New("pq: deadlock detected")}
	rec := postBooking(newTestBookingHandler(store), `{"name":"Ann","email":"ann@x.com","move_date":"2025-06-02","moving_address":"123 Main St"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["error"] != "Internal server error" {
		t.Errorf("expected generic error, got %q", resp["error"])
	}
	if _, ok := resp["booking_id"]; ok {
		t.Error("expected no ids on failure")
	}
}
