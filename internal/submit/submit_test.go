package submit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aburossi/textboxv2/internal/model"
)

func testEnvelope() *model.ExportEnvelope {
	sig := "abc123"
	return &model.ExportEnvelope{
		Identifier: "jana",
		Payload:    model.DataStore{"a1": {"s1": &model.UnitData{Answer: "<p>x</p>"}}},
		Signature:  &sig,
		CreatedAt:  time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC),
	}
}

func TestSubmitNotConfigured(t *testing.T) {
	_, err := New("").Submit(context.Background(), testEnvelope())
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Submit with empty URL = %v, want ErrNotConfigured", err)
	}
}

func TestSubmitSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var env model.ExportEnvelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if env.Identifier != "jana" {
			t.Errorf("identifier = %q", env.Identifier)
		}
		json.NewEncoder(w).Encode(model.SubmitResult{
			Status:   "success",
			FileName: "jana_2026-08-31.json",
		})
	}))
	defer srv.Close()

	result, err := New(srv.URL).Submit(context.Background(), testEnvelope())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.FileName != "jana_2026-08-31.json" {
		t.Errorf("result = %+v", result)
	}
}

func TestSubmitServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(model.SubmitResult{Status: "error", Message: "quota exceeded"})
	}))
	defer srv.Close()

	_, err := New(srv.URL).Submit(context.Background(), testEnvelope())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("error %q does not carry the server message", err)
	}
}

func TestSubmitRejectedStatusOn200(t *testing.T) {
	// A 200 with a non-success status field is still a failure.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.SubmitResult{Status: "error", Message: "bad signature"})
	}))
	defer srv.Close()

	_, err := New(srv.URL).Submit(context.Background(), testEnvelope())
	if err == nil || !strings.Contains(err.Error(), "bad signature") {
		t.Errorf("Submit = %v, want rejection with server message", err)
	}
}

func TestSubmitGarbageResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>proxy error</html>"))
	}))
	defer srv.Close()

	if _, err := New(srv.URL).Submit(context.Background(), testEnvelope()); err == nil {
		t.Error("expected decode error for non-JSON response")
	}
}
