package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/chadiek/interview-call/internal/jobs"
	"github.com/chadiek/interview-call/internal/media"
	"github.com/chadiek/interview-call/internal/session"
)

type fakeStatus struct {
	snap session.Snapshot
	rec  []session.Turn
}

func (f fakeStatus) Status() session.Snapshot   { return f.snap }
func (f fakeStatus) Transcript() []session.Turn { return f.rec }

func TestServer_Healthz(t *testing.T) {
	e := New(fakeStatus{}, nil, nil)
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestServer_Status(t *testing.T) {
	src := fakeStatus{snap: session.Snapshot{
		State:          "listening",
		Connected:      true,
		QuestionNumber: 2,
		Listening:      true,
		ScreenSharing:  true,
	}}
	e := New(src, nil, nil)
	r := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var snap session.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.State != "listening" || snap.QuestionNumber != 2 || !snap.Connected {
		t.Fatalf("snapshot %+v", snap)
	}
}

func TestServer_Transcript(t *testing.T) {
	src := fakeStatus{rec: []session.Turn{{Question: "Q1", Number: 1, Answer: "A1"}}}
	e := New(src, nil, nil)
	r := httptest.NewRequest(http.MethodGet, "/transcript", nil)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	var rec []session.Turn
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rec) != 1 || rec[0].Answer != "A1" {
		t.Fatalf("transcript %+v", rec)
	}
}

func TestServer_Jobs(t *testing.T) {
	catalog, err := jobs.Parse([]byte(`[{"id":"j1","title":"Engineer","company":"Acme"}]`))
	if err != nil {
		t.Fatal(err)
	}
	e := New(fakeStatus{}, catalog, nil)
	r := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	var out []jobs.Job
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].ID != "j1" {
		t.Fatalf("jobs %+v", out)
	}
}

type fakeOffers struct{}

func (fakeOffers) HandleOffer(ctx context.Context, offer media.SessionDescription) (media.SessionDescription, error) {
	return media.SessionDescription{Type: "answer", SDP: "v=0 answer"}, nil
}

func TestServer_Call(t *testing.T) {
	e := New(fakeStatus{}, nil, fakeOffers{})
	body := strings.NewReader(`{"type":"offer","sdp":"v=0 offer"}`)
	r := httptest.NewRequest(http.MethodPost, "/call", body)
	r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var answer media.SessionDescription
	if err := json.Unmarshal(w.Body.Bytes(), &answer); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if answer.Type != "answer" {
		t.Fatalf("answer %+v", answer)
	}
}

func TestServer_CallWithoutProvider(t *testing.T) {
	e := New(fakeStatus{}, nil, nil)
	body := strings.NewReader(`{"type":"offer","sdp":"v=0"}`)
	r := httptest.NewRequest(http.MethodPost, "/call", body)
	r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	e := New(fakeStatus{}, nil, nil)
	r := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Fatalf("metrics output missing default collectors")
	}
}
