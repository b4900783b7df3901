package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/siteroast/siteroast/internal/metrics"
	"github.com/siteroast/siteroast/internal/ratelimit"
	"github.com/siteroast/siteroast/internal/roast"
	storagememory "github.com/siteroast/siteroast/internal/storage/memory"
	storememory "github.com/siteroast/siteroast/internal/store/memory"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

const (
	wellFormedID      = "0191d2a8-0000-7000-8000-0000000000aa"
	wellFormedVisitor = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
)

type fakeGate struct{ err error }

func (g *fakeGate) Check(_ context.Context, _ string) error { return g.err }

type fakeCapturer struct {
	image    []byte
	err      error
	captures int
}

func (c *fakeCapturer) Capture(_ context.Context, _ string) ([]byte, error) {
	c.captures++
	return c.image, c.err
}

type fakeCritic struct {
	critique roast.Critique
	err      error
}

func (c *fakeCritic) Analyze(_ context.Context, _ []byte) (roast.Critique, error) {
	return c.critique, c.err
}

type fakeIDGen struct{ next int }

func (g *fakeIDGen) NewID() (string, error) {
	g.next++
	return wellFormedID[:len(wellFormedID)-1] + string(rune('a'+g.next)), nil
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func apiCritique() roast.Critique {
	return roast.Critique{
		Verdict:          77,
		MayhemMeter:      3,
		Profile:          "The Minimalist Who Tried",
		OpeningStatement: "Honestly, not terrible.",
		CaseFiles:        "A detailed accounting of the remaining sins.",
		SpiritAnimal:     "A very tidy cat",
		RehabilitationProgram: roast.RehabilitationProgram{
			PriorityDirective: "Fix the footer.",
			CorrectiveActions: []roast.CorrectiveAction{
				{Offense: "a", Remedy: "b"},
				{Offense: "c", Remedy: "d"},
				{Offense: "e", Remedy: "f"},
				{Offense: "g", Remedy: "h"},
			},
		},
	}
}

type fixture struct {
	gate     *fakeGate
	capturer *fakeCapturer
	critic   *fakeCritic
	blobs    *storagememory.BlobStore
	records  *storememory.RecordStore
	clock    *fakeClock
	server   *Server
}

func newFixture(allowList ...string) *fixture {
	f := &fixture{
		gate:     &fakeGate{},
		capturer: &fakeCapturer{image: []byte("jpeg")},
		critic:   &fakeCritic{critique: apiCritique()},
		blobs:    storagememory.NewBlobStore(),
		records:  storememory.NewRecordStore(),
		clock:    &fakeClock{now: time.Unix(1700000000, 0).UTC()},
	}
	svc := roast.NewService(
		f.gate,
		f.capturer,
		f.critic,
		f.blobs,
		f.records,
		&fakeIDGen{},
		f.clock,
		roast.ServiceConfig{},
		nil,
	)
	limiter := ratelimit.New(ratelimit.Config{
		Window:    15 * time.Minute,
		Max:       3,
		AllowList: allowList,
	}, f.clock)
	f.server = NewServer(svc, f.records, limiter, nil)
	return f
}

func postRoast(t *testing.T, f *fixture, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/roast", bytes.NewBufferString(body))
	req.RemoteAddr = "203.0.113.7:51234"
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSubmitRoast_Succeeds(t *testing.T) {
	t.Parallel()

	f := newFixture()
	rec := postRoast(t, f, `{"url":"https://example.com","visitorId":"`+wellFormedVisitor+`"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var got roast.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "https://example.com", got.URL)
	require.Equal(t, wellFormedVisitor, got.VisitorID)
	require.NoError(t, got.Critique.Validate())
	require.NotEmpty(t, got.ImageURL)
	require.Equal(t, 1, f.records.Len())
	require.Equal(t, 1, f.blobs.Len())
}

func TestSubmitRoast_InvalidJSON(t *testing.T) {
	t.Parallel()

	f := newFixture()
	rec := postRoast(t, f, `{invalid`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid JSON")
}

func TestSubmitRoast_InvalidVisitorID(t *testing.T) {
	t.Parallel()

	f := newFixture()
	rec := postRoast(t, f, `{"url":"https://example.com","visitorId":"not-a-uuid"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid visitor id")
	require.Zero(t, f.capturer.captures)
}

func TestSubmitRoast_PrivateURLRejected(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.gate.err = roast.NewFailure(roast.KindPrivacyViolation, "URL is not publicly accessible", errors.New("loopback"))

	rec := postRoast(t, f, `{"url":"http://127.0.0.1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "not publicly accessible")
	// No capture attempted, nothing persisted.
	require.Zero(t, f.capturer.captures)
	require.Zero(t, f.records.Len())
	require.Zero(t, f.blobs.Len())
}

func TestSubmitRoast_CaptureTimeout(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.capturer.err = roast.NewFailure(roast.KindCaptureTimeout, "the site took too long to load", context.DeadlineExceeded)

	rec := postRoast(t, f, `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "took too long to load")
	require.Zero(t, f.records.Len())
}

func TestSubmitRoast_GenerationFailureIsGeneric(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.critic.err = roast.NewFailure(roast.KindGeneration, "analysis failed, please try again",
		errors.New("provider status 500: secret internal detail"))

	rec := postRoast(t, f, `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "analysis failed")
	require.NotContains(t, rec.Body.String(), "secret internal detail")
	require.Zero(t, f.records.Len())
}

func TestSubmitRoast_RateLimited(t *testing.T) {
	t.Parallel()

	f := newFixture()
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, postRoast(t, f, `{"url":"https://example.com"}`).Code)
	}

	rec := postRoast(t, f, `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	// The 4th request never ran the pipeline.
	require.Equal(t, 3, f.capturer.captures)
	require.Equal(t, 3, f.records.Len())
}

func TestSubmitRoast_AllowListedAddressBypassesLimit(t *testing.T) {
	t.Parallel()

	f := newFixture("203.0.113.7")
	for i := 0; i < 6; i++ {
		require.Equal(t, http.StatusOK, postRoast(t, f, `{"url":"https://example.com"}`).Code)
	}
}

func TestGetRoast_MalformedID(t *testing.T) {
	t.Parallel()

	f := newFixture()
	req := httptest.NewRequest(http.MethodGet, "/roasts/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid roast id")
}

func TestGetRoast_AbsentID(t *testing.T) {
	t.Parallel()

	f := newFixture()
	req := httptest.NewRequest(http.MethodGet, "/roasts/"+wellFormedID, nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "roast not found")
}

func TestGetRoast_ReturnsRecord(t *testing.T) {
	t.Parallel()

	f := newFixture()
	stored := roast.Record{
		ID:        wellFormedID,
		URL:       "https://example.com",
		Critique:  apiCritique(),
		ImageURL:  "memory://screenshots/x.jpg",
		CreatedAt: f.clock.Now(),
	}
	require.NoError(t, f.records.Insert(context.Background(), stored))

	req := httptest.NewRequest(http.MethodGet, "/roasts/"+wellFormedID, nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got roast.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, stored.ID, got.ID)
}

func TestListRecent_ReturnsThreeNewest(t *testing.T) {
	t.Parallel()

	f := newFixture()
	base := f.clock.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, f.records.Insert(context.Background(), roast.Record{
			ID:        wellFormedID[:len(wellFormedID)-1] + string(rune('0'+i)),
			URL:       "https://example.com",
			Critique:  apiCritique(),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	req := httptest.NewRequest(http.MethodGet, "/roasts", nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []roast.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 3)
	require.True(t, got[0].CreatedAt.After(got[1].CreatedAt))
	require.True(t, got[1].CreatedAt.After(got[2].CreatedAt))
}

func TestListRecent_EmptyStoreReturnsEmptyList(t *testing.T) {
	t.Parallel()

	f := newFixture()
	req := httptest.NewRequest(http.MethodGet, "/roasts", nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "[]", rec.Body.String())
}

func TestListMine_MalformedVisitorID(t *testing.T) {
	t.Parallel()

	f := newFixture()
	req := httptest.NewRequest(http.MethodGet, "/roasts/mine/nope", nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMine_NoneFound(t *testing.T) {
	t.Parallel()

	f := newFixture()
	req := httptest.NewRequest(http.MethodGet, "/roasts/mine/"+wellFormedVisitor, nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListMine_ReturnsVisitorRecords(t *testing.T) {
	t.Parallel()

	f := newFixture()
	require.NoError(t, f.records.Insert(context.Background(), roast.Record{
		ID:        wellFormedID,
		URL:       "https://example.com",
		Critique:  apiCritique(),
		VisitorID: wellFormedVisitor,
		CreatedAt: f.clock.Now(),
	}))

	req := httptest.NewRequest(http.MethodGet, "/roasts/mine/"+wellFormedVisitor, nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []roast.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, wellFormedVisitor, got[0].VisitorID)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	f := newFixture()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRequestIDHeaderSet(t *testing.T) {
	t.Parallel()

	f := newFixture()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
