package roast

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/siteroast/siteroast/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

type fakeGate struct {
	err    error
	checks int
}

func (g *fakeGate) Check(_ context.Context, _ string) error {
	g.checks++
	return g.err
}

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
	critique Critique
	err      error
	delay    time.Duration
	calls    int
}

func (c *fakeCritic) Analyze(_ context.Context, _ []byte) (Critique, error) {
	c.calls++
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return c.critique, c.err
}

type fakeBlobStore struct {
	url     string
	err     error
	puts    int
	lastKey string
}

func (b *fakeBlobStore) PutObject(_ context.Context, path string, _ string, r io.Reader) (string, error) {
	b.puts++
	b.lastKey = path
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	return b.url, b.err
}

type fakeRecordStore struct {
	inserted  []Record
	insertErr error
}

func (s *fakeRecordStore) Insert(_ context.Context, record Record) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, record)
	return nil
}

func (s *fakeRecordStore) Get(_ context.Context, _ string) (Record, error) {
	return Record{}, ErrRecordNotFound
}

func (s *fakeRecordStore) ListRecent(_ context.Context, _ int) ([]Record, error) {
	return nil, nil
}

func (s *fakeRecordStore) ListByVisitor(_ context.Context, _ string) ([]Record, error) {
	return nil, nil
}

type fakeIDGen struct {
	id  string
	err error
}

func (g *fakeIDGen) NewID() (string, error) { return g.id, g.err }

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func testCritique() Critique {
	return Critique{
		Verdict:          55,
		MayhemMeter:      6,
		Profile:          "The Template Refugee",
		OpeningStatement: "Oh dear.",
		CaseFiles:        "Detailed breakdown.",
		SpiritAnimal:     "A confused pigeon",
		RehabilitationProgram: RehabilitationProgram{
			PriorityDirective: "Less is more.",
			CorrectiveActions: []CorrectiveAction{
				{Offense: "a", Remedy: "b"},
				{Offense: "c", Remedy: "d"},
				{Offense: "e", Remedy: "f"},
				{Offense: "g", Remedy: "h"},
			},
		},
	}
}

type serviceFixture struct {
	gate     *fakeGate
	capturer *fakeCapturer
	critic   *fakeCritic
	blobs    *fakeBlobStore
	records  *fakeRecordStore
	svc      *Service
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		gate:     &fakeGate{},
		capturer: &fakeCapturer{image: []byte("jpeg-bytes")},
		critic:   &fakeCritic{critique: testCritique()},
		blobs:    &fakeBlobStore{url: "https://cdn.example/screenshots/rec-1.jpg"},
		records:  &fakeRecordStore{},
	}
	f.svc = NewService(
		f.gate,
		f.capturer,
		f.critic,
		f.blobs,
		f.records,
		&fakeIDGen{id: "rec-1"},
		&fakeClock{now: time.Unix(1700000000, 0).UTC()},
		ServiceConfig{BlobPrefix: "screenshots"},
		nil,
	)
	return f
}

func TestRoast_Succeeds(t *testing.T) {
	t.Parallel()

	f := newServiceFixture()
	record, err := f.svc.Roast(context.Background(), "https://example.com", "visitor-1")
	require.NoError(t, err)

	require.Equal(t, "rec-1", record.ID)
	require.Equal(t, "https://example.com", record.URL)
	require.Equal(t, "https://cdn.example/screenshots/rec-1.jpg", record.ImageURL)
	require.Equal(t, "visitor-1", record.VisitorID)
	require.Equal(t, testCritique(), record.Critique)
	require.NoError(t, record.Critique.Validate())

	require.Len(t, f.records.inserted, 1)
	require.Equal(t, "screenshots/rec-1.jpg", f.blobs.lastKey)
}

func TestRoast_GateShortCircuits(t *testing.T) {
	t.Parallel()

	f := newServiceFixture()
	f.gate.err = NewFailure(KindPrivacyViolation, "URL is not publicly accessible", nil)

	_, err := f.svc.Roast(context.Background(), "http://127.0.0.1", "")
	require.Error(t, err)
	require.Equal(t, KindPrivacyViolation, KindOf(err))
	require.Zero(t, f.capturer.captures)
	require.Zero(t, f.blobs.puts)
	require.Empty(t, f.records.inserted)
}

func TestRoast_CaptureFailureAborts(t *testing.T) {
	t.Parallel()

	f := newServiceFixture()
	f.capturer.err = NewFailure(KindCaptureTimeout, "the site took too long to load", context.DeadlineExceeded)

	_, err := f.svc.Roast(context.Background(), "https://example.com", "")
	require.Error(t, err)
	require.Equal(t, KindCaptureTimeout, KindOf(err))
	require.Zero(t, f.critic.calls)
	require.Empty(t, f.records.inserted)
}

func TestCommit_UploadFails_NoRecordInserted(t *testing.T) {
	t.Parallel()

	f := newServiceFixture()
	f.blobs.err = errors.New("bucket on fire")

	_, err := f.svc.Commit(context.Background(), "https://example.com", []byte("img"), "")
	require.Error(t, err)
	require.Equal(t, KindStorage, KindOf(err))
	// The critique branch still ran to completion.
	require.Equal(t, 1, f.critic.calls)
	require.Empty(t, f.records.inserted)
}

func TestCommit_GenerationFails_NoRecordInserted(t *testing.T) {
	t.Parallel()

	f := newServiceFixture()
	f.critic.err = NewFailure(KindGeneration, "analysis failed, please try again", errors.New("model melted"))

	_, err := f.svc.Commit(context.Background(), "https://example.com", []byte("img"), "")
	require.Error(t, err)
	require.Equal(t, KindGeneration, KindOf(err))
	// The upload side effect already happened and is not compensated.
	require.Equal(t, 1, f.blobs.puts)
	require.Empty(t, f.records.inserted)
}

func TestCommit_BothBranchesAwaited(t *testing.T) {
	t.Parallel()

	f := newServiceFixture()
	f.blobs.err = errors.New("immediate failure")
	f.critic.delay = 50 * time.Millisecond

	start := time.Now()
	_, err := f.svc.Commit(context.Background(), "https://example.com", []byte("img"), "")
	require.Error(t, err)
	// Join semantics: the slow critique branch is still awaited after the
	// upload branch has already failed.
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	require.Equal(t, 1, f.critic.calls)
}

func TestCommit_InsertFailureIsTerminal(t *testing.T) {
	t.Parallel()

	f := newServiceFixture()
	f.records.insertErr = errors.New("disk full")

	_, err := f.svc.Commit(context.Background(), "https://example.com", []byte("img"), "")
	require.Error(t, err)
	require.Equal(t, KindPersistence, KindOf(err))
}

func TestCommit_UnclassifiedCriticErrorBecomesGeneration(t *testing.T) {
	t.Parallel()

	f := newServiceFixture()
	f.critic.err = errors.New("plain transport error")

	_, err := f.svc.Commit(context.Background(), "https://example.com", []byte("img"), "")
	require.Error(t, err)
	require.Equal(t, KindGeneration, KindOf(err))
}
