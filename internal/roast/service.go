package roast

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/siteroast/siteroast/internal/metrics"
)

// ServiceConfig controls commit behavior.
type ServiceConfig struct {
	BlobPrefix  string
	ContentType string
}

// Service runs the roast pipeline: gate, capture, and the two-sided commit.
type Service struct {
	gate     URLGate
	capturer Capturer
	critic   Critic
	blobs    BlobStore
	records  RecordStore
	ids      IDGenerator
	clock    Clock
	cfg      ServiceConfig
	logger   *zap.Logger
}

// NewService constructs a Service. All capabilities are injected so tests
// can substitute fakes.
func NewService(
	gate URLGate,
	capturer Capturer,
	critic Critic,
	blobs BlobStore,
	records RecordStore,
	ids IDGenerator,
	clock Clock,
	cfg ServiceConfig,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BlobPrefix == "" {
		cfg.BlobPrefix = "screenshots"
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "image/jpeg"
	}
	return &Service{
		gate:     gate,
		capturer: capturer,
		critic:   critic,
		blobs:    blobs,
		records:  records,
		ids:      ids,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// Roast runs the full pipeline for one URL. Input and privacy failures
// short-circuit before any outbound call.
func (s *Service) Roast(ctx context.Context, rawURL, visitorID string) (Record, error) {
	if err := s.gate.Check(ctx, rawURL); err != nil {
		return Record{}, err
	}

	start := s.clock.Now()
	image, err := s.capturer.Capture(ctx, rawURL)
	metrics.ObserveCapture(time.Since(start))
	if err != nil {
		return Record{}, err
	}

	return s.Commit(ctx, rawURL, image, visitorID)
}

// Commit runs the asset upload and critique generation concurrently and
// inserts exactly one record on joint success. Neither branch is cancelable
// once started; both are awaited even after one fails, so a failed commit
// can leave an orphaned object behind. That orphan is logged, not deleted:
// a compensating delete would add a third independent side effect to an
// already two-sided partial-failure window.
func (s *Service) Commit(ctx context.Context, rawURL string, image []byte, visitorID string) (Record, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return Record{}, NewFailure(KindPersistence, "an unexpected error occurred", fmt.Errorf("generate record id: %w", err))
	}
	objectPath := fmt.Sprintf("%s/%s.jpg", s.cfg.BlobPrefix, id)

	var (
		imageURL string
		critique Critique
		uploaded bool
	)
	var g errgroup.Group
	g.Go(func() error {
		url, err := s.blobs.PutObject(ctx, objectPath, s.cfg.ContentType, bytes.NewReader(image))
		if err != nil {
			return NewFailure(KindStorage, "an unexpected error occurred", fmt.Errorf("upload %s: %w", objectPath, err))
		}
		imageURL = url
		uploaded = true
		return nil
	})
	g.Go(func() error {
		start := s.clock.Now()
		result, err := s.critic.Analyze(ctx, image)
		metrics.ObserveGeneration(time.Since(start))
		if err != nil {
			if KindOf(err) != KindUnknown {
				return err
			}
			return NewFailure(KindGeneration, "analysis failed, please try again", err)
		}
		critique = result
		return nil
	})
	if err := g.Wait(); err != nil {
		if uploaded {
			s.logger.Warn("commit failed after upload, object orphaned",
				zap.String("object", objectPath),
				zap.String("url", rawURL),
			)
		}
		return Record{}, err
	}

	record := Record{
		ID:        id,
		URL:       rawURL,
		Critique:  critique,
		ImageURL:  imageURL,
		VisitorID: visitorID,
		CreatedAt: s.clock.Now(),
	}
	if err := s.records.Insert(ctx, record); err != nil {
		return Record{}, NewFailure(KindPersistence, "an unexpected error occurred", fmt.Errorf("insert record %s: %w", id, err))
	}
	return record, nil
}
