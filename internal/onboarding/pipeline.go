// Package onboarding drives a user from a submitted LinkedIn URL to a ready
// style profile: two concurrent scraping jobs, persistence of the scraped
// material, then the analysis run. Progress is communicated only through the
// persisted onboarding status, which the presentation layer polls.
package onboarding

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/postecho/postecho/internal/analyzer"
	"github.com/postecho/postecho/internal/cache"
	"github.com/postecho/postecho/internal/models"
	"github.com/postecho/postecho/internal/scraper"
	"github.com/postecho/postecho/internal/tasks"
	"github.com/postecho/postecho/pkg/config"
	"github.com/postecho/postecho/pkg/logging"
	"github.com/postecho/postecho/pkg/telemetry"
)

var (
	// ErrInvalidURL rejects a source URL before any job is triggered.
	ErrInvalidURL = errors.New("not a valid LinkedIn profile URL")
	// ErrIngestNotAllowed rejects an ingest while another cycle is active or
	// the user is already onboarded.
	ErrIngestNotAllowed = errors.New("onboarding cannot be restarted from the current status")
)

var linkedinURLRe = regexp.MustCompile(`^https://(www\.)?linkedin\.com/in/[A-Za-z0-9][A-Za-z0-9\-_%.]*/?$`)

// ValidateURL checks a submitted profile URL against the accepted shape.
func ValidateURL(url string) error {
	if !linkedinURLRe.MatchString(url) {
		return fmt.Errorf("%w: %q", ErrInvalidURL, url)
	}
	return nil
}

// statusCacheTTL keeps cached status entries fresh relative to the 2-5 s
// polling contract.
const statusCacheTTL = 30 * time.Second

// UserStore is the slice of user persistence the pipeline needs.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetOnboardingState(ctx context.Context, userID uuid.UUID, state models.OnboardingStatus, stateErr string) error
	SetLinkedInURL(ctx context.Context, userID uuid.UUID, url string) error
}

// PostStore persists and discards scraped posts.
type PostStore interface {
	CreateBatch(ctx context.Context, posts []*models.Post) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

// ProfileStore persists the scraped profile.
type ProfileStore interface {
	Upsert(ctx context.Context, profile *models.Profile) error
}

// EmbeddingStore discards embeddings from a failed cycle.
type EmbeddingStore interface {
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

// StyleAnalyzer runs the analysis stage once scraping has landed.
type StyleAnalyzer interface {
	Run(ctx context.Context, userID uuid.UUID) error
}

// Status is the poll answer for one user.
type Status struct {
	Status models.OnboardingStatus `json:"status"`
	Error  string                  `json:"error,omitempty"`
}

// Pipeline owns the onboarding flow for all users.
type Pipeline struct {
	cfg        *config.ScraperConfig
	jobs       scraper.JobClient
	analyzer   StyleAnalyzer
	users      UserStore
	posts      PostStore
	profiles   ProfileStore
	embeddings EmbeddingStore
	cache      *cache.Cache
	runner     *tasks.Runner
	logger     *zap.Logger
}

// New creates a new onboarding pipeline
func New(cfg *config.ScraperConfig, jobs scraper.JobClient, styleAnalyzer StyleAnalyzer,
	users UserStore, posts PostStore, profiles ProfileStore, embeddings EmbeddingStore,
	c *cache.Cache, runner *tasks.Runner) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		jobs:       jobs,
		analyzer:   styleAnalyzer,
		users:      users,
		posts:      posts,
		profiles:   profiles,
		embeddings: embeddings,
		cache:      c,
		runner:     runner,
		logger:     logging.GetLogger().With(zap.String("component", "onboarding")),
	}
}

// Ingest validates the URL, moves the user to scraping_in_progress
// synchronously and launches the background pipeline. It returns before any
// scraping happens; completion is observable only via GetStatus.
func (p *Pipeline) Ingest(ctx context.Context, userID uuid.UUID, linkedinURL string) error {
	ctx, span := telemetry.StartSpan(ctx, "onboarding.ingest")
	defer span.End()

	if err := ValidateURL(linkedinURL); err != nil {
		return err
	}

	user, err := p.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user %s not found", userID)
	}
	if !user.OnboardingState.CanTransition(models.StatusScrapingInProgress) {
		return fmt.Errorf("%w: status is %s", ErrIngestNotAllowed, user.OnboardingState)
	}

	if err := p.users.SetLinkedInURL(ctx, userID, linkedinURL); err != nil {
		return fmt.Errorf("failed to store profile URL: %w", err)
	}
	if err := p.setStatus(ctx, userID, models.StatusScrapingInProgress, ""); err != nil {
		return err
	}

	p.runner.Go("onboarding:"+userID.String(), func(ctx context.Context) error {
		return p.run(ctx, userID, linkedinURL)
	})

	p.logger.Info("Onboarding started",
		zap.String("user_id", userID.String()),
		zap.String("linkedin_url", linkedinURL))
	return nil
}

// GetStatus serves the polling fast path from cache when available, falling
// back to the database.
func (p *Pipeline) GetStatus(ctx context.Context, userID uuid.UUID) (*Status, error) {
	if cached, err := p.cache.Get(cache.OnboardingStatusKey(userID.String())); err == nil {
		var status Status
		if err := json.Unmarshal([]byte(cached), &status); err == nil && status.Status.Valid() {
			return &status, nil
		}
	}

	user, err := p.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %s not found", userID)
	}
	return &Status{Status: user.OnboardingState, Error: user.OnboardingError}, nil
}

// run is the background stage: scrape both sources, persist, analyze. It is
// the only place besides Ingest that writes onboarding status.
func (p *Pipeline) run(ctx context.Context, userID uuid.UUID, linkedinURL string) error {
	ctx, span := telemetry.StartSpan(ctx, "onboarding.run")
	defer span.End()

	var profileRecords, postRecords []json.RawMessage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		records, err := p.runJob(gctx, p.cfg.ProfileActor, linkedinURL)
		if err != nil {
			return fmt.Errorf("profile scrape: %w", err)
		}
		profileRecords = records
		return nil
	})
	g.Go(func() error {
		records, err := p.runJob(gctx, p.cfg.PostsActor, linkedinURL)
		if err != nil {
			return fmt.Errorf("posts scrape: %w", err)
		}
		postRecords = records
		return nil
	})
	if err := g.Wait(); err != nil {
		return p.fail(ctx, userID, err)
	}

	profile, err := scraper.ParseProfileRecord(profileRecords)
	if err != nil {
		return p.fail(ctx, userID, err)
	}
	posts, payloads := scraper.ParsePostRecords(postRecords)
	if len(posts) == 0 {
		return p.fail(ctx, userID, fmt.Errorf("posts scrape returned no usable records"))
	}

	if err := p.persist(ctx, userID, profile, profileRecords[0], posts, payloads); err != nil {
		return p.fail(ctx, userID, err)
	}

	if err := p.setStatus(ctx, userID, models.StatusAnalysisInProgress, ""); err != nil {
		// Without the error state the user would be stuck in scraping, a
		// state Ingest refuses to retry from.
		return p.fail(ctx, userID, fmt.Errorf("status update: %w", err))
	}
	if err := p.analyzer.Run(ctx, userID); err != nil {
		return p.fail(ctx, userID, fmt.Errorf("analysis: %w", err))
	}
	return p.setStatus(ctx, userID, models.StatusReady, "")
}

// runJob triggers one actor run and polls it to completion within the
// configured interval and ceiling. The deadline makes a hung job fail
// deterministically instead of pinning the pipeline.
func (p *Pipeline) runJob(ctx context.Context, actor, targetURL string) ([]json.RawMessage, error) {
	jobID, err := p.jobs.Trigger(ctx, actor, targetURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.PollTimeout)
	defer cancel()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("job %s did not finish within %s", jobID, p.cfg.PollTimeout)
		case <-ticker.C:
			state, err := p.jobs.PollStatus(ctx, jobID)
			if err != nil {
				// Transient poll errors are retried until the deadline.
				p.logger.Warn("Job status poll failed", zap.String("job_id", jobID), zap.Error(err))
				continue
			}
			switch state.Status {
			case scraper.JobSucceeded:
				return p.jobs.FetchResult(ctx, state.ResultLocation)
			case scraper.JobFailed:
				return nil, fmt.Errorf("job %s failed", jobID)
			}
		}
	}
}

// persist lands the cycle's scrape output. Posts from a previous cycle are
// replaced wholesale so scoring always sees one coherent set.
func (p *Pipeline) persist(ctx context.Context, userID uuid.UUID, profile *scraper.ProfileRecord,
	rawProfile []byte, posts []scraper.PostRecord, payloads [][]byte) error {
	// Experience is stored in the model's shape, not the actor's wire shape.
	entries := make([]models.ExperienceEntry, len(profile.Experience))
	for i, e := range profile.Experience {
		entries[i] = models.ExperienceEntry{
			Title:       e.Title,
			Company:     e.Company,
			Duration:    e.Duration,
			Description: e.Description,
		}
	}
	experience, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode experience: %w", err)
	}
	if err := p.profiles.Upsert(ctx, &models.Profile{
		ID:         uuid.New(),
		UserID:     userID,
		Headline:   profile.Headline,
		About:      profile.About,
		Location:   profile.Location,
		Experience: string(experience),
		RawPayload: string(rawProfile),
	}); err != nil {
		return fmt.Errorf("failed to persist profile: %w", err)
	}

	if err := p.posts.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear previous posts: %w", err)
	}
	if err := p.embeddings.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear previous embeddings: %w", err)
	}

	if p.cfg.MaxPosts > 0 && len(posts) > p.cfg.MaxPosts {
		posts = posts[:p.cfg.MaxPosts]
		payloads = payloads[:p.cfg.MaxPosts]
	}

	batch := make([]*models.Post, len(posts))
	for i, record := range posts {
		post := &models.Post{
			ID:          uuid.New(),
			UserID:      userID,
			RawText:     record.Text,
			CleanedText: analyzer.CleanPostText(record.Text),
			Likes:       record.Likes,
			Comments:    record.Comments,
			Shares:      record.Shares,
			RawPayload:  string(payloads[i]),
		}
		if record.PostedAt != nil {
			post.PostedAt = sql.NullTime{Time: *record.PostedAt, Valid: true}
		}
		if record.Impressions != nil {
			post.Impressions = sql.NullInt64{Int64: *record.Impressions, Valid: true}
		}
		if record.Topic != "" {
			post.TopicHint = sql.NullString{String: record.Topic, Valid: true}
		}
		batch[i] = post
	}
	if err := p.posts.CreateBatch(ctx, batch); err != nil {
		return fmt.Errorf("failed to persist posts: %w", err)
	}

	p.logger.Info("Scrape results persisted",
		zap.String("user_id", userID.String()),
		zap.Int("post_count", len(batch)))
	return nil
}

// fail moves the user to the error state exactly once per cycle and discards
// partial results so a retry starts clean.
func (p *Pipeline) fail(ctx context.Context, userID uuid.UUID, cause error) error {
	p.logger.Error("Onboarding cycle failed",
		zap.String("user_id", userID.String()), zap.Error(cause))

	if err := p.posts.DeleteByUser(ctx, userID); err != nil {
		p.logger.Warn("Failed to discard partial posts", zap.Error(err))
	}
	if err := p.embeddings.DeleteByUser(ctx, userID); err != nil {
		p.logger.Warn("Failed to discard partial embeddings", zap.Error(err))
	}
	if err := p.setStatus(ctx, userID, models.StatusError, cause.Error()); err != nil {
		return err
	}
	return cause
}

// setStatus writes the status through the repository and refreshes the cache
// entry the poll fast path reads.
func (p *Pipeline) setStatus(ctx context.Context, userID uuid.UUID, status models.OnboardingStatus, stateErr string) error {
	if err := p.users.SetOnboardingState(ctx, userID, status, stateErr); err != nil {
		return fmt.Errorf("failed to set onboarding status: %w", err)
	}

	encoded, err := json.Marshal(Status{Status: status, Error: stateErr})
	if err == nil {
		if err := p.cache.Set(cache.OnboardingStatusKey(userID.String()), string(encoded), statusCacheTTL); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
			p.logger.Warn("Failed to refresh status cache", zap.Error(err))
		}
	}
	return nil
}

var _ StyleAnalyzer = (*analyzer.Analyzer)(nil)
