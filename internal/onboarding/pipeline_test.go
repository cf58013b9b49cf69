package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/postecho/postecho/internal/models"
	"github.com/postecho/postecho/internal/scraper"
	"github.com/postecho/postecho/internal/tasks"
	"github.com/postecho/postecho/pkg/config"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url   string
		valid bool
	}{
		{"https://linkedin.com/in/janedoe", true},
		{"https://www.linkedin.com/in/janedoe", true},
		{"https://www.linkedin.com/in/jane-doe-123", true},
		{"https://www.linkedin.com/in/janedoe/", true},
		{"http://www.linkedin.com/in/janedoe", false},
		{"https://linkedin.com/company/acme", false},
		{"https://twitter.com/in/janedoe", false},
		{"https://www.linkedin.com/in/", false},
		{"https://www.linkedin.com/in/jane doe", false},
		{"linkedin.com/in/janedoe", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.valid && err != nil {
				t.Errorf("expected %q to validate, got %v", tt.url, err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidURL) {
				t.Errorf("expected ErrInvalidURL for %q, got %v", tt.url, err)
			}
		})
	}
}

type fakeUserStore struct {
	mu        sync.Mutex
	user      *models.User
	states    []models.OnboardingStatus
	url       string
	failState models.OnboardingStatus
}

func (f *fakeUserStore) GetByID(_ context.Context, _ uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user, nil
}

func (f *fakeUserStore) SetOnboardingState(_ context.Context, _ uuid.UUID, state models.OnboardingStatus, stateErr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failState != "" && state == f.failState {
		return errors.New("write refused")
	}
	f.states = append(f.states, state)
	f.user.OnboardingState = state
	f.user.OnboardingError = stateErr
	return nil
}

func (f *fakeUserStore) SetLinkedInURL(_ context.Context, _ uuid.UUID, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url = url
	return nil
}

func (f *fakeUserStore) stateHistory() []models.OnboardingStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.OnboardingStatus(nil), f.states...)
}

type fakePostStore struct {
	mu      sync.Mutex
	created []*models.Post
	deletes int
}

func (f *fakePostStore) CreateBatch(_ context.Context, posts []*models.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, posts...)
	return nil
}

func (f *fakePostStore) DeleteByUser(_ context.Context, _ uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	f.created = nil
	return nil
}

type fakeProfileStore struct {
	mu      sync.Mutex
	upserts []*models.Profile
}

func (f *fakeProfileStore) Upsert(_ context.Context, profile *models.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, profile)
	return nil
}

type fakeEmbeddingStore struct {
	mu      sync.Mutex
	deletes int
}

func (f *fakeEmbeddingStore) DeleteByUser(_ context.Context, _ uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	return nil
}

type fakeAnalyzer struct {
	err   error
	calls int
}

func (f *fakeAnalyzer) Run(_ context.Context, _ uuid.UUID) error {
	f.calls++
	return f.err
}

// fakeJobClient completes jobs on the first poll. failActor marks one actor
// kind as failing.
type fakeJobClient struct {
	mu        sync.Mutex
	failActor string
	results   map[string][]json.RawMessage
	actorByID map[string]string
	triggers  int
}

func (f *fakeJobClient) Trigger(_ context.Context, actor, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers++
	id := uuid.New().String()
	if f.actorByID == nil {
		f.actorByID = make(map[string]string)
	}
	f.actorByID[id] = actor
	return id, nil
}

func (f *fakeJobClient) PollStatus(_ context.Context, jobID string) (*scraper.JobState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	actor := f.actorByID[jobID]
	if actor == f.failActor {
		return &scraper.JobState{Status: scraper.JobFailed}, nil
	}
	return &scraper.JobState{Status: scraper.JobSucceeded, ResultLocation: actor}, nil
}

func (f *fakeJobClient) FetchResult(_ context.Context, resultLocation string) ([]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.results[resultLocation], nil
}

func scraperConfig() *config.ScraperConfig {
	return &config.ScraperConfig{
		ProfileActor: "profile-actor",
		PostsActor:   "posts-actor",
		MaxPosts:     50,
		PollInterval: time.Millisecond,
		PollTimeout:  time.Second,
	}
}

type fixture struct {
	users    *fakeUserStore
	posts    *fakePostStore
	profiles *fakeProfileStore
	embeds   *fakeEmbeddingStore
	analyzer *fakeAnalyzer
	jobs     *fakeJobClient
	runner   *tasks.Runner
	pipeline *Pipeline
}

func newFixture(state models.OnboardingStatus) *fixture {
	f := &fixture{
		users:    &fakeUserStore{user: &models.User{ID: uuid.New(), OnboardingState: state}},
		posts:    &fakePostStore{},
		profiles: &fakeProfileStore{},
		embeds:   &fakeEmbeddingStore{},
		analyzer: &fakeAnalyzer{},
		jobs: &fakeJobClient{results: map[string][]json.RawMessage{
			"profile-actor": {json.RawMessage(`{"headline": "Engineer", "about": "I build things", "experience": [{"title": "Staff Engineer", "company": "Acme", "duration": "3 yrs"}]}`)},
			"posts-actor": {
				json.RawMessage(`{"text": "first post", "likes": 10, "comments": 2, "shares": 1}`),
				json.RawMessage(`{"text": "second post", "likes": 1}`),
			},
		}},
		runner: tasks.NewRunner(5 * time.Second),
	}
	f.pipeline = New(scraperConfig(), f.jobs, f.analyzer,
		f.users, f.posts, f.profiles, f.embeds, nil, f.runner)
	return f
}

func TestIngestRejectsMalformedURLBeforeTriggering(t *testing.T) {
	f := newFixture(models.StatusURLPending)

	err := f.pipeline.Ingest(context.Background(), f.users.user.ID, "https://linkedin.com/company/acme")
	if !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
	f.runner.Wait()
	if f.jobs.triggers != 0 {
		t.Error("malformed URL must be rejected before any job trigger")
	}
	if f.users.user.OnboardingState != models.StatusURLPending {
		t.Errorf("status must be unchanged, got %s", f.users.user.OnboardingState)
	}
}

func TestIngestRejectsActiveCycle(t *testing.T) {
	for _, state := range []models.OnboardingStatus{
		models.StatusScrapingInProgress,
		models.StatusAnalysisInProgress,
		models.StatusReady,
	} {
		t.Run(string(state), func(t *testing.T) {
			f := newFixture(state)
			err := f.pipeline.Ingest(context.Background(), f.users.user.ID, "https://linkedin.com/in/janedoe")
			if !errors.Is(err, ErrIngestNotAllowed) {
				t.Errorf("expected ErrIngestNotAllowed from %s, got %v", state, err)
			}
		})
	}
}

func TestIngestSetsScrapingSynchronously(t *testing.T) {
	f := newFixture(models.StatusURLPending)

	if err := f.pipeline.Ingest(context.Background(), f.users.user.ID, "https://linkedin.com/in/janedoe"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The synchronous part of Ingest must already have written the state.
	if f.users.stateHistory()[0] != models.StatusScrapingInProgress {
		t.Errorf("expected scraping_in_progress first, got %v", f.users.stateHistory())
	}
	f.runner.Wait()
}

func TestPipelineHappyPath(t *testing.T) {
	f := newFixture(models.StatusURLPending)

	if err := f.pipeline.Ingest(context.Background(), f.users.user.ID, "https://linkedin.com/in/janedoe"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.runner.Wait()

	want := []models.OnboardingStatus{
		models.StatusScrapingInProgress,
		models.StatusAnalysisInProgress,
		models.StatusReady,
	}
	got := f.users.stateHistory()
	if len(got) != len(want) {
		t.Fatalf("expected states %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected states %v, got %v", want, got)
		}
	}
	if f.analyzer.calls != 1 {
		t.Errorf("expected one analysis run, got %d", f.analyzer.calls)
	}
	if len(f.profiles.upserts) != 1 {
		t.Fatalf("expected one profile upsert, got %d", len(f.profiles.upserts))
	}
	if f.profiles.upserts[0].Headline != "Engineer" {
		t.Errorf("unexpected headline %q", f.profiles.upserts[0].Headline)
	}
	var experience []models.ExperienceEntry
	if err := json.Unmarshal([]byte(f.profiles.upserts[0].Experience), &experience); err != nil {
		t.Fatalf("stored experience is not valid JSON: %v", err)
	}
	if len(experience) != 1 || experience[0].Title != "Staff Engineer" || experience[0].Company != "Acme" {
		t.Errorf("unexpected experience entries: %+v", experience)
	}
	if len(f.posts.created) != 2 {
		t.Errorf("expected 2 posts persisted, got %d", len(f.posts.created))
	}
}

func TestPipelineRetryFromError(t *testing.T) {
	f := newFixture(models.StatusError)

	if err := f.pipeline.Ingest(context.Background(), f.users.user.ID, "https://linkedin.com/in/janedoe"); err != nil {
		t.Fatalf("retry from error state must be allowed, got %v", err)
	}
	f.runner.Wait()
	if f.users.user.OnboardingState != models.StatusReady {
		t.Errorf("expected ready after retry, got %s", f.users.user.OnboardingState)
	}
}

func TestPipelineAnalysisStatusWriteFailureLandsInError(t *testing.T) {
	f := newFixture(models.StatusURLPending)
	f.users.failState = models.StatusAnalysisInProgress

	if err := f.pipeline.Ingest(context.Background(), f.users.user.ID, "https://linkedin.com/in/janedoe"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.runner.Wait()

	// A cycle stuck in scraping could never be retried, so a failed status
	// write must still land the user in the error state.
	if f.users.user.OnboardingState != models.StatusError {
		t.Errorf("expected error state, got %s", f.users.user.OnboardingState)
	}
	if f.analyzer.calls != 0 {
		t.Errorf("analysis must not run after a failed status write, got %d calls", f.analyzer.calls)
	}
}

func TestPipelineJobFailureDiscardsPartials(t *testing.T) {
	f := newFixture(models.StatusURLPending)
	f.jobs.failActor = "posts-actor"

	if err := f.pipeline.Ingest(context.Background(), f.users.user.ID, "https://linkedin.com/in/janedoe"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.runner.Wait()

	if f.users.user.OnboardingState != models.StatusError {
		t.Fatalf("expected error state, got %s", f.users.user.OnboardingState)
	}
	if f.users.user.OnboardingError == "" {
		t.Error("expected a persisted error message")
	}
	errorWrites := 0
	for _, s := range f.users.stateHistory() {
		if s == models.StatusError {
			errorWrites++
		}
	}
	if errorWrites != 1 {
		t.Errorf("error state must be written exactly once, got %d", errorWrites)
	}
	if len(f.posts.created) != 0 {
		t.Error("partial posts must be discarded on failure")
	}
	if f.embeds.deletes == 0 {
		t.Error("partial embeddings must be discarded on failure")
	}
	if f.analyzer.calls != 0 {
		t.Error("analysis must not run after a failed scrape")
	}
}

func TestPipelineAnalyzerFailure(t *testing.T) {
	f := newFixture(models.StatusURLPending)
	f.analyzer.err = errors.New("no posts to analyze")

	if err := f.pipeline.Ingest(context.Background(), f.users.user.ID, "https://linkedin.com/in/janedoe"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.runner.Wait()

	if f.users.user.OnboardingState != models.StatusError {
		t.Errorf("expected error state after analysis failure, got %s", f.users.user.OnboardingState)
	}
}

func TestPipelinePollTimeout(t *testing.T) {
	f := newFixture(models.StatusURLPending)
	cfg := scraperConfig()
	cfg.PollTimeout = 5 * time.Millisecond
	f.jobs.failActor = "" // never fails, never succeeds either
	slowJobs := &slowJobClient{inner: f.jobs}
	f.pipeline = New(cfg, slowJobs, f.analyzer,
		f.users, f.posts, f.profiles, f.embeds, nil, f.runner)

	if err := f.pipeline.Ingest(context.Background(), f.users.user.ID, "https://linkedin.com/in/janedoe"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.runner.Wait()

	if f.users.user.OnboardingState != models.StatusError {
		t.Errorf("expected error state on poll timeout, got %s", f.users.user.OnboardingState)
	}
}

// slowJobClient reports every job as still running forever.
type slowJobClient struct {
	inner *fakeJobClient
}

func (s *slowJobClient) Trigger(ctx context.Context, actor, targetURL string) (string, error) {
	return s.inner.Trigger(ctx, actor, targetURL)
}

func (s *slowJobClient) PollStatus(_ context.Context, _ string) (*scraper.JobState, error) {
	return &scraper.JobState{Status: scraper.JobRunning}, nil
}

func (s *slowJobClient) FetchResult(_ context.Context, _ string) ([]json.RawMessage, error) {
	return nil, errors.New("no result")
}

func TestGetStatusFallsBackToDatabase(t *testing.T) {
	f := newFixture(models.StatusReady)

	status, err := f.pipeline.GetStatus(context.Background(), f.users.user.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Status != models.StatusReady {
		t.Errorf("expected ready, got %s", status.Status)
	}
}
