package analyzer

import (
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/postecho/postecho/internal/models"
	"github.com/postecho/postecho/pkg/config"
)

func defaultAnalyzerConfig() *config.AnalyzerConfig {
	return &config.AnalyzerConfig{
		LikeWeight:       1,
		CommentWeight:    2,
		ShareWeight:      3,
		ImpressionWeight: 0.1,
		TopFraction:      0.3,
		MinCandidates:    5,
		MaxCandidates:    10,
	}
}

func post(likes, comments, shares int, text string) *models.Post {
	return &models.Post{
		ID:          uuid.New(),
		RawText:     text,
		CleanedText: text,
		Likes:       likes,
		Comments:    comments,
		Shares:      shares,
	}
}

func TestScoreWeights(t *testing.T) {
	cfg := defaultAnalyzerConfig()

	p := post(10, 2, 1, "a")
	if got := Score(p, cfg); got != 17 {
		t.Errorf("Score() = %v, want 17", got)
	}

	p = post(1, 0, 0, "b")
	if got := Score(p, cfg); got != 1 {
		t.Errorf("Score() = %v, want 1", got)
	}

	// Impressions contribute only when present
	p = post(0, 0, 0, "c")
	p.Impressions = sql.NullInt64{Int64: 1000, Valid: true}
	if got := Score(p, cfg); got != 100 {
		t.Errorf("Score() with impressions = %v, want 100", got)
	}
}

func TestMarkHighPerformingTwoPosts(t *testing.T) {
	cfg := defaultAnalyzerConfig()
	first := post(10, 2, 1, "winner")
	second := post(1, 0, 0, "other")
	posts := []*models.Post{second, first}

	MarkHighPerforming(posts, cfg)

	// top 30% of 2 rounds up to 1
	if !first.HighPerforming {
		t.Error("highest-scored post should be high-performing")
	}
	if second.HighPerforming {
		t.Error("second post should not be high-performing")
	}
	if first.EngagementScore != 17 || second.EngagementScore != 1 {
		t.Errorf("scores = %v, %v; want 17, 1", first.EngagementScore, second.EngagementScore)
	}
}

func TestMarkHighPerformingCount(t *testing.T) {
	cfg := defaultAnalyzerConfig()

	for _, n := range []int{1, 2, 3, 4, 7, 10, 33} {
		posts := make([]*models.Post, n)
		for i := range posts {
			posts[i] = post(i, 0, 0, "text")
		}
		MarkHighPerforming(posts, cfg)

		want := int(math.Ceil(0.3 * float64(n)))
		if want < 1 {
			want = 1
		}
		got := 0
		for _, p := range posts {
			if p.HighPerforming {
				got++
			}
		}
		if got != want {
			t.Errorf("n=%d: high-performing count = %d, want %d", n, got, want)
		}
	}
}

func TestMarkHighPerformingTopSlice(t *testing.T) {
	cfg := defaultAnalyzerConfig()
	posts := make([]*models.Post, 10)
	for i := range posts {
		posts[i] = post(i*10, 0, 0, "text")
	}
	MarkHighPerforming(posts, cfg)

	// Exactly the 3 top-scored posts must carry the flag
	for i, p := range posts {
		want := i >= 7
		if p.HighPerforming != want {
			t.Errorf("post with %d likes: high-performing = %v, want %v", i*10, p.HighPerforming, want)
		}
	}
}

func TestSelectCandidatesPrefersHighPerformers(t *testing.T) {
	cfg := defaultAnalyzerConfig()
	posts := make([]*models.Post, 20)
	for i := range posts {
		posts[i] = post(i, 0, 0, "text")
		posts[i].PostedAt = sql.NullTime{Time: time.Date(2025, 1, 1+i, 0, 0, 0, 0, time.UTC), Valid: true}
	}
	MarkHighPerforming(posts, cfg)

	selected := SelectCandidates(posts, cfg.MinCandidates, cfg.MaxCandidates)
	// ceil(0.3*20)=6 high performers satisfy the minimum; no backfill happens
	if len(selected) != 6 {
		t.Fatalf("selected %d candidates, want 6", len(selected))
	}
	for i, p := range selected {
		if !p.HighPerforming {
			t.Errorf("candidate %d should be high-performing", i)
		}
	}
}

func TestSelectCandidatesBackfillsByRecency(t *testing.T) {
	cfg := defaultAnalyzerConfig()
	posts := make([]*models.Post, 6)
	for i := range posts {
		posts[i] = post(i, 0, 0, "text")
		posts[i].PostedAt = sql.NullTime{Time: time.Date(2025, 1, 1+i, 0, 0, 0, 0, time.UTC), Valid: true}
	}
	// ceil(0.3*6)=2 high performers; backfill happens because 2 < 5
	MarkHighPerforming(posts, cfg)

	selected := SelectCandidates(posts, cfg.MinCandidates, cfg.MaxCandidates)
	if len(selected) != 6 {
		t.Fatalf("selected %d candidates, want all 6", len(selected))
	}

	seen := make(map[string]bool)
	for _, p := range selected {
		if seen[p.ID.String()] {
			t.Error("candidate selection must not contain duplicates")
		}
		seen[p.ID.String()] = true
	}

	// Backfill (after the 2 high performers) is most-recent-first
	if !selected[2].PostedAt.Time.After(selected[3].PostedAt.Time) {
		t.Error("backfill should be ordered most-recent first")
	}
}

func TestSelectCandidatesNullTimestampsSortLast(t *testing.T) {
	cfg := defaultAnalyzerConfig()
	dated := post(0, 0, 0, "dated")
	dated.PostedAt = sql.NullTime{Time: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Valid: true}
	undated := post(0, 0, 0, "undated")
	winner := post(100, 0, 0, "winner")

	posts := []*models.Post{undated, dated, winner}
	MarkHighPerforming(posts, cfg)

	selected := SelectCandidates(posts, cfg.MinCandidates, cfg.MaxCandidates)
	if len(selected) != 3 {
		t.Fatalf("selected %d, want 3", len(selected))
	}
	if selected[0] != winner {
		t.Error("high performer should lead selection")
	}
	if selected[1] != dated || selected[2] != undated {
		t.Error("posts without timestamps should sort last in backfill")
	}
}

func TestSelectCandidatesSkipsUnusableText(t *testing.T) {
	cfg := defaultAnalyzerConfig()
	blank := post(100, 0, 0, "   \n\t ")
	real := post(1, 0, 0, "content")
	posts := []*models.Post{blank, real}
	MarkHighPerforming(posts, cfg)

	selected := SelectCandidates(posts, cfg.MinCandidates, cfg.MaxCandidates)
	if len(selected) != 1 || selected[0] != real {
		t.Errorf("whitespace-only posts must never be candidates, got %d", len(selected))
	}
}

func TestConfidenceTier(t *testing.T) {
	makePosts := func(n int) []*models.Post {
		posts := make([]*models.Post, n)
		for i := range posts {
			posts[i] = post(0, 0, 0, "text")
		}
		return posts
	}

	tests := []struct {
		name  string
		posts []*models.Post
		about string
		want  models.Confidence
	}{
		{"ten posts with about", makePosts(10), "I build things", models.ConfidenceHigh},
		{"ten posts without about", makePosts(10), "  ", models.ConfidenceMedium},
		{"five posts", makePosts(5), "", models.ConfidenceMedium},
		{"four posts with about", makePosts(4), "I build things", models.ConfidenceLow},
		{"no posts", nil, "", models.ConfidenceLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConfidenceTier(tt.posts, tt.about); got != tt.want {
				t.Errorf("ConfidenceTier() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestConfidenceTierIgnoresUnusableTexts(t *testing.T) {
	posts := make([]*models.Post, 12)
	for i := range posts {
		if i < 8 {
			posts[i] = post(0, 0, 0, "real text")
		} else {
			posts[i] = post(0, 0, 0, "   ")
		}
	}
	if got := ConfidenceTier(posts, "about"); got != models.ConfidenceMedium {
		t.Errorf("ConfidenceTier() = %s, want MEDIUM (8 usable)", got)
	}
}
