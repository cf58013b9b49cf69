package analyzer

import (
	"math"
	"sort"

	"github.com/postecho/postecho/internal/models"
	"github.com/postecho/postecho/pkg/config"
)

// Score computes the weighted engagement score for one post. Impressions are
// optional and contribute nothing when absent.
func Score(post *models.Post, cfg *config.AnalyzerConfig) float64 {
	score := float64(post.Likes)*cfg.LikeWeight +
		float64(post.Comments)*cfg.CommentWeight +
		float64(post.Shares)*cfg.ShareWeight
	if post.Impressions.Valid {
		score += float64(post.Impressions.Int64) * cfg.ImpressionWeight
	}
	return score
}

// MarkHighPerforming scores every post and flags the top fraction, rounded up
// with a minimum of one post. It must see the complete post set in one pass;
// recomputing per post against a stale percentile is incorrect.
func MarkHighPerforming(posts []*models.Post, cfg *config.AnalyzerConfig) {
	if len(posts) == 0 {
		return
	}

	for _, p := range posts {
		p.EngagementScore = Score(p, cfg)
		p.HighPerforming = false
	}

	sorted := make([]*models.Post, len(posts))
	copy(sorted, posts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].EngagementScore != sorted[j].EngagementScore {
			return sorted[i].EngagementScore > sorted[j].EngagementScore
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	cutoff := int(math.Ceil(cfg.TopFraction * float64(len(sorted))))
	if cutoff < 1 {
		cutoff = 1
	}
	for i := 0; i < cutoff && i < len(sorted); i++ {
		sorted[i].HighPerforming = true
	}
}

// SelectCandidates picks the posts used for style modeling: high performers
// first; when fewer than min exist, backfill with the most recent posts (posts
// without a timestamp sort last) until max candidates or the pool runs out.
// Posts without usable text never qualify.
func SelectCandidates(posts []*models.Post, min, max int) []*models.Post {
	usable := make([]*models.Post, 0, len(posts))
	for _, p := range posts {
		if p.HasUsableText() {
			usable = append(usable, p)
		}
	}

	high := make([]*models.Post, 0, len(usable))
	for _, p := range usable {
		if p.HighPerforming {
			high = append(high, p)
		}
	}
	sort.SliceStable(high, func(i, j int) bool {
		return high[i].EngagementScore > high[j].EngagementScore
	})

	selected := make([]*models.Post, 0, max)
	seen := make(map[string]bool, max)
	for _, p := range high {
		if len(selected) >= max {
			break
		}
		selected = append(selected, p)
		seen[p.ID.String()] = true
	}

	if len(selected) >= min {
		return selected
	}

	recent := make([]*models.Post, 0, len(usable))
	for _, p := range usable {
		if !seen[p.ID.String()] {
			recent = append(recent, p)
		}
	}
	sort.SliceStable(recent, func(i, j int) bool {
		a, b := recent[i], recent[j]
		switch {
		case a.PostedAt.Valid && !b.PostedAt.Valid:
			return true
		case !a.PostedAt.Valid && b.PostedAt.Valid:
			return false
		case !a.PostedAt.Valid && !b.PostedAt.Valid:
			return false
		default:
			return a.PostedAt.Time.After(b.PostedAt.Time)
		}
	})

	for _, p := range recent {
		if len(selected) >= max {
			break
		}
		selected = append(selected, p)
		seen[p.ID.String()] = true
	}

	return selected
}

// ConfidenceTier derives the style-profile confidence from how much usable
// source data was available.
func ConfidenceTier(posts []*models.Post, about string) models.Confidence {
	usable := 0
	for _, p := range posts {
		if p.HasUsableText() {
			usable++
		}
	}

	hasAbout := false
	for _, r := range about {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			hasAbout = true
			break
		}
	}

	switch {
	case usable >= 10 && hasAbout:
		return models.ConfidenceHigh
	case usable >= 5:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}
