package scraper

import (
	"encoding/json"
	"fmt"
	"time"
)

// ProfileRecord is the raw shape of one profile-actor result item.
type ProfileRecord struct {
	Headline   string              `json:"headline"`
	About      string              `json:"about"`
	Location   string              `json:"location"`
	Experience []ProfileExperience `json:"experience"`
}

// ProfileExperience is one position inside a profile record.
type ProfileExperience struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Duration    string `json:"duration"`
	Description string `json:"description"`
}

// PostRecord is the raw shape of one posts-actor result item.
type PostRecord struct {
	Text        string     `json:"text"`
	PostedAt    *time.Time `json:"postedAt"`
	Likes       int        `json:"likes"`
	Comments    int        `json:"comments"`
	Shares      int        `json:"shares"`
	Impressions *int64     `json:"impressions"`
	Topic       string     `json:"topic"`
}

// ParseProfileRecord decodes the first record of a profile scrape. The full
// raw payload is retained by the caller for audit and reprocessing.
func ParseProfileRecord(records []json.RawMessage) (*ProfileRecord, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("profile scrape returned no records")
	}
	var record ProfileRecord
	if err := json.Unmarshal(records[0], &record); err != nil {
		return nil, fmt.Errorf("failed to parse profile record: %w", err)
	}
	return &record, nil
}

// ParsePostRecords decodes every post record, skipping items that fail to
// decode rather than failing the whole batch.
func ParsePostRecords(records []json.RawMessage) ([]PostRecord, [][]byte) {
	posts := make([]PostRecord, 0, len(records))
	payloads := make([][]byte, 0, len(records))
	for _, raw := range records {
		var record PostRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			continue
		}
		posts = append(posts, record)
		payloads = append(payloads, []byte(raw))
	}
	return posts, payloads
}
