package igapi

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"

	"github.com/ibeckermayer/igwarmup/internal/types"
)

// MediaTypeVideo is the feed's media_type for videos and reels
const MediaTypeVideo = 2

// ID accepts both JSON numbers and strings
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// User is the subset of a user record we read
type User struct {
	PK       ID     `json:"pk"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// FeedItem is the subset of a feed item we read
type FeedItem struct {
	ID        ID     `json:"id"`
	Code      string `json:"code"`
	TakenAt   int64  `json:"taken_at"`
	MediaType int    `json:"media_type"`
	IsPinned  bool   `json:"is_pinned"`
	Caption   *struct {
		Text string `json:"text"`
	} `json:"caption"`
	ImageVersions2 *struct {
		Candidates []struct {
			URL string `json:"url"`
		} `json:"candidates"`
	} `json:"image_versions2"`
	VideoVersions []struct {
		URL string `json:"url"`
	} `json:"video_versions"`
}

// SelectNewest drops pinned items and returns the most recently taken one
func SelectNewest(items []FeedItem) (FeedItem, bool) {
	candidates := make([]FeedItem, 0, len(items))
	for _, it := range items {
		if !it.IsPinned {
			candidates = append(candidates, it)
		}
	}
	if len(candidates) == 0 {
		return FeedItem{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].TakenAt > candidates[j].TakenAt
	})
	return candidates[0], true
}

// ToPost maps a feed item onto an ExtractedPost
func (it FeedItem) ToPost(domain string) *types.ExtractedPost {
	post := &types.ExtractedPost{
		PostURL:   "https://www." + domain + "/p/" + it.Code + "/",
		PostCode:  it.Code,
		PostID:    string(it.ID),
		MediaType: types.MediaImage,
		Timestamp: time.Unix(it.TakenAt, 0).UTC(),
	}
	if it.Caption != nil {
		post.Caption = it.Caption.Text
	}

	isVideo := it.MediaType == MediaTypeVideo
	if isVideo {
		post.MediaType = types.MediaVideo
	}
	switch {
	case isVideo && len(it.VideoVersions) > 0:
		post.MediaURL = it.VideoVersions[0].URL
	case it.ImageVersions2 != nil && len(it.ImageVersions2.Candidates) > 0:
		post.MediaURL = it.ImageVersions2.Candidates[0].URL
	}
	return post
}
