package types

import "time"

// MediaType is the kind of media attached to a post
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// ExtractedPost represents the newest post fetched for a user.
// A post is only valid when PostURL is set.
type ExtractedPost struct {
	PostURL   string    `json:"postUrl"`
	PostCode  string    `json:"postCode,omitempty"`
	Caption   string    `json:"caption"`
	MediaURL  string    `json:"mediaUrl"`
	MediaType MediaType `json:"type,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	PostID    string    `json:"postId,omitempty"`
}

// Valid reports whether the post carries a URL
func (p *ExtractedPost) Valid() bool {
	return p != nil && p.PostURL != ""
}

// Result is the envelope every action returns, success or failure
type Result struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Post    *ExtractedPost `json:"post,omitempty"`
	Emoji   string         `json:"emoji,omitempty"`
}

// Succeeded builds a success envelope
func Succeeded(message string) Result {
	return Result{Success: true, Message: message}
}

// Failed builds a failure envelope
func Failed(message string) Result {
	return Result{Success: false, Message: message}
}
