package scraper

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ibeckermayer/igwarmup/internal/types"
)

// Extraction failure reasons
const (
	ReasonNoPostInfo = "Could not extract post information"
	ReasonBadMarkup  = "Could not parse page"
)

var (
	postPathPattern = regexp.MustCompile(`^/p/([\w-]+)/?$`)
	postCodePattern = regexp.MustCompile(`^[\w-]+$`)
)

// Extraction is either a complete post or the reason there is none.
type Extraction struct {
	Post   *types.ExtractedPost
	Reason string
}

// OK reports whether a post was extracted
func (e Extraction) OK() bool {
	return e.Post.Valid()
}

func extracted(p *types.ExtractedPost) Extraction {
	return Extraction{Post: p}
}

func extractionFailed(reason string) Extraction {
	return Extraction{Reason: reason}
}

// PostCode returns the shortcode that follows a "p" segment anywhere in
// the path, so both /p/<code>/ and /<user>/p/<code>/ links resolve.
func PostCode(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(segments); i++ {
		if segments[i] == "p" && postCodePattern.MatchString(segments[i+1]) {
			return segments[i+1], true
		}
	}
	return "", false
}

// CanonicalPostCode accepts only a path that is exactly /p/<code>/
func CanonicalPostCode(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	m := postPathPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// PostURL is the canonical URL of a post
func PostURL(domain, code string) string {
	return "https://www." + domain + "/p/" + code + "/"
}

// ExtractProfile pulls the newest post off a rendered profile page
func ExtractProfile(html, domain string, now time.Time) Extraction {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return extractionFailed(ReasonBadMarkup)
	}

	container := doc.Find("article").First()
	link := container.Find(PostLink).First()
	if link.Length() == 0 {
		link = doc.Find(PostLink).First()
		container = link.Closest("div")
	}
	if link.Length() == 0 {
		return extractionFailed(ReasonNoPostInfo)
	}

	href, _ := link.Attr("href")
	postURL, code, ok := resolvePost(href, domain)
	if !ok {
		return extractionFailed(ReasonNoPostInfo)
	}

	post := &types.ExtractedPost{
		PostURL:   postURL,
		PostCode:  code,
		PostID:    code,
		Caption:   profileCaption(container),
		MediaType: types.MediaImage,
		Timestamp: now.UTC(),
	}

	if video := doc.Find("video").First(); video.Length() > 0 {
		post.MediaType = types.MediaVideo
		post.MediaURL = video.AttrOr("src", "")
	} else {
		post.MediaURL = profileImage(doc, container)
	}

	return extracted(post)
}

func resolvePost(href, domain string) (string, string, bool) {
	code, ok := PostCode(href)
	if !ok {
		return "", "", false
	}
	return PostURL(domain, code), code, true
}

func profileCaption(container *goquery.Selection) string {
	if container.Length() == 0 {
		return ""
	}
	var caption string
	container.Find("h1, h2, h3").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		caption = strings.TrimSpace(s.Text())
		return caption == ""
	})
	if caption != "" {
		return caption
	}
	container.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if text := strings.TrimSpace(s.Text()); len([]rune(text)) > 10 {
			caption = text
			return false
		}
		return true
	})
	return caption
}

func profileImage(doc *goquery.Document, container *goquery.Selection) string {
	for _, sel := range []string{`img[data-testid="post-image"]`, `img.FFVAD`, `img._aagt`} {
		if src := doc.Find(sel).First().AttrOr("src", ""); src != "" {
			return src
		}
	}
	if src := container.Find("img").First().AttrOr("src", ""); src != "" {
		return src
	}

	// Anything larger than an icon
	var src string
	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		w, _ := strconv.Atoi(s.AttrOr("width", "0"))
		h, _ := strconv.Atoi(s.AttrOr("height", "0"))
		if w > 100 && h > 100 {
			src = s.AttrOr("src", "")
		}
		return src == ""
	})
	return src
}

// PostDetail is what the post page itself adds
type PostDetail struct {
	Caption   string
	MediaURL  string
	MediaType types.MediaType
}

// ExtractDetail reads caption and media from a rendered post page
func ExtractDetail(html string) PostDetail {
	var d PostDetail
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return d
	}

	doc.Find("h1, article span").Each(func(_ int, s *goquery.Selection) {
		if text := s.Text(); len(text) > len(d.Caption) {
			d.Caption = text
		}
	})

	if src := doc.Find("article img").First().AttrOr("src", ""); src != "" {
		d.MediaURL, d.MediaType = src, types.MediaImage
	}
	if src := doc.Find("article video").First().AttrOr("src", ""); src != "" {
		d.MediaURL, d.MediaType = src, types.MediaVideo
	}
	return d
}

// Merge folds detail into post, keeping whichever value is richer.
// Post is returned for chaining.
func Merge(post *types.ExtractedPost, d PostDetail) *types.ExtractedPost {
	if caption := strings.TrimSpace(d.Caption); len(caption) > len(post.Caption) {
		post.Caption = caption
	}
	if d.MediaURL != "" {
		post.MediaURL = d.MediaURL
		post.MediaType = d.MediaType
	}
	return post
}
