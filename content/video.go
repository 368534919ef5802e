package content

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	youtubeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,}$`)
	vimeoIDPattern   = regexp.MustCompile(`^[0-9]+$`)
)

// ParseVideoURL recognizes YouTube and Vimeo URLs in their common shapes and
// extracts the platform's video identifier. Unknown hosts and malformed URLs
// return ok=false; callers treat those as direct upload URLs.
//
// Recognized: youtube.com/watch?v=ID, /embed/ID, /shorts/ID, /live/ID,
// youtu.be/ID, vimeo.com/ID, player.vimeo.com/video/ID.
func ParseVideoURL(raw string) (kind VideoKind, id string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	segments := splitPath(u.Path)

	switch host {
	case "youtube.com", "youtube-nocookie.com":
		if len(segments) == 0 {
			return "", "", false
		}
		switch segments[0] {
		case "watch":
			id = u.Query().Get("v")
		case "embed", "shorts", "live":
			if len(segments) >= 2 {
				id = segments[1]
			}
		}
		if youtubeIDPattern.MatchString(id) {
			return KindYouTube, id, true
		}
	case "youtu.be":
		if len(segments) >= 1 && youtubeIDPattern.MatchString(segments[0]) {
			return KindYouTube, segments[0], true
		}
	case "vimeo.com":
		if len(segments) >= 1 && vimeoIDPattern.MatchString(segments[0]) {
			return KindVimeo, segments[0], true
		}
	case "player.vimeo.com":
		if len(segments) >= 2 && segments[0] == "video" && vimeoIDPattern.MatchString(segments[1]) {
			return KindVimeo, segments[1], true
		}
	}
	return "", "", false
}

// EmbedURL returns the platform's embeddable player URL for a parsed video,
// or "" for kinds without an embed form.
func EmbedURL(kind VideoKind, id string) string {
	switch kind {
	case KindYouTube:
		return "https://www.youtube.com/embed/" + url.PathEscape(id)
	case KindVimeo:
		return "https://player.vimeo.com/video/" + url.PathEscape(id)
	}
	return ""
}

// ThumbnailURL picks the best available still image for a video. An explicit
// thumbnail always wins; platform videos fall back to the platform's derived
// thumbnail; uploads without a thumbnail yield "".
func ThumbnailURL(v Video) string {
	if v.ThumbnailURL != "" {
		return v.ThumbnailURL
	}
	switch v.Kind {
	case KindYouTube:
		if v.ExternalID != "" {
			return "https://i.ytimg.com/vi/" + url.PathEscape(v.ExternalID) + "/hqdefault.jpg"
		}
	case KindVimeo:
		if v.ExternalID != "" {
			return "https://vumbnail.com/" + url.PathEscape(v.ExternalID) + ".jpg"
		}
	}
	return ""
}

func splitPath(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
