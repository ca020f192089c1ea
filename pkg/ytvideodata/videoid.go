package ytvideodata

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	bareIdRe  = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
	videoIdRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
)

// ParseID extracts the video id from the URL forms YouTube hands out:
// watch?v=, youtu.be/, /embed/, /shorts/ and /live/. A bare 11-character id
// is accepted as is.
func ParseID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if bareIdRe.MatchString(raw) {
		return raw, true
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	host = strings.TrimPrefix(host, "music.")

	var candidate string
	switch host {
	case "youtu.be":
		candidate = firstSegment(u.Path)
	case "youtube.com", "youtube-nocookie.com":
		if v := u.Query().Get("v"); v != "" {
			candidate = v
			break
		}
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segments) >= 2 {
			switch segments[0] {
			case "embed", "shorts", "live", "v":
				candidate = segments[1]
			}
		}
	default:
		return "", false
	}

	if !videoIdRe.MatchString(candidate) {
		return "", false
	}

	return candidate, true
}

func firstSegment(p string) string {
	p = strings.Trim(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}
