package notify

import (
	"strings"
	"time"
)

// Vars holds the values substituted into push templates.
type Vars struct {
	RoomName string
	Title    string
	URL      string
	Platform string
	Time     time.Time
}

// Render expands the bracket placeholders in a template. Unknown brackets are
// left as-is so typos surface in the delivered message rather than vanish.
func Render(tpl string, v Vars) string {
	if tpl == "" {
		return ""
	}
	at := v.Time
	if at.IsZero() {
		at = time.Now()
	}
	r := strings.NewReplacer(
		"[room_name]", v.RoomName,
		"[title]", v.Title,
		"[url]", v.URL,
		"[platform]", v.Platform,
		"[time]", at.Format("2006-01-02 15:04:05"),
	)
	return r.Replace(tpl)
}

// RenderOr falls back to a default template when the configured one is empty.
func RenderOr(tpl, fallback string, v Vars) string {
	if strings.TrimSpace(tpl) == "" {
		tpl = fallback
	}
	return Render(tpl, v)
}
