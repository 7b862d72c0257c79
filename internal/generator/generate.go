// Package generator renders stream entries back into M3U text.
package generator

import (
	"regexp"
	"strings"

	"github.com/fastpanel/fastpanel/internal/fetcher"
	"github.com/fastpanel/fastpanel/internal/models"
)

const header = "#EXTM3U\n"

var reTvgName = regexp.MustCompile(`tvg-name="([^"]+)"`)

// Generate renders items as a client playlist. Every emitted entry keeps its
// original #EXTINF line and points at {baseURL}/live/{name} instead of the
// upstream URL. Entries without an #EXTINF line or a URL are skipped.
func Generate(items []models.StreamEntry, baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	var b strings.Builder
	b.WriteString(header)
	for _, item := range items {
		info, ok := headerLine(item)
		if !ok {
			continue
		}
		b.WriteString(info)
		b.WriteByte('\n')
		b.WriteString(RestreamURL(base, StreamName(info)))
		b.WriteByte('\n')
	}
	return b.String()
}

// Render writes items with their original URLs, for playlists stored back on disk.
func Render(items []models.StreamEntry) string {
	var b strings.Builder
	b.WriteString(header)
	for _, item := range items {
		info, ok := headerLine(item)
		if !ok {
			continue
		}
		b.WriteString(info)
		b.WriteByte('\n')
		b.WriteString(item.URL)
		b.WriteByte('\n')
	}
	return b.String()
}

// RestreamURL builds the server-relative restream address for a display name.
func RestreamURL(baseURL, name string) string {
	return baseURL + "/live/" + SanitizeName(name)
}

// StreamName picks the name used in the restream path: the tvg-name
// attribute, else the trailing label, else "Unknown".
func StreamName(extinf string) string {
	if m := reTvgName.FindStringSubmatch(extinf); m != nil {
		return m[1]
	}
	if name := fetcher.DisplayName(extinf); name != "" {
		return name
	}
	return "Unknown"
}

// SanitizeName replaces every character outside [A-Za-z0-9_.-] with '_'.
func SanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_', r == '.', r == '-':
			return r
		}
		return '_'
	}, name)
}

// headerLine returns the first line of item.Raw when it is an #EXTINF line
// and the item has a URL.
func headerLine(item models.StreamEntry) (string, bool) {
	info, _, _ := strings.Cut(item.Raw, "\n")
	info = strings.TrimRight(info, "\r")
	if !strings.HasPrefix(info, "#EXTINF") || strings.TrimSpace(item.URL) == "" {
		return "", false
	}
	return info, true
}
