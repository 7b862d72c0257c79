package fetcher

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/fastpanel/fastpanel/internal/models"
)

const header = "#EXTM3U"

var (
	reAttr   = regexp.MustCompile(`([A-Za-z0-9_-]+)="([^"]*)"`)
	reExtGrp = regexp.MustCompile(`(?i)^#EXTGRP:\s*(.*)$`)
)

// Parse reads M3U text and returns its stream entries.
// Input that is blank or lacks the #EXTM3U header yields a *ParseError.
// A valid document without any entries returns (nil, nil), so callers can
// tell an empty playlist apart from unparseable input.
func Parse(text string) ([]models.StreamEntry, error) {
	body := strings.TrimLeft(text, "\ufeff \t\r\n")
	if body == "" {
		return nil, &ParseError{Err: ErrEmptyInput}
	}
	if len(body) < len(header) || !strings.EqualFold(body[:len(header)], header) {
		return nil, &ParseError{Err: ErrNotM3U}
	}

	var entries []models.StreamEntry
	scanner := bufio.NewScanner(strings.NewReader(body))
	// Handle long lines (some M3U have very long EXTINF lines).
	const maxSize = 1024 * 1024
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxSize)

	var extinf, extgrp string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		upper := strings.ToUpper(line)

		switch {
		case line == "":
		case strings.HasPrefix(upper, "#EXTINF"):
			// Previous EXTINF without URL is skipped (malformed)
			extinf = line
			extgrp = ""
		case strings.HasPrefix(upper, "#EXTGRP"):
			if m := reExtGrp.FindStringSubmatch(line); m != nil {
				extgrp = strings.TrimSpace(m[1])
			}
		case strings.HasPrefix(line, "#"):
			// #EXTM3U, #EXTVLCOPT and other directives carry nothing we keep.
		default:
			if extinf == "" {
				continue
			}
			entries = append(entries, entryFromEXTINF(extinf, extgrp, line))
			extinf, extgrp = "", ""
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Err: err}
	}
	return entries, nil
}

// Items is the lenient form of Parse: any parse failure yields an empty list.
func Items(text string) []models.StreamEntry {
	entries, err := Parse(text)
	if err != nil {
		return []models.StreamEntry{}
	}
	if entries == nil {
		return []models.StreamEntry{}
	}
	return entries
}

func entryFromEXTINF(extinf, extgrp, url string) models.StreamEntry {
	attrs := Attributes(extinf)
	group := attrs["group-title"]
	if group == "" {
		group = extgrp
	}
	name := DisplayName(extinf)
	if name == "" {
		name = attrs["tvg-name"]
	}
	return models.StreamEntry{
		Name:       name,
		URL:        url,
		Raw:        extinf,
		GroupTitle: group,
		TvgName:    attrs["tvg-name"],
		TvgID:      attrs["tvg-id"],
		TvgLogo:    attrs["tvg-logo"],
		StreamType: GuessStreamType(group),
	}
}

// Attributes returns the key="value" pairs of an #EXTINF line, keys lower-cased.
// The first occurrence of a key wins.
func Attributes(extinf string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range reAttr.FindAllStringSubmatch(extinf, -1) {
		key := strings.ToLower(m[1])
		if _, ok := attrs[key]; ok {
			continue
		}
		attrs[key] = strings.TrimSpace(m[2])
	}
	return attrs
}

// DisplayName returns the free-text label after the last comma that is not
// inside a quoted attribute value.
func DisplayName(extinf string) string {
	inQuote := false
	last := -1
	for i := 0; i < len(extinf); i++ {
		switch extinf[i] {
		case '"':
			inQuote = !inQuote
		case ',':
			if !inQuote {
				last = i
			}
		}
	}
	if last == -1 {
		return ""
	}
	return strings.TrimSpace(extinf[last+1:])
}
