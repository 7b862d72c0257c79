package fetcher

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/fastpanel/fastpanel/internal/models"
)

var upper = cases.Upper(language.Und)

// GuessStreamType classifies an entry by its group label.
// Movie synonyms win over series synonyms; anything else is a live channel.
func GuessStreamType(group string) models.StreamType {
	if group == "" {
		return models.StreamTypeCanal
	}
	title := upper.String(group)
	switch {
	case strings.Contains(title, "FILME"), strings.Contains(title, "MOVIE"):
		return models.StreamTypeFilme
	case strings.Contains(title, "SERIE"), strings.Contains(title, "SÉRIE"):
		return models.StreamTypeSerie
	}
	return models.StreamTypeCanal
}
