package models

// StreamEntry is one channel/movie/episode parsed from an #EXTINF + URL pair.
// Raw holds the original #EXTINF line unchanged.
type StreamEntry struct {
	Name       string     `json:"name"`
	URL        string     `json:"url"`
	Raw        string     `json:"raw,omitempty"`
	GroupTitle string     `json:"groupTitle,omitempty"`
	TvgName    string     `json:"tvgName,omitempty"`
	TvgID      string     `json:"tvgId,omitempty"`
	TvgLogo    string     `json:"tvgLogo,omitempty"`
	StreamType StreamType `json:"streamType"`
}

// Stream is a persisted master catalog row.
type Stream struct {
	ID         int64      `json:"id"`
	PlaylistID int64      `json:"playlistId"`
	Name       string     `json:"name"`
	StreamURL  string     `json:"streamUrl"`
	StreamType StreamType `json:"streamType"`
}

// Entry converts a catalog row into a StreamEntry (no raw header line).
func (s Stream) Entry() StreamEntry {
	return StreamEntry{Name: s.Name, URL: s.StreamURL, StreamType: s.StreamType}
}
