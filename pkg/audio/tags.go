package audio

import (
	"bytes"

	"github.com/dhowden/tag"
)

// Tags holds embedded track metadata.
type Tags struct {
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
	Genre  string `json:"genre,omitempty"`
}

// ReadTags reads ID3/MP4/FLAC/OGG tags. Untagged payloads yield empty Tags.
func ReadTags(data []byte) Tags {
	m, err := tag.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return Tags{}
	}
	return Tags{
		Title:  m.Title(),
		Artist: m.Artist(),
		Album:  m.Album(),
		Genre:  m.Genre(),
	}
}
