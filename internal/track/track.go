package track

import "fmt"

// Song is a catalog entry. Songs are treated as immutable values and compared
// by ID.
type Song struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	ArtistID     int64  `json:"artist_id,omitempty"`
	Album        string `json:"album,omitempty"`
	Cover        string `json:"cover"`
	CoverXL      string `json:"cover_xl"`
	DurationSecs int64  `json:"duration,omitempty"`
	Cached       bool   `json:"cached,omitempty"`
}

func (s Song) IsValid() bool {
	return s.ID != 0 && s.Title != "" && s.Artist != ""
}

func (s Song) IsSameSong(other Song) bool {
	return s.ID == other.ID
}

func (s Song) HasArtistID() bool {
	return s.ArtistID != 0
}

func (s Song) String() string {
	return fmt.Sprintf("%s - %s", s.Artist, s.Title)
}

// IndexOf returns the position of the first song with the given id, or -1.
func IndexOf(songs []Song, id int64) int {
	for i, s := range songs {
		if s.ID == id {
			return i
		}
	}
	return -1
}
