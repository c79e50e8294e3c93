package models

import (
	"time"
)

// SongTag is one tagged song as recorded by a user. Artist is free text,
// not a foreign key. Tag fields hold vocabulary strings; an empty string
// means the dimension was left untagged.
type SongTag struct {
	ID        int       `json:"id"`
	UserID    string    `json:"userId"`
	Artist    string    `json:"artist"`
	Title     string    `json:"title"`
	Genre     string    `json:"genre,omitempty"`
	Mood      string    `json:"mood,omitempty"`
	Tempo     string    `json:"tempo,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// TagCombination is the encoded genre/mood/tempo tuple of one song tag.
// A zero code means the dimension is absent and never matches anything,
// including another absent dimension.
type TagCombination struct {
	Genre int `json:"genre"`
	Mood  int `json:"mood"`
	Tempo int `json:"tempo"`
}

// TagWeights is the contribution of each matching dimension to a
// similarity increment.
type TagWeights struct {
	Genre float64 `json:"genre"`
	Mood  float64 `json:"mood"`
	Tempo float64 `json:"tempo"`
}

// Preferences is the subset of tag dimensions the caller cares about.
// The zero value selects nothing, which yields the default weights.
type Preferences struct {
	Genre bool `json:"genre"`
	Mood  bool `json:"mood"`
	Tempo bool `json:"tempo"`
}

// Recommendation is one row of the append-only recommendation log.
type Recommendation struct {
	ID         int       `json:"id"`
	UserID     string    `json:"userId"`
	ArtistName string    `json:"artistName"`
	Reason     string    `json:"reason"`
	Feedback   string    `json:"feedback,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// User is an entry in the user directory. RecommendedArtist caches the
// most recent recommendation's artist and is written only by the engine.
type User struct {
	ID                string `json:"id"`
	RecommendedArtist string `json:"recommendedArtist,omitempty"`
}

// RunReport summarizes one recommendation run. A user appears in Failed
// when their candidate selection or persistence failed; other users are
// unaffected.
type RunReport struct {
	Succeeded    []string  `json:"succeeded"`
	Failed       []string  `json:"failed"`
	SimilarPairs int       `json:"similarPairs"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
}
