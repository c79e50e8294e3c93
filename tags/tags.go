package tags

// Closed tag vocabulary. Each value maps to a stable integer code starting
// at 1; code 0 is reserved for "absent". Codes are compared only for
// equality, their ordering carries no meaning to the similarity engine.

var Genres = map[string]int{
	"afrobeats":   1,
	"alternative": 2,
	"blues":       3,
	"classical":   4,
	"country":     5,
	"dance":       6,
	"disco":       7,
	"dubstep":     8,
	"electronic":  9,
	"folk":        10,
	"funk":        11,
	"gospel":      12,
	"grunge":      13,
	"hiphop":      14,
	"house":       15,
	"indie":       16,
	"jazz":        17,
	"metal":       18,
	"opera":       19,
	"pop":         20,
	"punk":        21,
	"rap":         22,
	"reggae":      23,
	"rock":        24,
	"rnb":         25,
	"soul":        26,
	"techno":      27,
	"trance":      28,
}

var Moods = map[string]int{
	"happy":       1,
	"sad":         2,
	"energetic":   3,
	"relaxed":     4,
	"angry":       5,
	"romantic":    6,
	"melancholic": 7,
	"upbeat":      8,
	"peaceful":    9,
	"moody":       10,
	"excited":     11,
	"nostalgic":   12,
}

// Tempos are ordered slow to fast, though the engine only compares codes
// for equality.
var Tempos = map[string]int{
	"veryslow": 1,
	"slow":     2,
	"medium":   3,
	"fast":     4,
	"veryfast": 5,
}

// Absent is the code of a missing or unknown tag value.
const Absent = 0

// GenreCode returns the code for a genre string, or Absent when the value
// is empty or not in the vocabulary.
func GenreCode(value string) int {
	return Genres[value]
}

// MoodCode returns the code for a mood string, or Absent.
func MoodCode(value string) int {
	return Moods[value]
}

// TempoCode returns the code for a tempo string, or Absent.
func TempoCode(value string) int {
	return Tempos[value]
}

// ValidGenre reports whether the value belongs to the genre vocabulary.
// The empty string is valid: it means the dimension was left untagged.
func ValidGenre(value string) bool {
	if value == "" {
		return true
	}
	_, ok := Genres[value]
	return ok
}

// ValidMood reports whether the value belongs to the mood vocabulary.
func ValidMood(value string) bool {
	if value == "" {
		return true
	}
	_, ok := Moods[value]
	return ok
}

// ValidTempo reports whether the value belongs to the tempo vocabulary.
func ValidTempo(value string) bool {
	if value == "" {
		return true
	}
	_, ok := Tempos[value]
	return ok
}
