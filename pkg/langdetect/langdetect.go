// Package langdetect tags message text with its dominant script.
//
// Detection is a frequency count over Unicode script ranges, which is enough
// for short code-mixed SMS/chat content where a full language model would be
// overkill. The result only ever dampens a score downstream; it never adds
// risk on its own.
package langdetect

import "strings"

// Detection describes the dominant script of a text and whether its
// vocabulary looks like everyday benign conversation.
type Detection struct {
	PrimaryLanguage string // "hindi", "bengali", "tamil", ..., or "english"
	LikelyBenign    bool
}

type scriptRange struct {
	lang     string
	lo, hi   rune
}

// One range per supported script. Urdu text is written in the Arabic block.
var scriptRanges = []scriptRange{
	{"hindi", 0x0900, 0x097F},     // Devanagari
	{"bengali", 0x0980, 0x09FF},
	{"punjabi", 0x0A00, 0x0A7F},   // Gurmukhi
	{"gujarati", 0x0A80, 0x0AFF},
	{"tamil", 0x0B80, 0x0BFF},
	{"telugu", 0x0C00, 0x0C7F},
	{"kannada", 0x0C80, 0x0CFF},
	{"malayalam", 0x0D00, 0x0D7F},
	{"urdu", 0x0600, 0x06FF},
}

// Everyday-topic words that rarely co-occur with scam asks. Mixed
// transliterated and native forms, matching how these messages are written.
var benignWords = []string{
	"cricket", "match", "score", "school", "college", "exam", "class",
	"homework", "lunch", "dinner", "movie", "birthday", "festival",
	"weather", "meeting", "agenda",
	"खाना", "स्कूल", "परीक्षा", "मौसम", "त्योहार",
	"பள்ளி", "உணவு", "திருவிழா",
	"স্কুল", "খাবার", "উৎসব",
}

// Scam-adjacent words that veto the benign hint regardless of topic.
var riskWords = []string{
	"otp", "password", "pin", "cvv", "kyc", "verify", "blocked", "suspend",
	"urgent", "bank", "account", "ओटीपी", "तुरंत", "बैंक", "খাতা", "வங்கி",
}

// Detect returns the dominant script of the text and a benign-vocabulary hint.
func Detect(text string) Detection {
	counts := make(map[string]int, len(scriptRanges))
	total := 0
	for _, r := range text {
		for _, sr := range scriptRanges {
			if r >= sr.lo && r <= sr.hi {
				counts[sr.lang]++
				total++
				break
			}
		}
	}

	primary := "english"
	best := 0
	for lang, n := range counts {
		if n > best {
			primary = lang
			best = n
		}
	}
	// A couple of stray matras in an otherwise Latin text stay "english"
	if best > 0 && best < 3 && total < 3 {
		primary = "english"
	}

	return Detection{
		PrimaryLanguage: primary,
		LikelyBenign:    looksBenign(text),
	}
}

func looksBenign(text string) bool {
	lower := strings.ToLower(text)
	for _, w := range riskWords {
		if strings.Contains(lower, w) {
			return false
		}
	}
	for _, w := range benignWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
