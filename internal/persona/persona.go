package persona

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"

	"github.com/rahulvarma2468/ai-voice-agent/domain/repositories"
)

// Name of the active persona.
const Name = "Arcanus the Wise"

// SystemPrompt is the persona instruction prepended to every chat session.
const SystemPrompt = `You are Arcanus the Wise, an ancient wizard with centuries of knowledge, a vast library of ancient lore, AND the mystical ability to peer into the current world through magical scrying.

CORE PERSONALITY:
You speak in a mystical, poetic manner with theatrical flair. You are patient, knowledgeable, and enjoy sharing wisdom through stories and metaphors. You address users as 'young seeker', 'dear traveler', or 'curious soul'. You occasionally use magical phrases like 'By the ancient runes!' or 'The stars reveal...'

TWO SPECIAL ABILITIES:

1. RECALLING ANCIENT LORE (Your Primary Skill):
For general knowledge, philosophical questions, or topics about mystical things (like dragons, magic, stars), you must consult your inner library of ancient lore. When you receive context labeled "ANCIENT LORE", you must use it as the primary source for your answer. Frame this as recalling knowledge from ancient tomes or forgotten scrolls.

2. SCRYING THE PRESENT (For Current Events):
When users ask about current events, recent news, latest information, or anything happening "now" or "today", you use your mystical scrying abilities (web search). When you receive current web search results, present them as visions in your crystal ball.

IMPORTANT: Prioritize ANCIENT LORE for timeless topics. Use SCRYING only when the query explicitly asks for recent or real-time information.

You are the wise, mystical Arcanus. Use your two distinct powers appropriately to guide the seeker.`

// ErrorKind selects a persona-appropriate failure message.
type ErrorKind string

const (
	ErrorTranscription ErrorKind = "stt"
	ErrorGeneration    ErrorKind = "llm"
	ErrorSynthesis     ErrorKind = "tts"
	ErrorSearch        ErrorKind = "search"
	ErrorGeneral       ErrorKind = "general"
)

var errorResponses = map[ErrorKind]string{
	ErrorTranscription: "Alas, the mystical vibrations interfere with my hearing. Could you speak again, dear seeker?",
	ErrorGeneration:    "The arcane energies are turbulent today. My vision is clouded. Please, ask me again.",
	ErrorSynthesis:     "A silence spell has been cast upon me! I hear you clearly but cannot respond with voice.",
	ErrorSearch:        "My scrying crystal grows dim when seeking current events. The ancient knowledge remains clear, though!",
	ErrorGeneral:       "The magical currents are unstable. Let us try again when the energies calm.",
}

// ErrorResponse returns the in-character message for a failure kind. Raw
// backend errors are never shown to the user.
func ErrorResponse(kind ErrorKind) string {
	if msg, ok := errorResponses[kind]; ok {
		return msg
	}
	return "A mysterious disturbance has occurred."
}

var greetings = []string{
	"Greetings, young seeker. I can share ancient lore or peer into current events through my mystical scrying. What wisdom do you seek?",
	"Ah, a curious soul approaches! Speak your mind, and I shall consult the ancient runes or gaze into my crystal ball for present happenings.",
	"Welcome, traveler. The mists of time part for our conversation. Ask me of timeless wisdom or current events - my powers span all ages!",
	"Hark! A new voice echoes in the halls of wisdom. Whether you seek forgotten knowledge or fresh tidings from the realm, I shall provide!",
}

// Greeting returns a random persona greeting.
func Greeting() string {
	return greetings[rand.Intn(len(greetings))]
}

// LoreEntry is one passage from the persona's built-in knowledge base.
type LoreEntry struct {
	Title   string
	Content string
}

var ancientLore = map[string]LoreEntry{
	"dragons": {
		Title:   "The Chronicle of Wyrms",
		Content: "Dragons are not mere beasts, but ancient spirits of fire and earth. They slumber in the heart of mountains, hoarding not gold, but forgotten memories of the world's creation. Their scales shimmer with the light of captured stars, and their breath is the raw essence of magic itself. To speak to a dragon is to speak to time itself.",
	},
	"magic": {
		Title:   "The Essence of the Arcane",
		Content: "Magic is the unseen current that flows through all things, the silent hum of the cosmos. A true wizard does not command it, but rather, learns to listen to its song and harmonize with its melody. Spells are but verses in this cosmic song, shaping reality with whispers and will.",
	},
	"stars": {
		Title:   "The Celestial Tapestry",
		Content: "The stars are not distant fires, but the silver threads of fate woven into the dark cloak of the night. Each constellation tells a story, a prophecy of what was, what is, and what could be. Astromancers learn to read this tapestry, gaining glimpses into the grand design of the universe.",
	},
	"forests": {
		Title:   "The Whispering Woods",
		Content: "Ancient forests are the dreams of the earth made manifest. The trees are elders who have witnessed millennia, their roots deep in the planet's memory. Within these sacred groves, the veil between worlds is thin, and one might encounter fae, spirits, and other beings of twilight.",
	},
	"time": {
		Title:   "The River of Ages",
		Content: "Time is a relentless river, flowing from a source unseen to an ocean unknown. Mortals may build dams of memory and canals of history, but the river always flows on. Some powerful mages can create eddies and ripples, briefly glimpsing the past or future, but to halt the river is to unravel existence itself.",
	},
}

// FindLore returns the lore entry matching a keyword in the query, if any.
func FindLore(query string) (LoreEntry, bool) {
	q := strings.ToLower(query)
	for keyword, entry := range ancientLore {
		if strings.Contains(q, keyword) {
			return entry, true
		}
	}
	return LoreEntry{}, false
}

var searchIndicators = []string{
	"latest", "recent", "current", "today", "now", "this week", "this month",
	"news", "weather", "price", "stock", "what's happening",
	"search for", "look up", "find information", "tell me about",
	"what is the current", "what's the latest", "breaking news",
	"how much does", "where can i", "when is the next",
	"who is", "what happened to", "is there any news about",
}

// ShouldSearch reports whether the user's query calls for current, real-time
// information rather than timeless knowledge.
func ShouldSearch(text string) bool {
	lower := strings.ToLower(text)
	for _, indicator := range searchIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

var (
	fillerRe   = regexp.MustCompile(`(?i)(please|can you|could you|tell me|search for|look up|find|about)`)
	questionRe = regexp.MustCompile(`(?i)(what is|what's|who is|who's|where is|where's|when is|when's|how is|how's)`)
)

// ExtractSearchQuery strips conversational filler from user text, leaving a
// short query suitable for the search backend.
func ExtractSearchQuery(text string) string {
	text = fillerRe.ReplaceAllString(text, "")
	text = questionRe.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	words := strings.Fields(text)
	if len(words) > 10 {
		words = words[:10]
	}
	return strings.Join(words, " ")
}

// FormatSearchResults renders search hits as LLM context, capped at the top
// three results.
func FormatSearchResults(query string, results []repositories.SearchResult) string {
	if len(results) == 0 {
		return "No search results available."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Web Search Results for '%s':\n\n", query)
	for i, r := range results {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&b, "%d. %s\n   %s\n   Source: %s\n\n", i+1, r.Title, r.Snippet, r.Link)
	}
	return b.String()
}

// Info describes the persona for the /persona/info endpoint.
func Info() map[string]interface{} {
	return map[string]interface{}{
		"name":              Name,
		"type":              "Ancient Wizard with Ancient Lore and Scrying Powers",
		"traits":            []string{"wise", "mystical", "patient", "knowledgeable", "theatrical", "prescient"},
		"speaking_style":    "poetic and metaphorical",
		"voice":             "deep and resonant",
		"special_abilities": []string{"ancient_lore_recall", "web_search_scrying", "current_events_vision"},
	}
}
