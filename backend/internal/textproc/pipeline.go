// Package textproc turns raw chat text into the text handed to the speech engine.
package textproc

import (
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"

	"texvoice/backend/internal/constants"
)

var (
	customEmojiPattern = regexp.MustCompile(`<a?:(\w+):\d+>`)
	rawMentionPattern  = regexp.MustCompile(`<(?:@[!&]?|#)\d+>`)
	urlPattern         = regexp.MustCompile(`https?://(?:[a-zA-Z0-9$-_@.&+!*(),]|%[0-9a-fA-F]{2})+`)
	codeBlockPattern   = regexp.MustCompile("(?s)```.*?```")
)

// Rewriter applies per-guild substitutions. *dictionary.Dictionary satisfies it.
type Rewriter interface {
	Rewrite(text string) string
}

// Result is the outcome of a transform
type Result struct {
	// Text is the speakable text
	Text string
	// DiceReport is set when the message was a dice roll; it is echoed back
	// to the channel as a reply
	DiceReport string
}

// Pipeline runs the fixed sequence of text stages. Each stage works on the
// output of the previous one, so the order below matters.
type Pipeline struct {
	mu       sync.Mutex
	rng      *rand.Rand
	maxRunes int
}

// New creates a pipeline. src feeds dice rolls; maxRunes caps the output length.
func New(src rand.Source, maxRunes int) *Pipeline {
	if maxRunes <= 0 {
		maxRunes = constants.DefaultMaxSpeechRunes
	}
	return &Pipeline{
		rng:      rand.New(src),
		maxRunes: maxRunes,
	}
}

// Transform converts raw into speakable text. rw may be nil.
func (p *Pipeline) Transform(raw string, rw Rewriter) Result {
	text := stripMarkup(raw)
	text = urlPattern.ReplaceAllLiteralString(text, constants.URLPlaceholder)
	text = codeBlockPattern.ReplaceAllLiteralString(text, constants.CodePlaceholder)
	text = strings.ReplaceAll(text, "\n", constants.LineSeparator)

	var result Result
	if roll, ok := parseDice(text); ok {
		p.mu.Lock()
		result.DiceReport = roll.report(p.rng)
		p.mu.Unlock()
		text = result.DiceReport
	}

	if rw != nil {
		text = rw.Rewrite(text)
	}

	result.Text = truncate(text, p.maxRunes)
	return result
}

// stripMarkup drops the platform markup the gateway leaves behind after
// mentions are resolved to display names.
func stripMarkup(text string) string {
	text = customEmojiPattern.ReplaceAllString(text, "$1")
	return rawMentionPattern.ReplaceAllLiteralString(text, "")
}

func truncate(text string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes])
}
