package discord

import (
	"strings"
	"unicode/utf8"
)

const codeFence = "```"

// splitCodeBlock wraps body in code fences, splitting on line boundaries so
// that every chunk fits in maxLen characters. Lines that are too long on
// their own are cut.
func splitCodeBlock(body string, maxLen int) []string {
	// opening fence + newline, and a newline + closing fence
	budget := maxLen - 2*(len(codeFence)+1)

	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		text := cur.String()
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		chunks = append(chunks, codeFence+"\n"+text+codeFence)
		cur.Reset()
		curLen = 0
	}

	for _, line := range strings.SplitAfter(body, "\n") {
		if line == "" {
			continue
		}

		for utf8.RuneCountInString(line) > budget {
			if curLen > 0 {
				flush()
			}
			runes := []rune(line)
			cur.WriteString(string(runes[:budget]))
			curLen = budget
			flush()
			line = string(runes[budget:])
		}

		n := utf8.RuneCountInString(line)
		if curLen+n > budget {
			flush()
		}
		cur.WriteString(line)
		curLen += n
	}

	if curLen > 0 || len(chunks) == 0 {
		flush()
	}
	return chunks
}
