// Package format converts the lightweight markdown used in outgoing
// messages into Telegram message entities.
package format

import (
	"regexp"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ParseResult contains plain text and message entities
type ParseResult struct {
	Text     string
	Entities []tgbotapi.MessageEntity
}

// UTF16Len counts UTF-16 code units. Telegram entity offsets and
// lengths are in UTF-16, not bytes or runes.
func UTF16Len(s string) int {
	length := 0
	for _, r := range s {
		if r > 0xFFFF {
			length += 2 // surrogate pair
		} else {
			length++
		}
	}
	return length
}

var (
	headerRe = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+?)$`)
	boldRe   = regexp.MustCompile(`\*\*(.+?)\*\*|__(.+?)__`)
	codeRe   = regexp.MustCompile("`([^`]+?)`")
)

// ParseMarkdown strips **bold**, __bold__, `code`, and # headers from
// the text and returns the equivalent entity list. Headers become bold
// lines.
func ParseMarkdown(text string) ParseResult {
	result := headerRe.ReplaceAllString(text, "**$2**")

	var entities []tgbotapi.MessageEntity
	result = extract(result, boldRe, "bold", &entities)
	result = extract(result, codeRe, "code", &entities)

	// Telegram requires entities sorted by offset.
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			if entities[j].Offset < entities[i].Offset {
				entities[i], entities[j] = entities[j], entities[i]
			}
		}
	}

	return ParseResult{
		Text:     strings.TrimRight(result, " \n"),
		Entities: entities,
	}
}

// extract removes every match's markers, recording an entity over the
// inner text.
func extract(text string, re *regexp.Regexp, entityType string, entities *[]tgbotapi.MessageEntity) string {
	for {
		loc := re.FindStringSubmatchIndex(text)
		if loc == nil {
			return text
		}

		fullStart, fullEnd := loc[0], loc[1]
		inner := ""
		for g := 1; g*2 < len(loc); g++ {
			if loc[g*2] != -1 {
				inner = text[loc[g*2]:loc[g*2+1]]
				break
			}
		}

		*entities = append(*entities, tgbotapi.MessageEntity{
			Type:   entityType,
			Offset: UTF16Len(text[:fullStart]),
			Length: UTF16Len(inner),
		})

		text = text[:fullStart] + inner + text[fullEnd:]
	}
}
