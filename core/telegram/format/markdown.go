package format

import (
	"strings"
)

// The characters Telegram treats as markup in MarkdownV2 text.
const mdV2Specials = "_*[]()~`>#+-=|{}.!"

var mdV2Escaper = newMDV2Escaper()

func newMDV2Escaper() *strings.Replacer {
	pairs := make([]string, 0, 2*len(mdV2Specials))
	for _, r := range mdV2Specials {
		pairs = append(pairs, string(r), `\`+string(r))
	}
	return strings.NewReplacer(pairs...)
}

// EscapeMarkdownV2 escapes exactly the MarkdownV2 special characters and
// nothing else. Passage references contain '-' and '.' which would otherwise
// make sendMessage reject the payload; digits, commas and colons must pass
// through untouched.
func EscapeMarkdownV2(text string) string {
	return mdV2Escaper.Replace(text)
}
