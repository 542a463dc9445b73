package skeleton

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DisplayName renders the joint identifier as words, e.g. "Hand Tip Left".
func (t JointType) DisplayName() string {
	if !t.Valid() {
		return t.String()
	}
	name := jointNames[t]
	var b strings.Builder
	for i, r := range name {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return cases.Title(language.Und).String(b.String())
}
