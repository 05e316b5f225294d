package translate

import (
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

var avatarPalette = []string{
	"#2563eb", "#16a34a", "#db2777", "#ea580c",
	"#7c3aed", "#0891b2", "#ca8a04", "#dc2626",
}

// Resolver finds directory identities for raw backend assignee values.
type Resolver interface {
	Resolve(value string) (domain.Identity, bool)
}

// Assignee builds the display projection for a raw backend assignee value.
// A nil resolver, or an unresolvable value, keeps the raw value as the name.
func Assignee(value string, resolver Resolver) *domain.Assignee {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	out := &domain.Assignee{Name: value}
	if resolver != nil {
		if who, ok := resolver.Resolve(value); ok {
			out.ID = who.ID
			out.Name = who.Name
		}
	}
	out.Avatar = Initials(out.Name)
	out.Color = Color(out.Name)
	return out
}

// Initials returns the upper-case first letters of the first and last words.
func Initials(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_' || r == '.'
	})
	switch len(words) {
	case 0:
		return ""
	case 1:
		runes := []rune(words[0])
		if len(runes) > 2 {
			runes = runes[:2]
		}
		return strings.ToUpper(string(runes))
	default:
		first := []rune(words[0])[0]
		last := []rune(words[len(words)-1])[0]
		return strings.ToUpper(string([]rune{first, last}))
	}
}

// Color deterministically picks a palette entry for name.
func Color(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return avatarPalette[h.Sum32()%uint32(len(avatarPalette))]
}
