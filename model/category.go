package model

// Category is one of the reaction classes the bot tracks.
type Category string

const (
	CategoryRed    Category = "red"
	CategoryYellow Category = "yellow"
	CategoryGreen  Category = "green"
	CategoryPin    Category = "pins"
)

// Reaction emoji for each category.
const (
	EmojiRed    = "🟥"
	EmojiYellow = "🟨"
	EmojiGreen  = "🟩"
	EmojiPin    = "📌"
)

var emojiCategories = map[string]Category{
	EmojiRed:    CategoryRed,
	EmojiYellow: CategoryYellow,
	EmojiGreen:  CategoryGreen,
	EmojiPin:    CategoryPin,
}

// CategoryForEmoji returns the category tracked for a reaction emoji.
func CategoryForEmoji(emoji string) (Category, bool) {
	c, ok := emojiCategories[emoji]
	return c, ok
}

// IsRole reports whether c grants an achievement role (as opposed to pinning).
func (c Category) IsRole() bool {
	return c == CategoryRed || c == CategoryYellow || c == CategoryGreen
}

// ParseCategory accepts the leaderboard spelling of a category.
func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case CategoryRed, CategoryYellow, CategoryGreen, CategoryPin:
		return Category(s), true
	}
	return "", false
}
