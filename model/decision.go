package model

import "github.com/bwmarrin/discordgo"

// Decision asks for one category action on one message.
type Decision struct {
	Category Category
	Message  *discordgo.Message
	GuildID  string
	// SelfReaction marks a red decision produced because the author reacted green to their own message.
	SelfReaction bool
}

// Outcome is what applying a decision actually did.
type Outcome string

const (
	OutcomeSkipped  Outcome = "skipped" // already carded or pinned
	OutcomeGranted  Outcome = "granted"
	OutcomeExtended Outcome = "extended"
	OutcomeSwapped  Outcome = "swapped"
	OutcomePinned   Outcome = "pinned"
	OutcomeFailed   Outcome = "failed"
)
