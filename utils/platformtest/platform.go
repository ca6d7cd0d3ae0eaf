// Package platformtest provides an in-memory stand-in for the Discord REST API.
package platformtest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// RoleCall records a member role mutation.
type RoleCall struct {
	GuildID, UserID, RoleID string
}

// Sent records a message sent through ChannelMessageSendComplex.
type Sent struct {
	ChannelID   string
	Content     string
	ReplyTo     string
	Attachments []string
}

// Platform is a thread-safe fake of model.Platform.
type Platform struct {
	mu sync.Mutex

	Messages map[string][]*discordgo.Message         // channelID -> newest first
	Reactors map[string]map[string][]*discordgo.User // messageID -> emoji -> users
	Roles    map[string][]*discordgo.Role            // guildID -> roles
	Channels map[string]*discordgo.Channel

	AddErr    func(RoleCall) error
	RemoveErr func(RoleCall) error
	PinErr    error

	RoleAdds       []RoleCall
	RoleRemoves    []RoleCall
	PinCalls       []string
	SentMessages   []Sent
	ReactorFetch   int
	ChannelRenames []string
}

func New() *Platform {
	return &Platform{
		Messages: make(map[string][]*discordgo.Message),
		Reactors: make(map[string]map[string][]*discordgo.User),
		Roles:    make(map[string][]*discordgo.Role),
		Channels: make(map[string]*discordgo.Channel),
	}
}

// AddRole registers a guild role and returns it.
func (p *Platform) AddRole(guildID, id, name string) *discordgo.Role {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := &discordgo.Role{ID: id, Name: name}
	p.Roles[guildID] = append(p.Roles[guildID], r)
	return r
}

// AddMessage prepends a message to a channel's history.
func (p *Platform) AddMessage(m *discordgo.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Messages[m.ChannelID] = append([]*discordgo.Message{m}, p.Messages[m.ChannelID]...)
}

// SetReactors sets who reacted to a message with emoji.
func (p *Platform) SetReactors(messageID, emoji string, users ...*discordgo.User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Reactors[messageID] == nil {
		p.Reactors[messageID] = make(map[string][]*discordgo.User)
	}
	p.Reactors[messageID][emoji] = users
}

func (p *Platform) ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs := p.Messages[channelID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	out := make([]*discordgo.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (p *Platform) MessageReactions(channelID, messageID, emojiID string, limit int, beforeID, afterID string, options ...discordgo.RequestOption) ([]*discordgo.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ReactorFetch++
	return p.Reactors[messageID][emojiID], nil
}

func (p *Platform) GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	roles, ok := p.Roles[guildID]
	if !ok {
		return nil, fmt.Errorf("unknown guild %s", guildID)
	}
	return roles, nil
}

func (p *Platform) GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	call := RoleCall{guildID, userID, roleID}
	if p.AddErr != nil {
		if err := p.AddErr(call); err != nil {
			return err
		}
	}
	p.RoleAdds = append(p.RoleAdds, call)
	return nil
}

func (p *Platform) GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	call := RoleCall{guildID, userID, roleID}
	if p.RemoveErr != nil {
		if err := p.RemoveErr(call); err != nil {
			return err
		}
	}
	p.RoleRemoves = append(p.RoleRemoves, call)
	return nil
}

func (p *Platform) ChannelMessagePin(channelID, messageID string, options ...discordgo.RequestOption) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PinCalls = append(p.PinCalls, messageID)
	return p.PinErr
}

func (p *Platform) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sent := Sent{ChannelID: channelID, Content: data.Content}
	if data.Reference != nil {
		sent.ReplyTo = data.Reference.MessageID
	}
	for _, f := range data.Files {
		if f.Reader != nil {
			io.Copy(io.Discard, f.Reader)
		}
		sent.Attachments = append(sent.Attachments, f.Name)
	}
	p.SentMessages = append(p.SentMessages, sent)
	return &discordgo.Message{ChannelID: channelID, Content: data.Content}, nil
}

func (p *Platform) Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.Channels[channelID]
	if !ok {
		return nil, errors.New("unknown channel")
	}
	c := *ch
	return &c, nil
}

func (p *Platform) ChannelEdit(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.Channels[channelID]
	if !ok {
		return nil, errors.New("unknown channel")
	}
	ch.Name = data.Name
	p.ChannelRenames = append(p.ChannelRenames, data.Name)
	c := *ch
	return &c, nil
}

// Snapshot helpers take the lock so tests can read results after concurrent work.

func (p *Platform) Adds() []RoleCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]RoleCall(nil), p.RoleAdds...)
}

func (p *Platform) Removes() []RoleCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]RoleCall(nil), p.RoleRemoves...)
}

func (p *Platform) Pins() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.PinCalls...)
}

func (p *Platform) Sent() []Sent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Sent(nil), p.SentMessages...)
}

func (p *Platform) Renames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ChannelRenames...)
}

// RESTError builds a discordgo REST error with the given JSON error code.
func RESTError(code int, message string) error {
	body := fmt.Sprintf(`{"code": %d, "message": %q}`, code, message)
	return &discordgo.RESTError{
		Response:     &http.Response{Status: "400 Bad Request", StatusCode: http.StatusBadRequest},
		ResponseBody: []byte(body),
		Message:      &discordgo.APIErrorMessage{Code: code, Message: message},
	}
}
