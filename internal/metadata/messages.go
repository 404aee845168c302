package metadata

import (
	"context"
	"time"

	"github.com/FairForge/metaapi/internal/acl"
	"github.com/FairForge/metaapi/internal/schema"
)

// AuthorityManageTickets lets an actor see internal feedback messages.
const AuthorityManageTickets = "F_MANAGE_TICKETS"

// Message is one entry of a conversation.
type Message struct {
	Text     string    `json:"text"`
	Sender   string    `json:"sender,omitempty"`
	Internal bool      `json:"internal,omitempty"`
	Created  time.Time `json:"created"`
}

type MessageConversation struct {
	schema.Identifiable
	Subject  string
	Status   string
	Priority string
	Messages []Message
	ReadBy   []string

	// Read is computed for the requesting actor.
	Read bool
}

func (m *MessageConversation) TypeName() string { return "messageConversation" }

func MessageConversationSchema() *schema.Schema {
	s := schema.New("messageConversation", "messageConversations", func() schema.Object { return &MessageConversation{} },
		schema.Text("subject", func(m *MessageConversation) string { return m.Subject }, func(m *MessageConversation, v string) { m.Subject = v }).WithMaxLength(255),
		schema.Text("status", func(m *MessageConversation) string { return m.Status }, func(m *MessageConversation, v string) { m.Status = v }),
		schema.Text("priority", func(m *MessageConversation) string { return m.Priority }, func(m *MessageConversation, v string) { m.Priority = v }),
		schema.Embedded("messages", func(m *MessageConversation) []Message { return m.Messages }, func(m *MessageConversation, v []Message) { m.Messages = v }),
		schema.TextList("readBy", func(m *MessageConversation) []string { return m.ReadBy }, func(m *MessageConversation, v []string) { m.ReadBy = v }).AsReadOnly(),
		schema.Boolean("read", func(m *MessageConversation) bool { return m.Read }, nil).AsTransient(),
	).Require("subject")
	s.Hooks.PostProcess = markRead
	return s
}

// markRead computes the read flag for the context actor and hides internal
// messages from actors who cannot manage tickets.
func markRead(ctx context.Context, obj schema.Object) {
	m := obj.(*MessageConversation)
	actor, ok := acl.FromContext(ctx)
	if !ok {
		m.Read = true
		return
	}
	m.Read = false
	for _, uid := range m.ReadBy {
		if uid == actor.UID {
			m.Read = true
			break
		}
	}
	if actor.IsSuper() || actor.HasAuthority(AuthorityManageTickets) {
		return
	}
	visible := m.Messages[:0:0]
	for _, msg := range m.Messages {
		if !msg.Internal {
			visible = append(visible, msg)
		}
	}
	m.Messages = visible
}
