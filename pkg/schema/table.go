package schema

import (
	"strings"

	// Packages
	uitable "github.com/mutablelogic/go-aitemplate/pkg/ui/table"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// ModelTable implements table.TableData for a list of models.
type ModelTable struct {
	Models       []ModelInfo
	CurrentModel string
}

// ToolTable implements table.TableData for a list of tools.
type ToolTable []ToolInfo

// SkillTable implements table.TableData for a list of skills.
type SkillTable []SkillInfo

// ConversationTable implements table.TableData for a list of conversations.
type ConversationTable struct {
	Conversations       []ConversationInfo
	CurrentConversation string
}

// MessageTable implements table.TableData for the messages of a conversation.
type MessageTable []MessageInfo

// AdminModelTable implements table.TableData for the administrative model list.
type AdminModelTable []ModelAdminInfo

///////////////////////////////////////////////////////////////////////////////
// MODEL TABLE

func (t ModelTable) Header() []string {
	return []string{"MODEL", "PROVIDER", "CAPABILITIES", "HEALTH"}
}

func (t ModelTable) Len() int {
	return len(t.Models)
}

func (t ModelTable) Row(i int) []any {
	m := t.Models[i]
	row := []any{m.ModelID, m.Provider, capabilities(m.Capabilities), m.Health}
	if t.CurrentModel != "" && m.ModelID == t.CurrentModel {
		for j, v := range row {
			row[j] = uitable.Bold{Value: v}
		}
	}
	return row
}

///////////////////////////////////////////////////////////////////////////////
// TOOL TABLE

func (t ToolTable) Header() []string {
	return []string{"TOOL", "RISK"}
}

func (t ToolTable) Len() int {
	return len(t)
}

func (t ToolTable) Row(i int) []any {
	return []any{t[i].ToolName, t[i].RiskLevel}
}

///////////////////////////////////////////////////////////////////////////////
// SKILL TABLE

func (t SkillTable) Header() []string {
	return []string{"SKILL", "VERSION", "SOURCE", "EDITABLE"}
}

func (t SkillTable) Len() int {
	return len(t)
}

func (t SkillTable) Row(i int) []any {
	s := t[i]
	return []any{s.SkillName, s.Version, s.Source, yesno(s.Editable)}
}

///////////////////////////////////////////////////////////////////////////////
// CONVERSATION TABLE

func (t ConversationTable) Header() []string {
	return []string{"CONVERSATION"}
}

func (t ConversationTable) Len() int {
	return len(t.Conversations)
}

func (t ConversationTable) Row(i int) []any {
	id := t.Conversations[i].ConversationID
	if t.CurrentConversation != "" && id == t.CurrentConversation {
		return []any{uitable.Bold{Value: id}}
	}
	return []any{id}
}

///////////////////////////////////////////////////////////////////////////////
// MESSAGE TABLE

func (t MessageTable) Header() []string {
	return []string{"ROLE", "CONTENT"}
}

func (t MessageTable) Len() int {
	return len(t)
}

func (t MessageTable) Row(i int) []any {
	return []any{t[i].Role, uitable.Truncate(t[i].Content, 120)}
}

///////////////////////////////////////////////////////////////////////////////
// ADMIN MODEL TABLE

func (t AdminModelTable) Header() []string {
	return []string{"MODEL", "PROVIDER", "NAME", "ENABLED", "SOURCE", "HEALTH"}
}

func (t AdminModelTable) Len() int {
	return len(t)
}

func (t AdminModelTable) Row(i int) []any {
	m := t[i]
	row := []any{m.ModelID, m.Provider, m.DisplayName, yesno(m.Enabled), m.Source, m.Health}
	if !m.Enabled {
		return row
	}
	row[0] = uitable.Bold{Value: m.ModelID}
	return row
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func capabilities(c *CapabilitySet) string {
	if c == nil {
		return ""
	}
	var parts []string
	if c.Chat {
		parts = append(parts, "chat")
	}
	if c.Tools {
		parts = append(parts, "tools")
	}
	if c.JSONMode {
		parts = append(parts, "json")
	}
	if c.Vision {
		parts = append(parts, "vision")
	}
	return strings.Join(parts, ",")
}

func yesno(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
