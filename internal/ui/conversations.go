package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/broomate/roomie/internal/models"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const fetchTimeout = 15 * time.Second

type conversationItem struct {
	conversation models.Conversation
	unread       bool
}

type conversationsFetchedMsg struct {
	err error
}

func (i conversationItem) Title() string {
	name := i.conversation.DisplayName()
	if i.conversation.IsGroup() {
		name = "👥 " + name
	}
	if i.unread {
		return "● " + name
	}
	return name
}

func (i conversationItem) Description() string {
	timeAgo := formatTimeAgo(i.conversation.LastMessageAt)
	preview := i.conversation.LastMessage
	if preview == "" {
		preview = "No messages yet"
	}
	if r := []rune(preview); len(r) > 50 {
		preview = string(r[:47]) + "..."
	}
	return fmt.Sprintf("%s • %s", timeAgo, preview)
}

func (i conversationItem) FilterValue() string {
	return i.conversation.DisplayName()
}

func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}

	now := time.Now()
	duration := now.Sub(t)

	if duration < time.Minute {
		return "just now"
	}
	if duration < 2*time.Minute {
		return "1 min ago"
	}
	if duration < time.Hour {
		return fmt.Sprintf("%dm ago", int(duration.Minutes()))
	}
	if duration < 2*time.Hour {
		return "1h ago"
	}
	if duration < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(duration.Hours()))
	}
	if duration < 48*time.Hour {
		return "yesterday"
	}
	if duration < 7*24*time.Hour {
		return fmt.Sprintf("%dd ago", int(duration.Hours()/24))
	}
	return t.Format("Jan 2")
}

// ConversationsModel is the inbox. It renders the directory snapshot and
// redraws whenever the directory reports a change.
type ConversationsModel struct {
	svc            *Services
	list           list.Model
	loading        bool
	err            error
	spinner        spinner.Model
	windowWidth    int
	windowHeight   int
	showUnreadOnly bool
	empty          bool
}

func NewConversationsModel(svc *Services) ConversationsModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = statusStyle

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("5")).
		Bold(true)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color("8"))

	l := list.New([]list.Item{}, delegate, 80, 20)
	l.Title = "Inbox"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)

	m := ConversationsModel{
		svc:          svc,
		list:         l,
		spinner:      s,
		windowWidth:  80,
		windowHeight: 30,
	}
	m.refresh()
	return m
}

func (m ConversationsModel) Init() tea.Cmd {
	return nil
}

func (m ConversationsModel) fetchConversationsCmd() tea.Cmd {
	dir := m.svc.Directory
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		return conversationsFetchedMsg{err: dir.FetchConversations(ctx)}
	}
}

// refresh rebuilds the list from the directory snapshot.
func (m *ConversationsModel) refresh() {
	snap := m.svc.Directory.Snapshot()

	items := make([]list.Item, 0, len(snap.Conversations))
	for _, c := range snap.Conversations {
		unread := snap.UnreadConversationIDs.Has(c.ID)
		if m.showUnreadOnly && !unread {
			continue
		}
		items = append(items, conversationItem{conversation: c, unread: unread})
	}
	m.list.SetItems(items)
	m.empty = len(snap.Conversations) == 0

	title := fmt.Sprintf("Inbox - %d conversations", len(snap.Conversations))
	if m.showUnreadOnly {
		title = "Inbox - unread"
	}
	m.list.Title = title + badge(snap.UnreadCount) + "  " + connectionStatus(snap.IsConnected)
}

func (m ConversationsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		m.list.SetWidth(msg.Width)
		m.list.SetHeight(msg.Height - 4)
		return m, nil

	case directoryChangedMsg:
		m.refresh()
		return m, nil

	case conversationsFetchedMsg:
		m.loading = false
		m.err = msg.err
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			var cmd tea.Cmd
			m.list, cmd = m.list.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "esc":
			menuModel := NewMenuModel(m.svc)
			return menuModel, menuModel.Init()

		case "r":
			if m.loading {
				return m, nil
			}
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, m.fetchConversationsCmd())

		case "u":
			m.showUnreadOnly = !m.showUnreadOnly
			m.refresh()
			return m, nil

		case "enter":
			if item, ok := m.list.SelectedItem().(conversationItem); ok {
				messagesModel := NewMessagesModel(m.svc, item.conversation)
				return messagesModel, messagesModel.Init()
			}
			return m, nil
		}

		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m ConversationsModel) View() string {
	if m.loading {
		return fmt.Sprintf("\n  %s Refreshing conversations...\n", m.spinner.View())
	}

	var s string
	if m.empty {
		s = titleStyle.Render("Inbox") + "\n\n"
		s += normalStyle.Render("  No conversations yet. Matches show up here.") + "\n"
	} else {
		s = m.list.View() + "\n"
	}

	if m.err != nil {
		s += errorStyle.Render(fmt.Sprintf("Refresh failed: %v", m.err)) + "\n"
	}

	s += helpStyle.Render("↑↓/jk: navigate • enter: open • /: search • u: unread only • r: refresh • esc: back • q: quit")
	return s
}
