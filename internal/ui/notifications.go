package ui

import (
	"fmt"

	"github.com/broomate/roomie/internal/models"
	"github.com/broomate/roomie/internal/notify"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type notificationItem struct {
	notification models.Notification
}

func (i notificationItem) Title() string {
	title := i.notification.Icon + " " + i.notification.Title
	if !i.notification.Read {
		return "● " + title
	}
	return title
}

func (i notificationItem) Description() string {
	return fmt.Sprintf("%s • %s", formatTimeAgo(i.notification.Timestamp), i.notification.Description)
}

func (i notificationItem) FilterValue() string {
	return i.notification.Title + " " + i.notification.Description
}

type NotificationsModel struct {
	svc          *Services
	list         list.Model
	status       string
	windowWidth  int
	windowHeight int
}

func NewNotificationsModel(svc *Services) NotificationsModel {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("5")).
		Bold(true)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color("8"))

	l := list.New([]list.Item{}, delegate, 80, 20)
	l.Title = "Notifications"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	m := NotificationsModel{
		svc:          svc,
		list:         l,
		windowWidth:  80,
		windowHeight: 30,
	}
	m.refresh()
	return m
}

func (m NotificationsModel) Init() tea.Cmd {
	return nil
}

func (m *NotificationsModel) refresh() {
	entries := m.svc.Feed.List()
	items := make([]list.Item, len(entries))
	for i, n := range entries {
		items[i] = notificationItem{notification: n}
	}
	m.list.SetItems(items)
	m.list.Title = "Notifications" + badge(m.svc.Feed.UnreadCount())
}

// open follows the intent of a clicked notification.
func (m NotificationsModel) open(n models.Notification) (tea.Model, tea.Cmd) {
	intent := m.svc.Feed.HandleClick(n)

	switch intent.Route {
	case notify.RouteConversation:
		id := intent.Params["conversationId"]
		if id == "" {
			m.status = "That conversation is not ready yet."
			break
		}
		conversation := models.Conversation{ID: id}
		for _, c := range m.svc.Directory.Snapshot().Conversations {
			if c.ID == id {
				conversation = c
				break
			}
		}
		messagesModel := NewMessagesModel(m.svc, conversation)
		return messagesModel, messagesModel.Init()

	case notify.RouteProfile:
		m.status = fmt.Sprintf("%s (profile %s)", n.Description, intent.Params["userId"])
	}

	m.refresh()
	return m, nil
}

func (m NotificationsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		m.list.SetWidth(msg.Width)
		m.list.SetHeight(msg.Height - 5)
		return m, nil

	case feedChangedMsg:
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "esc":
			menuModel := NewMenuModel(m.svc)
			return menuModel, menuModel.Init()

		case "enter":
			if item, ok := m.list.SelectedItem().(notificationItem); ok {
				return m.open(item.notification)
			}
			return m, nil

		case "d":
			if item, ok := m.list.SelectedItem().(notificationItem); ok {
				m.svc.Feed.Clear(item.notification.ID)
				m.status = ""
				m.refresh()
			}
			return m, nil

		case "a":
			m.svc.Feed.MarkAllAsRead()
			m.refresh()
			return m, nil
		}

		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m NotificationsModel) View() string {
	var s string
	if len(m.list.Items()) == 0 {
		s = titleStyle.Render("Notifications") + "\n\n"
		s += normalStyle.Render("  Nothing new. Swipes and matches show up here.") + "\n"
	} else {
		s = m.list.View() + "\n"
	}

	if m.status != "" {
		s += statusStyle.Render(m.status) + "\n"
	}

	s += helpStyle.Render("↑↓/jk: navigate • enter: open • d: dismiss • a: mark all read • esc: back • q: quit")
	return s
}
