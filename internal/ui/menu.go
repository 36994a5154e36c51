package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	menuInbox         = "inbox"
	menuNotifications = "notifications"
)

type menuItem struct {
	key   string
	title string
	desc  string
}

func (i menuItem) FilterValue() string { return i.title }
func (i menuItem) Title() string       { return i.title }
func (i menuItem) Description() string { return i.desc }

type MenuModel struct {
	svc          *Services
	list         list.Model
	windowWidth  int
	windowHeight int
}

// NewMenuModel creates the main menu with Inbox and Notifications options.
func NewMenuModel(svc *Services) MenuModel {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("5")).
		Bold(true)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color("8"))

	l := list.New(nil, delegate, 80, 14)
	l.Title = "Roomie"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	m := MenuModel{
		svc:          svc,
		list:         l,
		windowWidth:  80,
		windowHeight: 30,
	}
	m.refresh()
	return m
}

func (m *MenuModel) refresh() {
	snap := m.svc.Directory.Snapshot()
	m.list.SetItems([]list.Item{
		menuItem{
			key:   menuInbox,
			title: "💬 Inbox",
			desc:  fmt.Sprintf("%d unread conversations", snap.UnreadCount),
		},
		menuItem{
			key:   menuNotifications,
			title: "🔔 Notifications",
			desc:  fmt.Sprintf("%d new", m.svc.Feed.UnreadCount()),
		},
	})
	m.list.Title = "Roomie  " + connectionStatus(snap.IsConnected)
}

func (m MenuModel) Init() tea.Cmd {
	return nil
}

func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		m.list.SetWidth(msg.Width)
		m.list.SetHeight(msg.Height - 4)
		return m, nil

	case directoryChangedMsg, feedChangedMsg:
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}

		if msg.String() == "enter" {
			selectedItem, ok := m.list.SelectedItem().(menuItem)
			if !ok {
				return m, nil
			}

			switch selectedItem.key {
			case menuInbox:
				conversationsModel := NewConversationsModel(m.svc)
				return conversationsModel, conversationsModel.Init()
			case menuNotifications:
				notificationsModel := NewNotificationsModel(m.svc)
				return notificationsModel, notificationsModel.Init()
			}
		}

		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m MenuModel) View() string {
	s := m.list.View() + "\n"
	s += helpStyle.Render("↑↓/jk: navigate • enter: select • q: quit")
	return s
}
