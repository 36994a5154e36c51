package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/broomate/roomie/internal/chat"
	"github.com/broomate/roomie/internal/models"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

const sendTimeout = 15 * time.Second

type threadOpenedMsg struct {
	thread *chat.Thread
	err    error
}

// threadChangedMsg carries the thread it came from so signals from a
// closed thread are dropped.
type threadChangedMsg struct {
	thread *chat.Thread
}

type messageSentMsg struct {
	err error
}

type MessagesModel struct {
	svc           *Services
	conversation  models.Conversation
	thread        *chat.Thread
	messages      []models.Message
	viewport      viewport.Model
	textarea      textarea.Model
	loading       bool
	sending       bool
	composing     bool
	err           error
	spinner       spinner.Model
	windowWidth   int
	windowHeight  int
	viewportReady bool
}

func NewMessagesModel(svc *Services, conversation models.Conversation) MessagesModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = statusStyle

	vp := viewport.New(80, 20)
	vp.HighPerformanceRendering = false

	ta := textarea.New()
	ta.Placeholder = "Type your message..."
	ta.CharLimit = 1000
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	return MessagesModel{
		svc:           svc,
		conversation:  conversation,
		viewport:      vp,
		textarea:      ta,
		loading:       true,
		spinner:       s,
		windowWidth:   80,
		windowHeight:  30,
		viewportReady: true,
	}
}

func (m MessagesModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.openThreadCmd())
}

func (m MessagesModel) openThreadCmd() tea.Cmd {
	svc := m.svc
	id := m.conversation.ID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		th, err := chat.Open(ctx, svc.Backend, svc.Directory, svc.Source, svc.UserID, id, svc.Log)
		return threadOpenedMsg{thread: th, err: err}
	}
}

func (m MessagesModel) sendMessageCmd(message string) tea.Cmd {
	th := m.thread
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		_, err := th.Send(ctx, message, nil)
		return messageSentMsg{err: err}
	}
}

func (m *MessagesModel) resize() {
	headerHeight := 6
	textareaHeight := 5
	helpHeight := 2
	availableHeight := m.windowHeight - headerHeight - helpHeight

	m.viewport.Width = m.windowWidth - 4
	m.viewport.Height = availableHeight
	if m.composing {
		m.viewport.Height = availableHeight - textareaHeight
		m.textarea.SetWidth(m.windowWidth - 4)
	}
}

// leave closes the open thread and returns to the inbox.
func (m MessagesModel) leave() (tea.Model, tea.Cmd) {
	if m.thread != nil {
		m.thread.Close()
	}
	convModel := NewConversationsModel(m.svc)
	return convModel, convModel.Init()
}

func (m MessagesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		m.resize()
		m.updateViewportContent()
		return m, nil

	case threadOpenedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.thread = msg.thread
		m.conversation = msg.thread.Conversation()
		m.messages = msg.thread.Messages()
		m.updateViewportContent()
		m.viewport.GotoBottom()
		return m, listen(m.thread.Updates(), threadChangedMsg{thread: m.thread})

	case threadChangedMsg:
		if m.thread == nil || msg.thread != m.thread {
			return m, nil
		}
		m.messages = m.thread.Messages()
		atBottom := m.viewport.AtBottom()
		m.updateViewportContent()
		if atBottom {
			m.viewport.GotoBottom()
		}
		return m, listen(m.thread.Updates(), threadChangedMsg{thread: m.thread})

	case messageSentMsg:
		m.sending = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.textarea.Reset()
		m.resize()
		return m, nil

	case spinner.TickMsg:
		if m.loading || m.sending {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			if m.thread != nil {
				m.thread.Close()
			}
			return m, tea.Quit
		}

		if msg.String() == "esc" {
			if m.composing {
				m.composing = false
				m.textarea.Reset()
				m.textarea.Blur()
				m.err = nil
				m.resize()
				return m, nil
			}
			return m.leave()
		}

		if m.composing {
			switch msg.String() {
			case "ctrl+s":
				messageText := strings.TrimSpace(m.textarea.Value())
				if messageText != "" && m.thread != nil {
					m.sending = true
					m.composing = false
					m.textarea.Blur()
					m.resize()
					return m, tea.Batch(
						m.spinner.Tick,
						m.sendMessageCmd(messageText),
					)
				}
				return m, nil
			default:
				var cmd tea.Cmd
				m.textarea, cmd = m.textarea.Update(msg)
				return m, cmd
			}
		}

		if m.loading || m.sending {
			return m, nil
		}

		switch msg.String() {
		case "q":
			if m.thread != nil {
				m.thread.Close()
			}
			return m, tea.Quit

		case "n", "c":
			if m.thread == nil {
				return m, nil
			}
			m.composing = true
			m.resize()
			m.textarea.Focus()
			return m, textarea.Blink

		case "r":
			if m.thread != nil {
				m.thread.Close()
				m.thread = nil
			}
			m.loading = true
			m.err = nil
			return m, tea.Batch(m.spinner.Tick, m.openThreadCmd())

		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m MessagesModel) senderName(message models.Message) string {
	if message.SenderName != "" {
		return message.SenderName
	}
	for _, p := range m.conversation.Participants {
		if p.UserID == message.SenderID && p.Name != "" {
			return p.Name
		}
	}
	if !m.conversation.IsGroup() && m.conversation.OtherParticipantName != "" {
		return m.conversation.OtherParticipantName
	}
	return "Unknown"
}

func (m *MessagesModel) updateViewportContent() {
	if !m.viewportReady || len(m.messages) == 0 {
		return
	}

	var content strings.Builder
	wrapWidth := m.viewport.Width
	if wrapWidth <= 0 {
		wrapWidth = 80
	}
	right := lipgloss.NewStyle().Align(lipgloss.Right).Width(wrapWidth)

	for i, message := range m.messages {
		if i > 0 {
			content.WriteString("\n")
		}

		timestamp := "--:--"
		if !message.CreatedAt.IsZero() {
			timestamp = message.CreatedAt.Local().Format("3:04 PM")
		}

		if message.SenderID == m.svc.UserID {
			header := messageHeaderStyle.Render(fmt.Sprintf("You • %s", timestamp))
			content.WriteString(right.Render(header) + "\n")

			if message.Content != "" {
				wrappedText := wordwrap.String(message.Content, wrapWidth-10)
				content.WriteString(right.Render(messageFromMeStyle.Render(wrappedText)) + "\n")
			}
			for _, url := range message.MediaURLs {
				attachment := messageHeaderStyle.Render(fmt.Sprintf("📎 [Attachment: %s]", url))
				content.WriteString(right.Render(attachment) + "\n")
			}
			continue
		}

		header := messageHeaderStyle.Render(fmt.Sprintf("%s • %s", m.senderName(message), timestamp))
		content.WriteString(header + "\n")

		if message.Content != "" {
			wrappedText := wordwrap.String(message.Content, wrapWidth-10)
			content.WriteString(messageFromOtherStyle.Render(wrappedText) + "\n")
		}
		for _, url := range message.MediaURLs {
			content.WriteString(messageHeaderStyle.Render(fmt.Sprintf("📎 [Attachment: %s]", url)) + "\n")
		}
	}

	m.viewport.SetContent(content.String())
}

func (m MessagesModel) View() string {
	if m.loading && len(m.messages) == 0 {
		return fmt.Sprintf("\n  %s Loading messages...\n", m.spinner.View())
	}

	title := m.conversation.DisplayName()
	if m.conversation.RoomTitle != "" && !m.conversation.IsGroup() {
		title += " • " + m.conversation.RoomTitle
	}
	s := titleStyle.Render(fmt.Sprintf("💬 %s", title)) + "\n\n"

	if m.err != nil {
		s += errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n"
	}

	if m.sending {
		s += fmt.Sprintf("  %s Sending message...\n", m.spinner.View())
	} else if len(m.messages) == 0 && !m.loading {
		s += normalStyle.Render("  No messages in this conversation.") + "\n"
	} else {
		s += m.viewport.View() + "\n"
	}

	if m.composing {
		s += "\n" + inputStyle.Render("New Message:") + "\n"
		s += m.textarea.View() + "\n"
		s += helpStyle.Render("ctrl+s: send • esc: cancel")
	} else {
		scrollPercent := int(m.viewport.ScrollPercent() * 100)
		helpText := fmt.Sprintf("↑↓/jk: scroll • n: new message • r: reload • esc: back • q: quit • %d%%", scrollPercent)
		s += "\n" + helpStyle.Render(helpText)
	}

	return s
}
