package ui

import (
	"reflect"

	"github.com/broomate/roomie/internal/chat"
	"github.com/broomate/roomie/internal/directory"
	"github.com/broomate/roomie/internal/notify"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// Services are the long-lived objects the screens read from. They are built
// and torn down by main.
type Services struct {
	Directory *directory.Directory
	Feed      *notify.Feed
	Backend   chat.Backend
	Source    chat.MessageSource
	UserID    string
	Log       *zap.Logger
}

type directoryChangedMsg struct{}

type feedChangedMsg struct{}

// listen waits for one signal on ch and reports it as msg. A closed channel
// is reported too, so the receiver can stop listening.
func listen(ch <-chan struct{}, msg tea.Msg) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return msg
	}
}

// App hosts the current screen. It keeps the directory and feed listeners
// armed across screen changes and forwards every message to the screen.
type App struct {
	svc    *Services
	screen tea.Model
	size   tea.WindowSizeMsg
}

func NewApp(svc *Services) App {
	return App{svc: svc, screen: NewMenuModel(svc)}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.screen.Init(),
		listen(a.svc.Directory.Updates(), directoryChangedMsg{}),
		listen(a.svc.Feed.Updates(), feedChangedMsg{}),
	)
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var rearm tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.size = msg
	case directoryChangedMsg:
		rearm = listen(a.svc.Directory.Updates(), directoryChangedMsg{})
	case feedChangedMsg:
		rearm = listen(a.svc.Feed.Updates(), feedChangedMsg{})
	}

	prev := a.screen
	next, cmd := prev.Update(msg)
	a.screen = next

	// A fresh screen has not seen the window size yet.
	if reflect.TypeOf(next) != reflect.TypeOf(prev) && a.size.Width > 0 {
		var sizeCmd tea.Cmd
		a.screen, sizeCmd = a.screen.Update(a.size)
		cmd = tea.Batch(cmd, sizeCmd)
	}
	return a, tea.Batch(cmd, rearm)
}

func (a App) View() string {
	return a.screen.View()
}
