// Package ui implements the interactive terminal views using bubbletea's Elm
// architecture: the Tidal device-login wait screen and the migration progress
// monitor used by the CLI.
package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hazelvane/beatmigrate/internal/services"
)

type loginResultMsg struct {
	session services.TargetSession
	err     error
}

// LoginModel waits for the user to approve a Tidal device authorization in
// their browser, spinning until the provider reports a result.
type LoginModel struct {
	ctx      context.Context
	provider services.TargetProvider
	login    *services.DeviceLogin
	spinner  spinner.Model

	session services.TargetSession
	err     error
	done    bool
}

// NewLoginModel creates the wait screen for an already-started device login.
func NewLoginModel(ctx context.Context, provider services.TargetProvider, login *services.DeviceLogin) LoginModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.title

	return LoginModel{
		ctx:      ctx,
		provider: provider,
		login:    login,
		spinner:  s,
	}
}

// Session returns the authenticated session after the program finishes.
func (m LoginModel) Session() services.TargetSession { return m.session }

// Err returns the login failure, if any.
func (m LoginModel) Err() error { return m.err }

func (m LoginModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForLogin())
}

func (m LoginModel) waitForLogin() tea.Cmd {
	return func() tea.Msg {
		session, err := m.provider.WaitForLogin(m.ctx, m.login)
		return loginResultMsg{session: session, err: err}
	}
}

func (m LoginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loginResultMsg:
		m.session = msg.session
		m.err = msg.err
		m.done = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.err = context.Canceled
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m LoginModel) View() string {
	if m.done {
		if m.err != nil {
			return styles.err.Render(fmt.Sprintf("Login failed: %v", m.err)) + "\n"
		}
		user := m.session.User()
		return styles.ok.Render(fmt.Sprintf("Logged in as %s", user.Name)) + "\n"
	}

	return fmt.Sprintf("%s\n\nOpen %s\nand enter code %s\n\n%s %s\n",
		styles.title.Render("Tidal Login"),
		styles.ok.Render(m.login.VerificationURI),
		styles.warn.Render(m.login.UserCode),
		m.spinner.View(),
		styles.help.Render("waiting for authorization (q to cancel)"),
	)
}
