package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/morrisclay/sb3pack/internal/api"
	"github.com/morrisclay/sb3pack/internal/config"
	"github.com/morrisclay/sb3pack/internal/model"
	"github.com/morrisclay/sb3pack/internal/tui"
)

// --- Login Command ---

func newLoginCmd() *cobra.Command {
	var key string
	var host string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API key for the remote packaging service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if host == "" {
				host = config.GetHost()
			}

			// Non-interactive mode
			if key != "" || !isInputInteractive() {
				if key == "" {
					// Read from stdin
					scanner := bufio.NewScanner(os.Stdin)
					if scanner.Scan() {
						key = strings.TrimSpace(scanner.Text())
					}
				}
				if key == "" {
					return fmt.Errorf("API key required")
				}
				return loginWithKey(cmd.Context(), host, key)
			}

			// Interactive TUI mode
			return runLoginTUI(cmd.Context(), host)
		},
	}

	cmd.Flags().StringVarP(&key, "key", "k", "", "API key")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Server host")

	return cmd
}

// verifyAndSave checks key against host and stores it on success.
func verifyAndSave(ctx context.Context, host, key string) (*model.User, error) {
	client := api.NewClient(host, key)
	user, err := client.GetCurrentUser(ctx)
	if err != nil {
		if api.IsUnauthorized(err) {
			return nil, fmt.Errorf("authentication failed: invalid API key")
		}
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	err = config.SetCredential(host, config.Credential{
		APIKey:   key,
		UserID:   user.ID,
		Username: user.Username,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save credentials: %w", err)
	}
	return user, nil
}

func loginWithKey(ctx context.Context, host, key string) error {
	user, err := verifyAndSave(ctx, host, key)
	if err != nil {
		return err
	}
	success(fmt.Sprintf("Logged in as %s", user.Username))
	return nil
}

// loginModel is the TUI model for the login command.
type loginModel struct {
	ctx     context.Context
	host    string
	input   textinput.Model
	spinner spinner.Model
	state   string // "input", "loading", "done", "error"
	user    *model.User
	err     error
}

func newLoginModel(ctx context.Context, host string) loginModel {
	ti := textinput.New()
	ti.Placeholder = "sb3p_..."
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 40
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.PromptStyle = tui.PromptStyle

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = tui.SpinnerStyle

	return loginModel{
		ctx:     ctx,
		host:    host,
		input:   ti,
		spinner: s,
		state:   "input",
	}
}

func (m loginModel) Init() tea.Cmd {
	return textinput.Blink
}

type loginResultMsg struct {
	user *model.User
	err  error
}

func (m loginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			if m.state == "input" && m.input.Value() != "" {
				m.state = "loading"
				key := m.input.Value()
				return m, tea.Batch(
					m.spinner.Tick,
					func() tea.Msg {
						user, err := verifyAndSave(m.ctx, m.host, key)
						return loginResultMsg{user: user, err: err}
					},
				)
			}
		}

	case loginResultMsg:
		if msg.err != nil {
			m.state = "error"
			m.err = msg.err
		} else {
			m.state = "done"
			m.user = msg.user
		}
		return m, tea.Quit

	case spinner.TickMsg:
		if m.state == "loading" {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}

	if m.state == "input" {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m loginModel) View() string {
	switch m.state {
	case "input":
		return fmt.Sprintf(
			"%s\n\n%s\n\n%s",
			tui.TitleStyle.Render("Login to "+m.host),
			"Enter your API key:\n\n"+m.input.View(),
			tui.HelpStyle.Render("enter submit • esc cancel"),
		)
	case "loading":
		return m.spinner.View() + " Authenticating..."
	case "done":
		return tui.SuccessStyle.Render("✓") + fmt.Sprintf(" Logged in as %s\n", m.user.Username)
	case "error":
		return tui.ErrorStyle.Render("✗") + fmt.Sprintf(" %v\n", m.err)
	}
	return ""
}

func runLoginTUI(ctx context.Context, host string) error {
	m := newLoginModel(ctx, host)
	p := tea.NewProgram(m)
	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	if lm, ok := finalModel.(loginModel); ok && lm.err != nil {
		return lm.err
	}
	return nil
}

// --- Logout Command ---

func newLogoutCmd() *cobra.Command {
	var host string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Clear saved credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			if host == "" {
				host = config.GetHost()
			}

			if err := config.RemoveCredential(host); err != nil {
				return fmt.Errorf("failed to remove credentials: %w", err)
			}

			success(fmt.Sprintf("Logged out from %s", host))
			return nil
		},
	}

	cmd.Flags().StringVarP(&host, "host", "H", "", "Server host")
	return cmd
}

// --- Whoami Command ---

func newWhoamiCmd() *cobra.Command {
	var host string

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the account behind the current API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClientFromConfig(host)
			if !client.HasAuth() {
				return fmt.Errorf("not logged in to %s (run 'sb3pack login' or set %s)", client.Host(), config.EnvAPIKey)
			}

			user, err := client.GetCurrentUser(cmd.Context())
			if err != nil {
				return err
			}

			if config.GetOutputFormat() == "json" {
				outputJSON(user)
			} else {
				fmt.Printf("Username: %s\n", user.Username)
				fmt.Printf("Email:    %s\n", user.Email)
				fmt.Printf("User ID:  %s\n", user.ID)
				fmt.Printf("Host:     %s\n", client.Host())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&host, "host", "H", "", "Server host")
	return cmd
}
