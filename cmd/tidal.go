package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/hazelvane/beatmigrate/internal/services"
	"github.com/hazelvane/beatmigrate/internal/ui"
)

func tidalCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tidal",
		Usage: "Tidal operations",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authenticate with Tidal using the device flow",
				Action: r.TidalLogin,
			},
		},
	}
}

// tidalLogin runs the device-authorization flow with a terminal wait screen
// and returns the authenticated session.
func (r *Runner) tidalLogin(ctx context.Context) (services.TargetSession, error) {
	login, err := r.tidal.StartDeviceLogin(ctx)
	if err != nil {
		return nil, err
	}

	model := ui.NewLoginModel(ctx, r.tidal, login)
	program := tea.NewProgram(model)

	final, err := program.Run()
	if err != nil {
		return nil, err
	}

	result, ok := final.(ui.LoginModel)
	if !ok {
		return nil, fmt.Errorf("unexpected model type %T", final)
	}
	if result.Err() != nil {
		return nil, result.Err()
	}

	return result.Session(), nil
}

// TidalLogin authenticates and prints the user summary.
func (r *Runner) TidalLogin(ctx context.Context, cmd *cli.Command) error {
	session, err := r.tidalLogin(ctx)
	if err != nil {
		return err
	}

	user := session.User()
	return r.writePlainln("Logged in as %s (%s)", user.Name, user.ID)
}
