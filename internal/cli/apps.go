package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/orchard/internal/api"
	"github.com/GriffinCanCode/orchard/internal/format"
)

// NewCmdApps implements the apps command group; with no subcommand it
// lists the apps.
func NewCmdApps(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "Manage Orchard apps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listApps(cmd.Context())
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "ls",
			Short: "List apps (default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.listApps(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "create NAME",
			Short: "Add a new app",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.createApp(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "rm NAME [NAME...]",
			Short: "Remove an app",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.removeApps(cmd.Context(), args)
			},
		},
	)
	return cmd
}

func (a *App) listApps(ctx context.Context) error {
	client, err := a.Orchard(ctx)
	if err != nil {
		return err
	}
	apps, err := client.Apps().List(ctx)
	if err != nil {
		return err
	}

	if len(apps) == 0 {
		a.Logger.Error(`You don't have any apps yet. Run "orchard apps create" to create one.`)
		return nil
	}
	for _, app := range apps {
		fmt.Fprintln(a.Out, app.Name)
	}
	return nil
}

func (a *App) createApp(ctx context.Context, name string) error {
	client, err := a.Orchard(ctx)
	if err != nil {
		return err
	}

	app, err := client.Apps().Create(ctx, name)
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) && statusErr.Kind() == api.KindBadRequest {
		if messages := statusErr.FieldErrors("name"); len(messages) > 0 {
			return &UserError{Msg: strings.Join(messages, "\n")}
		}
		return &UserError{Msg: string(statusErr.Raw)}
	}
	if err != nil {
		return err
	}

	a.Logger.Info("Created " + app.Name)
	return nil
}

func (a *App) removeApps(ctx context.Context, names []string) error {
	client, err := a.Orchard(ctx)
	if err != nil {
		return err
	}

	apps := client.Apps()
	for _, name := range names {
		app, err := apps.Get(ctx, name)
		if api.IsNotFound(err) {
			return &UserError{Msg: fmt.Sprintf("No such app: %s", name)}
		}
		if err != nil {
			return err
		}
		if err := apps.Delete(ctx, app); err != nil {
			return err
		}
		a.Logger.Info("Deleted " + name)
	}
	return nil
}

// NewCmdHosts implements the hosts command group.
func NewCmdHosts(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hosts",
		Short: "Inspect the Docker hosts provisioned for your apps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listHosts(cmd.Context())
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List hosts (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listHosts(cmd.Context())
		},
	})
	return cmd
}

func (a *App) listHosts(ctx context.Context) error {
	client, err := a.Orchard(ctx)
	if err != nil {
		return err
	}
	hosts, err := client.Hosts().List(ctx)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(hosts))
	for _, host := range hosts {
		rows = append(rows, []string{host.Name, fmt.Sprintf("%dM", host.Size), host.IPv4Address})
	}
	format.Table(a.Out, []string{"Name", "Size", "IP Address"}, rows)
	return nil
}

// NewCmdLogin implements the login command.
func NewCmdLogin(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in and store an API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newOrchard()
			if err != nil {
				return err
			}
			authenticator, err := a.authenticator(client)
			if err != nil {
				return err
			}
			if err := authenticator.Login(cmd.Context()); err != nil {
				return err
			}

			customer, err := client.CustomerData(cmd.Context())
			if err != nil {
				return err
			}
			a.Logger.Info("Logged in as " + customer.Username)
			return nil
		},
	}
}

// NewCmdLogout implements the logout command.
func NewCmdLogout(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newOrchard()
			if err != nil {
				return err
			}
			authenticator, err := a.authenticator(client)
			if err != nil {
				return err
			}
			if err := authenticator.Logout(); err != nil {
				return err
			}
			a.Logger.Info("Logged out")
			return nil
		},
	}
}
