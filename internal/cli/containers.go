package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/orchard/internal/api"
	"github.com/GriffinCanCode/orchard/internal/format"
)

// dockerClientVersion is the Docker client release the commands mirror.
const dockerClientVersion = "0.6.4"

func newCmdPs(a *App) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "ps [options]",
		Short: "List containers",
		Args:  cobra.NoArgs,
		RunE: a.dockerRun(func(ctx context.Context, d Docker, args []string) error {
			containers, err := d.Containers(ctx, false)
			if err != nil {
				return err
			}

			if quiet {
				for _, c := range containers {
					fmt.Fprintln(a.Out, shortID(c.ID))
				}
				return nil
			}

			now := a.Now().UTC()
			rows := make([][]string, 0, len(containers))
			for _, c := range containers {
				ports := ""
				if len(c.Ports) > 0 {
					ports = fmt.Sprintf("%d->%d", c.Ports[0].PublicPort, c.Ports[0].PrivatePort)
				}
				rows = append(rows, []string{
					shortID(c.ID),
					c.Image,
					truncate(c.Command, 20),
					format.PrettyDate(time.Unix(c.Created, 0).UTC(), now),
					c.Status,
					c.ExternalIPAddress,
					ports,
				})
			}
			format.Table(a.Out, []string{"ID", "Image", "Command", "Created", "Status", "IP Address", "Ports"}, rows)
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only display IDs")
	return cmd
}

func newCmdDiff(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "diff CONTAINER",
		Short: "Inspect changes on a container's filesystem",
		Args:  cobra.ExactArgs(1),
		RunE: a.dockerRun(func(ctx context.Context, d Docker, args []string) error {
			changes, err := d.Diff(ctx, args[0])
			if err != nil {
				return err
			}
			for _, change := range changes {
				fmt.Fprintf(a.Out, "%s %s\n", change.Symbol(), change.Path)
			}
			return nil
		}),
	}
}

func newCmdTop(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "top CONTAINER",
		Short: "Lookup the running processes of a container",
		Args:  cobra.ExactArgs(1),
		RunE: a.dockerRun(func(ctx context.Context, d Docker, args []string) error {
			top, err := d.Top(ctx, args[0])
			if err != nil {
				return err
			}
			format.Table(a.Out, top.Titles, top.Processes)
			return nil
		}),
	}
}

func newCmdInspect(a *App) *cobra.Command {
	var encoding string
	cmd := &cobra.Command{
		Use:   "inspect CONTAINER_OR_IMAGE [CONTAINER_OR_IMAGE...]",
		Short: "Return low-level information on a container/image",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.dockerRun(func(ctx context.Context, d Docker, args []string) error {
			infos := make([]map[string]any, 0, len(args))
			for _, name := range args {
				info, err := d.InspectContainerRaw(ctx, name)
				if api.IsNotFound(err) {
					info, err = d.InspectImage(ctx, name)
				}
				if api.IsNotFound(err) {
					return &UserError{Msg: "No such container or image: " + name}
				}
				if err != nil {
					return err
				}
				infos = append(infos, info)
			}
			return format.Encode(a.Out, encoding, infos)
		}),
	}
	cmd.Flags().StringVar(&encoding, "format", format.EncodingJSON, "Output format: json or yaml")
	return cmd
}

func newCmdVersion(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: a.dockerRun(func(ctx context.Context, d Docker, args []string) error {
			version, err := d.Version(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.Out, "Client version:", dockerClientVersion)
			fmt.Fprintln(a.Out, "Server version:", version.Version)
			fmt.Fprintln(a.Out, "Git commit:", version.GitCommit)
			fmt.Fprintln(a.Out, "Go version:", version.GoVersion)
			return nil
		}),
	}
}
