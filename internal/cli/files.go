package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/orchard/internal/archive"
	"github.com/GriffinCanCode/orchard/internal/format"
)

func newCmdCp(a *App) *cobra.Command {
	var include []string
	cmd := &cobra.Command{
		Use:   "cp CONTAINER:RESOURCE HOSTPATH",
		Short: "Copy files/folders from the container's filesystem to the host path",
		Args:  cobra.ExactArgs(2),
		RunE: a.dockerRun(func(ctx context.Context, d Docker, args []string) error {
			container, resource, ok := strings.Cut(args[0], ":")
			if !ok || container == "" || resource == "" {
				return &UserError{Msg: "The first argument must be of the format CONTAINER:RESOURCE."}
			}

			body, err := d.Copy(ctx, container, resource)
			if err != nil {
				return err
			}
			defer body.Close()

			result, err := a.extract(ctx, body, args[1], include)
			if err != nil {
				return err
			}
			a.Logger.Debug("copied",
				zap.Int("files", result.Files),
				zap.Int("dirs", result.Dirs),
				zap.Int("skipped", result.Skipped),
				zap.Int64("bytes", result.Bytes),
			)
			return nil
		}),
	}
	cmd.Flags().StringArrayVar(&include, "include", nil, "Only copy paths matching this pattern, e.g. '**/*.conf' (can be used multiple times)")
	return cmd
}

// extract unpacks the tar stream into dest while reporting progress.
func (a *App) extract(ctx context.Context, body io.Reader, dest string, include []string) (*archive.Result, error) {
	pr, pw := io.Pipe()
	copied := make(chan error, 1)
	go func() {
		_, err := format.Stream(pw, body, a.Err, func(amount string) string {
			return amount + " copied"
		})
		pw.CloseWithError(err)
		copied <- err
	}()

	result, err := archive.Extract(ctx, pr, dest, archive.ExtractOptions{Include: include})
	if err != nil {
		pr.CloseWithError(err)
		<-copied
		return result, err
	}

	// Drain any padding after the end of the archive.
	_, _ = io.Copy(io.Discard, pr)
	if err := <-copied; err != nil && !errors.Is(err, io.ErrClosedPipe) {
		return result, err
	}
	return result, nil
}

func newCmdExport(a *App) *cobra.Command {
	var (
		compression string
		output      string
	)
	cmd := &cobra.Command{
		Use:   "export CONTAINER",
		Short: "Export the contents of a filesystem as a tar archive",
		Args:  cobra.ExactArgs(1),
		RunE: a.dockerRun(func(ctx context.Context, d Docker, args []string) error {
			comp, err := archive.ParseCompression(compression)
			if err != nil {
				return &UserError{Msg: err.Error()}
			}

			var dst io.Writer = a.Out
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				dst = f
			}

			body, err := d.Export(ctx, args[0])
			if err != nil {
				return err
			}
			defer body.Close()

			w, err := archive.NewWriter(dst, comp)
			if err != nil {
				return err
			}
			_, err = format.Stream(w, body, a.Err, func(amount string) string {
				return amount + " exported"
			})
			if closeErr := w.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return fmt.Errorf("export %s: %w", args[0], err)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&compression, "compress", "", "Compress the archive: gzip or zstd")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}
