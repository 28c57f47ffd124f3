package cli

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/orchard/internal/docker"
)

var (
	memoryPattern = regexp.MustCompile(`(?i)^(\d+)([kmg])?b?$`)
	portPattern   = regexp.MustCompile(`^\d+(:\d+)?$`)
)

// ParseMemory reads a byte count with an optional k, m or g suffix, e.g.
// "512M" or "1gb".
func ParseMemory(s string) (int64, error) {
	match := memoryPattern.FindStringSubmatch(s)
	if match == nil {
		return 0, &UserError{Msg: "Invalid format for -m. It must be bytes, with optional SI unit. E.g.: 512M"}
	}

	n, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, &UserError{Msg: fmt.Sprintf("Invalid memory size %q", s)}
	}
	switch strings.ToLower(match[2]) {
	case "k":
		n <<= 10
	case "m":
		n <<= 20
	case "g":
		n <<= 30
	}
	return n, nil
}

// ValidatePorts checks each port is PORT or PUBLIC:PRIVATE.
func ValidatePorts(ports []string) error {
	for _, port := range ports {
		if !portPattern.MatchString(port) {
			return &UserError{Msg: "The -p argument must be of the format XXX or XXX:YYY."}
		}
	}
	return nil
}

// ValidateVolume rejects host paths; only container paths are supported.
func ValidateVolume(path string) error {
	if strings.Contains(path, ":") {
		return &UserError{Msg: "HOST:CONTAINER path format is not currently supported - you can only specify the container path."}
	}
	return nil
}

// volumeBinds binds every volume of a container to host storage managed
// by Orchard.
func volumeBinds(info *docker.ContainerInfo) []string {
	binds := make([]string, 0, len(info.Config.Volumes))
	for path := range info.Config.Volumes {
		binds = append(binds, ":"+path)
	}
	sort.Strings(binds)
	return binds
}

func commandArgs(args []string) []string {
	if len(args) == 0 {
		return nil
	}
	return args
}

type runOptions struct {
	detach      bool
	env         []string
	interactive bool
	memory      string
	ports       []string
	privileged  bool
	tty         bool
	volume      string
}

func newCmdRun(a *App) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [options] IMAGE [COMMAND] [ARG...]",
		Short: "Run a command in a new container",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.dockerRun(func(ctx context.Context, d Docker, args []string) error {
			return a.runContainer(ctx, d, o, args[0], commandArgs(args[1:]))
		}),
	}
	cmd.Flags().SetInterspersed(false)

	flags := cmd.Flags()
	flags.BoolVarP(&o.detach, "detach", "d", false, "Detached mode: Run container in the background, print new container id")
	flags.StringArrayVarP(&o.env, "env", "e", nil, "Set an environment variable VAR=VAL (can be used multiple times)")
	flags.BoolVarP(&o.interactive, "interactive", "i", false, "Attach this terminal's stdin to the running process")
	flags.StringVarP(&o.memory, "memory", "m", "512M", "Amount of memory, rounded to nearest Orchard container size (in bytes with SI suffix)")
	flags.StringArrayVarP(&o.ports, "publish", "p", nil, "Expose a container's port to the host, as public:private. If the public port is omitted, a random port will be assigned")
	flags.BoolVar(&o.privileged, "privileged", false, "Give extended privileges to this container")
	flags.BoolVarP(&o.tty, "tty", "t", false, "Allocate a pseudo-tty")
	flags.StringVarP(&o.volume, "volume", "v", "", "Mount a volume at the specified path (e.g. /var/lib/mysql)")
	return cmd
}

func (a *App) runContainer(ctx context.Context, d Docker, o *runOptions, image string, command []string) error {
	if err := ValidatePorts(o.ports); err != nil {
		return err
	}

	var volumes []string
	if o.volume != "" {
		if err := ValidateVolume(o.volume); err != nil {
			return err
		}
		volumes = []string{o.volume}
	}

	var memory int64
	if o.memory != "" {
		var err error
		if memory, err = ParseMemory(o.memory); err != nil {
			return err
		}
	}

	if image != "ubuntu" {
		a.Logger.Info("Pulling image " + image)
	}

	created, err := d.CreateContainer(ctx, docker.CreateOptions{
		Image:      image,
		Cmd:        command,
		Env:        o.env,
		Ports:      o.ports,
		Volumes:    volumes,
		Memory:     memory,
		StdinOpen:  o.interactive,
		Tty:        o.tty,
		Privileged: o.privileged,
		Detach:     o.detach,
	})
	if err != nil {
		return err
	}

	info, err := d.InspectContainer(ctx, created.ID)
	if err != nil {
		return err
	}
	binds := volumeBinds(info)

	if o.detach {
		if err := d.Start(ctx, info.ID, binds); err != nil {
			return err
		}
		fmt.Fprintln(a.Out, shortID(info.ID))
		return nil
	}

	return a.attachContainer(ctx, d, info.ID, docker.AttachOptions{
		Interactive: o.interactive,
		Logs:        true,
		Stream:      true,
	}, o.tty, func(ctx context.Context) error {
		return d.Start(ctx, info.ID, binds)
	})
}

type replaceOptions struct {
	env   []string
	ports []string
}

func newCmdReplace(a *App) *cobra.Command {
	o := &replaceOptions{}
	cmd := &cobra.Command{
		Use:   "replace [options] CONTAINER IMAGE [COMMAND] [ARG...]",
		Short: "Replace a running container with a new one, using the specified image",
		Args:  cobra.MinimumNArgs(2),
		RunE: a.dockerRun(func(ctx context.Context, d Docker, args []string) error {
			return a.replaceContainer(ctx, d, o, args[0], args[1], commandArgs(args[2:]))
		}),
	}
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringArrayVarP(&o.env, "env", "e", nil, "Set an environment variable VAR=VAL (can be used multiple times)")
	cmd.Flags().StringArrayVarP(&o.ports, "publish", "p", nil, "Expose a container's port to the host")
	return cmd
}

func (a *App) replaceContainer(ctx context.Context, d Docker, o *replaceOptions, id, image string, command []string) error {
	if err := ValidatePorts(o.ports); err != nil {
		return err
	}

	a.Logger.Info("Pulling image " + image)

	created, err := d.ReplaceContainer(ctx, id, docker.CreateOptions{
		Image: image,
		Cmd:   command,
		Env:   o.env,
		Ports: o.ports,
	})
	if err != nil {
		return err
	}

	info, err := d.InspectContainer(ctx, created.ID)
	if err != nil {
		return err
	}
	if err := d.Start(ctx, info.ID, volumeBinds(info)); err != nil {
		return err
	}

	fmt.Fprintln(a.Out, shortID(info.ID))
	return nil
}
