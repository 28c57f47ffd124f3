package docker

// Port is a published container port.
type Port struct {
	PrivatePort int    `json:"PrivatePort"`
	PublicPort  int    `json:"PublicPort"`
	Type        string `json:"Type"`
}

// Container is one entry of the container list.
type Container struct {
	ID                string `json:"Id"`
	Image             string `json:"Image"`
	Command           string `json:"Command"`
	Created           int64  `json:"Created"`
	Status            string `json:"Status"`
	Ports             []Port `json:"Ports"`
	ExternalIPAddress string `json:"ExternalIPAddress,omitempty"`
}

// Config is the container configuration sent on create and reported by
// inspect.
type Config struct {
	Hostname     string              `json:"Hostname"`
	User         string              `json:"User"`
	Memory       int64               `json:"Memory"`
	MemorySwap   int64               `json:"MemorySwap"`
	AttachStdin  bool                `json:"AttachStdin"`
	AttachStdout bool                `json:"AttachStdout"`
	AttachStderr bool                `json:"AttachStderr"`
	PortSpecs    []string            `json:"PortSpecs"`
	Privileged   bool                `json:"Privileged"`
	Tty          bool                `json:"Tty"`
	OpenStdin    bool                `json:"OpenStdin"`
	StdinOnce    bool                `json:"StdinOnce"`
	Env          []string            `json:"Env"`
	Cmd          []string            `json:"Cmd"`
	Dns          []string            `json:"Dns"`
	Image        string              `json:"Image"`
	Volumes      map[string]struct{} `json:"Volumes"`
	VolumesFrom  string              `json:"VolumesFrom"`
	WorkingDir   string              `json:"WorkingDir"`
}

// State is the runtime state of a container.
type State struct {
	Running   bool   `json:"Running"`
	Pid       int    `json:"Pid"`
	ExitCode  int    `json:"ExitCode"`
	StartedAt string `json:"StartedAt"`
}

// ContainerInfo is the inspect view of a container.
type ContainerInfo struct {
	ID      string   `json:"ID"`
	Created string   `json:"Created"`
	Path    string   `json:"Path"`
	Args    []string `json:"Args"`
	Config  Config   `json:"Config"`
	State   State    `json:"State"`
	Image   string   `json:"Image"`
	Name    string   `json:"Name"`
}

// Created is the response to a create or replace.
type Created struct {
	ID       string   `json:"Id"`
	Warnings []string `json:"Warnings"`
}

// Change kinds reported by Diff.
const (
	ChangeModify = iota
	ChangeAdd
	ChangeDelete
)

// Change is a filesystem change inside a container.
type Change struct {
	Path string `json:"Path"`
	Kind int    `json:"Kind"`
}

// Symbol is the one-letter code for the change kind: C, A or D.
func (c Change) Symbol() string {
	if c.Kind < ChangeModify || c.Kind > ChangeDelete {
		return "?"
	}
	return string("CAD"[c.Kind])
}

// Top lists the processes running in a container.
type Top struct {
	Titles    []string   `json:"Titles"`
	Processes [][]string `json:"Processes"`
}

// Version describes the Docker daemon.
type Version struct {
	Version   string `json:"Version"`
	GitCommit string `json:"GitCommit"`
	GoVersion string `json:"GoVersion"`
}

// CreateOptions describes a container to create.
type CreateOptions struct {
	Image      string
	Cmd        []string
	Env        []string
	Ports      []string
	Volumes    []string
	Memory     int64
	StdinOpen  bool
	Tty        bool
	Privileged bool
	// Detach leaves the standard streams unattached.
	Detach bool
}

// Config builds the create request body.
func (o CreateOptions) Config() Config {
	cfg := Config{
		Image:      o.Image,
		Cmd:        o.Cmd,
		Env:        o.Env,
		PortSpecs:  o.Ports,
		Memory:     o.Memory,
		Tty:        o.Tty,
		OpenStdin:  o.StdinOpen,
		Privileged: o.Privileged,
	}
	if !o.Detach {
		cfg.AttachStdout = true
		cfg.AttachStderr = true
		if o.StdinOpen {
			cfg.AttachStdin = true
			cfg.StdinOnce = true
		}
	}
	if len(o.Volumes) > 0 {
		cfg.Volumes = make(map[string]struct{}, len(o.Volumes))
		for _, v := range o.Volumes {
			cfg.Volumes[v] = struct{}{}
		}
	}
	return cfg
}
