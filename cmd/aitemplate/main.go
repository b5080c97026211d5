package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	// Packages
	kong "github.com/alecthomas/kong"
	log "github.com/charmbracelet/log"
	version "github.com/mutablelogic/go-aitemplate/pkg/version"
	tracing "go.opentelemetry.io/otel"
	trace "go.opentelemetry.io/otel/trace"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type Globals struct {
	// Debugging
	Debug   bool `name:"debug" help:"Enable debug output"`
	Verbose bool `name:"verbose" help:"Enable verbose output, including HTTP bodies"`

	// Backend
	URL     string        `name:"url" env:"AITEMPLATE_URL" help:"Backend endpoint, including the API prefix" default:"http://localhost:8080/api"`
	Token   string        `name:"token" env:"AITEMPLATE_TOKEN" help:"Bearer token, overriding a stored login" optional:""`
	Timeout time.Duration `name:"timeout" env:"AITEMPLATE_TIMEOUT" help:"Timeout for non-streaming requests" default:"30s"`

	// Private
	ctx      context.Context
	cancel   context.CancelFunc
	execName string
	logger   *log.Logger
	tracer   trace.Tracer
	defaults *Defaults
}

type CLI struct {
	Globals

	MetadataCommands
	ChatCommands
	AuthCommands
	Admin AdminCommands `cmd:"" name:"admin" help:"Manage models and skills." group:"ADMIN"`
	ServeCommands
	Version VersionCommand `cmd:"" name:"version" help:"Print the version."`
}

///////////////////////////////////////////////////////////////////////////////
// MAIN

func main() {
	cli := CLI{}
	cli.execName = execName()
	cmd := kong.Parse(&cli,
		kong.Name(cli.execName),
		kong.Description("Command line client for the aitemplate chat backend"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	// Create a context, cancelled on interrupt
	cli.ctx, cli.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cli.cancel()

	// Logger
	level := log.WarnLevel
	if cli.Debug {
		level = log.DebugLevel
	}
	cli.logger = log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: cli.Debug,
		Prefix:          cli.execName,
	})

	// Tracer from the global provider, a no-op unless one is registered
	cli.tracer = tracing.Tracer(cli.execName, trace.WithInstrumentationVersion(version.Version()))

	// Stored defaults
	if defaults, err := NewDefaults(defaultsPath(cli.execName)); err != nil {
		cmd.FatalIfErrorf(err)
	} else {
		cli.defaults = defaults
	}

	// Run the selected command
	cmd.FatalIfErrorf(cmd.Run(&cli.Globals))
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func execName() string {
	name, err := os.Executable()
	if err != nil {
		return "aitemplate"
	}
	return filepath.Base(name)
}

// defaultsPath returns the defaults file in the user config directory
func defaultsPath(execName string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, execName, "defaults.json")
}
