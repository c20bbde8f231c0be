package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ctagard/lodeb/internal/config"
)

var version = "0.1.0"

// flags holds command line values that are not bound to viper
type flags struct {
	configPath   string
	launchConfig string
	workspace    string
	noMCP        bool
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	v := config.New()

	cmd := &cobra.Command{
		Use:   "lodeb",
		Short: "Source-level debugger session exposed over MCP",
		Long: `lodeb drives one debug target through a Debug Adapter Protocol server
(lldb-dap, gdb or dlv) and exposes the session as Model Context Protocol tools
over stdio.

The executable settings and the shown source file are kept in a session file
(lodeb.json by default) and restored on the next start.

MCP INTEGRATION:
    Add to your MCP client configuration:

    {
        "mcpServers": {
            "lodeb": {
                "command": "lodeb",
                "args": ["--adapter", "lldb"]
            }
        }
    }`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWith(v, f.configPath)
			if err != nil {
				return err
			}
			if f.noMCP {
				cfg.MCP.Enabled = false
			}
			return run(cmd, cfg, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "config file (JSON, YAML or TOML)")
	fl.String("state", "", "session file (default lodeb.json)")
	fl.String("adapter", "", "debug adapter: lldb, gdb or dlv")
	fl.String("log-level", "", "log level: DEBUG, INFO, WARN or ERROR")
	fl.StringVar(&f.launchConfig, "launch-config", "", "import the named launch.json configuration (empty name picks the first)")
	fl.StringVar(&f.workspace, "workspace", "", "workspace root for launch.json discovery (default current directory)")
	fl.BoolVar(&f.noMCP, "no-mcp", false, "run the session driver without the MCP server")

	_ = v.BindPFlag("state_path", fl.Lookup("state"))
	_ = v.BindPFlag("adapter", fl.Lookup("adapter"))
	_ = v.BindPFlag("log.level", fl.Lookup("log-level"))

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "lodeb: %v\n", err)
		os.Exit(1)
	}
}
