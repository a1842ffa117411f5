package cmd

import (
	"github.com/spf13/cobra"

	"github.com/alexytsu/NIARC-2018/internal/config"
	"github.com/alexytsu/NIARC-2018/internal/server"
)

var RootCmd = &cobra.Command{
	Use:   "niarc",
	Short: "sensor daemon for the robot navigation stack",
	Long:  "sensor daemon for the robot navigation stack",
}

func ServeCmdRunE(cmd *cobra.Command, args []string) error {
	server.NewMainApp(cmd, args).PrepareRun().Run()
	return nil
}

func ServeCmdFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "default configuration path")
	cmd.Flags().Int64P("port", "p", config.DefaultAPIPort, "port that the HTTP API listens on")
	cmd.Flags().StringP("interface", "i", config.DefaultAPIInterface, "interface that the HTTP API listens on, default to 0.0.0.0")
	cmd.Flags().Bool("debug", false, "toggle debug logging")
}

var ServeCmd = &cobra.Command{
	Use: "serve",
	SuggestFor: []string{
		"ru", "ser",
	},
	Short: "serve start the sensor daemon using predefined configs.",
	Long: `serve start the sensor daemon using predefined configs, by the following order:
1. path specified in --config flag
2. path defined NIARC_CONFIG environment variable
3. default location $HOME/.config/niarc/config.yaml, /etc/niarc/config.yaml, current directory
The parameters in the configuration file will be overwritten by the following order:
1. command line arguments
2. environment variables
`,
	Example: `  niarc serve --config=/path/to/config`,
	RunE:    ServeCmdRunE,
}

func InitCmdFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("print", false, "print config to stdout")
	cmd.Flags().BoolP("yes", "y", false, "overwrite")
	cmd.Flags().StringP("output", "o", config.DefaultConfig, "specify output directory")
}

var InitCmd = &cobra.Command{
	Use: "init",
	SuggestFor: []string{
		"ini", "in",
	},
	Short: "init create a configuration template",
	Long: `init create a configuration template.
The configuration file can be used to launch the sensor daemon.
If --print flag is present, the configuration will be printed to stdout.
If --output / -o flag is present, the configuration will be saved to the path specified
Otherwise init will output configuration file to $HOME/.config/niarc/config.yaml
If --yes / -y flag is present, the configuration will be overwrite without confirmation
`,
	Example: `  niarc init --print
  niarc init --output /path/to/config.yaml
  niarc init -o /path/to/config.yaml -y`,
	RunE: config.InitCfg,
}

var ProbeCmd = &cobra.Command{
	Use: "probe",
	SuggestFor: []string{
		"pro", "pr", "prob",
	},
	Short: "probe the compatible devices",
	Long: `probe the compatible devices.
The probe command will scan the I2C buses for a BNO080 and print the result to stdout.
Warning: probing relies on i2cdetect from i2c-tools when it is installed.
`,
	Example: `  niarc probe`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = server.NewMainApp(cmd, args).PrepareRun().ProbeSensor()
	},
}

func getRootCmd() *cobra.Command {

	ServeCmdFlags(ServeCmd)
	RootCmd.AddCommand(ServeCmd)

	InitCmdFlags(InitCmd)
	RootCmd.AddCommand(InitCmd)

	RootCmd.AddCommand(ProbeCmd)

	return RootCmd
}

func Execute() {
	rootCmd := getRootCmd()
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
