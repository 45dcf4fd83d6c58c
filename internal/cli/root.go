// Package cli defines the pairline command tree.
package cli

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/pairline/pairline/internal/config"
	"github.com/pairline/pairline/internal/logging"
	"github.com/pairline/pairline/internal/ui"
	"github.com/pairline/pairline/internal/version"
)

var (
	flagServer   string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagVerbose  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "pairline",
	Short:   "Anonymous 1:1 video chat with strangers, from the terminal",
	Long:    `Pairline pairs you with a random stranger for a one-on-one chat and video call. The server only brokers the match and relays the call setup; the call itself runs peer-to-peer over WebRTC.`,
	Version: version.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "warn"
		if flagVerbose {
			level = "debug"
		}
		logging.Setup(level)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagServer, "server", "", "matchmaking server websocket URL")
	pf.StringVar(&flagSTUN, "stun", "", "STUN server for the media handshake")
	pf.StringVar(&flagTURN, "turn", "", "TURN server for relayed media")
	pf.StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	pf.StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

func loadConfig() (*config.Client, error) {
	return config.LoadClient(config.Options{
		ServerURL:  flagServer,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
	})
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
