package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cosmossdk.io/log"
	"github.com/cometbft/cometbft/abci/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"merklepool/internal/app"
	"merklepool/internal/gateway"
)

var rootCmd = &cobra.Command{
	Use:   "mpoold",
	Short: "merklepool ABCI application daemon",
	Long: `mpoold runs the merklepool escrow and prize-distribution chain app
as a CometBFT ABCI server, and bundles the off-system tooling that builds
prize commitment trees.`,
	SilenceUsage: true,
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(newStartCmd())
	rootCmd.AddCommand(newMerkleRootCmd())
}

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the ABCI server (and the optional read-only HTTP gateway)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := viper.New()
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			if cfg := v.GetString("config"); cfg != "" {
				// Flags explicitly set on the command line still win over the
				// file: viper resolves pflags ahead of config keys only when
				// the flag changed, which is the merge we want.
				v.SetConfigFile(cfg)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("read config: %w", err)
				}
			}

			home := v.GetString("home")
			addr := v.GetString("addr")
			transport := v.GetString("transport")
			httpAddr := v.GetString("http")

			logger := log.NewLogger(os.Stderr)

			a, err := app.New(home, logger)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}

			srv, err := server.NewServer(addr, transport, a)
			if err != nil {
				return fmt.Errorf("start abci server: %w", err)
			}
			if err := srv.Start(); err != nil {
				return fmt.Errorf("abci server start: %w", err)
			}
			defer func() { _ = srv.Stop() }()
			logger.Info("abci server listening", "addr", addr, "transport", transport)

			if httpAddr != "" {
				gw := gateway.New(a)
				go func() {
					if err := gw.Serve(httpAddr); err != nil {
						logger.Error("http gateway stopped", "err", err)
					}
				}()
				logger.Info("http gateway listening", "addr", httpAddr)
			}

			// Wait for signal.
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			return nil
		},
	}

	cmd.Flags().String("home", ".mpool", "app home directory (state is stored under <home>/app)")
	cmd.Flags().String("addr", "tcp://127.0.0.1:26658", "ABCI listen address")
	cmd.Flags().String("transport", "socket", "ABCI transport (socket|grpc)")
	cmd.Flags().String("http", "", "read-only HTTP gateway listen address (empty disables)")
	cmd.Flags().String("config", "", "optional config file merged under the flags")
	return cmd
}
