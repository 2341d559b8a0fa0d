package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/gridsense/internal/profile"
	"github.com/hrygo/gridsense/internal/version"
	"github.com/hrygo/gridsense/server"
	"github.com/hrygo/gridsense/store"
	"github.com/hrygo/gridsense/store/db"
)

var rootCmd = &cobra.Command{
	Use:   "gridsense",
	Short: "An experiential learning service for spreadsheet-editing agents. Learns which grid edits work from execution outcomes and user feedback.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is for direct binary runs; service managers inject env directly.
		_ = godotenv.Load()
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Driver:  viper.GetString("driver"),
			DSN:     viper.GetString("dsn"),
			Version: version.GetCurrentVersion(viper.GetString("mode")),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			slog.Error("invalid configuration", "error", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		dbDriver, err := db.NewDriver(instanceProfile)
		if err != nil {
			slog.Error("failed to create store driver", "driver", instanceProfile.Driver, "error", err)
			return
		}

		storeInstance := store.New(dbDriver)
		if err := storeInstance.Migrate(ctx); err != nil {
			slog.Error("failed to migrate", "error", err)
			return
		}

		s, err := server.NewServer(ctx, instanceProfile, storeInstance)
		if err != nil {
			slog.Error("failed to create server", "error", err)
			return
		}

		c := make(chan os.Signal, 1)
		// SIGTERM is what most process managers send for graceful shutdown.
		signal.Notify(c, terminationSignals...)

		if err := s.Start(ctx); err != nil {
			slog.Error("failed to start server", "error", err)
			return
		}

		printGreetings(instanceProfile)

		go func() {
			<-c
			s.Shutdown(ctx)
			cancel()
		}()

		<-ctx.Done()
	},
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "inmem")
	viper.SetDefault("port", 28090)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28090, "port of server")
	rootCmd.PersistentFlags().String("driver", "inmem", "experience store driver (postgres, inmem)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")

	for _, flag := range []string{"mode", "addr", "port", "driver", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("gridsense")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("GridSense %s started successfully!\n", p.Version)

	if p.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
	}

	fmt.Printf("Store driver: %s\n", p.Driver)
	fmt.Printf("Mode: %s\n", p.Mode)
	if len(p.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", p.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", p.Addr, p.Port)
	}
	if p.IsGenerationEnabled() {
		fmt.Printf("Generation: %s (%s)\n", p.LLMProvider, p.LLMModel)
	} else {
		fmt.Println("Generation: disabled (set GRIDSENSE_LLM_API_KEY to enable)")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
