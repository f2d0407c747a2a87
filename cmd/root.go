package cmd

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/talentsift/talentsift/internal/blob"
	"github.com/talentsift/talentsift/internal/screening"
	"github.com/talentsift/talentsift/internal/server"
)

const (
	app = "talentsift"
)

type Config struct {
	Server    *server.Config    `mapstructure:"server"`
	Database  *DatabaseConfig   `mapstructure:"database"`
	Storage   *blob.Config      `mapstructure:"storage"`
	Events    *EventsConfig     `mapstructure:"events"`
	Screening *screening.Config `mapstructure:"screening"`
	AI        *AIConfig         `mapstructure:"ai"`
}

type DatabaseConfig struct {
	DSN     string `mapstructure:"dsn"`
	DSNFile string `mapstructure:"dsn-file"`
}

type EventsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "talentsift screens resume batches against job requirements with LLM-assisted scoring",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// A .env file is optional, environment variables win either way.
	_ = godotenv.Load()

	if err := viper.BindEnv("database.dsn", "DATABASE_URL"); err != nil {
		log.Fatalf("binding DATABASE_URL environment variable: %v", err)
	}
	if err := viper.BindEnv("events.url", "RABBITMQ_URL"); err != nil {
		log.Fatalf("binding RABBITMQ_URL environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is talentsift.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for commands touching the backing services. Version
	// and help work without one.
	if serveCmd.CalledAs() == "" && jobsListCmd.CalledAs() == "" && jobsDeleteCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config, viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc()))
	if err != nil {
		return config, err
	}

	return config, nil
}
