package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/senpro-it/nr-chart-refresh-updater/backup"
	"github.com/senpro-it/nr-chart-refresh-updater/dashboards"
	"github.com/senpro-it/nr-chart-refresh-updater/mailer"
	"github.com/senpro-it/nr-chart-refresh-updater/nerdgraph"
	"github.com/senpro-it/nr-chart-refresh-updater/updater"
)

type Config struct {
	APIKey    string
	Region    nerdgraph.Region
	BackupDir string
	Mail      mailer.Mailer
	MailTo    []string
}

func main() {
	// configure oops
	oops.SourceFragmentsHidden = false

	logger := log.NewWithOptions(os.Stdout, log.Options{
		Prefix:          "",
		ReportCaller:    false,
		ReportTimestamp: true,
	})
	v := viper.NewWithOptions(viper.WithLogger(slog.New(logger)))

	logger.Info("Starting", "args", os.Args[1:])
	defer logger.Info("Finished")

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		err := oops.Wrap(err)
		logger.Fatal(err.Error(), "error", err)
	}

	// Configure viper
	pflag.StringP("config_file", "f", "config.json", "name of configuration file")
	pflag.BoolP("debug", "d", false, "enable debug logging")
	pflag.String("region", "US", "NerdGraph region (US or EU)")
	pflag.String("backup_dir", "", "directory for dashboard backups; empty disables backups")
	pflag.String("api_key", "", "New Relic User API key")
	pflag.Parse()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		err := oops.Wrap(err)
		logger.Fatal(err.Error(), "error", err)
	}

	v.SetEnvPrefix("nrcru")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if v.GetBool("debug") {
		logger.SetLevel(log.DebugLevel)
	}

	v.SetConfigFile(v.GetString("config_file"))
	if err := v.ReadInConfig(); err != nil {
		err := oops.
			With("config_file", v.GetString("config_file")).
			Wrap(err)
		logger.Fatal(err.Error(), "error", err)
	}

	config, err := loadConfig(v)
	if err != nil {
		logger.Fatal(err.Error(), "error", err)
	}
	logger.Info("Configuration loaded!", "region", config.Region, "backups", config.BackupDir != "")

	runID := uuid.NewString()
	logger = logger.With("run", runID)

	client := nerdgraph.NewClient(config.APIKey, nerdgraph.WithLogger(logger))
	u := updater.New(
		dashboards.NewService(client, logger),
		backup.New(config.BackupDir, logger),
		config.Region,
		logger,
	)
	u.RunID = runID

	report, err := u.Run(context.Background(), v.Get("dashboards"))
	if err != nil {
		logger.Fatal(err.Error(), "error", err)
	}

	if config.Mail.Enabled() && len(config.MailTo) > 0 {
		if err := config.Mail.SendReport(config.MailTo, report); err != nil {
			logger.Error("Could not send report", "error", err)
		} else {
			logger.Info("Report sent", "to", config.MailTo)
		}
	}
}

func loadConfig(v *viper.Viper) (Config, error) {
	oopsBuilder := oops.In("loadConfig")

	// Flag and config file take precedence over NEW_RELIC_API_KEY.
	apiKey := v.GetString("api_key")
	if apiKey == "" {
		apiKey = os.Getenv("NEW_RELIC_API_KEY")
	}
	if apiKey == "" {
		return Config{}, oopsBuilder.Errorf("no API key found!")
	}

	region, err := nerdgraph.ParseRegion(v.GetString("region"))
	if err != nil {
		return Config{}, err
	}

	return Config{
		APIKey:    apiKey,
		Region:    region,
		BackupDir: v.GetString("backup_dir"),
		Mail: mailer.Mailer{
			Host:     v.GetString("mail.host"),
			Port:     v.GetInt("mail.port"),
			Username: v.GetString("mail.username"),
			Password: v.GetString("mail.password"),
			From:     v.GetString("mail.from"),
		},
		MailTo: v.GetStringSlice("mail.to"),
	}, nil
}
