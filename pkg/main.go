package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	pkg "git.solsynth.dev/hypernet/polls/pkg/internal"
	"git.solsynth.dev/hypernet/polls/pkg/internal/cache"
	"git.solsynth.dev/hypernet/polls/pkg/internal/database"
	"git.solsynth.dev/hypernet/polls/pkg/internal/grpc"
	"git.solsynth.dev/hypernet/polls/pkg/internal/http"
	"git.solsynth.dev/hypernet/polls/pkg/internal/services"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
}

func main() {
	// Booting screen
	fmt.Println(color.YellowString(" ____       _ _\n|  _ \\ ___ | | |___\n| |_) / _ \\| | / __|\n|  __/ (_) | | \\__ \\\n|_|   \\___/|_|_|___/"))
	fmt.Printf("%s v%s\n", color.New(color.FgHiYellow).Add(color.Bold).Sprintf("Hypernet.Polls"), pkg.AppVersion)
	fmt.Printf("Polls, votes and results in Hypernet\n")
	color.HiBlack("=====================================================\n")

	// Configure settings
	if err := godotenv.Load(); err == nil {
		log.Info().Msg("Loaded environment from .env file.")
	}
	pkg.ApplyDefaults()
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("settings")
	viper.SetConfigType("toml")

	// Load settings
	if err := viper.ReadInConfig(); err != nil {
		log.Panic().Err(err).Msg("An error occurred when loading settings.")
	}
	if len(viper.GetString("security.session_secret")) == 0 {
		log.Fatal().Msg("security.session_secret is required.")
	}

	// Initialize cache
	if err := cache.NewStore(); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when initializing cache.")
	}

	// Connect to database
	if err := database.NewGorm(); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when connect to database.")
	} else if err := database.RunMigration(database.C); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when running database auto migration.")
	}

	// Configure timed tasks
	quartz := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(&log.Logger)))
	if _, err := quartz.AddFunc(viper.GetString("scheduler.closing_interval"), services.DoAutoPollClosing); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when scheduling poll closing.")
	}
	quartz.Start()

	// Server
	server := http.NewServer()
	go server.Listen()

	rpc := grpc.NewGrpc()
	go func() {
		if err := rpc.Listen(); err != nil {
			log.Error().Err(err).Msg("An error occurred when starting grpc server...")
		}
	}()

	// Messages
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	quartz.Stop()
	rpc.Stop()
	if err := server.Shutdown(); err != nil {
		log.Warn().Err(err).Msg("An error occurred when shutting down server...")
	}
}
