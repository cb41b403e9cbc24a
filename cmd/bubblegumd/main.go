package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/metaplex-go/bubblegum/pkg/cnft/server"
)

const (
	envPrefix = "bubblegum"

	configListenAddress = "listen_address"
	configLogLevel      = "log_level"
)

func main() {
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	viper.SetDefault(configListenAddress, ":8080")
	viper.SetDefault(configLogLevel, "info")

	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(viper.GetString(configLogLevel)); err == nil {
		log.SetLevel(level)
	}

	handler := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(
		handlers.CombinedLoggingHandler(os.Stdout, server.New().Router()),
	)

	httpServer := &http.Server{
		Addr:    viper.GetString(configListenAddress),
		Handler: handler,
	}

	go func() {
		log.WithField("address", httpServer.Addr).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server terminated")
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("shutdown incomplete")
	}
}
