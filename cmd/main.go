/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rentbase/idverify"
	"github.com/rentbase/idverify/config"
	"github.com/rentbase/idverify/internal/notification"
	redis_db "github.com/rentbase/idverify/internal/redis-db"
	"github.com/rentbase/idverify/kyc"
)

// IDVerifyCLI is the command-line application.
type IDVerifyCLI struct {
	cmd *cobra.Command
}

// idverifyInstance carries the loaded configuration into the subcommands.
// The service itself is built by the commands that need Redis.
type idverifyInstance struct {
	cnf     *config.Configuration
	service *idverify.IDVerify
	queue   *idverify.Queue
	redis   *redis_db.Redis
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration before any command runs.
func preRun(app *idverifyInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := config.InitConfig(*configFile); err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}
		app.cnf = cnf
		return nil
	}
}

// setupService connects to Redis and builds the service with the status queue.
func (app *idverifyInstance) setupService() error {
	redisClient, err := redis_db.NewRedisClient([]string{app.cnf.Redis.Dns})
	if err != nil {
		return fmt.Errorf("error connecting to redis: %w", err)
	}

	queue, err := idverify.NewQueue(app.cnf)
	if err != nil {
		_ = redisClient.Close()
		return err
	}

	service, err := idverify.NewIDVerify(app.cnf, redisClient.Client(), queue, kyc.NewMetrics(prometheus.DefaultRegisterer))
	if err != nil {
		_ = queue.Close()
		_ = redisClient.Close()
		notification.NotifyError(err)
		return fmt.Errorf("error creating idverify: %w", err)
	}

	app.redis = redisClient
	app.queue = queue
	app.service = service
	return nil
}

func (app *idverifyInstance) close() {
	if app.queue != nil {
		_ = app.queue.Close()
	}
	if app.redis != nil {
		_ = app.redis.Close()
	}
}

// NewCLI sets up the root command and its subcommands.
func NewCLI() *IDVerifyCLI {
	var configFile string
	app := &idverifyInstance{}

	var rootCmd = &cobra.Command{
		Use:          "idverify",
		Short:        "Identity verification engine",
		SilenceUsage: true,
		Run:          func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./idverify.json", "Configuration file for idverify")
	rootCmd.PersistentPreRunE = preRun(app, &configFile)

	rootCmd.AddCommand(serverCommands(app))
	rootCmd.AddCommand(workerCommands(app))
	rootCmd.AddCommand(providersCommands(app))
	rootCmd.AddCommand(verifyCommands(app))
	rootCmd.AddCommand(configCommands(app))

	return &IDVerifyCLI{cmd: rootCmd}
}

func (c IDVerifyCLI) executeCLI() {
	if err := c.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
