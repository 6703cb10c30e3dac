package main

import "github.com/urfave/cli/v2"

func (s *srv) newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "coursechat"
	app.Usage = "Real-time chat rooms of courses"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "Path of the TOML configuration file",
			EnvVars: []string{"COURSECHAT_CONFIG"},
		},
		&cli.StringFlag{Name: "env", EnvVars: []string{"ENV"}},
		&cli.StringFlag{Name: "log-level", EnvVars: []string{"LOG_LEVEL"}},
		&cli.StringFlag{Name: "port", EnvVars: []string{"PORT"}},
		&cli.StringFlag{Name: "db-driver", EnvVars: []string{"DB_DRIVER"}},
		&cli.StringFlag{Name: "db-host", EnvVars: []string{"DB_HOST"}},
		&cli.StringFlag{Name: "db-port", EnvVars: []string{"DB_PORT"}},
		&cli.StringFlag{Name: "db-name", EnvVars: []string{"DB_NAME"}},
		&cli.StringFlag{Name: "db-user", EnvVars: []string{"DB_USER"}},
		&cli.StringFlag{Name: "db-password", EnvVars: []string{"DB_PASSWORD"}},
		&cli.StringFlag{Name: "token-secret", EnvVars: []string{"TOKEN_SECRET"}},
		&cli.StringFlag{Name: "session-secret", EnvVars: []string{"SESSION_SECRET"}},
		&cli.StringFlag{Name: "redis-addr", EnvVars: []string{"REDIS_ADDR"}},
		&cli.StringFlag{Name: "kafka-addr", EnvVars: []string{"KAFKA_ADDR"}},
		&cli.StringSliceFlag{Name: "scylla-addrs", EnvVars: []string{"SCYLLA_ADDRS"}},
		&cli.Int64Flag{Name: "node-id", EnvVars: []string{"NODE_ID"}},
	}
	app.Before = s.loadConfig
	app.Commands = []*cli.Command{
		{
			Action:      s.startChat,
			Name:        "chat",
			Usage:       "Start the chat server",
			Category:    "Server",
			Description: `Serves the chat room APIs and the websocket endpoint /chat/{room_name}.`,
		},
		{
			Action:      s.startMigrate,
			Name:        "migrate",
			Usage:       "Migrate the databases to the latest schema",
			Category:    "Database",
			Description: `Applies the sql migrations, and the cql migrations if scylla stores messages.`,
		},
	}

	return app
}
