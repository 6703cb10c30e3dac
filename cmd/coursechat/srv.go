package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gorilla/sessions"
	"github.com/questx-lab/coursechat/config"
	"github.com/questx-lab/coursechat/internal/common"
	"github.com/questx-lab/coursechat/internal/domain"
	"github.com/questx-lab/coursechat/internal/domain/chat/hub"
	"github.com/questx-lab/coursechat/internal/domain/chat/presence"
	"github.com/questx-lab/coursechat/internal/domain/chat/proxy"
	"github.com/questx-lab/coursechat/internal/model"
	"github.com/questx-lab/coursechat/internal/repository"
	"github.com/questx-lab/coursechat/migration"
	"github.com/questx-lab/coursechat/pkg/authenticator"
	"github.com/questx-lab/coursechat/pkg/cqlutil"
	"github.com/questx-lab/coursechat/pkg/kafka"
	"github.com/questx-lab/coursechat/pkg/logger"
	"github.com/questx-lab/coursechat/pkg/pubsub"
	"github.com/questx-lab/coursechat/pkg/storage"
	"github.com/questx-lab/coursechat/pkg/xcontext"
	"github.com/questx-lab/coursechat/pkg/xredis"
	"github.com/scylladb/gocqlx/v2"
	"github.com/urfave/cli/v2"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type srv struct {
	ctx context.Context

	redisClient   xredis.Client
	scyllaSession *gocqlx.Session
	storage       storage.Storage

	userRepo        repository.UserRepository
	courseRepo      repository.CourseRepository
	enrollmentRepo  repository.EnrollmentRepository
	chatRoomRepo    repository.ChatRoomRepository
	chatMessageRepo repository.ChatMessageRepository
	chatMemberRepo  repository.ChatMemberRepository

	roomVerifier *common.RoomVerifier
	presence     presence.Registry
	hubRouter    *hub.Router
	broadcaster  hub.Broadcaster
	subscriber   pubsub.Subscriber

	chatDomain        domain.ChatDomain
	chatMessageDomain domain.ChatMessageDomain
	readCursorDomain  domain.ReadCursorDomain
	chatProxy         proxy.ChatProxy
}

func (s *srv) loadConfig(cctx *cli.Context) error {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return err
	}

	overrideString(cctx, "env", &cfg.Env)
	overrideString(cctx, "log-level", &cfg.LogLevel)
	overrideString(cctx, "port", &cfg.Server.Port)
	overrideString(cctx, "db-driver", &cfg.Database.Driver)
	overrideString(cctx, "db-host", &cfg.Database.Host)
	overrideString(cctx, "db-port", &cfg.Database.Port)
	overrideString(cctx, "db-name", &cfg.Database.Database)
	overrideString(cctx, "db-user", &cfg.Database.User)
	overrideString(cctx, "db-password", &cfg.Database.Password)
	overrideString(cctx, "token-secret", &cfg.Auth.TokenSecret)
	overrideString(cctx, "session-secret", &cfg.Session.Secret)
	overrideString(cctx, "redis-addr", &cfg.Redis.Addr)
	overrideString(cctx, "kafka-addr", &cfg.Kafka.Addr)
	if cctx.IsSet("scylla-addrs") {
		cfg.Scylla.Addrs = cctx.StringSlice("scylla-addrs")
	}
	if cctx.IsSet("node-id") {
		cfg.Chat.NodeID = cctx.Int64("node-id")
	}

	s.ctx = xcontext.WithConfigs(context.Background(), cfg)
	s.loadLogger()

	return nil
}

func overrideString(cctx *cli.Context, name string, dst *string) {
	if cctx.IsSet(name) {
		*dst = cctx.String(name)
	}
}

func (s *srv) loadLogger() {
	cfg := xcontext.Configs(s.ctx)
	s.ctx = xcontext.WithLogger(s.ctx, logger.New(cfg.Env, logger.ParseLevel(cfg.LogLevel)))
}

func (s *srv) loadDatabase() error {
	cfg := xcontext.Configs(s.ctx).Database

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = mysql.New(mysql.Config{
			DSN:                       cfg.ConnectionString(),
			DefaultStringSize:         256,
			DisableDatetimePrecision:  true,
			DontSupportRenameIndex:    true,
			DontSupportRenameColumn:   true,
			SkipInitializeWithVersion: false,
		})
	case "sqlite":
		dialector = sqlite.Open(cfg.ConnectionString())
	default:
		return fmt.Errorf("invalid database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return err
	}

	if cfg.Driver == "sqlite" {
		// Sqlite allows a single writer.
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	s.ctx = xcontext.WithDB(s.ctx, db)
	return nil
}

func (s *srv) migrateDB() error {
	if err := migration.Migrate(s.ctx); err != nil {
		return fmt.Errorf("cannot migrate database: %w", err)
	}

	return nil
}

func (s *srv) loadSnowFlake() error {
	node, err := snowflake.NewNode(xcontext.Configs(s.ctx).Chat.NodeID)
	if err != nil {
		return err
	}

	s.ctx = xcontext.WithSnowFlake(s.ctx, node)
	return nil
}

func (s *srv) loadAuth() {
	cfg := xcontext.Configs(s.ctx)
	s.ctx = xcontext.WithTokenEngine(s.ctx, authenticator.NewTokenEngine[model.AccessToken](
		cfg.Auth.TokenSecret, cfg.Auth.AccessToken.Expiration.Duration))
	s.ctx = xcontext.WithSessionStore(s.ctx, sessions.NewCookieStore([]byte(cfg.Session.Secret)))
}

// loadRedisClient connects to redis only if a component is configured to use
// it.
func (s *srv) loadRedisClient() error {
	cfg := xcontext.Configs(s.ctx).Chat
	if cfg.Presence != "redis" && cfg.Broadcaster != "redis" {
		return nil
	}

	client, err := xredis.NewClient(s.ctx)
	if err != nil {
		return fmt.Errorf("cannot connect to redis: %w", err)
	}

	s.redisClient = client
	return nil
}

func (s *srv) loadScyllaDB() error {
	cfg := xcontext.Configs(s.ctx)
	if cfg.Chat.MessageStore != "scylla" {
		return nil
	}

	session, err := gocqlx.WrapSession(cqlutil.CreateCluster(cfg.Scylla).CreateSession())
	if err != nil {
		return fmt.Errorf("cannot connect to scylla: %w", err)
	}

	s.scyllaSession = &session
	xcontext.Logger(s.ctx).Infof("Connected to scylla at %v", cfg.Scylla.Addrs)

	return migration.MigrateScyllaDB(s.ctx, session)
}

func (s *srv) loadStorage() error {
	cfg := xcontext.Configs(s.ctx).Storage
	if !cfg.Enabled() {
		xcontext.Logger(s.ctx).Warnf("No storage bucket configured, file references are not checked")
		return nil
	}

	store, err := storage.NewS3Storage(cfg)
	if err != nil {
		return err
	}

	s.storage = store
	return nil
}

func (s *srv) loadRepos() {
	s.userRepo = repository.NewUserRepository()
	s.courseRepo = repository.NewCourseRepository()
	s.enrollmentRepo = repository.NewEnrollmentRepository()
	s.chatRoomRepo = repository.NewChatRoomRepository()
	s.chatMemberRepo = repository.NewChatMemberRepository()

	if s.scyllaSession != nil {
		s.chatMessageRepo = repository.NewChatMessageScyllaRepository(*s.scyllaSession)
	} else {
		s.chatMessageRepo = repository.NewChatMessageRepository()
	}
}

func (s *srv) nodeID() string {
	return strconv.FormatInt(xcontext.Configs(s.ctx).Chat.NodeID, 10)
}

func (s *srv) loadPresence() error {
	cfg := xcontext.Configs(s.ctx).Chat
	switch cfg.Presence {
	case "memory":
		s.presence = presence.NewMemoryRegistry()
	case "redis":
		// Three missed heartbeats make this node dead for the others.
		s.presence = presence.NewRedisRegistry(s.redisClient, s.nodeID(), 3*cfg.PresenceHeartbeat.Duration)
	default:
		return fmt.Errorf("invalid presence backend %q", cfg.Presence)
	}

	return nil
}

func (s *srv) loadBroadcaster() error {
	cfg := xcontext.Configs(s.ctx)
	s.hubRouter = hub.NewRouter(cfg.Chat.HubBufferSize)

	switch cfg.Chat.Broadcaster {
	case "local":
		s.broadcaster = hub.NewLocalBroadcaster(s.hubRouter)

	case "redis":
		bus := hub.NewBusBroadcaster(
			s.hubRouter, xredis.NewPublisher(s.redisClient), cfg.Kafka.Topic, cfg.Chat.CompressBus)
		s.broadcaster = bus
		s.subscriber = xredis.NewSubscriber(s.redisClient, cfg.Kafka.Topic, bus.Handle)

	case "kafka":
		publisher, err := kafka.NewPublisher(s.nodeID(), cfg.Kafka.Brokers())
		if err != nil {
			return fmt.Errorf("cannot create kafka publisher: %w", err)
		}

		bus := hub.NewBusBroadcaster(s.hubRouter, publisher, cfg.Kafka.Topic, cfg.Chat.CompressBus)

		// Every node has its own consumer group to receive all events.
		subscriber, err := kafka.NewSubscriber(
			"coursechat-"+s.nodeID(), cfg.Kafka.Brokers(), []string{cfg.Kafka.Topic}, bus.Handle)
		if err != nil {
			return fmt.Errorf("cannot create kafka subscriber: %w", err)
		}

		s.broadcaster = bus
		s.subscriber = subscriber

	default:
		return fmt.Errorf("invalid broadcaster %q", cfg.Chat.Broadcaster)
	}

	return nil
}

func (s *srv) loadDomains() {
	s.roomVerifier = common.NewRoomVerifier(s.chatRoomRepo, s.courseRepo, s.enrollmentRepo)
	s.chatDomain = domain.NewChatDomain(s.chatRoomRepo, s.chatMemberRepo, s.courseRepo,
		s.enrollmentRepo, s.userRepo, s.roomVerifier, s.presence)
	s.chatMessageDomain = domain.NewChatMessageDomain(s.chatRoomRepo, s.chatMessageRepo,
		s.userRepo, s.roomVerifier, s.storage)
	s.readCursorDomain = domain.NewReadCursorDomain(s.chatMemberRepo, s.chatMessageRepo)
	s.chatProxy = proxy.NewChatProxy(s.userRepo, s.roomVerifier, s.presence, s.broadcaster,
		s.chatMessageDomain, s.readCursorDomain)
}
