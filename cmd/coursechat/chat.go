package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/questx-lab/coursechat/internal/domain/chat/presence"
	"github.com/questx-lab/coursechat/internal/domain/cron"
	"github.com/questx-lab/coursechat/internal/middleware"
	"github.com/questx-lab/coursechat/pkg/prometheus"
	"github.com/questx-lab/coursechat/pkg/router"
	"github.com/questx-lab/coursechat/pkg/xcontext"
	"github.com/urfave/cli/v2"
)

func (s *srv) startChat(*cli.Context) error {
	if err := s.loadDatabase(); err != nil {
		return err
	}
	if err := s.migrateDB(); err != nil {
		return err
	}
	if err := s.loadSnowFlake(); err != nil {
		return err
	}
	s.loadAuth()
	if err := s.loadRedisClient(); err != nil {
		return err
	}
	if err := s.loadScyllaDB(); err != nil {
		return err
	}
	if err := s.loadStorage(); err != nil {
		return err
	}
	s.loadRepos()
	if err := s.loadPresence(); err != nil {
		return err
	}
	if err := s.loadBroadcaster(); err != nil {
		return err
	}
	s.loadDomains()

	ctx, stop := signal.NotifyContext(s.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	s.ctx = ctx

	cfg := xcontext.Configs(s.ctx)

	if s.subscriber != nil {
		if err := s.subscriber.Subscribe(s.ctx); err != nil {
			return err
		}
		defer s.subscriber.Stop(context.WithoutCancel(s.ctx))
	}

	go s.hubRouter.RunCleanup(s.ctx, cfg.Chat.HubCleanupInterval.Duration)

	cronJobManager := cron.NewCronJobManager()
	if keeper, ok := s.presence.(presence.Keeper); ok {
		cronJobManager.Register(cron.NewPresenceCleanupJob(
			keeper, s.userRepo, s.broadcaster, cfg.Chat.PresenceHeartbeat.Duration))
	}
	go cronJobManager.Start(s.ctx)
	defer cronJobManager.Cancel(s.ctx)

	httpSrv := &http.Server{
		Addr:    cfg.Server.Address(),
		Handler: s.loadRouter().Handler(cfg.Server),
	}

	go func() {
		<-s.ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			xcontext.Logger(s.ctx).Errorf("Cannot shutdown server: %v", err)
		}
	}()

	if cfg.Metrics.Port != "" {
		go s.startMetrics()
	}

	xcontext.Logger(s.ctx).Infof("Server start in %s", cfg.Server.Address())
	var err error
	if cfg.Server.Cert != "" && cfg.Server.Key != "" {
		err = httpSrv.ListenAndServeTLS(cfg.Server.Cert, cfg.Server.Key)
	} else {
		err = httpSrv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	xcontext.Logger(s.ctx).Infof("Server stop")
	return nil
}

func (s *srv) loadRouter() *router.Router {
	defaultRouter := router.New(s.ctx)
	defaultRouter.Before(middleware.WithStartTime())
	defaultRouter.AddCloser(middleware.Logger())
	defaultRouter.AddCloser(middleware.Prometheus())

	// Anonymous connections are accepted here and rejected by the chat proxy
	// with their own close code.
	wsRouter := defaultRouter.Branch()
	wsRouter.Before(middleware.NewAuthVerifier().WithAccessToken().WithSession().WithOptional().Middleware())
	router.Websocket(wsRouter, "/chat/{room_name}", s.chatProxy.ServeRoom)

	authRouter := defaultRouter.Branch()
	authRouter.Before(middleware.NewAuthVerifier().WithAccessToken().WithSession().Middleware())
	{
		router.POST(authRouter, "/createChatRoom", s.chatDomain.CreateRoom)
		router.GET(authRouter, "/getMyChatRooms", s.chatDomain.GetMyChatRooms)
		router.GET(authRouter, "/getChatRoom", s.chatDomain.GetChatRoom)
		router.GET(authRouter, "/getChatMessages", s.chatMessageDomain.GetChatMessages)
	}

	return defaultRouter
}

func (s *srv) startMetrics() {
	cfg := xcontext.Configs(s.ctx)
	httpSrv := &http.Server{
		Addr:    cfg.Metrics.Address(),
		Handler: prometheus.NewHandler(),
	}

	go func() {
		<-s.ctx.Done()
		httpSrv.Close()
	}()

	xcontext.Logger(s.ctx).Infof("Starting prometheus on %s", cfg.Metrics.Address())
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		xcontext.Logger(s.ctx).Errorf("Prometheus server stopped: %v", err)
	}
}
