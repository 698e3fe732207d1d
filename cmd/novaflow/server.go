package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"novaflow/conf"
	"novaflow/pkg/logger"
	"novaflow/pkg/validator"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Router 加载路由，使用侧提供接口，实现侧需要实现该接口
type Router interface {
	Load(engine *gin.Engine)
}

type Server struct {
	config *conf.Config
	hooks  []func(ctx context.Context) error
}

func NewServer(c *conf.Config) *Server {
	return &Server{
		config: c,
	}
}

// RegisterOnShutdown 注册关闭时的回调，按注册顺序在 http 服务关闭前执行
func (s *Server) RegisterOnShutdown(f func(ctx context.Context) error) {
	s.hooks = append(s.hooks, f)
}

func (s *Server) Run(rs ...Router) error {
	// 设置gin启动模式，必须在创建gin实例之前
	gin.SetMode(s.config.Mode)
	g := gin.New()
	// gin validator替换
	validator.LazyInitGinValidator()
	s.routerLoad(g, rs...)

	srv := &http.Server{
		Addr:              s.config.Listen,
		Handler:           g,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server start failed on %s: %w", s.config.Listen, err)
		}
		return nil
	})

	// health check
	eg.Go(func() error {
		if err := Ping(ctx, s.config.Listen, s.config.MaxPingCount); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		logger.Infof("server started success! port: %s", s.config.Listen)
		return nil
	})

	// graceful shutdown
	eg.Go(func() error {
		<-ctx.Done()
		logger.Infof("server shutdown")
		sctx, cancel := context.WithTimeout(context.Background(), s.config.Workflow.DrainTimeout.Std()+5*time.Second)
		defer cancel()

		var err error
		// 先停止接收新信号并等待进行中的流程，再关闭 http 服务
		for _, hook := range s.hooks {
			err = multierr.Append(err, hook(sctx))
		}
		err = multierr.Append(err, srv.Shutdown(sctx))
		return err
	})

	err := eg.Wait()
	logger.Infof("server stop on port %s", s.config.Listen)
	return err
}

// RouterLoad 加载自定义路由
func (s *Server) routerLoad(g *gin.Engine, rs ...Router) *Server {
	for _, r := range rs {
		r.Load(g)
	}
	return s
}

// Ping 用来检查是否程序正常启动
// listen 可以是 "8000"、":8000" 或 "0.0.0.0:8000"
func Ping(ctx context.Context, listen string, maxCount int) error {
	if len(listen) == 0 {
		return errors.New("please specify the service port")
	}
	port := listen
	if strings.Contains(listen, ":") {
		_, p, err := net.SplitHostPort(listen)
		if err != nil {
			return fmt.Errorf("invalid listen address %q: %w", listen, err)
		}
		port = p
	}
	url := fmt.Sprintf("http://localhost:%s/ping", port)
	for i := 0; i < maxCount; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		logger.Infof("waiting for the server online, retry after 1 second")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return errors.New("server no response")
}
