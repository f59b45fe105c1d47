// STSERVER - SM2/SM3 Secure Channel Negotiation Server
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of STSERVER.
//
// STSERVER is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// STSERVER is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with STSERVER. If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/sage-x-project/stserver/internal/codec"
	"github.com/sage-x-project/stserver/internal/config"
	"github.com/sage-x-project/stserver/internal/dispatcher"
	"github.com/sage-x-project/stserver/internal/health"
	"github.com/sage-x-project/stserver/internal/keystore"
	"github.com/sage-x-project/stserver/internal/logger"
	"github.com/sage-x-project/stserver/internal/protocol"
	"github.com/sage-x-project/stserver/internal/session"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the handshake TCP listener and health/metrics HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := buildLogger(cfg)

	sessions, redisClient, err := buildSessionStore(cfg)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	keys, db, err := buildKeyStore(cfg)
	if err != nil {
		return fmt.Errorf("key store: %w", err)
	}
	if db != nil {
		defer db.Close()
	}

	hs := protocol.NewHandshake(keys, sessions, cfg.App.PKCS12Password)
	d := dispatcher.New(hs, sessions, log)

	checker := health.NewChecker(5*time.Second, log)
	if db != nil {
		checker.Register("mysql", func(ctx context.Context) error { return db.PingContext(ctx) })
	}
	if redisClient != nil {
		checker.Register("redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	var healthServer *health.Server
	if cfg.Metrics.Addr != "" {
		healthServer = health.NewServer(checker, log, cfg.Metrics.Addr)
		if err := healthServer.Start(); err != nil {
			return fmt.Errorf("start health server: %w", err)
		}
	}

	listener, err := net.Listen("tcp", cfg.App.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.App.Addr, err)
	}
	log.Info("listening", logger.String("addr", cfg.App.Addr))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go acceptLoop(ctx, &wg, listener, d, log)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutdown signal received, closing listener")

	cancel()
	_ = listener.Close()
	if healthServer != nil {
		_ = healthServer.Stop()
	}
	wg.Wait()
	return nil
}

// acceptLoop accepts connections until ctx is canceled; each connection
// is served by its own goroutine, with no coordination between them.
func acceptLoop(ctx context.Context, wg *sync.WaitGroup, listener net.Listener, d *dispatcher.Dispatcher, log logger.Logger) {
	defer wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				log.Error("accept failed", logger.Error(err))
				continue
			}
		}
		go serveConn(ctx, conn, d, log)
	}
}

func serveConn(ctx context.Context, conn net.Conn, d *dispatcher.Dispatcher, log logger.Logger) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		header := make([]byte, codec.HeaderLen)
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		frameLen, err := codec.FrameLen(header)
		if err != nil {
			log.Warn("bad frame header", logger.String("remote", remote), logger.Error(err))
			return
		}

		frame := make([]byte, frameLen)
		copy(frame, header)
		if _, err := io.ReadFull(conn, frame[codec.HeaderLen:]); err != nil {
			return
		}

		reply := d.Handle(ctx, remote, frame)
		if _, err := conn.Write(reply); err != nil {
			log.Warn("write reply failed", logger.String("remote", remote), logger.Error(err))
			return
		}
	}
}

func buildLogger(cfg *config.Config) logger.Logger {
	l := logger.New(os.Stdout, logger.ParseLevel(cfg.Logging.Level), logger.ParseFormat(cfg.Logging.Format))
	logger.SetDefault(l)
	return l
}

func buildSessionStore(cfg *config.Config) (session.Store, *redis.Client, error) {
	if cfg.Redis.URL == "" || cfg.Redis.URL == "memory" {
		return session.NewMemoryStore(cfg.Redis.SessionTTL.Duration), nil, nil
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.Redis.AuthPasswd != "" {
		opts.Password = cfg.Redis.AuthPasswd
	}
	client := redis.NewClient(opts)
	return session.NewRedisStore(client, cfg.Redis.SessionTTL.Duration), client, nil
}

func buildKeyStore(cfg *config.Config) (keystore.Store, *sql.DB, error) {
	if cfg.MySQL.Host == "" || cfg.MySQL.Host == "memory" {
		return keystore.NewMemoryStore(), nil, nil
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.MySQL.User, cfg.MySQL.Passwd, cfg.MySQL.Host, cfg.MySQL.Port, cfg.MySQL.DBName)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetConnMaxLifetime(50 * time.Second)
	return keystore.NewMySQLStore(db), db, nil
}
