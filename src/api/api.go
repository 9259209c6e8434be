package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stake-plus/filedao/src/api/config"
	"github.com/stake-plus/filedao/src/api/dao"
	"github.com/stake-plus/filedao/src/api/data"
	"github.com/stake-plus/filedao/src/api/webserver"
	"github.com/stake-plus/filedao/src/drive"
	"github.com/stake-plus/filedao/src/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("%v", err)
	}

	db, err := data.ConnectMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	if err := data.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := data.LoadSettings(ctx, db); err != nil {
		log.Printf("settings: %v", err)
	}

	rdb, err := data.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	var admin string
	if cfg.AdminAddress != "" {
		if admin, err = webserver.NormalizeAddress(cfg.AdminAddress); err != nil {
			log.Fatalf("ADMIN_ADDRESS: %v", err)
		}
	}

	opts := []dao.Option{dao.WithPublisher(data.NewEvents(rdb))}
	if url := data.SettingOr("drive_url", cfg.DriveURL); url != "" {
		opts = append(opts, dao.WithFileStore(drive.NewClient(url, cfg.DriveAPIKey)))
	} else {
		log.Printf("no file store configured; delete and share proposals will not be synced")
	}

	svc, err := dao.Open(ctx, data.NewStore(db), admin, opts...)
	if err != nil {
		log.Fatalf("open dao: %v", err)
	}
	log.Printf("DAO loaded: admin %s, %d members", svc.Admin(), svc.MemberCount())

	if cfg.DiscordToken != "" {
		channel := data.SettingOr("discord_channel_id", cfg.DiscordChannel)
		session, err := notify.OpenSession(cfg.DiscordToken)
		if err != nil {
			log.Printf("discord disabled: %v", err)
		} else {
			defer session.Close()
			go notify.New(session, rdb, channel, cfg.AppURL).Run(ctx)
		}
	}

	router, limiter := webserver.New(cfg, svc, rdb)
	go limiter.Run(ctx)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		var err error
		if cfg.TLS() {
			reloader, rerr := webserver.NewTLSReloader(cfg.TLSCert, cfg.TLSKey)
			if rerr != nil {
				log.Fatalf("tls: %v", rerr)
			}
			go reloader.Watch(ctx, time.Minute)
			httpSrv.TLSConfig = reloader.GetConfig()
			err = httpSrv.ListenAndServeTLS("", "")
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()
	log.Printf("FileDAO API listening on %s", cfg.Port)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	cancel()

	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	_ = httpSrv.Shutdown(shutCtx)
}
