package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/eventpass/internal/api"
	"github.com/ignite/eventpass/internal/config"
	"github.com/ignite/eventpass/internal/errlog"
	"github.com/ignite/eventpass/internal/notify"
	"github.com/ignite/eventpass/internal/pipeline"
	"github.com/ignite/eventpass/internal/pkg/distlock"
	"github.com/ignite/eventpass/internal/pkg/httpretry"
	"github.com/ignite/eventpass/internal/pkg/logger"
	"github.com/ignite/eventpass/internal/publish"
	"github.com/ignite/eventpass/internal/render"
	"github.com/ignite/eventpass/internal/repository/dynamo"
	mongorepo "github.com/ignite/eventpass/internal/repository/mongo"
	"github.com/ignite/eventpass/internal/repository/postgres"
	"github.com/ignite/eventpass/internal/sheets"
)

// store is what both the pipeline and the status API need from a backend.
type store interface {
	pipeline.AttendeeStore
	api.AttendeeReader
}

type app struct {
	rows      pipeline.RowSource
	store     store
	renderer  pipeline.Renderer
	publisher pipeline.Publisher
	notifier  pipeline.Notifier
	errors    errlog.Log
	lease     pipeline.Lease

	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	creds, err := cfg.Sheet.Credentials()
	if err != nil {
		return nil, err
	}
	googleHTTP, err := sheets.ServiceAccountClient(ctx, creds, cfg.Sheet.Timeout())
	if err != nil {
		return nil, err
	}
	googleDoer := httpretry.NewRetryClient(googleHTTP, cfg.Sheet.MaxRetries)

	spreadsheetID, err := sheets.SpreadsheetIDFromURL(cfg.Sheet.Link)
	if err != nil {
		return nil, err
	}
	a.rows = sheets.NewClient(googleDoer, cfg.Sheet.BaseURL, spreadsheetID, cfg.Sheet.Name, cfg.Sheet.DataRange())

	db, err := a.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	redisClient := a.openRedis(ctx, cfg)
	if redisClient != nil {
		a.errors = errlog.NewRedis(redisClient, cfg.ErrLog.RedisKey, cfg.ErrLog.Capacity)
	} else {
		a.errors = errlog.NewMemory(cfg.ErrLog.Capacity)
	}
	switch {
	case redisClient != nil:
		a.lease = distlock.NewLease(redisClient, nil, cfg.Redis.LeaseKey, cfg.Redis.LeaseTTL())
	case db != nil:
		a.lease = distlock.NewLease(nil, db, cfg.Redis.LeaseKey, cfg.Redis.LeaseTTL())
	default:
		logger.Warn("no Redis or Postgres available, running without a poll lease")
	}

	a.renderer, err = render.New(render.Options{
		TemplatePath: cfg.Ticket.TemplatePath,
		FontPath:     cfg.Ticket.FontPath,
		FontSize:     float64(cfg.Ticket.FontSize),
		NameY:        cfg.Ticket.NameY,
		QRY:          cfg.Ticket.QRY,
		QRSize:       cfg.Ticket.QRSize,
		TextColor:    cfg.Ticket.TextColor,
	})
	if err != nil {
		return nil, err
	}

	switch cfg.Assets.Backend {
	case "s3":
		a.publisher, err = publish.OpenS3(ctx, cfg.Assets.S3Bucket, cfg.Assets.AWSRegion)
		if err != nil {
			return nil, err
		}
	case "drive":
		a.publisher = publish.NewDrivePublisher(googleDoer, cfg.Assets.DriveBaseURL)
	default:
		logger.Info("asset publishing disabled")
	}

	var transport notify.Transport
	switch cfg.Email.Backend {
	case "smtp":
		transport = notify.NewSMTPTransport(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.Sender, cfg.Email.SMTPPassword, cfg.Email.Timeout())
	default:
		transport, err = notify.OpenSES(ctx, cfg.Email.SESRegion, cfg.Email.SESAccessKey, cfg.Email.SESSecretKey)
		if err != nil {
			return nil, err
		}
	}
	a.notifier = notify.New(transport, notify.Config{
		Sender:      cfg.Email.Sender,
		SenderName:  cfg.Email.SenderName,
		Subject:     cfg.Email.Subject,
		MessagePath: cfg.Email.MessagePath,
	})

	ok = true
	return a, nil
}

// openStore connects the configured attendee store. The returned *sql.DB is
// non-nil only for the postgres backend.
func (a *app) openStore(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	switch cfg.Storage.Backend {
	case "dynamodb":
		repo, err := dynamo.Open(ctx, cfg.Storage.DynamoDBTable, cfg.Storage.AWSRegion, cfg.Storage.AWSProfile)
		if err != nil {
			return nil, err
		}
		a.store = repo
		return nil, nil
	case "mongo":
		repo, err := mongorepo.Open(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDatabase, cfg.Storage.MongoCollection)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = repo.Close(closeCtx)
		})
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		a.store = repo
		return nil, nil
	default:
		db, err := postgres.Open(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, func() { db.Close() })
		a.store = postgres.NewAttendeeRepo(db)
		return db, nil
	}
}

// openRedis returns nil when Redis is not configured or not reachable.
func (a *app) openRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	if cfg.Redis.URL == "" {
		return nil
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		opts = &redis.Options{Addr: cfg.Redis.URL}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, using in-process error log", "error", err)
		client.Close()
		return nil
	}
	a.closers = append(a.closers, func() { client.Close() })
	return client
}
