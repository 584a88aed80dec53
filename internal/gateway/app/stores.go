package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"

	doccache "screendeck/internal/cache/document"
	"screendeck/internal/gateway/config"
	docrepo "screendeck/internal/gateway/repository/document"
	"screendeck/internal/gateway/repository/history"
	"screendeck/internal/logging"
)

type stores struct {
	documents docrepo.Store
	history   history.Store
	cache     *doccache.CachedStore
	pool      *pgxpool.Pool
}

func (s *stores) close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func initStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	log := logging.Component("stores")
	out := &stores{}

	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to reach db: %w", err)
		}
		out.pool = pool
		out.history = history.NewPostgresStore(pool)
		log.Info("history store: postgres")
	} else {
		out.history = history.NewMemoryStore(0)
		log.Info("history store: in-memory")
	}

	if !cfg.Documents.Persist {
		return out, nil
	}
	origin, err := chooseDocumentStore(cfg, out.pool, log)
	if err != nil {
		out.close()
		return nil, err
	}
	out.cache = doccache.NewCachedStore(origin, doccache.DefaultCacheConfig())
	out.documents = out.cache
	return out, nil
}

func chooseDocumentStore(cfg *config.Config, pool *pgxpool.Pool, log *logrus.Entry) (docrepo.Store, error) {
	switch cfg.Documents.Store {
	case "s3":
		if !cfg.Artifact.CanUseS3() {
			return nil, fmt.Errorf("document store s3: endpoint, credentials and bucket are required")
		}
		s3Cfg := docrepo.S3Config{
			Endpoint:  cfg.Artifact.Endpoint,
			Region:    cfg.Artifact.Region,
			AccessKey: cfg.Artifact.AccessKey,
			SecretKey: cfg.Artifact.SecretKey,
			Bucket:    cfg.Artifact.Bucket,
			UseSSL:    cfg.Artifact.UseSSL,
		}
		s, err := docrepo.NewS3Store(s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize document s3 store: %w", err)
		}
		log.WithFields(logrus.Fields{"bucket": s3Cfg.Bucket, "endpoint": s3Cfg.Endpoint}).Info("document store: s3")
		return s, nil
	case "file":
		s, err := docrepo.NewFileStore(cfg.Documents.OutputDir)
		if err != nil {
			return nil, err
		}
		log.WithField("dir", s.Root()).Info("document store: file")
		return s, nil
	case "postgres":
		if pool == nil {
			return nil, fmt.Errorf("document store postgres: DATABASE_URL is required")
		}
		log.Info("document store: postgres")
		return docrepo.NewPostgresStore(stdlib.OpenDBFromPool(pool)), nil
	default:
		log.Info("document store: in-memory")
		return docrepo.NewMemoryStore(), nil
	}
}
