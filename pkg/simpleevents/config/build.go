package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-events/pkg/simpleevents"
	"github.com/tendant/simple-events/pkg/simpleevents/metrics"
	"github.com/tendant/simple-events/pkg/simpleevents/presigned"
	"github.com/tendant/simple-events/pkg/simpleevents/repo/memory"
	repomongo "github.com/tendant/simple-events/pkg/simpleevents/repo/mongodb"
	repopg "github.com/tendant/simple-events/pkg/simpleevents/repo/postgres"
	fsstorage "github.com/tendant/simple-events/pkg/simpleevents/storage/fs"
	memorystorage "github.com/tendant/simple-events/pkg/simpleevents/storage/memory"
	s3storage "github.com/tendant/simple-events/pkg/simpleevents/storage/s3"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Runtime holds the dependencies built from a ServerConfig
type Runtime struct {
	Config     *ServerConfig
	Service    simpleevents.Service
	Repository simpleevents.Repository
	BlobStore  simpleevents.BlobStore
	Signer     *presigned.Signer
	Metrics    *metrics.Collector

	closers []func(context.Context) error
}

// Build creates the repository, blob store, signer and metrics collector and
// injects them into a Service. Metrics are registered with reg when it is not nil.
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger, reg prometheus.Registerer) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{
		Config: c,
		Signer: c.BuildSigner(),
	}

	repo, err := c.buildRepository(ctx, rt, logger)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	rt.Repository = repo

	store, err := c.buildBlobStore(rt.Signer)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("failed to build blob store: %w", err)
	}
	rt.BlobStore = store

	opts := []simpleevents.Option{
		simpleevents.WithRepository(repo),
		simpleevents.WithBlobStore(store),
		simpleevents.WithLogger(logger),
		simpleevents.WithBannerFolder(c.BannerFolder),
		simpleevents.WithStrictCapacity(c.StrictCapacity),
	}
	if reg != nil {
		rt.Metrics = metrics.New(reg)
		opts = append(opts, simpleevents.WithEventSink(rt.Metrics))
	}

	svc, err := simpleevents.New(opts...)
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}
	rt.Service = svc

	return rt, nil
}

// BuildSigner creates the signer used for /files/ URLs
func (c *ServerConfig) BuildSigner() *presigned.Signer {
	return presigned.New(
		presigned.WithSecretKey(c.SigningSecret),
		presigned.WithBaseURL(c.PublicBaseURL),
		presigned.WithDefaultExpiration(c.SignedURLTTL()),
	)
}

// BuildRepository connects to the configured datastore without building a service
func (c *ServerConfig) BuildRepository(ctx context.Context) (*Runtime, error) {
	rt := &Runtime{Config: c}
	repo, err := c.buildRepository(ctx, rt, slog.Default())
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}
	rt.Repository = repo
	return rt, nil
}

func (c *ServerConfig) buildRepository(ctx context.Context, rt *Runtime, logger *slog.Logger) (simpleevents.Repository, error) {
	kind, err := c.DatabaseKind()
	if err != nil {
		return nil, err
	}

	switch kind {
	case DatabaseMemory:
		return memory.New(), nil

	case DatabasePostgres:
		pool, err := pgxpool.New(ctx, c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		rt.closers = append(rt.closers, func(context.Context) error {
			pool.Close()
			return nil
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			return nil, fmt.Errorf("database ping failed: %w", err)
		}
		return repopg.NewWithPool(pool), nil

	case DatabaseMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.DatabaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
		}
		rt.closers = append(rt.closers, client.Disconnect)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			return nil, fmt.Errorf("database ping failed: %w", err)
		}
		return repomongo.New(client.Database(c.DatabaseName), repomongo.WithLogger(logger)), nil
	}

	return nil, fmt.Errorf("unsupported database type: %s", kind)
}

func (c *ServerConfig) buildBlobStore(signer *presigned.Signer) (simpleevents.BlobStore, error) {
	loc, err := c.Storage()
	if err != nil {
		return nil, err
	}

	switch loc.Kind {
	case StorageMemory:
		var opts []memorystorage.Option
		if signer.IsEnabled() {
			opts = append(opts, memorystorage.WithSigner(signer))
		}
		return memorystorage.New(opts...), nil

	case StorageFS:
		return fsstorage.New(fsstorage.Config{
			BaseDir: loc.Path,
			Signer:  signer,
		})

	case StorageS3:
		region := loc.Region
		if region == "" {
			region = c.AWS.Region
		}
		return s3storage.New(s3storage.Config{
			Region:                 region,
			Bucket:                 loc.Bucket,
			AccessKeyID:            c.AWS.AccessKeyID,
			SecretAccessKey:        c.AWS.SecretAccessKey,
			Endpoint:               loc.Endpoint,
			UsePathStyle:           loc.PathStyle,
			PublicBaseURL:          c.AWS.PublicBaseURL,
			ACL:                    c.AWS.ACL,
			CreateBucketIfNotExist: c.AWS.CreateBucket,
		})
	}

	return nil, fmt.Errorf("unsupported storage backend type: %s", loc.Kind)
}

// Prepare brings the datastore schema up to date: migrations for PostgreSQL,
// indexes for MongoDB. It is a no-op for the memory repository.
func (rt *Runtime) Prepare(ctx context.Context) error {
	switch repo := rt.Repository.(type) {
	case *repopg.Repository:
		return repopg.MigrateUp(rt.Config.DatabaseURL)
	case *repomongo.Repository:
		return repo.EnsureIndexes(ctx)
	}
	return nil
}

// Close releases datastore connections in reverse order of creation
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
