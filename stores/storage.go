package stores

import (
	"context"
	"excalidash/config"
	"excalidash/core"
	"excalidash/stores/aws"
	"excalidash/stores/filesystem"
	"excalidash/stores/memory"
	"excalidash/stores/sqlite"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Store is a union interface that includes all store types.
type Store interface {
	core.DocumentStore
	core.DrawingStore
	core.CollectionStore
}

// GetStore builds the backend selected by cfg.Type; anything unknown falls
// back to the in-memory store.
func GetStore(ctx context.Context, cfg config.Storage) (Store, error) {
	var (
		store Store
		err   error
	)

	storageField := logrus.Fields{
		"storageType": cfg.Type,
	}

	switch cfg.Type {
	case "filesystem":
		storageField["basePath"] = cfg.LocalPath
		store, err = filesystem.NewStore(cfg.LocalPath)
	case "sqlite":
		storageField["dataSourceName"] = cfg.DataSourceName
		store, err = sqlite.NewStore(cfg.DataSourceName)
	case "s3":
		if cfg.BucketName == "" {
			return nil, fmt.Errorf("S3_BUCKET_NAME environment variable must be set for s3 storage type")
		}
		storageField["bucketName"] = cfg.BucketName
		store, err = aws.NewStore(ctx, cfg.BucketName)
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	if err != nil {
		return nil, err
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store, nil
}
