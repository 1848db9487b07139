// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client behind the Client interface so the snapshot archive can
// be unit tested with the testify mock in core/storage/mocks. Both AWS S3 and
// self-hosted MinIO endpoints are supported.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	err = storage.EnsureBucket(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region)
package storage
