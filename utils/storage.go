package utils

import (
	"context"
	"fmt"
)

// Provider-agnostic object storage facade. Uploaded roster files and
// generated error reports go through these functions only.

func WriteObject(ctx context.Context, objectName string, data []byte, contentType string) error {
	switch GetStorageProvider() {
	case StorageProviderGCS:
		return UploadBytesToGCS(ctx, objectName, data, contentType)
	case StorageProviderLocal:
		return writeBytesToLocal(objectName, data)
	default:
		return fmt.Errorf("unsupported storage provider: %s", GetStorageProvider())
	}
}

func ReadObject(ctx context.Context, objectName string) ([]byte, error) {
	switch GetStorageProvider() {
	case StorageProviderGCS:
		return ReadBytesFromGCS(ctx, objectName)
	case StorageProviderLocal:
		return readBytesFromLocal(objectName)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", GetStorageProvider())
	}
}

func DeleteObject(ctx context.Context, objectName string) error {
	switch GetStorageProvider() {
	case StorageProviderGCS:
		return DeleteObjectFromGCS(ctx, objectName)
	case StorageProviderLocal:
		return deleteObjectFromLocal(objectName)
	default:
		return fmt.Errorf("unsupported storage provider: %s", GetStorageProvider())
	}
}

func ObjectExists(ctx context.Context, objectName string) (bool, error) {
	switch GetStorageProvider() {
	case StorageProviderGCS:
		return ObjectExistsInGCS(ctx, objectName)
	case StorageProviderLocal:
		return objectExistsInLocal(objectName)
	default:
		return false, fmt.Errorf("unsupported storage provider: %s", GetStorageProvider())
	}
}
