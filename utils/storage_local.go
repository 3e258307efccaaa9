package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// Local filesystem provider for development and tests.
// Objects live under STORAGE_LOCAL_DIR (default ./storage).

func localStorageDir() string {
	dir := strings.TrimSpace(os.Getenv("STORAGE_LOCAL_DIR"))
	if dir == "" {
		dir = "./storage"
	}
	return dir
}

func localObjectPath(objectName string) (string, error) {
	cleaned := filepath.Clean("/" + objectName)
	return filepath.Join(localStorageDir(), cleaned), nil
}

func writeBytesToLocal(objectName string, data []byte) error {
	path, err := localObjectPath(objectName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readBytesFromLocal(objectName string) ([]byte, error) {
	path, err := localObjectPath(objectName)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return data, nil
}

func deleteObjectFromLocal(objectName string) error {
	path, err := localObjectPath(objectName)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func objectExistsInLocal(objectName string) (bool, error) {
	path, err := localObjectPath(objectName)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
