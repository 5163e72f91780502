package file

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileOperations defines methods for reading from and writing to files.
type FileOperations interface {
	IsFileExists(filePath string) (bool, error)
	IsDir(filePath string) (bool, error)
	Open(filePath string) (io.ReadCloser, error)
	ReadYamlFile(filePath string, v any) error
	WriteAtomic(filePath string, write func(w io.Writer) error) error
}

// FileService implements the FileOperations interface using standard file operations.
type FileService struct{}

// NewFileService creates a new instance of FileService.
func NewFileService() *FileService {
	return &FileService{}
}

// IsFileExists checks if the file exists and returns boolean and error
func (fs *FileService) IsFileExists(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return false, nil
	}

	// checking err == nil because of permission related error
	return err == nil, err
}

// IsDir reports whether filePath is a directory.
func (fs *FileService) IsDir(filePath string) (bool, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// Open opens filePath for reading.
func (fs *FileService) Open(filePath string) (io.ReadCloser, error) {
	return os.Open(filePath)
}

// ReadYamlFile reads and unmarshals YAML data from the given file.
func (fs *FileService) ReadYamlFile(filePath string, v any) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	return decoder.Decode(v)
}

// WriteAtomic streams content produced by write into a temporary file next to
// filePath and renames it over the target, so readers never see a partial file.
func (fs *FileService) WriteAtomic(filePath string, write func(w io.Writer) error) error {
	tempFile, err := os.CreateTemp(filepath.Dir(filePath), filepath.Base(filePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}
	tempName := tempFile.Name()

	if err := write(tempFile); err != nil {
		tempFile.Close()
		os.Remove(tempName) // Clean up partial file
		return err
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error closing temp file: %w", err)
	}
	if err := os.Chmod(tempName, 0644); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error setting permissions: %w", err)
	}

	return os.Rename(tempName, filePath) // Atomic file update
}
