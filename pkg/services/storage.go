package services

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const maxImageSize = 5 * 1024 * 1024

// ObjectStorageService stores uploaded listing images on local disk and
// serves them from the /uploads static route.
type ObjectStorageService struct {
	basePath string
	baseURL  string
}

func NewObjectStorageService() *ObjectStorageService {
	basePath := "./uploads/posts"
	baseURL := "/uploads/posts"

	os.MkdirAll(basePath, 0755)

	return &ObjectStorageService{
		basePath: basePath,
		baseURL:  baseURL,
	}
}

// SavePostImage validates and writes a listing image, returning the URL
// path it will be served from.
func (s *ObjectStorageService) SavePostImage(postID uint, file multipart.File, header *multipart.FileHeader) (string, error) {
	if !s.isValidImageType(header.Filename) {
		return "", fmt.Errorf("invalid file type. Only JPG, PNG, GIF, WEBP allowed")
	}
	if header.Size > maxImageSize {
		return "", fmt.Errorf("file too large. Maximum size is 5MB")
	}

	postDir := filepath.Join(s.basePath, strconv.Itoa(int(postID)))
	if err := os.MkdirAll(postDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	filename := fmt.Sprintf("image_%d%s", time.Now().Unix(), ext)
	filePath := filepath.Join(postDir, filename)

	dst, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return fmt.Sprintf("%s/%d/%s", s.baseURL, postID, filename), nil
}

func (s *ObjectStorageService) isValidImageType(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	}
	return false
}
