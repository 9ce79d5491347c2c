package service

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/config"
	"github.com/google/uuid"
)

// Sentinel errors for audio uploads.
var (
	ErrUnsupportedAudioType = errors.New("unsupported audio type")
	ErrAudioTooLarge        = errors.New("audio file too large")
)

// Accepted audio MIME types. Providers treat the bytes as opaque; only
// format and size are validated here, before anything is enqueued.
var allowedAudioTypes = map[string]string{
	"audio/mpeg":  ".mp3",
	"audio/mp3":   ".mp3",
	"audio/wav":   ".wav",
	"audio/x-wav": ".wav",
	"audio/webm":  ".webm",
	"video/webm":  ".webm",
	"audio/mp4":   ".m4a",
	"audio/x-m4a": ".m4a",
}

// AudioService stores submitted recordings on local disk under UUID
// filenames so the grading worker can read them off the request cycle.
type AudioService struct {
	cfg *config.Config
}

// NewAudioService creates a new AudioService.
func NewAudioService(cfg *config.Config) *AudioService {
	return &AudioService{cfg: cfg}
}

// SaveUpload validates and stores an uploaded recording. Returns the
// absolute path of the stored file.
func (s *AudioService) SaveUpload(file multipart.File, header *multipart.FileHeader) (string, error) {
	contentType := header.Header.Get("Content-Type")
	ext, ok := allowedAudioTypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s (allowed: %s)",
			ErrUnsupportedAudioType, contentType, strings.Join(allowedAudio(), ", "))
	}

	if header.Size > s.cfg.MaxUploadBytes {
		return "", fmt.Errorf("%w: %d bytes (max: %d)", ErrAudioTooLarge, header.Size, s.cfg.MaxUploadBytes)
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	filename := uuid.New().String() + ext
	destPath := filepath.Join(s.cfg.UploadDir, filename)

	dst, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	abs, err := filepath.Abs(destPath)
	if err != nil {
		return destPath, nil
	}
	return abs, nil
}

func allowedAudio() []string {
	types := make([]string, 0, len(allowedAudioTypes))
	for t := range allowedAudioTypes {
		types = append(types, t)
	}
	return types
}
