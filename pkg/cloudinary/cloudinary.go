package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Enabled reports whether all credentials are present.
func (c Config) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// Store keeps document revisions in Cloudinary as raw assets.
type Store struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary revision store.
func New(cfg Config, logger zerolog.Logger) (*Store, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Store{
		client: cld,
		folder: strings.Trim(cfg.Folder, "/"),
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Put uploads body under key and returns its secure URL. Keys are slash separated;
// everything but the last segment becomes the asset folder.
func (s *Store) Put(ctx context.Context, key string, body io.Reader) (string, error) {
	folder, publicID := SplitKey(s.folder, key)
	overwrite := false

	result, err := s.client.Upload.Upload(ctx, body, uploader.UploadParams{
		Folder:       folder,
		PublicID:     publicID,
		ResourceType: "raw",
		Overwrite:    &overwrite,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload revision: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected revision: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", result.PublicID).Msg("revision stored")
	return result.SecureURL, nil
}

// SplitKey maps a storage key onto a Cloudinary folder and public id.
func SplitKey(root, key string) (string, string) {
	cleaned := strings.Trim(path.Clean("/"+key), "/")
	dir, file := path.Split(cleaned)
	folder := strings.Trim(path.Join(root, dir), "/")
	return folder, sanitizeID(file)
}

func sanitizeID(name string) string {
	id := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '_' {
			return r
		}
		return '-'
	}, name)
	id = strings.Trim(id, "-")
	if id == "" {
		return "revision"
	}
	return id
}
