package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// CloudinaryConfig contains credentials required to talk to Cloudinary.
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// CloudinaryStore uploads files as raw assets. Locations are secure URLs.
type CloudinaryStore struct {
	client     *cloudinary.Cloudinary
	folder     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewCloudinaryStore constructs a Cloudinary backed store.
func NewCloudinaryStore(cfg CloudinaryConfig, logger zerolog.Logger) (*CloudinaryStore, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &CloudinaryStore{
		client:     cld,
		folder:     strings.Trim(cfg.Folder, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

func (s *CloudinaryStore) Put(ctx context.Context, key string, reader io.Reader, _ int64) (string, error) {
	dir, name := path.Split(key)
	folder := strings.Trim(path.Join(s.folder, dir), "/")

	result, err := s.client.Upload.Upload(ctx, reader, uploader.UploadParams{
		Folder:       folder,
		PublicID:     buildPublicID(name),
		ResourceType: "raw",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("failed to upload asset: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", result.PublicID).Msg("file uploaded to cloudinary")
	return result.SecureURL, nil
}

func (s *CloudinaryStore) Get(ctx context.Context, location string) (Object, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return Object{}, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Object{}, fmt.Errorf("failed to download asset: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return Object{}, ErrObjectNotFound
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return Object{}, fmt.Errorf("cloudinary returned status %d", resp.StatusCode)
	}

	body, contentType, err := sniff(resp.Body)
	if err != nil {
		return Object{}, fmt.Errorf("failed to read asset: %w", err)
	}

	name := location
	if parsed, err := url.Parse(location); err == nil {
		name = parsed.Path
	}
	return Object{Body: body, FileName: path.Base(name), ContentType: contentType}, nil
}

// buildPublicID keeps the extension since raw assets are served by name.
func buildPublicID(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("upload-%d", time.Now().Unix())
	}

	return base + ext
}
