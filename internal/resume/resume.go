// Package resume fetches the candidate's resume used as interview context.
package resume

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/supabase-community/supabase-go"

	"github.com/chadiek/interview-call/internal/logging"
)

// Store provides the resume text for a session.
type Store interface {
	Fetch() (string, error)
}

// SupabaseStore reads the resume object out of a Supabase storage bucket.
type SupabaseStore struct {
	client *supabase.Client
	bucket string
	key    string
	log    zerolog.Logger
}

// Config carries the Supabase connection settings.
type Config struct {
	URL            string
	ServiceRoleKey string
	Bucket         string
	ObjectKey      string
}

// NewSupabaseStore builds a store against the configured bucket.
func NewSupabaseStore(config Config) (*SupabaseStore, error) {
	client, err := supabase.NewClient(config.URL, config.ServiceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("resume: supabase client: %w", err)
	}
	return &SupabaseStore{
		client: client,
		bucket: config.Bucket,
		key:    config.ObjectKey,
		log:    logging.WithComponent("resume"),
	}, nil
}

// Fetch downloads the resume object and returns its text.
func (s *SupabaseStore) Fetch() (string, error) {
	data, err := s.client.Storage.DownloadFile(s.bucket, s.key)
	if err != nil {
		return "", fmt.Errorf("resume: download %s/%s: %w", s.bucket, s.key, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("resume: object %s/%s is empty", s.bucket, s.key)
	}
	s.log.Info().Int("chars", len(text)).Msg("resume fetched")
	return text, nil
}

// FileStore reads the resume from a local file. Used in development when no
// Supabase project is configured.
type FileStore struct {
	Path string
}

// Fetch reads and trims the file.
func (s FileStore) Fetch() (string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("resume: read %s: %w", s.Path, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("resume: file %s is empty", s.Path)
	}
	return text, nil
}
