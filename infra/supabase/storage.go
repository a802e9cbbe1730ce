package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// StorageClient handles Supabase Storage operations.
type StorageClient struct {
	client *Client
}

// objectPath escapes each segment of a bucket key, keeping the separators.
func objectPath(filePath string) string {
	parts := strings.Split(strings.TrimLeft(filePath, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// Upload uploads a file to storage.
func (s *StorageClient) Upload(ctx context.Context, bucketID, filePath string, data []byte, opts *UploadOptions) error {
	urlStr := fmt.Sprintf("%s/object/%s/%s", s.client.storageURL, bucketID, objectPath(filePath))

	headers := map[string]string{"Content-Type": "application/octet-stream"}
	if opts != nil {
		if opts.ContentType != "" {
			headers["Content-Type"] = opts.ContentType
		}
		if opts.CacheControl != "" {
			headers["Cache-Control"] = opts.CacheControl
		}
		if opts.Upsert {
			headers["x-upsert"] = "true"
		}
	}

	respBody, statusCode, err := s.client.requestWithServiceKey(ctx, http.MethodPost, urlStr, data, headers)
	if err != nil {
		return err
	}
	if statusCode >= 400 {
		return parseError(respBody, statusCode)
	}
	return nil
}

// Download downloads a file from storage.
func (s *StorageClient) Download(ctx context.Context, bucketID, filePath string) ([]byte, error) {
	urlStr := fmt.Sprintf("%s/object/%s/%s", s.client.storageURL, bucketID, objectPath(filePath))

	respBody, statusCode, err := s.client.requestWithServiceKey(ctx, http.MethodGet, urlStr, nil, nil)
	if err != nil {
		return nil, err
	}
	if statusCode >= 400 {
		return nil, parseError(respBody, statusCode)
	}
	return respBody, nil
}

// Delete deletes files from storage. Missing files are not an error.
func (s *StorageClient) Delete(ctx context.Context, bucketID string, filePaths []string) error {
	urlStr := fmt.Sprintf("%s/object/%s", s.client.storageURL, bucketID)

	body, err := json.Marshal(map[string]interface{}{"prefixes": filePaths})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	respBody, statusCode, err := s.client.requestWithServiceKey(ctx, http.MethodDelete, urlStr, body, nil)
	if err != nil {
		return err
	}
	if statusCode >= 400 {
		return parseError(respBody, statusCode)
	}
	return nil
}

// CreateSignedURL creates a signed URL valid for expiresIn seconds.
func (s *StorageClient) CreateSignedURL(ctx context.Context, bucketID, filePath string, expiresIn int) (string, error) {
	urlStr := fmt.Sprintf("%s/object/sign/%s/%s", s.client.storageURL, bucketID, objectPath(filePath))

	body, err := json.Marshal(map[string]interface{}{"expiresIn": expiresIn})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	respBody, statusCode, err := s.client.requestWithServiceKey(ctx, http.MethodPost, urlStr, body, nil)
	if err != nil {
		return "", err
	}
	if statusCode >= 400 {
		return "", parseError(respBody, statusCode)
	}

	var result struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if result.SignedURL == "" {
		return "", fmt.Errorf("signed url missing from response")
	}
	// signedURL is relative to the storage API root
	return s.client.storageURL + result.SignedURL, nil
}
