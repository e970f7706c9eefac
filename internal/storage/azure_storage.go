package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// azureFrameStore implements FrameFetcher for frames kept in Azure blob storage
type azureFrameStore struct {
	client   *azblob.Client
	maxBytes int64
}

// NewAzureFrameStore creates a blob-backed fetcher using shared key credentials
func NewAzureFrameStore(accountName string, accountKey string) (FrameFetcher, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	return &azureFrameStore{client: client, maxBytes: DefaultMaxFrameBytes}, nil
}

// FetchFrame downloads the blob named by location
func (s *azureFrameStore) FetchFrame(ctx context.Context, location string) ([]byte, error) {
	containerName, blobName, err := ParseBlobLocation(location)
	if err != nil {
		return nil, err
	}

	downloadResponse, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}

	retryReader := downloadResponse.Body
	defer retryReader.Close()

	data, err := io.ReadAll(io.LimitReader(retryReader, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("blob exceeds %d bytes", s.maxBytes)
	}
	return data, nil
}

// ParseBlobLocation splits a blob URL into container and blob name. Both
// https://acct.blob.core.windows.net/container/path/frame.jpg and
// .../container?blob=path/frame.jpg are accepted.
func ParseBlobLocation(location string) (string, string, error) {
	parsedURL, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob URL: %w", err)
	}

	path := strings.Trim(parsedURL.Path, "/")
	if path == "" {
		return "", "", fmt.Errorf("blob URL has no container: %s", location)
	}

	if blob := parsedURL.Query().Get("blob"); blob != "" {
		return path, blob, nil
	}

	containerName, blobName, found := strings.Cut(path, "/")
	if !found || blobName == "" {
		return "", "", fmt.Errorf("blob URL has no blob name: %s", location)
	}
	return containerName, blobName, nil
}
