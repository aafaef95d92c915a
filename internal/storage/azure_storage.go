package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	apperrors "github.com/anime-shed/forgery-inspector-go/internal/errors"
)

// BlobStorage reads images from Azure Blob Storage.
type BlobStorage interface {
	ImageFetcher
	GetImage(ctx context.Context, blobURL string) ([]byte, error)
}

type azureStorage struct {
	client   *azblob.Client
	maxBytes int64
}

// NewAzureStorage authenticates to accountName with a shared key.
func NewAzureStorage(accountName, accountKey string, maxBytes int64) (BlobStorage, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid Azure storage credentials", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create Azure blob client", err)
	}

	return &azureStorage{client: client, maxBytes: maxBytes}, nil
}

func (s *azureStorage) GetImage(ctx context.Context, blobURL string) ([]byte, error) {
	containerName, blobName, err := ParseBlobURL(blobURL)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, apperrors.NewNetworkError("blob download failed", err)
	}
	defer resp.Body.Close()

	return readLimited(resp.Body, s.maxBytes)
}

// FetchImage lets the blob store serve as an ImageFetcher.
func (s *azureStorage) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	return s.GetImage(ctx, imageURL)
}

// ParseBlobURL extracts the container and blob name. It accepts
// https://<account>.blob.core.windows.net/<container>/<blob>,
// azblob://<container>/<blob> and the legacy /<container>?blob=<name> form.
func ParseBlobURL(blobURL string) (string, string, error) {
	u, err := url.Parse(blobURL)
	if err != nil {
		return "", "", apperrors.NewValidationError("invalid blob URL", err)
	}

	path := strings.TrimPrefix(u.Path, "/")
	if u.Scheme == "azblob" {
		path = strings.TrimSuffix(u.Host+"/"+path, "/")
	}

	container, blob, _ := strings.Cut(path, "/")
	if b := u.Query().Get("blob"); b != "" {
		blob = b
	}
	if container == "" || blob == "" {
		return "", "", apperrors.NewValidationError("blob URL must name a container and a blob", nil)
	}
	return container, blob, nil
}
