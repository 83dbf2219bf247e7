package camera

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sort"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
)

// BlobConfig configures a replay camera backed by Azure blob storage.
// Frames recorded during a beamline shift are played back in lexical
// blob-name order, which matches the capture timestamps our recorders
// embed in the names.
type BlobConfig struct {
	Name string
	// AccountName and AccountKey are the shared-key credentials.
	AccountName string
	AccountKey  string
	// Container holds the recorded frames; Prefix narrows to one shift.
	Container string
	Prefix    string
}

// BlobSource replays recorded frames from blob storage, cycling back to
// the first frame after the last.
type BlobSource struct {
	cfg    BlobConfig
	client *azblob.Client

	mu    sync.Mutex
	names []string
	next  int
}

// NewBlobSource builds the replay source. The container is listed lazily
// on first capture so construction stays offline.
func NewBlobSource(cfg BlobConfig) (*BlobSource, error) {
	if cfg.AccountName == "" || cfg.AccountKey == "" {
		return nil, apperrors.NewInvalidConfig("blob camera requires account credentials", nil)
	}
	if cfg.Container == "" {
		return nil, apperrors.NewInvalidConfig("blob camera requires a container", nil)
	}
	if cfg.Name == "" {
		cfg.Name = "replay"
	}

	credential, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, apperrors.NewInvalidConfig("invalid blob credentials", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, apperrors.NewInvalidConfig("blob client setup failed", err)
	}
	return &BlobSource{cfg: cfg, client: client}, nil
}

func (s *BlobSource) Name() string {
	return s.cfg.Name
}

// Capture downloads and decodes the next recorded frame.
func (s *BlobSource) Capture(ctx context.Context) (image.Image, error) {
	name, err := s.nextBlob(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.DownloadStream(ctx, s.cfg.Container, name, nil)
	if err != nil {
		return nil, apperrors.NewAcquisition(
			fmt.Sprintf("camera %s: download of %s failed", s.cfg.Name, name), err)
	}
	body := resp.Body
	defer body.Close()

	img, _, err := image.Decode(body)
	if err != nil {
		return nil, apperrors.NewAcquisition(
			fmt.Sprintf("camera %s: decode of %s failed", s.cfg.Name, name), err)
	}
	return img, nil
}

func (s *BlobSource) nextBlob(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.names == nil {
		names, err := s.listFrames(ctx)
		if err != nil {
			return "", err
		}
		s.names = names
	}
	if len(s.names) == 0 {
		return "", apperrors.NewAcquisition(
			fmt.Sprintf("camera %s: no recorded frames under %s/%s", s.cfg.Name, s.cfg.Container, s.cfg.Prefix), nil)
	}

	name := s.names[s.next]
	s.next = (s.next + 1) % len(s.names)
	return name, nil
}

func (s *BlobSource) listFrames(ctx context.Context) ([]string, error) {
	var opts *azblob.ListBlobsFlatOptions
	if s.cfg.Prefix != "" {
		opts = &azblob.ListBlobsFlatOptions{Prefix: &s.cfg.Prefix}
	}

	var names []string
	pager := s.client.NewListBlobsFlatPager(s.cfg.Container, opts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, apperrors.NewAcquisition(
				fmt.Sprintf("camera %s: listing frames failed", s.cfg.Name), err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				names = append(names, *item.Name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}
