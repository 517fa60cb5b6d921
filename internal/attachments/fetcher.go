// Package attachments resolves inbound attachment references into persisted
// files. Content arrives either inline in the webhook payload or has to be
// fetched from the mail provider with a follow-up authenticated call.
package attachments

import (
	"context"
	"encoding/base64"
	"log"
	"strings"

	"github.com/rodrigofdzr/TARdesk/internal/metrics"
	"github.com/rodrigofdzr/TARdesk/internal/models"
	"github.com/rodrigofdzr/TARdesk/internal/storage"
	"github.com/rodrigofdzr/TARdesk/internal/zoho"
)

// remoteClient is the subset of the Zoho client the fetcher needs.
type remoteClient interface {
	ListAttachments(ctx context.Context, messageID string) ([]zoho.AttachmentInfo, error)
	DownloadAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
}

// contentStore persists attachment bytes by relative path.
type contentStore interface {
	Write(relPath string, content []byte) (string, error)
}

// Fetcher turns AttachmentRefs into StoredAttachments.
type Fetcher struct {
	store   contentStore
	remote  remoteClient
	logger  *log.Logger
	metrics *metrics.Ingestion
	baseDir string
}

// FetcherOption customizes a Fetcher.
type FetcherOption func(*Fetcher)

// WithFetcherLogger overrides the logger used for diagnostics.
func WithFetcherLogger(logger *log.Logger) FetcherOption {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithFetcherRemote wires the provider API client used when the payload
// carries no inline content.
func WithFetcherRemote(remote remoteClient) FetcherOption {
	return func(f *Fetcher) { f.remote = remote }
}

// WithFetcherMetrics wires the ingestion collectors; skipped attachments
// count as failures.
func WithFetcherMetrics(m *metrics.Ingestion) FetcherOption {
	return func(f *Fetcher) { f.metrics = m }
}

// NewFetcher builds a fetcher persisting into store.
func NewFetcher(store contentStore, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		store:   store,
		logger:  log.Default(),
		baseDir: "ticket_attachments",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Resolve persists every resolvable attachment and returns their records.
// A single attachment failing to decode, download or store is logged and
// skipped; it never aborts the remaining attachments or ticket creation.
//
// When refs is empty but the message id is known, attachment metadata is
// fetched from the provider and each attachment downloaded individually.
func (f *Fetcher) Resolve(ctx context.Context, refs []models.AttachmentRef, messageID string) []models.StoredAttachment {
	if len(refs) > 0 {
		return f.resolveInline(refs)
	}
	if messageID == "" || f.remote == nil {
		return nil
	}
	return f.resolveRemote(ctx, messageID)
}

func (f *Fetcher) resolveInline(refs []models.AttachmentRef) []models.StoredAttachment {
	var stored []models.StoredAttachment
	for _, ref := range refs {
		if !ref.IsInline() {
			f.logger.Printf("attachments: %s has no inline content, skipping", ref.Filename)
			continue
		}
		content, err := decodeBase64(ref.ContentBase64)
		if err != nil {
			f.logger.Printf("attachments: decode %s failed: %v", ref.Filename, err)
			f.metrics.AttachmentFailure()
			continue
		}
		if att := f.persist(ref.Filename, ref.Mime, ref.Inline, content); att != nil {
			stored = append(stored, *att)
		}
	}
	return stored
}

func (f *Fetcher) resolveRemote(ctx context.Context, messageID string) []models.StoredAttachment {
	infos, err := f.remote.ListAttachments(ctx, messageID)
	if err != nil {
		f.logger.Printf("attachments: metadata fetch for message %s failed: %v", messageID, err)
		f.metrics.AttachmentFailure()
		return nil
	}
	var stored []models.StoredAttachment
	for _, info := range infos {
		content, err := f.remote.DownloadAttachment(ctx, messageID, info.AttachmentID)
		if err != nil {
			f.logger.Printf("attachments: download %s failed: %v", info.AttachmentName, err)
			f.metrics.AttachmentFailure()
			continue
		}
		inline := strings.EqualFold(info.Disposition, "inline")
		if att := f.persist(info.AttachmentName, info.ContentType, inline, content); att != nil {
			stored = append(stored, *att)
		}
	}
	return stored
}

func (f *Fetcher) persist(filename, mime string, inline bool, content []byte) *models.StoredAttachment {
	if len(content) == 0 {
		return nil
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	storedName := storage.StoredName(filename)
	relPath := f.baseDir + "/" + storedName
	if _, err := f.store.Write(relPath, content); err != nil {
		f.logger.Printf("attachments: store %s failed: %v", filename, err)
		f.metrics.AttachmentFailure()
		return nil
	}
	return &models.StoredAttachment{
		Filename:    filename,
		StoredName:  storedName,
		StoragePath: relPath,
		Mime:        mime,
		SizeBytes:   int64(len(content)),
		Inline:      inline,
	}
}

// decodeBase64 accepts standard and URL-safe alphabets, padded or not.
func decodeBase64(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding,
	} {
		if data, err := enc.DecodeString(value); err == nil {
			return data, nil
		}
	}
	_, err := base64.StdEncoding.DecodeString(value)
	return nil, err
}
