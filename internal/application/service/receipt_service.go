package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/garyjia/expense-drafts/internal/application/port"
	"github.com/garyjia/expense-drafts/internal/domain/entity"
	"github.com/garyjia/expense-drafts/internal/domain/event"
)

// UploadInput is one receipt file sent by a client
type UploadInput struct {
	Filename   string
	Mime       string
	Content    []byte
	EmployeeID *string
}

// ReceiptService stores uploaded receipts ahead of extraction
type ReceiptService interface {
	Upload(ctx context.Context, in UploadInput) (*entity.ReceiptAsset, error)
}

type receiptServiceImpl struct {
	receiptRepo port.ReceiptRepository
	storage     port.FileStorage
	txManager   port.TransactionManager
	events      port.EventPublisher
	logger      Logger
}

// NewReceiptService creates a new ReceiptService. events may be nil.
func NewReceiptService(
	receiptRepo port.ReceiptRepository,
	storage port.FileStorage,
	txManager port.TransactionManager,
	events port.EventPublisher,
	logger Logger,
) ReceiptService {
	if events == nil {
		events = nopPublisher{}
	}
	return &receiptServiceImpl{
		receiptRepo: receiptRepo,
		storage:     storage,
		txManager:   txManager,
		events:      events,
		logger:      logger,
	}
}

// Upload hashes the file, records a pending receipt and stores the bytes under
// "<receipt id>/<filename>". The receipt row is rolled back if the file cannot be stored.
func (s *receiptServiceImpl) Upload(ctx context.Context, in UploadInput) (*entity.ReceiptAsset, error) {
	if len(in.Content) == 0 {
		return nil, fmt.Errorf("%w: missing file", ErrInvalidInput)
	}

	sum := sha256.Sum256(in.Content)
	receipt := &entity.ReceiptAsset{
		EmployeeID: in.EmployeeID,
		SHA256:     hex.EncodeToString(sum[:]),
		Mime:       in.Mime,
		Filename:   cleanFilename(in.Filename),
		SizeBytes:  int64(len(in.Content)),
		OCRStatus:  entity.OCRStatusPending,
	}

	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.receiptRepo.Create(ctx, receipt); err != nil {
			return fmt.Errorf("create receipt: %w", err)
		}

		key := path.Join(receipt.ID, receipt.Filename)
		if err := s.storage.Save(ctx, key, in.Content); err != nil {
			return fmt.Errorf("save receipt file: %w", err)
		}
		if err := s.receiptRepo.SetStorageKey(ctx, receipt.ID, key); err != nil {
			return fmt.Errorf("set storage key: %w", err)
		}
		receipt.StorageKey = key
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to store receipt", "error", err, "filename", receipt.Filename)
		return nil, fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}

	s.logger.Info("Receipt uploaded",
		"receipt_id", receipt.ID,
		"sha256", receipt.SHA256,
		"size_bytes", receipt.SizeBytes,
	)
	s.events.Publish(ctx, event.NewEvent(event.TypeReceiptUploaded, "", receipt.ID))
	return receipt, nil
}

// cleanFilename keeps only the base name so keys never escape the receipt folder
func cleanFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" || base == ".." || base == "" {
		return "receipt"
	}
	return base
}
