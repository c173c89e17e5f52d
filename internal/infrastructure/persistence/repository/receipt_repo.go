package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/expense-drafts/internal/application/port"
	"github.com/garyjia/expense-drafts/internal/domain/entity"
	"github.com/garyjia/expense-drafts/internal/infrastructure/persistence/sqlite"
)

// ReceiptRepository implements port.ReceiptRepository
type ReceiptRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewReceiptRepository creates a new receipt repository
func NewReceiptRepository(db *sqlite.DB, logger *zap.Logger) port.ReceiptRepository {
	return &ReceiptRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new receipt record
func (r *ReceiptRepository) Create(ctx context.Context, receipt *entity.ReceiptAsset) error {
	receipt.ID = uuid.NewString()
	receipt.CreatedAt = time.Now().UTC()
	if receipt.OCRStatus == "" {
		receipt.OCRStatus = entity.OCRStatusPending
	}

	query := `
		INSERT INTO receipts (
			id, employee_id, sha256, mime, filename, size_bytes,
			storage_key, ocr_status, ocr_model, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		receipt.ID,
		nullString(receipt.EmployeeID),
		receipt.SHA256,
		receipt.Mime,
		receipt.Filename,
		receipt.SizeBytes,
		receipt.StorageKey,
		receipt.OCRStatus,
		nullString(receipt.OCRModel),
		receipt.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create receipt",
			zap.String("filename", receipt.Filename),
			zap.Error(err))
		return fmt.Errorf("failed to create receipt: %w", err)
	}

	r.logger.Info("Receipt created",
		zap.String("id", receipt.ID),
		zap.String("sha256", receipt.SHA256),
		zap.Int64("size_bytes", receipt.SizeBytes))
	return nil
}

// GetByID retrieves a receipt by ID
func (r *ReceiptRepository) GetByID(ctx context.Context, id string) (*entity.ReceiptAsset, error) {
	query := `
		SELECT id, employee_id, sha256, mime, filename, size_bytes,
			storage_key, ocr_status, ocr_model, created_at
		FROM receipts WHERE id = ?
	`

	var receipt entity.ReceiptAsset
	var employeeID, ocrModel sql.NullString

	err := r.db.Executor(ctx).QueryRowContext(ctx, query, id).Scan(
		&receipt.ID,
		&employeeID,
		&receipt.SHA256,
		&receipt.Mime,
		&receipt.Filename,
		&receipt.SizeBytes,
		&receipt.StorageKey,
		&receipt.OCRStatus,
		&ocrModel,
		&receipt.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get receipt", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}

	receipt.EmployeeID = stringPtr(employeeID)
	receipt.OCRModel = stringPtr(ocrModel)
	receipt.CreatedAt = receipt.CreatedAt.UTC()
	return &receipt, nil
}

// SetStorageKey records where the receipt bytes were written
func (r *ReceiptRepository) SetStorageKey(ctx context.Context, id, key string) error {
	return r.updateOne(ctx, "storage key", id,
		`UPDATE receipts SET storage_key = ? WHERE id = ?`, key, id)
}

// UpdateOCRStatus records the extraction outcome and the provider that produced it
func (r *ReceiptRepository) UpdateOCRStatus(ctx context.Context, id string, status string, model *string) error {
	return r.updateOne(ctx, "ocr status", id,
		`UPDATE receipts SET ocr_status = ?, ocr_model = ? WHERE id = ?`, status, nullString(model), id)
}

func (r *ReceiptRepository) updateOne(ctx context.Context, what, id, query string, args ...interface{}) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update receipt "+what, zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update receipt %s: %w", what, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("receipt not found: %s", id)
	}
	return nil
}
