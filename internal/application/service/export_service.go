package service

import (
	"context"
	"fmt"

	"github.com/garyjia/expense-drafts/internal/application/port"
)

// ExportService renders stored drafts for download
type ExportService interface {
	DraftsWorkbook(ctx context.Context, limit int) ([]byte, error)
}

type exportServiceImpl struct {
	drafts DraftService
	writer port.DraftWorkbookWriter
	logger Logger
}

// NewExportService creates a new ExportService
func NewExportService(drafts DraftService, writer port.DraftWorkbookWriter, logger Logger) ExportService {
	return &exportServiceImpl{drafts: drafts, writer: writer, logger: logger}
}

// DraftsWorkbook lists the newest drafts and renders them as one workbook
func (s *exportServiceImpl) DraftsWorkbook(ctx context.Context, limit int) ([]byte, error) {
	drafts, err := s.drafts.ListDrafts(ctx, limit)
	if err != nil {
		return nil, err
	}

	data, err := s.writer.Write(drafts)
	if err != nil {
		s.logger.Error("Failed to render drafts workbook", "error", err, "drafts", len(drafts))
		return nil, fmt.Errorf("render workbook: %w", err)
	}

	s.logger.Info("Drafts exported", "drafts", len(drafts), "bytes", len(data))
	return data, nil
}
