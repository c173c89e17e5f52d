package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-drafts/internal/domain/entity"
	"github.com/garyjia/expense-drafts/internal/domain/event"
)

func TestReceiptService_Upload(t *testing.T) {
	repo := newFakeReceiptRepo()
	storage := newFakeStorage()
	events := &recordingPublisher{}
	svc := NewReceiptService(repo, storage, fakeTxManager{}, events, &mockLogger{})

	content := []byte("%PDF-1.4 receipt")
	receipt, err := svc.Upload(context.Background(), UploadInput{
		Filename:   "../../etc/dinner.pdf",
		Mime:       "application/pdf",
		Content:    content,
		EmployeeID: strPtr("emp-1"),
	})
	require.NoError(t, err)

	sum := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(sum[:]), receipt.SHA256)
	assert.Equal(t, "dinner.pdf", receipt.Filename)
	assert.Equal(t, receipt.ID+"/dinner.pdf", receipt.StorageKey)
	assert.Equal(t, int64(len(content)), receipt.SizeBytes)
	assert.Equal(t, entity.OCRStatusPending, receipt.OCRStatus)
	assert.Equal(t, content, storage.files[receipt.StorageKey])

	stored, _ := repo.GetByID(context.Background(), receipt.ID)
	assert.Equal(t, receipt.StorageKey, stored.StorageKey)
	assert.Equal(t, []event.Type{event.TypeReceiptUploaded}, events.types())
}

func TestReceiptService_UploadMissingFile(t *testing.T) {
	svc := NewReceiptService(newFakeReceiptRepo(), newFakeStorage(), fakeTxManager{}, nil, &mockLogger{})

	_, err := svc.Upload(context.Background(), UploadInput{Filename: "a.png"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestReceiptService_UploadStorageFailure(t *testing.T) {
	storage := newFakeStorage()
	storage.saveErr = errors.New("disk full")
	svc := NewReceiptService(newFakeReceiptRepo(), storage, fakeTxManager{}, nil, &mockLogger{})

	_, err := svc.Upload(context.Background(), UploadInput{Filename: "a.png", Content: []byte{1}})
	assert.ErrorIs(t, err, ErrStoreFailed)
}

func TestCleanFilename(t *testing.T) {
	assert.Equal(t, "a.png", cleanFilename("a.png"))
	assert.Equal(t, "b.jpg", cleanFilename(`C:\Users\x\b.jpg`))
	assert.Equal(t, "receipt", cleanFilename(""))
	assert.Equal(t, "receipt", cleanFilename(".."))
	assert.Equal(t, "receipt", cleanFilename("/"))
}
