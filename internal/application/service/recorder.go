package service

import (
	"context"
	"time"

	"github.com/garyjia/expense-drafts/internal/domain/entity"
	"github.com/garyjia/expense-drafts/internal/domain/event"
)

// Recorder receives pipeline measurements
type Recorder interface {
	ExtractionObserved(provider, outcome string, elapsed time.Duration)
	FindingsRecorded(findings []entity.PolicyFinding)
	FieldsDropped(payload string, count int)
}

// Extraction outcomes reported to the Recorder
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Payload names reported to Recorder.FieldsDropped
const (
	PayloadExtraction = "extraction"
	PayloadSuggestion = "suggestion"
)

type nopRecorder struct{}

func (nopRecorder) ExtractionObserved(string, string, time.Duration) {}
func (nopRecorder) FindingsRecorded([]entity.PolicyFinding)          {}
func (nopRecorder) FieldsDropped(string, int)                        {}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, *event.Event) {}
