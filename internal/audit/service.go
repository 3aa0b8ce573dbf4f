package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/crmbridge/crmbridge-backend/pkg/db/models"
	pkgerrors "github.com/crmbridge/crmbridge-backend/pkg/errors"
	"github.com/crmbridge/crmbridge-backend/pkg/logger"
)

// Service records and reads the sync audit trail. Recording never fails the
// caller: an unwritable audit row is logged and dropped so sync outcomes do
// not depend on the log table.
type Service interface {
	Record(ctx context.Context, input RecordInput) *models.SyncLogEntry
	LastForEntity(ctx context.Context, syncType, entityID string) (*models.SyncLogEntry, error)
	List(ctx context.Context, filter ListFilter) ([]models.SyncLogEntry, error)
	ActivityDigest(ctx context.Context, hours int) (string, error)
}

// RecordInput is one audit row. Request and Response are serialized to JSON
// when present.
type RecordInput struct {
	SyncType     string
	Direction    string
	EntityID     string
	Status       string
	Request      any
	Response     any
	ErrorMessage string
}

type service struct {
	repo   Repository
	logger *logger.Logger
}

// NewService builds the audit service.
func NewService(repo Repository, logg *logger.Logger) Service {
	return &service{repo: repo, logger: logg}
}

func (s *service) Record(ctx context.Context, input RecordInput) *models.SyncLogEntry {
	entry := &models.SyncLogEntry{
		SyncType:  input.SyncType,
		Direction: input.Direction,
		Status:    input.Status,
	}
	if input.EntityID != "" {
		entityID := input.EntityID
		entry.EntityID = &entityID
	}
	if input.ErrorMessage != "" {
		msg := input.ErrorMessage
		entry.ErrorMessage = &msg
	}
	entry.RequestData = marshalDetail(input.Request)
	entry.ResponseData = marshalDetail(input.Response)

	created, err := s.repo.Create(ctx, entry)
	if err != nil {
		if s.logger != nil {
			ctx = s.logger.WithSyncType(ctx, input.SyncType)
			s.logger.Error(ctx, "failed to write sync log entry", err)
		}
		return entry
	}
	return created
}

func (s *service) LastForEntity(ctx context.Context, syncType, entityID string) (*models.SyncLogEntry, error) {
	entry, err := s.repo.FindLastForEntity(ctx, syncType, entityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no sync log entry for entity")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading sync log entry")
	}
	return entry, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]models.SyncLogEntry, error) {
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing sync log entries")
	}
	return entries, nil
}

// ActivityDigest summarizes recent sync activity as a plain-text block for
// report generation.
func (s *service) ActivityDigest(ctx context.Context, hours int) (string, error) {
	if hours <= 0 {
		hours = 24
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Sync activity for the last %d hours (as of %s):",
		hours, time.Now().UTC().Format(time.RFC3339)))

	for _, syncType := range []string{models.SyncTypeOrderToERP, models.SyncTypeStockToCRM} {
		for _, status := range []string{models.SyncStatusSuccess, models.SyncStatusPartialSuccess, models.SyncStatusError} {
			count, err := s.repo.CountSince(ctx, CountFilter{SyncType: syncType, Status: status, Hours: hours})
			if err != nil {
				return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building activity digest")
			}
			if count > 0 {
				lines = append(lines, fmt.Sprintf("- %s %s: %d", syncType, status, count))
			}
		}
	}

	recentErrors, err := s.repo.List(ctx, ListFilter{Status: models.SyncStatusError, Limit: 10})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building activity digest")
	}
	for _, entry := range recentErrors {
		msg := ""
		if entry.ErrorMessage != nil {
			msg = *entry.ErrorMessage
		}
		lines = append(lines, fmt.Sprintf("- error (%s): %s", entry.SyncType, msg))
	}

	return strings.Join(lines, "\n"), nil
}

func marshalDetail(value any) *string {
	if value == nil {
		return nil
	}
	if text, ok := value.(string); ok {
		if text == "" {
			return nil
		}
		return &text
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	text := string(encoded)
	return &text
}
