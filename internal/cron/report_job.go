package cron

import (
	"context"
	"fmt"

	"github.com/crmbridge/crmbridge-backend/internal/audit"
	"github.com/crmbridge/crmbridge-backend/pkg/notify"
)

const reportWindowHours = 24

// reportGenerator is the slice of the reports client this job needs.
type reportGenerator interface {
	Generate(ctx context.Context, digest string) (string, error)
}

// DailyReportJob summarizes the last day of sync activity and posts the
// narrative to the operator chat.
type DailyReportJob struct {
	audit    audit.Service
	reports  reportGenerator
	notifier notify.Notifier
}

// NewDailyReportJob builds the report job.
func NewDailyReportJob(auditSvc audit.Service, reports reportGenerator, notifier notify.Notifier) (*DailyReportJob, error) {
	if auditSvc == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if reports == nil {
		return nil, fmt.Errorf("report generator required")
	}
	return &DailyReportJob{audit: auditSvc, reports: reports, notifier: notifier}, nil
}

func (j *DailyReportJob) Name() string { return "daily_report" }

func (j *DailyReportJob) Run(ctx context.Context) error {
	digest, err := j.audit.ActivityDigest(ctx, reportWindowHours)
	if err != nil {
		return fmt.Errorf("building activity digest: %w", err)
	}
	report, err := j.reports.Generate(ctx, digest)
	if err != nil {
		return fmt.Errorf("generating report: %w", err)
	}
	if j.notifier != nil {
		j.notifier.Send(ctx, report)
	}
	return nil
}
