package controllers

import (
	"context"
	"net/http"

	"github.com/crmbridge/crmbridge-backend/api/responses"
	"github.com/crmbridge/crmbridge-backend/api/validators"
	"github.com/crmbridge/crmbridge-backend/internal/audit"
	pkgerrors "github.com/crmbridge/crmbridge-backend/pkg/errors"
	"github.com/crmbridge/crmbridge-backend/pkg/logger"
	"github.com/crmbridge/crmbridge-backend/pkg/notify"
)

// ReportGenerator turns a plain-text activity digest into a readable report.
type ReportGenerator interface {
	Generate(ctx context.Context, digest string) (string, error)
}

type reportResponse struct {
	Report    string `json:"report"`
	Delivered bool   `json:"delivered"`
}

// GenerateReport builds an activity report over the requested window and
// optionally delivers it to the notification channel.
func GenerateReport(auditSvc audit.Service, generator ReportGenerator, notifier notify.Notifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if generator == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "report generation is not configured"))
			return
		}

		hours, err := validators.ParseQueryInt(r, "hours", 24, 1, 720)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		digest, err := auditSvc.ActivityDigest(ctx, hours)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		report, err := generator.Generate(ctx, digest)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		delivered := false
		if notifier != nil {
			notifier.Send(ctx, report)
			delivered = true
		}
		responses.WriteSuccess(w, reportResponse{Report: report, Delivered: delivered})
	}
}
