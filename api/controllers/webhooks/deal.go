package webhooks

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/crmbridge/crmbridge-backend/api/responses"
	pkgerrors "github.com/crmbridge/crmbridge-backend/pkg/errors"
	"github.com/crmbridge/crmbridge-backend/pkg/logger"
	"github.com/crmbridge/crmbridge-backend/pkg/types"
)

// Deal events that trigger a translation. Everything else is acknowledged
// and ignored.
const (
	eventDealAdd    = "ONCRMDEALADD"
	eventDealUpdate = "ONCRMDEALUPDATE"
)

// Enqueuer hands a deal to the background translation pool.
type Enqueuer interface {
	Enqueue(dealID, event string) error
}

type dealEventBody struct {
	Event string `json:"event"`
	Data  struct {
		Fields struct {
			ID json.Number `json:"ID"`
		} `json:"FIELDS"`
	} `json:"data"`
}

// DealEvent receives CRM deal webhooks. The CRM posts either JSON or a form
// body; both carry an event name and a deal id. Accepted events are queued
// and acknowledged immediately.
func DealEvent(pool Enqueuer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if pool == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "translation pool unavailable"))
			return
		}

		event, dealID, err := parseDealEvent(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		normalized := strings.ToUpper(strings.TrimSpace(event))
		if normalized != eventDealAdd && normalized != eventDealUpdate {
			responses.WriteSuccess(w, types.StatusMessage{Status: "ignored", Message: "event " + event + " is not handled"})
			return
		}
		if dealID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "deal id is required"))
			return
		}

		if err := pool.Enqueue(dealID, normalized); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithDealID(ctx, dealID), "deal event queued")
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted,
			types.StatusMessage{Status: "accepted", Message: "deal queued for translation"})
	}
}

func parseDealEvent(r *http.Request) (event, dealID string, err error) {
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		body, readErr := io.ReadAll(r.Body)
		if readErr != nil {
			return "", "", pkgerrors.Wrap(pkgerrors.CodeValidation, readErr, "reading webhook body")
		}
		var decoded dealEventBody
		if jsonErr := json.Unmarshal(body, &decoded); jsonErr != nil {
			return "", "", pkgerrors.Wrap(pkgerrors.CodeValidation, jsonErr, "invalid webhook body")
		}
		return decoded.Event, decoded.Data.Fields.ID.String(), nil
	}

	if formErr := r.ParseForm(); formErr != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeValidation, formErr, "invalid webhook form")
	}
	return r.PostForm.Get("event"), r.PostForm.Get("data[FIELDS][ID]"), nil
}
