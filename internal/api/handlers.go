package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/crm-engine/internal/domain"
	"github.com/ignite/crm-engine/internal/ingest"
	"github.com/ignite/crm-engine/internal/pkg/httputil"
	"github.com/ignite/crm-engine/internal/segmentation"
	"github.com/ignite/crm-engine/internal/service/campaign"
)

// CampaignService is the slice of the campaign service the handlers use.
type CampaignService interface {
	Create(ctx context.Context, in campaign.SaveInput) (*campaign.View, error)
	Update(ctx context.Context, id uuid.UUID, in campaign.SaveInput) (*campaign.View, error)
	Get(ctx context.Context, id uuid.UUID) (*campaign.View, error)
	List(ctx context.Context) ([]campaign.View, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error
	CountAudience(ctx context.Context, groups []segmentation.RuleGroup) (int, error)
}

// IngestGateway is the slice of the ingest gateway the handlers use.
type IngestGateway interface {
	EnqueueCustomers(ctx context.Context, items []ingest.CustomerPayload) (int, []ingest.ItemError, error)
	EnqueueOrders(ctx context.Context, items []ingest.OrderPayload) (int, []ingest.ItemError, error)
}

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	campaigns CampaignService
	gateway   IngestGateway
}

func NewHandlers(campaigns CampaignService, gateway IngestGateway) *Handlers {
	return &Handlers{campaigns: campaigns, gateway: gateway}
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var in campaign.SaveInput
	if !httputil.Decode(w, r, &in) {
		return
	}

	v, err := h.campaigns.Create(r.Context(), in)
	if err != nil {
		if errors.Is(err, campaign.ErrInvalidInput) {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, v)
}

func (h *Handlers) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in campaign.SaveInput
	if !httputil.Decode(w, r, &in) {
		return
	}

	v, err := h.campaigns.Update(r.Context(), id, in)
	if err != nil {
		switch {
		case errors.Is(err, campaign.ErrInvalidInput):
			httputil.BadRequest(w, err.Error())
		case errors.Is(err, campaign.ErrNotFound):
			httputil.NotFound(w, "campaign not found")
		default:
			httputil.InternalError(w, err)
		}
		return
	}
	httputil.OK(w, v)
}

func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	v, err := h.campaigns.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, campaign.ErrNotFound) {
			httputil.NotFound(w, "campaign not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, v)
}

func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	views, err := h.campaigns.List(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if views == nil {
		views = []campaign.View{}
	}
	httputil.OK(w, views)
}

func (h *Handlers) UpdateCampaignStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Status domain.CampaignStatus `json:"status"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}

	if err := h.campaigns.UpdateStatus(r.Context(), id, body.Status); err != nil {
		switch {
		case errors.Is(err, campaign.ErrInvalidStatus):
			httputil.BadRequest(w, err.Error())
		case errors.Is(err, campaign.ErrNotFound):
			httputil.NotFound(w, "campaign not found")
		default:
			httputil.InternalError(w, err)
		}
		return
	}
	httputil.OK(w, map[string]string{"status": string(body.Status)})
}

func (h *Handlers) CountAudience(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rules []segmentation.RuleGroup `json:"rules"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}

	n, err := h.campaigns.CountAudience(r.Context(), body.Rules)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]int{"count": n})
}

func (h *Handlers) IngestCustomers(w http.ResponseWriter, r *http.Request) {
	var items []ingest.CustomerPayload
	if !httputil.Decode(w, r, &items) {
		return
	}
	if len(items) == 0 {
		httputil.BadRequest(w, "batch must not be empty")
		return
	}

	accepted, itemErrs, err := h.gateway.EnqueueCustomers(r.Context(), items)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if accepted == 0 {
		httputil.ErrorWithDetails(w, http.StatusBadRequest, "no valid customers in batch", itemErrs)
		return
	}
	httputil.Accepted(w, batchResponse(accepted, itemErrs))
}

func (h *Handlers) IngestOrders(w http.ResponseWriter, r *http.Request) {
	var items []ingest.OrderPayload
	if !httputil.Decode(w, r, &items) {
		return
	}
	if len(items) == 0 {
		httputil.BadRequest(w, "batch must not be empty")
		return
	}

	accepted, itemErrs, err := h.gateway.EnqueueOrders(r.Context(), items)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if accepted == 0 {
		httputil.ErrorWithDetails(w, http.StatusBadRequest, "no valid orders in batch", itemErrs)
		return
	}
	httputil.Accepted(w, batchResponse(accepted, itemErrs))
}

func batchResponse(accepted int, itemErrs []ingest.ItemError) map[string]any {
	if itemErrs == nil {
		itemErrs = []ingest.ItemError{}
	}
	return map[string]any{"accepted": accepted, "errors": itemErrs}
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "invalid campaign id")
		return uuid.Nil, false
	}
	return id, true
}
