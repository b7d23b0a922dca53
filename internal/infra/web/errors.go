package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"ai-course-studio/internal/domain"
	"ai-course-studio/internal/infra/logging"
)

type errorBody struct {
	Code    string     `json:"code"`
	Message string     `json:"message"`
	Quota   *quotaBody `json:"quota,omitempty"`
}

type quotaBody struct {
	Resource string `json:"resource"`
	Used     int64  `json:"used"`
	Limit    int64  `json:"limit"`
}

// errorMapping is ordered: the first sentinel that matches wins.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrNotAuthenticated, http.StatusUnauthorized, "not_authenticated"},
	{domain.ErrQuotaExceeded, http.StatusPaymentRequired, "quota_exceeded"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
	{domain.ErrSubscriptionNotActive, http.StatusConflict, "subscription_not_active"},
	{domain.ErrSubscriptionInUse, http.StatusConflict, "subscription_in_use"},
	{domain.ErrAlreadyExists, http.StatusConflict, "already_exists"},
	{domain.ErrUnknownPlan, http.StatusUnprocessableEntity, "unknown_plan"},
	{domain.ErrBillingUnavailable, http.StatusBadGateway, "billing_unavailable"},
	{domain.ErrGenerationFailed, http.StatusBadGateway, "generation_failed"},
	{domain.ErrStorageUnavailable, http.StatusServiceUnavailable, "storage_unavailable"},
}

// writeError maps a use-case error to a status and a translated message.
// Unmapped errors are logged and reported as 500 without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			status, code = m.status, m.code
			break
		}
	}

	body := errorBody{Code: code, Message: s.tr.T(code)}
	var qe *domain.QuotaError
	if errors.As(err, &qe) {
		body.Message = s.tr.T("quota_exceeded", qe.Resource, qe.Used, qe.Limit)
		body.Quota = &quotaBody{Resource: qe.Resource, Used: qe.Used, Limit: qe.Limit}
	} else if code == "quota_exceeded" {
		body.Message = s.tr.T("quota_exceeded_generic")
	}

	l := logging.With(r.Context(), s.log)
	if status >= 500 {
		l.Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		l.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, status, map[string]errorBody{"error": body})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrInvalidArgument
	}
	return nil
}
