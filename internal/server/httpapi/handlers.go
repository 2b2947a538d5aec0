package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/piggysync/internal/common"
	"github.com/dmitrijs2005/piggysync/internal/export"
	"github.com/dmitrijs2005/piggysync/internal/models"
	"github.com/dmitrijs2005/piggysync/internal/services/piggybank"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type recordRequest struct {
	Entries []models.TransactionEntry `json:"entries"`
}

type claimRequest struct {
	PairingCode string `json:"pairing_code"`
}

type joinRequest struct {
	AccessCode string `json:"access_code"`
}

type syncResponse struct {
	Balance   decimal.Decimal `json:"balance"`
	Persisted bool            `json:"persisted"`
}

type totalResponse struct {
	models.Total
	Stale bool `json:"stale"`
}

// user is only called behind authenticate.
func user(r *http.Request) string {
	id, _ := UserID(r.Context())
	return id
}

func (s *Server) listPiggyBanks(w http.ResponseWriter, r *http.Request) {
	mode := models.LoadFast
	if sync, _ := strconv.ParseBool(r.URL.Query().Get("sync")); sync {
		mode = models.LoadSync
	}
	c, err := s.svc.List(r.Context(), user(r), mode)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) total(w http.ResponseWriter, r *http.Request) {
	t, stale, err := s.svc.Total(r.Context(), user(r))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, totalResponse{Total: t, Stale: stale})
}

func (s *Server) getPiggyBank(w http.ResponseWriter, r *http.Request) {
	v, err := s.svc.Get(r.Context(), user(r), chi.URLParam(r, "id"), models.LoadSync)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) sync(w http.ResponseWriter, r *http.Request) {
	balance, err := s.svc.Sync(r.Context(), user(r), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, common.ErrPersistFailed):
		s.logger.Warn(r.Context(), "balance shown but not persisted", "piggy_bank_id", chi.URLParam(r, "id"), "error", err)
		writeJSON(w, http.StatusAccepted, syncResponse{Balance: balance, Persisted: false})
	case err != nil:
		writeError(w, r, s.logger, err)
	default:
		writeJSON(w, http.StatusOK, syncResponse{Balance: balance, Persisted: true})
	}
}

func (s *Server) record(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	v, err := s.svc.Record(r.Context(), user(r), chi.URLParam(r, "id"), req.Entries)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) updateDetails(w http.ResponseWriter, r *http.Request) {
	var d piggybank.Details
	if err := decode(w, r, &d); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	v, err := s.svc.UpdateDetails(r.Context(), user(r), chi.URLParam(r, "id"), d)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Remove(r.Context(), user(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) claim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	v, err := s.svc.Claim(r.Context(), user(r), req.PairingCode)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) issueGuestCode(w http.ResponseWriter, r *http.Request) {
	code, err := s.svc.IssueGuestCode(r.Context(), user(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"access_code": code})
}

// guestCodePNG renders ?code= as a QR image for the owner to show.
func (s *Server) guestCodePNG(w http.ResponseWriter, r *http.Request) {
	_, role, err := s.svc.ResolveRole(r.Context(), user(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if !role.CanManage() {
		writeError(w, r, s.logger, common.ErrorForbidden)
		return
	}
	png, err := export.CodePNG(r.URL.Query().Get("code"))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func (s *Server) removeAllGuests(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.RemoveAllGuests(r.Context(), user(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": n})
}

func (s *Server) joinAsGuest(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	v, err := s.svc.JoinAsGuest(r.Context(), user(r), req.AccessCode)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) addGoal(w http.ResponseWriter, r *http.Request) {
	var in models.GoalInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	g, err := s.svc.AddGoal(r.Context(), user(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) updateGoal(w http.ResponseWriter, r *http.Request) {
	var in models.GoalInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	g, err := s.svc.UpdateGoal(r.Context(), user(r), chi.URLParam(r, "id"), chi.URLParam(r, "goalID"), in)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) deleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteGoal(r.Context(), user(r), chi.URLParam(r, "id"), chi.URLParam(r, "goalID")); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) statement(w http.ResponseWriter, r *http.Request) {
	v, err := s.svc.Get(r.Context(), user(r), chi.URLParam(r, "id"), models.LoadSync)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Statement(&buf, v, s.now()); err != nil {
		writeError(w, r, s.logger, fmt.Errorf("pdf build failed: %w", err))
		return
	}

	filename := fmt.Sprintf("piggybank-%s-%s.pdf", v.ID, s.now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(buf.Bytes())
}
