package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/gledger/internal/adapter/http/dto"
	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/usecase"
)

// JournalService defines the behavior needed by JournalHandler.
type JournalService interface {
	CreateDraft(ctx context.Context, input usecase.CreateEntryInput) (*domain.JournalEntry, error)
	UpdateDraft(ctx context.Context, input usecase.UpdateDraftInput) (*domain.JournalEntry, error)
	Post(ctx context.Context, tenantID, id string) (*domain.JournalEntry, error)
	Reverse(ctx context.Context, input usecase.ReverseEntryInput) (*domain.JournalEntry, error)
	GetEntry(ctx context.Context, tenantID, id string) (*domain.JournalEntry, error)
	ListEntries(ctx context.Context, input usecase.ListEntriesInput) ([]*domain.JournalEntry, error)
}

// JournalHandler handles journal entry requests.
type JournalHandler struct {
	journalUC JournalService
}

// NewJournalHandler creates a new JournalHandler.
func NewJournalHandler(journalUC JournalService) *JournalHandler {
	return &JournalHandler{journalUC: journalUC}
}

// Create drafts a journal entry. Every offending line is reported at once.
func (h *JournalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.EntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	input, err := req.ToCreateInput(tenantOf(r))
	if err != nil {
		writeDomainError(w, r, "invalid journal entry", err)
		return
	}

	entry, err := h.journalUC.CreateDraft(r.Context(), input)
	if err != nil {
		writeDomainError(w, r, "failed to create journal entry", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntryFromDomain(entry))
}

// Update replaces the content of a draft.
func (h *JournalHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.EntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	input, err := req.ToUpdateInput(tenantOf(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "invalid journal entry", err)
		return
	}

	entry, err := h.journalUC.UpdateDraft(r.Context(), input)
	if err != nil {
		writeDomainError(w, r, "failed to update journal entry", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryFromDomain(entry))
}

// Post posts a draft. An unbalanced draft answers 409 with the delta.
func (h *JournalHandler) Post(w http.ResponseWriter, r *http.Request) {
	entry, err := h.journalUC.Post(r.Context(), tenantOf(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "failed to post journal entry", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryFromDomain(entry))
}

// Reverse posts the compensating entry of a posted entry.
func (h *JournalHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	var req dto.ReverseEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	input, err := req.ToUseCaseInput(tenantOf(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "invalid reversal", err)
		return
	}

	entry, err := h.journalUC.Reverse(r.Context(), input)
	if err != nil {
		writeDomainError(w, r, "failed to reverse journal entry", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntryFromDomain(entry))
}

// Get retrieves a journal entry by ID.
func (h *JournalHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.journalUC.GetEntry(r.Context(), tenantOf(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "failed to get journal entry", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryFromDomain(entry))
}

// List lists journal entries by status, date range and account.
func (h *JournalHandler) List(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		writeDomainError(w, r, "invalid query", err)
		return
	}

	q := r.URL.Query()
	entries, err := h.journalUC.ListEntries(r.Context(), usecase.ListEntriesInput{
		TenantID:  tenantOf(r),
		Status:    domain.EntryStatus(q.Get("status")),
		From:      from,
		To:        to,
		AccountID: q.Get("accountId"),
		Limit:     parseIntQuery(r, "limit", 100),
		Offset:    parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, r, "failed to list journal entries", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
}
