package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/gledger/internal/adapter/http/dto"
	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/usecase"
)

type journalServiceStub struct {
	createFn  func(ctx context.Context, input usecase.CreateEntryInput) (*domain.JournalEntry, error)
	updateFn  func(ctx context.Context, input usecase.UpdateDraftInput) (*domain.JournalEntry, error)
	postFn    func(ctx context.Context, tenantID, id string) (*domain.JournalEntry, error)
	reverseFn func(ctx context.Context, input usecase.ReverseEntryInput) (*domain.JournalEntry, error)
	getFn     func(ctx context.Context, tenantID, id string) (*domain.JournalEntry, error)
	listFn    func(ctx context.Context, input usecase.ListEntriesInput) ([]*domain.JournalEntry, error)
}

func (s *journalServiceStub) CreateDraft(ctx context.Context, input usecase.CreateEntryInput) (*domain.JournalEntry, error) {
	return s.createFn(ctx, input)
}

func (s *journalServiceStub) UpdateDraft(ctx context.Context, input usecase.UpdateDraftInput) (*domain.JournalEntry, error) {
	return s.updateFn(ctx, input)
}

func (s *journalServiceStub) Post(ctx context.Context, tenantID, id string) (*domain.JournalEntry, error) {
	return s.postFn(ctx, tenantID, id)
}

func (s *journalServiceStub) Reverse(ctx context.Context, input usecase.ReverseEntryInput) (*domain.JournalEntry, error) {
	return s.reverseFn(ctx, input)
}

func (s *journalServiceStub) GetEntry(ctx context.Context, tenantID, id string) (*domain.JournalEntry, error) {
	return s.getFn(ctx, tenantID, id)
}

func (s *journalServiceStub) ListEntries(ctx context.Context, input usecase.ListEntriesInput) ([]*domain.JournalEntry, error) {
	return s.listFn(ctx, input)
}

func draftEntry(id string) *domain.JournalEntry {
	return &domain.JournalEntry{
		ID:       id,
		EntryNo:  "JE-000001",
		Date:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Currency: "USD",
		Status:   domain.EntryStatusDraft,
		Lines: []domain.JournalLine{
			{ID: "l1", LineNo: 1, AccountID: "cash", Debit: decimal.NewFromInt(100), Credit: decimal.Zero},
			{ID: "l2", LineNo: 2, AccountID: "sales", Debit: decimal.Zero, Credit: decimal.NewFromInt(100)},
		},
	}
}

const saleBody = `{"date":"2024-03-01","description":"Sale","lines":[{"accountId":"cash","debit":"100"},{"accountId":"sales","credit":"100"}]}`

func TestJournalHandler_Create(t *testing.T) {
	var captured usecase.CreateEntryInput
	handler := NewJournalHandler(&journalServiceStub{
		createFn: func(ctx context.Context, input usecase.CreateEntryInput) (*domain.JournalEntry, error) {
			captured = input
			return draftEntry("je-1"), nil
		},
	})

	req := withTenant(httptest.NewRequest(http.MethodPost, "/journal-entries", bytes.NewBufferString(saleBody)), "acme")
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.TenantID != "acme" || len(captured.Lines) != 2 || !captured.Lines[1].Credit.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected input %+v", captured)
	}

	var resp dto.EntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "DRAFT" || resp.Date != "2024-03-01" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestJournalHandler_Create_OffendingLines(t *testing.T) {
	handler := NewJournalHandler(&journalServiceStub{
		createFn: func(ctx context.Context, input usecase.CreateEntryInput) (*domain.JournalEntry, error) {
			return nil, &domain.EntryValidationError{Lines: []*domain.LineError{
				{Index: 0, AccountID: "cash", Err: domain.ErrInactiveAccount},
				{Index: 1, AccountID: "sales", Err: domain.ErrUnknownAccount},
			}}
		},
	})

	req := withTenant(httptest.NewRequest(http.MethodPost, "/journal-entries", bytes.NewBufferString(saleBody)), "acme")
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp dto.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Details) != 2 {
		t.Fatalf("expected both lines reported, got %+v", resp.Details)
	}
}

func TestJournalHandler_Post(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "posted", wantStatus: http.StatusOK},
		{
			name: "unbalanced",
			err: &domain.UnbalancedEntryError{
				TotalDebit: decimal.RequireFromString("100"), TotalCredit: decimal.RequireFromString("99.99"), Delta: decimal.RequireFromString("0.01"),
			},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "reversed entry",
			err:        &domain.InvalidStateError{EntryID: "je-1", Status: domain.EntryStatusReversed, Action: "post"},
			wantStatus: http.StatusConflict,
		},
		{name: "other tenant", err: &domain.NotFoundError{Resource: "journal entry", ID: "je-1"}, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewJournalHandler(&journalServiceStub{
				postFn: func(ctx context.Context, tenantID, id string) (*domain.JournalEntry, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					e := draftEntry(id)
					e.Status = domain.EntryStatusPosted
					return e, nil
				},
			})

			req := setChiURLParam(withTenant(httptest.NewRequest(http.MethodPost, "/journal-entries/je-1/post", nil), "acme"), "id", "je-1")
			rec := httptest.NewRecorder()
			handler.Post(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestJournalHandler_Reverse(t *testing.T) {
	var captured usecase.ReverseEntryInput
	handler := NewJournalHandler(&journalServiceStub{
		reverseFn: func(ctx context.Context, input usecase.ReverseEntryInput) (*domain.JournalEntry, error) {
			captured = input
			e := draftEntry("je-2")
			e.Status = domain.EntryStatusPosted
			e.ReversalOf = input.ID
			return e, nil
		},
	})

	req := setChiURLParam(withTenant(httptest.NewRequest(http.MethodPost, "/journal-entries/je-1/reverse", bytes.NewBufferString(`{"reason":"keyed twice"}`)), "acme"), "id", "je-1")
	rec := httptest.NewRecorder()
	handler.Reverse(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.ID != "je-1" || captured.Reason != "keyed twice" || captured.Date != nil {
		t.Fatalf("unexpected input %+v", captured)
	}

	var resp dto.EntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ReversalOf != "je-1" {
		t.Fatalf("expected compensating entry, got %+v", resp)
	}

	req = setChiURLParam(withTenant(httptest.NewRequest(http.MethodPost, "/journal-entries/je-1/reverse", bytes.NewBufferString(`{}`)), "acme"), "id", "je-1")
	rec = httptest.NewRecorder()
	handler.Reverse(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a reason, got %d", rec.Code)
	}
}

func TestJournalHandler_Update(t *testing.T) {
	handler := NewJournalHandler(&journalServiceStub{
		updateFn: func(ctx context.Context, input usecase.UpdateDraftInput) (*domain.JournalEntry, error) {
			return nil, &domain.InvalidStateError{EntryID: input.ID, Status: domain.EntryStatusPosted, Action: "update"}
		},
	})

	req := setChiURLParam(withTenant(httptest.NewRequest(http.MethodPut, "/journal-entries/je-1", bytes.NewBufferString(saleBody)), "acme"), "id", "je-1")
	rec := httptest.NewRecorder()
	handler.Update(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a posted entry, got %d", rec.Code)
	}
}

func TestJournalHandler_List(t *testing.T) {
	handler := NewJournalHandler(&journalServiceStub{
		listFn: func(ctx context.Context, input usecase.ListEntriesInput) ([]*domain.JournalEntry, error) {
			if input.Status != domain.EntryStatusPosted || input.AccountID != "cash" || input.From == nil || input.To == nil {
				t.Fatalf("unexpected filter %+v", input)
			}
			return []*domain.JournalEntry{draftEntry("je-1")}, nil
		},
	})

	req := withTenant(httptest.NewRequest(http.MethodGet, "/journal-entries?status=POSTED&accountId=cash&from=2024-03-01&to=2024-03-31", nil), "acme")
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	var resp []dto.EntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if rec.Code != http.StatusOK || len(resp) != 1 {
		t.Fatalf("unexpected response %d %+v", rec.Code, resp)
	}
}
