package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/usecase"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json field names so errors match the request body.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the struct tags of a request and returns the first failure as a
// domain validation error.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.NewValidationError("body", err.Error())
	}
	fe := fieldErrs[0]
	return domain.NewValidationError(fieldPath(fe), validationMessage(fe))
}

// fieldPath drops the struct name from the namespace: CreateEntryRequest.lines[0].debit -> lines[0].debit.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "oneof":
		return "must be one of " + fe.Param()
	case "numeric":
		return "must be a decimal number"
	case "datetime":
		return "must be a YYYY-MM-DD date"
	case "min":
		return "must have at least " + fe.Param() + " items"
	default:
		return "failed the " + fe.Tag() + " check"
	}
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, domain.NewValidationError(field, fmt.Sprintf("%q is not a decimal number", s))
	}
	return d, nil
}

func parseOptionalDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := domain.ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateAccountRequest represents a request to add an account to the chart.
type CreateAccountRequest struct {
	Code           string `json:"code" validate:"required,max=32"`
	Name           string `json:"name" validate:"required,max=200"`
	Type           string `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY INCOME EXPENSE"`
	ParentID       string `json:"parentId,omitempty"`
	IsHeader       bool   `json:"isHeader"`
	OpeningBalance string `json:"openingBalance,omitempty" validate:"omitempty,numeric"`
	Currency       string `json:"currency" validate:"required,len=3"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateAccountRequest) ToUseCaseInput(tenantID string) (usecase.CreateAccountInput, error) {
	if err := Validate(r); err != nil {
		return usecase.CreateAccountInput{}, err
	}
	opening, err := parseAmount("openingBalance", r.OpeningBalance)
	if err != nil {
		return usecase.CreateAccountInput{}, err
	}
	return usecase.CreateAccountInput{
		TenantID:       tenantID,
		Code:           r.Code,
		Name:           r.Name,
		Type:           domain.AccountType(r.Type),
		ParentID:       r.ParentID,
		IsHeader:       r.IsHeader,
		OpeningBalance: opening,
		Currency:       r.Currency,
	}, nil
}

// UpdateAccountRequest is a partial account update. Absent fields are left unchanged.
type UpdateAccountRequest struct {
	Code           *string `json:"code,omitempty" validate:"omitempty,max=32"`
	Name           *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Type           *string `json:"type,omitempty" validate:"omitempty,oneof=ASSET LIABILITY EQUITY INCOME EXPENSE"`
	ParentID       *string `json:"parentId,omitempty"`
	IsHeader       *bool   `json:"isHeader,omitempty"`
	OpeningBalance *string `json:"openingBalance,omitempty" validate:"omitempty,numeric"`
	Currency       *string `json:"currency,omitempty" validate:"omitempty,len=3"`
}

// ToUseCaseInput converts to use case input.
func (r *UpdateAccountRequest) ToUseCaseInput(tenantID, id string) (usecase.UpdateAccountInput, error) {
	if err := Validate(r); err != nil {
		return usecase.UpdateAccountInput{}, err
	}
	input := usecase.UpdateAccountInput{
		TenantID: tenantID,
		ID:       id,
		Code:     r.Code,
		Name:     r.Name,
		ParentID: r.ParentID,
		IsHeader: r.IsHeader,
		Currency: r.Currency,
	}
	if r.Type != nil {
		t := domain.AccountType(*r.Type)
		input.Type = &t
	}
	if r.OpeningBalance != nil {
		opening, err := parseAmount("openingBalance", *r.OpeningBalance)
		if err != nil {
			return usecase.UpdateAccountInput{}, err
		}
		input.OpeningBalance = &opening
	}
	return input, nil
}

// LineRequest is one journal line. Exactly one of debit and credit is expected.
type LineRequest struct {
	AccountID   string `json:"accountId" validate:"required"`
	Description string `json:"description,omitempty" validate:"max=500"`
	Debit       string `json:"debit,omitempty" validate:"omitempty,numeric"`
	Credit      string `json:"credit,omitempty" validate:"omitempty,numeric"`
}

// EntryRequest represents a request to draft or rewrite a journal entry.
type EntryRequest struct {
	Date        string        `json:"date" validate:"required,datetime=2006-01-02"`
	Reference   string        `json:"reference,omitempty" validate:"max=64"`
	Description string        `json:"description,omitempty" validate:"max=500"`
	Currency    string        `json:"currency,omitempty" validate:"omitempty,len=3"`
	Lines       []LineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (r *EntryRequest) parse() (time.Time, []usecase.LineInput, error) {
	if err := Validate(r); err != nil {
		return time.Time{}, nil, err
	}
	date, err := domain.ParseDate(r.Date)
	if err != nil {
		return time.Time{}, nil, err
	}
	lines := make([]usecase.LineInput, len(r.Lines))
	for i, l := range r.Lines {
		debit, err := parseAmount(fmt.Sprintf("lines[%d].debit", i), l.Debit)
		if err != nil {
			return time.Time{}, nil, err
		}
		credit, err := parseAmount(fmt.Sprintf("lines[%d].credit", i), l.Credit)
		if err != nil {
			return time.Time{}, nil, err
		}
		lines[i] = usecase.LineInput{
			AccountID:   l.AccountID,
			Description: l.Description,
			Debit:       debit,
			Credit:      credit,
		}
	}
	return date, lines, nil
}

// ToCreateInput converts to use case input for a new draft.
func (r *EntryRequest) ToCreateInput(tenantID string) (usecase.CreateEntryInput, error) {
	date, lines, err := r.parse()
	if err != nil {
		return usecase.CreateEntryInput{}, err
	}
	return usecase.CreateEntryInput{
		TenantID:    tenantID,
		Date:        date,
		Reference:   r.Reference,
		Description: r.Description,
		Currency:    r.Currency,
		Lines:       lines,
	}, nil
}

// ToUpdateInput converts to use case input replacing draft id.
func (r *EntryRequest) ToUpdateInput(tenantID, id string) (usecase.UpdateDraftInput, error) {
	date, lines, err := r.parse()
	if err != nil {
		return usecase.UpdateDraftInput{}, err
	}
	return usecase.UpdateDraftInput{
		TenantID:    tenantID,
		ID:          id,
		Date:        date,
		Reference:   r.Reference,
		Description: r.Description,
		Currency:    r.Currency,
		Lines:       lines,
	}, nil
}

// ReverseEntryRequest represents a request to reverse a posted entry.
type ReverseEntryRequest struct {
	Reason string  `json:"reason" validate:"required,max=500"`
	Date   *string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// ToUseCaseInput converts to use case input.
func (r *ReverseEntryRequest) ToUseCaseInput(tenantID, id string) (usecase.ReverseEntryInput, error) {
	if err := Validate(r); err != nil {
		return usecase.ReverseEntryInput{}, err
	}
	date, err := parseOptionalDate(r.Date)
	if err != nil {
		return usecase.ReverseEntryInput{}, err
	}
	return usecase.ReverseEntryInput{
		TenantID: tenantID,
		ID:       id,
		Reason:   r.Reason,
		Date:     date,
	}, nil
}
