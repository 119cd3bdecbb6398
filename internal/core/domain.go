package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Gain    TxType = "gain"
	Expense TxType = "expense"
)

// MaxLabelLength bounds category and company labels.
const MaxLabelLength = 100

// DefaultGoal is the savings target of a user who never set one (R$ 300,00).
var DefaultGoal = Money{Cents: 30000}

type (
	// TxType tells whether a transaction is income or an outgoing cost.
	TxType string

	Transaction struct {
		ID        string    `json:"id"`
		UserID    string    `json:"user_id"`
		Value     Money     `json:"value"`
		Type      TxType    `json:"type"`
		Category  string    `json:"category,omitempty"` // Expense label (fuel, maintenance...)
		Company   string    `json:"company,omitempty"`  // Gain source (delivery platform)
		Date      time.Time `json:"date"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	// TransactionPatch carries the editable fields of a transaction.
	// Type and Date cannot be changed after creation.
	TransactionPatch struct {
		Value    *Money  `json:"value,omitempty"`
		Category *string `json:"category,omitempty"`
		Company  *string `json:"company,omitempty"`
	}

	User struct {
		ID          string    `json:"id"`
		Email       string    `json:"email"`
		Name        string    `json:"name"`
		Phone       string    `json:"phone"`
		GoalAmount  Money     `json:"goal_amount"`
		IsSuspended bool      `json:"is_suspended"`
		CreatedAt   time.Time `json:"created_at"`
		UpdatedAt   time.Time `json:"updated_at"`
	}

	// Profile is the user-editable part of a User.
	Profile struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidType    = errors.New("invalid transaction type")
	ErrMissingUser    = errors.New("missing user id")
	ErrZeroDate       = errors.New("date cannot be zero")
	ErrLabelTooLong   = fmt.Errorf("label too long (max %d characters)", MaxLabelLength)
	ErrEmptyPatch     = errors.New("nothing to update")
	ErrInvalidGoal    = errors.New("invalid goal amount")
	ErrInvalidProfile = errors.New("invalid profile")
)

// ParseTxType accepts "gain" and "expense", case-insensitively.
func ParseTxType(s string) (TxType, error) {
	t := TxType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}

func (t TxType) Valid() bool {
	return t == Gain || t == Expense
}

func (t TxType) String() string {
	return string(t)
}

// Label returns the free-text label that is meaningful for the transaction
// type: the company for gains, the category for expenses.
func (tx Transaction) Label() string {
	if tx.Type == Gain {
		return tx.Company
	}
	return tx.Category
}

// Signed returns the value in cents, negative for expenses.
func (tx Transaction) Signed() int64 {
	if tx.Type == Expense {
		return -tx.Value.Cents
	}
	return tx.Value.Cents
}

func (tx Transaction) Validate() error {
	if strings.TrimSpace(tx.UserID) == "" {
		return ErrMissingUser
	}
	if !tx.Type.Valid() {
		return ErrInvalidType
	}
	if err := tx.Value.Validate(); err != nil {
		return err
	}
	if tx.Date.IsZero() {
		return ErrZeroDate
	}
	if err := validateLabel(tx.Category); err != nil {
		return err
	}
	return validateLabel(tx.Company)
}

func (p TransactionPatch) IsEmpty() bool {
	return p.Value == nil && p.Category == nil && p.Company == nil
}

func (p TransactionPatch) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	if p.Value != nil {
		if err := p.Value.Validate(); err != nil {
			return err
		}
	}
	if p.Category != nil {
		if err := validateLabel(*p.Category); err != nil {
			return err
		}
	}
	if p.Company != nil {
		if err := validateLabel(*p.Company); err != nil {
			return err
		}
	}
	return nil
}

// Apply returns tx with the patch fields applied. tx is not modified.
func (p TransactionPatch) Apply(tx Transaction) Transaction {
	if p.Value != nil {
		tx.Value = *p.Value
	}
	if p.Category != nil {
		tx.Category = strings.TrimSpace(*p.Category)
	}
	if p.Company != nil {
		tx.Company = strings.TrimSpace(*p.Company)
	}
	return tx
}

// ValidateGoal checks a savings target. Zero is accepted and disables the
// progress percentage.
func ValidateGoal(m Money) error {
	if m.Cents < 0 || m.Cents > MaxAmountCents {
		return ErrInvalidGoal
	}
	return nil
}

func (p Profile) Validate() error {
	if len(p.Name) > 120 {
		return fmt.Errorf("%w: name too long (max 120 characters)", ErrInvalidProfile)
	}
	if len(p.Phone) > 30 {
		return fmt.Errorf("%w: phone too long (max 30 characters)", ErrInvalidProfile)
	}
	return nil
}

func validateLabel(s string) error {
	if len(s) > MaxLabelLength {
		return ErrLabelTooLong
	}
	return nil
}
