// Package hostapp holds the demo host application models that the admin
// interface is mounted over.
package hostapp

import (
	"time"

	"gorm.io/gorm"
)

// AccountType represents the type of account
type AccountType string

const (
	AccountTypeCash       AccountType = "cash"
	AccountTypeInvestment AccountType = "investment"
	AccountTypeDebt       AccountType = "debt"
)

// Account represents a financial account in the host application
type Account struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Name        string      `gorm:"not null" json:"name"`
	Type        AccountType `gorm:"not null" json:"type"`
	Description string      `json:"description"`
	Balance     int64       `gorm:"type:bigint;not null;default:0" json:"balance"`
	Currency    string      `gorm:"not null;default:'USD'" json:"currency"`
	IsActive    bool        `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// BeforeCreate fills in the default currency.
func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.Currency == "" {
		a.Currency = "USD"
	}
	return nil
}

// TransactionStatus is the settlement state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusPaid    TransactionStatus = "paid"
	TransactionStatusVoid    TransactionStatus = "void"
)

// Transaction represents a money movement on an account
type Transaction struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	AccountID uint              `gorm:"not null;index" json:"account_id"`
	Amount    int64             `gorm:"type:bigint;not null" json:"amount"`
	Status    TransactionStatus `gorm:"size:16;not null;default:'pending'" json:"status"`
	Notes     *string           `json:"notes"`
	Date      time.Time         `gorm:"not null" json:"date"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// AccountCreate is the create schema for accounts.
type AccountCreate struct {
	Name        string      `json:"name" form:"name" binding:"required,min=1,max=100"`
	Type        AccountType `json:"type" form:"type" binding:"required,oneof=cash investment debt"`
	Description string      `json:"description" form:"description" binding:"max=500"`
	Balance     int64       `json:"balance" form:"balance"`
	Currency    string      `json:"currency" form:"currency" binding:"omitempty,len=3"`
}

// AccountUpdate is the update schema for accounts. Nil fields are left unchanged.
type AccountUpdate struct {
	Name        *string `json:"name" form:"name" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description" form:"description" binding:"omitempty,max=500"`
	Currency    *string `json:"currency" form:"currency" binding:"omitempty,len=3"`
	IsActive    *bool   `json:"is_active" form:"is_active"`
}

// TransactionCreate is the create schema for transactions.
type TransactionCreate struct {
	AccountID uint              `json:"account_id" form:"account_id" binding:"required"`
	Amount    int64             `json:"amount" form:"amount" binding:"required"`
	Status    TransactionStatus `json:"status" form:"status" binding:"omitempty,oneof=pending paid void"`
	Notes     *string           `json:"notes" form:"notes" binding:"omitempty,max=500"`
	Date      *time.Time        `json:"date" form:"date"`
}

// TransactionUpdate is the update schema for transactions.
type TransactionUpdate struct {
	Status *TransactionStatus `json:"status" form:"status" binding:"omitempty,oneof=pending paid void"`
	Notes  *string            `json:"notes" form:"notes" binding:"omitempty,max=500"`
	Amount *int64             `json:"amount" form:"amount"`
}

// ProjectAccount returns the admin view of an account.
func ProjectAccount(a *Account) map[string]any {
	return map[string]any{
		"id":          a.ID,
		"name":        a.Name,
		"type":        a.Type,
		"description": a.Description,
		"balance":     a.Balance,
		"currency":    a.Currency,
		"is_active":   a.IsActive,
		"created_at":  a.CreatedAt,
		"updated_at":  a.UpdatedAt,
	}
}

// ProjectTransaction returns the admin view of a transaction.
func ProjectTransaction(t *Transaction) map[string]any {
	return map[string]any{
		"id":         t.ID,
		"account_id": t.AccountID,
		"amount":     t.Amount,
		"status":     t.Status,
		"notes":      t.Notes,
		"date":       t.Date,
		"created_at": t.CreatedAt,
		"updated_at": t.UpdatedAt,
	}
}
