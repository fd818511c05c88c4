// Package demo registers the host application models with the admin registry.
package demo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"crudadmin/internal/hostapp"
	"crudadmin/internal/registry"
)

// Names of the demo views.
const (
	AccountView     = "Account"
	TransactionView = "Transaction"
)

// RegisterViews adds the Account and Transaction views backed by db.
func RegisterViews(reg *registry.Registry, db *gorm.DB) error {
	accounts, err := registry.NewModelView(db, registry.ViewConfig[hostapp.Account, hostapp.AccountCreate, hostapp.AccountUpdate]{
		Name:    AccountView,
		Project: hostapp.ProjectAccount,
		Build: func(_ context.Context, in *hostapp.AccountCreate) (*hostapp.Account, error) {
			return &hostapp.Account{
				Name:        in.Name,
				Type:        in.Type,
				Description: in.Description,
				Balance:     in.Balance,
				Currency:    in.Currency,
				IsActive:    true,
			}, nil
		},
		Apply: func(_ context.Context, a *hostapp.Account, in *hostapp.AccountUpdate) error {
			if in.Name != nil {
				a.Name = *in.Name
			}
			if in.Description != nil {
				a.Description = *in.Description
			}
			if in.Currency != nil {
				a.Currency = *in.Currency
			}
			if in.IsActive != nil {
				a.IsActive = *in.IsActive
			}
			return nil
		},
		AllowDelete: true,
	})
	if err != nil {
		return err
	}

	transactions, err := registry.NewModelView(db, registry.ViewConfig[hostapp.Transaction, hostapp.TransactionCreate, hostapp.TransactionUpdate]{
		Name:    TransactionView,
		Project: hostapp.ProjectTransaction,
		Build: func(_ context.Context, in *hostapp.TransactionCreate) (*hostapp.Transaction, error) {
			tx := &hostapp.Transaction{
				AccountID: in.AccountID,
				Amount:    in.Amount,
				Status:    in.Status,
				Notes:     in.Notes,
				Date:      time.Now().UTC(),
			}
			if tx.Status == "" {
				tx.Status = hostapp.TransactionStatusPending
			}
			if in.Date != nil {
				tx.Date = in.Date.UTC()
			}
			return tx, nil
		},
		Apply: func(_ context.Context, tx *hostapp.Transaction, in *hostapp.TransactionUpdate) error {
			if in.Status != nil {
				tx.Status = *in.Status
			}
			if in.Notes != nil {
				tx.Notes = in.Notes
			}
			if in.Amount != nil {
				tx.Amount = *in.Amount
			}
			return nil
		},
		AllowDelete: true,
	})
	if err != nil {
		return err
	}

	if err := reg.Register(accounts); err != nil {
		return err
	}
	return reg.Register(transactions)
}
