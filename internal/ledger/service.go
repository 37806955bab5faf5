// Package ledger is the persistence-backed transaction service the
// scheduling engine posts into. It owns accounts, categories and ledger
// transactions; scheduling state belongs to the engine.
package ledger

import (
	"errors"
	"fmt"

	"github.com/fintrack/internal/engine"
	"github.com/fintrack/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

func (s *Service) CreateAccount(a *models.Account) error {
	if a.Name == "" {
		return fmt.Errorf("%w: account name is required", engine.ErrValidation)
	}
	return s.db.Create(a).Error
}

func (s *Service) GetAccount(id uint) (*models.Account, error) {
	var a models.Account
	if err := s.db.First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, engine.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *Service) ListAccounts() ([]models.Account, error) {
	var out []models.Account
	if err := s.db.Order("name").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) UpdateAccount(a *models.Account) error {
	return s.db.Save(a).Error
}

func (s *Service) DeleteAccount(id uint) error {
	var count int64
	if err := s.db.Model(&models.Transaction{}).Where("account_id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: account %d has transactions", engine.ErrValidation, id)
	}
	return s.db.Delete(&models.Account{}, id).Error
}

// AccountBalance returns the opening balance plus the sum of cleared
// transactions, signed by transaction type.
func (s *Service) AccountBalance(id uint) (decimal.Decimal, error) {
	account, err := s.GetAccount(id)
	if err != nil {
		return decimal.Zero, err
	}

	var txns []models.Transaction
	if err := s.db.Where("account_id = ? AND status = ?", id, models.TransactionStatusCleared).Find(&txns).Error; err != nil {
		return decimal.Zero, err
	}

	balance := account.OpeningBalance
	for _, txn := range txns {
		switch txn.Type {
		case models.TransactionTypeIncome:
			balance = balance.Add(txn.Amount)
		default:
			// Expenses and outgoing transfers reduce the balance.
			balance = balance.Sub(txn.Amount)
		}
	}

	// Incoming transfers credit this account.
	var incoming []models.Transaction
	if err := s.db.Where("transfer_account_id = ? AND status = ?", id, models.TransactionStatusCleared).Find(&incoming).Error; err != nil {
		return decimal.Zero, err
	}
	for _, txn := range incoming {
		balance = balance.Add(txn.Amount)
	}

	return balance, nil
}

// ---------------------------------------------------------------------------
// Categories
// ---------------------------------------------------------------------------

func (s *Service) CreateCategory(c *models.Category) error {
	if c.Name == "" {
		return fmt.Errorf("%w: category name is required", engine.ErrValidation)
	}
	return s.db.Create(c).Error
}

func (s *Service) ListCategories() ([]models.Category, error) {
	var out []models.Category
	if err := s.db.Order("name").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) DeleteCategory(id uint) error {
	return s.db.Delete(&models.Category{}, id).Error
}

// ---------------------------------------------------------------------------
// Transactions
// ---------------------------------------------------------------------------

// CreateTransaction validates references and persists a ledger entry.
func (s *Service) CreateTransaction(txn *models.Transaction) error {
	if err := s.validateReferences(txn); err != nil {
		return err
	}
	if txn.Status == "" {
		txn.Status = models.TransactionStatusCleared
	}
	return s.db.Create(txn).Error
}

func (s *Service) ListTransactions(accountID uint, limit int) ([]models.Transaction, error) {
	query := s.db.Order("date desc")
	if accountID != 0 {
		query = query.Where("account_id = ?", accountID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var out []models.Transaction
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) validateReferences(txn *models.Transaction) error {
	if ok, err := s.AccountExists(txn.AccountID); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: account %d does not exist", engine.ErrValidation, txn.AccountID)
	}
	if txn.CategoryID != 0 {
		if ok, err := s.CategoryExists(txn.CategoryID); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("%w: category %d does not exist", engine.ErrValidation, txn.CategoryID)
		}
	}
	if txn.TransferAccountID != nil {
		if ok, err := s.AccountExists(*txn.TransferAccountID); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("%w: transfer account %d does not exist", engine.ErrValidation, *txn.TransferAccountID)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// engine.Ledger
// ---------------------------------------------------------------------------

func (s *Service) AccountExists(id uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.Account{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (s *Service) CategoryExists(id uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.Category{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}
