package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/pkg/apperr"
	"github.com/buddyengineerz/storefront/pkg/logger"
	"github.com/buddyengineerz/storefront/pkg/validate"
)

// AddressService manages a user's address book. A user with any
// addresses has exactly one default; every default change runs in a
// transaction and idx_addresses_one_default backs it up.
type AddressService struct {
	db *gorm.DB
}

func NewAddressService(db *gorm.DB) *AddressService {
	return &AddressService{db: db}
}

type AddressInput struct {
	Type      string `json:"type" validate:"required,in=home,work,other"`
	Name      string `json:"name" validate:"required,max=255"`
	Phone     string `json:"phone" validate:"required,phone"`
	Line1     string `json:"line1" validate:"required,max=255"`
	Line2     string `json:"line2" validate:"max=255"`
	City      string `json:"city" validate:"required,max=100"`
	State     string `json:"state" validate:"required,max=100"`
	Pincode   string `json:"pincode" validate:"required,pincode"`
	Country   string `json:"country" validate:"max=60"`
	IsDefault bool   `json:"is_default"`
}

func (in AddressInput) apply(a *models.Address) {
	a.Type = in.Type
	a.Name = strings.TrimSpace(in.Name)
	a.Phone = validate.NormalizePhone(in.Phone)
	a.Line1 = strings.TrimSpace(in.Line1)
	a.Line2 = strings.TrimSpace(in.Line2)
	a.City = strings.TrimSpace(in.City)
	a.State = strings.TrimSpace(in.State)
	a.Pincode = in.Pincode
	a.Country = strings.TrimSpace(in.Country)
	if a.Country == "" {
		a.Country = "India"
	}
}

// List returns the default address first, then newest first.
func (s *AddressService) List(ctx context.Context, userID uint) ([]models.Address, error) {
	out := []models.Address{}
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("is_default DESC, created_at DESC, id DESC").Find(&out).Error
	return out, apperr.FromDB(err)
}

func (s *AddressService) Get(ctx context.Context, userID, id uint) (models.Address, error) {
	var a models.Address
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&a, id).Error; err != nil {
		return a, addressNotFound(err)
	}
	return a, nil
}

// Create adds an address. The user's first address becomes the default.
func (s *AddressService) Create(ctx context.Context, userID uint, in AddressInput) (models.Address, error) {
	if errs := validate.Struct(in); validate.HasErrors(errs) {
		return models.Address{}, apperr.Invalid(errs)
	}
	a := models.Address{UserID: userID}
	in.apply(&a)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Address{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
			return err
		}
		if in.IsDefault || n == 0 {
			if err := unsetDefaults(tx, userID, 0); err != nil {
				return err
			}
			a.IsDefault = true
		}
		return tx.Create(&a).Error
	})
	if err != nil {
		return a, apperr.FromDB(err)
	}
	logger.WithCtx(ctx).Info("addresses: created", "user_id", userID, "address_id", a.ID, "default", a.IsDefault)
	return a, nil
}

// Update rewrites an address. Setting is_default moves the default here;
// clearing it on the current default is ignored so the user keeps one.
func (s *AddressService) Update(ctx context.Context, userID, id uint, in AddressInput) (models.Address, error) {
	if errs := validate.Struct(in); validate.HasErrors(errs) {
		return models.Address{}, apperr.Invalid(errs)
	}
	var a models.Address
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if a, err = lockAddress(tx, userID, id); err != nil {
			return err
		}
		in.apply(&a)
		if in.IsDefault && !a.IsDefault {
			if err := unsetDefaults(tx, userID, a.ID); err != nil {
				return err
			}
			a.IsDefault = true
		}
		return tx.Save(&a).Error
	})
	if err != nil {
		return a, apperr.FromDB(err)
	}
	return a, nil
}

// Delete removes an address. When it was the default, the most recently
// updated remaining address takes over.
func (s *AddressService) Delete(ctx context.Context, userID, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := lockAddress(tx, userID, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(&a).Error; err != nil {
			return err
		}
		if !a.IsDefault {
			return nil
		}
		var next models.Address
		err = tx.Where("user_id = ?", userID).Order("updated_at DESC, id DESC").First(&next).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Model(&next).UpdateColumn("is_default", true).Error
	})
	return apperr.FromDB(err)
}

// SetDefault makes addressID the user's only default.
func (s *AddressService) SetDefault(ctx context.Context, userID, addressID uint) (models.Address, error) {
	var a models.Address
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if a, err = lockAddress(tx, userID, addressID); err != nil {
			return err
		}
		if a.IsDefault {
			return nil
		}
		if err := unsetDefaults(tx, userID, a.ID); err != nil {
			return err
		}
		a.IsDefault = true
		return tx.Model(&a).UpdateColumn("is_default", true).Error
	})
	if err != nil {
		return a, apperr.FromDB(err)
	}
	logger.WithCtx(ctx).Info("addresses: default changed", "user_id", userID, "address_id", a.ID)
	return a, nil
}

// unsetDefaults clears is_default on the user's other addresses. It runs
// before the new default is written so the unique index never sees two.
func unsetDefaults(tx *gorm.DB, userID, exceptID uint) error {
	return tx.Model(&models.Address{}).
		Where("user_id = ? AND id <> ? AND is_default = ?", userID, exceptID, true).
		UpdateColumn("is_default", false).Error
}

func lockAddress(tx *gorm.DB, userID, id uint) (models.Address, error) {
	var a models.Address
	if err := forUpdate(tx).Where("user_id = ?", userID).First(&a, id).Error; err != nil {
		return a, addressNotFound(err)
	}
	return a, nil
}

func addressNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFoundf("Address not found")
	}
	return apperr.FromDB(err)
}
