package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/app/repositories"
	"github.com/buddyengineerz/storefront/pkg/apperr"
	"github.com/buddyengineerz/storefront/pkg/auth"
	"github.com/buddyengineerz/storefront/pkg/logger"
	"github.com/buddyengineerz/storefront/pkg/validate"
)

// AuthService signs users up and in, and manages admin grants.
type AuthService struct {
	db    *gorm.DB
	users *repositories.UserRepository
}

func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{db: db, users: repositories.NewUserRepository(db)}
}

type SignUpInput struct {
	FullName string `json:"full_name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Phone    string `json:"phone" validate:"nullable,phone"`
	Password string `json:"password" validate:"required,password,max=72"`
}

type SignInInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ProfileInput struct {
	FullName  string `json:"full_name" validate:"required,max=255"`
	Phone     string `json:"phone" validate:"nullable,phone"`
	AvatarURL string `json:"avatar_url" validate:"nullable,url,max=512"`
}

// Session is returned by SignUp and SignIn.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
	Role      string      `json:"role"`
}

// Account is the signed-in user with their effective role.
type Account struct {
	models.User
	Role    string `json:"role"`
	IsAdmin bool   `json:"is_admin"`
}

func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (Session, error) {
	if errs := validate.Struct(in); validate.HasErrors(errs) {
		return Session{}, apperr.Invalid(errs)
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return Session{}, emailTaken()
	} else if !apperr.Is(err, apperr.NotFound) {
		return Session{}, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.Internal, "Could not create account", err)
	}
	u := models.User{Email: email, Password: hash}
	profile := models.UserProfile{FullName: strings.TrimSpace(in.FullName)}
	if in.Phone != "" {
		profile.Phone = validate.NormalizePhone(in.Phone)
	}
	if err := s.users.CreateWithProfile(ctx, &u, &profile); err != nil {
		if apperr.Is(err, apperr.Conflict) {
			return Session{}, emailTaken()
		}
		return Session{}, err
	}
	logger.WithCtx(ctx).Info("auth: user signed up", "user_id", u.ID)
	return s.issue(u, auth.RoleCustomer)
}

func emailTaken() error {
	return &apperr.Error{
		Kind:    apperr.Conflict,
		Message: "An account with this email already exists",
		Fields:  map[string]string{"email": "The email has already been taken."},
	}
}

func (s *AuthService) SignIn(ctx context.Context, in SignInInput) (Session, error) {
	if errs := validate.Struct(in); validate.HasErrors(errs) {
		return Session{}, apperr.Invalid(errs)
	}
	u, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return Session{}, invalidCredentials()
		}
		return Session{}, err
	}
	if !auth.CheckPassword(u.Password, in.Password) {
		logger.WithCtx(ctx).Warn("auth: failed sign in", "user_id", u.ID)
		return Session{}, invalidCredentials()
	}
	role, err := s.Role(ctx, u.ID)
	if err != nil {
		return Session{}, err
	}
	return s.issue(u, role)
}

func invalidCredentials() error {
	return apperr.New(apperr.Unauthorized, "Invalid email or password")
}

func (s *AuthService) issue(u models.User, role string) (Session, error) {
	token, expires, err := auth.GenerateToken(u.ID, u.Email, role)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.Internal, "Could not sign token", err)
	}
	return Session{Token: token, ExpiresAt: expires, User: u, Role: role}, nil
}

// Role is the user's admin role, or customer.
func (s *AuthService) Role(ctx context.Context, userID uint) (string, error) {
	role, err := s.AdminRole(ctx, userID)
	if err != nil {
		return "", err
	}
	if role == "" {
		return auth.RoleCustomer, nil
	}
	return role, nil
}

// AdminRole returns "" for non-admins. It satisfies rbac.AdminLookup.
func (s *AuthService) AdminRole(ctx context.Context, userID uint) (string, error) {
	return s.users.AdminRole(ctx, userID)
}

func (s *AuthService) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	role, err := s.AdminRole(ctx, userID)
	return role != "", err
}

func (s *AuthService) Me(ctx context.Context, userID uint) (Account, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return Account{}, err
	}
	role, err := s.Role(ctx, userID)
	if err != nil {
		return Account{}, err
	}
	return Account{User: u, Role: role, IsAdmin: role != auth.RoleCustomer}, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID uint, in ProfileInput) (Account, error) {
	if errs := validate.Struct(in); validate.HasErrors(errs) {
		return Account{}, apperr.Invalid(errs)
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return Account{}, err
	}
	p := u.Profile
	if p == nil {
		p = &models.UserProfile{UserID: u.ID}
	}
	p.FullName = strings.TrimSpace(in.FullName)
	p.Phone = ""
	if in.Phone != "" {
		p.Phone = validate.NormalizePhone(in.Phone)
	}
	p.AvatarURL = in.AvatarURL
	if err := s.users.SaveProfile(ctx, p); err != nil {
		return Account{}, err
	}
	return s.Me(ctx, userID)
}

// ── Admin grants ────────────────────────────────────────────────────────────

type GrantInput struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,in=admin,super_admin"`
}

func (s *AuthService) Admins(ctx context.Context) ([]models.AdminUser, error) {
	return s.users.Admins(ctx)
}

// Grant gives an existing user an admin role, or changes their role.
// Demoting the last super_admin is refused.
func (s *AuthService) Grant(ctx context.Context, in GrantInput) (models.AdminUser, error) {
	if errs := validate.Struct(in); validate.HasErrors(errs) {
		return models.AdminUser{}, apperr.Invalid(errs)
	}
	u, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return models.AdminUser{}, apperr.Field("email", "No user is registered with this email.")
		}
		return models.AdminUser{}, err
	}

	var grant models.AdminUser
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := forUpdate(tx).Where("user_id = ?", u.ID).First(&grant).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			grant = models.AdminUser{UserID: u.ID, Role: in.Role}
			return tx.Create(&grant).Error
		case err != nil:
			return err
		}
		if grant.Role == models.AdminRoleSuperAdmin && in.Role != models.AdminRoleSuperAdmin {
			if err := ensureAnotherSuperAdmin(tx, u.ID); err != nil {
				return err
			}
		}
		grant.Role = in.Role
		return tx.Save(&grant).Error
	})
	if err != nil {
		return models.AdminUser{}, apperr.FromDB(err)
	}
	grant.User = &u
	logger.WithCtx(ctx).Info("auth: admin granted", "user_id", u.ID, "role", in.Role)
	return grant, nil
}

// Revoke removes a user's admin row. The last super_admin cannot be
// revoked.
func (s *AuthService) Revoke(ctx context.Context, userID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var grant models.AdminUser
		if err := forUpdate(tx).Where("user_id = ?", userID).First(&grant).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundf("Admin user not found")
			}
			return err
		}
		if grant.Role == models.AdminRoleSuperAdmin {
			if err := ensureAnotherSuperAdmin(tx, userID); err != nil {
				return err
			}
		}
		return tx.Delete(&grant).Error
	})
	if err != nil {
		return apperr.FromDB(err)
	}
	logger.WithCtx(ctx).Info("auth: admin revoked", "user_id", userID)
	return nil
}

func ensureAnotherSuperAdmin(tx *gorm.DB, userID uint) error {
	var n int64
	err := tx.Model(&models.AdminUser{}).
		Where("role = ? AND user_id <> ?", models.AdminRoleSuperAdmin, userID).Count(&n).Error
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.Conflictf("The last super admin cannot be removed")
	}
	return nil
}
