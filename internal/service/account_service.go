package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"nexodrive/internal/auth"
	"nexodrive/internal/domain"
	"nexodrive/internal/repository"
)

// Квота нового аккаунта по умолчанию — 5 GiB в мебибайтах.
const defaultQuotaLimitMb int64 = 5 * 1024

var ErrInvalidCredentials = errors.New("invalid email or password")

// AccountService отвечает за регистрацию аккаунтов и вход.
type AccountService struct {
	accountRepo *repository.AccountRepository
	log         *zap.Logger
}

func NewAccountService(accountRepo *repository.AccountRepository, log *zap.Logger) *AccountService {
	return &AccountService{
		accountRepo: accountRepo,
		log:         log,
	}
}

// Register создает аккаунт с нулевым использованием и квотой по умолчанию.
// Администраторы получают безлимитный тариф: лимит остается NULL.
func (s *AccountService) Register(ctx context.Context, email, password, role string) (*domain.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("email and password are required")
	}
	if role != domain.RoleAdmin {
		role = domain.RoleMember
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &domain.Account{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if role != domain.RoleAdmin {
		limit := defaultQuotaLimitMb
		account.QuotaLimitMb = &limit
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return account, nil
}

// Login проверяет учетные данные и выпускает токен сессии.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, *domain.Account, error) {
	account, err := s.accountRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("failed to look up account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := auth.IssueToken(account.ID, account.Role)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return token, account, nil
}

// GetAccount возвращает аккаунт по id.
func (s *AccountService) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.accountRepo.GetByID(ctx, id)
}
