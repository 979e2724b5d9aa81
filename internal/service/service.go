// Package service реализует бизнес-логику сервиса интернет-магазина.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ebtwim/docker-simple-store/internal/model"
	"github.com/ebtwim/docker-simple-store/internal/repository"
)

const otpTTL = 5 * time.Minute

// ErrInvalidCredentials возвращается как для неизвестного email, так и для неверного
// пароля: по ответу нельзя определить, зарегистрирован ли адрес.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotVerified возвращается при попытке входа в неподтверждённый аккаунт.
	ErrNotVerified = errors.New("account not verified")
	// ErrEmptyOrder возвращается при попытке оформить заказ без позиций.
	ErrEmptyOrder = errors.New("order has no items")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, name, email string, passwordHash []byte, otp string, otpExpires time.Time) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	VerifyUser(ctx context.Context, email, code string) error
	CreateOrder(ctx context.Context, userID int64, items []model.OrderItem) (string, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	GetProducts(ctx context.Context, limit, offset int) ([]model.Product, int64, error)
}

// Notifier описывает контракт доставки кодов подтверждения.
type Notifier interface {
	SendOTP(ctx context.Context, email, code string) error
}

// Service содержит бизнес-логику сервиса интернет-магазина.
type Service struct {
	repo     Repository
	notifier Notifier
}

// NewService создаёт новый сервис с указанным репозиторием и отправителем кодов.
func NewService(repo Repository, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser создаёт неподтверждённый аккаунт, выпускает шестизначный код
// подтверждения со сроком действия пять минут и передаёт его отправителю.
// Ошибка отправки возвращается вызывающему: регистрация не завершается успехом,
// пока код не принят к доставке.
func (s *Service) RegisterUser(ctx context.Context, name, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	otp, err := generateOTP()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}

	otpExpires := time.Now().Add(otpTTL)

	if _, err := s.repo.CreateUser(ctx, name, email, hash, otp, otpExpires); err != nil {
		return err
	}

	if err := s.notifier.SendOTP(ctx, email, otp); err != nil {
		return fmt.Errorf("send otp: %w", err)
	}

	return nil
}

// generateOTP выдаёт равномерно распределённый шестизначный код из диапазона 100000–999999.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// VerifyUser сверяет код подтверждения и помечает аккаунт как подтверждённый.
func (s *Service) VerifyUser(ctx context.Context, email, code string) error {
	return s.repo.VerifyUser(ctx, email, code)
}

// AuthenticateUser проверяет email и пароль и возвращает пользователя.
// Неизвестный email и неверный пароль дают одну и ту же ошибку ErrInvalidCredentials.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !u.Verified {
		return nil, ErrNotVerified
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// CreateOrder оформляет заказ пользователя. Количество в позиции без указанного
// значения приводится к единице; список позиций не может быть пустым.
func (s *Service) CreateOrder(ctx context.Context, userID int64, items []model.OrderItem) (string, error) {
	if len(items) == 0 {
		return "", ErrEmptyOrder
	}

	normalized := make([]model.OrderItem, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			item.Quantity = 1
		}
		normalized = append(normalized, item)
	}

	return s.repo.CreateOrder(ctx, userID, normalized)
}

// GetOrdersByUser возвращает список заказов пользователя.
func (s *Service) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.GetOrdersByUser(ctx, userID)
}

// GetProducts возвращает страницу каталога и общее количество товаров.
func (s *Service) GetProducts(ctx context.Context, limit, offset int) ([]model.Product, int64, error) {
	return s.repo.GetProducts(ctx, limit, offset)
}
