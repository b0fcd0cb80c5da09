// Package service реализует бизнес-логику сервиса заказа пиццы: регистрацию и вход
// пользователей, а также правила жизненного цикла заказов и доступа к ним.
package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/pizzeria/internal/model"
	"github.com/mmeshcher/pizzeria/internal/repository"
	"github.com/mmeshcher/pizzeria/internal/validation"
)

var (
	// ErrUnauthorized возвращается, если subject токена не соответствует ни одному пользователю.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotStaff возвращается, если операция доступна только персоналу.
	ErrNotStaff = errors.New("user is not staff")
	// ErrInvalidCredentials возвращается при неверном имени пользователя или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidQuantity возвращается, если количество пицц не положительно или не помещается в int32.
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 2147483647")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, u model.User) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	CreateOrder(ctx context.Context, o model.Order) (*model.Order, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	GetOrderByID(ctx context.Context, id int64) (*model.Order, error)
	GetOrderForUser(ctx context.Context, userID, id int64) (*model.Order, error)
	UpdateOrderDetails(ctx context.Context, id int64, quantity int, size model.PizzaSize, flavour model.Flavour) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus) (*model.Order, error)
	DeleteOrder(ctx context.Context, id int64) (*model.Order, error)
}

// SignUpRequest содержит данные для регистрации пользователя.
type SignUpRequest struct {
	Username string
	Email    string
	Password string
	IsStaff  bool
	IsActive bool
}

// OrderDetails содержит изменяемые владельцем поля заказа. Пустые значения
// перечислений заменяются значениями по умолчанию.
type OrderDetails struct {
	Quantity  int
	PizzaSize model.PizzaSize
	Flavour   model.Flavour
}

// Service содержит бизнес-логику сервиса заказа пиццы.
type Service struct {
	repo       Repository
	bcryptCost int
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository) *Service {
	return &Service{
		repo:       repo,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// SignUp регистрирует нового пользователя.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return s.repo.CreateUser(ctx, model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		IsStaff:      req.IsStaff,
		IsActive:     req.IsActive,
	})
}

// Authenticate проверяет имя пользователя и пароль.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// CurrentUser возвращает пользователя, соответствующего subject проверенного токена.
func (s *Service) CurrentUser(ctx context.Context, subject string) (*model.User, error) {
	u, err := s.repo.GetUserByUsername(ctx, subject)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	return u, nil
}

func (s *Service) currentStaff(ctx context.Context, subject string) (*model.User, error) {
	u, err := s.CurrentUser(ctx, subject)
	if err != nil {
		return nil, err
	}
	if !u.IsStaff {
		return nil, ErrNotStaff
	}
	return u, nil
}

// PlaceOrder создаёт заказ от имени вызывающего пользователя. Пустой статус
// означает PENDING.
func (s *Service) PlaceOrder(ctx context.Context, subject string, details OrderDetails, status model.OrderStatus) (*model.Order, error) {
	u, err := s.CurrentUser(ctx, subject)
	if err != nil {
		return nil, err
	}

	details, err = normalize(details)
	if err != nil {
		return nil, err
	}
	if status == "" {
		status = model.DefaultOrderStatus
	}

	return s.repo.CreateOrder(ctx, model.Order{
		Quantity:  details.Quantity,
		PizzaSize: details.PizzaSize,
		Flavour:   details.Flavour,
		Status:    status,
		UserID:    u.ID,
	})
}

// ListAllOrders возвращает все заказы. Доступно только персоналу.
func (s *Service) ListAllOrders(ctx context.Context, subject string) ([]model.Order, error) {
	if _, err := s.currentStaff(ctx, subject); err != nil {
		return nil, err
	}
	return s.repo.ListOrders(ctx)
}

// GetOrderByID возвращает любой заказ по идентификатору. Доступно только персоналу.
func (s *Service) GetOrderByID(ctx context.Context, subject string, id int64) (*model.Order, error) {
	if _, err := s.currentStaff(ctx, subject); err != nil {
		return nil, err
	}
	return s.repo.GetOrderByID(ctx, id)
}

// ListMyOrders возвращает заказы вызывающего пользователя.
func (s *Service) ListMyOrders(ctx context.Context, subject string) ([]model.Order, error) {
	u, err := s.CurrentUser(ctx, subject)
	if err != nil {
		return nil, err
	}
	return s.repo.ListOrdersByUser(ctx, u.ID)
}

// GetMyOrderByID возвращает заказ вызывающего пользователя. Чужой заказ
// неотличим от отсутствующего.
func (s *Service) GetMyOrderByID(ctx context.Context, subject string, id int64) (*model.Order, error) {
	u, err := s.CurrentUser(ctx, subject)
	if err != nil {
		return nil, err
	}
	return s.repo.GetOrderForUser(ctx, u.ID, id)
}

// UpdateOrder изменяет количество, размер и вкус заказа. Разрешено владельцу
// заказа и персоналу. Статус не меняется.
func (s *Service) UpdateOrder(ctx context.Context, subject string, id int64, details OrderDetails) (*model.Order, error) {
	details, err := normalize(details)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeOwnerOrStaff(ctx, subject, id); err != nil {
		return nil, err
	}

	return s.repo.UpdateOrderDetails(ctx, id, details.Quantity, details.PizzaSize, details.Flavour)
}

// UpdateOrderStatus устанавливает статус заказа. Доступно только персоналу;
// переходы между статусами не ограничиваются.
func (s *Service) UpdateOrderStatus(ctx context.Context, subject string, id int64, status model.OrderStatus) (*model.Order, error) {
	if _, err := s.currentStaff(ctx, subject); err != nil {
		return nil, err
	}
	return s.repo.UpdateOrderStatus(ctx, id, status)
}

// DeleteOrder удаляет заказ и возвращает удалённую запись. Разрешено владельцу
// заказа и персоналу.
func (s *Service) DeleteOrder(ctx context.Context, subject string, id int64) (*model.Order, error) {
	if err := s.authorizeOwnerOrStaff(ctx, subject, id); err != nil {
		return nil, err
	}
	return s.repo.DeleteOrder(ctx, id)
}

// authorizeOwnerOrStaff проверяет права на изменение заказа. Для обычного
// пользователя чужой заказ неотличим от отсутствующего. Владелец заказа
// не меняется, поэтому проверка до записи не устаревает.
func (s *Service) authorizeOwnerOrStaff(ctx context.Context, subject string, id int64) error {
	u, err := s.CurrentUser(ctx, subject)
	if err != nil {
		return err
	}

	o, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return err
	}

	if o.UserID != u.ID && !u.IsStaff {
		return repository.ErrOrderNotFound
	}
	return nil
}

func normalize(d OrderDetails) (OrderDetails, error) {
	if !validation.IsValidQuantity(d.Quantity) {
		return d, ErrInvalidQuantity
	}
	if d.PizzaSize == "" {
		d.PizzaSize = model.DefaultPizzaSize
	}
	if d.Flavour == "" {
		d.Flavour = model.DefaultFlavour
	}
	return d, nil
}
