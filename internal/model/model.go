// Package model содержит доменные сущности сервиса заказа пиццы.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownChoice возвращается при разборе значения, не входящего в перечисление.
var ErrUnknownChoice = errors.New("unknown choice")

// User представляет учётную запись пользователя.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash []byte
	IsStaff      bool
	IsActive     bool
	CreatedAt    time.Time
}

// PizzaSize описывает размер пиццы.
type PizzaSize string

const (
	PizzaSizeSmall      PizzaSize = "SMALL"
	PizzaSizeMedium     PizzaSize = "MEDIUM"
	PizzaSizeLarge      PizzaSize = "LARGE"
	PizzaSizeExtraLarge PizzaSize = "EXTRA-LARGE"
)

// Flavour описывает вкус пиццы.
type Flavour string

const (
	FlavourPeperoni   Flavour = "PEPERONI"
	FlavourFourCheese Flavour = "FOUR-CHEESE"
	FlavourPineapple  Flavour = "PINEAPPLE"
)

// OrderStatus описывает статус доставки заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusInTransit OrderStatus = "IN-TRANSIT"
	OrderStatusDelivered OrderStatus = "DELIVERED"
)

// Значения по умолчанию для нового заказа.
const (
	DefaultPizzaSize   = PizzaSizeSmall
	DefaultFlavour     = FlavourPeperoni
	DefaultOrderStatus = OrderStatusPending
)

// Order описывает заказ пользователя. Owner заполняется при чтении из хранилища.
type Order struct {
	ID        int64
	Quantity  int
	PizzaSize PizzaSize
	Flavour   Flavour
	Status    OrderStatus
	UserID    int64
	Owner     *User
	CreatedAt time.Time
}

// ParsePizzaSize разбирает размер пиццы без учёта регистра.
func ParsePizzaSize(s string) (PizzaSize, error) {
	switch v := PizzaSize(strings.ToUpper(strings.TrimSpace(s))); v {
	case PizzaSizeSmall, PizzaSizeMedium, PizzaSizeLarge, PizzaSizeExtraLarge:
		return v, nil
	}
	return "", fmt.Errorf("%w: pizza_size %q", ErrUnknownChoice, s)
}

// ParseFlavour разбирает вкус пиццы без учёта регистра.
func ParseFlavour(s string) (Flavour, error) {
	switch v := Flavour(strings.ToUpper(strings.TrimSpace(s))); v {
	case FlavourPeperoni, FlavourFourCheese, FlavourPineapple:
		return v, nil
	}
	return "", fmt.Errorf("%w: flavour %q", ErrUnknownChoice, s)
}

// ParseOrderStatus разбирает статус заказа без учёта регистра.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch v := OrderStatus(strings.ToUpper(strings.TrimSpace(s))); v {
	case OrderStatusPending, OrderStatusInTransit, OrderStatusDelivered:
		return v, nil
	}
	return "", fmt.Errorf("%w: order_status %q", ErrUnknownChoice, s)
}
