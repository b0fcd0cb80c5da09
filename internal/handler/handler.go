// Package handler содержит HTTP-обработчики API сервиса заказа пиццы.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mmeshcher/pizzeria/internal/middleware"
	"github.com/mmeshcher/pizzeria/internal/model"
	"github.com/mmeshcher/pizzeria/internal/repository"
	"github.com/mmeshcher/pizzeria/internal/service"
	"github.com/mmeshcher/pizzeria/internal/validation"
)

// maxBodyBytes ограничивает размер JSON-тела запроса после распаковки.
const maxBodyBytes = 1 << 20

// Сообщения об ошибках, которые видит клиент.
const (
	msgNotSuperuser       = "You are not a superuser"
	msgInvalidCredentials = "Invalid username or password"
	msgOrderNotFound      = "Order not found"
	msgUserExists         = "User with this username or email already exists"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	SignUp(ctx context.Context, req service.SignUpRequest) (*model.User, error)
	Authenticate(ctx context.Context, username, password string) (*model.User, error)
	CurrentUser(ctx context.Context, subject string) (*model.User, error)
	PlaceOrder(ctx context.Context, subject string, details service.OrderDetails, status model.OrderStatus) (*model.Order, error)
	ListAllOrders(ctx context.Context, subject string) ([]model.Order, error)
	GetOrderByID(ctx context.Context, subject string, id int64) (*model.Order, error)
	ListMyOrders(ctx context.Context, subject string) ([]model.Order, error)
	GetMyOrderByID(ctx context.Context, subject string, id int64) (*model.Order, error)
	UpdateOrder(ctx context.Context, subject string, id int64, details service.OrderDetails) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, subject string, id int64, status model.OrderStatus) (*model.Order, error)
	DeleteOrder(ctx context.Context, subject string, id int64) (*model.Order, error)
}

// Handler реализует HTTP-обработчики API сервиса заказа пиццы.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	metrics        *middleware.Metrics
	registry       *prometheus.Registry
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов. Метрики
// регистрируются в reg и отдаются по /metrics.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, reg *prometheus.Registry) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		metrics:        middleware.NewMetrics(reg),
		registry:       reg,
	}
}

type signUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	IsStaff  bool   `json:"is_staff"`
	IsActive bool   `json:"is_active"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type orderRequest struct {
	Quantity    int    `json:"quantity"`
	PizzaSize   string `json:"pizza_size"`
	Flavour     string `json:"flavour"`
	OrderStatus string `json:"order_status"`
}

type statusRequest struct {
	OrderStatus string `json:"order_status"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsStaff  bool   `json:"is_staff"`
	IsActive bool   `json:"is_active"`
}

type orderResponse struct {
	ID          int64         `json:"id"`
	Quantity    int           `json:"quantity"`
	PizzaSize   string        `json:"pizza_size"`
	Flavour     string        `json:"flavour"`
	OrderStatus string        `json:"order_status"`
	User        *userResponse `json:"user,omitempty"`
}

type accessTokenResponse struct {
	AccessToken string `json:"access"`
}

func newUserResponse(u *model.User) *userResponse {
	if u == nil {
		return nil
	}
	return &userResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		IsStaff:  u.IsStaff,
		IsActive: u.IsActive,
	}
}

func newOrderResponse(o *model.Order) orderResponse {
	return orderResponse{
		ID:          o.ID,
		Quantity:    o.Quantity,
		PizzaSize:   string(o.PizzaSize),
		Flavour:     string(o.Flavour),
		OrderStatus: string(o.Status),
		User:        newUserResponse(o.Owner),
	}
}

func newOrderListResponse(orders []model.Order) []orderResponse {
	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, newOrderResponse(&orders[i]))
	}
	return resp
}

// SignUp регистрирует нового пользователя.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if !validation.IsValidUsername(req.Username) ||
		!validation.IsValidEmail(req.Email) ||
		!validation.IsValidPassword(req.Password) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	u, err := h.service.SignUp(r.Context(), service.SignUpRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		IsStaff:  req.IsStaff,
		IsActive: req.IsActive,
	})
	if err != nil {
		h.writeError(w, err, zap.String("username", req.Username))
		return
	}

	writeJSON(w, http.StatusCreated, newUserResponse(u))
}

// Login проверяет учётные данные и выдаёт пару токенов.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, err, zap.String("username", req.Username))
		return
	}

	tokens, err := h.authMiddleware.IssueTokens(u.Username)
	if err != nil {
		h.writeError(w, err, zap.String("username", u.Username))
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

// Refresh выдаёт новый access-токен по refresh-токену.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.subject(w, r)
	if !ok {
		return
	}

	u, err := h.service.CurrentUser(r.Context(), subject)
	if err != nil {
		h.writeError(w, err, zap.String("subject", subject))
		return
	}

	access, err := h.authMiddleware.IssueAccessToken(u.Username)
	if err != nil {
		h.writeError(w, err, zap.String("subject", subject))
		return
	}

	writeJSON(w, http.StatusOK, accessTokenResponse{AccessToken: access})
}

// Hello проверяет, что токен принят.
func (h *Handler) Hello(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Hello world"})
}

// PlaceOrder создаёт заказ текущего пользователя.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.subject(w, r)
	if !ok {
		return
	}

	var req orderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	details, ok := parseOrderDetails(w, req)
	if !ok {
		return
	}

	var status model.OrderStatus
	if req.OrderStatus != "" {
		var err error
		if status, err = model.ParseOrderStatus(req.OrderStatus); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
	}

	o, err := h.service.PlaceOrder(r.Context(), subject, details, status)
	if err != nil {
		h.writeError(w, err, zap.String("subject", subject))
		return
	}

	writeJSON(w, http.StatusCreated, newOrderResponse(o))
}

// ListAllOrders возвращает все заказы (только для персонала).
func (h *Handler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.subject(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListAllOrders(r.Context(), subject)
	if err != nil {
		h.writeError(w, err, zap.String("subject", subject))
		return
	}

	writeJSON(w, http.StatusOK, newOrderListResponse(orders))
}

// GetOrderByID возвращает заказ по идентификатору (только для персонала).
func (h *Handler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.subject(w, r)
	if !ok {
		return
	}

	id, ok := orderID(w, r)
	if !ok {
		return
	}

	o, err := h.service.GetOrderByID(r.Context(), subject, id)
	if err != nil {
		h.writeError(w, err, zap.String("subject", subject), zap.Int64("orderID", id))
		return
	}

	writeJSON(w, http.StatusOK, newOrderResponse(o))
}

// ListMyOrders возвращает заказы текущего пользователя.
func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.subject(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListMyOrders(r.Context(), subject)
	if err != nil {
		h.writeError(w, err, zap.String("subject", subject))
		return
	}

	writeJSON(w, http.StatusOK, newOrderListResponse(orders))
}

// GetMyOrderByID возвращает заказ текущего пользователя.
func (h *Handler) GetMyOrderByID(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.subject(w, r)
	if !ok {
		return
	}

	id, ok := orderID(w, r)
	if !ok {
		return
	}

	o, err := h.service.GetMyOrderByID(r.Context(), subject, id)
	if err != nil {
		h.writeError(w, err, zap.String("subject", subject), zap.Int64("orderID", id))
		return
	}

	writeJSON(w, http.StatusOK, newOrderResponse(o))
}

// UpdateOrder изменяет количество, размер и вкус заказа.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.subject(w, r)
	if !ok {
		return
	}

	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req orderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	details, ok := parseOrderDetails(w, req)
	if !ok {
		return
	}

	o, err := h.service.UpdateOrder(r.Context(), subject, id, details)
	if err != nil {
		h.writeError(w, err, zap.String("subject", subject), zap.Int64("orderID", id))
		return
	}

	writeJSON(w, http.StatusOK, newOrderResponse(o))
}

// UpdateOrderStatus меняет статус заказа (только для персонала).
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.subject(w, r)
	if !ok {
		return
	}

	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	status, err := model.ParseOrderStatus(req.OrderStatus)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	o, err := h.service.UpdateOrderStatus(r.Context(), subject, id, status)
	if err != nil {
		h.writeError(w, err, zap.String("subject", subject), zap.Int64("orderID", id))
		return
	}

	writeJSON(w, http.StatusOK, newOrderResponse(o))
}

// DeleteOrder удаляет заказ.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.subject(w, r)
	if !ok {
		return
	}

	id, ok := orderID(w, r)
	if !ok {
		return
	}

	o, err := h.service.DeleteOrder(r.Context(), subject, id)
	if err != nil {
		h.writeError(w, err, zap.String("subject", subject), zap.Int64("orderID", id))
		return
	}

	h.logger.Info("order deleted",
		zap.String("subject", subject),
		zap.Int64("orderID", o.ID),
		zap.Int64("ownerID", o.UserID),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) subject(w http.ResponseWriter, r *http.Request) (string, bool) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		http.Error(w, middleware.InvalidTokenMessage, http.StatusUnauthorized)
	}
	return subject, ok
}

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func parseOrderDetails(w http.ResponseWriter, req orderRequest) (service.OrderDetails, bool) {
	details := service.OrderDetails{Quantity: req.Quantity}

	if !validation.IsValidQuantity(req.Quantity) {
		http.Error(w, service.ErrInvalidQuantity.Error(), http.StatusUnprocessableEntity)
		return details, false
	}

	var err error
	if req.PizzaSize != "" {
		if details.PizzaSize, err = model.ParsePizzaSize(req.PizzaSize); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return details, false
		}
	}
	if req.Flavour != "" {
		if details.Flavour, err = model.ParseFlavour(req.Flavour); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return details, false
		}
	}

	return details, true
}

// writeError отображает ошибку бизнес-логики в HTTP-статус. Неожиданные ошибки
// логируются, клиенту отдаётся только текст статуса.
func (h *Handler) writeError(w http.ResponseWriter, err error, fields ...zap.Field) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		http.Error(w, middleware.InvalidTokenMessage, http.StatusUnauthorized)
	case errors.Is(err, service.ErrNotStaff):
		http.Error(w, msgNotSuperuser, http.StatusUnauthorized)
	case errors.Is(err, service.ErrInvalidCredentials):
		http.Error(w, msgInvalidCredentials, http.StatusUnauthorized)
	case errors.Is(err, service.ErrInvalidQuantity):
		http.Error(w, service.ErrInvalidQuantity.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, repository.ErrOrderNotFound):
		http.Error(w, msgOrderNotFound, http.StatusNotFound)
	case errors.Is(err, repository.ErrUserExists):
		http.Error(w, msgUserExists, http.StatusConflict)
	default:
		h.logger.Error("request failed", append(fields, zap.Error(err))...)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// decodeJSON читает тело запроса не длиннее maxBodyBytes. Слишком длинное тело
// даёт 413, некорректный JSON даёт 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
			return false
		}
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
