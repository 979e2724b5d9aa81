// Package handler содержит HTTP-обработчики API сервиса интернет-магазина.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ebtwim/docker-simple-store/internal/middleware"
	"github.com/ebtwim/docker-simple-store/internal/model"
	"github.com/ebtwim/docker-simple-store/internal/repository"
	"github.com/ebtwim/docker-simple-store/internal/service"
	"github.com/ebtwim/docker-simple-store/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, name, email, password string) error
	VerifyUser(ctx context.Context, email, code string) error
	AuthenticateUser(ctx context.Context, email, password string) (*model.User, error)
	CreateOrder(ctx context.Context, userID int64, items []model.OrderItem) (string, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	GetProducts(ctx context.Context, limit, offset int) ([]model.Product, int64, error)
}

// Handler реализует HTTP-обработчики API сервиса интернет-магазина.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"msg": msg})
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового пользователя и отправку кода подтверждения.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Missing fields")
		return
	}

	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Missing fields")
		return
	}

	if !validation.IsValidEmail(req.Email) {
		writeMessage(w, http.StatusBadRequest, "Invalid email")
		return
	}

	err := h.service.RegisterUser(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			writeMessage(w, http.StatusBadRequest, "Email already exists")
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "DB or email error")
		return
	}

	writeMessage(w, http.StatusOK, "OTP sent to email")
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// VerifyOTP обрабатывает подтверждение аккаунта по коду из письма.
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Missing fields")
		return
	}

	err := h.service.VerifyUser(r.Context(), req.Email, req.OTP)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			writeMessage(w, http.StatusBadRequest, "User not found")
		case errors.Is(err, repository.ErrAlreadyVerified):
			writeMessage(w, http.StatusBadRequest, "Already verified")
		case errors.Is(err, repository.ErrOTPInvalid):
			writeMessage(w, http.StatusBadRequest, "Invalid or expired OTP")
		default:
			h.logger.Error("verify otp error", zap.Error(err))
			writeMessage(w, http.StatusInternalServerError, "DB error")
		}
		return
	}

	writeMessage(w, http.StatusOK, "Account verified")
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// Login выполняет аутентификацию пользователя и выпуск токена сессии.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Missing fields")
		return
	}

	user, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			writeMessage(w, http.StatusBadRequest, "Invalid credentials")
		case errors.Is(err, service.ErrNotVerified):
			writeMessage(w, http.StatusBadRequest, "Please verify email first")
		default:
			h.logger.Error("login user error", zap.Error(err))
			writeMessage(w, http.StatusInternalServerError, "DB error")
		}
		return
	}

	token, err := h.authMiddleware.GenerateToken(user.ID, user.Email)
	if err != nil {
		h.logger.Error("generate token error", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "DB error")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token: token,
		User: userResponse{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
		},
	})
}

type productsResponse struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// GetProducts возвращает страницу каталога товаров.
func (h *Handler) GetProducts(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = 10
	}

	products, total, err := h.service.GetProducts(r.Context(), limit, (page-1)*limit)
	if err != nil {
		h.logger.Error("get products error", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "DB error")
		return
	}

	if products == nil {
		products = []model.Product{}
	}

	writeJSON(w, http.StatusOK, productsResponse{
		Items: products,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

type orderItemRequest struct {
	ID       int64   `json:"id"`
	Quantity int32   `json:"quantity"`
	Price    float64 `json:"price"`
}

type createOrderRequest struct {
	Items []orderItemRequest `json:"items"`
}

// CreateOrder оформляет заказ текущего пользователя.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "No token")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "No items")
		return
	}

	if len(req.Items) == 0 {
		writeMessage(w, http.StatusBadRequest, "No items")
		return
	}

	items := make([]model.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, model.OrderItem{
			ProductID:    item.ID,
			Quantity:     item.Quantity,
			PriceAtOrder: item.Price,
		})
	}

	orderID, err := h.service.CreateOrder(r.Context(), identity.UserID, items)
	if err != nil {
		if errors.Is(err, service.ErrEmptyOrder) {
			writeMessage(w, http.StatusBadRequest, "No items")
			return
		}
		h.logger.Error("create order error", zap.Error(err), zap.Int64("userID", identity.UserID))
		writeMessage(w, http.StatusInternalServerError, "Order failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"msg":     "Order created",
		"orderId": orderID,
	})
}

type orderItemResponse struct {
	ProductID    int64   `json:"product_id"`
	Quantity     int32   `json:"quantity"`
	PriceAtOrder float64 `json:"price_at_order"`
}

type orderResponse struct {
	ID        string              `json:"id"`
	CreatedAt string              `json:"created_at"`
	Items     []orderItemResponse `json:"items"`
}

// GetMyOrders возвращает список заказов текущего пользователя с вложенными позициями.
func (h *Handler) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "No token")
		return
	}

	orders, err := h.service.GetOrdersByUser(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("get orders error", zap.Error(err), zap.Int64("userID", identity.UserID))
		writeMessage(w, http.StatusInternalServerError, "DB error")
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		items := make([]orderItemResponse, 0, len(o.Items))
		for _, item := range o.Items {
			items = append(items, orderItemResponse{
				ProductID:    item.ProductID,
				Quantity:     item.Quantity,
				PriceAtOrder: item.PriceAtOrder,
			})
		}
		resp = append(resp, orderResponse{
			ID:        o.ID,
			CreatedAt: o.CreatedAt.Format(time.RFC3339),
			Items:     items,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
