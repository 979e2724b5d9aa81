// Package model содержит доменные сущности сервиса интернет-магазина.
package model

import "time"

// User представляет зарегистрированного пользователя магазина.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash []byte
	Verified     bool
	OTP          *string
	OTPExpires   *time.Time
	CreatedAt    time.Time
}

// Product описывает товар каталога.
type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
}

// OrderItem описывает одну позицию заказа с зафиксированной на момент покупки ценой.
type OrderItem struct {
	ProductID    int64
	Quantity     int32
	PriceAtOrder float64
}

// Order описывает заказ пользователя вместе с его позициями.
type Order struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	Items     []OrderItem
}
