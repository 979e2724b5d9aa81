// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/ebtwim/docker-simple-store/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrEmailExists возвращается при попытке создать пользователя с уже существующим email.
var (
	ErrEmailExists = errors.New("email already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrAlreadyVerified возвращается при повторной попытке подтвердить уже подтверждённый аккаунт.
	ErrAlreadyVerified = errors.New("account already verified")
	// ErrOTPInvalid возвращается, если код подтверждения не совпадает или истёк.
	ErrOTPInvalid = errors.New("invalid or expired otp")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Если ошибка контекста — выходим сразу
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Ретраи полезны для Serialization Failure или Deadlocks;
		// с переподключениями pgxpool обычно справляется сам.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		// Если это не pg-ошибка, но сетевая
		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового неподтверждённого пользователя с выданным кодом подтверждения.
func (r *PostgresRepository) CreateUser(ctx context.Context, name, email string, passwordHash []byte, otp string, otpExpires time.Time) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (name, email, password_hash, verified, otp, otp_expires)
		 VALUES ($1, $2, $3, false, $4, $5)
		 RETURNING id`,
		name, email, passwordHash, otp, otpExpires,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrEmailExists, email)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByEmail возвращает пользователя по email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, verified, otp, otp_expires, created_at
		 FROM users WHERE email = $1`,
		email,
	)

	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Verified, &u.OTP, &u.OTPExpires, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

// VerifyUser сверяет код подтверждения и атомарно переводит аккаунт в состояние verified.
// Строка пользователя блокируется на время проверки, чтобы два одновременных запроса
// с правильным кодом не завершились успехом оба.
func (r *PostgresRepository) VerifyUser(ctx context.Context, email, code string) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var (
			id         int64
			verified   bool
			otp        *string
			otpExpires *time.Time
		)
		err = tx.QueryRow(ctx,
			`SELECT id, verified, otp, otp_expires FROM users WHERE email = $1 FOR UPDATE`,
			email,
		).Scan(&id, &verified, &otp, &otpExpires)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("select user for verify: %w", err)
		}

		if verified {
			return ErrAlreadyVerified
		}

		if otp == nil || otpExpires == nil || *otp != code || !time.Now().Before(*otpExpires) {
			return ErrOTPInvalid
		}

		_, err = tx.Exec(ctx,
			`UPDATE users SET verified = true, otp = NULL, otp_expires = NULL WHERE id = $1`,
			id,
		)
		if err != nil {
			return fmt.Errorf("update user verified: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		return nil
	})
}

// CreateOrder сохраняет заказ и все его позиции в одной транзакции.
// Частично записанный заказ невозможен: при любой ошибке транзакция откатывается целиком.
func (r *PostgresRepository) CreateOrder(ctx context.Context, userID int64, items []model.OrderItem) (string, error) {
	orderID := uuid.New().String()

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		_, err = tx.Exec(ctx,
			`INSERT INTO orders (id, user_id) VALUES ($1, $2)`,
			orderID, userID,
		)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, item := range items {
			_, err = tx.Exec(ctx,
				`INSERT INTO order_items (order_id, product_id, quantity, price_at_order)
				 VALUES ($1, $2, $3, $4)`,
				orderID, item.ProductID, item.Quantity, item.PriceAtOrder,
			)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	return orderID, nil
}

// GetOrdersByUser возвращает список заказов пользователя с вложенными позициями,
// отсортированный по времени создания от новых к старым.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT o.id, o.created_at, oi.product_id, oi.quantity, oi.price_at_order
		 FROM orders o
		 JOIN order_items oi ON oi.order_id = o.id
		 WHERE o.user_id = $1
		 ORDER BY o.created_at DESC, o.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	index := make(map[string]int)

	for rows.Next() {
		var (
			orderID   string
			createdAt time.Time
			item      model.OrderItem
		)
		if err := rows.Scan(&orderID, &createdAt, &item.ProductID, &item.Quantity, &item.PriceAtOrder); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}

		i, ok := index[orderID]
		if !ok {
			orders = append(orders, model.Order{
				ID:        orderID,
				UserID:    userID,
				CreatedAt: createdAt,
			})
			i = len(orders) - 1
			index[orderID] = i
		}
		orders[i].Items = append(orders[i].Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// GetProducts возвращает страницу каталога и общее количество товаров.
func (r *PostgresRepository) GetProducts(ctx context.Context, limit, offset int) ([]model.Product, int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, price, description FROM products ORDER BY id LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Description); err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	return products, total, nil
}
