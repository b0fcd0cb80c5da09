// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/pizzeria/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с занятым именем или почтой.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
)

// orderColumns перечисляет поля заказа и его владельца в порядке, ожидаемом scanOrder.
const orderColumns = `o.id, o.quantity, o.pizza_size, o.flavour, o.order_status, o.user_id, o.created_at,
	u.id, u.username, u.email, u.is_staff, u.is_active, u.created_at`

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
// Каждый метод берёт соединение из пула на время одного запроса и возвращает его при выходе.
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

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя и возвращает сохранённую запись.
func (r *PostgresRepository) CreateUser(ctx context.Context, u model.User) (*model.User, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, is_staff, is_active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		u.Username, u.Email, u.PasswordHash, u.IsStaff, u.IsActive,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, pgErr.ConstraintName)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

// GetUserByUsername возвращает пользователя по имени.
func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, is_staff, is_active, created_at
		 FROM users WHERE username = $1`,
		username,
	)

	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsStaff, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

// CreateOrder сохраняет новый заказ пользователя.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o model.Order) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`WITH o AS (
			INSERT INTO orders (quantity, pizza_size, flavour, order_status, user_id)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING *
		 )
		 SELECT `+orderColumns+` FROM o JOIN users u ON u.id = o.user_id`,
		o.Quantity, string(o.PizzaSize), string(o.Flavour), string(o.Status), o.UserID,
	)

	created, err := scanOrder(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("insert order: %w", err)
	}

	return created, nil
}

// ListOrders возвращает все заказы в порядке создания.
func (r *PostgresRepository) ListOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders o JOIN users u ON u.id = o.user_id
		 ORDER BY o.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}

	return collectOrders(rows)
}

// ListOrdersByUser возвращает заказы пользователя.
func (r *PostgresRepository) ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders o JOIN users u ON u.id = o.user_id
		 WHERE o.user_id = $1
		 ORDER BY o.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select user orders: %w", err)
	}

	return collectOrders(rows)
}

// GetOrderByID возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrderByID(ctx context.Context, id int64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+`
		 FROM orders o JOIN users u ON u.id = o.user_id
		 WHERE o.id = $1`,
		id,
	)

	o, err := scanOrder(row)
	if err != nil {
		return nil, notFoundOr(err, "get order")
	}
	return o, nil
}

// GetOrderForUser возвращает заказ, только если он принадлежит указанному пользователю.
func (r *PostgresRepository) GetOrderForUser(ctx context.Context, userID, id int64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+`
		 FROM orders o JOIN users u ON u.id = o.user_id
		 WHERE o.id = $1 AND o.user_id = $2`,
		id, userID,
	)

	o, err := scanOrder(row)
	if err != nil {
		return nil, notFoundOr(err, "get user order")
	}
	return o, nil
}

// UpdateOrderDetails изменяет количество, размер и вкус заказа. Статус не меняется.
func (r *PostgresRepository) UpdateOrderDetails(ctx context.Context, id int64, quantity int, size model.PizzaSize, flavour model.Flavour) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`WITH o AS (
			UPDATE orders SET quantity = $2, pizza_size = $3, flavour = $4
			WHERE id = $1
			RETURNING *
		 )
		 SELECT `+orderColumns+` FROM o JOIN users u ON u.id = o.user_id`,
		id, quantity, string(size), string(flavour),
	)

	o, err := scanOrder(row)
	if err != nil {
		return nil, notFoundOr(err, "update order")
	}
	return o, nil
}

// UpdateOrderStatus устанавливает статус заказа без проверки допустимости перехода.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`WITH o AS (
			UPDATE orders SET order_status = $2
			WHERE id = $1
			RETURNING *
		 )
		 SELECT `+orderColumns+` FROM o JOIN users u ON u.id = o.user_id`,
		id, string(status),
	)

	o, err := scanOrder(row)
	if err != nil {
		return nil, notFoundOr(err, "update order status")
	}
	return o, nil
}

// DeleteOrder удаляет заказ и возвращает его состояние на момент удаления.
func (r *PostgresRepository) DeleteOrder(ctx context.Context, id int64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`WITH o AS (
			DELETE FROM orders WHERE id = $1
			RETURNING *
		 )
		 SELECT `+orderColumns+` FROM o JOIN users u ON u.id = o.user_id`,
		id,
	)

	o, err := scanOrder(row)
	if err != nil {
		return nil, notFoundOr(err, "delete order")
	}
	return o, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*model.Order, error) {
	var (
		o       model.Order
		owner   model.User
		size    string
		flavour string
		status  string
	)

	err := row.Scan(
		&o.ID, &o.Quantity, &size, &flavour, &status, &o.UserID, &o.CreatedAt,
		&owner.ID, &owner.Username, &owner.Email, &owner.IsStaff, &owner.IsActive, &owner.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.PizzaSize = model.PizzaSize(size)
	o.Flavour = model.Flavour(flavour)
	o.Status = model.OrderStatus(status)
	o.Owner = &owner

	return &o, nil
}

func collectOrders(rows pgx.Rows) ([]model.Order, error) {
	defer rows.Close()

	orders := make([]model.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrOrderNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
