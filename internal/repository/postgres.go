// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/bundlemart/internal/ledger"
	"github.com/mmeshcher/bundlemart/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже занятым email.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrPurchaseNotFound возвращается, если покупка не найдена.
	ErrPurchaseNotFound = errors.New("purchase not found")
	// ErrPendingPaymentNotFound возвращается, если ожидающее пополнение не найдено или уже зачислено.
	ErrPendingPaymentNotFound = errors.New("pending payment not found")
	// ErrInsufficientBalance возвращается при попытке списания суммы, превышающей баланс.
	ErrInsufficientBalance = ledger.ErrInsufficientFunds
)

// InsufficientFundsError сообщает о нехватке средств вместе с текущим балансом.
type InsufficientFundsError struct {
	Balance decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance: current %s", e.Balance.StringFixed(ledger.Precision))
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientBalance
}

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

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(delays) {
			break
		}

		timer := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	// Конфликты сериализации и дедлоки возникают при параллельных операциях с одним кошельком
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// NewUser содержит данные для регистрации пользователя.
type NewUser struct {
	Email        string
	Username     string
	Mobile       string
	Gender       string
	PasswordHash []byte
}

// CreateUser создаёт нового пользователя с пустым кошельком.
func (r *PostgresRepository) CreateUser(ctx context.Context, u NewUser) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, username, mobile, gender, password_hash)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		u.Email, u.Username, u.Mobile, u.Gender, u.PasswordHash,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, u.Email)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

const userColumns = `id, email, username, mobile, gender, password_hash, balance, profile_image, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.Mobile, &u.Gender,
		&u.PasswordHash, &u.Balance, &u.ProfileImage, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// GetUserByEmail возвращает пользователя по email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	))
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		userID,
	))
}

// ProfileUpdate содержит изменяемые поля профиля. PasswordHash == nil оставляет пароль прежним.
type ProfileUpdate struct {
	Email        string
	Username     string
	Mobile       string
	Gender       string
	ProfileImage string
	PasswordHash []byte
}

// UpdateUserProfile обновляет профиль пользователя.
func (r *PostgresRepository) UpdateUserProfile(ctx context.Context, userID int64, p ProfileUpdate) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET email = $2, username = $3, mobile = $4, gender = $5, profile_image = $6,
		     password_hash = COALESCE($7, password_hash)
		 WHERE id = $1`,
		userID, p.Email, p.Username, p.Mobile, p.Gender, p.ProfileImage, p.PasswordHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrUserExists, p.Email)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteUser удаляет пользователя вместе с покупками, пополнениями и транзакциями.
func (r *PostgresRepository) DeleteUser(ctx context.Context, userID int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetBalance возвращает баланс кошелька пользователя.
func (r *PostgresRepository) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT balance FROM users WHERE id = $1`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// lockBalance блокирует строку пользователя до конца транзакции и возвращает баланс.
func lockBalance(ctx context.Context, tx pgx.Tx, userID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRow(ctx, `SELECT balance FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("lock user for update: %w", err)
	}
	return balance, nil
}

func setBalance(ctx context.Context, tx pgx.Tx, userID int64, balance decimal.Decimal) error {
	if _, err := tx.Exec(ctx, `UPDATE users SET balance = $2 WHERE id = $1`, userID, balance); err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	return nil
}

// NewPurchase содержит данные покупки пакета.
type NewPurchase struct {
	Provider string
	Bundle   string
	Number   string
	Amount   decimal.Decimal
}

// CreatePurchase списывает стоимость пакета с кошелька и сохраняет покупку в одной транзакции.
// Строка пользователя блокируется, поэтому параллельные покупки не уводят баланс в минус.
func (r *PostgresRepository) CreatePurchase(ctx context.Context, userID int64, p NewPurchase) (*model.Purchase, error) {
	var purchase *model.Purchase

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		balance, err := lockBalance(ctx, tx, userID)
		if err != nil {
			return err
		}

		newBalance, err := ledger.Debit(balance, p.Amount)
		if err != nil {
			return &InsufficientFundsError{Balance: balance}
		}

		if err := setBalance(ctx, tx, userID, newBalance); err != nil {
			return err
		}

		res := model.Purchase{
			UserID:   userID,
			Provider: p.Provider,
			Bundle:   p.Bundle,
			Number:   p.Number,
			Amount:   p.Amount,
			Status:   model.PurchaseStatusPaymentCompleted,
		}

		var paidAt time.Time
		err = tx.QueryRow(ctx,
			`INSERT INTO purchases (user_id, provider, bundle, number, amount, status, created_at, paid_at)
			 VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			 RETURNING id, created_at, paid_at`,
			userID, p.Provider, p.Bundle, p.Number, p.Amount, string(res.Status),
		).Scan(&res.ID, &res.CreatedAt, &paidAt)
		if err != nil {
			return fmt.Errorf("insert purchase: %w", err)
		}
		res.PaidAt = &paidAt

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		purchase = &res
		return nil
	})
	if err != nil {
		return nil, err
	}

	return purchase, nil
}

const purchaseColumns = `p.id, p.user_id, u.email, p.provider, p.bundle, p.number, p.amount, p.status,
	p.created_at, p.paid_at, p.credited_at`

func collectPurchases(rows pgx.Rows) ([]model.Purchase, error) {
	defer rows.Close()

	var res []model.Purchase
	for rows.Next() {
		var (
			p      model.Purchase
			status string
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Email, &p.Provider, &p.Bundle, &p.Number,
			&p.Amount, &status, &p.CreatedAt, &p.PaidAt, &p.CreditedAt); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		p.Status = model.PurchaseStatus(status)
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetPurchasesByUser возвращает покупки пользователя, начиная с последней.
func (r *PostgresRepository) GetPurchasesByUser(ctx context.Context, userID int64) ([]model.Purchase, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+purchaseColumns+`
		 FROM purchases p JOIN users u ON u.id = p.user_id
		 WHERE p.user_id = $1
		 ORDER BY p.id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select purchases: %w", err)
	}
	return collectPurchases(rows)
}

// GetAllPurchases возвращает все покупки в порядке убывания идентификатора.
func (r *PostgresRepository) GetAllPurchases(ctx context.Context) ([]model.Purchase, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+purchaseColumns+`
		 FROM purchases p JOIN users u ON u.id = p.user_id
		 ORDER BY p.id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select purchases: %w", err)
	}
	return collectPurchases(rows)
}

// CreditPurchase переводит покупку в статус credited и отмечает время выполнения.
// Повторный вызов лишь обновляет отметку времени.
func (r *PostgresRepository) CreditPurchase(ctx context.Context, purchaseID int64, at time.Time) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE purchases SET status = $2, credited_at = $3 WHERE id = $1`,
		purchaseID, string(model.PurchaseStatusCredited), at,
	)
	if err != nil {
		return fmt.Errorf("credit purchase: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrPurchaseNotFound
	}
	return nil
}

// CreatePendingPayment сохраняет пополнение, ожидающее подтверждения шлюза.
func (r *PostgresRepository) CreatePendingPayment(ctx context.Context, p model.PendingPayment) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO pending_payments (reference, user_id, email, amount, provider, number)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.Reference, p.UserID, p.Email, p.Amount, p.Provider, p.Number,
	)
	if err != nil {
		return fmt.Errorf("insert pending payment: %w", err)
	}
	return nil
}

// GetPendingPayment возвращает ожидающее пополнение по reference шлюза.
func (r *PostgresRepository) GetPendingPayment(ctx context.Context, reference string) (*model.PendingPayment, error) {
	var p model.PendingPayment
	err := r.pool.QueryRow(ctx,
		`SELECT reference, user_id, email, amount, provider, number, created_at
		 FROM pending_payments WHERE reference = $1`,
		reference,
	).Scan(&p.Reference, &p.UserID, &p.Email, &p.Amount, &p.Provider, &p.Number, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPendingPaymentNotFound
		}
		return nil, fmt.Errorf("get pending payment: %w", err)
	}
	return &p, nil
}

// CompletePendingPayment зачисляет подтверждённое пополнение: удаляет ожидающую запись,
// увеличивает баланс и создаёт транзакцию. Всё выполняется в одной транзакции БД,
// поэтому один reference зачисляется не более одного раза.
func (r *PostgresRepository) CompletePendingPayment(ctx context.Context, reference string) (*model.Transaction, decimal.Decimal, error) {
	var (
		txn     *model.Transaction
		balance decimal.Decimal
	)

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		res := model.Transaction{
			Reference: reference,
			Status:    model.TransactionStatusSuccess,
		}

		err = tx.QueryRow(ctx,
			`DELETE FROM pending_payments WHERE reference = $1
			 RETURNING user_id, amount, provider, number`,
			reference,
		).Scan(&res.UserID, &res.Amount, &res.Provider, &res.Number)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrPendingPaymentNotFound
			}
			return fmt.Errorf("consume pending payment: %w", err)
		}

		current, err := lockBalance(ctx, tx, res.UserID)
		if err != nil {
			return err
		}

		newBalance := ledger.Credit(current, res.Amount)
		if !ledger.InRange(newBalance) {
			return fmt.Errorf("credit %s: %w", res.Amount.StringFixed(ledger.Precision), ledger.ErrAmountOutOfRange)
		}
		if err := setBalance(ctx, tx, res.UserID, newBalance); err != nil {
			return err
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO transactions (user_id, amount, provider, number, reference, status)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id, created_at`,
			res.UserID, res.Amount, res.Provider, res.Number, res.Reference, res.Status,
		).Scan(&res.ID, &res.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		txn = &res
		balance = newBalance
		return nil
	})
	if err != nil {
		return nil, decimal.Zero, err
	}

	return txn, balance, nil
}

// DeletePendingPaymentsBefore удаляет ожидающие пополнения, созданные раньше cutoff.
func (r *PostgresRepository) DeletePendingPaymentsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM pending_payments WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired pending payments: %w", err)
	}
	return cmdTag.RowsAffected(), nil
}

// GetTransactionsByUser возвращает историю пополнений пользователя, начиная с последнего.
func (r *PostgresRepository) GetTransactionsByUser(ctx context.Context, userID int64) ([]model.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, amount, provider, number, reference, status, created_at
		 FROM transactions
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var res []model.Transaction
	for rows.Next() {
		var t model.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Provider, &t.Number,
			&t.Reference, &t.Status, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		res = append(res, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
