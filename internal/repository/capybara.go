package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/capystore/internal/domain/model"
)

// CapybaraRepository — интерфейс работы с таблицей capybaras.
type CapybaraRepository interface {
	// Insert создаёт запись в состоянии pending.
	Insert(ctx context.Context, c *model.Capybara) error
	// GetByID возвращает запись по идентификатору.
	GetByID(ctx context.Context, id string) (*model.Capybara, error)
	// FindByFingerprint возвращает запись с указанным отпечатком (любого состояния).
	FindByFingerprint(ctx context.Context, fingerprint string) (*model.Capybara, error)
	// Approve переводит pending-запись в approved, меняет имя и стирает email.
	Approve(ctx context.Context, id, name string) (*model.Capybara, error)
	// DeletePending удаляет pending-запись.
	DeletePending(ctx context.Context, id string) error
	// SamplePending возвращает до limit случайных pending-записей.
	SamplePending(ctx context.Context, limit int) ([]*model.Capybara, error)
	// CountRemaining — число одобренных и не использованных.
	CountRemaining(ctx context.Context) (int, error)
	// CountApproved — число одобренных.
	CountApproved(ctx context.Context) (int, error)
	// ListPendingBefore возвращает id pending-записей, созданных раньше before.
	ListPendingBefore(ctx context.Context, before time.Time) ([]string, error)
	// ExistingIDs возвращает подмножество ids, для которых есть запись.
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
}

// capybaraRepo — реализация CapybaraRepository.
type capybaraRepo struct {
	db DBTX
}

// NewCapybaraRepository создаёт репозиторий капибар.
func NewCapybaraRepository(db DBTX) CapybaraRepository {
	return &capybaraRepo{db: db}
}

const capybaraColumns = `id, created_at, used_at, approved, name, fingerprint,
	email, content_type, updated_at`

func scanCapybara(row pgx.Row) (*model.Capybara, error) {
	c := &model.Capybara{}
	err := row.Scan(
		&c.ID, &c.Created, &c.Used, &c.Approved, &c.Name, &c.Fingerprint,
		&c.Email, &c.ContentType, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *capybaraRepo) Insert(ctx context.Context, c *model.Capybara) error {
	query := `
		INSERT INTO capybaras (id, created_at, approved, name, fingerprint, email, content_type)
		VALUES ($1, $2, false, $3, $4, $5, $6)
		RETURNING updated_at`

	if c.Created.IsZero() {
		c.Created = time.Now().UTC()
	}
	err := r.db.QueryRow(ctx, query,
		c.ID, c.Created, c.Name, c.Fingerprint, c.Email, c.ContentType,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: капибара с таким id или отпечатком уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания записи капибары: %w", err)
	}
	c.Approved = false
	c.Used = nil
	return nil
}

func (r *capybaraRepo) GetByID(ctx context.Context, id string) (*model.Capybara, error) {
	query := `SELECT ` + capybaraColumns + ` FROM capybaras WHERE id = $1`

	c, err := scanCapybara(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения капибары: %w", err)
	}
	return c, nil
}

func (r *capybaraRepo) FindByFingerprint(ctx context.Context, fingerprint string) (*model.Capybara, error) {
	query := `SELECT ` + capybaraColumns + ` FROM capybaras WHERE fingerprint = $1`

	c, err := scanCapybara(r.db.QueryRow(ctx, query, fingerprint))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска по отпечатку: %w", err)
	}
	return c, nil
}

// Approve — условное обновление: срабатывает только для approved = false.
// Если запись есть, но уже одобрена, возвращается ErrStateChanged.
func (r *capybaraRepo) Approve(ctx context.Context, id, name string) (*model.Capybara, error) {
	query := `
		UPDATE capybaras
		SET approved = true, name = $2, email = NULL
		WHERE id = $1 AND approved = false
		RETURNING ` + capybaraColumns

	c, err := scanCapybara(r.db.QueryRow(ctx, query, id, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.resolveMissed(ctx, id)
		}
		return nil, fmt.Errorf("ошибка одобрения капибары: %w", err)
	}
	return c, nil
}

// DeletePending удаляет запись только в состоянии pending.
func (r *capybaraRepo) DeletePending(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM capybaras WHERE id = $1 AND approved = false`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления капибары: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.resolveMissed(ctx, id)
	}
	return nil
}

// resolveMissed определяет причину, по которой условный запрос не затронул строк.
func (r *capybaraRepo) resolveMissed(ctx context.Context, id string) error {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM capybaras WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("ошибка проверки существования капибары: %w", err)
	}
	if exists {
		return ErrStateChanged
	}
	return ErrNotFound
}

func (r *capybaraRepo) SamplePending(ctx context.Context, limit int) ([]*model.Capybara, error) {
	query := `SELECT ` + capybaraColumns + `
		FROM capybaras
		WHERE approved = false
		ORDER BY random()
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки на модерацию: %w", err)
	}
	defer rows.Close()

	var result []*model.Capybara
	for rows.Next() {
		c, err := scanCapybara(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования капибары: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *capybaraRepo) CountRemaining(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM capybaras WHERE approved = true AND used_at IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта оставшихся капибар: %w", err)
	}
	return n, nil
}

func (r *capybaraRepo) CountApproved(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM capybaras WHERE approved = true`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта одобренных капибар: %w", err)
	}
	return n, nil
}

func (r *capybaraRepo) ListPendingBefore(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM capybaras WHERE approved = false AND created_at < $1`, before)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения устаревших pending-записей: %w", err)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования id: %w", err)
	}
	return ids, nil
}

func (r *capybaraRepo) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}

	rows, err := r.db.Query(ctx, `SELECT id FROM capybaras WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки существования записей: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка сканирования id: %w", err)
		}
		existing[id] = true
	}
	return existing, rows.Err()
}
