package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

const dsnPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)"

type Repository struct {
	db *gorm.DB
}

var _ domain.Repository = (*Repository)(nil)

// Open opens the sqlite database at path with foreign keys enforced.
func Open(path string) (*gorm.DB, error) {
	dsn := path
	if !strings.Contains(dsn, "_pragma=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + dsnPragmas
	}

	db, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        dsn,
	}, &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer; one connection keeps transactions from
	// tripping over SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) InTx(ctx context.Context, fn func(domain.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// translate maps driver and gorm failures onto domain error kinds.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NotFound(what)
	}
	var derr *domain.Error
	if errors.As(err, &derr) {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint"):
		return &domain.Error{Kind: domain.KindConflict, Msg: what + " already exists", Err: err}
	case strings.Contains(msg, "foreign key constraint"):
		return &domain.Error{Kind: domain.KindValidation, Msg: "referenced record not found", MissingRef: true, Err: err}
	case strings.Contains(msg, "check constraint"):
		return &domain.Error{Kind: domain.KindValidation, Msg: "invalid " + what, Err: err}
	}
	return fmt.Errorf("%s: %w", what, err)
}

func paginate(q *gorm.DB, page domain.Page) *gorm.DB {
	if page.Offset > 0 {
		q = q.Offset(page.Offset)
	}
	if page.Limit > 0 {
		q = q.Limit(page.Limit)
	}
	return q
}

// updateRow writes every column of model except the immutable ones.
func (r *Repository) updateRow(ctx context.Context, model any, what string, omit ...string) error {
	omit = append([]string{"id", "created_at"}, omit...)
	res := r.db.WithContext(ctx).Model(model).Select("*").Omit(omit...).Updates(model)
	if res.Error != nil {
		return translate(res.Error, what)
	}
	if res.RowsAffected == 0 {
		return domain.NotFound(what)
	}
	return nil
}

// updateVersioned is updateRow guarded by the stored version. The model
// must already carry the next version.
func (r *Repository) updateVersioned(ctx context.Context, model any, id string, expected int, what string) error {
	res := r.db.WithContext(ctx).Model(model).
		Where("version = ?", expected).
		Select("*").Omit("id", "created_at", "created_by").
		Updates(model)
	if res.Error != nil {
		return translate(res.Error, what)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return translate(err, what)
	}
	if count == 0 {
		return domain.NotFound(what)
	}
	return domain.Conflict("%s was modified concurrently (expected version %d)", what, expected)
}

func (r *Repository) deleteByID(ctx context.Context, model any, id, what string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(model)
	if res.Error != nil {
		return translate(res.Error, what)
	}
	if res.RowsAffected == 0 {
		return domain.NotFound(what)
	}
	return nil
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func (r *Repository) CreateUser(ctx context.Context, value domain.User) (domain.User, error) {
	m := UserModel{
		ID:             newID(value.ID),
		Email:          strings.ToLower(strings.TrimSpace(value.Email)),
		FullName:       value.FullName,
		HashedPassword: value.PasswordHash,
		Role:           string(value.Role),
		IsActive:       value.IsActive,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.User{}, translate(err, "user")
	}
	return toDomainUser(m), nil
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return domain.User{}, translate(err, "user")
	}
	return toDomainUser(m), nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&m).Error; err != nil {
		return domain.User{}, translate(err, "user")
	}
	return toDomainUser(m), nil
}

func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&UserModel{}).Count(&count).Error
	return count, err
}

func toDomainUser(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		FullName:     m.FullName,
		PasswordHash: m.HashedPassword,
		Role:         domain.UserRole(m.Role),
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
