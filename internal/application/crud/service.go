package crud

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/saaskit/scaffold/internal/domain/shared"
	"github.com/saaskit/scaffold/internal/infrastructure/persistence/models"
	"github.com/saaskit/scaffold/internal/infrastructure/session"
)

// Service implements create, read, update, delete and list operations for a
// record type T keyed by K. C, U and O are the create input, update input and
// output shapes; a Mapper converts between them and the record. Concrete
// application services embed a Service and add their own operations on top.
//
// Every query runs through the ambient pipeline, so tenant filtering, audit
// stamping and soft-delete conversion apply without the service asking for
// them.
type Service[T any, K comparable, C any, U any, O any] struct {
	db       *gorm.DB
	mapper   Mapper[T, C, U, O]
	validate *validator.Validate
	log      *zap.Logger
}

// NewService wires a Service for one record type. Pass nil for log to
// disable logging.
func NewService[T any, K comparable, C any, U any, O any](
	db *gorm.DB,
	mapper Mapper[T, C, U, O],
	log *zap.Logger,
) *Service[T, K, C, U, O] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service[T, K, C, U, O]{
		db:       db,
		mapper:   mapper,
		validate: validator.New(),
		log:      log,
	}
}

// DB exposes the underlying handle for embedding services that need raw
// queries.
func (s *Service[T, K, C, U, O]) DB() *gorm.DB {
	return s.db
}

// Create validates the input, builds a record through the mapper and inserts
// it. Identity, audit fields, tenant ownership and the concurrency stamp are
// assigned by the record constructors and the save pipeline, not the input.
func (s *Service[T, K, C, U, O]) Create(ctx context.Context, in C) (Ack[K], error) {
	if err := s.validateInput(in); err != nil {
		return Ack[K]{}, err
	}
	rec, err := s.mapper.NewRecord(ctx, in)
	if err != nil {
		return Ack[K]{}, err
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return Ack[K]{}, fmt.Errorf("create record: %w", err)
	}
	s.log.Debug("record created", zap.Any("id", recordID[K](rec)))
	return s.ack(rec), nil
}

// Get loads a single visible record by id.
func (s *Service[T, K, C, U, O]) Get(ctx context.Context, id K) (O, error) {
	var out O
	rec, err := s.find(ctx, id)
	if err != nil {
		return out, err
	}
	return s.mapper.Output(rec), nil
}

// Update loads the record, rejects stale concurrency stamps, applies the
// update input and writes the result under a fresh stamp. The write is
// guarded by the previously stored stamp; losing the guard to a concurrent
// writer reports a conflict.
func (s *Service[T, K, C, U, O]) Update(ctx context.Context, id K, in U) (Ack[K], error) {
	if err := s.validateInput(in); err != nil {
		return Ack[K]{}, err
	}
	rec, err := s.find(ctx, id)
	if err != nil {
		return Ack[K]{}, err
	}

	stamped, hasStamp := any(rec).(models.ConcurrencyStamped)
	prevStamp := ""
	if hasStamp {
		prevStamp = stamped.GetConcurrencyStamp()
		if carrier, ok := any(in).(ConcurrencyStampCarrier); ok {
			if submitted := carrier.GetConcurrencyStamp(); submitted != "" && submitted != prevStamp {
				return Ack[K]{}, shared.ErrConcurrencyConflict
			}
		}
	}

	if err := s.mapper.ApplyUpdate(ctx, rec, in); err != nil {
		return Ack[K]{}, err
	}

	if hasStamp {
		stamped.SetConcurrencyStamp(models.NewConcurrencyStamp())
		tx := s.db.WithContext(ctx).
			Model(rec).
			Where("concurrency_stamp = ?", prevStamp).
			Select("*").
			Omit("id", "created_at", "created_by").
			Updates(rec)
		if tx.Error != nil {
			return Ack[K]{}, fmt.Errorf("update record: %w", tx.Error)
		}
		if tx.RowsAffected == 0 {
			return Ack[K]{}, shared.ErrConcurrencyConflict
		}
	} else {
		if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
			return Ack[K]{}, fmt.Errorf("update record: %w", err)
		}
	}

	s.log.Debug("record updated", zap.Any("id", id))
	return s.ack(rec), nil
}

// GetFilteredList returns visible records matching the scopes, ordered by
// creation time descending when the record type carries creation audit, and
// bounded by the page input.
func (s *Service[T, K, C, U, O]) GetFilteredList(ctx context.Context, page PageInput, scopes ...Scope) ([]O, error) {
	var recs []T
	q := applyPaging(s.applyOrdering(s.scoped(ctx, scopes...)), page)
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	out := make([]O, len(recs))
	for i := range recs {
		out[i] = s.mapper.Output(&recs[i])
	}
	return out, nil
}

// GetFilteredPagedList returns one page of records plus the total and
// filtered counts. Counts respect tenant and soft-delete filtering the same
// way the items do.
func (s *Service[T, K, C, U, O]) GetFilteredPagedList(ctx context.Context, page PageInput, scopes ...Scope) (PagedResult[O], error) {
	var result PagedResult[O]
	var model T

	if err := s.db.WithContext(ctx).Model(&model).Count(&result.TotalCount).Error; err != nil {
		return result, fmt.Errorf("count records: %w", err)
	}
	if err := s.scoped(ctx, scopes...).Model(&model).Count(&result.FilteredCount).Error; err != nil {
		return result, fmt.Errorf("count filtered records: %w", err)
	}

	items, err := s.GetFilteredList(ctx, page, scopes...)
	if err != nil {
		return result, err
	}
	result.Items = items
	return result, nil
}

// SoftDelete flags a soft-deletable record as deleted, or removes the row
// for record types without the facet. Deleting an already flagged record is
// a no-op; deleting a record that never existed reports not found.
func (s *Service[T, K, C, U, O]) SoftDelete(ctx context.Context, id K) error {
	rec, err := s.find(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) && s.flaggedDeleted(ctx, id) {
			return nil
		}
		return err
	}
	if err := s.db.WithContext(ctx).Delete(rec).Error; err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	s.log.Debug("record deleted", zap.Any("id", id))
	return nil
}

// HardDelete removes the row regardless of its deletion flag.
func (s *Service[T, K, C, U, O]) HardDelete(ctx context.Context, id K) error {
	restore := session.DisableSoftDeleteFilter(ctx)
	defer restore()

	rec, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Unscoped().Delete(rec).Error; err != nil {
		return fmt.Errorf("hard delete record: %w", err)
	}
	s.log.Debug("record hard deleted", zap.Any("id", id))
	return nil
}

func (s *Service[T, K, C, U, O]) find(ctx context.Context, id K) (*T, error) {
	mustID(id)
	var rec T
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("load record: %w", err)
	}
	return &rec, nil
}

// flaggedDeleted reports whether the row exists but is hidden by the
// soft-delete filter.
func (s *Service[T, K, C, U, O]) flaggedDeleted(ctx context.Context, id K) bool {
	if !s.capabilities().SoftDelete {
		return false
	}
	restore := session.DisableSoftDeleteFilter(ctx)
	defer restore()

	var model T
	var count int64
	if err := s.db.WithContext(ctx).Model(&model).Where("id = ?", id).Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}

func (s *Service[T, K, C, U, O]) scoped(ctx context.Context, scopes ...Scope) *gorm.DB {
	q := s.db.WithContext(ctx)
	for _, scope := range scopes {
		q = scope(q)
	}
	return q
}

func (s *Service[T, K, C, U, O]) applyOrdering(q *gorm.DB) *gorm.DB {
	if s.capabilities().CreationAudit {
		return q.Order("created_at DESC")
	}
	return q
}

func (s *Service[T, K, C, U, O]) capabilities() models.Capabilities {
	return models.CapabilitiesOf(reflect.TypeOf((*T)(nil)))
}

func (s *Service[T, K, C, U, O]) ack(rec *T) Ack[K] {
	ack := Ack[K]{ID: recordID[K](rec)}
	if stamped, ok := any(rec).(models.ConcurrencyStamped); ok {
		ack.ConcurrencyStamp = stamped.GetConcurrencyStamp()
	}
	return ack
}

// validateInput runs struct validation tags on the input. Non-struct inputs
// pass through untouched.
func (s *Service[T, K, C, U, O]) validateInput(in any) error {
	v := reflect.ValueOf(in)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	if err := s.validate.Struct(v.Interface()); err != nil {
		return shared.NewDomainError(shared.ErrInvalidInput.Code, err.Error())
	}
	return nil
}

func applyPaging(q *gorm.DB, page PageInput) *gorm.DB {
	if page.SkipCount > 0 {
		q = q.Offset(page.SkipCount)
	}
	if page.MaxResultCount > 0 {
		q = q.Limit(page.MaxResultCount)
	}
	return q
}

func recordID[K comparable](rec any) K {
	keyed, ok := rec.(Keyed[K])
	if !ok {
		panic(fmt.Sprintf("crud: record type %T does not expose key type", rec))
	}
	return keyed.GetID()
}

func mustID[K comparable](id K) {
	var zero K
	if id == zero {
		panic("crud: id must not be the zero value")
	}
}
