package crud_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/saaskit/scaffold/internal/application/crud"
	"github.com/saaskit/scaffold/internal/domain/shared"
	"github.com/saaskit/scaffold/internal/infrastructure/auth"
	"github.com/saaskit/scaffold/internal/infrastructure/persistence/models"
	"github.com/saaskit/scaffold/internal/infrastructure/persistence/pipeline"
	"github.com/saaskit/scaffold/internal/infrastructure/session"
)

type Ticket struct {
	models.TenantAggregateModel
	Title string
	Price decimal.Decimal `gorm:"type:numeric"`
}

type CreateTicketInput struct {
	Title string          `validate:"required"`
	Price decimal.Decimal `validate:"-"`
}

type UpdateTicketInput struct {
	Title            string `validate:"required"`
	Price            decimal.Decimal
	ConcurrencyStamp string
}

func (in UpdateTicketInput) GetConcurrencyStamp() string { return in.ConcurrencyStamp }

type TicketOutput struct {
	ID               uuid.UUID
	Title            string
	Price            decimal.Decimal
	ConcurrencyStamp string
}

type ticketMapper struct{}

func (ticketMapper) NewRecord(_ context.Context, in CreateTicketInput) (*Ticket, error) {
	return &Ticket{
		TenantAggregateModel: models.NewTenantAggregateModel(),
		Title:                in.Title,
		Price:                in.Price,
	}, nil
}

func (ticketMapper) ApplyUpdate(_ context.Context, rec *Ticket, in UpdateTicketInput) error {
	rec.Title = in.Title
	rec.Price = in.Price
	return nil
}

func (ticketMapper) Output(rec *Ticket) TicketOutput {
	return TicketOutput{
		ID:               rec.ID,
		Title:            rec.Title,
		Price:            rec.Price,
		ConcurrencyStamp: rec.GetConcurrencyStamp(),
	}
}

type ticketService = crud.Service[Ticket, uuid.UUID, CreateTicketInput, UpdateTicketInput, TicketOutput]

func newService(t *testing.T) *ticketService {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, pipeline.Register(db, nil))
	require.NoError(t, db.AutoMigrate(&Ticket{}))
	return crud.NewService[Ticket, uuid.UUID, CreateTicketInput, UpdateTicketInput, TicketOutput](db, ticketMapper{}, nil)
}

func sessionCtx(t *testing.T, tenantID *uuid.UUID) context.Context {
	t.Helper()
	ctx := session.NewContext(context.Background())
	claims := &auth.Claims{UserID: uuid.NewString()}
	if tenantID != nil {
		claims.TenantID = tenantID.String()
	}
	require.NoError(t, session.SetClaims(ctx, claims))
	return ctx
}

func TestServiceCreate(t *testing.T) {
	svc := newService(t)
	ctx := sessionCtx(t, nil)

	t.Run("persists and acknowledges", func(t *testing.T) {
		ack, err := svc.Create(ctx, CreateTicketInput{Title: "first", Price: decimal.NewFromInt(5)})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, ack.ID)
		assert.NotEmpty(t, ack.ConcurrencyStamp)

		out, err := svc.Get(ctx, ack.ID)
		require.NoError(t, err)
		assert.Equal(t, "first", out.Title)
		assert.True(t, decimal.NewFromInt(5).Equal(out.Price))
		assert.Equal(t, ack.ConcurrencyStamp, out.ConcurrencyStamp)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		_, err := svc.Create(ctx, CreateTicketInput{})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestServiceGet(t *testing.T) {
	svc := newService(t)
	ctx := sessionCtx(t, nil)

	t.Run("missing record reports not found", func(t *testing.T) {
		_, err := svc.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("zero id panics", func(t *testing.T) {
		assert.Panics(t, func() {
			_, _ = svc.Get(ctx, uuid.Nil)
		})
	})
}

func TestServiceUpdate(t *testing.T) {
	t.Run("rotates the stamp", func(t *testing.T) {
		svc := newService(t)
		ctx := sessionCtx(t, nil)
		created, err := svc.Create(ctx, CreateTicketInput{Title: "v1"})
		require.NoError(t, err)

		updated, err := svc.Update(ctx, created.ID, UpdateTicketInput{
			Title:            "v2",
			ConcurrencyStamp: created.ConcurrencyStamp,
		})
		require.NoError(t, err)
		assert.NotEqual(t, created.ConcurrencyStamp, updated.ConcurrencyStamp)

		out, err := svc.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "v2", out.Title)
		assert.Equal(t, updated.ConcurrencyStamp, out.ConcurrencyStamp)
	})

	t.Run("rejects a stale stamp", func(t *testing.T) {
		svc := newService(t)
		ctx := sessionCtx(t, nil)
		created, err := svc.Create(ctx, CreateTicketInput{Title: "v1"})
		require.NoError(t, err)

		_, err = svc.Update(ctx, created.ID, UpdateTicketInput{
			Title:            "v2",
			ConcurrencyStamp: created.ConcurrencyStamp,
		})
		require.NoError(t, err)

		_, err = svc.Update(ctx, created.ID, UpdateTicketInput{
			Title:            "v3",
			ConcurrencyStamp: created.ConcurrencyStamp,
		})
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})

	t.Run("empty stamp skips the staleness check", func(t *testing.T) {
		svc := newService(t)
		ctx := sessionCtx(t, nil)
		created, err := svc.Create(ctx, CreateTicketInput{Title: "v1"})
		require.NoError(t, err)

		_, err = svc.Update(ctx, created.ID, UpdateTicketInput{Title: "v2"})
		assert.NoError(t, err)
	})

	t.Run("missing record reports not found", func(t *testing.T) {
		svc := newService(t)
		ctx := sessionCtx(t, nil)
		_, err := svc.Update(ctx, uuid.New(), UpdateTicketInput{Title: "x"})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		svc := newService(t)
		ctx := sessionCtx(t, nil)
		created, err := svc.Create(ctx, CreateTicketInput{Title: "v1"})
		require.NoError(t, err)

		_, err = svc.Update(ctx, created.ID, UpdateTicketInput{})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestServiceLists(t *testing.T) {
	svc := newService(t)
	ctx := sessionCtx(t, nil)

	for _, title := range []string{"alpha", "beta", "gamma"} {
		_, err := svc.Create(ctx, CreateTicketInput{Title: title})
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	t.Run("orders newest first", func(t *testing.T) {
		out, err := svc.GetFilteredList(ctx, crud.PageInput{})
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.Equal(t, "gamma", out[0].Title)
		assert.Equal(t, "alpha", out[2].Title)
	})

	t.Run("applies paging bounds", func(t *testing.T) {
		out, err := svc.GetFilteredList(ctx, crud.PageInput{SkipCount: 1, MaxResultCount: 1})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "beta", out[0].Title)
	})

	t.Run("applies caller scopes", func(t *testing.T) {
		out, err := svc.GetFilteredList(ctx, crud.PageInput{}, func(q *gorm.DB) *gorm.DB {
			return q.Where("title = ?", "beta")
		})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "beta", out[0].Title)
	})

	t.Run("paged list reports both counts", func(t *testing.T) {
		page, err := svc.GetFilteredPagedList(ctx, crud.PageInput{MaxResultCount: 10}, func(q *gorm.DB) *gorm.DB {
			return q.Where("title LIKE ?", "%a%")
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), page.TotalCount)
		assert.Equal(t, int64(3), page.FilteredCount)
		assert.Len(t, page.Items, 3)

		page, err = svc.GetFilteredPagedList(ctx, crud.PageInput{}, func(q *gorm.DB) *gorm.DB {
			return q.Where("title = ?", "beta")
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), page.TotalCount)
		assert.Equal(t, int64(1), page.FilteredCount)
		assert.Len(t, page.Items, 1)
	})
}

func TestServiceSoftDelete(t *testing.T) {
	svc := newService(t)
	ctx := sessionCtx(t, nil)

	created, err := svc.Create(ctx, CreateTicketInput{Title: "doomed"})
	require.NoError(t, err)

	t.Run("hides the record", func(t *testing.T) {
		require.NoError(t, svc.SoftDelete(ctx, created.ID))

		_, err := svc.Get(ctx, created.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("repeat delete is a no-op", func(t *testing.T) {
		assert.NoError(t, svc.SoftDelete(ctx, created.ID))
	})

	t.Run("never existed reports not found", func(t *testing.T) {
		assert.ErrorIs(t, svc.SoftDelete(ctx, uuid.New()), shared.ErrNotFound)
	})
}

func TestServiceHardDelete(t *testing.T) {
	svc := newService(t)
	ctx := sessionCtx(t, nil)

	t.Run("removes a flagged row", func(t *testing.T) {
		created, err := svc.Create(ctx, CreateTicketInput{Title: "gone"})
		require.NoError(t, err)
		require.NoError(t, svc.SoftDelete(ctx, created.ID))

		require.NoError(t, svc.HardDelete(ctx, created.ID))

		var count int64
		require.NoError(t, svc.DB().WithContext(ctx).Model(&Ticket{}).Unscoped().Count(&count).Error)
		assert.Equal(t, int64(0), count)
	})

	t.Run("removes a live row", func(t *testing.T) {
		created, err := svc.Create(ctx, CreateTicketInput{Title: "direct"})
		require.NoError(t, err)

		require.NoError(t, svc.HardDelete(ctx, created.ID))
		_, err = svc.Get(ctx, created.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("missing record reports not found", func(t *testing.T) {
		assert.ErrorIs(t, svc.HardDelete(ctx, uuid.New()), shared.ErrNotFound)
	})

	t.Run("gate re-engages after the call", func(t *testing.T) {
		assert.True(t, session.SoftDeleteFilterEnabled(ctx))
	})
}

func TestServiceTenantIsolation(t *testing.T) {
	svc := newService(t)
	tenantA, tenantB := uuid.New(), uuid.New()
	ctxA := sessionCtx(t, &tenantA)
	ctxB := sessionCtx(t, &tenantB)

	created, err := svc.Create(ctxA, CreateTicketInput{Title: "private"})
	require.NoError(t, err)

	t.Run("other tenant cannot read", func(t *testing.T) {
		_, err := svc.Get(ctxB, created.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("other tenant cannot update", func(t *testing.T) {
		_, err := svc.Update(ctxB, created.ID, UpdateTicketInput{Title: "hijack"})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("other tenant cannot delete", func(t *testing.T) {
		assert.ErrorIs(t, svc.SoftDelete(ctxB, created.ID), shared.ErrNotFound)
	})

	t.Run("lists are scoped per tenant", func(t *testing.T) {
		outA, err := svc.GetFilteredList(ctxA, crud.PageInput{})
		require.NoError(t, err)
		assert.Len(t, outA, 1)

		outB, err := svc.GetFilteredList(ctxB, crud.PageInput{})
		require.NoError(t, err)
		assert.Empty(t, outB)
	})

	t.Run("owner still has access", func(t *testing.T) {
		out, err := svc.Get(ctxA, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "private", out.Title)
	})
}
