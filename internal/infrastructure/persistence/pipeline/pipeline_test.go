package pipeline_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/saaskit/scaffold/internal/domain/shared"
	"github.com/saaskit/scaffold/internal/infrastructure/auth"
	"github.com/saaskit/scaffold/internal/infrastructure/event"
	"github.com/saaskit/scaffold/internal/infrastructure/persistence/models"
	"github.com/saaskit/scaffold/internal/infrastructure/persistence/pipeline"
	"github.com/saaskit/scaffold/internal/infrastructure/session"
)

// Ticket is the fixture record type exercising every facet.
type Ticket struct {
	models.TenantAggregateModel
	Title    string
	Price    decimal.Decimal `gorm:"type:numeric"`
	Comments []TicketComment `gorm:"foreignKey:TicketID"`
}

// TicketComment is the child fixture for association traversal.
type TicketComment struct {
	models.TenantAggregateModel
	TicketID uuid.UUID `gorm:"type:uuid;index"`
	Body     string
}

func newTicket(title string) *Ticket {
	return &Ticket{
		TenantAggregateModel: models.NewTenantAggregateModel(),
		Title:                title,
		Price:                decimal.NewFromInt(10),
	}
}

func newComment(ticketID uuid.UUID, body string) *TicketComment {
	return &TicketComment{
		TenantAggregateModel: models.NewTenantAggregateModel(),
		TicketID:             ticketID,
		Body:                 body,
	}
}

// captureHandler records every event it receives.
type captureHandler struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (h *captureHandler) Handle(_ context.Context, evt shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, evt)
	return nil
}

func (h *captureHandler) EventTypes() []string { return nil }

func (h *captureHandler) types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.events))
	for i, evt := range h.events {
		out[i] = evt.EventType()
	}
	return out
}

func newBus(t *testing.T, handlers ...shared.EventHandler) *event.InMemoryEventBus {
	t.Helper()
	bus := event.NewInMemoryEventBus(zap.NewNop())
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() { _ = bus.Stop(context.Background()) })
	for _, h := range handlers {
		bus.Subscribe(h)
	}
	return bus
}

func newTestDB(t *testing.T, publisher shared.EventPublisher) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, pipeline.Register(db, publisher))
	require.NoError(t, db.AutoMigrate(&Ticket{}, &TicketComment{}))
	return db
}

func sessionCtx(t *testing.T, userID uuid.UUID, tenantID *uuid.UUID) context.Context {
	t.Helper()
	ctx := session.NewContext(context.Background())
	claims := &auth.Claims{UserID: userID.String()}
	if tenantID != nil {
		claims.TenantID = tenantID.String()
	}
	require.NoError(t, session.SetClaims(ctx, claims))
	return ctx
}

func TestAuditStamping(t *testing.T) {
	db := newTestDB(t, nil)
	actor := uuid.New()
	ctx := sessionCtx(t, actor, nil)

	t.Run("create stamps time and actor", func(t *testing.T) {
		ticket := newTicket("create")
		require.NoError(t, db.WithContext(ctx).Create(ticket).Error)

		require.NotNil(t, ticket.CreatedAt)
		require.NotNil(t, ticket.CreatedBy)
		assert.Equal(t, actor, *ticket.CreatedBy)
		assert.Nil(t, ticket.UpdatedAt)

		var got Ticket
		require.NoError(t, db.WithContext(ctx).First(&got, "id = ?", ticket.ID).Error)
		assert.Nil(t, got.UpdatedAt)
		assert.Nil(t, got.UpdatedBy)
	})

	t.Run("create without actor leaves creator empty", func(t *testing.T) {
		anon := session.NewContext(context.Background())
		ticket := newTicket("anon")
		require.NoError(t, db.WithContext(anon).Create(ticket).Error)

		require.NotNil(t, ticket.CreatedAt)
		assert.Nil(t, ticket.CreatedBy)
	})

	t.Run("update stamps modification", func(t *testing.T) {
		ticket := newTicket("update")
		require.NoError(t, db.WithContext(ctx).Create(ticket).Error)

		ticket.Title = "changed"
		require.NoError(t, db.WithContext(ctx).Save(ticket).Error)

		require.NotNil(t, ticket.UpdatedAt)
		require.NotNil(t, ticket.UpdatedBy)
		assert.Equal(t, actor, *ticket.UpdatedBy)
	})

	t.Run("map update stamps modification columns", func(t *testing.T) {
		ticket := newTicket("map update")
		require.NoError(t, db.WithContext(ctx).Create(ticket).Error)

		require.NoError(t, db.WithContext(ctx).Model(&Ticket{}).
			Where("id = ?", ticket.ID).
			Updates(map[string]interface{}{"title": "via map"}).Error)

		var got Ticket
		require.NoError(t, db.WithContext(ctx).First(&got, "id = ?", ticket.ID).Error)
		assert.Equal(t, "via map", got.Title)
		require.NotNil(t, got.UpdatedAt)
		require.NotNil(t, got.UpdatedBy)
		assert.Equal(t, actor, *got.UpdatedBy)
	})

	t.Run("batch create stamps every record", func(t *testing.T) {
		tickets := []*Ticket{newTicket("a"), newTicket("b")}
		require.NoError(t, db.WithContext(ctx).Create(&tickets).Error)

		for _, ticket := range tickets {
			require.NotNil(t, ticket.CreatedAt)
			require.NotNil(t, ticket.CreatedBy)
		}
	})
}

func TestTenantStamping(t *testing.T) {
	db := newTestDB(t, nil)
	tenantID := uuid.New()
	ctx := sessionCtx(t, uuid.New(), &tenantID)

	t.Run("ambient tenant assigned on create", func(t *testing.T) {
		ticket := newTicket("owned")
		require.NoError(t, db.WithContext(ctx).Create(ticket).Error)

		require.NotNil(t, ticket.TenantID)
		assert.Equal(t, tenantID, *ticket.TenantID)
	})

	t.Run("preset tenant is never overwritten", func(t *testing.T) {
		other := uuid.New()
		ticket := newTicket("preset")
		ticket.SetTenantID(&other)
		require.NoError(t, db.WithContext(ctx).Create(ticket).Error)

		assert.Equal(t, other, *ticket.TenantID)
	})

	t.Run("no ambient tenant leaves record unassigned", func(t *testing.T) {
		anon := session.NewContext(context.Background())
		ticket := newTicket("host owned")
		require.NoError(t, db.WithContext(anon).Create(ticket).Error)

		assert.Nil(t, ticket.TenantID)
	})
}

func TestTenantFiltering(t *testing.T) {
	db := newTestDB(t, nil)
	tenantA, tenantB := uuid.New(), uuid.New()
	ctxA := sessionCtx(t, uuid.New(), &tenantA)
	ctxB := sessionCtx(t, uuid.New(), &tenantB)

	ticketA := newTicket("for a")
	require.NoError(t, db.WithContext(ctxA).Create(ticketA).Error)
	ticketB := newTicket("for b")
	require.NoError(t, db.WithContext(ctxB).Create(ticketB).Error)

	t.Run("each tenant sees only its own rows", func(t *testing.T) {
		var got []Ticket
		require.NoError(t, db.WithContext(ctxA).Find(&got).Error)
		require.Len(t, got, 1)
		assert.Equal(t, ticketA.ID, got[0].ID)

		got = nil
		require.NoError(t, db.WithContext(ctxB).Find(&got).Error)
		require.Len(t, got, 1)
		assert.Equal(t, ticketB.ID, got[0].ID)
	})

	t.Run("lookup by id across tenants misses", func(t *testing.T) {
		var got Ticket
		err := db.WithContext(ctxB).First(&got, "id = ?", ticketA.ID).Error
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("no ambient tenant suspends the filter", func(t *testing.T) {
		anon := session.NewContext(context.Background())
		var got []Ticket
		require.NoError(t, db.WithContext(anon).Find(&got).Error)
		assert.Len(t, got, 2)
	})

	t.Run("update respects the filter", func(t *testing.T) {
		res := db.WithContext(ctxB).Model(&Ticket{}).
			Where("id = ?", ticketA.ID).
			Updates(map[string]interface{}{"title": "stolen"})
		require.NoError(t, res.Error)
		assert.Equal(t, int64(0), res.RowsAffected)
	})

	t.Run("changed ambient tenant applies on the next query", func(t *testing.T) {
		restore := session.ChangeTenant(ctxA, &tenantB, "")
		var got []Ticket
		require.NoError(t, db.WithContext(ctxA).Find(&got).Error)
		require.Len(t, got, 1)
		assert.Equal(t, ticketB.ID, got[0].ID)
		restore()

		got = nil
		require.NoError(t, db.WithContext(ctxA).Find(&got).Error)
		require.Len(t, got, 1)
		assert.Equal(t, ticketA.ID, got[0].ID)
	})
}

func TestSoftDeleteConversion(t *testing.T) {
	actor := uuid.New()

	t.Run("delete flips the flag instead of removing", func(t *testing.T) {
		db := newTestDB(t, nil)
		ctx := sessionCtx(t, actor, nil)
		ticket := newTicket("flagged")
		require.NoError(t, db.WithContext(ctx).Create(ticket).Error)

		require.NoError(t, db.WithContext(ctx).Delete(ticket).Error)

		var count int64
		require.NoError(t, db.WithContext(ctx).Model(&Ticket{}).Unscoped().Count(&count).Error)
		assert.Equal(t, int64(1), count)

		var got Ticket
		require.NoError(t, db.WithContext(ctx).Unscoped().First(&got, "id = ?", ticket.ID).Error)
		assert.True(t, got.Deleted())
	})

	t.Run("converted delete stamps modification audit", func(t *testing.T) {
		db := newTestDB(t, nil)
		ctx := sessionCtx(t, actor, nil)
		ticket := newTicket("audited delete")
		require.NoError(t, db.WithContext(ctx).Create(ticket).Error)

		require.NoError(t, db.WithContext(ctx).Delete(ticket).Error)

		var got Ticket
		require.NoError(t, db.WithContext(ctx).Unscoped().First(&got, "id = ?", ticket.ID).Error)
		require.NotNil(t, got.UpdatedAt)
		require.NotNil(t, got.UpdatedBy)
		assert.Equal(t, actor, *got.UpdatedBy)
	})

	t.Run("flagged rows disappear from reads", func(t *testing.T) {
		db := newTestDB(t, nil)
		ctx := sessionCtx(t, actor, nil)
		keep := newTicket("keep")
		drop := newTicket("drop")
		require.NoError(t, db.WithContext(ctx).Create(keep).Error)
		require.NoError(t, db.WithContext(ctx).Create(drop).Error)
		require.NoError(t, db.WithContext(ctx).Delete(drop).Error)

		var got []Ticket
		require.NoError(t, db.WithContext(ctx).Find(&got).Error)
		require.Len(t, got, 1)
		assert.Equal(t, keep.ID, got[0].ID)

		var count int64
		require.NoError(t, db.WithContext(ctx).Model(&Ticket{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("flagged rows cannot be updated", func(t *testing.T) {
		db := newTestDB(t, nil)
		ctx := sessionCtx(t, actor, nil)
		ticket := newTicket("locked")
		require.NoError(t, db.WithContext(ctx).Create(ticket).Error)
		require.NoError(t, db.WithContext(ctx).Delete(ticket).Error)

		res := db.WithContext(ctx).Model(&Ticket{}).
			Where("id = ?", ticket.ID).
			Updates(map[string]interface{}{"title": "revived"})
		require.NoError(t, res.Error)
		assert.Equal(t, int64(0), res.RowsAffected)
	})

	t.Run("open gate reveals flagged rows", func(t *testing.T) {
		db := newTestDB(t, nil)
		ctx := sessionCtx(t, actor, nil)
		ticket := newTicket("revealed")
		require.NoError(t, db.WithContext(ctx).Create(ticket).Error)
		require.NoError(t, db.WithContext(ctx).Delete(ticket).Error)

		restore := session.DisableSoftDeleteFilter(ctx)
		var got []Ticket
		require.NoError(t, db.WithContext(ctx).Find(&got).Error)
		assert.Len(t, got, 1)
		restore()

		got = nil
		require.NoError(t, db.WithContext(ctx).Find(&got).Error)
		assert.Empty(t, got)
	})

	t.Run("open gate makes deletes physical", func(t *testing.T) {
		db := newTestDB(t, nil)
		ctx := sessionCtx(t, actor, nil)
		ticket := newTicket("removed")
		require.NoError(t, db.WithContext(ctx).Create(ticket).Error)

		restore := session.DisableSoftDeleteFilter(ctx)
		require.NoError(t, db.WithContext(ctx).Delete(ticket).Error)
		restore()

		var count int64
		require.NoError(t, db.WithContext(ctx).Model(&Ticket{}).Unscoped().Count(&count).Error)
		assert.Equal(t, int64(0), count)
	})

	t.Run("unscoped delete is physical", func(t *testing.T) {
		db := newTestDB(t, nil)
		ctx := sessionCtx(t, actor, nil)
		ticket := newTicket("unscoped")
		require.NoError(t, db.WithContext(ctx).Create(ticket).Error)

		require.NoError(t, db.WithContext(ctx).Unscoped().Delete(ticket).Error)

		var count int64
		require.NoError(t, db.WithContext(ctx).Model(&Ticket{}).Unscoped().Count(&count).Error)
		assert.Equal(t, int64(0), count)
	})
}

func TestPreloadFiltering(t *testing.T) {
	db := newTestDB(t, nil)
	tenantA, tenantB := uuid.New(), uuid.New()
	ctxA := sessionCtx(t, uuid.New(), &tenantA)
	ctxB := sessionCtx(t, uuid.New(), &tenantB)

	ticket := newTicket("threaded")
	require.NoError(t, db.WithContext(ctxA).Create(ticket).Error)

	live := newComment(ticket.ID, "live")
	require.NoError(t, db.WithContext(ctxA).Create(live).Error)

	flagged := newComment(ticket.ID, "flagged")
	require.NoError(t, db.WithContext(ctxA).Create(flagged).Error)
	require.NoError(t, db.WithContext(ctxA).Delete(flagged).Error)

	foreign := newComment(ticket.ID, "foreign")
	require.NoError(t, db.WithContext(ctxB).Create(foreign).Error)

	t.Run("preload drops flagged and cross-tenant children", func(t *testing.T) {
		var got Ticket
		require.NoError(t, db.WithContext(ctxA).Preload("Comments").First(&got, "id = ?", ticket.ID).Error)
		require.Len(t, got.Comments, 1)
		assert.Equal(t, live.ID, got.Comments[0].ID)
	})

	t.Run("open gate reveals flagged children but not cross-tenant ones", func(t *testing.T) {
		restore := session.DisableSoftDeleteFilter(ctxA)
		defer restore()

		var got Ticket
		require.NoError(t, db.WithContext(ctxA).Preload("Comments").First(&got, "id = ?", ticket.ID).Error)
		require.Len(t, got.Comments, 2)
		for _, c := range got.Comments {
			assert.Equal(t, tenantA, *c.TenantID)
		}
	})
}

func TestEntityChangeEvents(t *testing.T) {
	handler := &captureHandler{}
	bus := newBus(t, handler)
	db := newTestDB(t, bus)
	ctx := sessionCtx(t, uuid.New(), nil)

	ticket := newTicket("eventful")
	require.NoError(t, db.WithContext(ctx).Create(ticket).Error)

	ticket.Title = "renamed"
	require.NoError(t, db.WithContext(ctx).Save(ticket).Error)

	require.NoError(t, db.WithContext(ctx).Delete(ticket).Error)

	assert.Equal(t, []string{"TicketCreated", "TicketUpdated", "TicketDeleted"}, handler.types())

	for _, evt := range handler.events {
		assert.Equal(t, ticket.ID, evt.EntityID())
		assert.Equal(t, "Ticket", evt.EntityType())
	}
}
