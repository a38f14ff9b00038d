package hooks

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/UkralStul/carreras-sync/internal/domain"
	"github.com/UkralStul/carreras-sync/internal/notify"
	"github.com/UkralStul/carreras-sync/internal/storage"
)

// CanchaInput - поля новой площадки.
type CanchaInput struct {
	Nombre         string
	Comuna         string
	Descripcion    string
	Latitud        float64
	Longitud       float64
	TipoSuperficie string
}

// Canchas - справочник площадок по алфавиту.
type Canchas struct {
	base
	items *collection[domain.Cancha]
}

func NewCanchas(d Deps) *Canchas {
	return &Canchas{
		base:  newBase(d),
		items: newCollection(func(c domain.Cancha) string { return c.ID }),
	}
}

func (c *Canchas) Items() []domain.Cancha { return c.items.snapshot() }

func (c *Canchas) Loading() bool { return c.items.loading() }

func (c *Canchas) Close() { c.items.close() }

func (c *Canchas) Load(ctx context.Context) error {
	defer c.items.track()()
	t := c.items.startLoad()

	canchas, err := storage.Find[domain.Cancha](ctx, c.deps.Store, storage.Query{
		Order: []storage.Order{{Column: "nombre"}},
	})
	if err != nil {
		return c.fail(ctx, "load canchas", err, msgCanchasLoad)
	}
	c.items.replaceAll(t, canchas)
	return nil
}

// Create добавляет площадку и ставит её на место по алфавиту.
func (c *Canchas) Create(ctx context.Context, in CanchaInput) (domain.Cancha, error) {
	userID, err := c.user(ctx, msgCanchaLogin)
	if err != nil {
		return domain.Cancha{}, err
	}
	defer c.items.track()()
	t := c.items.current()

	cancha := &domain.Cancha{
		Nombre:         strings.TrimSpace(in.Nombre),
		Comuna:         strings.TrimSpace(in.Comuna),
		Descripcion:    strings.TrimSpace(in.Descripcion),
		Latitud:        in.Latitud,
		Longitud:       in.Longitud,
		TipoSuperficie: in.TipoSuperficie,
		UserID:         userID,
	}
	if cancha.Nombre == "" || cancha.Comuna == "" {
		return domain.Cancha{}, c.fail(ctx, "create cancha", invalid("cancha name and comuna are required"), msgCanchaFailed)
	}
	if err := c.deps.Store.Insert(ctx, cancha); err != nil {
		return domain.Cancha{}, c.fail(ctx, "create cancha", err, msgCanchaFailed)
	}

	c.items.apply(t, func(items []domain.Cancha) []domain.Cancha {
		i, _ := slices.BinarySearchFunc(items, cancha.Nombre, func(x domain.Cancha, name string) int {
			return strings.Compare(x.Nombre, name)
		})
		return slices.Insert(slices.Clone(items), i, *cancha)
	})
	c.notify(ctx, notify.Success(msgCanchaCreated))
	return *cancha, nil
}

// Get ищет площадку сначала локально, затем в хранилище.
func (c *Canchas) Get(ctx context.Context, id string) (domain.Cancha, error) {
	if cancha, ok := c.items.find(id); ok {
		return cancha, nil
	}
	cancha, err := storage.First[domain.Cancha](ctx, c.deps.Store, storage.Query{Filter: storage.Filter{"id": id}})
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Cancha{}, err
	}
	if err != nil {
		return domain.Cancha{}, c.fail(ctx, "get cancha", err, msgCanchasLoad)
	}
	return cancha, nil
}
