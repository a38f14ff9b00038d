package hooks

import (
	"context"

	"github.com/UkralStul/carreras-sync/internal/domain"
	"github.com/UkralStul/carreras-sync/internal/storage"
)

// Carousel - активные слайды главной страницы. Только чтение.
type Carousel struct {
	base
	items *collection[domain.CarouselSlide]
}

func NewCarousel(d Deps) *Carousel {
	return &Carousel{
		base:  newBase(d),
		items: newCollection(func(s domain.CarouselSlide) string { return s.ID }),
	}
}

func (c *Carousel) Items() []domain.CarouselSlide { return c.items.snapshot() }

func (c *Carousel) Loading() bool { return c.items.loading() }

func (c *Carousel) Close() { c.items.close() }

func (c *Carousel) Load(ctx context.Context) error {
	defer c.items.track()()
	t := c.items.startLoad()

	slides, err := storage.Find[domain.CarouselSlide](ctx, c.deps.Store, storage.Query{
		Filter: storage.Filter{"is_active": true},
		Order:  []storage.Order{{Column: "order_index"}},
	})
	if err != nil {
		return c.fail(ctx, "load carousel", err, msgCarouselLoad)
	}
	c.items.replaceAll(t, slides)
	return nil
}
