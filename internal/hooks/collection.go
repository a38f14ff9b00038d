package hooks

import (
	"slices"
	"sync"
)

// ticket привязывает ответ хранилища к состоянию хука на момент запроса.
type ticket struct {
	load  uint64
	scope uint64
}

// collection - локальная копия коллекции одного хука.
// Ответы, пришедшие после более нового Load, смены области или закрытия хука, отбрасываются.
type collection[T any] struct {
	mu       sync.Mutex
	items    []T
	id       func(T) string
	load     uint64
	scope    uint64
	inflight int
	closed   bool
}

func newCollection[T any](id func(T) string) *collection[T] {
	return &collection[T]{id: id}
}

// track отмечает операцию в полёте. Возвращаемую функцию вызывают через defer.
func (c *collection[T]) track() func() {
	c.mu.Lock()
	c.inflight++
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.inflight--
			c.mu.Unlock()
		})
	}
}

func (c *collection[T]) loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight > 0
}

// startLoad делает все ранее начатые загрузки устаревшими.
func (c *collection[T]) startLoad() ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.load++
	return ticket{load: c.load, scope: c.scope}
}

// current - билет для мутаций: он устаревает только при смене области или закрытии.
func (c *collection[T]) current() ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ticket{scope: c.scope}
}

func (c *collection[T]) validLocked(t ticket) bool {
	if c.closed || t.scope != c.scope {
		return false
	}
	return t.load == 0 || t.load == c.load
}

// rescope переключает хук на новую область и очищает коллекцию.
func (c *collection[T]) rescope() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scope++
	c.load++
	c.items = nil
}

func (c *collection[T]) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.items = nil
}

func (c *collection[T]) snapshot() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

func (c *collection[T]) find(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range c.items {
		if c.id(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// apply меняет коллекцию, если билет ещё актуален.
func (c *collection[T]) apply(t ticket, fn func([]T) []T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.validLocked(t) {
		return false
	}
	c.items = fn(c.items)
	return true
}

func (c *collection[T]) replaceAll(t ticket, items []T) bool {
	return c.apply(t, func([]T) []T { return items })
}

// prepend ставит строку в начало. Строка с тем же ID, уже попавшая сюда загрузкой, убирается.
func (c *collection[T]) prepend(t ticket, item T) bool {
	id := c.id(item)
	return c.apply(t, func(items []T) []T {
		items = slices.DeleteFunc(items, func(x T) bool { return c.id(x) == id })
		return append([]T{item}, items...)
	})
}

// replace заменяет строку на её месте.
func (c *collection[T]) replace(t ticket, item T) bool {
	id := c.id(item)
	return c.apply(t, func(items []T) []T {
		if i := slices.IndexFunc(items, func(x T) bool { return c.id(x) == id }); i >= 0 {
			items = slices.Clone(items)
			items[i] = item
		}
		return items
	})
}

func (c *collection[T]) remove(t ticket, id string) bool {
	return c.apply(t, func(items []T) []T {
		return slices.DeleteFunc(slices.Clone(items), func(x T) bool { return c.id(x) == id })
	})
}
