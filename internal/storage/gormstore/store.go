// Package gormstore реализует storage.Store поверх gorm.
package gormstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"time"

	"github.com/UkralStul/carreras-sync/internal/domain"
	"github.com/UkralStul/carreras-sync/internal/metrics"
	"github.com/UkralStul/carreras-sync/internal/realtime"
	"github.com/UkralStul/carreras-sync/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Options - зависимости хранилища.
type Options struct {
	// Broker получает уведомления после каждого коммита. По умолчанию - брокер в памяти.
	Broker realtime.Broker
	Logger *slog.Logger
	// LogSQL включает логирование запросов gorm.
	LogSQL bool
}

// Config возвращает общие настройки gorm для всех бэкендов.
func Config(opts Options) *gorm.Config {
	level := logger.Warn
	if opts.LogSQL {
		level = logger.Info
	}
	return &gorm.Config{
		Logger:  logger.Default.LogMode(level),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
}

// Store реализует storage.Store с использованием gorm.
type Store struct {
	db     *gorm.DB
	broker realtime.Broker
	log    *slog.Logger
	tracer trace.Tracer
}

var _ storage.Store = (*Store)(nil)

// New выполняет миграцию схемы и возвращает хранилище.
func New(db *gorm.DB, opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Broker == nil {
		opts.Broker = realtime.NewMemory(opts.Logger)
	}

	// Выполняем миграцию схемы
	if err := db.AutoMigrate(domain.Models()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{
		db:     db,
		broker: opts.Broker,
		log:    opts.Logger,
		tracer: otel.Tracer("carreras-sync/gormstore"),
	}, nil
}

// DB отдаёт gorm-соединение (для сидов и тестов).
func (s *Store) DB() *gorm.DB { return s.db }

// Broker отдаёт брокер уведомлений.
func (s *Store) Broker() realtime.Broker { return s.broker }

// === Read Methods ===

func (s *Store) Find(ctx context.Context, dest any, q storage.Query) (err error) {
	table, err := tableOf(dest)
	if err != nil {
		return err
	}
	ctx, done := s.begin(ctx, "find", table)
	defer func() { done(err) }()

	tx := applyFilter(s.db.WithContext(ctx), q.Filter)
	if len(q.Any) > 0 {
		alts := make([]clause.Expression, 0, len(q.Any))
		for _, f := range q.Any {
			if expr := filterExpr(f); expr != nil {
				alts = append(alts, expr)
			}
		}
		if len(alts) > 0 {
			tx = tx.Where(clause.Or(alts...))
		}
	}
	for _, o := range q.Order {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Column}, Desc: o.Desc})
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if err = tx.Find(dest).Error; err != nil {
		return fmt.Errorf("find %s: %w", table, err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context, model any, f storage.Filter) (n int64, err error) {
	table, err := tableOf(model)
	if err != nil {
		return 0, err
	}
	ctx, done := s.begin(ctx, "count", table)
	defer func() { done(err) }()

	if err = applyFilter(s.db.WithContext(ctx).Model(model), f).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// === Mutation Methods ===

func (s *Store) Insert(ctx context.Context, rows ...domain.Record) (err error) {
	if len(rows) == 0 {
		return nil
	}
	table := rows[0].TableName()
	for _, r := range rows {
		if reflect.ValueOf(r).Kind() != reflect.Pointer {
			return fmt.Errorf("insert %s: row must be a pointer, got %T", r.TableName(), r)
		}
	}
	ctx, done := s.begin(ctx, "insert", table)
	defer func() { done(err) }()

	var touched []domain.Record
	// Все строки и пересчёт агрегатов - в одной транзакции
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range rows {
			if err := tx.Omit(clause.Associations).Create(r).Error; err != nil {
				return err
			}
		}
		var err error
		touched, err = runTriggers(tx, rows)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}

	s.publish(ctx, realtime.Insert, rows)
	s.publish(ctx, realtime.Update, touched)
	return nil
}

func (s *Store) Update(ctx context.Context, dest any, patch map[string]any, f storage.Filter) (err error) {
	table, err := tableOf(dest)
	if err != nil {
		return err
	}
	if len(f) == 0 {
		return fmt.Errorf("update %s: filter is required", table)
	}
	ctx, done := s.begin(ctx, "update", table)
	defer func() { done(err) }()

	var touched []domain.Record
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := applyFilter(tx, f).Find(dest).Error; err != nil {
			return err
		}
		ids := recordIDs(dest)
		if len(ids) == 0 {
			return nil
		}
		before := records(dest)

		model := newModel(dest)
		if err := tx.Model(model).Where("id IN ?", ids).Updates(patch).Error; err != nil {
			return err
		}
		// Перечитываем строки, чтобы вернуть их итоговое состояние
		resetSlice(dest)
		if err := tx.Where("id IN ?", ids).Find(dest).Error; err != nil {
			return err
		}
		var err error
		touched, err = runTriggers(tx, append(before, records(dest)...))
		return err
	})
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}

	s.publish(ctx, realtime.Update, records(dest))
	s.publish(ctx, realtime.Update, touched)
	return nil
}

func (s *Store) Delete(ctx context.Context, dest any, f storage.Filter) (err error) {
	table, err := tableOf(dest)
	if err != nil {
		return err
	}
	if len(f) == 0 {
		return fmt.Errorf("delete %s: filter is required", table)
	}
	ctx, done := s.begin(ctx, "delete", table)
	defer func() { done(err) }()

	var touched []domain.Record
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := applyFilter(tx, f).Find(dest).Error; err != nil {
			return err
		}
		ids := recordIDs(dest)
		if len(ids) == 0 {
			return nil
		}
		// Зависимые строки удаляет база (ON DELETE CASCADE), уведомлений о них нет
		if err := tx.Where("id IN ?", ids).Delete(newModel(dest)).Error; err != nil {
			return err
		}
		var err error
		touched, err = runTriggers(tx, records(dest))
		return err
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}

	s.publish(ctx, realtime.Delete, records(dest))
	s.publish(ctx, realtime.Update, touched)
	return nil
}

// === Subscription Methods ===

func (s *Store) Subscribe(ctx context.Context, table string, f storage.Filter, h realtime.Handler) (unsub func(), err error) {
	_, done := s.begin(ctx, "subscribe", table)
	defer func() { done(err) }()

	for k, v := range f {
		if _, ok := v.(string); !ok {
			return nil, fmt.Errorf("subscribe %s: filter %q must be a string, got %T", table, k, v)
		}
	}
	unsub, err = s.broker.Subscribe(ctx, table, f.Scope(), h)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", table, err)
	}
	return unsub, nil
}

// Close закрывает соединение с базой. Брокер закрывает его владелец.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// publish рассылает уведомления после коммита. Ошибки не откатывают мутацию.
func (s *Store) publish(ctx context.Context, typ realtime.EventType, rows []domain.Record) {
	now := time.Now().UTC()
	for _, r := range rows {
		payload, err := json.Marshal(r)
		if err != nil {
			s.log.Error("marshal change", "table", r.TableName(), "id", r.RecordID(), "error", err)
			continue
		}
		c := realtime.Change{
			Table:           r.TableName(),
			Type:            typ,
			ID:              r.RecordID(),
			Scope:           r.Scope(),
			Record:          payload,
			CommitTimestamp: now,
		}
		if err := s.broker.Publish(ctx, c); err != nil {
			s.log.Warn("publish change", "table", c.Table, "id", c.ID, "error", err)
		}
	}
}

// begin открывает span и запускает замер метрик.
func (s *Store) begin(ctx context.Context, op, table string) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "store."+op, trace.WithAttributes(
		attribute.String("db.operation", op),
		attribute.String("db.table", table),
	))
	track := metrics.TrackStore(op, table)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		track(err)
		span.End()
	}
}

// === Helpers ===

func applyFilter(tx *gorm.DB, f storage.Filter) *gorm.DB {
	if expr := filterExpr(f); expr != nil {
		tx = tx.Where(expr)
	}
	return tx
}

// filterExpr строит AND по колонкам; clause.Eq сам превращает срезы в IN, а nil в IS NULL.
func filterExpr(f storage.Filter) clause.Expression {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	exprs := make([]clause.Expression, 0, len(keys))
	for _, k := range keys {
		exprs = append(exprs, clause.Eq{Column: clause.Column{Name: k}, Value: f[k]})
	}
	return clause.And(exprs...)
}

func elemType(v any) reflect.Type {
	t := reflect.TypeOf(v)
	for t != nil && (t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice) {
		t = t.Elem()
	}
	return t
}

func tableOf(v any) (string, error) {
	t := elemType(v)
	if t == nil || t.Kind() != reflect.Struct {
		return "", fmt.Errorf("unsupported destination %T", v)
	}
	rec, ok := reflect.New(t).Interface().(domain.Record)
	if !ok {
		return "", fmt.Errorf("%s does not implement domain.Record", t)
	}
	return rec.TableName(), nil
}

func newModel(dest any) any {
	return reflect.New(elemType(dest)).Interface()
}

func records(dest any) []domain.Record {
	v := reflect.ValueOf(dest).Elem()
	out := make([]domain.Record, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		row := v.Index(i)
		if row.Kind() == reflect.Pointer {
			out = append(out, row.Interface().(domain.Record))
			continue
		}
		// Копия, чтобы последующий resetSlice не затронул уже собранные записи
		cp := reflect.New(row.Type())
		cp.Elem().Set(row)
		out = append(out, cp.Interface().(domain.Record))
	}
	return out
}

func recordIDs(dest any) []string {
	recs := records(dest)
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.RecordID()
	}
	return ids
}

func resetSlice(dest any) {
	v := reflect.ValueOf(dest).Elem()
	v.Set(reflect.MakeSlice(v.Type(), 0, v.Len()))
}
