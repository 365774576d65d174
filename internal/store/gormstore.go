package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Document is the persisted row backing one logical document.
type Document struct {
	Path      string `gorm:"primaryKey;size:512"`
	Data      []byte `gorm:"type:jsonb;not null"`
	Version   int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// GormStore persists documents in Postgres. Transactions serialize through
// row locks (SELECT ... FOR UPDATE on every transactional read). Change
// notifications fan out in-process after commit; the deployment scope is a
// single node, the same as the rest of the system.
type GormStore struct {
	db     *gorm.DB
	notify *notifier
	log    *zap.Logger
}

func OpenGorm(dsn string, log *zap.Logger) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&Document{}); err != nil {
		return nil, fmt.Errorf("migrate documents: %w", err)
	}
	return &GormStore{db: db, notify: newNotifier(), log: log}, nil
}

func (g *GormStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	var doc Document
	err := g.db.WithContext(ctx).Take(&doc, "path = ?", path).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("get %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return json.RawMessage(doc.Data), nil
}

func (g *GormStore) Set(ctx context.Context, path string, v any) error {
	data, err := Encode(v)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	err = g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "path"}},
		DoUpdates: clause.Assignments(map[string]any{
			"data":       []byte(data),
			"version":    gorm.Expr("documents.version + 1"),
			"updated_at": time.Now(),
		}),
	}).Create(&Document{Path: path, Data: data, UpdatedAt: time.Now()}).Error
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	g.published(path, data, true)
	return nil
}

func (g *GormStore) Update(ctx context.Context, path string, fields map[string]any) error {
	var merged json.RawMessage
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc Document
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&doc, "path = ?", path).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		merged, err = MergeFields(doc.Data, fields)
		if err != nil {
			return err
		}
		return tx.Model(&Document{}).Where("path = ?", path).Updates(map[string]any{
			"data":       []byte(merged),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		}).Error
	})
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	g.published(path, merged, true)
	return nil
}

func (g *GormStore) Delete(ctx context.Context, path string) error {
	res := g.db.WithContext(ctx).Delete(&Document{}, "path = ?", path)
	if res.Error != nil {
		return fmt.Errorf("delete %s: %w", path, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete %s: %w", path, ErrNotFound)
	}
	g.published(path, nil, false)
	return nil
}

func (g *GormStore) SubscribeDoc(path string, fn func(Snapshot)) Unsubscribe {
	sub, unsub := g.notify.subscribe(path, false, func(ev any) { fn(ev.(Snapshot)) })
	data, err := g.Get(context.Background(), path)
	if err != nil && !errors.Is(err, ErrNotFound) {
		g.log.Warn("initial doc snapshot failed", zap.String("path", path), zap.Error(err))
	}
	sub.push(Snapshot{Path: path, Data: data, Exists: err == nil})
	return unsub
}

func (g *GormStore) SubscribeCollection(path string, fn func(CollectionSnapshot)) Unsubscribe {
	sub, unsub := g.notify.subscribe(path, true, func(ev any) { fn(ev.(CollectionSnapshot)) })
	sub.push(g.collection(path))
	return unsub
}

func (g *GormStore) RunAtomic(ctx context.Context, fn func(tx Tx) error) error {
	var written []writtenDoc
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		written = written[:0]
		gt := &gormTx{db: tx}
		if err := fn(gt); err != nil {
			return err
		}
		written = gt.written
		return nil
	})
	if err != nil {
		return err
	}
	for _, w := range written {
		g.published(w.path, w.data, w.data != nil)
	}
	return nil
}

// published fans out one committed write.
func (g *GormStore) published(path string, data json.RawMessage, exists bool) {
	g.notify.publishDoc(Snapshot{Path: path, Data: data, Exists: exists})
	g.notify.publishCollection(path, g.collection)
}

func (g *GormStore) collection(path string) CollectionSnapshot {
	var docs []Document
	err := g.db.
		Where("path LIKE ?", path+"/%").
		Where("path NOT LIKE ?", path+"/%/%").
		Order("path").
		Find(&docs).Error
	if err != nil {
		g.log.Warn("collection snapshot failed", zap.String("path", path), zap.Error(err))
	}
	cs := CollectionSnapshot{Path: path}
	for _, d := range docs {
		cs.Docs = append(cs.Docs, Snapshot{Path: d.Path, Data: json.RawMessage(d.Data), Exists: true})
	}
	return cs
}

func (g *GormStore) Close() {
	g.notify.close()
}

type writtenDoc struct {
	path string
	data json.RawMessage
}

type gormTx struct {
	db      *gorm.DB
	written []writtenDoc
}

func (t *gormTx) Get(path string) (json.RawMessage, error) {
	// Writes staged earlier in this transaction are visible through the
	// underlying tx, so a plain locked read suffices.
	var doc Document
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&doc, "path = ?", path).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("get %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return json.RawMessage(doc.Data), nil
}

func (t *gormTx) Set(path string, v any) error {
	data, err := Encode(v)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	err = t.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "path"}},
		DoUpdates: clause.Assignments(map[string]any{
			"data":       []byte(data),
			"version":    gorm.Expr("documents.version + 1"),
			"updated_at": time.Now(),
		}),
	}).Create(&Document{Path: path, Data: data, UpdatedAt: time.Now()}).Error
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	t.written = append(t.written, writtenDoc{path: path, data: data})
	return nil
}

func (t *gormTx) Update(path string, fields map[string]any) error {
	existing, err := t.Get(path)
	if err != nil {
		return err
	}
	merged, err := MergeFields(existing, fields)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	err = t.db.Model(&Document{}).Where("path = ?", path).Updates(map[string]any{
		"data":       []byte(merged),
		"version":    gorm.Expr("version + 1"),
		"updated_at": time.Now(),
	}).Error
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	t.written = append(t.written, writtenDoc{path: path, data: merged})
	return nil
}

var _ Store = (*GormStore)(nil)
