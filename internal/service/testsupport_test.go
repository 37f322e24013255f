package service

import (
	"context"
	"fmt"
	"sync"

	"constructlink/internal/model"
	"constructlink/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// fakeStore is an in-memory stand-in for the database. A single transaction
// mutex serializes RunInTx blocks the way row locks serialize real
// transactions, and a snapshot taken at transaction start is restored on error
// to mimic rollback.
type fakeStore struct {
	mu sync.Mutex // guards all maps below
	tx sync.Mutex // serializes transactions

	consumables map[uuid.UUID]model.Consumable
	batches     map[uuid.UUID]model.WithdrawalBatch
	items       map[uuid.UUID][]model.BatchItem
	withdrawals map[uuid.UUID]model.WithdrawalRequest
	assets      map[uuid.UUID]model.Asset
	stockTxs    []model.StockTransaction
	audits      []model.AuditLog
	refSeq      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		consumables: make(map[uuid.UUID]model.Consumable),
		batches:     make(map[uuid.UUID]model.WithdrawalBatch),
		items:       make(map[uuid.UUID][]model.BatchItem),
		withdrawals: make(map[uuid.UUID]model.WithdrawalRequest),
		assets:      make(map[uuid.UUID]model.Asset),
	}
}

type storeSnapshot struct {
	consumables map[uuid.UUID]model.Consumable
	batches     map[uuid.UUID]model.WithdrawalBatch
	items       map[uuid.UUID][]model.BatchItem
	withdrawals map[uuid.UUID]model.WithdrawalRequest
	assets      map[uuid.UUID]model.Asset
	stockTxs    []model.StockTransaction
	audits      []model.AuditLog
	refSeq      int
}

func (s *fakeStore) snapshot() storeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := storeSnapshot{
		consumables: make(map[uuid.UUID]model.Consumable, len(s.consumables)),
		batches:     make(map[uuid.UUID]model.WithdrawalBatch, len(s.batches)),
		items:       make(map[uuid.UUID][]model.BatchItem, len(s.items)),
		withdrawals: make(map[uuid.UUID]model.WithdrawalRequest, len(s.withdrawals)),
		assets:      make(map[uuid.UUID]model.Asset, len(s.assets)),
		stockTxs:    append([]model.StockTransaction(nil), s.stockTxs...),
		audits:      append([]model.AuditLog(nil), s.audits...),
		refSeq:      s.refSeq,
	}
	for k, v := range s.consumables {
		snap.consumables[k] = v
	}
	for k, v := range s.batches {
		snap.batches[k] = v
	}
	for k, v := range s.items {
		snap.items[k] = append([]model.BatchItem(nil), v...)
	}
	for k, v := range s.withdrawals {
		snap.withdrawals[k] = v
	}
	for k, v := range s.assets {
		snap.assets[k] = v
	}
	return snap
}

func (s *fakeStore) restore(snap storeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumables = snap.consumables
	s.batches = snap.batches
	s.items = snap.items
	s.withdrawals = snap.withdrawals
	s.assets = snap.assets
	s.stockTxs = snap.stockTxs
	s.audits = snap.audits
	s.refSeq = snap.refSeq
}

// --- Transaction manager ---

type fakeTxManager struct {
	store *fakeStore
}

func (t *fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	t.store.tx.Lock()
	defer t.store.tx.Unlock()

	snap := t.store.snapshot()
	if err := fn(ctx); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

// --- Consumable repository ---

type fakeConsumableRepo struct {
	store *fakeStore
}

func (r *fakeConsumableRepo) Create(_ context.Context, c *model.Consumable) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.consumables[c.ID] = *c
	return nil
}

func (r *fakeConsumableRepo) Update(_ context.Context, c *model.Consumable) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.consumables[c.ID] = *c
	return nil
}

func (r *fakeConsumableRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.consumables, id)
	return nil
}

func (r *fakeConsumableRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Consumable, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.consumables[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r *fakeConsumableRepo) FindBySKU(_ context.Context, sku string) (*model.Consumable, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, c := range r.store.consumables {
		if c.SKU == sku {
			found := c
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeConsumableRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Consumable, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeConsumableRepo) UpdateQuantities(_ context.Context, id uuid.UUID, onHand, reserved decimal.Decimal) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.consumables[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.OnHand = onHand
	c.Reserved = reserved
	r.store.consumables[id] = c
	return nil
}

func (r *fakeConsumableRepo) List(_ context.Context, filter repository.ConsumableFilter) ([]model.Consumable, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.Consumable
	for _, c := range r.store.consumables {
		if filter.LowStock && c.OnHand.Sub(c.Reserved).GreaterThan(c.ReorderLevel) {
			continue
		}
		out = append(out, c)
	}
	return out, int64(len(out)), nil
}

func (r *fakeConsumableRepo) PendingWithdrawalCounts(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	counts := make(map[uuid.UUID]int64)
	for batchID, items := range r.store.items {
		b := r.store.batches[batchID]
		if b.Status != model.StatusPendingVerification && b.Status != model.StatusPendingApproval {
			continue
		}
		for _, item := range items {
			counts[item.ConsumableID]++
		}
	}
	return counts, nil
}

// --- Stock transaction repository ---

type fakeStockTxRepo struct {
	store *fakeStore
}

func (r *fakeStockTxRepo) Create(_ context.Context, tx *model.StockTransaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.stockTxs = append(r.store.stockTxs, *tx)
	return nil
}

func (r *fakeStockTxRepo) ListByConsumable(_ context.Context, consumableID uuid.UUID, _, _ int) ([]model.StockTransaction, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.StockTransaction
	for _, tx := range r.store.stockTxs {
		if tx.ConsumableID == consumableID {
			out = append(out, tx)
		}
	}
	return out, int64(len(out)), nil
}

// --- Audit repository ---

type fakeAuditRepo struct {
	store *fakeStore
}

func (r *fakeAuditRepo) Log(_ context.Context, entry *model.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.audits = append(r.store.audits, *entry)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, _ repository.AuditFilter) ([]model.AuditLog, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := append([]model.AuditLog(nil), r.store.audits...)
	return out, int64(len(out)), nil
}

// --- Batch repository ---

type fakeBatchRepo struct {
	store *fakeStore
}

func (r *fakeBatchRepo) Create(_ context.Context, b *model.WithdrawalBatch) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored := *b
	stored.Items = nil
	r.store.batches[b.ID] = stored
	return nil
}

func (r *fakeBatchRepo) CreateItem(_ context.Context, item *model.BatchItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.items[item.BatchID] = append(r.store.items[item.BatchID], *item)
	return nil
}

func (r *fakeBatchRepo) Update(_ context.Context, b *model.WithdrawalBatch) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.batches[b.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *b
	stored.Items = nil
	r.store.batches[b.ID] = stored
	return nil
}

func (r *fakeBatchRepo) UpdateItemStatuses(_ context.Context, batchID uuid.UUID, status string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	items := r.store.items[batchID]
	for i := range items {
		items[i].Status = status
	}
	r.store.items[batchID] = items
	return nil
}

func (r *fakeBatchRepo) FindByID(_ context.Context, id uuid.UUID) (*model.WithdrawalBatch, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	b, ok := r.store.batches[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	b.Items = append([]model.BatchItem(nil), r.store.items[id]...)
	for i := range b.Items {
		b.Items[i].Consumable = r.store.consumables[b.Items[i].ConsumableID]
	}
	return &b, nil
}

func (r *fakeBatchRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.WithdrawalBatch, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeBatchRepo) List(_ context.Context, filter repository.BatchFilter) ([]model.WithdrawalBatch, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.WithdrawalBatch
	for id, b := range r.store.batches {
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		b.Items = append([]model.BatchItem(nil), r.store.items[id]...)
		out = append(out, b)
	}
	return out, int64(len(out)), nil
}

func (r *fakeBatchRepo) NextBatchReference(_ context.Context) (string, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.refSeq++
	return fmt.Sprintf("WB-20250901-%05d", r.store.refSeq), nil
}

func (r *fakeBatchRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	counts := make(map[string]int64)
	for _, b := range r.store.batches {
		counts[b.Status]++
	}
	return counts, nil
}

func (r *fakeBatchRepo) TopConsumed(_ context.Context, _ int) ([]repository.ConsumedLine, error) {
	return nil, nil
}

// --- Withdrawal repository ---

type fakeWithdrawalRepo struct {
	store *fakeStore
}

func (r *fakeWithdrawalRepo) Create(_ context.Context, w *model.WithdrawalRequest) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.withdrawals[w.ID] = *w
	return nil
}

func (r *fakeWithdrawalRepo) Update(_ context.Context, w *model.WithdrawalRequest) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.withdrawals[w.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.store.withdrawals[w.ID] = *w
	return nil
}

func (r *fakeWithdrawalRepo) FindByID(_ context.Context, id uuid.UUID) (*model.WithdrawalRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	w, ok := r.store.withdrawals[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &w, nil
}

func (r *fakeWithdrawalRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.WithdrawalRequest, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeWithdrawalRepo) List(_ context.Context, filter repository.WithdrawalFilter) ([]model.WithdrawalRequest, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.WithdrawalRequest
	for _, w := range r.store.withdrawals {
		if filter.Status != "" && w.Status != filter.Status {
			continue
		}
		out = append(out, w)
	}
	return out, int64(len(out)), nil
}

func (r *fakeWithdrawalRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	counts := make(map[string]int64)
	for _, w := range r.store.withdrawals {
		counts[w.Status]++
	}
	return counts, nil
}

func (r *fakeWithdrawalRepo) CountOverdue(_ context.Context) (int64, error) {
	return 0, nil
}

// --- Asset repository ---

type fakeAssetRepo struct {
	store *fakeStore
}

func (r *fakeAssetRepo) Create(_ context.Context, a *model.Asset) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.assets[a.ID] = *a
	return nil
}

func (r *fakeAssetRepo) Update(_ context.Context, a *model.Asset) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.assets[a.ID] = *a
	return nil
}

func (r *fakeAssetRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.assets, id)
	return nil
}

func (r *fakeAssetRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Asset, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.assets[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &a, nil
}

func (r *fakeAssetRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Asset, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeAssetRepo) FindByRef(_ context.Context, ref string) (*model.Asset, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, a := range r.store.assets {
		if a.Ref == ref {
			found := a
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAssetRepo) List(_ context.Context, _ repository.AssetFilter) ([]model.Asset, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.Asset
	for _, a := range r.store.assets {
		out = append(out, a)
	}
	return out, int64(len(out)), nil
}

func (r *fakeAssetRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.assets[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	a.Status = status
	r.store.assets[id] = a
	return nil
}

// --- Seed helpers ---

func seedConsumable(store *fakeStore, sku, unit string, onHand string) uuid.UUID {
	id := uuid.New()
	store.consumables[id] = model.Consumable{
		ID:     id,
		SKU:    sku,
		Name:   sku,
		Unit:   unit,
		OnHand: decimal.RequireFromString(onHand),
	}
	return id
}

func seedAsset(store *fakeStore, ref, status string) uuid.UUID {
	id := uuid.New()
	store.assets[id] = model.Asset{ID: id, Ref: ref, Name: ref, Status: status}
	return id
}
