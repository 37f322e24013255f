package service

import (
	"context"
	"errors"
	"fmt"

	"constructlink/internal/model"
	"constructlink/internal/repository"
	"constructlink/internal/workflow"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerService is the single source of truth for consumable availability.
// Every method must be called inside a TransactionManager transaction: the
// check-then-mutate discipline relies on the FOR UPDATE lock the repository
// takes on the consumable row, so two racing approvals serialize and the
// second observes the already-decremented availability.
type LedgerService interface {
	// Reserve holds qty against the consumable. Fails with ErrInsufficientStock
	// when available (on_hand - reserved) is less than qty.
	Reserve(ctx context.Context, consumableID uuid.UUID, qty decimal.Decimal, batchID *uuid.UUID) error
	// ReleaseReservation gives a hold back (batch canceled after approval,
	// before physical release).
	ReleaseReservation(ctx context.Context, consumableID uuid.UUID, qty decimal.Decimal, batchID *uuid.UUID) error
	// CommitRelease consumes a hold at physical hand-off: on_hand and reserved
	// both drop by qty.
	CommitRelease(ctx context.Context, consumableID uuid.UUID, qty decimal.Decimal, batchID *uuid.UUID) error
	// Restock puts already-released stock back (released batch canceled with
	// the items physically returned).
	Restock(ctx context.Context, consumableID uuid.UUID, qty decimal.Decimal, batchID *uuid.UUID, note string) error
	// Adjust applies a signed manual correction to on_hand.
	Adjust(ctx context.Context, consumableID uuid.UUID, delta decimal.Decimal, note string) (*model.Consumable, error)
}

type ledgerService struct {
	consumableRepo repository.ConsumableRepository
	stockTxRepo    repository.StockTxRepository
}

func NewLedgerService(consumableRepo repository.ConsumableRepository, stockTxRepo repository.StockTxRepository) LedgerService {
	return &ledgerService{consumableRepo: consumableRepo, stockTxRepo: stockTxRepo}
}

func (s *ledgerService) Reserve(ctx context.Context, consumableID uuid.UUID, qty decimal.Decimal, batchID *uuid.UUID) error {
	if qty.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: reserve quantity must be positive", workflow.ErrValidation)
	}

	c, err := s.consumableRepo.FindByIDForUpdate(ctx, consumableID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: consumable %s", workflow.ErrNotFound, consumableID)
		}
		return err
	}

	if c.Available().LessThan(qty) {
		return fmt.Errorf("%w: %s has %s %s available, %s requested",
			workflow.ErrInsufficientStock, c.SKU, c.Available(), c.Unit, qty)
	}

	newReserved := c.Reserved.Add(qty)
	if err := s.consumableRepo.UpdateQuantities(ctx, c.ID, c.OnHand, newReserved); err != nil {
		return fmt.Errorf("failed to update reservation for %s: %w", c.SKU, err)
	}

	return s.stockTxRepo.Create(ctx, &model.StockTransaction{
		ConsumableID:    c.ID,
		BatchID:         batchID,
		TransactionType: model.StockTxReserve,
		QuantityChanged: qty.Neg(),
		OnHandAfter:     c.OnHand,
		ReservedAfter:   newReserved,
	})
}

func (s *ledgerService) ReleaseReservation(ctx context.Context, consumableID uuid.UUID, qty decimal.Decimal, batchID *uuid.UUID) error {
	c, err := s.consumableRepo.FindByIDForUpdate(ctx, consumableID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: consumable %s", workflow.ErrNotFound, consumableID)
		}
		return err
	}

	newReserved := c.Reserved.Sub(qty)
	if newReserved.IsNegative() {
		// A hold can never be released twice; clamping would hide the bug.
		return fmt.Errorf("reservation underflow for %s: reserved %s, releasing %s", c.SKU, c.Reserved, qty)
	}

	if err := s.consumableRepo.UpdateQuantities(ctx, c.ID, c.OnHand, newReserved); err != nil {
		return fmt.Errorf("failed to release reservation for %s: %w", c.SKU, err)
	}

	return s.stockTxRepo.Create(ctx, &model.StockTransaction{
		ConsumableID:    c.ID,
		BatchID:         batchID,
		TransactionType: model.StockTxUnreserve,
		QuantityChanged: qty,
		OnHandAfter:     c.OnHand,
		ReservedAfter:   newReserved,
	})
}

func (s *ledgerService) CommitRelease(ctx context.Context, consumableID uuid.UUID, qty decimal.Decimal, batchID *uuid.UUID) error {
	c, err := s.consumableRepo.FindByIDForUpdate(ctx, consumableID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: consumable %s", workflow.ErrNotFound, consumableID)
		}
		return err
	}

	newOnHand := c.OnHand.Sub(qty)
	newReserved := c.Reserved.Sub(qty)
	if newOnHand.IsNegative() || newReserved.IsNegative() {
		return fmt.Errorf("ledger underflow for %s: on_hand %s, reserved %s, releasing %s", c.SKU, c.OnHand, c.Reserved, qty)
	}

	if err := s.consumableRepo.UpdateQuantities(ctx, c.ID, newOnHand, newReserved); err != nil {
		return fmt.Errorf("failed to commit release for %s: %w", c.SKU, err)
	}

	return s.stockTxRepo.Create(ctx, &model.StockTransaction{
		ConsumableID:    c.ID,
		BatchID:         batchID,
		TransactionType: model.StockTxRelease,
		QuantityChanged: qty.Neg(),
		OnHandAfter:     newOnHand,
		ReservedAfter:   newReserved,
	})
}

func (s *ledgerService) Restock(ctx context.Context, consumableID uuid.UUID, qty decimal.Decimal, batchID *uuid.UUID, note string) error {
	c, err := s.consumableRepo.FindByIDForUpdate(ctx, consumableID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: consumable %s", workflow.ErrNotFound, consumableID)
		}
		return err
	}

	newOnHand := c.OnHand.Add(qty)
	if err := s.consumableRepo.UpdateQuantities(ctx, c.ID, newOnHand, c.Reserved); err != nil {
		return fmt.Errorf("failed to restock %s: %w", c.SKU, err)
	}

	return s.stockTxRepo.Create(ctx, &model.StockTransaction{
		ConsumableID:    c.ID,
		BatchID:         batchID,
		TransactionType: model.StockTxAdjust,
		QuantityChanged: qty,
		OnHandAfter:     newOnHand,
		ReservedAfter:   c.Reserved,
		Note:            note,
	})
}

func (s *ledgerService) Adjust(ctx context.Context, consumableID uuid.UUID, delta decimal.Decimal, note string) (*model.Consumable, error) {
	c, err := s.consumableRepo.FindByIDForUpdate(ctx, consumableID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: consumable %s", workflow.ErrNotFound, consumableID)
		}
		return nil, err
	}

	newOnHand := c.OnHand.Add(delta)
	if newOnHand.LessThan(c.Reserved) {
		return nil, fmt.Errorf("%w: adjustment would leave %s below its reserved quantity (%s)",
			workflow.ErrValidation, c.SKU, c.Reserved)
	}

	if err := s.consumableRepo.UpdateQuantities(ctx, c.ID, newOnHand, c.Reserved); err != nil {
		return nil, fmt.Errorf("failed to adjust stock for %s: %w", c.SKU, err)
	}

	if err := s.stockTxRepo.Create(ctx, &model.StockTransaction{
		ConsumableID:    c.ID,
		TransactionType: model.StockTxAdjust,
		QuantityChanged: delta,
		OnHandAfter:     newOnHand,
		ReservedAfter:   c.Reserved,
		Note:            note,
	}); err != nil {
		return nil, err
	}

	c.OnHand = newOnHand
	return c, nil
}
