package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"event-rewards-service/internal/domain"
)

// MerchCatalog supplies published merchandise definitions.
type MerchCatalog interface {
	GetMerch(ctx context.Context, merchID string) (domain.Merchandise, error)
	ListMerch(ctx context.Context) ([]domain.Merchandise, error)
}

// OrderRepository persists confirmed orders and supports duplicate
// detection by reference id.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) error
	Get(ctx context.Context, orderID string) (domain.Order, bool, error)
	GetByReference(ctx context.Context, referenceID string) (domain.Order, bool, error)
	ListByParticipant(ctx context.Context, participantID string) ([]domain.Order, error)
}

// RewardsService runs the redemption transaction: reserving stock,
// debiting the ledger, and confirming the order as one all-or-nothing
// unit. Stock is reserved before funds are debited so a participant is
// never charged for an item that turns out to be unavailable; a failed
// debit releases the reservation.
type RewardsService struct {
	merch     MerchCatalog
	inventory Inventory
	ledger    Ledger
	orders    OrderRepository
	now       func() time.Time
}

func NewRewardsService(merch MerchCatalog, inventory Inventory, ledger Ledger, orders OrderRepository) *RewardsService {
	return &RewardsService{
		merch:     merch,
		inventory: inventory,
		ledger:    ledger,
		orders:    orders,
		now:       time.Now,
	}
}

// MerchListing pairs a catalog item with its live remaining stock.
type MerchListing struct {
	domain.Merchandise
	RemainingStock int `json:"remainingStock"`
}

// Purchase executes a redemption. referenceID is the caller-supplied
// idempotency key; when empty a fresh one is generated (and client
// retries cannot be deduplicated). A replayed reference id
// short-circuits to the previously confirmed order.
func (s *RewardsService) Purchase(ctx context.Context, participantID, merchID string, quantity int, delivery domain.Delivery, referenceID string) (domain.Order, int, error) {
	if quantity < 1 {
		return domain.Order{}, 0, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	if referenceID == "" {
		referenceID = uuid.NewString()
	} else if prior, ok, err := s.orders.GetByReference(ctx, referenceID); err != nil {
		return domain.Order{}, 0, err
	} else if ok {
		balance, err := s.ledger.Balance(ctx, participantID)
		if err != nil {
			return domain.Order{}, 0, err
		}
		return prior, balance, nil
	}

	item, err := s.merch.GetMerch(ctx, merchID)
	if err != nil {
		return domain.Order{}, 0, err
	}
	totalCost := item.PointsCost * quantity

	if err := s.inventory.Reserve(ctx, merchID, quantity); err != nil {
		return domain.Order{}, 0, err
	}

	newBalance, err := s.ledger.Debit(ctx, participantID, totalCost, domain.ReasonMerchPurchase, referenceID)
	if err != nil {
		// Compensate: the reservation must not outlive a failed debit.
		if releaseErr := s.inventory.Release(ctx, merchID, quantity); releaseErr != nil {
			log.Printf("release %s x%d after failed debit: %v", merchID, quantity, releaseErr)
		}
		return domain.Order{}, 0, err
	}

	order := domain.Order{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		MerchID:       merchID,
		Quantity:      quantity,
		TotalCost:     totalCost,
		Delivery:      delivery,
		Status:        domain.OrderConfirmed,
		ReferenceID:   referenceID,
		CreatedAt:     s.now(),
	}
	if err := s.orders.Create(ctx, order); err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			// Lost a race against a concurrent retry of the same reference.
			// Its debit already committed, so ours was a replay no-op; only
			// the duplicate reservation needs undoing.
			if releaseErr := s.inventory.Release(ctx, merchID, quantity); releaseErr != nil {
				log.Printf("release %s x%d after duplicate order: %v", merchID, quantity, releaseErr)
			}
			if prior, ok, getErr := s.orders.GetByReference(ctx, referenceID); getErr == nil && ok {
				return prior, newBalance, nil
			}
			return domain.Order{}, 0, err
		}
		// Both legs committed; the order record is the receipt. Surface the
		// failure but roll the legs back so no points or stock are lost.
		if _, creditErr := s.ledger.Credit(ctx, participantID, totalCost, domain.ReasonMerchPurchase, "revert:"+referenceID); creditErr != nil {
			log.Printf("revert debit %s after failed order write: %v", referenceID, creditErr)
		}
		if releaseErr := s.inventory.Release(ctx, merchID, quantity); releaseErr != nil {
			log.Printf("release %s x%d after failed order write: %v", merchID, quantity, releaseErr)
		}
		return domain.Order{}, 0, err
	}

	return order, newBalance, nil
}

// Orders lists the participant's orders, newest first.
func (s *RewardsService) Orders(ctx context.Context, participantID string) ([]domain.Order, error) {
	return s.orders.ListByParticipant(ctx, participantID)
}

// Order fetches one of the participant's orders by id. Another
// participant's order is indistinguishable from a missing one.
func (s *RewardsService) Order(ctx context.Context, participantID, orderID string) (domain.Order, error) {
	order, ok, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !ok || order.ParticipantID != participantID {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

// ListMerchandise returns the catalog merged with live stock counts.
func (s *RewardsService) ListMerchandise(ctx context.Context) ([]MerchListing, error) {
	items, err := s.merch.ListMerch(ctx)
	if err != nil {
		return nil, err
	}
	listings := make([]MerchListing, 0, len(items))
	for _, item := range items {
		stock, err := s.inventory.Stock(ctx, item.ID)
		if err != nil && !errors.Is(err, domain.ErrMerchNotFound) {
			return nil, err
		}
		listings = append(listings, MerchListing{Merchandise: item, RemainingStock: stock})
	}
	return listings, nil
}

// GetMerchandise returns one item with its live stock.
func (s *RewardsService) GetMerchandise(ctx context.Context, merchID string) (MerchListing, error) {
	item, err := s.merch.GetMerch(ctx, merchID)
	if err != nil {
		return MerchListing{}, err
	}
	stock, err := s.inventory.Stock(ctx, merchID)
	if err != nil && !errors.Is(err, domain.ErrMerchNotFound) {
		return MerchListing{}, err
	}
	return MerchListing{Merchandise: item, RemainingStock: stock}, nil
}
