package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/promoredeem/pkg/db/models"
	"github.com/angelmondragon/promoredeem/pkg/enums"
	pkgerrors "github.com/angelmondragon/promoredeem/pkg/errors"
	"github.com/angelmondragon/promoredeem/pkg/outbox"
	"github.com/angelmondragon/promoredeem/pkg/outbox/payloads"
	"github.com/angelmondragon/promoredeem/pkg/pagination"
)

// Service credits and debits points while keeping every balance equal to the
// sum of its history deltas.
type Service interface {
	// WithTx returns a Service whose writes join tx instead of opening their own.
	WithTx(tx *gorm.DB) Service

	Credit(ctx context.Context, userID, amount int64, reason enums.PointsReason) (Entry, error)
	Debit(ctx context.Context, userID, amount int64, reason enums.PointsReason) (Entry, error)
	Balance(ctx context.Context, userID int64) (int64, error)

	CreditCampaign(ctx context.Context, campaignID, holderID, amount int64, reason enums.PointsReason) (Entry, error)
	DebitCampaign(ctx context.Context, campaignID, holderID, amount int64, reason enums.PointsReason) (Entry, error)
	CampaignBalance(ctx context.Context, campaignID, holderID int64) (Summary, error)

	Apply(ctx context.Context, movement Movement) (Entry, error)
	History(ctx context.Context, query HistoryQuery) (HistoryPage, error)
}

// Direction distinguishes credits from debits.
type Direction int

const (
	DirectionCredit Direction = iota + 1
	DirectionDebit
)

// Movement is a single balance change. CampaignID zero targets the global balance.
type Movement struct {
	Direction  Direction
	UserID     int64
	CampaignID int64
	Amount     int64
	Reason     enums.PointsReason
	Reference  *Reference
}

// Reference ties a history row to the record that caused it.
type Reference struct {
	Type string
	ID   string
}

// Entry is the committed result of a Movement.
type Entry struct {
	HistoryID    string `json:"history_id"`
	UserID       int64  `json:"user_id"`
	CampaignID   int64  `json:"campaign_id"`
	Delta        int64  `json:"delta"`
	BalanceAfter int64  `json:"balance_after"`
}

// Summary reports the totals of one balance scope.
type Summary struct {
	UserID     int64 `json:"user_id"`
	CampaignID int64 `json:"campaign_id"`
	Earned     int64 `json:"earned"`
	Used       int64 `json:"used"`
	Available  int64 `json:"available"`
}

type HistoryQuery struct {
	UserID     int64
	CampaignID *int64
	Params     pagination.Params
}

type HistoryPage struct {
	Items      []models.PointsHistory `json:"items"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Repository Repository
	TxRunner   txRunner
	Outbox     outbox.Emitter
	Clock      func() time.Time
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outbox.Emitter
	now    func() time.Time
	bound  *gorm.DB
}

// NewService wires a ledger service. Outbox is optional.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:   params.Repository,
		tx:     params.TxRunner,
		outbox: params.Outbox,
		now:    clock,
	}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	clone := *s
	clone.bound = tx
	return &clone
}

func (s *service) Credit(ctx context.Context, userID, amount int64, reason enums.PointsReason) (Entry, error) {
	return s.Apply(ctx, Movement{Direction: DirectionCredit, UserID: userID, CampaignID: models.GlobalCampaignID, Amount: amount, Reason: reason})
}

func (s *service) Debit(ctx context.Context, userID, amount int64, reason enums.PointsReason) (Entry, error) {
	return s.Apply(ctx, Movement{Direction: DirectionDebit, UserID: userID, CampaignID: models.GlobalCampaignID, Amount: amount, Reason: reason})
}

func (s *service) Balance(ctx context.Context, userID int64) (int64, error) {
	summary, err := s.summary(ctx, userID, models.GlobalCampaignID)
	if err != nil {
		return 0, err
	}
	return summary.Available, nil
}

func (s *service) CreditCampaign(ctx context.Context, campaignID, holderID, amount int64, reason enums.PointsReason) (Entry, error) {
	if campaignID <= 0 {
		return Entry{}, pkgerrors.New(pkgerrors.CodeValidation, "campaign id is required")
	}
	return s.Apply(ctx, Movement{Direction: DirectionCredit, UserID: holderID, CampaignID: campaignID, Amount: amount, Reason: reason})
}

func (s *service) DebitCampaign(ctx context.Context, campaignID, holderID, amount int64, reason enums.PointsReason) (Entry, error) {
	if campaignID <= 0 {
		return Entry{}, pkgerrors.New(pkgerrors.CodeValidation, "campaign id is required")
	}
	return s.Apply(ctx, Movement{Direction: DirectionDebit, UserID: holderID, CampaignID: campaignID, Amount: amount, Reason: reason})
}

func (s *service) CampaignBalance(ctx context.Context, campaignID, holderID int64) (Summary, error) {
	if campaignID <= 0 {
		return Summary{}, pkgerrors.New(pkgerrors.CodeValidation, "campaign id is required")
	}
	return s.summary(ctx, holderID, campaignID)
}

func (s *service) summary(ctx context.Context, userID, campaignID int64) (Summary, error) {
	if userID <= 0 {
		return Summary{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	repo := s.repo
	if s.bound != nil {
		repo = repo.WithTx(s.bound)
	}
	row, err := repo.GetBalance(ctx, userID, campaignID)
	if err != nil {
		return Summary{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load points balance")
	}
	out := Summary{UserID: userID, CampaignID: campaignID}
	if row != nil {
		out.Earned = row.Earned
		out.Used = row.Used
		out.Available = row.Balance
	}
	return out, nil
}

// Apply records a movement and its history row atomically.
func (s *service) Apply(ctx context.Context, movement Movement) (Entry, error) {
	if err := validateMovement(movement); err != nil {
		return Entry{}, err
	}

	var entry Entry
	err := s.run(ctx, func(repo Repository, tx *gorm.DB) error {
		var err error
		entry, err = s.apply(ctx, repo, tx, movement)
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (s *service) run(ctx context.Context, fn func(repo Repository, tx *gorm.DB) error) error {
	if s.bound != nil {
		return fn(s.repo.WithTx(s.bound), s.bound)
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(s.repo.WithTx(tx), tx)
	})
}

func (s *service) apply(ctx context.Context, repo Repository, tx *gorm.DB, m Movement) (Entry, error) {
	now := s.now().UTC()

	delta := m.Amount
	if m.Direction == DirectionCredit {
		if err := repo.EnsureBalance(ctx, m.UserID, m.CampaignID, now); err != nil {
			return Entry{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create points balance")
		}
		if err := repo.Increment(ctx, m.UserID, m.CampaignID, m.Amount, now); err != nil {
			return Entry{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "credit points balance")
		}
	} else {
		ok, err := repo.DecrementIfSufficient(ctx, m.UserID, m.CampaignID, m.Amount, now)
		if err != nil {
			return Entry{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "debit points balance")
		}
		if !ok {
			return Entry{}, pkgerrors.New(pkgerrors.CodeInsufficientBalance, "insufficient points balance").
				WithDetails(map[string]any{"campaign_id": m.CampaignID, "requested": m.Amount})
		}
		delta = -m.Amount
	}

	row, err := repo.GetBalance(ctx, m.UserID, m.CampaignID)
	if err != nil {
		return Entry{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload points balance")
	}
	if row == nil {
		return Entry{}, pkgerrors.New(pkgerrors.CodeInternal, "points balance vanished mid-transaction")
	}

	history := &models.PointsHistory{
		UserID:       m.UserID,
		CampaignID:   m.CampaignID,
		Delta:        delta,
		BalanceAfter: row.Balance,
		Reason:       m.Reason,
		CreatedAt:    now,
	}
	if m.Reference != nil {
		refType, refID := m.Reference.Type, m.Reference.ID
		history.ReferenceType = &refType
		history.ReferenceID = &refID
	}
	if err := repo.InsertHistory(ctx, history); err != nil {
		return Entry{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record points history")
	}

	entry := Entry{
		HistoryID:    history.ID.String(),
		UserID:       m.UserID,
		CampaignID:   m.CampaignID,
		Delta:        delta,
		BalanceAfter: row.Balance,
	}

	if s.outbox != nil && tx != nil {
		eventType := enums.EventPointsCredited
		if m.Direction == DirectionDebit {
			eventType = enums.EventPointsDebited
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregatePointsBalance,
			AggregateID:   balanceAggregateID(m.UserID, m.CampaignID),
			Data: payloads.PointsMovementEvent{
				UserID:       m.UserID,
				CampaignID:   m.CampaignID,
				Delta:        delta,
				BalanceAfter: row.Balance,
				Reason:       m.Reason,
				HistoryID:    entry.HistoryID,
			},
			OccurredAt: now,
		}); err != nil {
			return Entry{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue points event")
		}
	}

	return entry, nil
}

func (s *service) History(ctx context.Context, query HistoryQuery) (HistoryPage, error) {
	if query.UserID <= 0 {
		return HistoryPage{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	cursor, err := pagination.ParseCursor(query.Params.Cursor)
	if err != nil {
		return HistoryPage{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	repo := s.repo
	if s.bound != nil {
		repo = repo.WithTx(s.bound)
	}
	rows, err := repo.ListHistory(ctx, HistoryFilter{UserID: query.UserID, CampaignID: query.CampaignID}, cursor, pagination.LimitWithBuffer(query.Params.Limit))
	if err != nil {
		return HistoryPage{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list points history")
	}

	items, next := pagination.Page(rows, query.Params.Limit, func(row models.PointsHistory) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	if items == nil {
		items = []models.PointsHistory{}
	}
	return HistoryPage{Items: items, NextCursor: next}, nil
}

func validateMovement(m Movement) error {
	if m.Direction != DirectionCredit && m.Direction != DirectionDebit {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown ledger direction")
	}
	if m.UserID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if m.CampaignID < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "campaign id must not be negative")
	}
	if m.Amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !m.Reason.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid points reason %q", m.Reason))
	}
	return nil
}

func balanceAggregateID(userID, campaignID int64) string {
	return strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(campaignID, 10)
}
