package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zombor/shopping-tracker/internal/parser"
	"github.com/zombor/shopping-tracker/internal/scanning"
)

var (
	// ErrSettled is returned when changing a receipt that is part of a settlement
	ErrSettled = errors.New("receipt is already settled")

	// ErrInvalidEdit is returned for edits that would break item invariants
	ErrInvalidEdit = errors.New("invalid edit")

	// ErrInvalidSettlement is returned for a settlement request that names no
	// receipts or names one twice
	ErrInvalidSettlement = errors.New("invalid settlement")
)

// maxPriceScale is the most decimal places an edited unit price may carry
const maxPriceScale = 4

// IDGenerator generates unique IDs for receipts and settlements
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// Directory resolves card suffixes to purchasers and lists the household
// members shared costs are split between
type Directory interface {
	parser.Directory
	Members() []string
	IsMember(name string) bool
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles receipt operations
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	directory   Directory
	idGenerator IDGenerator
	timeSource  TimeSource
	metrics     *Metrics
}

// NewService creates a new Service with UUID IDs and the wall clock
func NewService(db DB, scanner scanning.Scanner, storage Storage, directory Directory) *Service {
	return NewServiceWithDeps(db, scanner, storage, directory, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, directory Directory, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		directory:   directory,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// WithMetrics records imports and settlements in m
func (s *Service) WithMetrics(m *Metrics) *Service {
	s.metrics = m
	return s
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename strips special characters and shortens phone-generated names
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if unsafeFilenameChars.MatchString(strings.TrimPrefix(ext, ".")) {
		ext = ""
	}
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(repeatedSpaces.ReplaceAllString(base, " "))

	const maxLen = 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// ProcessReceipt stores an upload, reads its text, parses it and saves the result.
// Parser failures are returned wrapped, so errors.Is against
// parser.ErrUnsupportedMerchant and parser.ErrMalformedReceipt still works.
func (s *Service) ProcessReceipt(ctx context.Context, filename string, data []byte, contentType string) (*Receipt, error) {
	receipt, err := s.processReceipt(ctx, filename, data, contentType)
	s.metrics.observeImport(receipt, err)
	return receipt, err
}

func (s *Service) processReceipt(ctx context.Context, filename string, data []byte, contentType string) (*Receipt, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	text, err := s.scanner.ReadText(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to read receipt text",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.discard(savedPath)
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	parsed, err := parser.ParseText(text, s.directory)
	if err != nil {
		slog.Warn("Failed to parse receipt",
			"filename", filename,
			"lines", strings.Count(text, "\n")+1,
			"error", err,
		)
		s.discard(savedPath)
		return nil, fmt.Errorf("parsing receipt: %w", err)
	}
	if parsed.Truncated {
		slog.Warn("Receipt items stopped at an unreadable line",
			"receipt_id", id,
			"items", len(parsed.Items),
		)
	}

	items := make([]Item, 0, len(parsed.Items))
	for i, li := range parsed.Items {
		items = append(items, Item{
			ID:        strconv.Itoa(i + 1),
			Name:      li.Name,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
			Shared:    true,
		})
	}

	receipt := &Receipt{
		ID:              id,
		StoreName:       parsed.StoreName,
		TransactionDate: parsed.TransactionDate,
		Purchaser:       parsed.Purchaser,
		Items:           items,
		Truncated:       parsed.Truncated,
		Filename:        savedPath,
		ContentType:     contentType,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.db.SaveReceipt(receipt); err != nil {
		s.discard(savedPath)
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}

	slog.Info("Receipt processed",
		"receipt_id", id,
		"store", receipt.StoreName,
		"purchaser", receipt.Purchaser,
		"items", len(items),
	)
	return receipt, nil
}

// discard removes a stored upload after a failed import
func (s *Service) discard(path string) {
	if err := s.storage.Delete(path); err != nil {
		slog.Warn("Failed to remove stored file", "filename", path, "error", err)
	}
}

// GetReceipt retrieves a receipt by ID
func (s *Service) GetReceipt(id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns all receipts, newest first
func (s *Service) ListReceipts() ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	sort.SliceStable(receipts, func(i, j int) bool {
		return receipts[i].CreatedAt.After(receipts[j].CreatedAt)
	})
	return receipts, nil
}

// DeleteReceipt removes an unsettled receipt and its file
func (s *Service) DeleteReceipt(id string) error {
	receipt, err := s.db.DeleteReceipt(id, func(r *Receipt) error {
		if r.Settled() {
			return fmt.Errorf("deleting receipt %s: %w", id, ErrSettled)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting receipt: %w", err)
	}

	if err := s.storage.Delete(receipt.Filename); err != nil {
		// The record is gone; a stray file is harmless
		slog.Warn("Failed to delete file", "filename", receipt.Filename, "error", err)
	}
	return nil
}

// GetReceiptFile retrieves the uploaded file for a receipt
func (s *Service) GetReceiptFile(id string) ([]byte, string, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt: %w", err)
	}

	data, err := s.storage.Get(receipt.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}

	return data, receipt.ContentType, nil
}

// ItemUpdate holds the fields of an item a user may correct. Nil fields are
// left unchanged.
type ItemUpdate struct {
	Quantity  *int             `json:"quantity,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Shared    *bool            `json:"shared,omitempty"`
}

// validPrice reports whether d is a non-negative price in plain decimal form
func validPrice(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Exponent() <= 0 && d.Exponent() >= -maxPriceScale
}

// editReceipt applies fn to an unsettled receipt and stores it. The settled
// check and the write happen in the same transaction.
func (s *Service) editReceipt(id string, fn func(*Receipt) error) (*Receipt, error) {
	var edited *Receipt
	err := s.db.UpdateReceipt(id, func(receipt *Receipt) error {
		if receipt.Settled() {
			return fmt.Errorf("editing receipt %s: %w", id, ErrSettled)
		}
		if err := fn(receipt); err != nil {
			return err
		}
		receipt.UpdatedAt = s.timeSource.Now()
		edited = receipt
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("updating receipt %s: %w", id, err)
	}
	return edited, nil
}

// UpdateItem corrects the quantity, price or share flag of one item
func (s *Service) UpdateItem(receiptID, itemID string, update ItemUpdate) (*Receipt, error) {
	if update.Quantity != nil && *update.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidEdit)
	}
	if update.UnitPrice != nil && !validPrice(*update.UnitPrice) {
		return nil, fmt.Errorf("%w: unit price must be a plain non-negative amount with at most %d decimal places", ErrInvalidEdit, maxPriceScale)
	}

	return s.editReceipt(receiptID, func(receipt *Receipt) error {
		idx := -1
		for i := range receipt.Items {
			if receipt.Items[i].ID == itemID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("item %s on receipt %s: %w", itemID, receiptID, ErrNotFound)
		}

		item := &receipt.Items[idx]
		if update.Quantity != nil {
			item.Quantity = *update.Quantity
		}
		if update.UnitPrice != nil {
			item.UnitPrice = *update.UnitPrice
		}
		if update.Shared != nil {
			item.Shared = *update.Shared
		}
		return nil
	})
}

// SetPurchaser records who paid for a receipt the parser could not attribute
func (s *Service) SetPurchaser(receiptID, name string) (*Receipt, error) {
	if s.directory == nil || !s.directory.IsMember(name) {
		return nil, fmt.Errorf("%w: %q is not a known purchaser", ErrInvalidEdit, name)
	}

	return s.editReceipt(receiptID, func(receipt *Receipt) error {
		receipt.Purchaser = name
		return nil
	})
}

func (s *Service) members() []string {
	if s.directory == nil {
		return nil
	}
	return s.directory.Members()
}

// CreateSettlement splits the shared items of the given receipts and marks
// them settled. The receipts are read, split and marked in one transaction, so
// a receipt can never end up in two settlements.
func (s *Service) CreateSettlement(receiptIDs []string) (*Settlement, error) {
	if len(receiptIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one receipt is required", ErrInvalidSettlement)
	}

	seen := make(map[string]bool, len(receiptIDs))
	for _, receiptID := range receiptIDs {
		if seen[receiptID] {
			return nil, fmt.Errorf("%w: receipt %s is listed twice", ErrInvalidSettlement, receiptID)
		}
		seen[receiptID] = true
	}

	now := s.timeSource.Now()
	settlement := &Settlement{
		ID:         s.idGenerator.Generate(),
		ReceiptIDs: receiptIDs,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.db.SaveSettlement(settlement, func(receipts []*Receipt) error {
		balances, sharedTotal, err := computeBalances(receipts, s.members())
		if err != nil {
			return err
		}
		settlement.Balances = balances
		settlement.SharedTotal = sharedTotal
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("saving settlement: %w", err)
	}
	s.metrics.observeSettlement()

	return settlement, nil
}

// GetSettlement retrieves a settlement by ID
func (s *Service) GetSettlement(id string) (*Settlement, error) {
	settlement, err := s.db.GetSettlement(id)
	if err != nil {
		return nil, fmt.Errorf("getting settlement: %w", err)
	}
	return settlement, nil
}

// GetSettlementWithReceipts retrieves a settlement with its receipts
func (s *Service) GetSettlementWithReceipts(id string) (*Settlement, []*Receipt, error) {
	settlement, err := s.db.GetSettlement(id)
	if err != nil {
		return nil, nil, fmt.Errorf("getting settlement: %w", err)
	}

	receipts := make([]*Receipt, 0, len(settlement.ReceiptIDs))
	for _, receiptID := range settlement.ReceiptIDs {
		receipt, err := s.db.GetReceipt(receiptID)
		if err != nil {
			return nil, nil, fmt.Errorf("getting receipt %s: %w", receiptID, err)
		}
		receipts = append(receipts, receipt)
	}

	return settlement, receipts, nil
}

// ListSettlements returns all settlements
func (s *Service) ListSettlements() ([]*Settlement, error) {
	settlements, err := s.db.ListSettlements()
	if err != nil {
		return nil, fmt.Errorf("listing settlements: %w", err)
	}
	return settlements, nil
}

// OutstandingBalances splits every unsettled receipt with a known purchaser.
// Receipts still waiting for a purchaser are skipped.
func (s *Service) OutstandingBalances() ([]Balance, decimal.Decimal, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("listing receipts: %w", err)
	}

	open := make([]*Receipt, 0, len(receipts))
	for _, r := range receipts {
		if r.Settled() || r.Purchaser == "" || r.Purchaser == parser.Unknown {
			continue
		}
		open = append(open, r)
	}

	return computeBalances(open, s.members())
}
