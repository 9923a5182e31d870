package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	bucketName           = "receipts"
	settlementBucketName = "settlements"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// DB defines the interface for database operations
type DB interface {
	// SaveReceipt inserts or replaces a receipt
	SaveReceipt(receipt *Receipt) error

	// GetReceipt retrieves a receipt by ID
	GetReceipt(id string) (*Receipt, error)

	// ListReceipts returns all receipts
	ListReceipts() ([]*Receipt, error)

	// UpdateReceipt loads a receipt, applies fn and stores the result in one
	// transaction. Nothing is stored when fn returns an error.
	UpdateReceipt(id string, fn func(*Receipt) error) error

	// DeleteReceipt removes a receipt if check allows it and returns the
	// removed record
	DeleteReceipt(id string, check func(*Receipt) error) (*Receipt, error)

	// SaveSettlement loads the settlement's receipts, lets settle fill in the
	// settlement from them and stores both in one transaction. It fails with
	// ErrNotFound or ErrSettled when a receipt is missing or already settled.
	SaveSettlement(settlement *Settlement, settle func([]*Receipt) error) error

	// GetSettlement retrieves a settlement by ID
	GetSettlement(id string) (*Settlement, error)

	// ListSettlements returns all settlements
	ListSettlements() ([]*Settlement, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens or creates the database at path
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketName, settlementBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func putJSON(tx *bbolt.Tx, bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", key, err)
	}
	return tx.Bucket([]byte(bucket)).Put([]byte(key), data)
}

func getJSON(tx *bbolt.Tx, bucket, key string, v any) error {
	data := tx.Bucket([]byte(bucket)).Get([]byte(key))
	if data == nil {
		return fmt.Errorf("%s %s: %w", bucket, key, ErrNotFound)
	}
	return json.Unmarshal(data, v)
}

// SaveReceipt saves a receipt to the database
func (b *BoltDB) SaveReceipt(receipt *Receipt) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx, bucketName, receipt.ID, receipt)
	})
}

// GetReceipt retrieves a receipt by ID
func (b *BoltDB) GetReceipt(id string) (*Receipt, error) {
	var receipt Receipt
	err := b.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx, bucketName, id, &receipt)
	})
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// ListReceipts returns all receipts in key order
func (b *BoltDB) ListReceipts() ([]*Receipt, error) {
	receipts := make([]*Receipt, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var receipt Receipt
			if err := json.Unmarshal(v, &receipt); err != nil {
				return fmt.Errorf("unmarshaling receipt %s: %w", k, err)
			}
			receipts = append(receipts, &receipt)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

// UpdateReceipt applies fn to a stored receipt
func (b *BoltDB) UpdateReceipt(id string, fn func(*Receipt) error) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		var receipt Receipt
		if err := getJSON(tx, bucketName, id, &receipt); err != nil {
			return err
		}
		if err := fn(&receipt); err != nil {
			return err
		}
		return putJSON(tx, bucketName, id, &receipt)
	})
}

// DeleteReceipt removes a receipt from the database
func (b *BoltDB) DeleteReceipt(id string, check func(*Receipt) error) (*Receipt, error) {
	var receipt Receipt
	err := b.db.Update(func(tx *bbolt.Tx) error {
		if err := getJSON(tx, bucketName, id, &receipt); err != nil {
			return err
		}
		if err := check(&receipt); err != nil {
			return err
		}
		return tx.Bucket([]byte(bucketName)).Delete([]byte(id))
	})
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// SaveSettlement settles the stored receipts named by settlement.ReceiptIDs
func (b *BoltDB) SaveSettlement(settlement *Settlement, settle func([]*Receipt) error) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		receipts := make([]*Receipt, 0, len(settlement.ReceiptIDs))
		for _, id := range settlement.ReceiptIDs {
			var receipt Receipt
			if err := getJSON(tx, bucketName, id, &receipt); err != nil {
				return err
			}
			if receipt.Settled() {
				return fmt.Errorf("receipt %s: %w", id, ErrSettled)
			}
			receipts = append(receipts, &receipt)
		}

		if err := settle(receipts); err != nil {
			return err
		}

		if err := putJSON(tx, settlementBucketName, settlement.ID, settlement); err != nil {
			return err
		}
		for _, receipt := range receipts {
			receipt.SettlementID = settlement.ID
			receipt.UpdatedAt = settlement.UpdatedAt
			if err := putJSON(tx, bucketName, receipt.ID, receipt); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetSettlement retrieves a settlement by ID
func (b *BoltDB) GetSettlement(id string) (*Settlement, error) {
	var settlement Settlement
	err := b.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx, settlementBucketName, id, &settlement)
	})
	if err != nil {
		return nil, err
	}
	return &settlement, nil
}

// ListSettlements returns all settlements in key order
func (b *BoltDB) ListSettlements() ([]*Settlement, error) {
	settlements := make([]*Settlement, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(settlementBucketName)).ForEach(func(k, v []byte) error {
			var settlement Settlement
			if err := json.Unmarshal(v, &settlement); err != nil {
				return fmt.Errorf("unmarshaling settlement %s: %w", k, err)
			}
			settlements = append(settlements, &settlement)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return settlements, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
