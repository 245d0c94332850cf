package dbx

import (
	"database/sql/driver"
	"fmt"
	"strconv"
)

// Numeric carries a uint64 through a NUMERIC(20,0) column. BIGINT cannot
// hold the upper half of the range.
type Numeric uint64

func (n Numeric) Value() (driver.Value, error) {
	return strconv.FormatUint(uint64(n), 10), nil
}

func (n *Numeric) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		if v < 0 {
			return fmt.Errorf("numeric: negative value %d", v)
		}
		*n = Numeric(v)
		return nil
	case string:
		return n.parse(v)
	case []byte:
		return n.parse(string(v))
	}
	return fmt.Errorf("numeric: unsupported type %T", src)
}

func (n *Numeric) parse(s string) error {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("numeric: %w", err)
	}
	*n = Numeric(v)
	return nil
}

// Bytes32 scans a BYTEA column that must hold exactly 32 bytes.
type Bytes32 [32]byte

func (b *Bytes32) Scan(src any) error {
	v, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("bytes32: unsupported type %T", src)
	}
	if len(v) != len(b) {
		return fmt.Errorf("bytes32: got %d bytes", len(v))
	}
	copy(b[:], v)
	return nil
}
