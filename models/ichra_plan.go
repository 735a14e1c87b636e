package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// StringList is a JSON-encoded list of strings stored in a single column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported type for StringList: %T", value)
	}
}

// IchraPlan is a read-only catalog entity. The wizard never creates or
// mutates plans; the catalog is seeded once at process start.
type IchraPlan struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"size:100;not null" json:"name"`
	Description   string          `gorm:"size:500;not null" json:"description"`
	MonthlyAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"monthly_amount"`
	AnnualAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"annual_amount"`
	Features      StringList      `gorm:"type:jsonb;not null" json:"features"`
	IsPopular     *bool           `gorm:"default:false" json:"is_popular"`
}

func (IchraPlan) TableName() string {
	return "ichra_plans"
}

// IchraPlanFilter represents filter criteria for plan queries
type IchraPlanFilter struct {
	ID        *uint
	Name      *string
	IsPopular *bool
}
