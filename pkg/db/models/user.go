package models

import (
	"time"

	"github.com/angelmondragon/promoredeem/pkg/enums"
)

// User mirrors the identity row owned by the auth service; only display fields are read.
type User struct {
	ID        int64            `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string           `gorm:"column:name;not null"`
	Role      enums.MemberRole `gorm:"column:role;type:text;not null"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
}
