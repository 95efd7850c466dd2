package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dezko/dezko-backend/pkg/enums"
)

// Space is a tenant offering bookable agendas.
type Space struct {
	ID                     uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerUserID            uuid.UUID           `gorm:"column:owner_user_id;type:uuid;not null;index"`
	Name                   string              `gorm:"column:name;not null"`
	StripeConnectAccountID *string             `gorm:"column:stripe_connect_account_id"`
	StripeConnectStatus    enums.ConnectStatus `gorm:"column:stripe_connect_status;not null;default:'not_connected'"`
	CreatedAt              time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Space) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// SpaceConfig holds the typed settings blob of a space as JSON.
type SpaceConfig struct {
	SpaceID   uuid.UUID       `gorm:"column:space_id;type:uuid;primaryKey"`
	Settings  json.RawMessage `gorm:"column:settings;type:jsonb;not null"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// MercadoPagoAccount stores a tenant's sealed Mercado Pago OAuth credentials.
type MercadoPagoAccount struct {
	SpaceID             uuid.UUID  `gorm:"column:space_id;type:uuid;primaryKey"`
	MPUserID            string     `gorm:"column:mp_user_id;not null"`
	AccessTokenSealed   string     `gorm:"column:access_token_sealed;not null"`
	RefreshTokenSealed  string     `gorm:"column:refresh_token_sealed"`
	PublicKey           string     `gorm:"column:public_key"`
	LiveMode            bool       `gorm:"column:live_mode;not null;default:false"`
	MarketplaceVerified bool       `gorm:"column:marketplace_verified;not null;default:false"`
	ExpiresAt           *time.Time `gorm:"column:expires_at"`
	CreatedAt           time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (MercadoPagoAccount) TableName() string { return "mercadopago_accounts" }
