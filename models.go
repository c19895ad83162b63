package siwn

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProviderSIWN is the provider id used for the generic Account row paired
// with every NearAccount.
const ProviderSIWN = "siwn"

// Network identifies the NEAR network an account lives on.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// User is the user model. Created lazily on first successful verification.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string         `bun:"name" json:"name,omitempty"`
	Email         string         `bun:"email,notnull,unique" json:"email,omitempty"`
	Image         string         `bun:"image" json:"image,omitempty"`
	Metadata      map[string]any `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// AddMetadata will append information to a metadata attribute
func (u *User) AddMetadata(key string, val any) *User {
	if u.Metadata == nil {
		u.Metadata = make(map[string]any)
	}
	u.Metadata[key] = val
	return u
}

// NearAccount binds a NEAR blockchain account to a user. The
// (account_id, network) pair is globally unique: no two users may claim the
// same blockchain account. At most one row per user has is_primary set.
type NearAccount struct {
	bun.BaseModel `bun:"table:near_accounts,alias:nacc"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	AccountID     string     `bun:"account_id,notnull,unique:account_network" json:"account_id,omitempty"`
	Network       Network    `bun:"network,notnull,unique:account_network" json:"network,omitempty"`
	PublicKey     string     `bun:"public_key" json:"public_key,omitempty"`
	IsPrimary     bool       `bun:"is_primary" json:"is_primary"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Summary returns the lightweight projection carried in session claims and
// API responses.
func (n *NearAccount) Summary() NearAccountSummary {
	if n == nil {
		return NearAccountSummary{}
	}
	return NearAccountSummary{
		AccountID: n.AccountID,
		Network:   n.Network,
	}
}

// NearAccountSummary is the resolved account attached to verify responses
// and session claims.
type NearAccountSummary struct {
	AccountID string  `json:"account_id"`
	Network   Network `json:"network"`
}

// Account is the generic provider link shared with OAuth providers
// (google, github, siwn). The last-auth-method safety check counts these
// rows, so NearAccount rows must always have a paired Account row.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	ProviderID    string     `bun:"provider_id,notnull" json:"provider_id,omitempty"`
	AccountID     string     `bun:"account_id,notnull" json:"account_id,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// VerificationChallenge is a single-use nonce keyed by account identity.
// It is consumed (deleted) on successful verification and treated as invalid
// once past ExpiresAt.
type VerificationChallenge struct {
	bun.BaseModel `bun:"table:verification_challenges,alias:vch"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Identifier    string     `bun:"identifier,notnull,unique" json:"identifier,omitempty"`
	Value         string     `bun:"value,notnull" json:"value,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Expired reports whether the challenge is past its expiry at the given time.
func (c *VerificationChallenge) Expired(now time.Time) bool {
	return c == nil || now.After(c.ExpiresAt)
}

// ChallengeIdentifier is the challenge store key for an account.
func ChallengeIdentifier(accountID string, network Network) string {
	return fmt.Sprintf("%s:%s:%s", ProviderSIWN, accountID, network)
}

// ProviderAccountID is the composite account id stored on the generic
// Account row paired with a NearAccount.
func ProviderAccountID(accountID string, network Network) string {
	return fmt.Sprintf("%s:%s", accountID, network)
}
