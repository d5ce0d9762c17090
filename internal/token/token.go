// Package token implements the signed, single-purpose capability tokens used
// by the account lifecycle flows (confirmation, password reset, email change,
// invitation). A token is an opaque HS256 JWT safe to embed in a URL or email
// body; it proves only integrity and freshness. Whether the purpose and
// subject fit the operation being attempted is checked by the caller after
// redemption.
package token

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose tags the single intended use of a token. A token issued for one
// purpose must never be accepted by another flow.
type Purpose string

const (
	PurposeConfirm     Purpose = "confirm"
	PurposeReset       Purpose = "reset"
	PurposeChangeEmail Purpose = "change-email"
	PurposeInvite      Purpose = "invite"
)

// ErrInvalid is the only error Redeem returns. Expired, corrupt,
// wrong-algorithm and malformed tokens all collapse into it so that callers
// cannot leak which check failed.
var ErrInvalid = errors.New("invalid or expired token")

// Payload is the decoded content of a redeemed token.
type Payload struct {
	Purpose   Purpose
	AccountID uint64
	Extra     string // auxiliary data, e.g. the new address for email changes
}

// Codec signs and verifies purpose tokens with a server-held secret.
type Codec struct {
	secret []byte
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Issue serializes {purpose, account id, extra} plus issuance time, signs it
// and returns the opaque string. A zero or negative ttl produces a token
// that is already expired; Redeem will reject it.
func (c *Codec) Issue(purpose Purpose, accountID uint64, extra string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"pur": string(purpose),
		"sub": strconv.FormatUint(accountID, 10),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if extra != "" {
		claims["ext"] = extra
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(c.secret)
}

// Redeem verifies the signature and expiry of raw and returns its payload.
// On any failure it returns ErrInvalid and nothing else; partially trusted
// data never escapes.
func (c *Codec) Redeem(raw string) (Payload, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalid
		}
		return c.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return Payload{}, ErrInvalid
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Payload{}, ErrInvalid
	}
	pur, ok := claims["pur"].(string)
	if !ok || pur == "" {
		return Payload{}, ErrInvalid
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return Payload{}, ErrInvalid
	}
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || id == 0 {
		return Payload{}, ErrInvalid
	}
	p := Payload{Purpose: Purpose(pur), AccountID: id}
	if ext, ok := claims["ext"].(string); ok {
		p.Extra = ext
	}
	return p, nil
}
