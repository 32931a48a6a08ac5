package nuscenes

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// TokenLength is the byte width of a Token. On the wire a token is a hex
// string twice this long.
const TokenLength = 16

// Token is the fixed-width identifier keying every metadata record except
// Visibility. Tokens are opaque: equality, ordering and display only.
type Token [TokenLength]byte

// ParseToken decodes a 32-character hex string into a Token.
func ParseToken(s string) (Token, error) {
	var t Token
	if len(s) != 2*TokenLength {
		return Token{}, &ParseError{
			Value:  s,
			Reason: fmt.Sprintf("token must be %d hex characters, got %d", 2*TokenLength, len(s)),
		}
	}
	if _, err := hex.Decode(t[:], []byte(s)); err != nil {
		return Token{}, &ParseError{Value: s, Reason: err.Error()}
	}
	return t, nil
}

// MustParseToken is ParseToken for compile-time-known literals; it panics
// on malformed input.
func MustParseToken(s string) Token {
	t, err := ParseToken(s)
	if err != nil {
		panic(err)
	}
	return t
}

// RandomToken returns a freshly generated token. Real datasets author
// their own tokens; this is for building synthetic datasets and fixtures.
func RandomToken() Token {
	return Token(uuid.New())
}

func (t Token) String() string { return hex.EncodeToString(t[:]) }

// Compare orders tokens bytewise, for deterministic sorts.
func (t Token) Compare(other Token) int { return bytes.Compare(t[:], other[:]) }

// MarshalText implements encoding.TextMarshaler.
func (t Token) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Token) UnmarshalText(text []byte) error {
	tok, err := ParseToken(string(text))
	if err != nil {
		return err
	}
	*t = tok
	return nil
}

// OptionalToken is a Token that may be absent. nuScenes writes absent
// references as an empty string rather than null, so this follows the
// sql.Null* shape instead of using a pointer.
type OptionalToken struct {
	Token Token
	Valid bool
}

// Some wraps a present token.
func Some(t Token) OptionalToken { return OptionalToken{Token: t, Valid: true} }

func (t OptionalToken) String() string {
	if !t.Valid {
		return ""
	}
	return t.Token.String()
}

// MarshalText writes the empty string for an absent token.
func (t OptionalToken) MarshalText() ([]byte, error) {
	if !t.Valid {
		return []byte{}, nil
	}
	return t.Token.MarshalText()
}

// UnmarshalText treats the empty string as absent.
func (t *OptionalToken) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*t = OptionalToken{}
		return nil
	}
	if err := t.Token.UnmarshalText(text); err != nil {
		return err
	}
	t.Valid = true
	return nil
}

// VisibilityToken keys the visibility table. It is a small numeric
// identifier written as a decimal string on the wire.
type VisibilityToken uint32

func (t VisibilityToken) String() string { return strconv.FormatUint(uint64(t), 10) }

// MarshalText implements encoding.TextMarshaler.
func (t VisibilityToken) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *VisibilityToken) UnmarshalText(text []byte) error {
	v, err := strconv.ParseUint(string(text), 10, 32)
	if err != nil {
		return &ParseError{Value: string(text), Reason: "visibility token must be a decimal integer"}
	}
	*t = VisibilityToken(v)
	return nil
}

// OptionalVisibilityToken mirrors OptionalToken for the annotation
// visibility reference, which may be empty.
type OptionalVisibilityToken struct {
	Token VisibilityToken
	Valid bool
}

func (t OptionalVisibilityToken) String() string {
	if !t.Valid {
		return ""
	}
	return t.Token.String()
}

// MarshalText writes the empty string for an absent token.
func (t OptionalVisibilityToken) MarshalText() ([]byte, error) {
	if !t.Valid {
		return []byte{}, nil
	}
	return t.Token.MarshalText()
}

// UnmarshalText treats the empty string as absent.
func (t *OptionalVisibilityToken) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*t = OptionalVisibilityToken{}
		return nil
	}
	if err := t.Token.UnmarshalText(text); err != nil {
		return err
	}
	t.Valid = true
	return nil
}
