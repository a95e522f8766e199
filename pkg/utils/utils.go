package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/oklog/ulid/v2"
)

const (
	MIMEApplicationCBOR = "application/cbor"
	maxBodySize         = 50 * 1024 * 1024
)

var (
	ErrEmptyBody    = errors.New("request body is empty")
	ErrBodyTooLarge = errors.New("request body exceeds limit")
)

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	DecodeBody(contentType string, body []byte, dst interface{}) error
	Fingerprint(v interface{}) (string, error)
}

type utils struct {
	maxBodySize int
	cborDecMode cbor.DecMode
}

func New() IUtils {
	decMode, err := cbor.DecOptions{
		MaxArrayElements: 1 << 20,
		MaxMapPairs:      1 << 20,
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		decMode, _ = cbor.DecOptions{}.DecMode()
	}

	return &utils{
		maxBodySize: maxBodySize,
		cborDecMode: decMode,
	}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// DecodeBody decodes a JSON or CBOR request body into dst, picking the codec
// from the content type. Anything that is not CBOR is treated as JSON.
func (u *utils) DecodeBody(contentType string, body []byte, dst interface{}) error {
	if len(body) == 0 {
		return ErrEmptyBody
	}
	if len(body) > u.maxBodySize {
		return ErrBodyTooLarge
	}

	if strings.HasPrefix(strings.ToLower(contentType), MIMEApplicationCBOR) {
		return u.cborDecMode.Unmarshal(body, dst)
	}

	return jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(body, dst)
}

// Fingerprint returns the hex sha256 of the canonical JSON encoding of v.
func (u *utils) Fingerprint(v interface{}) (string, error) {
	encoded, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(v)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}
