package core

import (
	"errors"
	"fmt"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// maxDecodedLength bounds any slice decoded from stored bytes.
const maxDecodedLength = 1 << 20

// ErrInvalidLength indicates a decoded length prefix is negative or too large.
var ErrInvalidLength = errors.New("invalid length")

// ValidateLength rejects decoded slice lengths before allocation.
func ValidateLength(length int) error {
	if length < 0 || length > maxDecodedLength {
		return fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}
	return nil
}

// SemanticMUS serializes Semantic as a presence flag followed by the value.
// The generator cannot reach its unexported fields.
var SemanticMUS = semanticMUS{}

var _ mus.Serializer[Semantic] = SemanticMUS

type semanticMUS struct{}

func (s semanticMUS) Marshal(v Semantic, bs []byte) (n int) {
	n = ord.Bool.Marshal(v.ok, bs)
	if !v.ok {
		return n
	}
	return n + varint.Float64.Marshal(v.value, bs[n:])
}

func (s semanticMUS) Unmarshal(bs []byte) (v Semantic, n int, err error) {
	ok, n, err := ord.Bool.Unmarshal(bs)
	if err != nil || !ok {
		return NoSemantic, n, err
	}
	f, n1, err := varint.Float64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return NoSemantic, n, err
	}
	return SemanticOf(f), n, nil
}

func (s semanticMUS) Size(v Semantic) (size int) {
	size = ord.Bool.Size(v.ok)
	if !v.ok {
		return size
	}
	return size + varint.Float64.Size(v.value)
}

func (s semanticMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return n, err
}
