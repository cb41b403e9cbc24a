package bubblegum

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/metaplex-go/bubblegum/pkg/solana"
)

var (
	ErrInvalidMetadata = errors.New("invalid metadata")
	ErrSerialization   = errors.New("serialization failed")
)

const (
	maxNameLength   = 32
	maxSymbolLength = 10
	maxURILength    = 200

	maxSellerFeeBasisPoints = 10000
	maxCreatorShare         = 100
)

type TokenProgramVersion uint8

const (
	TokenProgramVersionOriginal TokenProgramVersion = iota
	TokenProgramVersionToken2022
)

type TokenStandard uint8

const (
	TokenStandardNonFungible TokenStandard = iota
	TokenStandardFungibleAsset
	TokenStandardFungible
	TokenStandardNonFungibleEdition
)

type Creator struct {
	Address  ed25519.PublicKey
	Verified bool
	Share    uint8
}

type Collection struct {
	Verified bool
	Key      ed25519.PublicKey
}

type Uses struct {
	UseMethod uint8
	Remaining uint64
	Total     uint64
}

// Metadata mirrors the mpl-bubblegum MetadataArgs record. Field order
// is the borsh wire contract and must not change.
type Metadata struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	PrimarySaleHappened  bool
	IsMutable            bool
	EditionNonce         *uint8
	TokenStandard        *TokenStandard
	Collection           *Collection
	Uses                 *Uses
	TokenProgramVersion  TokenProgramVersion
	Creators             []Creator
}

// Marshal encodes the record with borsh: u32 length prefixed strings,
// little endian integers, single byte Option tags.
//
// The string caps mirror the on-chain metadata limits; a record that
// exceeds them would be rejected by the program anyway.
func (m Metadata) Marshal() ([]byte, error) {
	if len(m.Name) > maxNameLength || len(m.Symbol) > maxSymbolLength || len(m.URI) > maxURILength {
		return nil, errors.Wrap(ErrSerialization, "metadata string field too long")
	}

	b := bytes.NewBuffer(nil)

	writeString(b, m.Name)
	writeString(b, m.Symbol)
	writeString(b, m.URI)

	var u16Buf [2]byte
	binary.LittleEndian.PutUint16(u16Buf[:], m.SellerFeeBasisPoints)
	_, _ = b.Write(u16Buf[:])

	writeBool(b, m.PrimarySaleHappened)
	writeBool(b, m.IsMutable)

	if m.EditionNonce != nil {
		_ = b.WriteByte(1)
		_ = b.WriteByte(*m.EditionNonce)
	} else {
		_ = b.WriteByte(0)
	}

	if m.TokenStandard != nil {
		_ = b.WriteByte(1)
		_ = b.WriteByte(byte(*m.TokenStandard))
	} else {
		_ = b.WriteByte(0)
	}

	if m.Collection != nil {
		if len(m.Collection.Key) != ed25519.PublicKeySize {
			return nil, errors.Wrap(ErrSerialization, "invalid collection key size")
		}
		_ = b.WriteByte(1)
		writeBool(b, m.Collection.Verified)
		_, _ = b.Write(m.Collection.Key)
	} else {
		_ = b.WriteByte(0)
	}

	if m.Uses != nil {
		_ = b.WriteByte(1)
		_ = b.WriteByte(m.Uses.UseMethod)
		var u64Buf [8]byte
		binary.LittleEndian.PutUint64(u64Buf[:], m.Uses.Remaining)
		_, _ = b.Write(u64Buf[:])
		binary.LittleEndian.PutUint64(u64Buf[:], m.Uses.Total)
		_, _ = b.Write(u64Buf[:])
	} else {
		_ = b.WriteByte(0)
	}

	_ = b.WriteByte(byte(m.TokenProgramVersion))

	var u32Buf [4]byte
	binary.LittleEndian.PutUint32(u32Buf[:], uint32(len(m.Creators)))
	_, _ = b.Write(u32Buf[:])
	for _, c := range m.Creators {
		if len(c.Address) != ed25519.PublicKeySize {
			return nil, errors.Wrap(ErrSerialization, "invalid creator address size")
		}
		_, _ = b.Write(c.Address)
		writeBool(b, c.Verified)
		_ = b.WriteByte(c.Share)
	}

	return b.Bytes(), nil
}

// Unmarshal decodes a borsh encoded record.
func (m *Metadata) Unmarshal(raw []byte) (err error) {
	b := bytes.NewBuffer(raw)

	if m.Name, err = readString(b); err != nil {
		return errors.Wrap(err, "failed to read name")
	}
	if m.Symbol, err = readString(b); err != nil {
		return errors.Wrap(err, "failed to read symbol")
	}
	if m.URI, err = readString(b); err != nil {
		return errors.Wrap(err, "failed to read uri")
	}

	var u16Buf [2]byte
	if _, err = io.ReadFull(b, u16Buf[:]); err != nil {
		return errors.Wrap(err, "failed to read seller fee")
	}
	m.SellerFeeBasisPoints = binary.LittleEndian.Uint16(u16Buf[:])

	if m.PrimarySaleHappened, err = readBool(b); err != nil {
		return errors.Wrap(err, "failed to read primary sale flag")
	}
	if m.IsMutable, err = readBool(b); err != nil {
		return errors.Wrap(err, "failed to read mutability flag")
	}

	editionNoncePresent, err := readBool(b)
	if err != nil {
		return errors.Wrap(err, "failed to read edition nonce tag")
	}
	if editionNoncePresent {
		v, err := b.ReadByte()
		if err != nil {
			return errors.Wrap(err, "failed to read edition nonce")
		}
		m.EditionNonce = &v
	}

	tokenStandardPresent, err := readBool(b)
	if err != nil {
		return errors.Wrap(err, "failed to read token standard tag")
	}
	if tokenStandardPresent {
		v, err := b.ReadByte()
		if err != nil {
			return errors.Wrap(err, "failed to read token standard")
		}
		ts := TokenStandard(v)
		m.TokenStandard = &ts
	}

	collectionPresent, err := readBool(b)
	if err != nil {
		return errors.Wrap(err, "failed to read collection tag")
	}
	if collectionPresent {
		var c Collection
		if c.Verified, err = readBool(b); err != nil {
			return errors.Wrap(err, "failed to read collection verified flag")
		}
		c.Key = make([]byte, ed25519.PublicKeySize)
		if _, err = io.ReadFull(b, c.Key); err != nil {
			return errors.Wrap(err, "failed to read collection key")
		}
		m.Collection = &c
	}

	usesPresent, err := readBool(b)
	if err != nil {
		return errors.Wrap(err, "failed to read uses tag")
	}
	if usesPresent {
		var u Uses
		if u.UseMethod, err = b.ReadByte(); err != nil {
			return errors.Wrap(err, "failed to read use method")
		}
		var u64Buf [8]byte
		if _, err = io.ReadFull(b, u64Buf[:]); err != nil {
			return errors.Wrap(err, "failed to read uses remaining")
		}
		u.Remaining = binary.LittleEndian.Uint64(u64Buf[:])
		if _, err = io.ReadFull(b, u64Buf[:]); err != nil {
			return errors.Wrap(err, "failed to read uses total")
		}
		u.Total = binary.LittleEndian.Uint64(u64Buf[:])
		m.Uses = &u
	}

	version, err := b.ReadByte()
	if err != nil {
		return errors.Wrap(err, "failed to read token program version")
	}
	m.TokenProgramVersion = TokenProgramVersion(version)

	var u32Buf [4]byte
	if _, err = io.ReadFull(b, u32Buf[:]); err != nil {
		return errors.Wrap(err, "failed to read creator count")
	}
	creatorLen := binary.LittleEndian.Uint32(u32Buf[:])
	if int(creatorLen) > b.Len()/(ed25519.PublicKeySize+2) {
		return errors.Errorf("creator count out of range: %d", creatorLen)
	}

	m.Creators = make([]Creator, creatorLen)
	for i := range m.Creators {
		m.Creators[i].Address = make([]byte, ed25519.PublicKeySize)
		if _, err = io.ReadFull(b, m.Creators[i].Address); err != nil {
			return errors.Wrapf(err, "failed to read creator[%d] address", i)
		}
		if m.Creators[i].Verified, err = readBool(b); err != nil {
			return errors.Wrapf(err, "failed to read creator[%d] verified flag", i)
		}
		if m.Creators[i].Share, err = b.ReadByte(); err != nil {
			return errors.Wrapf(err, "failed to read creator[%d] share", i)
		}
	}

	if b.Len() != 0 {
		return errors.Errorf("%d trailing bytes after record", b.Len())
	}

	return nil
}

// metadataInput is the JSON document hosts author. Reserved protocol
// fields are not part of the schema; they are defaulted on conversion.
type metadataInput struct {
	Name                 string         `json:"name"`
	Symbol               string         `json:"symbol"`
	URI                  string         `json:"uri"`
	SellerFeeBasisPoints uint16         `json:"seller_fee_basis_points"`
	Creators             []creatorInput `json:"creators"`
	PrimarySaleHappened  bool           `json:"primary_sale_happened"`
	IsMutable            bool           `json:"is_mutable"`
}

type creatorInput struct {
	Address  string `json:"address"`
	Verified bool   `json:"verified"`
	Share    uint8  `json:"share"`
}

// ParseMetadataJSON converts a host authored JSON document into a
// Metadata record, validating creator addresses and value ranges.
// Reserved fields default to absent, with the original token program
// version.
func ParseMetadataJSON(jsonText string) (*Metadata, error) {
	var input metadataInput
	if err := json.Unmarshal([]byte(jsonText), &input); err != nil {
		return nil, errors.Wrapf(ErrInvalidMetadata, "JSON parse error: %v", err)
	}

	if len(input.Name) > maxNameLength {
		return nil, errors.Wrapf(ErrInvalidMetadata, "name exceeds %d bytes", maxNameLength)
	}
	if len(input.Symbol) > maxSymbolLength {
		return nil, errors.Wrapf(ErrInvalidMetadata, "symbol exceeds %d bytes", maxSymbolLength)
	}
	if len(input.URI) > maxURILength {
		return nil, errors.Wrapf(ErrInvalidMetadata, "uri exceeds %d bytes", maxURILength)
	}
	if input.SellerFeeBasisPoints > maxSellerFeeBasisPoints {
		return nil, errors.Wrapf(ErrInvalidMetadata, "seller_fee_basis_points out of range: %d", input.SellerFeeBasisPoints)
	}

	m := &Metadata{
		Name:                 input.Name,
		Symbol:               input.Symbol,
		URI:                  input.URI,
		SellerFeeBasisPoints: input.SellerFeeBasisPoints,
		PrimarySaleHappened:  input.PrimarySaleHappened,
		IsMutable:            input.IsMutable,
		TokenProgramVersion:  TokenProgramVersionOriginal,
		Creators:             make([]Creator, 0, len(input.Creators)),
	}

	for _, c := range input.Creators {
		address, err := solana.ParsePublicKey(c.Address)
		if err != nil {
			return nil, err
		}
		if c.Share > maxCreatorShare {
			return nil, errors.Wrapf(ErrInvalidMetadata, "creator share out of range: %d", c.Share)
		}

		m.Creators = append(m.Creators, Creator{
			Address:  address,
			Verified: c.Verified,
			Share:    c.Share,
		})
	}

	return m, nil
}

// SerializeMetadata converts a JSON metadata document into the borsh
// record, base64 encoded for transports that cannot carry raw bytes.
func SerializeMetadata(jsonText string) (string, error) {
	m, err := ParseMetadataJSON(jsonText)
	if err != nil {
		return "", err
	}

	raw, err := m.Marshal()
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(raw), nil
}

// DeserializeMetadata is the inverse of SerializeMetadata.
func DeserializeMetadata(base64Text string) (*Metadata, error) {
	raw, err := base64.StdEncoding.DecodeString(base64Text)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidMetadata, "invalid base64: %v", err)
	}

	var m Metadata
	if err := m.Unmarshal(raw); err != nil {
		return nil, errors.Wrapf(ErrInvalidMetadata, "invalid binary record: %v", err)
	}

	return &m, nil
}

func (c Creator) String() string {
	return base58.Encode(c.Address)
}

func writeString(b *bytes.Buffer, v string) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(v)))
	_, _ = b.Write(lenBuf[:])
	_, _ = b.WriteString(v)
}

func readString(b *bytes.Buffer) (string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(b, lenBuf[:]); err != nil {
		return "", err
	}

	strLen := binary.LittleEndian.Uint32(lenBuf[:])
	if strLen > math.MaxInt32 || int(strLen) > b.Len() {
		return "", errors.Errorf("string length out of range: %d", strLen)
	}

	raw := make([]byte, strLen)
	if _, err := io.ReadFull(b, raw); err != nil {
		return "", err
	}

	return string(raw), nil
}

func writeBool(b *bytes.Buffer, v bool) {
	if v {
		_ = b.WriteByte(1)
	} else {
		_ = b.WriteByte(0)
	}
}

func readBool(b *bytes.Buffer) (bool, error) {
	v, err := b.ReadByte()
	if err != nil {
		return false, err
	}
	if v > 1 {
		return false, errors.Errorf("invalid bool tag: %d", v)
	}

	return v == 1, nil
}
