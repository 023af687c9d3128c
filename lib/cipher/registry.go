package cipher

import (
	"fmt"
	"sort"

	"github.com/samber/oops"
)

// Registered names of the base cipher variants.
const (
	NameNoCipher = "NoCipher"
	NameXor      = "XorCipher"
	NameAESCTR   = "AES-CTR"
	NameAESCBC   = "AES-CBC"
	NameChaCha20 = "ChaCha20"
)

// Spec is one entry of the static cipher table.
type Spec struct {
	Name       string
	Tag        Tag
	ParamSizes []int
	New        func(key []byte) (Cipher, error)
}

// ParamBlockSize is the total size of the parameter block in the packet header.
func (s Spec) ParamBlockSize() int {
	return sumSizes(s.ParamSizes)
}

var baseSpecs = []Spec{
	{
		Name: NameNoCipher,
		Tag:  Tag{TagVersion, idNoCipher},
		New:  func([]byte) (Cipher, error) { return NewNoCipher(), nil },
	},
	{
		Name:       NameXor,
		Tag:        Tag{TagVersion, idXor},
		ParamSizes: []int{xorSuite.nonceSize},
		New:        func(key []byte) (Cipher, error) { return NewXorCipher(key) },
	},
	{
		Name:       NameAESCTR,
		Tag:        Tag{TagVersion, idAESCTR},
		ParamSizes: []int{aesCTRSuite.nonceSize},
		New:        func(key []byte) (Cipher, error) { return NewAESCTR(key) },
	},
	{
		Name:       NameAESCBC,
		Tag:        Tag{TagVersion, idAESCBC},
		ParamSizes: []int{16},
		New:        func(key []byte) (Cipher, error) { return NewAESCBC(key) },
	},
	{
		Name:       NameChaCha20,
		Tag:        Tag{TagVersion, idChaCha20},
		ParamSizes: []int{chacha20Suite.nonceSize},
		New:        func(key []byte) (Cipher, error) { return NewChaCha20(key) },
	},
}

var digests = []Digest{DigestSHA256, DigestBLAKE2b256}

var (
	specsByTag  = map[Tag]Spec{}
	specsByName = map[string]Spec{}
)

func init() {
	for _, base := range baseSpecs {
		register(base)
		for _, d := range digests {
			register(authenticatedSpec(base, d))
		}
	}
}

func authenticatedSpec(base Spec, d Digest) Spec {
	tag := base.Tag
	tag[1] |= byte(d)
	newInner := base.New
	return Spec{
		Name:       authenticatedName(base.Name, d),
		Tag:        tag,
		ParamSizes: base.ParamSizes,
		New: func(key []byte) (Cipher, error) {
			inner, err := newInner(key)
			if err != nil {
				return nil, err
			}
			return NewAuthenticated(inner, d)
		},
	}
}

// register panics on duplicates: the table is static and a collision is a
// programming error, never a runtime condition.
func register(s Spec) {
	if prev, ok := specsByTag[s.Tag]; ok {
		panic(fmt.Sprintf("cipher: tag %s of %s collides with %s", s.Tag, s.Name, prev.Name))
	}
	if _, ok := specsByName[s.Name]; ok {
		panic(fmt.Sprintf("cipher: duplicate cipher name %s", s.Name))
	}
	specsByTag[s.Tag] = s
	specsByName[s.Name] = s
}

// Lookup returns the spec registered for tag.
func Lookup(tag Tag) (Spec, bool) {
	s, ok := specsByTag[tag]
	return s, ok
}

// LookupName returns the spec registered under name.
func LookupName(name string) (Spec, bool) {
	s, ok := specsByName[name]
	return s, ok
}

// New builds a registered cipher by name.
func New(name string, key []byte) (Cipher, error) {
	s, ok := specsByName[name]
	if !ok {
		return nil, oops.Wrapf(ErrUnknownCipher, "no cipher named %q", name)
	}
	return s.New(key)
}

// ParamBlockSizeForTag returns the size of the parameter block that follows
// tag in a packet header.
func ParamBlockSizeForTag(tag Tag) (int, error) {
	s, ok := specsByTag[tag]
	if !ok {
		return 0, oops.Wrapf(ErrUnknownCipher, "no cipher with tag %s", tag)
	}
	return s.ParamBlockSize(), nil
}

// Registered returns every registered spec ordered by tag.
func Registered() []Spec {
	out := make([]Spec, 0, len(specsByTag))
	for _, s := range specsByTag {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tag[0] != out[j].Tag[0] {
			return out[i].Tag[0] < out[j].Tag[0]
		}
		return out[i].Tag[1] < out[j].Tag[1]
	})
	return out
}
